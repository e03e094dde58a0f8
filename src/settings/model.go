package settings

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	CategoryTones   = "tones"
	CategoryFormats = "formats"
)

// RequiredCategories must exist in every saved catalog.
var RequiredCategories = []string{CategoryTones, CategoryFormats}

// PromptEntry is one rewrite option: the instruction sent to the model and the
// icon the picker shows for it.
type PromptEntry struct {
	Instruction string `json:"prompt"`
	Icon        string `json:"icon"`
}

type Option struct {
	Name  string
	Entry PromptEntry
}

type Category struct {
	Name    string
	Options []Option
}

// Catalog is the ordered set of prompt categories. Order is display order.
type Catalog []Category

// Lookup returns the entry for category/option. Names match exactly.
func (c Catalog) Lookup(category, option string) (PromptEntry, bool) {
	cat, ok := c.Category(category)
	if !ok {
		return PromptEntry{}, false
	}
	for _, o := range cat.Options {
		if o.Name == option {
			return o.Entry, true
		}
	}
	return PromptEntry{}, false
}

func (c Catalog) Category(name string) (Category, bool) {
	for _, cat := range c {
		if cat.Name == name {
			return cat, true
		}
	}
	return Category{}, false
}

func (c Catalog) Clone() Catalog {
	if c == nil {
		return nil
	}
	out := make(Catalog, len(c))
	for i, cat := range c {
		opts := make([]Option, len(cat.Options))
		copy(opts, cat.Options)
		out[i] = Category{Name: cat.Name, Options: opts}
	}
	return out
}

// Validate checks that names are unique and non-blank and that every entry
// carries an instruction. Categories share the file's top level with the
// scalar settings, so a category may not take a scalar key as its name.
func (c Catalog) Validate() error {
	var problems []string
	seenCat := make(map[string]bool, len(c))
	for _, cat := range c {
		if strings.TrimSpace(cat.Name) == "" {
			problems = append(problems, "category with empty name")
			continue
		}
		if isScalarKey(cat.Name) {
			problems = append(problems, fmt.Sprintf("category name %q is reserved", cat.Name))
		}
		if seenCat[cat.Name] {
			problems = append(problems, fmt.Sprintf("duplicate category %q", cat.Name))
		}
		seenCat[cat.Name] = true

		seenOpt := make(map[string]bool, len(cat.Options))
		for _, o := range cat.Options {
			if strings.TrimSpace(o.Name) == "" {
				problems = append(problems, fmt.Sprintf("%s: option with empty name", cat.Name))
				continue
			}
			if seenOpt[o.Name] {
				problems = append(problems, fmt.Sprintf("%s: duplicate option %q", cat.Name, o.Name))
			}
			seenOpt[o.Name] = true
			if strings.TrimSpace(o.Entry.Instruction) == "" {
				problems = append(problems, fmt.Sprintf("%s/%s: empty prompt", cat.Name, o.Name))
			}
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ModelConfig is the per-request snapshot of endpoint settings.
type ModelConfig struct {
	APIKey  string
	BaseURL string
	Name    string
}

type Settings struct {
	Hotkey              string
	APIKey              string
	BaseURL             string
	Model               string
	SystemMessage       string
	CustomSystemMessage string
	Catalog             Catalog
}

func (s Settings) Clone() Settings {
	s.Catalog = s.Catalog.Clone()
	return s
}

func (s Settings) ModelConfig() ModelConfig {
	return ModelConfig{APIKey: s.APIKey, BaseURL: s.BaseURL, Name: s.Model}
}

// CustomSystem returns the system message for free-form instructions, falling
// back to the built-in one when the file has none.
func (s Settings) CustomSystem() string {
	if strings.TrimSpace(s.CustomSystemMessage) != "" {
		return s.CustomSystemMessage
	}
	return DefaultCustomSystemMessage
}

// Validate reports semantic problems. An empty API key is allowed; the key can
// come from the environment instead.
func (s Settings) Validate() error {
	var problems []string
	if strings.TrimSpace(s.Hotkey) == "" {
		problems = append(problems, "hotkey is empty")
	}
	if strings.TrimSpace(s.Model) == "" {
		problems = append(problems, "model is empty")
	}
	if strings.TrimSpace(s.SystemMessage) == "" {
		problems = append(problems, "system_message is empty")
	}
	if u, err := url.Parse(strings.TrimSpace(s.BaseURL)); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Sprintf("base_url %q is not an http(s) URL", s.BaseURL))
	}
	for _, name := range RequiredCategories {
		if _, ok := s.Catalog.Category(name); !ok {
			problems = append(problems, fmt.Sprintf("category %q is missing", name))
		}
	}
	if err := s.Catalog.Validate(); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			problems = append(problems, ve.Problems...)
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ValidationError rejects a settings record as a whole.
type ValidationError struct {
	Missing  []string
	Problems []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.Missing, ", "))
	}
	parts = append(parts, e.Problems...)
	return "invalid settings: " + strings.Join(parts, "; ")
}
