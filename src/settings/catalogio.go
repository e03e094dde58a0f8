package settings

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format names a portable catalog encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ParseFormat accepts a format name or file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unsupported catalog format %q", s)
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// catalogFile is the exchange shape: lists instead of maps so that every
// encoding keeps the order.
type catalogFile struct {
	Categories []categoryFile `json:"categories" yaml:"categories" toml:"categories"`
}

type categoryFile struct {
	Name    string       `json:"name" yaml:"name" toml:"name"`
	Options []optionFile `json:"options" yaml:"options" toml:"options"`
}

type optionFile struct {
	Name   string `json:"name" yaml:"name" toml:"name"`
	Prompt string `json:"prompt" yaml:"prompt" toml:"prompt"`
	Icon   string `json:"icon,omitempty" yaml:"icon,omitempty" toml:"icon,omitempty"`
}

func toFile(c Catalog) catalogFile {
	out := catalogFile{Categories: make([]categoryFile, 0, len(c))}
	for _, cat := range c {
		cf := categoryFile{Name: cat.Name, Options: make([]optionFile, 0, len(cat.Options))}
		for _, o := range cat.Options {
			cf.Options = append(cf.Options, optionFile{Name: o.Name, Prompt: o.Entry.Instruction, Icon: o.Entry.Icon})
		}
		out.Categories = append(out.Categories, cf)
	}
	return out
}

func fromFile(f catalogFile) Catalog {
	out := make(Catalog, 0, len(f.Categories))
	for _, cf := range f.Categories {
		cat := Category{Name: cf.Name, Options: make([]Option, 0, len(cf.Options))}
		for _, of := range cf.Options {
			cat.Options = append(cat.Options, Option{Name: of.Name, Entry: PromptEntry{Instruction: of.Prompt, Icon: of.Icon}})
		}
		out = append(out, cat)
	}
	return out
}

func ExportCatalog(w io.Writer, c Catalog, format Format) error {
	f := toFile(c)
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOML:
		return toml.NewEncoder(w).Encode(f)
	}
	return fmt.Errorf("unsupported catalog format %q", format)
}

// ImportCatalog decodes and validates a catalog. Both required categories
// must be present.
func ImportCatalog(r io.Reader, format Format) (Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var f catalogFile
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &f)
	case FormatYAML:
		err = yaml.Unmarshal(data, &f)
	case FormatTOML:
		_, err = toml.Decode(string(data), &f)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s catalog: %w", format, err)
	}

	c := fromFile(f)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var missing []string
	for _, name := range RequiredCategories {
		if _, ok := c.Category(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}
	return c, nil
}
