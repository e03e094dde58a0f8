package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	keyHotkey              = "hotkey"
	keyAPIKey              = "api_key"
	keyBaseURL             = "base_url"
	keyModel               = "model"
	keySystemMessage       = "system_message"
	keyCustomSystemMessage = "custom_system_message"
)

var scalarKeys = []string{keyHotkey, keyAPIKey, keyBaseURL, keyModel, keySystemMessage, keyCustomSystemMessage}

func isScalarKey(name string) bool {
	for _, k := range scalarKeys {
		if name == k {
			return true
		}
	}
	return false
}

// RequiredKeys must all be present in a record passed to Parse.
var RequiredKeys = []string{keyHotkey, keyAPIKey, keyBaseURL, keyModel, keySystemMessage, CategoryTones, CategoryFormats}

// Parse decodes a complete settings record. Every key in RequiredKeys must be
// present, and the result must pass Validate.
func Parse(data []byte) (Settings, error) {
	var present map[string]json.RawMessage
	if err := json.Unmarshal(data, &present); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	var missing []string
	for _, k := range RequiredKeys {
		if _, ok := present[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return Settings{}, &ValidationError{Missing: missing}
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// MarshalJSON writes the flat settings.json layout: scalar keys first, then one
// object per category with options in catalog order.
func (s Settings) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	fields := []struct{ k, v string }{
		{keyHotkey, s.Hotkey},
		{keyAPIKey, s.APIKey},
		{keyBaseURL, s.BaseURL},
		{keyModel, s.Model},
		{keySystemMessage, s.SystemMessage},
		{keyCustomSystemMessage, s.CustomSystemMessage},
	}
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(&buf, f.k)
		if err := writeValue(&buf, f.v); err != nil {
			return nil, err
		}
	}
	for _, cat := range s.Catalog {
		buf.WriteByte(',')
		writeKey(&buf, cat.Name)
		buf.WriteByte('{')
		for i, o := range cat.Options {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeKey(&buf, o.Name)
			if err := writeValue(&buf, o.Entry); err != nil {
				return nil, err
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, k string) {
	_ = writeValue(buf, k)
	buf.WriteByte(':')
}

// writeValue encodes v without HTML escaping so hotkeys like <alt>+r stay
// readable in the file.
func writeValue(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// UnmarshalJSON is lenient: it checks no required keys. Any object-valued key
// that is not a known scalar becomes a category, in file order.
func (s *Settings) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	var out Settings
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return err
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		var target *string
		switch key {
		case keyHotkey:
			target = &out.Hotkey
		case keyAPIKey:
			target = &out.APIKey
		case keyBaseURL:
			target = &out.BaseURL
		case keyModel:
			target = &out.Model
		case keySystemMessage:
			target = &out.SystemMessage
		case keyCustomSystemMessage:
			target = &out.CustomSystemMessage
		}
		if target != nil {
			if err := json.Unmarshal(raw, target); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			continue
		}
		if !isObject(raw) {
			continue
		}
		opts, err := decodeOptions(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		out.Catalog = append(out.Catalog, Category{Name: key, Options: opts})
	}
	*s = out
	return nil
}

func decodeOptions(raw json.RawMessage) ([]Option, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	opts := []Option{}
	for dec.More() {
		name, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		var entry PromptEntry
		if err := dec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		opts = append(opts, Option{Name: name, Entry: entry})
	}
	return opts, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}

func isObject(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	return len(b) > 0 && b[0] == '{'
}
