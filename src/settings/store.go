package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store owns the settings file. Readers get deep copies; writers replace the
// whole record.
type Store struct {
	mu             sync.RWMutex
	path           string
	settings       Settings
	apiKeyFallback string
	listeners      []func(Settings)
}

type StoreOption func(*Store)

// WithAPIKeyFallback supplies a key for model snapshots when api_key is blank.
func WithAPIKeyFallback(key string) StoreOption {
	return func(s *Store) { s.apiKeyFallback = strings.TrimSpace(key) }
}

// Open loads path. A missing file is created with defaults; an unreadable or
// malformed one is logged and replaced by defaults in memory only.
func Open(path string, opts ...StoreOption) (*Store, error) {
	if path == "" {
		return nil, errors.New("settings: empty path")
	}
	s := &Store{path: path}
	for _, o := range opts {
		o(s)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Printf("Settings: %s not found, creating with defaults", path)
		s.settings = Defaults()
		if werr := writeAtomic(path, s.settings); werr != nil {
			return nil, fmt.Errorf("write default settings: %w", werr)
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var loaded Settings
	if err := json.Unmarshal(data, &loaded); err != nil {
		log.Printf("Settings: failed to decode %s (%v), falling back to defaults", path, err)
		s.settings = Defaults()
		return s, nil
	}
	s.settings = fillDefaults(loaded)
	if err := s.settings.Validate(); err != nil {
		log.Printf("Settings: %s loaded with problems: %v", path, err)
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

// Save validates and atomically writes next, then swaps it in. A failed save
// leaves both the file and the in-memory record untouched.
func (s *Store) Save(next Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}
	next = next.Clone()

	s.mu.Lock()
	if err := writeAtomic(s.path, next); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("write settings: %w", err)
	}
	s.settings = next
	listeners := append([]func(Settings){}, s.listeners...)
	s.mu.Unlock()

	log.Printf("Settings: saved %s", s.path)
	for _, fn := range listeners {
		fn(next.Clone())
	}
	return nil
}

// SaveRaw parses a full JSON record (all required keys present) and saves it.
func (s *Store) SaveRaw(data []byte) error {
	next, err := Parse(data)
	if err != nil {
		return err
	}
	return s.Save(next)
}

// ReplaceCatalog keeps every scalar setting and swaps the prompt catalog.
func (s *Store) ReplaceCatalog(c Catalog) error {
	next := s.Get()
	next.Catalog = c.Clone()
	return s.Save(next)
}

func (s *Store) Reset() error {
	log.Printf("Settings: resetting to defaults")
	return s.Save(Defaults())
}

// OnChange registers fn to run after every successful save, outside the lock.
func (s *Store) OnChange(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Value returns a scalar setting by its file key, or def when it is blank or
// unknown.
func (s *Store) Value(key, def string) string {
	cur := s.Get()
	var v string
	switch key {
	case keyHotkey:
		v = cur.Hotkey
	case keyAPIKey:
		v = s.ModelConfig().APIKey
	case keyBaseURL:
		v = cur.BaseURL
	case keyModel:
		v = cur.Model
	case keySystemMessage:
		v = cur.SystemMessage
	case keyCustomSystemMessage:
		v = cur.CustomSystemMessage
	}
	if v == "" {
		return def
	}
	return v
}

func (s *Store) ModelConfig() ModelConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modelConfigLocked()
}

func (s *Store) modelConfigLocked() ModelConfig {
	mc := s.settings.ModelConfig()
	if mc.APIKey == "" {
		mc.APIKey = s.apiKeyFallback
	}
	return mc
}

// Snapshot returns the settings with the API key fallback applied, so a
// request built from it needs nothing else from the store.
func (s *Store) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.settings.Clone()
	out.APIKey = s.modelConfigLocked().APIKey
	return out
}

func (s *Store) Prompt(category, option string) (PromptEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Catalog.Lookup(category, option)
}

func writeAtomic(path string, v Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
