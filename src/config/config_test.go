package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv(APIKeyEnvVar, "test_api_key")
	t.Setenv(APIKeyPathEnvVar, "")
	t.Setenv("ENABLE_FILE_LOGGING", "true")
	t.Setenv("REWRITE_WORKERS", "3")
	t.Setenv("REWRITE_TIMEOUT_SEC", "15")
	t.Setenv("QUICK_ACTION", "tones/Professional")
	t.Setenv("OPEN_REWRITE_SETTINGS", "/tmp/or-settings.json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.APIKey != "test_api_key" {
		t.Errorf("Expected APIKey to be 'test_api_key', got '%s'", cfg.APIKey)
	}
	if !cfg.EnableFileLogging {
		t.Errorf("Expected EnableFileLogging to be true, got %v", cfg.EnableFileLogging)
	}
	if cfg.Workers != 3 {
		t.Errorf("Expected Workers=3, got %d", cfg.Workers)
	}
	if cfg.RewriteTimeout != 15*time.Second {
		t.Errorf("Expected RewriteTimeout=15s, got %v", cfg.RewriteTimeout)
	}
	if cfg.QuickAction != "tones/Professional" {
		t.Errorf("Expected QuickAction 'tones/Professional', got %q", cfg.QuickAction)
	}
	if cfg.SettingsPath != "/tmp/or-settings.json" {
		t.Errorf("Expected SettingsPath from env, got %q", cfg.SettingsPath)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"REWRITE_WORKERS", "REWRITE_QUEUE", "REWRITE_TIMEOUT_SEC", "BRIDGE_ADDR", "CLIPBOARD_SETTLE_MS", "UPDATE_REPO"} {
		t.Setenv(k, "")
	}
	t.Setenv("REWRITE_QUEUE", "-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workers != DefaultWorkers || cfg.QueueSize != DefaultQueue {
		t.Errorf("Expected default pool sizing, got workers=%d queue=%d", cfg.Workers, cfg.QueueSize)
	}
	if cfg.RewriteTimeout != DefaultRewriteTimeout {
		t.Errorf("Expected default timeout, got %v", cfg.RewriteTimeout)
	}
	if cfg.BridgeAddr != DefaultBridgeAddr {
		t.Errorf("Expected default bridge addr, got %q", cfg.BridgeAddr)
	}
	if cfg.ClipboardSettle != DefaultClipboardSettle {
		t.Errorf("Expected default settle, got %v", cfg.ClipboardSettle)
	}
	if cfg.UpdateRepo != DefaultUpdateRepo {
		t.Errorf("Expected default update repo, got %q", cfg.UpdateRepo)
	}
}

func TestAPIKeyFileWinsOverEnv(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "key")
	if err := os.WriteFile(keyPath, []byte("  file-key\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(APIKeyEnvVar, "env-key")
	t.Setenv(APIKeyPathEnvVar, "")

	cfg, err := LoadWithOptions(LoadOptions{APIKeyPathOverride: keyPath})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIKey != "file-key" {
		t.Fatalf("Expected key from file, got %q", cfg.APIKey)
	}

	cfg, err = LoadWithOptions(LoadOptions{APIKeyPathOverride: filepath.Join(dir, "missing")})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIKey != "env-key" {
		t.Fatalf("Expected env fallback, got %q", cfg.APIKey)
	}
}

func TestOverridesWin(t *testing.T) {
	t.Setenv("QUICK_ACTION", "tones/Friendly")
	t.Setenv("OPEN_REWRITE_SETTINGS", "/env/settings.json")

	cfg, err := LoadWithOptions(LoadOptions{
		QuickActionOverride:  "formats/Summary",
		SettingsPathOverride: "/flag/settings.json",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.QuickAction != "formats/Summary" {
		t.Errorf("Expected override quick action, got %q", cfg.QuickAction)
	}
	if cfg.SettingsPath != "/flag/settings.json" {
		t.Errorf("Expected override settings path, got %q", cfg.SettingsPath)
	}
}

func TestSplitQuickAction(t *testing.T) {
	tests := []struct {
		in       string
		category string
		option   string
		ok       bool
	}{
		{"tones/Professional", "tones", "Professional", true},
		{" formats / Summary ", "formats", "Summary", true},
		{"tones", "", "", false},
		{"/Summary", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, o, ok := SplitQuickAction(tt.in)
			if c != tt.category || o != tt.option || ok != tt.ok {
				t.Fatalf("SplitQuickAction(%q) = (%q, %q, %v)", tt.in, c, o, ok)
			}
		})
	}
}
