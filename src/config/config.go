package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// EnvFileVar points at an alternative .env when none sits beside the executable.
	EnvFileVar = "OPEN_REWRITE_ENV"

	APIKeyPathEnvVar = "OPENAI_API_KEY_FILE"
	APIKeyEnvVar     = "OPENAI_API_KEY"

	DefaultBridgeAddr      = "127.0.0.1:49600"
	DefaultWorkers         = 2
	DefaultQueue           = 4
	DefaultRewriteTimeout  = 60 * time.Second
	DefaultClipboardSettle = 100 * time.Millisecond
	DefaultUpdateRepo      = "SomaRe/open_rewrite"
	DefaultUpdateAsset     = "open-rewrite-windows-x64.exe"
	DefaultIconDir         = "static/material_icons_round"
	settingsDirName        = "open-rewrite"
	settingsFileName       = "settings.json"
)

type LoadOptions struct {
	APIKeyPathOverride   string
	SettingsPathOverride string
	QuickActionOverride  string
}

type Config struct {
	// APIKey is only a fallback for an empty api_key in the settings file.
	APIKey            string
	APIKeyPath        string
	SettingsPath      string
	EnableFileLogging bool

	BridgeEnabled bool
	BridgeAddr    string

	Workers          int
	QueueSize        int
	RewriteTimeout   time.Duration
	CancelSuperseded bool

	// QuickAction is "category/option"; a hotkey press rewrites directly with it.
	QuickAction     string
	AutoReplace     bool
	ClipboardSettle time.Duration

	UpdateRepo  string
	UpdateAsset string
	IconDir     string

	SkipPing bool
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order:
	// 1) .env in the executable directory
	// 2) otherwise the file named by OPEN_REWRITE_ENV
	envPath := resolveEnvPath()
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	apiKeyPath := resolveAPIKeyPath(opts, dotenvValues)

	cfg := &Config{
		APIKey:            resolveAPIKey(apiKeyPath),
		APIKeyPath:        apiKeyPath,
		SettingsPath:      resolveSettingsPath(opts),
		EnableFileLogging: getBool("ENABLE_FILE_LOGGING", false),
		BridgeEnabled:     getBool("BRIDGE_ENABLED", true),
		BridgeAddr:        getEnvWithDefault("BRIDGE_ADDR", DefaultBridgeAddr),
		Workers:           getPositiveInt("REWRITE_WORKERS", DefaultWorkers),
		QueueSize:         getPositiveInt("REWRITE_QUEUE", DefaultQueue),
		RewriteTimeout:    time.Duration(getPositiveInt("REWRITE_TIMEOUT_SEC", int(DefaultRewriteTimeout/time.Second))) * time.Second,
		CancelSuperseded:  getBool("CANCEL_SUPERSEDED", false),
		QuickAction:       resolveQuickAction(opts),
		AutoReplace:       getBool("AUTO_REPLACE", false),
		ClipboardSettle:   time.Duration(getPositiveInt("CLIPBOARD_SETTLE_MS", int(DefaultClipboardSettle/time.Millisecond))) * time.Millisecond,
		UpdateRepo:        getEnvWithDefault("UPDATE_REPO", DefaultUpdateRepo),
		UpdateAsset:       getEnvWithDefault("UPDATE_ASSET", DefaultUpdateAsset),
		IconDir:           getEnvWithDefault("ICON_DIR", DefaultIconDir),
		SkipPing:          getBool("SKIP_PING", false),
	}

	return cfg, nil
}

// SplitQuickAction parses "category/option". ok is false for anything else.
func SplitQuickAction(v string) (category, option string, ok bool) {
	category, option, found := strings.Cut(strings.TrimSpace(v), "/")
	category = strings.TrimSpace(category)
	option = strings.TrimSpace(option)
	if !found || category == "" || option == "" {
		return "", "", false
	}
	return category, option, true
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}

	exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
	if _, err := os.Stat(exeEnv); err == nil {
		return exeEnv
	}

	if alt := os.Getenv(EnvFileVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

func resolveAPIKeyPath(opts LoadOptions, dotenvValues map[string]string) string {
	keyPath := ""

	if envPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); envPath != "" {
		keyPath = envPath
	}

	if dotenvPath := strings.TrimSpace(dotenvValues[APIKeyPathEnvVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}

	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}

	return keyPath
}

func resolveAPIKey(keyPath string) string {
	if keyPath != "" {
		if data, err := os.ReadFile(keyPath); err == nil {
			if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
				return fileKey
			}
		}
	}

	return strings.TrimSpace(os.Getenv(APIKeyEnvVar))
}

func resolveSettingsPath(opts LoadOptions) string {
	if override := strings.TrimSpace(opts.SettingsPathOverride); override != "" {
		return override
	}
	if v := strings.TrimSpace(os.Getenv("OPEN_REWRITE_SETTINGS")); v != "" {
		return v
	}
	return DefaultSettingsPath()
}

// DefaultSettingsPath is settings.json under the user config dir, or the working
// directory when no config dir is known.
func DefaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return settingsFileName
	}
	return filepath.Join(dir, settingsDirName, settingsFileName)
}

func resolveQuickAction(opts LoadOptions) string {
	if override := strings.TrimSpace(opts.QuickActionOverride); override != "" {
		return override
	}
	return strings.TrimSpace(os.Getenv("QUICK_ACTION"))
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

func getPositiveInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}
