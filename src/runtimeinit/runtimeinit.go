// Package runtimeinit wires configuration, settings and the rewrite stack for
// every binary.
package runtimeinit

import (
	"context"
	"errors"
	"fmt"
	"log"

	"open-rewrite/src/clipboard"
	"open-rewrite/src/config"
	"open-rewrite/src/keyboard"
	"open-rewrite/src/llm"
	"open-rewrite/src/logutil"
	"open-rewrite/src/notification"
	"open-rewrite/src/rewrite"
	"open-rewrite/src/selection"
	"open-rewrite/src/settings"
	"open-rewrite/src/worker"
)

type Options struct {
	LoadOptions          config.LoadOptions
	SetupLogging         func(bool)
	ShowBlockingLLMError bool
	// Desktop initializes the clipboard and synthetic keyboard. Without it
	// the orchestrator cannot copy or replace.
	Desktop bool
	// SkipPing overrides the config for commands that never call the model.
	SkipPing bool
}

type Runtime struct {
	Config       *config.Config
	Settings     *settings.Store
	Client       *llm.Client
	Pool         *worker.Pool
	Orchestrator *rewrite.Orchestrator
	// Capturer is nil unless Options.Desktop was set.
	Capturer *selection.Capturer
}

// noDesktop fails copy and replace for headless runs.
type noDesktop struct{}

var errNoDesktop = errors.New("clipboard not initialized")

func (noDesktop) CopyText(string) error { return errNoDesktop }

func (noDesktop) ReplaceText(string) error { return errNoDesktop }

func Bootstrap(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging)
	}

	store, err := settings.Open(cfg.SettingsPath, settings.WithAPIKeyFallback(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to open settings: %w", err)
	}
	model := store.ModelConfig()
	log.Printf("Settings: %s model=%s base_url=%s key=%s", store.Path(), model.Name, model.BaseURL, logutil.RedactKey(model.APIKey))

	client := llm.NewClient(llm.WithTimeout(cfg.RewriteTimeout))

	if !cfg.SkipPing && !opts.SkipPing {
		if model.APIKey == "" {
			return nil, fmt.Errorf("an API key is required. Set api_key in %s, or checked key file %q and %s env var", store.Path(), cfg.APIKeyPath, config.APIKeyEnvVar)
		}
		if err := client.Ping(ctx, model); err != nil {
			if opts.ShowBlockingLLMError {
				notification.ShowBlockingError("LLM unavailable", fmt.Sprintf("Startup check failed: %v\n\nPlease verify your API key and network connectivity.", err))
			}
			return nil, fmt.Errorf("startup check failed: %w", err)
		}
		log.Printf("LLM ping succeeded")
	}

	rt := &Runtime{Config: cfg, Settings: store, Client: client}

	var bridgeClip rewrite.ClipboardBridge = noDesktop{}
	if opts.Desktop {
		if err := clipboard.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
		}
		keys, err := keyboard.New()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize keyboard: %w", err)
		}
		rt.Capturer = selection.New(clipboard.System{}, keys, cfg.ClipboardSettle)
		bridgeClip = rt.Capturer
	}

	rt.Pool = worker.New(client, cfg.Workers, cfg.QueueSize)
	rt.Orchestrator = rewrite.New(store, rt.Pool, bridgeClip, rewrite.Options{
		Timeout:          cfg.RewriteTimeout,
		CancelSuperseded: cfg.CancelSuperseded,
	})
	return rt, nil
}

// Close cancels in-flight rewrites and stops the workers.
func (rt *Runtime) Close() {
	if rt.Orchestrator != nil {
		rt.Orchestrator.Close()
	}
	if rt.Pool != nil {
		rt.Pool.Close()
	}
}
