package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"open-rewrite/src/config"
	"open-rewrite/src/logutil"
	"open-rewrite/src/rewrite"
	"open-rewrite/src/runtimeinit"
	"open-rewrite/src/settings"
	"open-rewrite/src/updater"
)

const (
	maxInputSizeMB = 1
	maxInputSize   = maxInputSizeMB * 1024 * 1024
)

type cliOptions struct {
	verbose      bool
	jsonOutput   bool
	apiKeyPath   string
	settingsPath string
}

func (o *cliOptions) loadOptions() config.LoadOptions {
	return config.LoadOptions{APIKeyPathOverride: o.apiKeyPath, SettingsPathOverride: o.settingsPath}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"rewrite-cli"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rewrite-cli",
		Short:         "Rewrite text and manage Open Rewrite settings from a terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Logging is configured before anything else touches config.
			if opts.verbose {
				log.SetOutput(cmd.ErrOrStderr())
				log.SetFlags(log.LstdFlags)
			} else {
				log.SetOutput(io.Discard)
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.PersistentFlags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (used when settings have no api_key)")
	cmd.PersistentFlags().StringVar(&opts.settingsPath, "settings", "", "Path to settings.json")

	cmd.AddCommand(
		newRewriteCmd(opts),
		newCustomCmd(opts),
		newPromptsCmd(opts),
		newSettingsCmd(opts),
		newPingCmd(opts),
		newUpdateCmd(opts),
	)
	return cmd
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	longFlags := []string{"text", "category", "option", "instruction", "json", "verbose", "api-key-path", "settings", "format"}
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range longFlags {
			if arg == "-"+name || strings.HasPrefix(arg, "-"+name+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}
	return normalized
}

// truncateSecret safely truncates a secret for display, showing only first N characters.
func truncateSecret(secret string, maxLen int) string {
	if len(secret) <= maxLen {
		return secret + "..."
	}
	return secret[:maxLen] + "..."
}

// readInput returns --text, or stdin when text is "-" or empty.
func readInput(text string, stdin io.Reader) (string, error) {
	if text != "" && text != "-" {
		return text, nil
	}
	data, err := io.ReadAll(io.LimitReader(stdin, maxInputSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	if len(data) > maxInputSize {
		return "", fmt.Errorf("input exceeds maximum size of %d MB", maxInputSizeMB)
	}
	return string(data), nil
}

type RewriteResult struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Category  string  `json:"category,omitempty"`
	Option    string  `json:"option,omitempty"`
	Custom    bool    `json:"custom,omitempty"`
	Timestamp string  `json:"timestamp"`
	Duration  float64 `json:"duration_seconds"`
	CharCount int     `json:"character_count"`
}

func bootstrap(ctx context.Context, opts *cliOptions, skipPing bool) (*runtimeinit.Runtime, error) {
	rt, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions: opts.loadOptions(),
		SkipPing:    skipPing,
	})
	if err != nil {
		return nil, err
	}
	if opts.verbose {
		model := rt.Settings.ModelConfig()
		log.Printf("Settings: %s, model %s, key %s", rt.Settings.Path(), model.Name, truncateSecret(model.APIKey, 6))
	}
	return rt, nil
}

func newRewriteCmd(opts *cliOptions) *cobra.Command {
	var text, category, option string
	cmd := &cobra.Command{
		Use:   "rewrite",
		Short: "Rewrite text with a catalog prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(text, cmd.InOrStdin())
			if err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			start := time.Now()
			h, err := rt.Orchestrator.Rewrite(input, option, category, nil, nil)
			if err != nil {
				return err
			}
			return waitAndOutput(cmd.Context(), cmd.OutOrStdout(), opts.jsonOutput, h, start)
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "Text to rewrite (default: read stdin)")
	cmd.Flags().StringVar(&category, "category", settings.CategoryTones, "Prompt category")
	cmd.Flags().StringVar(&option, "option", "Professional", "Prompt option within the category")
	return cmd
}

func newCustomCmd(opts *cliOptions) *cobra.Command {
	var text, instruction string
	cmd := &cobra.Command{
		Use:   "custom",
		Short: "Rewrite text with a free-form instruction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(text, cmd.InOrStdin())
			if err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			start := time.Now()
			h, err := rt.Orchestrator.RewriteCustom(input, instruction, nil, nil)
			if err != nil {
				return err
			}
			return waitAndOutput(cmd.Context(), cmd.OutOrStdout(), opts.jsonOutput, h, start)
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "Text to rewrite (default: read stdin)")
	cmd.Flags().StringVar(&instruction, "instruction", "", "What to do with the text")
	_ = cmd.MarkFlagRequired("instruction")
	return cmd
}

func waitAndOutput(ctx context.Context, w io.Writer, jsonOutput bool, h *rewrite.Handle, start time.Time) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-h.Done():
	case <-ctx.Done():
		h.Cancel()
	}
	out := h.Outcome()
	elapsed := time.Since(start)
	if out.Err != nil {
		log.Printf("Rewrite %s failed after %v: %v", h.ID, elapsed, out.Err)
		return out.Err
	}
	log.Printf("Rewrite %s completed in %v (%d chars)", h.ID, elapsed, len(out.Text))

	if !jsonOutput {
		_, err := fmt.Fprint(w, out.Text)
		return err
	}
	return writeJSON(w, RewriteResult{
		ID:        h.ID,
		Text:      out.Text,
		Category:  h.Category,
		Option:    h.Option,
		Custom:    h.Custom,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  elapsed.Seconds(),
		CharCount: len(out.Text),
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}

// openStore loads only the settings file; no model client is built.
func openStore(opts *cliOptions) (*settings.Store, error) {
	cfg, err := config.LoadWithOptions(opts.loadOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return settings.Open(cfg.SettingsPath, settings.WithAPIKeyFallback(cfg.APIKey))
}

func newPromptsCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "List, export and import the prompt catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List categories and options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(opts)
			if err != nil {
				return err
			}
			catalog := store.Get().Catalog
			if opts.jsonOutput {
				listing := make(map[string][]string, len(catalog))
				for _, cat := range catalog {
					for _, o := range cat.Options {
						listing[cat.Name] = append(listing[cat.Name], o.Name)
					}
				}
				return writeJSON(cmd.OutOrStdout(), listing)
			}
			w := cmd.OutOrStdout()
			for _, cat := range catalog {
				fmt.Fprintf(w, "%s:\n", cat.Name)
				for _, o := range cat.Options {
					fmt.Fprintf(w, "  %s\n", o.Name)
				}
			}
			return nil
		},
	})

	var exportFormat string
	export := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the catalog as JSON, YAML or TOML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(opts)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				format, err := settings.ParseFormat(exportFormat)
				if err != nil {
					return err
				}
				return settings.ExportCatalog(cmd.OutOrStdout(), store.Get().Catalog, format)
			}
			format, err := formatFor(args[0], exportFormat, cmd.Flags().Changed("format"))
			if err != nil {
				return err
			}
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := settings.ExportCatalog(f, store.Get().Catalog, format); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}
	export.Flags().StringVar(&exportFormat, "format", "json", "json, yaml or toml (default: from the file extension)")

	var importFormat string
	imp := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the catalog from a JSON, YAML or TOML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := formatFor(args[0], importFormat, cmd.Flags().Changed("format"))
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			catalog, err := settings.ImportCatalog(f, format)
			if err != nil {
				return err
			}
			store, err := openStore(opts)
			if err != nil {
				return err
			}
			if err := store.ReplaceCatalog(catalog); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d categories into %s\n", len(catalog), store.Path())
			return nil
		},
	}
	imp.Flags().StringVar(&importFormat, "format", "", "json, yaml or toml (default: from the file extension)")

	cmd.AddCommand(export, imp)
	return cmd
}

// formatFor prefers an explicit --format over the file extension.
func formatFor(path, flagValue string, explicit bool) (settings.Format, error) {
	if explicit && flagValue != "" {
		return settings.ParseFormat(flagValue)
	}
	return settings.FormatFromPath(path)
}

func newSettingsCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect or reset the settings file",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the settings file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.LoadWithOptions(opts.loadOptions())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cfg.SettingsPath)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the settings with the API key redacted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := openStore(opts)
				if err != nil {
					return err
				}
				s := store.Get()
				s.APIKey = logutil.RedactKey(s.APIKey)
				return writeJSON(cmd.OutOrStdout(), s)
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Restore the default settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := openStore(opts)
				if err != nil {
					return err
				}
				if err := store.Reset(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %s to defaults\n", store.Path())
				return nil
			},
		},
	)
	return cmd
}

func newPingCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the configured model answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %s at %s\n", rt.Settings.ModelConfig().Name, rt.Settings.ModelConfig().BaseURL)
			return nil
		},
	}
}

func newUpdateCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check for a newer release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithOptions(opts.loadOptions())
			if err != nil {
				return err
			}
			checker := updater.New(cfg.UpdateRepo, cfg.UpdateAsset)
			defer checker.Close()
			res, err := checker.Check(cmd.Context())
			if err != nil {
				return fmt.Errorf("update check failed: %w", err)
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
	return cmd
}
