package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"open-rewrite/src/bridge"
	"open-rewrite/src/config"
	"open-rewrite/src/eventloop"
	"open-rewrite/src/history"
	"open-rewrite/src/hotkey"
	"open-rewrite/src/icons"
	"open-rewrite/src/logutil"
	"open-rewrite/src/notification"
	"open-rewrite/src/runtimeinit"
	"open-rewrite/src/session"
	"open-rewrite/src/settings"
	"open-rewrite/src/singleinstance"
	"open-rewrite/src/startup"
	"open-rewrite/src/tray"
	"open-rewrite/src/updater"
)

type mainOptions struct {
	trigger       bool
	triggerStdout bool
	apiKeyPath    string
	settingsPath  string
	quickAction   string
}

func (o *mainOptions) loadOptions() config.LoadOptions {
	return config.LoadOptions{
		APIKeyPathOverride:   o.apiKeyPath,
		SettingsPathOverride: o.settingsPath,
		QuickActionOverride:  o.quickAction,
	}
}

// triggerClient is the part of singleinstance.Client a trigger needs.
type triggerClient interface {
	Trigger(ctx context.Context, outputToStdout bool) (bool, string, error)
}

func main() {
	enableDPIAwareness()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "open-rewrite",
		Short:         "Rewrite the selected text with an LLM from a global hotkey",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.trigger || opts.triggerStdout {
				// Loaded early so SINGLEINSTANCE_PORT_* apply to the delegation scan.
				_, _ = config.LoadWithOptions(opts.loadOptions())
				return handleTriggerWithDelegation(cmd.Context(), singleinstance.NewClient(), opts.triggerStdout, cmd.OutOrStdout(), func() error {
					return runStandalone(cmd.Context(), opts, cmd.OutOrStdout())
				})
			}
			return runResident(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.trigger, "trigger", false, "Rewrite the selection once with the quick action, copy the result, and exit")
	cmd.Flags().BoolVar(&opts.triggerStdout, "trigger-stdout", false, "Like --trigger but print the result to stdout")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to a file containing the API key")
	cmd.Flags().StringVar(&opts.settingsPath, "settings", "", "Path to settings.json")
	cmd.Flags().StringVar(&opts.quickAction, "quick-action", "", "Rewrite as category/option on hotkey, e.g. tones/Professional")
	return cmd
}

func normalizeLegacyArgs(args []string) []string {
	normalized := make([]string, len(args))
	copy(normalized, args)

	longFlags := []string{"trigger", "trigger-stdout", "api-key-path", "settings", "quick-action"}
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range longFlags {
			single := "-" + name
			if arg == single || strings.HasPrefix(arg, single+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}
	return normalized
}

// handleTriggerWithDelegation hands the trigger to a running resident and
// only runs fallback when none answered. An ERROR answer from the resident
// is final.
func handleTriggerWithDelegation(ctx context.Context, client triggerClient, stdout bool, out io.Writer, fallback func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	delegated, text, err := client.Trigger(ctx, stdout)
	var remote *singleinstance.RemoteError
	if errors.As(err, &remote) {
		return remote
	}
	if err != nil {
		log.Printf("Delegation error: %v; falling back to standalone", err)
		return fallback()
	}
	if !delegated {
		log.Printf("No resident detected, running standalone")
		return fallback()
	}
	log.Printf("Delegated to resident")
	if stdout {
		_, err := fmt.Fprint(out, text)
		return err
	}
	return nil
}

func runStandalone(ctx context.Context, opts *mainOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions:          opts.loadOptions(),
		SetupLogging:         logutil.Setup,
		ShowBlockingLLMError: !opts.triggerStdout,
		Desktop:              true,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	category, option, ok := config.SplitQuickAction(rt.Config.QuickAction)
	if !ok {
		return eventloop.ErrNoQuickAction
	}

	var target session.ResultTarget
	switch {
	case opts.triggerStdout:
		target = session.StdoutTarget{Writer: out}
	case rt.Config.AutoReplace:
		target = session.ReplaceTarget{Replacer: rt.Orchestrator, Fallback: rt.Orchestrator}
	default:
		target = session.ClipboardTarget{Clipboard: rt.Orchestrator}
	}

	res, err := session.Execute(ctx, session.Options{
		Capture:  rt.Capturer,
		Rewriter: rt.Orchestrator,
		Category: category,
		Option:   option,
		Target:   target,
	})
	if err != nil {
		if !opts.triggerStdout {
			notification.ShowError(err.Error())
		}
		return err
	}
	log.Printf("Trigger completed (%d chars)", len(res.Text))
	if !opts.triggerStdout {
		notification.ShowResult(res.Text)
	}
	return nil
}

func runResident(opts *mainOptions) error {
	// systray needs the main thread on macOS and its own message loop on Windows.
	runtime.LockOSThread()

	// Load .env early so SINGLEINSTANCE_PORT_* are available for pre-flight.
	_, _ = config.LoadWithOptions(opts.loadOptions())
	detectCtx, cancelDetect := context.WithTimeout(context.Background(), time.Second)
	port, running := singleinstance.DetectResidentPort(detectCtx)
	cancelDetect()
	if running {
		return fmt.Errorf("a resident is already running on port %d", port)
	}
	startPort, _ := singleinstance.GetPortRangeForDebug()
	addr := fmt.Sprintf("127.0.0.1:%d", startPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("a resident is already running on port %d", startPort)
	}
	// Released so the event loop can bind it.
	_ = lis.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions:          opts.loadOptions(),
		SetupLogging:         logutil.Setup,
		ShowBlockingLLMError: true,
		Desktop:              true,
	})
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.Config

	hist, err := history.New(history.DefaultSize)
	if err != nil {
		return err
	}
	hub := bridge.NewHub()
	updates := updater.New(cfg.UpdateRepo, cfg.UpdateAsset)
	defer updates.Close()
	autostart, err := startup.New()
	if err != nil {
		log.Printf("Startup: %v", err)
	}

	combo := rt.Settings.Get().Hotkey
	tooltip := func(c string) string { return fmt.Sprintf("%s - Press %s to rewrite", notification.AppName, c) }

	loopOpts := eventloop.Options{
		Capture:     rt.Capturer,
		Rewriter:    rt.Orchestrator,
		History:     hist,
		Notifier:    toastNotifier{},
		SetStatus:   tray.UpdateTooltip,
		OnListening: func(port int) { tray.SetAboutExtra(fmt.Sprintf("Resident port: %d", port)) },
		QuickAction: cfg.QuickAction,
		AutoReplace: cfg.AutoReplace,
	}
	if cfg.BridgeEnabled {
		loopOpts.Publisher = hub
	}
	loop := eventloop.New(loopOpts)
	loop.SetDefaultTooltip(tooltip(combo))

	listener, err := hotkey.NewListener(combo, loop.Trigger)
	if err != nil {
		notification.ShowBlockingError("Invalid hotkey", fmt.Sprintf("Cannot bind %q: %v", combo, err))
		return fmt.Errorf("invalid hotkey %q: %w", combo, err)
	}
	tray.SetAboutHotkey(combo)

	rt.Settings.OnChange(func(s settings.Settings) {
		if s.Hotkey != listener.Combo() {
			if err := listener.SetCombo(s.Hotkey); err != nil {
				log.Printf("Hotkey: keeping %q, cannot bind %q: %v", listener.Combo(), s.Hotkey, err)
			} else {
				tray.SetAboutHotkey(s.Hotkey)
				tray.UpdateTooltip(tooltip(s.Hotkey))
			}
		}
		hub.Publish(bridge.Event{Type: bridge.EventSettingsChanged})
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	trayCfg := tray.Config{
		Title:     notification.AppName,
		Tooltip:   tooltip(combo),
		Version:   updater.Version,
		OnRewrite: loop.Trigger,
		OnCopyLast: func() {
			if err := loop.CopyLast(); err != nil {
				notification.ShowError(err.Error())
			}
		},
		OnCheckUpdate: func() { go checkForUpdate(ctx, updates) },
		OnExit:        cancel,
	}
	if autostart != nil {
		trayCfg.StartupEnabled = func() bool {
			on, _ := autostart.Enabled()
			return on
		}
		trayCfg.OnToggleStartup = autostart.Toggle
	}
	trayIcon, err := tray.New(trayCfg)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error {
		listener.Run(gctx)
		return nil
	})
	if cfg.BridgeEnabled {
		deps := bridge.Deps{
			Settings:       rt.Settings,
			Rewriter:       rt.Orchestrator,
			Hub:            hub,
			History:        hist,
			Updates:        updates,
			ValidateHotkey: hotkey.Validate,
			ListIcons:      func() (map[string][]string, error) { return icons.List(cfg.IconDir, cfg.IconDir) },
		}
		if autostart != nil {
			deps.Startup = autostart
		}
		g.Go(func() error { return bridge.Serve(gctx, cfg.BridgeAddr, bridge.RegisterRoutes(deps)) })
	}
	g.Go(func() error {
		<-gctx.Done()
		trayIcon.Destroy()
		return nil
	})

	log.Printf("%s %s ready; hotkey %s, quick action %q", notification.AppName, updater.Version, combo, cfg.QuickAction)
	trayIcon.Run()
	cancel()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func checkForUpdate(ctx context.Context, updates *updater.Checker) {
	res, err := updates.Check(ctx)
	if err != nil {
		notification.ShowError(fmt.Sprintf("Update check failed: %v", err))
		return
	}
	notification.ShowInfo(notification.AppName+" update", res.Message)
}

// toastNotifier routes loop feedback to desktop notifications.
type toastNotifier struct{}

func (toastNotifier) ShowResult(text string) { notification.ShowResult(text) }

func (toastNotifier) ShowError(message string) { notification.ShowError(message) }
