// Package bridge exposes the local HTTP and WebSocket API a settings or popup
// UI talks to.
package bridge

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"open-rewrite/src/history"
	"open-rewrite/src/rewrite"
	"open-rewrite/src/settings"
	"open-rewrite/src/updater"
)

type SettingsStore interface {
	Get() settings.Settings
	Save(settings.Settings) error
	Reset() error
	Prompt(category, option string) (settings.PromptEntry, bool)
}

type Rewriter interface {
	Rewrite(text, option, category string, onSuccess func(string), onError func(error)) (*rewrite.Handle, error)
	RewriteCustom(text, instruction string, onSuccess func(string), onError func(error)) (*rewrite.Handle, error)
	Cancel(id string) bool
	CopyResult(text string) error
	ReplaceResult(text string) error
}

type UpdateChecker interface {
	CurrentVersion() string
	Check(ctx context.Context) (updater.Result, error)
	Download(ctx context.Context, url string) (string, error)
}

type StartupToggler interface {
	Enabled() (bool, error)
	Toggle() (bool, error)
}

// Deps are the collaborators behind the routes. Optional ones may be nil;
// their routes answer 501.
type Deps struct {
	Settings SettingsStore
	Rewriter Rewriter
	Hub      *Hub
	History  *history.History
	Updates  UpdateChecker
	Startup  StartupToggler

	// ValidateHotkey rejects hotkeys the listener cannot bind.
	ValidateHotkey func(string) error
	// ListIcons returns icon paths grouped by category.
	ListIcons func() (map[string][]string, error)
}

func RegisterRoutes(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if d.Hub == nil {
		d.Hub = NewHub()
	}
	h := &handler{deps: d}

	r.Get("/api/settings", h.getSettings)
	r.Put("/api/settings", h.putSettings)
	r.Post("/api/settings/reset", h.resetSettings)
	r.Get("/api/prompts/{category}/{option}", h.getPrompt)

	r.Post("/api/rewrite", h.postRewrite)
	r.Post("/api/rewrite/custom", h.postRewriteCustom)
	r.Post("/api/rewrite/{id}/cancel", h.cancelRewrite)
	r.Get("/api/history", h.getHistory)

	r.Post("/api/clipboard/copy", h.copyText)
	r.Post("/api/clipboard/replace", h.replaceText)

	r.Get("/api/icons", h.getIcons)
	r.Get("/api/version", h.getVersion)
	r.Get("/api/update", h.checkUpdate)
	r.Post("/api/update/download", h.downloadUpdate)
	r.Get("/api/startup", h.getStartup)
	r.Post("/api/startup/toggle", h.toggleStartup)

	r.Get("/api/ws", h.handleWS)

	return r
}

type handler struct {
	deps Deps
}

// Serve runs the API on addr until ctx ends.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Printf("Bridge: listening on http://%s", lis.Addr())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
