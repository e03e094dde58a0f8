package bridge

import (
	"net/http"

	"open-rewrite/src/updater"
)

func (h *handler) getIcons(w http.ResponseWriter, r *http.Request) {
	if h.deps.ListIcons == nil {
		writeError(w, http.StatusNotImplemented, "icons unavailable")
		return
	}
	icons, err := h.deps.ListIcons()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, icons)
}

func (h *handler) getVersion(w http.ResponseWriter, r *http.Request) {
	v := updater.Version
	if h.deps.Updates != nil {
		v = h.deps.Updates.CurrentVersion()
	}
	writeJSON(w, http.StatusOK, map[string]string{"version": v})
}

// checkUpdate reports check failures in the body, as the settings page expects.
func (h *handler) checkUpdate(w http.ResponseWriter, r *http.Request) {
	if h.deps.Updates == nil {
		writeError(w, http.StatusNotImplemented, "updates disabled")
		return
	}
	res, err := h.deps.Updates.Check(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"update_available": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) downloadUpdate(w http.ResponseWriter, r *http.Request) {
	if h.deps.Updates == nil {
		writeError(w, http.StatusNotImplemented, "updates disabled")
		return
	}
	var req struct {
		DownloadURL string `json:"download_url"`
	}
	if err := decodeBody(r, &req); err != nil || req.DownloadURL == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	path, err := h.deps.Updates.Download(r.Context(), req.DownloadURL)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (h *handler) getStartup(w http.ResponseWriter, r *http.Request) {
	if h.deps.Startup == nil {
		writeError(w, http.StatusNotImplemented, "startup toggle unavailable")
		return
	}
	on, err := h.deps.Startup.Enabled()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": on})
}

func (h *handler) toggleStartup(w http.ResponseWriter, r *http.Request) {
	if h.deps.Startup == nil {
		writeError(w, http.StatusNotImplemented, "startup toggle unavailable")
		return
	}
	on, err := h.deps.Startup.Toggle()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": on})
}
