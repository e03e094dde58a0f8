package bridge

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"open-rewrite/src/settings"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

func (h *handler) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Settings.Get())
}

// putSettings replaces the whole record. Partial records are rejected.
func (h *handler) putSettings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	next, err := settings.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.deps.ValidateHotkey != nil {
		if err := h.deps.ValidateHotkey(next.Hotkey); err != nil {
			writeError(w, http.StatusBadRequest, "invalid hotkey: "+err.Error())
			return
		}
	}
	if err := h.deps.Settings.Save(next); err != nil {
		var verr *settings.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Settings.Get())
}

func (h *handler) resetSettings(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Settings.Reset(); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset settings")
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Settings.Get())
}

func (h *handler) getPrompt(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	option := chi.URLParam(r, "option")
	entry, ok := h.deps.Settings.Prompt(category, option)
	if !ok {
		writeError(w, http.StatusNotFound, "prompt not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
