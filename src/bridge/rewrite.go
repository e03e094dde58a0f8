package bridge

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"open-rewrite/src/history"
	"open-rewrite/src/rewrite"
)

type rewriteRequest struct {
	Text        string `json:"text"`
	Category    string `json:"category"`
	Option      string `json:"option"`
	Instruction string `json:"instruction"`
	// Wait holds the response until the rewrite finishes.
	Wait bool `json:"wait"`
}

type rewriteResponse struct {
	ID     string `json:"id"`
	Seq    uint64 `json:"seq"`
	Status string `json:"status"`
	Text   string `json:"text,omitempty"`
	Error  string `json:"error,omitempty"`
	Kind   string `json:"kind,omitempty"`
}

func (h *handler) postRewrite(w http.ResponseWriter, r *http.Request) {
	var req rewriteRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	hd, err := h.deps.Rewriter.Rewrite(req.Text, req.Option, req.Category, nil, nil)
	h.respondDispatch(w, r, hd, err, req.Wait)
}

func (h *handler) postRewriteCustom(w http.ResponseWriter, r *http.Request) {
	var req rewriteRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	hd, err := h.deps.Rewriter.RewriteCustom(req.Text, req.Instruction, nil, nil)
	h.respondDispatch(w, r, hd, err, req.Wait)
}

func (h *handler) respondDispatch(w http.ResponseWriter, r *http.Request, hd *rewrite.Handle, err error, wait bool) {
	if err != nil {
		var missing *rewrite.MissingPromptError
		switch {
		case errors.As(err, &missing):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, rewrite.ErrEmptyInstruction):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, rewrite.ErrClosed):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	go h.track(hd)

	if wait {
		select {
		case <-hd.Done():
		case <-r.Context().Done():
			log.Printf("Bridge: client left, canceling request %d", hd.Seq)
			hd.Cancel()
			return
		}
	}
	select {
	case <-hd.Done():
		writeJSON(w, http.StatusOK, responseFor(hd, hd.Outcome()))
	default:
		writeJSON(w, http.StatusAccepted, rewriteResponse{ID: hd.ID, Seq: hd.Seq, Status: "pending"})
	}
}

// track publishes the outcome and records it once the request finishes.
func (h *handler) track(hd *rewrite.Handle) {
	<-hd.Done()
	out := hd.Outcome()
	h.deps.Hub.Publish(OutcomeEvent(hd, out))
	if h.deps.History != nil {
		h.deps.History.Add(HistoryEntry(hd, out))
	}
}

func responseFor(hd *rewrite.Handle, out rewrite.Outcome) rewriteResponse {
	resp := rewriteResponse{ID: hd.ID, Seq: hd.Seq, Status: "done", Text: out.Text}
	if out.Err != nil {
		resp.Status = "error"
		resp.Text = ""
		resp.Error = out.Err.Error()
		resp.Kind = string(out.Kind())
	}
	return resp
}

// HistoryEntry converts a finished request for the history store.
func HistoryEntry(hd *rewrite.Handle, out rewrite.Outcome) history.Entry {
	e := history.Entry{
		ID:       hd.ID,
		Seq:      hd.Seq,
		Category: hd.Category,
		Option:   hd.Option,
		Custom:   hd.Custom,
		Text:     out.Text,
	}
	if out.Err != nil {
		e.Error = out.Err.Error()
		e.Kind = string(out.Kind())
	}
	return e
}

func (h *handler) cancelRewrite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.deps.Rewriter.Cancel(id) {
		writeError(w, http.StatusNotFound, "request not found or already finished")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"canceled": true})
}

func (h *handler) getHistory(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		writeJSON(w, http.StatusOK, []history.Entry{})
		return
	}
	writeJSON(w, http.StatusOK, h.deps.History.Recent())
}

type textRequest struct {
	Text string `json:"text"`
}

func (h *handler) copyText(w http.ResponseWriter, r *http.Request) {
	h.clipboardAction(w, r, h.deps.Rewriter.CopyResult)
}

func (h *handler) replaceText(w http.ResponseWriter, r *http.Request) {
	h.clipboardAction(w, r, h.deps.Rewriter.ReplaceResult)
}

func (h *handler) clipboardAction(w http.ResponseWriter, r *http.Request, do func(string) error) {
	var req textRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if err := do(req.Text); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
