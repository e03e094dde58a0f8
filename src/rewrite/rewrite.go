// Package rewrite turns a selection plus a prompt choice into one
// asynchronous model call with exactly one callback.
package rewrite

import (
	"context"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"open-rewrite/src/llm"
	"open-rewrite/src/logutil"
	"open-rewrite/src/settings"
	"open-rewrite/src/worker"
)

// SettingsSource yields a full settings snapshot with the effective API key.
type SettingsSource interface {
	Snapshot() settings.Settings
}

type Dispatcher interface {
	Submit(ctx context.Context, req llm.Request, cb worker.ResultCallback) bool
}

// ClipboardBridge writes results back to the system.
type ClipboardBridge interface {
	CopyText(text string) error
	ReplaceText(text string) error
}

type Options struct {
	// Timeout bounds each request. Zero leaves it to the completer.
	Timeout time.Duration
	// CancelSuperseded cancels older in-flight requests on every new dispatch.
	CancelSuperseded bool
}

type Orchestrator struct {
	source   SettingsSource
	dispatch Dispatcher
	clip     ClipboardBridge
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc

	seq atomic.Uint64

	mu       sync.Mutex
	inflight map[string]*Handle
	closed   bool

	replaceMu sync.Mutex
}

func New(source SettingsSource, dispatch Dispatcher, clip ClipboardBridge, opts Options) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		source:   source,
		dispatch: dispatch,
		clip:     clip,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[string]*Handle),
	}
}

// Rewrite rewrites text with the catalog entry category/option.
//
// A non-nil error means nothing was dispatched and no callback will fire.
// Otherwise exactly one of onSuccess or onError fires: synchronously for an
// empty selection or a full queue, later from a worker goroutine for a
// dispatched request. After Close every call returns ErrClosed, an empty
// selection included, and no callback fires.
func (o *Orchestrator) Rewrite(text, option, category string, onSuccess func(string), onError func(error)) (*Handle, error) {
	if blank(text) {
		return o.rejectEmpty(category, option, false, onSuccess, onError)
	}

	snap := o.source.Snapshot()
	entry, ok := snap.Catalog.Lookup(category, option)
	if !ok {
		log.Printf("Orchestrator: unknown prompt %s/%s", category, option)
		return nil, &MissingPromptError{Category: category, Option: option}
	}

	req := llm.Request{
		Model:         snap.ModelConfig(),
		SystemMessage: snap.SystemMessage,
		Instruction:   entry.Instruction,
		Input:         text,
	}
	return o.dispatchRequest(req, category, option, false, onSuccess, onError)
}

// RewriteCustom rewrites text with a free-form instruction under the custom
// system message. Callbacks and ErrClosed behave as for Rewrite.
func (o *Orchestrator) RewriteCustom(text, instruction string, onSuccess func(string), onError func(error)) (*Handle, error) {
	if blank(text) {
		return o.rejectEmpty("", "", true, onSuccess, onError)
	}
	if blank(instruction) {
		return nil, ErrEmptyInstruction
	}

	snap := o.source.Snapshot()
	req := llm.Request{
		Model:         snap.ModelConfig(),
		SystemMessage: snap.CustomSystem(),
		Instruction:   instruction,
		Input:         text,
	}
	return o.dispatchRequest(req, "", "", true, onSuccess, onError)
}

func (o *Orchestrator) rejectEmpty(category, option string, custom bool, onSuccess func(string), onError func(error)) (*Handle, error) {
	h, err := o.newHandle(category, option, custom, onSuccess, onError)
	if err != nil {
		return nil, err
	}
	log.Printf("Orchestrator: request %d rejected, empty selection", h.Seq)
	o.complete(h, Outcome{Err: ErrEmptySelection})
	return h, nil
}

func (o *Orchestrator) newHandle(category, option string, custom bool, onSuccess func(string), onError func(error)) (*Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, ErrClosed
	}
	return &Handle{
		ID:        uuid.NewString(),
		Seq:       o.seq.Add(1),
		Category:  category,
		Option:    option,
		Custom:    custom,
		orch:      o,
		onSuccess: onSuccess,
		onError:   onError,
		done:      make(chan struct{}),
	}, nil
}

func (o *Orchestrator) dispatchRequest(req llm.Request, category, option string, custom bool, onSuccess func(string), onError func(error)) (*Handle, error) {
	h, err := o.newHandle(category, option, custom, onSuccess, onError)
	if err != nil {
		return nil, err
	}

	var ctx context.Context
	if o.opts.Timeout > 0 {
		ctx, h.cancel = context.WithTimeout(o.ctx, o.opts.Timeout)
	} else {
		ctx, h.cancel = context.WithCancel(o.ctx)
	}

	var superseded []*Handle
	o.mu.Lock()
	if o.opts.CancelSuperseded {
		for _, prev := range o.inflight {
			superseded = append(superseded, prev)
		}
	}
	o.inflight[h.ID] = h
	o.mu.Unlock()
	for _, prev := range superseded {
		log.Printf("Orchestrator: canceling superseded request %d", prev.Seq)
		prev.Cancel()
	}
	if err := o.ctx.Err(); err != nil {
		o.complete(h, Outcome{Err: &llm.Error{Kind: llm.KindCanceled, Err: err}})
		return h, nil
	}

	log.Printf("Orchestrator: dispatching request %d (%s) model=%s input=%q", h.Seq, describe(h), req.Model.Name, logutil.Preview(req.Input))
	accepted := o.dispatch.Submit(ctx, req, func(text string, err error) {
		o.complete(h, Outcome{Text: text, Err: err})
	})
	if !accepted {
		log.Printf("Orchestrator: request %d rejected, queue full", h.Seq)
		o.complete(h, Outcome{Err: ErrBusy})
	}
	return h, nil
}

func (o *Orchestrator) complete(h *Handle, out Outcome) {
	if !h.finish(out) {
		return
	}
	o.mu.Lock()
	delete(o.inflight, h.ID)
	o.mu.Unlock()

	if out.Err != nil {
		log.Printf("Orchestrator: request %d failed (%s): %v", h.Seq, out.Kind(), out.Err)
		if h.onError != nil {
			h.onError(out.Err)
		}
		return
	}
	log.Printf("Orchestrator: request %d succeeded, %d chars", h.Seq, len(out.Text))
	if h.onSuccess != nil {
		h.onSuccess(out.Text)
	}
}

// Latest is the sequence number of the most recent request.
func (o *Orchestrator) Latest() uint64 { return o.seq.Load() }

// IsStale reports whether h has been superseded by a newer request.
func (o *Orchestrator) IsStale(h *Handle) bool { return h == nil || h.Seq != o.Latest() }

// Cancel aborts the in-flight request with the given ID.
func (o *Orchestrator) Cancel(id string) bool {
	o.mu.Lock()
	h, ok := o.inflight[id]
	o.mu.Unlock()
	if ok {
		h.Cancel()
	}
	return ok
}

// InFlight returns the number of dispatched requests still waiting for a result.
func (o *Orchestrator) InFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.inflight)
}

// CopyResult puts text on the clipboard once. Errors are returned as is.
func (o *Orchestrator) CopyResult(text string) error {
	log.Printf("Orchestrator: copying result, %d chars", len(text))
	return o.clip.CopyText(text)
}

// ReplaceResult pastes text over the current selection. Replacements never
// interleave.
func (o *Orchestrator) ReplaceResult(text string) error {
	o.replaceMu.Lock()
	defer o.replaceMu.Unlock()
	log.Printf("Orchestrator: replacing selection, %d chars", len(text))
	return o.clip.ReplaceText(text)
}

// Close cancels every in-flight request and rejects new ones. Pending
// requests get their error callback.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	pending := make([]*Handle, 0, len(o.inflight))
	for _, h := range o.inflight {
		pending = append(pending, h)
	}
	o.mu.Unlock()
	o.cancel()
	for _, h := range pending {
		h.Cancel()
	}
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func describe(h *Handle) string {
	if h.Custom {
		return "custom"
	}
	return h.Category + "/" + h.Option
}
