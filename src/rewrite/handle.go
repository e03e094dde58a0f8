package rewrite

import (
	"context"
	"sync"

	"open-rewrite/src/llm"
)

// Outcome is the single result of one rewrite request.
type Outcome struct {
	Text string
	Err  error
}

func (o Outcome) Kind() ErrorKind { return KindOf(o.Err) }

// Handle tracks one dispatched request. Seq grows with every dispatch, so a
// caller can drop results that arrive after a newer request started.
type Handle struct {
	ID       string
	Seq      uint64
	Category string
	Option   string
	Custom   bool

	orch      *Orchestrator
	cancel    context.CancelFunc
	onSuccess func(string)
	onError   func(error)

	done    chan struct{}
	once    sync.Once
	outcome Outcome
}

// Cancel aborts the request. The error callback fires at once with a
// canceled error unless the request already finished.
func (h *Handle) Cancel() {
	if h.orch == nil {
		return
	}
	h.orch.complete(h, Outcome{Err: &llm.Error{Kind: llm.KindCanceled, Err: context.Canceled}})
}

func (h *Handle) Done() <-chan struct{} { return h.done }

// Outcome blocks until the request has finished.
func (h *Handle) Outcome() Outcome {
	<-h.done
	return h.outcome
}

// Stale reports whether a newer request has been dispatched since this one.
func (h *Handle) Stale() bool {
	return h.orch != nil && h.orch.Latest() != h.Seq
}

// finish records the outcome once; later calls report false.
func (h *Handle) finish(o Outcome) bool {
	first := false
	h.once.Do(func() {
		first = true
		h.outcome = o
		if h.cancel != nil {
			h.cancel()
		}
		close(h.done)
	})
	return first
}
