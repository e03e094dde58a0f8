package bridge

import (
	"log"
	"sync"

	"open-rewrite/src/rewrite"
)

const (
	EventSelection       = "selection"
	EventResult          = "result"
	EventError           = "error"
	EventCanceled        = "canceled"
	EventSettingsChanged = "settings_changed"

	clientBuffer = 64
)

// Event is pushed to every connected WebSocket client.
type Event struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	Seq      uint64 `json:"seq,omitempty"`
	Category string `json:"category,omitempty"`
	Option   string `json:"option,omitempty"`
	Text     string `json:"text,omitempty"`
	Error    string `json:"error,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

// Hub fans events out to subscribers. Slow subscribers lose events rather
// than stall the publisher.
type Hub struct {
	mu      sync.Mutex
	clients map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan Event]struct{})}
}

func (h *Hub) Subscribe() chan Event {
	ch := make(chan Event, clientBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes ch and closes it.
func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- e:
		default:
			log.Printf("Bridge: dropping %s event for slow client", e.Type)
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// OutcomeEvent describes a finished request.
func OutcomeEvent(hd *rewrite.Handle, out rewrite.Outcome) Event {
	e := Event{ID: hd.ID, Seq: hd.Seq, Category: hd.Category, Option: hd.Option}
	switch {
	case out.Err == nil:
		e.Type = EventResult
		e.Text = out.Text
	case out.Kind() == rewrite.KindCanceled:
		e.Type = EventCanceled
		e.Error = out.Err.Error()
		e.Kind = string(out.Kind())
	default:
		e.Type = EventError
		e.Error = out.Err.Error()
		e.Kind = string(out.Kind())
	}
	return e
}
