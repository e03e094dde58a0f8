// Package history keeps the most recent rewrite outcomes in memory.
package history

import (
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultSize = 20

type Entry struct {
	ID       string    `json:"id"`
	Seq      uint64    `json:"seq"`
	Category string    `json:"category,omitempty"`
	Option   string    `json:"option,omitempty"`
	Custom   bool      `json:"custom,omitempty"`
	Text     string    `json:"text,omitempty"`
	Error    string    `json:"error,omitempty"`
	Kind     string    `json:"kind,omitempty"`
	At       time.Time `json:"at"`
}

func (e Entry) OK() bool { return e.Error == "" }

// History is a bounded, ID-keyed store of outcomes. Oldest entries fall out first.
type History struct {
	mu     sync.Mutex
	cache  *lru.Cache[string, Entry]
	latest string
	lastOK string
}

func New(size int) (*History, error) {
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, err
	}
	return &History{cache: cache}, nil
}

// Add records e. Entries older than the current latest do not move the latest markers.
func (h *History) Add(e Entry) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cache.Add(e.ID, e)
	if cur, ok := h.cache.Peek(h.latest); !ok || e.Seq >= cur.Seq {
		h.latest = e.ID
	}
	if e.OK() {
		if cur, ok := h.cache.Peek(h.lastOK); !ok || e.Seq >= cur.Seq {
			h.lastOK = e.ID
		}
	}
}

func (h *History) Get(id string) (Entry, bool) {
	return h.cache.Peek(id)
}

// Latest returns the newest outcome by sequence, success or failure.
func (h *History) Latest() (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cache.Peek(h.latest)
}

// LastSuccess returns the newest successful outcome.
func (h *History) LastSuccess() (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cache.Peek(h.lastOK)
}

// Recent returns all kept entries, newest first.
func (h *History) Recent() []Entry {
	out := h.cache.Values()
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	return out
}

func (h *History) Len() int { return h.cache.Len() }
