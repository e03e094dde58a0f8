package hotkey

import (
	"context"
	"log"
	"sync"

	gohook "github.com/robotn/gohook"
)

type keyState struct {
	name     string
	rawcodes []uint16
	pressed  bool
}

// matcher tracks which keys of one combination are held.
type matcher struct {
	keys []keyState
}

func newMatcher(combo string) (*matcher, error) {
	if err := Validate(combo); err != nil {
		return nil, err
	}
	m := &matcher{}
	for _, name := range parseHotkey(combo) {
		m.keys = append(m.keys, keyState{name: name, rawcodes: keyNameToRawcodes(name)})
	}
	return m, nil
}

// down records a key press and reports whether the full combination is held.
// Firing resets the state so a held combination fires once.
func (m *matcher) down(rawcode uint16) bool {
	for i := range m.keys {
		for _, rc := range m.keys[i].rawcodes {
			if rc == rawcode {
				m.keys[i].pressed = true
				break
			}
		}
	}
	for i := range m.keys {
		if !m.keys[i].pressed {
			return false
		}
	}
	for i := range m.keys {
		m.keys[i].pressed = false
	}
	return true
}

func (m *matcher) up(rawcode uint16) {
	for i := range m.keys {
		for _, rc := range m.keys[i].rawcodes {
			if rc == rawcode {
				m.keys[i].pressed = false
				break
			}
		}
	}
}

// Listener fires a callback when its combination is pressed. The combination
// can be swapped while running.
type Listener struct {
	mu       sync.Mutex
	combo    string
	matcher  *matcher
	callback func()
}

func NewListener(combo string, callback func()) (*Listener, error) {
	m, err := newMatcher(combo)
	if err != nil {
		return nil, err
	}
	log.Printf("Hotkey: configured %s (%v)", combo, parseHotkey(combo))
	return &Listener{combo: combo, matcher: m, callback: callback}, nil
}

// SetCombo rebinds the listener. An invalid combination leaves the old one active.
func (l *Listener) SetCombo(combo string) error {
	m, err := newMatcher(combo)
	if err != nil {
		return err
	}
	l.mu.Lock()
	old := l.combo
	l.combo = combo
	l.matcher = m
	l.mu.Unlock()
	if old != combo {
		log.Printf("Hotkey: rebound %s -> %s", old, combo)
	}
	return nil
}

func (l *Listener) Combo() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.combo
}

// Run consumes global keyboard events until ctx is done.
func (l *Listener) Run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC in hotkey listener: %v", r)
		}
	}()

	evChan := gohook.Start()
	if evChan == nil {
		log.Printf("ERROR: gohook.Start() returned nil channel")
		return
	}
	defer gohook.End()
	log.Printf("Hotkey: listening for %s", l.Combo())

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-evChan:
			if !ok {
				log.Printf("Hotkey: event channel closed")
				return
			}
			l.handle(ev.Kind, ev.Rawcode)
		}
	}
}

func (l *Listener) handle(kind uint8, rawcode uint16) {
	var fire bool
	l.mu.Lock()
	switch kind {
	case gohook.KeyDown, gohook.KeyHold:
		fire = l.matcher.down(rawcode)
	case gohook.KeyUp:
		l.matcher.up(rawcode)
	}
	combo := l.combo
	l.mu.Unlock()

	if fire {
		log.Printf("Hotkey: %s activated", combo)
		if l.callback != nil {
			l.callback()
		}
	}
}
