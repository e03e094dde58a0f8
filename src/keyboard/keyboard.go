// Package keyboard synthesizes the copy and paste shortcuts.
package keyboard

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

// Sender presses shortcut chords on the virtual keyboard. Calls are serialized.
type Sender struct {
	mu sync.Mutex
	kb keybd_event.KeyBonding
}

func New() (*Sender, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("keyboard: %w", err)
	}
	// The uinput device on Linux needs a moment before it accepts events.
	if runtime.GOOS == "linux" {
		time.Sleep(2 * time.Second)
	}
	return &Sender{kb: kb}, nil
}

// ReleaseModifiers lifts Alt, Ctrl and Shift so a held hotkey modifier does
// not combine with the synthesized chord.
func (s *Sender) ReleaseModifiers() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kb.Clear()
	s.kb.HasALT(true)
	s.kb.HasCTRL(true)
	s.kb.HasSHIFT(true)
	return s.kb.Release()
}

func (s *Sender) Copy() error { return s.chord(keybd_event.VK_C) }

func (s *Sender) Paste() error { return s.chord(keybd_event.VK_V) }

func (s *Sender) chord(key int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kb.Clear()
	if runtime.GOOS == "darwin" {
		s.kb.HasSuper(true)
	} else {
		s.kb.HasCTRL(true)
	}
	s.kb.SetKeys(key)
	return s.kb.Launching()
}
