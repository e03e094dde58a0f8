// Package selection grabs the highlighted text of the focused application by
// way of the clipboard, and writes results back the same way.
package selection

import (
	"context"
	"log"
	"sync"
	"time"

	"open-rewrite/src/logutil"
)

type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

type Keys interface {
	ReleaseModifiers() error
	Copy() error
	Paste() error
}

const DefaultSettle = 100 * time.Millisecond

// Capturer runs one clipboard round trip at a time.
type Capturer struct {
	clip   Clipboard
	keys   Keys
	settle time.Duration
	mu     sync.Mutex
}

func New(clip Clipboard, keys Keys, settle time.Duration) *Capturer {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Capturer{clip: clip, keys: keys, settle: settle}
}

// Capture copies the current selection and returns it. An empty result means
// nothing was selected; the previous clipboard text is then put back. Content
// that has no text form (images, files) reads as "" and is left untouched
// unless the copy itself replaces it.
func (c *Capturer) Capture(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	previous, err := c.clip.Read()
	if err != nil {
		return "", err
	}
	restore := func() {
		if previous == "" {
			return
		}
		if err := c.clip.Write(previous); err != nil {
			log.Printf("Selection: restoring clipboard failed: %v", err)
		}
	}
	if previous != "" {
		if err := c.clip.Write(""); err != nil {
			return "", err
		}
	}
	if err := c.keys.ReleaseModifiers(); err != nil {
		log.Printf("Selection: releasing modifiers failed: %v", err)
	}
	if err := c.keys.Copy(); err != nil {
		restore()
		return "", err
	}
	if err := c.wait(ctx); err != nil {
		restore()
		return "", err
	}

	text, err := c.clip.Read()
	if err != nil {
		restore()
		return "", err
	}
	if text == "" {
		restore()
	}
	log.Printf("Selection: captured %d chars: %q", len(text), logutil.Preview(text))
	return text, nil
}

// GetHighlightedText captures on its own goroutine and hands the text to cb.
// Failures are logged and delivered as "".
func (c *Capturer) GetHighlightedText(cb func(text string)) {
	go func() {
		text, err := c.Capture(context.Background())
		if err != nil {
			log.Printf("Selection: capture failed: %v", err)
			text = ""
		}
		cb(text)
	}()
}

func (c *Capturer) CopyText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clip.Write(text)
}

// ReplaceText pastes text over the selection of the focused application.
func (c *Capturer) ReplaceText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.clip.Write(text); err != nil {
		return err
	}
	if err := c.keys.ReleaseModifiers(); err != nil {
		log.Printf("Selection: releasing modifiers failed: %v", err)
	}
	if err := c.wait(context.Background()); err != nil {
		return err
	}
	return c.keys.Paste()
}

func (c *Capturer) wait(ctx context.Context) error {
	t := time.NewTimer(c.settle)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
