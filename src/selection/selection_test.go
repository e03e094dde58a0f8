package selection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeDesktop models a focused app with a selection and a clipboard.
type fakeDesktop struct {
	mu        sync.Mutex
	clipboard string
	selection string
	pasted    []string
	events    []string
	copyErr   error
	// image stands in for clipboard content with no text form.
	image bool
	// readErrAfter fails every Read after that many successful ones.
	readErrAfter int
	reads        int
}

func (d *fakeDesktop) Read() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	if d.readErrAfter > 0 && d.reads > d.readErrAfter {
		return "", errors.New("clipboard busy")
	}
	if d.image {
		return "", nil
	}
	return d.clipboard, nil
}

func (d *fakeDesktop) Write(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clipboard = text
	d.image = false
	d.events = append(d.events, "write")
	return nil
}

func (d *fakeDesktop) ReleaseModifiers() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, "release")
	return nil
}

func (d *fakeDesktop) Copy() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, "copy")
	if d.copyErr != nil {
		return d.copyErr
	}
	if d.selection != "" {
		d.clipboard = d.selection
		d.image = false
	}
	return nil
}

func (d *fakeDesktop) Paste() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, "paste")
	d.pasted = append(d.pasted, d.clipboard)
	return nil
}

func TestCaptureReturnsSelection(t *testing.T) {
	d := &fakeDesktop{clipboard: "old", selection: "hello there"}
	c := New(d, d, time.Millisecond)

	got, err := c.Capture(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello there" {
		t.Fatalf("expected selection, got %q", got)
	}
}

func TestCaptureNothingSelectedRestoresClipboard(t *testing.T) {
	d := &fakeDesktop{clipboard: "keep me"}
	c := New(d, d, time.Millisecond)

	got, err := c.Capture(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Fatalf("expected empty capture, got %q", got)
	}
	if d.clipboard != "keep me" {
		t.Fatalf("expected clipboard restored, got %q", d.clipboard)
	}
}

func TestCaptureCopyFailure(t *testing.T) {
	d := &fakeDesktop{clipboard: "keep me", copyErr: errors.New("no focus")}
	c := New(d, d, time.Millisecond)
	if _, err := c.Capture(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if d.clipboard != "keep me" {
		t.Fatalf("expected clipboard restored, got %q", d.clipboard)
	}
}

func TestCaptureSecondReadFailureRestoresClipboard(t *testing.T) {
	d := &fakeDesktop{clipboard: "keep me", selection: "picked", readErrAfter: 1}
	c := New(d, d, time.Millisecond)
	if _, err := c.Capture(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if d.clipboard != "keep me" {
		t.Fatalf("expected clipboard restored, got %q", d.clipboard)
	}
}

func TestCaptureNothingSelectedKeepsNonTextClipboard(t *testing.T) {
	d := &fakeDesktop{image: true}
	c := New(d, d, time.Millisecond)

	got, err := c.Capture(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Fatalf("expected empty capture, got %q", got)
	}
	if !d.image {
		t.Fatal("non-text clipboard content was overwritten")
	}
	for _, e := range d.events {
		if e == "write" {
			t.Fatalf("unexpected clipboard write, events %v", d.events)
		}
	}
}

func TestCaptureFromNonTextClipboardReturnsSelection(t *testing.T) {
	d := &fakeDesktop{image: true, selection: "over an image"}
	c := New(d, d, time.Millisecond)
	got, err := c.Capture(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "over an image" {
		t.Fatalf("expected selection, got %q", got)
	}
}

func TestCaptureHonorsContext(t *testing.T) {
	d := &fakeDesktop{selection: "x"}
	c := New(d, d, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Capture(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGetHighlightedText(t *testing.T) {
	d := &fakeDesktop{selection: "async"}
	c := New(d, d, time.Millisecond)
	got := make(chan string, 1)
	c.GetHighlightedText(func(text string) { got <- text })
	select {
	case text := <-got:
		if text != "async" {
			t.Fatalf("unexpected text %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback not invoked")
	}
}

func TestReplaceTextWritesThenPastes(t *testing.T) {
	d := &fakeDesktop{}
	c := New(d, d, time.Millisecond)
	if err := c.ReplaceText("new text"); err != nil {
		t.Fatal(err)
	}
	if len(d.pasted) != 1 || d.pasted[0] != "new text" {
		t.Fatalf("unexpected pastes %v", d.pasted)
	}
	want := []string{"write", "release", "paste"}
	if len(d.events) != len(want) {
		t.Fatalf("unexpected events %v", d.events)
	}
	for i := range want {
		if d.events[i] != want[i] {
			t.Fatalf("unexpected events %v", d.events)
		}
	}
}

func TestCopyText(t *testing.T) {
	d := &fakeDesktop{}
	c := New(d, d, 0)
	if err := c.CopyText("copied"); err != nil {
		t.Fatal(err)
	}
	if d.clipboard != "copied" || len(d.pasted) != 0 {
		t.Fatalf("unexpected state clipboard=%q pasted=%v", d.clipboard, d.pasted)
	}
}
