package eventloop

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"open-rewrite/src/history"
	"open-rewrite/src/llm"
	"open-rewrite/src/rewrite"
	"open-rewrite/src/settings"
	"open-rewrite/src/singleinstance"
	"open-rewrite/src/worker"
)

type fakeServer struct {
	conns chan singleinstance.Conn
}

func newFakeServer() *fakeServer { return &fakeServer{conns: make(chan singleinstance.Conn, 4)} }

func (s *fakeServer) Start(context.Context) error { return nil }

func (s *fakeServer) Port() int { return 0 }

func (s *fakeServer) Close() error { return nil }

func (s *fakeServer) Next(ctx context.Context) (singleinstance.Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case c := <-s.conns:
		return c, nil
	}
}

type fakeConn struct {
	stdout bool
	mu     sync.Mutex
	ok     []string
	errs   []string
	closed chan struct{}
}

func newFakeConn(stdout bool) *fakeConn { return &fakeConn{stdout: stdout, closed: make(chan struct{})} }

func (c *fakeConn) Request() singleinstance.Request {
	return singleinstance.Request{OutputToStdout: c.stdout}
}

func (c *fakeConn) RespondSuccess(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ok = append(c.ok, text)
	return nil
}

func (c *fakeConn) RespondError(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, msg)
	return nil
}

func (c *fakeConn) Close() error {
	close(c.closed)
	return nil
}

func (c *fakeConn) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("connection never answered")
	}
}

// gatedCapture returns text, optionally after gate is closed.
type gatedCapture struct {
	text string
	gate chan struct{}
}

func (g gatedCapture) Capture(ctx context.Context) (string, error) {
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return g.text, nil
}

type upper struct{}

func (upper) Submit(ctx context.Context, req llm.Request, cb worker.ResultCallback) bool {
	go cb(strings.ToUpper(req.Input), nil)
	return true
}

type source struct{}

func (source) Snapshot() settings.Settings { return settings.Defaults() }

type clip struct {
	mu       sync.Mutex
	copied   []string
	replaced []string
}

func (c *clip) CopyText(t string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.copied = append(c.copied, t)
	return nil
}

func (c *clip) ReplaceText(t string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaced = append(c.replaced, t)
	return nil
}

type notes struct {
	results chan string
	errs    chan string
}

func newNotes() *notes { return &notes{results: make(chan string, 4), errs: make(chan string, 4)} }

func (n *notes) ShowResult(text string) { n.results <- text }

func (n *notes) ShowError(message string) { n.errs <- message }

type harness struct {
	loop   *Loop
	srv    *fakeServer
	clip   *clip
	notes  *notes
	hist   *history.History
	cancel context.CancelFunc
}

func start(t *testing.T, capture Capturer, opts Options) *harness {
	t.Helper()
	c := &clip{}
	orch := rewrite.New(source{}, upper{}, c, rewrite.Options{})
	t.Cleanup(orch.Close)
	hist, _ := history.New(5)
	n := newNotes()
	srv := newFakeServer()

	opts.Capture = capture
	opts.Rewriter = orch
	opts.Server = srv
	opts.History = hist
	opts.Notifier = n
	loop := New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &harness{loop: loop, srv: srv, clip: c, notes: n, hist: hist, cancel: cancel}
}

func recv(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return ""
	}
}

func TestHotkeyCopiesQuickRewrite(t *testing.T) {
	h := start(t, gatedCapture{text: "hello"}, Options{QuickAction: "tones/Friendly"})
	h.loop.Trigger()

	if got := recv(t, h.notes.results); got != "HELLO" {
		t.Fatalf("toast = %q", got)
	}
	h.clip.mu.Lock()
	copied := append([]string(nil), h.clip.copied...)
	h.clip.mu.Unlock()
	if len(copied) != 1 || copied[0] != "HELLO" {
		t.Fatalf("copied = %v", copied)
	}
	e, ok := h.hist.LastSuccess()
	if !ok || e.Text != "HELLO" || e.Category != "tones" || e.Option != "Friendly" {
		t.Fatalf("history = %+v, %v", e, ok)
	}
}

func TestHotkeyAutoReplace(t *testing.T) {
	h := start(t, gatedCapture{text: "abc"}, Options{QuickAction: "formats/Summary", AutoReplace: true})
	h.loop.Trigger()
	recv(t, h.notes.results)

	h.clip.mu.Lock()
	defer h.clip.mu.Unlock()
	if len(h.clip.replaced) != 1 || h.clip.replaced[0] != "ABC" || len(h.clip.copied) != 0 {
		t.Fatalf("replaced=%v copied=%v", h.clip.replaced, h.clip.copied)
	}
}

func TestHotkeyEmptySelection(t *testing.T) {
	h := start(t, gatedCapture{text: "   "}, Options{QuickAction: "tones/Friendly"})
	h.loop.Trigger()

	if got := recv(t, h.notes.errs); got != rewrite.EmptySelectionMessage {
		t.Fatalf("error toast = %q", got)
	}
	e, ok := h.hist.Latest()
	if !ok || e.Kind != string(rewrite.KindEmptySelection) {
		t.Fatalf("history = %+v", e)
	}
}

func TestDelegatedStdout(t *testing.T) {
	h := start(t, gatedCapture{text: "pipe me"}, Options{QuickAction: "tones/Casual"})
	conn := newFakeConn(true)
	h.srv.conns <- conn
	conn.wait(t)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.ok) != 1 || conn.ok[0] != "PIPE ME" {
		t.Fatalf("ok=%v errs=%v", conn.ok, conn.errs)
	}
}

func TestDelegatedClipboard(t *testing.T) {
	h := start(t, gatedCapture{text: "clip me"}, Options{QuickAction: "tones/Casual"})
	conn := newFakeConn(false)
	h.srv.conns <- conn
	conn.wait(t)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.ok) != 1 || conn.ok[0] != "" {
		t.Fatalf("ok=%v errs=%v", conn.ok, conn.errs)
	}
	h.clip.mu.Lock()
	defer h.clip.mu.Unlock()
	if len(h.clip.copied) != 1 || h.clip.copied[0] != "CLIP ME" {
		t.Fatalf("copied = %v", h.clip.copied)
	}
}

func TestDelegatedWhileBusy(t *testing.T) {
	gate := make(chan struct{})
	h := start(t, gatedCapture{text: "x", gate: gate}, Options{QuickAction: "tones/Casual"})
	h.loop.Trigger()

	// Give the loop a moment to start the first capture.
	time.Sleep(50 * time.Millisecond)
	conn := newFakeConn(true)
	h.srv.conns <- conn
	conn.wait(t)

	conn.mu.Lock()
	errs := append([]string(nil), conn.errs...)
	conn.mu.Unlock()
	if len(errs) != 1 || errs[0] != ErrBusy.Error() {
		t.Fatalf("errs = %v", errs)
	}
	close(gate)
	recv(t, h.notes.results)
}

func TestDelegatedWithoutQuickAction(t *testing.T) {
	h := start(t, gatedCapture{text: "x"}, Options{})
	conn := newFakeConn(true)
	h.srv.conns <- conn
	conn.wait(t)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.errs) != 1 || conn.errs[0] != ErrNoQuickAction.Error() {
		t.Fatalf("errs = %v", conn.errs)
	}
}

func TestCopyLast(t *testing.T) {
	h := start(t, gatedCapture{text: "again"}, Options{QuickAction: "tones/Polite"})
	if err := h.loop.CopyLast(); err == nil {
		t.Fatal("expected error before any rewrite")
	}
	h.loop.Trigger()
	recv(t, h.notes.results)

	if err := h.loop.CopyLast(); err != nil {
		t.Fatalf("CopyLast: %v", err)
	}
	h.clip.mu.Lock()
	defer h.clip.mu.Unlock()
	if len(h.clip.copied) != 2 || h.clip.copied[1] != "AGAIN" {
		t.Fatalf("copied = %v", h.clip.copied)
	}
}

func TestMalformedQuickActionIgnored(t *testing.T) {
	l := New(Options{QuickAction: "tones", Server: newFakeServer()})
	if l.category != "" || l.option != "" {
		t.Fatalf("category=%q option=%q", l.category, l.option)
	}
}
