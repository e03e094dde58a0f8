package session

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"open-rewrite/src/llm"
	"open-rewrite/src/rewrite"
	"open-rewrite/src/settings"
	"open-rewrite/src/singleinstance"
	"open-rewrite/src/worker"
)

type staticSource struct{}

func (staticSource) Snapshot() settings.Settings {
	s := settings.Defaults()
	s.APIKey = "sk-test"
	return s
}

// upperDispatcher answers every request with the upper-cased input after delay.
type upperDispatcher struct {
	delay time.Duration
	err   error
}

func (d upperDispatcher) Submit(ctx context.Context, req llm.Request, cb worker.ResultCallback) bool {
	go func() {
		select {
		case <-time.After(d.delay):
			if d.err != nil {
				cb("", d.err)
				return
			}
			cb(strings.ToUpper(req.Input), nil)
		case <-ctx.Done():
			cb("", ctx.Err())
		}
	}()
	return true
}

type nopClip struct{}

func (nopClip) CopyText(string) error { return nil }
func (nopClip) ReplaceText(string) error { return nil }

type fixedCapture struct {
	text string
	err  error
}

func (f fixedCapture) Capture(context.Context) (string, error) { return f.text, f.err }

type recordingTarget struct {
	success []string
	failure []error
	failOn  error
}

func (r *recordingTarget) OnSuccess(text string) error {
	r.success = append(r.success, text)
	return r.failOn
}

func (r *recordingTarget) OnFailure(err error) error {
	r.failure = append(r.failure, err)
	return nil
}

func newOrchestrator(d upperDispatcher) *rewrite.Orchestrator {
	return rewrite.New(staticSource{}, d, nopClip{}, rewrite.Options{})
}

func TestExecuteSuccess(t *testing.T) {
	orch := newOrchestrator(upperDispatcher{})
	defer orch.Close()
	target := &recordingTarget{}

	res, err := Execute(context.Background(), Options{
		Capture:  fixedCapture{text: "hello"},
		Rewriter: orch,
		Category: settings.CategoryTones,
		Option:   "Friendly",
		Target:   target,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Text != "HELLO" || len(target.success) != 1 || len(target.failure) != 0 {
		t.Fatalf("res=%+v target=%+v", res, target)
	}
}

func TestExecuteEmptySelection(t *testing.T) {
	orch := newOrchestrator(upperDispatcher{})
	defer orch.Close()
	target := &recordingTarget{}

	_, err := Execute(context.Background(), Options{
		Capture:  fixedCapture{text: "   "},
		Rewriter: orch,
		Category: settings.CategoryTones,
		Option:   "Friendly",
		Target:   target,
	})
	if !errors.Is(err, rewrite.ErrEmptySelection) {
		t.Fatalf("err = %v, want ErrEmptySelection", err)
	}
	if len(target.failure) != 1 || len(target.success) != 0 {
		t.Fatalf("target = %+v", target)
	}
}

func TestExecuteCaptureError(t *testing.T) {
	orch := newOrchestrator(upperDispatcher{})
	defer orch.Close()
	target := &recordingTarget{}
	boom := errors.New("no clipboard")

	_, err := Execute(context.Background(), Options{
		Capture:  fixedCapture{err: boom},
		Rewriter: orch,
		Target:   target,
	})
	if !errors.Is(err, boom) || len(target.failure) != 1 {
		t.Fatalf("err=%v target=%+v", err, target)
	}
}

func TestExecuteMissingPrompt(t *testing.T) {
	orch := newOrchestrator(upperDispatcher{})
	defer orch.Close()
	target := &recordingTarget{}

	_, err := Execute(context.Background(), Options{
		Capture:  fixedCapture{text: "hi"},
		Rewriter: orch,
		Category: settings.CategoryTones,
		Option:   "Pirate",
		Target:   target,
	})
	var mp *rewrite.MissingPromptError
	if !errors.As(err, &mp) {
		t.Fatalf("err = %v, want MissingPromptError", err)
	}
}

func TestExecuteContextCancels(t *testing.T) {
	orch := newOrchestrator(upperDispatcher{delay: time.Minute})
	defer orch.Close()
	target := &recordingTarget{}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Execute(ctx, Options{
		Capture:  fixedCapture{text: "slow"},
		Rewriter: orch,
		Category: settings.CategoryFormats,
		Option:   "Summary",
		Target:   target,
	})
	if rewrite.KindOf(err) != rewrite.KindCanceled {
		t.Fatalf("kind = %s, want canceled (err=%v)", rewrite.KindOf(err), err)
	}
}

func TestExecuteDeliveryFailure(t *testing.T) {
	orch := newOrchestrator(upperDispatcher{})
	defer orch.Close()
	boom := errors.New("paste failed")
	target := &recordingTarget{failOn: boom}

	_, err := Execute(context.Background(), Options{
		Capture:  fixedCapture{text: "x"},
		Rewriter: orch,
		Category: settings.CategoryTones,
		Option:   "Casual",
		Target:   target,
	})
	if !errors.Is(err, boom) || len(target.failure) != 1 {
		t.Fatalf("err=%v target=%+v", err, target)
	}
}

func TestExecuteRequiresCollaborators(t *testing.T) {
	if _, err := Execute(context.Background(), Options{}); err == nil {
		t.Fatal("expected error without collaborators")
	}
}

type fakeCopier struct {
	got string
	err error
}

func (f *fakeCopier) CopyResult(text string) error {
	f.got = text
	return f.err
}

type fakeReplacer struct{ err error }

func (f fakeReplacer) ReplaceResult(string) error { return f.err }

func TestReplaceTargetFallsBackToCopy(t *testing.T) {
	copier := &fakeCopier{}
	target := ReplaceTarget{Replacer: fakeReplacer{err: errors.New("no focus")}, Fallback: copier}
	if err := target.OnSuccess("done"); err != nil {
		t.Fatalf("OnSuccess: %v", err)
	}
	if copier.got != "done" {
		t.Fatalf("fallback copy got %q", copier.got)
	}
}

func TestStdoutTarget(t *testing.T) {
	var buf bytes.Buffer
	if err := (StdoutTarget{Writer: &buf}).OnSuccess("out"); err != nil {
		t.Fatalf("OnSuccess: %v", err)
	}
	if buf.String() != "out" {
		t.Fatalf("wrote %q", buf.String())
	}
}

type fakeConn struct {
	req     singleinstance.Request
	success []string
	errs    []string
}

func (c *fakeConn) Request() singleinstance.Request { return c.req }

func (c *fakeConn) RespondSuccess(text string) error {
	c.success = append(c.success, text)
	return nil
}

func (c *fakeConn) RespondError(msg string) error {
	c.errs = append(c.errs, msg)
	return nil
}

func (c *fakeConn) Close() error { return nil }

func TestDelegatedTarget(t *testing.T) {
	t.Run("stdout", func(t *testing.T) {
		conn := &fakeConn{}
		target := DelegatedTarget{Conn: conn, OutputToStdout: true}
		if err := target.OnSuccess("text"); err != nil {
			t.Fatal(err)
		}
		if len(conn.success) != 1 || conn.success[0] != "text" {
			t.Fatalf("success = %v", conn.success)
		}
	})
	t.Run("clipboard", func(t *testing.T) {
		conn := &fakeConn{}
		copier := &fakeCopier{}
		target := DelegatedTarget{Conn: conn, Clipboard: copier}
		if err := target.OnSuccess("text"); err != nil {
			t.Fatal(err)
		}
		if copier.got != "text" || len(conn.success) != 1 || conn.success[0] != "" {
			t.Fatalf("copier=%q success=%v", copier.got, conn.success)
		}
	})
	t.Run("clipboard error", func(t *testing.T) {
		conn := &fakeConn{}
		target := DelegatedTarget{Conn: conn, Clipboard: &fakeCopier{err: errors.New("locked")}}
		if err := target.OnSuccess("text"); err == nil {
			t.Fatal("expected error")
		}
		if len(conn.success) != 0 {
			t.Fatal("must not report success")
		}
	})
	t.Run("failure", func(t *testing.T) {
		conn := &fakeConn{}
		_ = DelegatedTarget{Conn: conn}.OnFailure(rewrite.ErrEmptySelection)
		if len(conn.errs) != 1 || conn.errs[0] != rewrite.EmptySelectionMessage {
			t.Fatalf("errs = %v", conn.errs)
		}
	})
}
