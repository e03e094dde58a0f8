// Package session runs one blocking capture and rewrite and hands the result
// to a target. Standalone triggers use it; the resident loop reuses its targets.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"open-rewrite/src/rewrite"
	"open-rewrite/src/singleinstance"
)

type Capturer interface {
	Capture(ctx context.Context) (string, error)
}

type Rewriter interface {
	Rewrite(text, option, category string, onSuccess func(string), onError func(error)) (*rewrite.Handle, error)
}

type ResultTarget interface {
	OnSuccess(text string) error
	OnFailure(err error) error
}

type Options struct {
	Capture  Capturer
	Rewriter Rewriter
	Category string
	Option   string
	Target   ResultTarget
}

type Result struct {
	Text   string
	Handle *rewrite.Handle
}

// Execute captures the selection, rewrites it and delivers the outcome to the
// target. It blocks until the rewrite finishes or ctx ends, in which case the
// request is canceled.
func Execute(ctx context.Context, opts Options) (Result, error) {
	if opts.Capture == nil {
		return Result{}, errors.New("Capture is required")
	}
	if opts.Rewriter == nil {
		return Result{}, errors.New("Rewriter is required")
	}
	if opts.Target == nil {
		return Result{}, errors.New("Target is required")
	}

	text, err := opts.Capture.Capture(ctx)
	if err != nil {
		err = fmt.Errorf("capture selection: %w", err)
		_ = opts.Target.OnFailure(err)
		return Result{}, err
	}

	h, err := opts.Rewriter.Rewrite(text, opts.Option, opts.Category, nil, nil)
	if err != nil {
		_ = opts.Target.OnFailure(err)
		return Result{}, err
	}

	select {
	case <-h.Done():
	case <-ctx.Done():
		h.Cancel()
	}
	out := h.Outcome()
	if out.Err != nil {
		_ = opts.Target.OnFailure(out.Err)
		return Result{Handle: h}, out.Err
	}
	if err := opts.Target.OnSuccess(out.Text); err != nil {
		_ = opts.Target.OnFailure(err)
		return Result{Handle: h}, err
	}
	return Result{Text: out.Text, Handle: h}, nil
}

// Copier puts text on the clipboard.
type Copier interface {
	CopyResult(text string) error
}

// Replacer pastes text over the current selection.
type Replacer interface {
	ReplaceResult(text string) error
}

type ClipboardTarget struct {
	Clipboard Copier
}

func (t ClipboardTarget) OnSuccess(text string) error {
	if t.Clipboard == nil {
		return errors.New("clipboard target missing clipboard")
	}
	return t.Clipboard.CopyResult(text)
}

func (ClipboardTarget) OnFailure(err error) error { return nil }

// ReplaceTarget pastes over the selection and falls back to a plain copy
// when pasting fails.
type ReplaceTarget struct {
	Replacer Replacer
	Fallback Copier
}

func (t ReplaceTarget) OnSuccess(text string) error {
	err := t.Replacer.ReplaceResult(text)
	if err == nil || t.Fallback == nil {
		return err
	}
	if cerr := t.Fallback.CopyResult(text); cerr != nil {
		return fmt.Errorf("replace failed: %v; copy failed: %w", err, cerr)
	}
	return nil
}

func (ReplaceTarget) OnFailure(err error) error { return nil }

type StdoutTarget struct {
	Writer io.Writer
}

func (t StdoutTarget) OnSuccess(text string) error {
	w := t.Writer
	if w == nil {
		w = os.Stdout
	}
	_, err := fmt.Fprint(w, text)
	return err
}

func (StdoutTarget) OnFailure(err error) error { return nil }

// DelegatedTarget answers a trigger handed over by another process.
type DelegatedTarget struct {
	Conn           singleinstance.Conn
	OutputToStdout bool
	Clipboard      Copier
}

func (t DelegatedTarget) OnSuccess(text string) error {
	if t.Conn == nil {
		return errors.New("delegated target missing connection")
	}
	if t.OutputToStdout {
		return t.Conn.RespondSuccess(text)
	}
	if t.Clipboard == nil {
		return errors.New("delegated target missing clipboard")
	}
	if err := t.Clipboard.CopyResult(text); err != nil {
		return fmt.Errorf("clipboard error: %w", err)
	}
	return t.Conn.RespondSuccess("")
}

func (t DelegatedTarget) OnFailure(err error) error {
	if t.Conn == nil {
		return nil
	}
	if err == nil {
		return t.Conn.RespondError("unknown session error")
	}
	return t.Conn.RespondError(err.Error())
}
