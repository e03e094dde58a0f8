// Package eventloop is the resident coordinator: hotkey presses, tray clicks
// and delegated triggers all become one capture and one quick rewrite at a time.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"open-rewrite/src/bridge"
	"open-rewrite/src/config"
	"open-rewrite/src/history"
	"open-rewrite/src/logutil"
	"open-rewrite/src/rewrite"
	"open-rewrite/src/session"
	"open-rewrite/src/singleinstance"
)

const captureTimeout = 5 * time.Second

var (
	ErrBusy          = errors.New("Busy, please retry")
	ErrNoQuickAction = errors.New("no quick action configured; set QUICK_ACTION=category/option")
)

type Capturer interface {
	Capture(ctx context.Context) (string, error)
}

type Rewriter interface {
	Rewrite(text, option, category string, onSuccess func(string), onError func(error)) (*rewrite.Handle, error)
	CopyResult(text string) error
	ReplaceResult(text string) error
}

type Publisher interface {
	Publish(bridge.Event)
}

type Notifier interface {
	ShowResult(text string)
	ShowError(message string)
}

type Options struct {
	Capture  Capturer
	Rewriter Rewriter
	// Server defaults to a fresh singleinstance server.
	Server    singleinstance.Server
	History   *history.History
	Publisher Publisher
	Notifier  Notifier
	// SetStatus shows short status text, usually the tray tooltip.
	SetStatus func(string)
	// OnListening is told the resident port once the server is up.
	OnListening func(port int)

	QuickAction string
	AutoReplace bool
}

// Loop owns all request state; only Run's goroutine touches it.
type Loop struct {
	opts     Options
	srv      singleinstance.Server
	category string
	option   string

	busy           bool
	token          uint64
	current        *rewrite.Handle
	hotkeyCh       chan struct{}
	captured       chan captured
	results        chan result
	defaultTooltip string
}

type captured struct {
	token  uint64
	text   string
	err    error
	target resultTarget
}

type result struct {
	token  uint64
	text   string
	err    error
	target resultTarget
}

type resultTarget interface {
	OnSuccess(text string) error
	OnProcessError(err error)
	OnDeliveryError(err error)
	// Interactive targets may be skipped when superseded.
	Interactive() bool
	Close()
}

type hotkeyResultTarget struct {
	sink     session.ResultTarget
	notifier Notifier
}

func (t hotkeyResultTarget) OnSuccess(text string) error {
	if err := t.sink.OnSuccess(text); err != nil {
		return err
	}
	if t.notifier != nil {
		t.notifier.ShowResult(text)
	}
	return nil
}

func (t hotkeyResultTarget) OnProcessError(err error) {
	if t.notifier != nil {
		t.notifier.ShowError(err.Error())
	}
}

func (t hotkeyResultTarget) OnDeliveryError(err error) {
	if t.notifier != nil {
		t.notifier.ShowError(fmt.Sprintf("Clipboard error: %v", err))
	}
}

func (hotkeyResultTarget) Interactive() bool { return true }

func (hotkeyResultTarget) Close() {}

type delegatedResultTarget struct {
	sink session.DelegatedTarget
}

func newDelegatedResultTarget(conn singleinstance.Conn, clip session.Copier) delegatedResultTarget {
	return delegatedResultTarget{sink: session.DelegatedTarget{
		Conn:           conn,
		OutputToStdout: conn.Request().OutputToStdout,
		Clipboard:      clip,
	}}
}

func (t delegatedResultTarget) OnSuccess(text string) error { return t.sink.OnSuccess(text) }

func (t delegatedResultTarget) OnProcessError(err error) { _ = t.sink.OnFailure(err) }

func (t delegatedResultTarget) OnDeliveryError(err error) { _ = t.sink.OnFailure(err) }

func (delegatedResultTarget) Interactive() bool { return false }

func (t delegatedResultTarget) Close() {
	if t.sink.Conn != nil {
		_ = t.sink.Conn.Close()
	}
}

func New(opts Options) *Loop {
	l := &Loop{
		opts:           opts,
		srv:            opts.Server,
		hotkeyCh:       make(chan struct{}, 4),
		captured:       make(chan captured, 1),
		results:        make(chan result, 4),
		defaultTooltip: "Open Rewrite",
	}
	if l.srv == nil {
		l.srv = singleinstance.NewServer()
	}
	if c, o, ok := config.SplitQuickAction(opts.QuickAction); ok {
		l.category, l.option = c, o
	} else if opts.QuickAction != "" {
		log.Printf("eventloop: ignoring malformed quick action %q", opts.QuickAction)
	}
	return l
}

func (l *Loop) SetDefaultTooltip(tt string) { l.defaultTooltip = tt }

func (l *Loop) setBusy(b bool) {
	l.busy = b
	if l.opts.SetStatus == nil {
		return
	}
	if b {
		l.opts.SetStatus("Open Rewrite: rewriting...")
	} else {
		l.opts.SetStatus(l.defaultTooltip)
	}
}

// Trigger asks the loop to rewrite the current selection. Extra presses
// while the queue is full are dropped.
func (l *Loop) Trigger() {
	select {
	case l.hotkeyCh <- struct{}{}:
	default:
	}
}

// CopyLast puts the most recent successful rewrite back on the clipboard.
func (l *Loop) CopyLast() error {
	if l.opts.History == nil {
		return errors.New("no history")
	}
	e, ok := l.opts.History.LastSuccess()
	if !ok {
		return errors.New("nothing rewritten yet")
	}
	return l.opts.Rewriter.CopyResult(e.Text)
}

// Run serves delegated triggers and hotkey presses until ctx ends.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.srv.Start(ctx); err != nil {
		return err
	}
	defer l.srv.Close()
	if p := l.srv.Port(); p > 0 {
		log.Printf("Resident listening on 127.0.0.1:%d", p)
		if l.opts.OnListening != nil {
			l.opts.OnListening(p)
		}
	}

	reqCh := make(chan singleinstance.Conn, 4)
	go func() {
		defer close(reqCh)
		for {
			conn, err := l.srv.Next(ctx)
			if err != nil {
				return
			}
			select {
			case reqCh <- conn:
			case <-ctx.Done():
				_ = conn.Close()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.hotkeyCh:
			l.handleHotkey(ctx)
		case conn, ok := <-reqCh:
			if !ok {
				return nil
			}
			l.handleConn(ctx, conn)
		case c := <-l.captured:
			l.handleCaptured(c)
		case res := <-l.results:
			l.handleResult(res)
		}
	}
}

func (l *Loop) hotkeyTarget() hotkeyResultTarget {
	var sink session.ResultTarget = session.ClipboardTarget{Clipboard: l.opts.Rewriter}
	if l.opts.AutoReplace {
		sink = session.ReplaceTarget{Replacer: l.opts.Rewriter, Fallback: l.opts.Rewriter}
	}
	return hotkeyResultTarget{sink: sink, notifier: l.opts.Notifier}
}

func (l *Loop) handleHotkey(ctx context.Context) {
	log.Printf("handleHotkey: called")
	if l.busy {
		log.Printf("handleHotkey: busy, skipping")
		if l.opts.Notifier != nil {
			l.opts.Notifier.ShowError(ErrBusy.Error())
		}
		return
	}
	l.startCapture(ctx, l.hotkeyTarget())
}

func (l *Loop) handleConn(ctx context.Context, conn singleinstance.Conn) {
	target := newDelegatedResultTarget(conn, l.opts.Rewriter)
	if l.busy {
		target.OnProcessError(ErrBusy)
		target.Close()
		return
	}
	l.startCapture(ctx, target)
}

// startCapture grabs the selection off the loop goroutine; the result comes
// back through l.captured.
func (l *Loop) startCapture(ctx context.Context, target resultTarget) {
	l.token++
	tok := l.token
	l.setBusy(true)
	go func() {
		cctx, cancel := context.WithTimeout(ctx, captureTimeout)
		defer cancel()
		text, err := l.opts.Capture.Capture(cctx)
		l.captured <- captured{token: tok, text: text, err: err, target: target}
	}()
}

func (l *Loop) handleCaptured(c captured) {
	if c.err != nil {
		log.Printf("handleCaptured: selection error: %v", c.err)
		l.finish(c.target, func() { c.target.OnProcessError(fmt.Errorf("Failed to capture selection: %w", c.err)) })
		return
	}
	log.Printf("handleCaptured: %d chars %q", len(c.text), logutil.Preview(c.text))
	if l.opts.Publisher != nil && c.text != "" {
		l.opts.Publisher.Publish(bridge.Event{Type: bridge.EventSelection, Text: c.text})
	}

	if l.category == "" {
		l.finish(c.target, func() {
			if c.target.Interactive() {
				if l.opts.Publisher == nil && l.opts.Notifier != nil {
					l.opts.Notifier.ShowError(ErrNoQuickAction.Error())
				}
				return
			}
			c.target.OnProcessError(ErrNoQuickAction)
		})
		return
	}

	tok := c.token
	post := func(r result) {
		r.token, r.target = tok, c.target
		select {
		case l.results <- r:
		default:
			go func() { l.results <- r }()
		}
	}
	h, err := l.opts.Rewriter.Rewrite(c.text, l.option, l.category,
		func(text string) { post(result{text: text}) },
		func(err error) { post(result{err: err}) },
	)
	if err != nil {
		log.Printf("handleCaptured: rewrite rejected: %v", err)
		l.finish(c.target, func() { c.target.OnProcessError(err) })
		return
	}
	l.current = h
}

func (l *Loop) finish(target resultTarget, deliver func()) {
	defer l.setBusy(false)
	defer target.Close()
	deliver()
}

func (l *Loop) handleResult(res result) {
	log.Printf("handleResult: text length=%d, err=%v", len(res.text), res.err)
	if res.token != l.token || l.current == nil {
		log.Printf("handleResult: dropping result for request token %d", res.token)
		res.target.Close()
		return
	}
	h := l.current
	l.current = nil
	out := rewrite.Outcome{Text: res.text, Err: res.err}

	if l.opts.History != nil {
		l.opts.History.Add(bridge.HistoryEntry(h, out))
	}
	if l.opts.Publisher != nil {
		l.opts.Publisher.Publish(bridge.OutcomeEvent(h, out))
	}

	l.finish(res.target, func() {
		if res.err != nil {
			res.target.OnProcessError(res.err)
			return
		}
		if res.target.Interactive() && h.Stale() {
			log.Printf("handleResult: request %d superseded, not delivering", h.Seq)
			return
		}
		if err := res.target.OnSuccess(res.text); err != nil {
			log.Printf("handleResult: delivery error: %v", err)
			res.target.OnDeliveryError(err)
		}
	})
}
