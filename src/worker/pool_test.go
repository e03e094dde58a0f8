package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"open-rewrite/src/llm"
)

type completerFunc func(ctx context.Context, req llm.Request) (string, error)

func (f completerFunc) Complete(ctx context.Context, req llm.Request) (string, error) {
	return f(ctx, req)
}

func TestSubmitRunsJob(t *testing.T) {
	p := New(completerFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return "out:" + req.Input, nil
	}), 1, 1)
	defer p.Close()

	done := make(chan string, 1)
	if !p.Submit(context.Background(), llm.Request{Input: "x"}, func(text string, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		done <- text
	}) {
		t.Fatal("Submit rejected")
	}
	select {
	case got := <-done:
		if got != "out:x" {
			t.Fatalf("unexpected text %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback not invoked")
	}
}

func TestSubmitRejectsWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	p := New(completerFunc(func(ctx context.Context, req llm.Request) (string, error) {
		started <- struct{}{}
		<-release
		return "", nil
	}), 1, 1)

	noop := func(string, error) {}
	if !p.Submit(context.Background(), llm.Request{}, noop) {
		t.Fatal("first submit rejected")
	}
	<-started
	if !p.Submit(context.Background(), llm.Request{}, noop) {
		t.Fatal("queued submit rejected")
	}
	if p.Submit(context.Background(), llm.Request{}, noop) {
		t.Fatal("expected rejection with worker busy and queue full")
	}
	close(release)
	p.Close()
}

func TestCanceledJobSkipsCompleter(t *testing.T) {
	var calls atomic.Int32
	p := New(completerFunc(func(ctx context.Context, req llm.Request) (string, error) {
		calls.Add(1)
		return "", nil
	}), 1, 1)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan error, 1)
	p.Submit(ctx, llm.Request{}, func(_ string, err error) { done <- err })
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatal("completer must not run for a canceled job")
	}
}

func TestCloseDrainsAndRejects(t *testing.T) {
	var mu sync.Mutex
	var n int
	p := New(completerFunc(func(ctx context.Context, req llm.Request) (string, error) {
		time.Sleep(5 * time.Millisecond)
		return "", nil
	}), 2, 4)
	for i := 0; i < 4; i++ {
		p.Submit(context.Background(), llm.Request{}, func(string, error) {
			mu.Lock()
			n++
			mu.Unlock()
		})
	}
	p.Close()
	p.Close()

	mu.Lock()
	defer mu.Unlock()
	if n != 4 {
		t.Fatalf("expected all queued jobs to finish, got %d", n)
	}
	if p.Submit(context.Background(), llm.Request{}, func(string, error) {}) {
		t.Fatal("expected submit after close to be rejected")
	}
}
