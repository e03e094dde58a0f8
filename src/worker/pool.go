package worker

import (
	"context"
	"log"
	"sync"

	"open-rewrite/src/llm"
)

// ResultCallback is invoked once per accepted job, from a worker goroutine.
// Callers that touch UI state should post back into their own loop.
type ResultCallback func(text string, err error)

// Pool is a fixed-size completion pool with a bounded queue. Submit never
// blocks; a full queue rejects the job.
type Pool struct {
	completer llm.Completer
	jobs      chan job
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type job struct {
	ctx context.Context
	req llm.Request
	cb  ResultCallback
}

// New starts size workers (at least 1) behind a queue of queue slots (at least 1).
func New(c llm.Completer, size, queue int) *Pool {
	if size <= 0 {
		size = 1
	}
	if queue <= 0 {
		queue = 1
	}
	p := &Pool{completer: c, jobs: make(chan job, queue)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for j := range p.jobs {
				p.run(id, j)
			}
		}(i)
	}
}

func (p *Pool) run(id int, j job) {
	// Jobs canceled while queued never reach the network.
	if err := j.ctx.Err(); err != nil {
		log.Printf("Worker %d: job canceled before start: %v", id, err)
		j.cb("", err)
		return
	}
	log.Printf("Worker %d: starting completion, input length=%d", id, len(j.req.Input))
	text, err := p.completer.Complete(j.ctx, j.req)
	log.Printf("Worker %d: completion done, text length=%d, err=%v", id, len(text), err)
	j.cb(text, err)
}

// Submit enqueues a job. It returns false when the queue is full or the pool
// is closed; cb is not called in that case.
func (p *Pool) Submit(ctx context.Context, req llm.Request, cb ResultCallback) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job{ctx: ctx, req: req, cb: cb}:
		return true
	default:
		return false
	}
}

// Close stops accepting work and waits for queued jobs to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
