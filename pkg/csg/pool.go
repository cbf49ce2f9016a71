package csg

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/chazu/fixtura/pkg/kernel"
	"github.com/chazu/fixtura/pkg/mesh"
)

// Message flows from a worker back to whoever submitted the request:
// progress updates, then exactly one final message with Done set.
type Message struct {
	Request uint64
	Percent int
	Done    bool
	Result  *mesh.Buffer
	Err     error
}

// replyBuffer holds every message one job can send (101 distinct
// percentages and the final message), so workers never block on a slow
// reader.
const replyBuffer = 102

// Pool runs evaluations in background goroutines, at most Workers at a
// time. Workers share nothing with submitters except the messages they send.
type Pool struct {
	kernel kernel.Kernel
	sem    *semaphore.Weighted

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool returns a pool evaluating on k. workers <= 0 uses GOMAXPROCS.
func NewPool(k kernel.Kernel, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{kernel: k, sem: semaphore.NewWeighted(int64(workers))}
}

// Kernel returns the pool's evaluator.
func (p *Pool) Kernel() kernel.Kernel { return p.kernel }

// Submit queues req and returns the channel its messages arrive on. It
// never blocks on evaluator capacity.
func (p *Pool) Submit(ctx context.Context, req Request) (<-chan Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	out := make(chan Message, replyBuffer)
	p.wg.Add(1)
	go p.run(ctx, req, out)
	return out, nil
}

func (p *Pool) run(ctx context.Context, req Request, out chan<- Message) {
	defer p.wg.Done()
	defer close(out)

	if err := p.sem.Acquire(ctx, 1); err != nil {
		out <- Message{Request: req.ID, Done: true, Err: err}
		return
	}
	defer p.sem.Release(1)

	gate := &progressGate{id: req.ID, out: out, last: -1}
	result, err := Evaluate(ctx, p.kernel, req, gate.report)
	gate.close()
	out <- Message{Request: req.ID, Done: true, Result: result, Err: err}
}

// progressGate forwards strictly increasing percentages to out. Kernels may
// report from several goroutines; reports arriving after the kernel
// returned are dropped.
type progressGate struct {
	mu     sync.Mutex
	id     uint64
	out    chan<- Message
	last   int
	closed bool
}

func (g *progressGate) report(percent int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || percent <= g.last {
		return
	}
	g.last = percent
	g.out <- Message{Request: g.id, Percent: percent}
}

func (g *progressGate) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

// Close stops accepting work and waits for running evaluations to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
