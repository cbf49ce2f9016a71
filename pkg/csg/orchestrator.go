package csg

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/fixtura/pkg/kernel"
	"github.com/chazu/fixtura/pkg/mesh"
)

// Options configures an Orchestrator.
type Options struct {
	// Kernel evaluates requests on the pool. Required.
	Kernel kernel.Kernel
	// Fallback is retried synchronously when Kernel fails. Optional.
	Fallback kernel.Kernel
	// Workers bounds concurrent evaluations; <= 0 uses GOMAXPROCS.
	Workers  int
	Listener Listener
}

// Orchestrator keeps one Controller per instance id, all sharing one pool.
type Orchestrator struct {
	opts   Options
	pool   *Pool
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	controllers map[string]*Controller
}

// New returns an orchestrator. Close it to stop its workers.
func New(opts Options) (*Orchestrator, error) {
	if opts.Kernel == nil {
		return nil, ErrNoKernel
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		opts:        opts,
		pool:        NewPool(opts.Kernel, opts.Workers),
		ctx:         ctx,
		cancel:      cancel,
		controllers: make(map[string]*Controller),
	}, nil
}

// Controller returns the controller for instance, creating it if needed.
func (o *Orchestrator) Controller(instance string) *Controller {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.controllers[instance]
	if !ok {
		c = newController(o.ctx, instance, o.pool, o.opts.Fallback, o.opts.Listener)
		o.controllers[instance] = c
	}
	return c
}

// Instances returns the known instance ids, sorted.
func (o *Orchestrator) Instances() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.controllers))
	for id := range o.controllers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetBase hands b to the controller of instance, creating it if needed,
// and requests a fresh subtraction. The orchestrator owns b afterwards.
func (o *Orchestrator) SetBase(instance string, b *mesh.Buffer) {
	o.Controller(instance).SetBase(b)
}

// SetCutout replaces the cutout of instance. A nil mesh removes it, after
// which the base is shown uncut. The orchestrator owns m afterwards.
func (o *Orchestrator) SetCutout(instance string, m *mesh.Buffer) {
	o.Controller(instance).SetCutout(m)
}

// SetInteractive marks the start (on) or end of a drag on instance. No
// requests are issued while dragging; ending the drag requests the current
// inputs if the last result is stale.
func (o *Orchestrator) SetInteractive(instance string, on bool) {
	o.Controller(instance).SetInteractive(on)
}

// Display returns the geometry to show for instance, or nil if unknown.
func (o *Orchestrator) Display(instance string) *mesh.Buffer {
	o.mu.Lock()
	c, ok := o.controllers[instance]
	o.mu.Unlock()
	if !ok {
		return nil
	}
	return c.Display()
}

// Remove forgets instance and releases its buffers. In-flight results for
// it are dropped.
func (o *Orchestrator) Remove(instance string) {
	o.mu.Lock()
	c, ok := o.controllers[instance]
	delete(o.controllers, instance)
	o.mu.Unlock()
	if ok {
		c.SetInteractive(true)
		c.close()
	}
}

// Wait blocks until no controller is requesting.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	cs := make([]*Controller, 0, len(o.controllers))
	for _, c := range o.controllers {
		cs = append(cs, c)
	}
	o.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range cs {
		g.Go(func() error { return c.Wait(ctx) })
	}
	return g.Wait()
}

// Close cancels in-flight evaluations and waits for workers to exit.
func (o *Orchestrator) Close() {
	o.cancel()
	o.pool.Close()
}
