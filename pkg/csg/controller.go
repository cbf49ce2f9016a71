package csg

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/chazu/fixtura/pkg/kernel"
	"github.com/chazu/fixtura/pkg/mesh"
)

// State is a controller's lifecycle state.
type State int

const (
	Idle State = iota
	Requesting
	Suspended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Suspended:
		return "suspended"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Controller owns the boolean result of one instance. Input changes issue
// a new request with a larger id; a result is applied only when its id is
// the newest issued and the instance is not being dragged.
type Controller struct {
	instance string
	ctx      context.Context
	pool     *Pool
	fallback kernel.Kernel
	listener Listener

	mu          sync.Mutex
	state       State
	interactive bool
	base        *mesh.Buffer
	cutout      *mesh.Buffer
	gen         uint64 // bumped on every input change
	issued      uint64 // newest request id
	lastGood    *mesh.Buffer
	lastGoodGen uint64
	settled     chan struct{} // closed when the newest request resolves
}

func newController(ctx context.Context, instance string, pool *Pool, fallback kernel.Kernel, l Listener) *Controller {
	return &Controller{
		instance: instance,
		ctx:      ctx,
		pool:     pool,
		fallback: fallback,
		listener: l,
		settled:  closedChan(),
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Instance returns the instance id.
func (c *Controller) Instance() string { return c.instance }

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetBase replaces the base solid. The controller takes ownership of b.
func (c *Controller) SetBase(b *mesh.Buffer) {
	c.mu.Lock()
	if c.base != nil && c.base != b {
		c.base.Dispose()
	}
	c.base = b
	c.gen++
	events := c.request()
	c.mu.Unlock()
	emit(c.listener, events)
}

// SetCutout replaces the cutout tool in the instance's local frame. A nil
// cutout clears any cut. The controller takes ownership of m.
func (c *Controller) SetCutout(m *mesh.Buffer) {
	c.mu.Lock()
	if c.cutout != nil && c.cutout != m {
		c.cutout.Dispose()
	}
	c.cutout = m
	c.gen++
	events := c.request()
	c.mu.Unlock()
	emit(c.listener, events)
}

// SetInteractive marks the start or end of a drag. While dragging no
// requests are issued and arriving results are discarded; when the drag
// ends a request is issued for the current inputs unless the last-good
// result already matches them.
func (c *Controller) SetInteractive(on bool) {
	c.mu.Lock()
	var events []Event
	if on {
		if !c.interactive {
			c.interactive = true
			c.state = Suspended
			c.settle()
		}
	} else if c.interactive {
		c.interactive = false
		c.state = Idle
		if c.lastGood == nil || c.lastGoodGen != c.gen {
			events = c.request()
		}
	}
	c.mu.Unlock()
	emit(c.listener, events)
}

// Display returns a copy of the geometry to show: the last-good result when
// it was computed from the current inputs and the instance is not being
// dragged, otherwise the base solid. It returns nil before any base is set.
func (c *Controller) Display() *mesh.Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.interactive && c.cutout != nil && c.lastGood != nil && c.lastGoodGen == c.gen {
		return c.lastGood.Clone()
	}
	return c.base.Clone()
}

// Wait blocks until the controller is no longer requesting or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.state != Requesting {
			c.mu.Unlock()
			return nil
		}
		ch := c.settled
		c.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// request issues a request for the current inputs. Callers hold c.mu.
func (c *Controller) request() []Event {
	if c.interactive {
		return nil
	}
	if c.base.IsEmpty() || c.cutout.IsEmpty() {
		c.state = Idle
		c.settle()
		return nil
	}

	c.issued++
	req := Request{
		ID:       c.issued,
		Instance: c.instance,
		Target:   c.base.Clone(),
		Tool:     c.cutout.Clone(),
		Op:       Subtract,
	}
	ch, err := c.pool.Submit(c.ctx, req)
	if err != nil {
		c.state = Idle
		c.settle()
		return []Event{{Instance: c.instance, Request: req.ID, Kind: Failed, Err: err}}
	}

	c.state = Requesting
	c.settle()
	c.settled = make(chan struct{})
	go c.watch(req, c.gen, ch)
	return []Event{{Instance: c.instance, Request: req.ID, Kind: Started}}
}

// settle releases Wait callers blocked on the current request.
func (c *Controller) settle() {
	select {
	case <-c.settled:
	default:
		close(c.settled)
	}
}

// current reports whether id is the newest request and may be applied.
// Callers hold c.mu.
func (c *Controller) current(id uint64) bool {
	return id == c.issued && !c.interactive && c.state == Requesting
}

func (c *Controller) watch(req Request, gen uint64, ch <-chan Message) {
	for msg := range ch {
		if !msg.Done {
			c.mu.Lock()
			ok := c.current(req.ID)
			c.mu.Unlock()
			if ok {
				emit(c.listener, []Event{{Instance: c.instance, Request: req.ID, Kind: Progressed, Percent: msg.Percent}})
			}
			continue
		}
		if msg.Err != nil {
			c.fail(req, gen, msg.Err)
			return
		}
		c.apply(req.ID, gen, msg.Result, false)
		return
	}
}

// apply installs result as last-good if id is still the newest request.
func (c *Controller) apply(id, gen uint64, result *mesh.Buffer, fallback bool) {
	c.mu.Lock()
	if !c.current(id) {
		c.mu.Unlock()
		result.Dispose()
		log.Debug().Str("instance", c.instance).Uint64("request", id).Msg("csg: discarded stale result")
		emit(c.listener, []Event{{Instance: c.instance, Request: id, Kind: Discarded}})
		return
	}
	if c.lastGood != nil {
		c.lastGood.Dispose()
	}
	c.lastGood = result
	c.lastGoodGen = gen
	c.state = Idle
	c.settle()
	c.mu.Unlock()
	emit(c.listener, []Event{{Instance: c.instance, Request: id, Kind: Finished, Fallback: fallback}})
}

// fail retries a failed request synchronously on the fallback kernel and,
// if that fails too, leaves the instance showing its base solid.
func (c *Controller) fail(req Request, gen uint64, cause error) {
	log.Warn().Err(cause).Str("instance", c.instance).Uint64("request", req.ID).Msg("csg: evaluation failed")

	c.mu.Lock()
	ok := c.current(req.ID)
	c.mu.Unlock()
	if !ok {
		emit(c.listener, []Event{{Instance: c.instance, Request: req.ID, Kind: Discarded}})
		return
	}

	if c.fallback != nil && c.ctx.Err() == nil {
		out, err := Evaluate(c.ctx, c.fallback, req, nil)
		if err == nil {
			c.apply(req.ID, gen, out, true)
			return
		}
		log.Warn().Err(err).Str("instance", c.instance).Str("kernel", c.fallback.Name()).Msg("csg: fallback failed, showing base solid")
		cause = err
	}

	c.mu.Lock()
	if !c.current(req.ID) {
		c.mu.Unlock()
		emit(c.listener, []Event{{Instance: c.instance, Request: req.ID, Kind: Discarded}})
		return
	}
	if c.lastGood != nil {
		c.lastGood.Dispose()
		c.lastGood = nil
	}
	c.state = Idle
	c.settle()
	c.mu.Unlock()
	emit(c.listener, []Event{{Instance: c.instance, Request: req.ID, Kind: Failed, Err: cause, Fallback: c.fallback != nil}})
}

// close releases held buffers.
func (c *Controller) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base.Dispose()
	c.cutout.Dispose()
	c.lastGood.Dispose()
	c.base, c.cutout, c.lastGood = nil, nil, nil
	c.settle()
}
