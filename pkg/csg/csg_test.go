package csg

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/fixtura/pkg/kernel"
	"github.com/chazu/fixtura/pkg/kernel/bsp"
	"github.com/chazu/fixtura/pkg/mesh"
	"github.com/chazu/fixtura/pkg/poly"
	"github.com/chazu/fixtura/pkg/support"
)

// gatedKernel blocks each subtraction until the gate named after the tool
// is released, then returns the target renamed after the tool.
type gatedKernel struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
}

func newGated() *gatedKernel { return &gatedKernel{gates: make(map[string]chan struct{})} }

func (k *gatedKernel) gate(name string) chan struct{} {
	k.mu.Lock()
	defer k.mu.Unlock()
	g, ok := k.gates[name]
	if !ok {
		g = make(chan struct{})
		k.gates[name] = g
	}
	return g
}

func (k *gatedKernel) release(name string) { close(k.gate(name)) }

func (k *gatedKernel) Name() string { return "gated" }

func (k *gatedKernel) Subtract(ctx context.Context, target, tool *mesh.Buffer, progress kernel.Progress) (*mesh.Buffer, error) {
	progress.Report(0)
	select {
	case <-k.gate(tool.PartName):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	progress.Report(50)
	progress.Report(100)
	out := target.Clone()
	out.PartName = tool.PartName
	return out, nil
}

type failKernel struct{}

func (failKernel) Name() string { return "fail" }

func (failKernel) Subtract(context.Context, *mesh.Buffer, *mesh.Buffer, kernel.Progress) (*mesh.Buffer, error) {
	return nil, errors.New("boom")
}

type panicKernel struct{}

func (panicKernel) Name() string { return "panic" }

func (panicKernel) Subtract(context.Context, *mesh.Buffer, *mesh.Buffer, kernel.Progress) (*mesh.Buffer, error) {
	panic("out of cheese")
}

// fanoutKernel reports every percentage from its own goroutine, in no
// particular order.
type fanoutKernel struct{}

func (fanoutKernel) Name() string { return "fanout" }

func (fanoutKernel) Subtract(_ context.Context, target, _ *mesh.Buffer, progress kernel.Progress) (*mesh.Buffer, error) {
	var wg sync.WaitGroup
	for p := 0; p <= 100; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			progress.Report(p)
		}(p)
	}
	wg.Wait()
	return target.Clone(), nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) find(kind EventKind) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Kind == kind {
			return e, true
		}
	}
	return Event{}, false
}

func (r *recorder) percents() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, e := range r.events {
		if e.Kind == Progressed {
			out = append(out, e.Percent)
		}
	}
	return out
}

func cube(name string, min, max float64) *mesh.Buffer {
	return mesh.Box(name, r3.Vec{X: min, Y: min, Z: min}, r3.Vec{X: max, Y: max, Z: max})
}

func newOrchestrator(t *testing.T, opts Options) *Orchestrator {
	t.Helper()
	o, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(o.Close)
	return o
}

func wait(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, o.Wait(ctx))
}

func TestSubtractCutout(t *testing.T) {
	solid := cube("solid", -5, 5)
	cutout := cube("cutout", -2, 2)

	out, err := SubtractCutout(context.Background(), bsp.New(), solid, cutout, nil)
	require.NoError(t, err)
	assert.InDelta(t, 936, mesh.Volume(out), 1e-2)
	assert.Equal(t, "solid", out.PartName)

	// Inputs are cloned, not decorated in place.
	assert.Nil(t, solid.UVs)
	assert.Nil(t, cutout.UVs)
}

func TestSubtractFromSupport(t *testing.T) {
	rect := poly.Polygon{poly.Pt(-20, -10), poly.Pt(20, -10), poly.Pt(20, 10), poly.Pt(-20, 10)}
	box := func(x0, y0, z0, x1, y1, z1 float64) *mesh.Buffer {
		return mesh.Box("cutout", r3.Vec{X: x0, Y: y0, Z: z0}, r3.Vec{X: x1, Y: y1, Z: z1})
	}
	tests := []struct {
		name    string
		cutout  *mesh.Buffer
		removed float64 // zero skips the exact volume check
		euler   int
	}{
		{"enclosed void", box(-5, 6, -3, 5, 12, 3), 360, 4},
		{"pocket from the top", box(-5, 6, -3, 5, 20, 3), 540, 2},
		{"hole through", box(-3, -1, -3, 3, 20, 3), 540, 0},
		{"cut through the fillet", box(15, -1, -3, 25, 1.5, 3), 0, 2},
		{"corner notch", box(15, 5, 5, 25, 20, 15), 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			solid := support.BuildSupportSolid(rect, 15, 2)
			require.NotNil(t, solid)
			before := mesh.Volume(solid)

			out, err := SubtractCutout(context.Background(), bsp.New(), solid, tt.cutout, nil)
			require.NoError(t, err)

			stats := mesh.Edges(out)
			assert.True(t, stats.Closed(), "%+v", stats)
			assert.Equal(t, tt.euler, mesh.EulerCharacteristic(out))
			assert.Less(t, mesh.Volume(out), before)
			if tt.removed > 0 {
				assert.InDelta(t, before-tt.removed, mesh.Volume(out), 1e-1)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		k       kernel.Kernel
		req     Request
		wantErr error
	}{
		{"no kernel", nil, Request{Target: cube("t", 0, 1)}, ErrNoKernel},
		{"empty target", bsp.New(), Request{Tool: cube("c", 0, 1)}, ErrEmptyTarget},
		{"kernel error", failKernel{}, Request{Target: cube("t", 0, 1), Tool: cube("c", 0, 1)}, nil},
		{"kernel panic", panicKernel{}, Request{Target: cube("t", 0, 1), Tool: cube("c", 0, 1)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Evaluate(context.Background(), tt.k, tt.req, nil)
			require.Error(t, err)
			assert.Nil(t, out)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestEvaluateWithoutTool(t *testing.T) {
	var got []int
	out, err := Evaluate(context.Background(), failKernel{}, Request{Target: cube("t", 0, 1)}, func(p int) { got = append(got, p) })
	require.NoError(t, err)
	assert.Equal(t, 12, out.TriangleCount())
	assert.Len(t, out.UVs, out.VertexCount()*2)
	assert.Equal(t, []int{100}, got)
}

func TestStaleResultsDropped(t *testing.T) {
	k := newGated()
	rec := &recorder{}
	o := newOrchestrator(t, Options{Kernel: k, Workers: 3, Listener: rec})

	o.SetBase("a", cube("base", 0, 10))
	assert.Equal(t, Idle, o.Controller("a").State())
	for _, name := range []string{"cut-1", "cut-2", "cut-3"} {
		o.SetCutout("a", cube(name, 2, 4))
	}
	assert.Equal(t, 3, rec.count(Started))
	assert.Equal(t, Requesting, o.Controller("a").State())

	// Newest first, then the two stale ones.
	k.release("cut-3")
	wait(t, o)
	assert.Equal(t, "cut-3", o.Display("a").PartName)

	k.release("cut-1")
	k.release("cut-2")
	assert.Eventually(t, func() bool { return rec.count(Discarded) == 2 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, "cut-3", o.Display("a").PartName)
	assert.Equal(t, 1, rec.count(Finished))
}

func TestDragSuspends(t *testing.T) {
	k := newGated()
	rec := &recorder{}
	o := newOrchestrator(t, Options{Kernel: k, Workers: 2, Listener: rec})

	o.SetBase("a", cube("base", 0, 10))
	o.SetCutout("a", cube("cut-1", 2, 4))
	o.SetInteractive("a", true)
	assert.Equal(t, Suspended, o.Controller("a").State())

	k.release("cut-1")
	assert.Eventually(t, func() bool { return rec.count(Discarded) == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, "base", o.Display("a").PartName)

	// No requests while dragging.
	o.SetCutout("a", cube("cut-2", 3, 5))
	assert.Equal(t, 1, rec.count(Started))
	assert.Equal(t, "base", o.Display("a").PartName)

	o.SetInteractive("a", false)
	assert.Equal(t, 2, rec.count(Started))
	k.release("cut-2")
	wait(t, o)
	assert.Equal(t, "cut-2", o.Display("a").PartName)
}

func TestDisplayFollowsInputs(t *testing.T) {
	k := newGated()
	o := newOrchestrator(t, Options{Kernel: k, Workers: 1})

	assert.Nil(t, o.Display("missing"))

	o.SetBase("a", cube("base", 0, 10))
	assert.Equal(t, "base", o.Display("a").PartName)

	o.SetCutout("a", cube("cut-1", 2, 4))
	assert.Equal(t, "base", o.Display("a").PartName)
	k.release("cut-1")
	wait(t, o)
	assert.Equal(t, "cut-1", o.Display("a").PartName)

	// A moved cutout hides the stale cut until its result lands.
	o.SetCutout("a", cube("cut-2", 3, 5))
	assert.Equal(t, "base", o.Display("a").PartName)

	// Clearing the cutout shows the base solid.
	o.SetCutout("a", nil)
	assert.Equal(t, Idle, o.Controller("a").State())
	assert.Equal(t, "base", o.Display("a").PartName)
	k.release("cut-2")
}

func TestFallbackKernel(t *testing.T) {
	rec := &recorder{}
	o := newOrchestrator(t, Options{Kernel: failKernel{}, Fallback: bsp.New(), Listener: rec})

	o.SetBase("a", cube("base", -5, 5))
	o.SetCutout("a", cube("cut", -2, 2))
	wait(t, o)

	assert.InDelta(t, 936, mesh.Volume(o.Display("a")), 1e-2)
	assert.Eventually(t, func() bool { return rec.count(Finished) == 1 }, 5*time.Second, 5*time.Millisecond)
	e, ok := rec.find(Finished)
	require.True(t, ok)
	assert.True(t, e.Fallback)
}

func TestFallbackToBase(t *testing.T) {
	rec := &recorder{}
	o := newOrchestrator(t, Options{Kernel: failKernel{}, Fallback: panicKernel{}, Listener: rec})

	o.SetBase("a", cube("base", -5, 5))
	o.SetCutout("a", cube("cut", -2, 2))
	wait(t, o)

	d := o.Display("a")
	assert.Equal(t, "base", d.PartName)
	assert.Equal(t, 12, d.TriangleCount())
	assert.Eventually(t, func() bool { return rec.count(Failed) == 1 }, 5*time.Second, 5*time.Millisecond)
	e, _ := rec.find(Failed)
	assert.Error(t, e.Err)
	assert.True(t, e.Fallback)
}

func TestProgressEvents(t *testing.T) {
	k := newGated()
	rec := &recorder{}
	o := newOrchestrator(t, Options{Kernel: k, Listener: rec})

	o.SetBase("a", cube("base", 0, 10))
	o.SetCutout("a", cube("cut", 2, 4))
	k.release("cut")
	wait(t, o)

	assert.Equal(t, []int{0, 50, 100}, rec.percents())
}

func TestRemove(t *testing.T) {
	k := newGated()
	o := newOrchestrator(t, Options{Kernel: k})

	o.SetBase("b", cube("base", 0, 1))
	o.SetBase("a", cube("base", 0, 1))
	assert.Equal(t, []string{"a", "b"}, o.Instances())

	o.SetCutout("a", cube("cut", 0, 1))
	o.Remove("a")
	k.release("cut")
	assert.Equal(t, []string{"b"}, o.Instances())
	assert.Nil(t, o.Display("a"))
	wait(t, o)
}

func TestNewRequiresKernel(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrNoKernel)
}

func TestPoolConcurrentProgress(t *testing.T) {
	p := NewPool(fanoutKernel{}, 2)
	defer p.Close()

	ch, err := p.Submit(context.Background(), Request{ID: 7, Target: cube("t", 0, 1), Tool: cube("c", 0, 1)})
	require.NoError(t, err)

	last := -1
	var final Message
	for m := range ch {
		assert.Equal(t, uint64(7), m.Request)
		if m.Done {
			final = m
			continue
		}
		assert.Greater(t, m.Percent, last)
		last = m.Percent
	}
	require.True(t, final.Done)
	require.NoError(t, final.Err)
	assert.Equal(t, 12, final.Result.TriangleCount())
}

func TestPoolClosed(t *testing.T) {
	p := NewPool(bsp.New(), 1)
	p.Close()
	_, err := p.Submit(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrPoolClosed)
}
