package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/chazu/fixtura/pkg/config"
	"github.com/chazu/fixtura/pkg/csg"
	"github.com/chazu/fixtura/pkg/engine"
	"github.com/chazu/fixtura/pkg/mesh"
	"github.com/chazu/fixtura/pkg/support"
	"github.com/chazu/fixtura/pkg/tessellate"

	// Boolean kernels selectable by name in the config.
	_ "github.com/chazu/fixtura/pkg/kernel/bsp"
	_ "github.com/chazu/fixtura/pkg/kernel/manifold"
)

// App runs a fixture script through the whole pipeline: evaluation,
// validation, tessellation and boolean subtraction.
type App struct {
	engine  *engine.Engine
	support support.Options
	csg     csg.Options
}

// Part is one support with its cutouts subtracted, placed in world space.
type Part struct {
	Name    string
	Mesh    *mesh.Buffer
	Cutouts int
	// Subtracted is false when the cutouts could not be applied and Mesh is
	// the plain support.
	Subtracted bool
	Fallback   bool
}

// Result is the full output of Evaluate.
type Result struct {
	Parts    []Part
	Errors   []engine.EvalError
	Warnings []engine.EvalWarning
}

// NewApp creates an App from cfg. Relative STL paths in scripts resolve
// against dir.
func NewApp(cfg config.Config, dir string) (*App, error) {
	timeout, err := cfg.ScriptTimeout()
	if err != nil {
		return nil, err
	}
	opts, err := cfg.Orchestrator(nil)
	if err != nil {
		return nil, err
	}
	return &App{
		engine:  engine.NewEngine(engine.WithTimeout(timeout), engine.WithDir(dir)),
		support: cfg.SupportOptions(),
		csg:     opts,
	}, nil
}

// outcomes records the final event of every instance.
type outcomes struct {
	mu   sync.Mutex
	last map[string]csg.Event
}

func (o *outcomes) OnEvent(e csg.Event) {
	switch e.Kind {
	case csg.Finished, csg.Failed:
		o.mu.Lock()
		o.last[e.Instance] = e
		o.mu.Unlock()
	}
	ev := log.Debug()
	if e.Kind == csg.Failed {
		ev = log.Warn().Err(e.Err)
	}
	ev.Str("support", e.Instance).
		Uint64("request", e.Request).
		Stringer("event", e.Kind).
		Int("percent", e.Percent).
		Bool("fallback", e.Fallback).
		Msg("boolean evaluation")
}

func (o *outcomes) get(instance string) (csg.Event, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.last[instance]
	return e, ok
}

func fatal(result *Result, format string, args ...any) Result {
	msg := fmt.Sprintf(format, args...)
	log.Error().Msg(msg)
	result.Errors = append(result.Errors, engine.EvalError{Message: msg})
	return *result
}

// Evaluate takes Lisp source and returns the placed parts plus any errors.
// Parts are in script order. The caller owns the returned meshes.
func (a *App) Evaluate(ctx context.Context, source string) Result {
	var result Result

	// Step 1: Evaluate and validate the script.
	checked, err := a.engine.CheckContext(ctx, source)
	if err != nil {
		return fatal(&result, "evaluation failed: %v", err)
	}
	result.Errors = checked.Errors
	result.Warnings = checked.Warnings
	if !checked.OK() {
		return result
	}

	// Step 2: Build the base solid and cutout tool of every support.
	instances, err := tessellate.Tessellate(ctx, checked.Design, a.support)
	if err != nil {
		return fatal(&result, "tessellation failed: %v", err)
	}

	// Step 3: Subtract the cutouts. The orchestrator owns the meshes from
	// here on.
	rec := &outcomes{last: make(map[string]csg.Event)}
	opts := a.csg
	opts.Listener = rec
	orch, err := csg.New(opts)
	if err != nil {
		for _, in := range instances {
			in.Dispose()
		}
		return fatal(&result, "orchestrator: %v", err)
	}
	defer orch.Close()

	for _, in := range instances {
		orch.SetCutout(in.Name, in.Tool)
		orch.SetBase(in.Name, in.Base)
		in.Base, in.Tool = nil, nil
	}
	if err := orch.Wait(ctx); err != nil {
		return fatal(&result, "waiting for boolean results: %v", err)
	}

	// Step 4: Move every result to world space.
	for _, in := range instances {
		local := orch.Display(in.Name)
		if local == nil {
			continue
		}
		placed := in.Placement.Apply(local)
		local.Dispose()
		placed.PartName = in.Name

		part := Part{Name: in.Name, Mesh: placed, Cutouts: in.Cutouts}
		if e, ok := rec.get(in.Name); ok {
			part.Subtracted = e.Kind == csg.Finished
			part.Fallback = e.Fallback
		}
		result.Parts = append(result.Parts, part)
	}
	return result
}
