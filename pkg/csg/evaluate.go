// Package csg orchestrates boolean subtraction of cutouts from support
// solids. Evaluations run on a background pool; each instance has a
// controller that applies only the newest result, suspends while the
// instance is being dragged and falls back to a synchronous evaluation and
// then to the plain base solid when the evaluator fails.
package csg

import (
	"context"
	"errors"
	"fmt"

	"github.com/chazu/fixtura/pkg/kernel"
	"github.com/chazu/fixtura/pkg/mesh"
)

var (
	ErrEmptyTarget = errors.New("csg: empty target")
	ErrNoKernel    = errors.New("csg: no kernel")
	ErrPoolClosed  = errors.New("csg: pool closed")
)

// Op is a boolean operation. Only subtraction is supported.
type Op int

const Subtract Op = 0

// Request is one boolean evaluation. Target and Tool are snapshots owned by
// the request.
type Request struct {
	ID       uint64
	Instance string
	Target   *mesh.Buffer
	Tool     *mesh.Buffer
	Op       Op
}

// Evaluate runs req on k. It is the single evaluation path used by pool
// workers and by the synchronous fallback. Inputs are cloned and given a
// zero UV channel when they lack one; a panic inside the kernel is returned
// as an error.
func Evaluate(ctx context.Context, k kernel.Kernel, req Request, progress kernel.Progress) (out *mesh.Buffer, err error) {
	if k == nil {
		return nil, ErrNoKernel
	}
	if req.Op != Subtract {
		return nil, fmt.Errorf("csg: unsupported operation %d", req.Op)
	}
	if req.Target.IsEmpty() {
		return nil, ErrEmptyTarget
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("csg: %s kernel panicked: %v", k.Name(), r)
		}
	}()

	target := req.Target.Clone()
	target.EnsureUVs()
	if req.Tool.IsEmpty() {
		progress.Report(100)
		return target, nil
	}
	tool := req.Tool.Clone()
	tool.EnsureUVs()

	out, err = k.Subtract(ctx, target, tool, progress)
	if err != nil {
		return nil, fmt.Errorf("csg: %s subtract: %w", k.Name(), err)
	}
	if out == nil {
		return nil, fmt.Errorf("csg: %s subtract returned no mesh", k.Name())
	}
	if out.PartName == "" {
		out.PartName = req.Target.PartName
	}
	return out, nil
}

// SubtractCutout subtracts cutout from solid and blocks until the result is
// ready. It fails only when the evaluator itself fails; callers fall back
// to showing solid.
func SubtractCutout(ctx context.Context, k kernel.Kernel, solid, cutout *mesh.Buffer, progress kernel.Progress) (*mesh.Buffer, error) {
	return Evaluate(ctx, k, Request{Target: solid, Tool: cutout, Op: Subtract}, progress)
}
