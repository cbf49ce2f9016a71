package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/fixtura/pkg/fixture"
)

// EvalTimeout is the default limit for a single evaluation.
const EvalTimeout = 5 * time.Second

var (
	// ErrTimeout is returned when a script runs longer than the engine's
	// timeout.
	ErrTimeout = errors.New("engine: evaluation timed out")
	// ErrSuperseded is returned to an evaluation that a newer call to
	// Evaluate replaced.
	ErrSuperseded = errors.New("engine: evaluation superseded by newer request")
)

// evalResult is the internal type used to pass evaluation results through channels.
type evalResult struct {
	design *fixture.Design
	errors []EvalError
	err    error
}

// interrupted unwinds a running script from the call hook.
type interrupted struct{ err error }

// begin starts a new generation and cancels the evaluation it replaces. The
// returned context carries the engine timeout.
func (e *Engine) begin(parent context.Context) (context.Context, uint64, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, e.timeout)
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.generation++
	gen := e.generation
	e.cancel = cancel
	e.mu.Unlock()
	return ctx, gen, cancel
}

func (e *Engine) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation == gen
}

// wait blocks until generation gen produces a result or ctx ends. Results
// of a generation that is no longer current are discarded.
func (e *Engine) wait(ctx context.Context, gen uint64, ch <-chan evalResult) (*fixture.Design, []EvalError, error) {
	select {
	case res := <-ch:
		if !e.current(gen) {
			return nil, nil, ErrSuperseded
		}
		return res.design, res.errors, res.err
	case <-ctx.Done():
		if !e.current(gen) {
			return nil, nil, ErrSuperseded
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
		}
		return nil, nil, ctx.Err()
	}
}

// interruptHook stops the script at its next builtin call once ctx is done.
// zygomys has no cancellation of its own.
func interruptHook(ctx context.Context) zygo.PreHook {
	return func(*zygo.Zlisp, string, []zygo.Sexp) {
		if err := ctx.Err(); err != nil {
			panic(interrupted{err})
		}
	}
}
