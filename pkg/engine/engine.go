// Package engine provides the Lisp evaluation engine for fixture scripts.
// It wraps zygomys in a sandboxed environment and produces a fixture.Design
// from user source code.
package engine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/fixtura/pkg/fixture"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning represents a non-fatal warning produced during evaluation.
type EvalWarning struct {
	Line    int
	Col     int
	Message string
	Object  string
}

func (w EvalWarning) String() string {
	msg := w.Message
	if w.Object != "" {
		msg = w.Object + ": " + msg
	}
	if w.Line > 0 {
		return fmt.Sprintf("line %d: %s", w.Line, msg)
	}
	return msg
}

// EvalResult bundles the output of Check: the design plus script and
// validation findings.
type EvalResult struct {
	Design   *fixture.Design
	Errors   []EvalError
	Warnings []EvalWarning
}

// OK reports whether the design can be tessellated.
func (r EvalResult) OK() bool { return r.Design != nil && len(r.Errors) == 0 }

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout overrides EvalTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithDir sets the directory that relative STL paths resolve against.
func WithDir(dir string) Option {
	return func(e *Engine) { e.dir = dir }
}

// Engine wraps the zygomys interpreter for fixture evaluation.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	timeout    time.Duration
	dir        string
}

// NewEngine creates a new Engine instance.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{timeout: EvalTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate takes Lisp source code and produces a new Design.
// Each call creates a fresh zygomys sandbox for deterministic evaluation.
//
// Return semantics:
//   - On success: returns design + nil errors + nil error
//   - On parse/eval failure: returns nil design + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*fixture.Design, []EvalError, error) {
	return e.EvaluateContext(context.Background(), source)
}

// EvaluateContext is Evaluate bounded by ctx as well as the engine timeout.
// Starting a new evaluation cancels the one in flight, which then returns
// ErrSuperseded.
func (e *Engine) EvaluateContext(ctx context.Context, source string) (*fixture.Design, []EvalError, error) {
	ctx, gen, cancel := e.begin(ctx)
	defer cancel()

	ch := make(chan evalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if in, ok := r.(interrupted); ok {
					ch <- evalResult{err: in.err}
					return
				}
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		d, evalErrs, err := e.evaluate(ctx, source)
		ch <- evalResult{design: d, errors: evalErrs, err: err}
	}()

	return e.wait(ctx, gen, ch)
}

// Check evaluates source and validates the resulting design. Validation
// errors are reported as EvalErrors so callers see one list.
func (e *Engine) Check(source string) (EvalResult, error) {
	return e.CheckContext(context.Background(), source)
}

// CheckContext is Check bounded by ctx.
func (e *Engine) CheckContext(ctx context.Context, source string) (EvalResult, error) {
	d, evalErrs, err := e.EvaluateContext(ctx, source)
	if err != nil {
		return EvalResult{}, err
	}
	res := EvalResult{Design: d, Errors: evalErrs}
	if d == nil {
		return res, nil
	}

	v := fixture.Validate(d)
	for _, ve := range v.Errors {
		msg := ve.Message
		if ve.Object != "" {
			msg = ve.Object + ": " + msg
		}
		res.Errors = append(res.Errors, EvalError{Line: ve.Line, Message: msg})
	}
	for _, vw := range v.Warnings {
		res.Warnings = append(res.Warnings, EvalWarning{Line: vw.Line, Message: vw.Message, Object: vw.Object})
	}
	return res, nil
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(ctx context.Context, source string) (*fixture.Design, []EvalError, error) {
	// Empty source is a valid program that produces an empty design.
	if strings.TrimSpace(source) == "" {
		return fixture.New(), nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or
	// syscalls. STL cutouts are read by the cutout builtin itself.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	env.AddPreHook(interruptHook(ctx))

	d := fixture.New()
	registerBuiltins(env, d, e.dir)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}
	return d, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	// zygomys formats parse errors as "Error on line N: <details>\n"
	if m := linePattern.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
	}

	if m := linePatternShort.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
	}

	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
