package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEvaluateEmptyString(t *testing.T) {
	eng := NewEngine()

	d, evalErrs, err := eng.Evaluate("")
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if d == nil {
		t.Fatal("expected non-nil design")
	}
	if len(d.Supports) != 0 {
		t.Errorf("expected empty design, got %d supports", len(d.Supports))
	}
}

func TestEvaluateWhitespaceOnly(t *testing.T) {
	eng := NewEngine()

	d, evalErrs, err := eng.Evaluate("   \n\t  \n  ")
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if d == nil {
		t.Fatal("expected non-nil design")
	}
}

func TestEvaluateValidExpression(t *testing.T) {
	eng := NewEngine()

	// Plain Lisp that creates no supports yields an empty design.
	d, evalErrs, err := eng.Evaluate("(+ 1 2)")
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if d == nil {
		t.Fatal("expected non-nil design")
	}
	if len(d.Supports) != 0 || len(d.Cutouts) != 0 {
		t.Errorf("expected empty design, got %d supports, %d cutouts", len(d.Supports), len(d.Cutouts))
	}
}

func TestEvaluateMultipleExpressions(t *testing.T) {
	eng := NewEngine()

	source := `
(def x 10)
(def y 20)
(+ x y)
`
	d, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if d == nil {
		t.Fatal("expected non-nil design")
	}
}

func TestEvaluateSyntaxError(t *testing.T) {
	eng := NewEngine()

	// Unmatched paren is a parse error.
	d, evalErrs, err := eng.Evaluate("(+ 1 2")
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if d != nil {
		t.Fatal("expected nil design on syntax error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error for syntax error")
	}
	if evalErrs[0].Message == "" {
		t.Error("eval error message should not be empty")
	}
}

func TestEvaluateUndefinedSymbol(t *testing.T) {
	eng := NewEngine()

	d, evalErrs, err := eng.Evaluate("(+ 1 undefined-symbol)")
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if d != nil {
		t.Fatal("expected nil design on eval error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error for undefined symbol")
	}
}

func TestEvalErrorImplementsError(t *testing.T) {
	e := EvalError{Line: 5, Message: "something went wrong"}
	s := e.Error()
	if !strings.Contains(s, "line 5") {
		t.Errorf("Error() should contain line info, got: %s", s)
	}
	if !strings.Contains(s, "something went wrong") {
		t.Errorf("Error() should contain message, got: %s", s)
	}

	e2 := EvalError{Message: "no location"}
	if s2 := e2.Error(); strings.Contains(s2, "line") {
		t.Errorf("Error() with no line should not contain 'line', got: %s", s2)
	}
}

func TestEvalWarningString(t *testing.T) {
	w := EvalWarning{Line: 3, Object: "left", Message: "fillet reduced"}
	if got, want := w.String(), "line 3: left: fillet reduced"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := (EvalWarning{Message: "bare"}).String(); got != "bare" {
		t.Errorf("String() = %q, want %q", got, "bare")
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	eng := NewEngine()

	source := `(support "s" :shape (rect 10 10) :height 5)`
	for i := 0; i < 5; i++ {
		d, evalErrs, err := eng.Evaluate(source)
		if err != nil {
			t.Fatalf("iteration %d: unexpected fatal error: %v", i, err)
		}
		if len(evalErrs) > 0 {
			t.Fatalf("iteration %d: unexpected eval errors: %v", i, evalErrs)
		}
		if len(d.Supports) != 1 {
			t.Errorf("iteration %d: expected 1 support, got %d", i, len(d.Supports))
		}
	}
}

func TestWithTimeout(t *testing.T) {
	if got := NewEngine().timeout; got != EvalTimeout {
		t.Errorf("default timeout = %s, want %s", got, EvalTimeout)
	}
	if got := NewEngine(WithTimeout(time.Second)).timeout; got != time.Second {
		t.Errorf("timeout = %s, want 1s", got)
	}
	if got := NewEngine(WithTimeout(-1)).timeout; got != EvalTimeout {
		t.Errorf("negative timeout should be ignored, got %s", got)
	}
}

func TestEvaluateTimeout(t *testing.T) {
	e := NewEngine(WithTimeout(100 * time.Millisecond))

	start := time.Now()
	_, _, err := e.Evaluate(`(for [(def i 0) true (def i (+ i 1))] i)`)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !strings.Contains(err.Error(), "100ms") {
		t.Errorf("timeout error should name the limit, got: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took %s", elapsed)
	}

	// The engine stays usable after an interrupted script.
	d, evalErrs, err := e.Evaluate(`(support "a" :shape (cylinder 5) :height 3)`)
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("unexpected failure after timeout: %v %v", err, evalErrs)
	}
	if len(d.Supports) != 1 {
		t.Errorf("expected 1 support, got %d", len(d.Supports))
	}
}

func TestEvaluateContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewEngine().EvaluateContext(ctx, `(for [(def i 0) true (def i (+ i 1))] i)`)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEvaluateGenerationDiscardsStale(t *testing.T) {
	e := NewEngine(WithTimeout(10 * time.Second))

	stale := make(chan error, 1)
	go func() {
		_, _, err := e.Evaluate(`(for [(def i 0) true (def i (+ i 1))] i)`)
		stale <- err
	}()
	for !e.running(1) {
		time.Sleep(time.Millisecond)
	}

	d, _, err := e.Evaluate(`(support "a" :shape (cylinder 5) :height 3)`)
	if err != nil {
		t.Fatalf("newer evaluation failed: %v", err)
	}
	if len(d.Supports) != 1 {
		t.Errorf("expected 1 support, got %d", len(d.Supports))
	}

	select {
	case err := <-stale:
		if !errors.Is(err, ErrSuperseded) {
			t.Errorf("expected ErrSuperseded, got: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("superseded evaluation did not return")
	}
}

func (e *Engine) running(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation >= gen
}

func TestParseZygomysError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantLine int
		wantMsg  string
	}{
		{
			name:     "error on line format",
			msg:      "Error on line 5: unexpected token\n",
			wantLine: 5,
			wantMsg:  "unexpected token",
		},
		{
			name:     "no line info",
			msg:      "some generic error",
			wantLine: 0,
			wantMsg:  "some generic error",
		},
		{
			name:     "line format lowercase",
			msg:      "error on line 12: missing paren",
			wantLine: 12,
			wantMsg:  "missing paren",
		},
		{
			name:     "short line format",
			msg:      "line 7: bad shape",
			wantLine: 7,
			wantMsg:  "bad shape",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := parseZygomysError(errString(tt.msg))
			if len(errs) == 0 {
				t.Fatal("expected at least one error")
			}
			e := errs[0]
			if e.Line != tt.wantLine {
				t.Errorf("line = %d, want %d", e.Line, tt.wantLine)
			}
			if !strings.Contains(e.Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", e.Message, tt.wantMsg)
			}
		})
	}
}

// errString is a simple error type for testing.
type errString string

func (e errString) Error() string { return string(e) }
