package fn

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestResultBasics(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok result misreports state")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatalf("Unwrap = (%d, %v)", v, err)
	}

	e := Err[int](errors.New("boom"))
	if e.IsOk() || !e.IsErr() {
		t.Fatal("Err result misreports state")
	}
	if got := e.UnwrapOr(7); got != 7 {
		t.Errorf("UnwrapOr = %d, want 7", got)
	}

	f := Errf[int]("bad %s", "input")
	if _, err := f.Unwrap(); err == nil || !strings.Contains(err.Error(), "bad input") {
		t.Errorf("Errf = %v", err)
	}
}

func TestMapResultAndFromPair(t *testing.T) {
	doubled := MapResult(Ok(21), func(n int) int { return n * 2 })
	if v, _ := doubled.Unwrap(); v != 42 {
		t.Errorf("MapResult = %d", v)
	}

	failed := MapResult(Err[int](errors.New("x")), func(n int) int { return n })
	if failed.IsOk() {
		t.Error("MapResult must propagate errors")
	}

	if r := FromPair(1, nil); r.IsErr() {
		t.Error("FromPair(v, nil) should be ok")
	}
	if r := FromPair(0, errors.New("x")); r.IsOk() {
		t.Error("FromPair(v, err) should be an error")
	}
}

func TestThen_ShortCircuits(t *testing.T) {
	calls := 0
	first := func(_ context.Context, s string) Result[int] {
		return Err[int](errors.New("first failed"))
	}
	second := func(_ context.Context, n int) Result[string] {
		calls++
		return Ok("done")
	}
	r := Then(first, second)(context.Background(), "in")
	if r.IsOk() {
		t.Fatal("expected error")
	}
	if calls != 0 {
		t.Error("second stage must not run after a failure")
	}
}

func TestThen_ChainsValues(t *testing.T) {
	first := MapStage(func(s string) int { return len(s) })
	second := MapStage(func(n int) int { return n * 10 })
	r := Then(first, second)(context.Background(), "abcd")
	if v, _ := r.Unwrap(); v != 40 {
		t.Errorf("chain = %d, want 40", v)
	}
}

func TestPipeline(t *testing.T) {
	inc := MapStage(func(n int) int { return n + 1 })
	fail := func(_ context.Context, n int) Result[int] {
		return Errf[int]("stop at %d", n)
	}

	if v, _ := Pipeline(inc, inc, inc)(context.Background(), 0).Unwrap(); v != 3 {
		t.Errorf("pipeline = %d, want 3", v)
	}

	r := Pipeline(inc, fail, inc)(context.Background(), 0)
	if _, err := r.Unwrap(); err == nil || !strings.Contains(err.Error(), "stop at 1") {
		t.Errorf("pipeline error = %v", err)
	}
}

func TestTapStage(t *testing.T) {
	var seen int
	tap := TapStage(func(_ context.Context, n int) { seen = n })
	r := tap(context.Background(), 5)
	if v, _ := r.Unwrap(); v != 5 || seen != 5 {
		t.Errorf("tap = %d, seen = %d", v, seen)
	}
}

func TestTracedStage_PassesThrough(t *testing.T) {
	stage := TracedStage("test.stage", MapStage(func(n int) int { return n * 2 }))
	if v, _ := stage(context.Background(), 3).Unwrap(); v != 6 {
		t.Errorf("traced = %d, want 6", v)
	}

	failing := TracedStage("test.fail", func(_ context.Context, n int) Result[int] {
		return Err[int](errors.New("boom"))
	})
	if failing(context.Background(), 1).IsOk() {
		t.Error("traced stage must propagate errors")
	}
}
