package krotov

import (
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"
)

func TestChainInfoHooks(t *testing.T) {
	var calls []string
	hook := ChainInfoHooks(
		func(d *IterationData) (interface{}, error) {
			calls = append(calls, "a")
			return "a", nil
		},
		func(d *IterationData) (interface{}, error) {
			calls = append(calls, "b")
			return nil, nil
		},
		func(d *IterationData) (interface{}, error) {
			calls = append(calls, "c")
			return "c", nil
		},
	)

	v, err := hook(&IterationData{})
	if err != nil {
		t.Fatalf("hook failed: %v", err)
	}
	if v != "c" {
		t.Errorf("combined value = %v, want the last non-nil value %q", v, "c")
	}
	if len(calls) != 3 || calls[0] != "a" || calls[1] != "b" || calls[2] != "c" {
		t.Errorf("calls = %v, want [a b c]", calls)
	}
}

func TestChainInfoHooksStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	called := false
	hook := ChainInfoHooks(
		func(d *IterationData) (interface{}, error) { return nil, boom },
		func(d *IterationData) (interface{}, error) { called = true; return nil, nil },
	)

	_, err := hook(&IterationData{})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
	if called {
		t.Error("hooks after a failing hook must not run")
	}
}

func TestLogProgress(t *testing.T) {
	hook := LogProgress(zap.NewNop())

	v, err := hook(&IterationData{
		TauVals: []complex128{complex(0.6, 0.8)},
	})
	if err != nil {
		t.Fatalf("hook failed: %v", err)
	}
	infidelity, ok := v.(float64)
	if !ok {
		t.Fatalf("info value is %T, want float64", v)
	}
	if math.Abs(infidelity) > 1e-14 {
		t.Errorf("infidelity = %v, want 0", infidelity)
	}
}
