package vm

import (
	"testing"

	"corevm/internal/bytecode"
	"corevm/internal/errors"
	"corevm/internal/value"
	"corevm/internal/vmtest"
)

// buildCounterGenerator assembles a generator body (any YieldValue makes
// isGeneratorCode true, spec.md §4.7): yields 1, yields 2, then returns 3.
func buildCounterGenerator() *bytecode.CodeObject {
	asm := vmtest.New("counter")
	c1, c2, c3 := asm.Const(value.Int(1)), asm.Const(value.Int(2)), asm.Const(value.Int(3))
	asm.Emit(bytecode.OpLoadConst, 0, c1, 0)
	asm.Emit(bytecode.OpYieldValue, 0, 0, 0)
	asm.Emit(bytecode.OpLoadConst, 0, c2, 0)
	asm.Emit(bytecode.OpYieldValue, 0, 0, 0)
	asm.Emit(bytecode.OpLoadConst, 0, c3, 0)
	asm.Emit(bytecode.OpReturnValue, 0, 0, 0)
	asm.Registers(1)
	return asm.Code()
}

// TestGeneratorFactoryReturnsSuspendedValue checks that calling a
// generator-bodied closure doesn't run any of its body eagerly — it hands
// back a Generator value, the frame bound but unstepped (spec.md §4.7).
func TestGeneratorFactoryReturnsSuspendedValue(t *testing.T) {
	code := buildCounterGenerator()
	machine := New(Config{})
	closure := value.Closure("counter", code, nil, nil)

	gen, err := machine.callClosure(value.AsClosure(closure), callArgs{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !value.IsGenerator(gen) {
		t.Fatalf("expected a Generator value, got %s", value.TypeName(gen))
	}
	if value.AsGenerator(gen).Finished {
		t.Fatal("generator must not be finished before the first resume")
	}
}

// TestGeneratorResumeSequence drives resumeGenerator directly across all
// three suspension points: two yields, then a final ReturnValue reported
// as done=true.
func TestGeneratorResumeSequence(t *testing.T) {
	code := buildCounterGenerator()
	machine := New(Config{})
	closure := value.Closure("counter", code, nil, nil)

	gen, err := machine.callClosure(value.AsClosure(closure), callArgs{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	steps := []struct {
		want value.Value
		done bool
	}{
		{value.Int(1), false},
		{value.Int(2), false},
		{value.Int(3), true},
	}
	for i, step := range steps {
		val, done, err := machine.resumeGenerator(gen)
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		if done != step.done {
			t.Fatalf("step %d: done=%v, want %v", i, done, step.done)
		}
		if !value.Equal(val, step.want) {
			t.Fatalf("step %d: got %s, want %s", i, value.Repr(val), value.Repr(step.want))
		}
	}

	// A fourth resume on an already-finished generator must not panic and
	// must keep reporting done.
	_, done, err := machine.resumeGenerator(gen)
	if err != nil {
		t.Fatalf("resume-past-finish: unexpected error: %v", err)
	}
	if !done {
		t.Fatal("resume-past-finish: expected done=true")
	}
}

// TestNextDrainsGenerator drains a generator through VM.Next (explicitNext
// in iterate.go, the path the Next opcode and next() use) until it
// raises StopIteration (spec.md §4.5's "next() raises StopIteration on
// exhaustion"); the generator's return value 3 is not yielded.
func TestNextDrainsGenerator(t *testing.T) {
	code := buildCounterGenerator()
	machine := New(Config{})
	closure := value.Closure("counter", code, nil, nil)
	gen, err := machine.callClosure(value.AsClosure(closure), callArgs{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []value.Value
	for {
		v, err := machine.Next(gen)
		if err != nil {
			re, ok := err.(*errors.RuntimeError)
			if ok && re.Kind == errors.StopIteration {
				break
			}
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, v)
	}
	want := []value.Value{value.Int(1), value.Int(2)}
	if len(got) != len(want) {
		t.Fatalf("got %d values, want %d", len(got), len(want))
	}
	for i := range want {
		if !value.Equal(got[i], want[i]) {
			t.Errorf("item %d: got %s, want %s", i, value.Repr(got[i]), value.Repr(want[i]))
		}
	}
}
