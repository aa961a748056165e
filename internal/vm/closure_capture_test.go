package vm

import (
	"testing"

	"corevm/internal/bytecode"
	"corevm/internal/value"
	"corevm/internal/vmtest"
)

// buildMutatorClosureBody assembles a free-variable "x" reader/mutator:
// it reads its own captured x, overwrites its own cell with 99, then
// returns the value it saw *before* the overwrite.
func buildMutatorClosureBody() *bytecode.CodeObject {
	asm := vmtest.New("mutator")
	xFree := asm.FreeVar("x")
	c99 := asm.Const(value.Int(99))
	const (
		regOld = 0
		regNew = 1
	)
	asm.Emit(bytecode.OpLoadClosure, regOld, xFree, 0)
	asm.Emit(bytecode.OpLoadConst, regNew, c99, 0)
	asm.Emit(bytecode.OpStoreClosure, xFree, regNew, 0)
	asm.Emit(bytecode.OpReturnValue, regOld, 0, 0)
	asm.Registers(2)
	return asm.Code()
}

// TestClosureCapturesFreeVariableByValue builds two closures over the same
// inner code from the same enclosing local "x" (both made while x == 10),
// calls the first (which mutates its own captured cell to 99 internally),
// then calls the second and checks it still observes 10 — closures.go's
// documented snapshot-at-creation-time semantics, not a live shared cell
// (DESIGN.md Open Question #6).
func TestClosureCapturesFreeVariableByValue(t *testing.T) {
	innerCode := buildMutatorClosureBody()

	outer := vmtest.New("module")
	xSlot := outer.Local("x")
	c10 := outer.Const(value.Int(10))
	codeConst := outer.Const(value.Code(innerCode))
	name1, name2 := outer.Name("c1"), outer.Name("c2")

	const (
		regX        = 0
		regClosure1 = 1
		regClosure2 = 2
		regCallee   = 3
		regR1       = 4
		regR2       = 5
		regList     = 6
	)

	outer.Emit(bytecode.OpLoadConst, regX, c10, 0)
	outer.Emit(bytecode.OpStoreFast, xSlot, regX, 0)
	outer.Emit(bytecode.OpMakeFunction, regClosure1, codeConst, 0)
	outer.Emit(bytecode.OpStoreGlobal, name1, regClosure1, 0)
	outer.Emit(bytecode.OpMakeFunction, regClosure2, codeConst, 0)
	outer.Emit(bytecode.OpStoreGlobal, name2, regClosure2, 0)

	outer.Emit(bytecode.OpLoadGlobal, regCallee, name1, 0)
	outer.Emit(bytecode.OpCallFunction, regR1, regCallee, 0)
	outer.Emit(bytecode.OpLoadGlobal, regCallee, name2, 0)
	outer.Emit(bytecode.OpCallFunction, regR2, regCallee, 0)

	outer.Emit(bytecode.OpBuildList, regList, regR1, 2)
	outer.Emit(bytecode.OpReturnValue, regList, 0, 0)
	outer.Registers(7)

	machine := New(Config{})
	result, err := machine.Run(outer.Code())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := value.List([]value.Value{value.Int(10), value.Int(10)})
	if !value.Equal(result, want) {
		t.Errorf("got %s, want %s — closure2 must not observe closure1's internal mutation", value.Repr(result), value.Repr(want))
	}
}
