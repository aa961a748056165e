package vm

import (
	"testing"

	"corevm/internal/bytecode"
	"corevm/internal/value"
	"corevm/internal/vmtest"
)

// buildFib assembles a recursive fib(n) CodeObject that looks itself up
// by name in globals on each recursive call, the way a module-level
// `def fib(n): ...` closure would. Exercises pushInlineClosure's
// frame-per-call-site recursion (callops.go), which is what keeps
// VM-level recursion bounded by maxFrameDepth instead of Go's call
// stack (spec.md §4.1/§5).
func buildFib() *bytecode.CodeObject {
	asm := vmtest.New("fib")
	nSlot := asm.Local("n")
	nameFib := asm.Name("fib")
	c1, c2 := asm.Const(value.Int(1)), asm.Const(value.Int(2))

	const (
		regN      = 0
		regTwo    = 1
		regCmp    = 2
		regCallee = 4
		regArg    = 5
		regR1     = 6
		regR2     = 7
		regSum    = 8
	)

	asm.Emit(bytecode.OpLoadFast, regN, nSlot, 0)
	asm.Emit(bytecode.OpLoadConst, regTwo, c2, 0)
	asm.Emit(bytecode.OpCompareLess, regCmp, regN, regTwo)
	baseJump := asm.Here()
	asm.Emit(bytecode.OpJumpIfFalse, regCmp, 0, 0) // patched below
	asm.Emit(bytecode.OpLoadFast, regN, nSlot, 0)
	asm.Emit(bytecode.OpReturnValue, regN, 0, 0)

	recurStart := asm.Here()
	asm.Emit(bytecode.OpLoadGlobal, regCallee, nameFib, 0)
	asm.Emit(bytecode.OpLoadFast, regArg, nSlot, 0)
	asm.Emit(bytecode.OpBinarySubRI, regArg, regArg, c1)
	asm.Emit(bytecode.OpCallFunction, regR1, regCallee, 1)

	asm.Emit(bytecode.OpLoadGlobal, regCallee, nameFib, 0)
	asm.Emit(bytecode.OpLoadFast, regArg, nSlot, 0)
	asm.Emit(bytecode.OpBinarySubRI, regArg, regArg, c2)
	asm.Emit(bytecode.OpCallFunction, regR2, regCallee, 1)

	asm.Emit(bytecode.OpBinaryAddRR, regSum, regR1, regR2)
	asm.Emit(bytecode.OpReturnValue, regSum, 0, 0)

	code := asm.Code()
	code.Instructions[baseJump] = bytecode.Make(bytecode.OpJumpIfFalse, regCmp, recurStart, 0)
	code.Params = []bytecode.Param{{Name: "n", Kind: bytecode.ParamPositional}}
	asm.Registers(9)
	return code
}

func TestRecursiveClosureCall(t *testing.T) {
	fibCode := buildFib()

	outer := vmtest.New("module")
	nameFib := outer.Name("fib")
	cCode := outer.Const(value.Code(fibCode))
	cN := outer.Const(value.Int(10))
	const (
		regClosure = 0
		regCallee  = 1
		regArg     = 2
		regResult  = 3
	)
	outer.Emit(bytecode.OpMakeFunction, regClosure, cCode, 0)
	outer.Emit(bytecode.OpStoreGlobal, nameFib, regClosure, 0)
	outer.Emit(bytecode.OpLoadGlobal, regCallee, nameFib, 0)
	outer.Emit(bytecode.OpLoadConst, regArg, cN, 0)
	outer.Emit(bytecode.OpCallFunction, regResult, regCallee, 1)
	outer.Emit(bytecode.OpReturnValue, regResult, 0, 0)
	outer.Registers(4)

	machine := New(Config{})
	result, err := machine.Run(outer.Code())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := value.Int(55); !value.Equal(result, want) {
		t.Errorf("fib(10): got %s, want %s", value.Repr(result), value.Repr(want))
	}
}
