package vm

import (
	"testing"

	"corevm/internal/bytecode"
	"corevm/internal/value"
	"corevm/internal/vmtest"
)

// TestLoopAccumulatesWithBreak builds a while-style loop by hand:
//
//	i = 0; sum = 0
//	while true:
//	    if i == 5: break
//	    sum += i
//	    i += 1
//	return sum
//
// exercising CompareEqual/JumpIfTrue/Jump together (spec.md §4.1's
// control-flow family); the backward Jump also passes through the hot-loop
// detector hook (jitloop.go), and the test checks that the result is
// unaffected.
func TestLoopAccumulatesWithBreak(t *testing.T) {
	asm := vmtest.New("loop")
	const (
		regI   = 0
		regSum = 1
		reg5   = 2
		regCmp = 3
	)
	c0, c5, c1 := asm.Const(value.Int(0)), asm.Const(value.Int(5)), asm.Const(value.Int(1))

	asm.Emit(bytecode.OpLoadConst, regI, c0, 0)
	asm.Emit(bytecode.OpLoadConst, regSum, c0, 0)

	loopStart := asm.Here()
	asm.Emit(bytecode.OpLoadConst, reg5, c5, 0)
	asm.Emit(bytecode.OpCompareEqual, regCmp, regI, reg5)
	breakJump := asm.Here()
	asm.Emit(bytecode.OpJumpIfTrue, regCmp, 0, 0) // patched below
	asm.Emit(bytecode.OpBinaryAddRR, regSum, regSum, regI)
	asm.Emit(bytecode.OpLoadConst, reg5 /* reuse as one-const reg */, c1, 0)
	asm.Emit(bytecode.OpBinaryAddRR, regI, regI, reg5)
	asm.Emit(bytecode.OpJump, 0, loopStart, 0)
	loopEnd := asm.Here()
	asm.Emit(bytecode.OpReturnValue, regSum, 0, 0)

	code := asm.Code()
	code.Instructions[breakJump] = bytecode.Make(bytecode.OpJumpIfTrue, regCmp, loopEnd, 0)
	asm.Registers(4)

	machine := New(Config{})
	result, err := machine.Run(code)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := value.Int(10); !value.Equal(result, want) {
		t.Errorf("result mismatch: %v", vmtest.Diff(result, want))
	}
}

// TestForIterOverList drains a GetIter/ForIter loop over a built list,
// matching the opcode contract dispatch.go documents for ForIter (A=iter
// reg, B=target reg, C=end pc).
func TestForIterOverList(t *testing.T) {
	asm := vmtest.New("foriter")
	const (
		regList = 0
		regIter = 1
		regItem = 2
		regSum  = 3
	)
	c1, c2, c3, c0 := asm.Const(value.Int(1)), asm.Const(value.Int(2)), asm.Const(value.Int(3)), asm.Const(value.Int(0))
	asm.Emit(bytecode.OpLoadConst, 4, c1, 0)
	asm.Emit(bytecode.OpLoadConst, 5, c2, 0)
	asm.Emit(bytecode.OpLoadConst, 6, c3, 0)
	asm.Emit(bytecode.OpBuildList, regList, 4, 3)
	asm.Emit(bytecode.OpGetIter, regIter, regList, 0)
	asm.Emit(bytecode.OpLoadConst, regSum, c0, 0)

	loopStart := asm.Here()
	forIterPC := asm.Here()
	asm.Emit(bytecode.OpForIter, regIter, regItem, 0) // C patched below
	asm.Emit(bytecode.OpBinaryAddRR, regSum, regSum, regItem)
	asm.Emit(bytecode.OpJump, 0, loopStart, 0)
	loopEnd := asm.Here()
	asm.Emit(bytecode.OpReturnValue, regSum, 0, 0)

	code := asm.Code()
	code.Instructions[forIterPC] = bytecode.Make(bytecode.OpForIter, regIter, regItem, loopEnd)
	asm.Registers(8)

	machine := New(Config{})
	result, err := machine.Run(code)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := value.Int(6); !value.Equal(result, want) {
		t.Errorf("result mismatch: %v", vmtest.Diff(result, want))
	}
}
