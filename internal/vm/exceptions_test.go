package vm

import (
	"testing"

	"corevm/internal/bytecode"
	"corevm/internal/value"
	"corevm/internal/vmtest"
)

// TestTryExceptCatchesRaise builds a single-frame try/except around an
// OpRaise and checks the handler runs with CurrentException populated
// (spec.md §4.6).
func TestTryExceptCatchesRaise(t *testing.T) {
	asm := vmtest.New("tryexcept")
	excConst := asm.Const(value.Exception("ValueError", "boom", value.Nil()))
	classNameConst := asm.Const(value.String("ValueError"))
	resultConst := asm.Const(value.String("caught"))

	const (
		regExc    = 0
		regMatch  = 1
		regResult = 2
	)

	setupIdx := asm.Here()
	asm.Emit(bytecode.OpSetupExcept, 0, 0, 0) // patched below
	asm.Emit(bytecode.OpLoadConst, regExc, excConst, 0)
	asm.Emit(bytecode.OpRaise, regExc, 0, 0)

	handlerPC := asm.Here()
	asm.Emit(bytecode.OpGetExceptionValue, regExc, 0, 0)
	asm.Emit(bytecode.OpMatchExceptionType, regMatch, regExc, classNameConst)
	asm.Emit(bytecode.OpLoadConst, regResult, resultConst, 0)
	asm.Emit(bytecode.OpReturnValue, regResult, 0, 0)

	code := asm.Code()
	code.Instructions[setupIdx] = bytecode.Make(bytecode.OpSetupExcept, uint32(handlerPC), 0, 0)
	asm.Registers(3)

	machine := New(Config{})
	result, err := machine.Run(code)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := value.String("caught"); !value.Equal(result, want) {
		t.Errorf("got %s, want %s", value.Repr(result), value.Repr(want))
	}
}

// TestCrossFrameExceptionPropagation raises inside a callee frame with no
// handler of its own and checks the exception unwinds into the caller's
// try/except (spec.md §4.6's "block stacks are per-frame; an uncaught
// exception pops the frame and continues searching the caller").
func TestCrossFrameExceptionPropagation(t *testing.T) {
	innerAsm := vmtest.New("raiser")
	innerExcConst := innerAsm.Const(value.Exception("ValueError", "deep boom", value.Nil()))
	innerAsm.Emit(bytecode.OpLoadConst, 0, innerExcConst, 0)
	innerAsm.Emit(bytecode.OpRaise, 0, 0, 0)
	innerAsm.Registers(1)
	innerCode := innerAsm.Code()

	outerAsm := vmtest.New("caller")
	codeConst := outerAsm.Const(value.Code(innerCode))
	classNameConst := outerAsm.Const(value.String("ValueError"))
	resultConst := outerAsm.Const(value.String("caught-cross-frame"))

	const (
		regClosure = 0
		regResult  = 1
		regExc     = 2
		regMatch   = 3
	)

	setupIdx := outerAsm.Here()
	outerAsm.Emit(bytecode.OpSetupExcept, 0, 0, 0) // patched below
	outerAsm.Emit(bytecode.OpMakeFunction, regClosure, codeConst, 0)
	outerAsm.Emit(bytecode.OpCallFunction, regResult, regClosure, 0)
	outerAsm.Emit(bytecode.OpReturnValue, regResult, 0, 0) // unreachable in this scenario

	handlerPC := outerAsm.Here()
	outerAsm.Emit(bytecode.OpGetExceptionValue, regExc, 0, 0)
	outerAsm.Emit(bytecode.OpMatchExceptionType, regMatch, regExc, classNameConst)
	outerAsm.Emit(bytecode.OpLoadConst, regResult, resultConst, 0)
	outerAsm.Emit(bytecode.OpReturnValue, regResult, 0, 0)

	outerCode := outerAsm.Code()
	outerCode.Instructions[setupIdx] = bytecode.Make(bytecode.OpSetupExcept, uint32(handlerPC), 0, 0)
	outerAsm.Registers(4)

	machine := New(Config{})
	result, err := machine.Run(outerCode)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := value.String("caught-cross-frame"); !value.Equal(result, want) {
		t.Errorf("got %s, want %s", value.Repr(result), value.Repr(want))
	}
}

// TestUncaughtExceptionReturnsTraceback checks that an exception with no
// handler anywhere on the frame stack surfaces as the Run error, with at
// least one traceback frame recorded (spec.md §6).
func TestUncaughtExceptionReturnsTraceback(t *testing.T) {
	asm := vmtest.New("uncaught")
	excConst := asm.Const(value.Exception("RuntimeError", "no handler", value.Nil()))
	asm.Emit(bytecode.OpLoadConst, 0, excConst, 0)
	asm.Emit(bytecode.OpRaise, 0, 0, 0)
	asm.Registers(1)

	machine := New(Config{})
	_, err := machine.Run(asm.Code())
	if err == nil {
		t.Fatal("expected an uncaught-exception error")
	}
	if vex, ok := err.(*vmException); !ok || len(vex.runtime.Frames) == 0 {
		t.Fatalf("expected an exception with at least one traceback frame, got %v", err)
	}
}
