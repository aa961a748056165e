package vm

import (
	"testing"

	"corevm/internal/bytecode"
	"corevm/internal/value"
	"corevm/internal/vmtest"
)

// TestArithmeticAddressingModes exercises the RR/RI/IR three-mode cascade
// spec.md §4.4 specializes for each binary operator (the same template
// the teacher's OP_ADD/OP_ADDK/OP_ADDI cascade grounds, see DESIGN.md).
func TestArithmeticAddressingModes(t *testing.T) {
	tests := []struct {
		name     string
		build    func(a *vmtest.Asm)
		expected value.Value
	}{
		{
			name: "add RR",
			build: func(a *vmtest.Asm) {
				c10, c20 := a.Const(value.Int(10)), a.Const(value.Int(20))
				a.Emit(bytecode.OpLoadConst, 0, c10, 0)
				a.Emit(bytecode.OpLoadConst, 1, c20, 0)
				a.Emit(bytecode.OpBinaryAddRR, 2, 0, 1)
				a.Emit(bytecode.OpReturnValue, 2, 0, 0)
			},
			expected: value.Int(30),
		},
		{
			name: "sub RI",
			build: func(a *vmtest.Asm) {
				c50, c20 := a.Const(value.Int(50)), a.Const(value.Int(20))
				a.Emit(bytecode.OpLoadConst, 0, c50, 0)
				// RI: dest=1, left reg=0, right=const index c20
				a.Emit(bytecode.OpBinarySubRI, 1, 0, c20)
				a.Emit(bytecode.OpReturnValue, 1, 0, 0)
			},
			expected: value.Int(30),
		},
		{
			name: "mul IR",
			build: func(a *vmtest.Asm) {
				c5, c6 := a.Const(value.Int(5)), a.Const(value.Int(6))
				a.Emit(bytecode.OpLoadConst, 0, c6, 0)
				// IR: dest=1, left=const index c5, right reg=0
				a.Emit(bytecode.OpBinaryMulIR, 1, c5, 0)
				a.Emit(bytecode.OpReturnValue, 1, 0, 0)
			},
			expected: value.Int(30),
		},
		{
			name: "fast int add",
			build: func(a *vmtest.Asm) {
				c1, c2 := a.Const(value.Int(1)), a.Const(value.Int(2))
				a.Emit(bytecode.OpLoadConst, 0, c1, 0)
				a.Emit(bytecode.OpLoadConst, 1, c2, 0)
				a.Emit(bytecode.OpFastIntAdd, 2, 0, 1)
				a.Emit(bytecode.OpReturnValue, 2, 0, 0)
			},
			expected: value.Int(3),
		},
		{
			name: "floored modulo of negative operand",
			build: func(a *vmtest.Asm) {
				cNeg7, c3 := a.Const(value.Int(-7)), a.Const(value.Int(3))
				a.Emit(bytecode.OpLoadConst, 0, cNeg7, 0)
				a.Emit(bytecode.OpLoadConst, 1, c3, 0)
				a.Emit(bytecode.OpBinaryModRR, 2, 0, 1)
				a.Emit(bytecode.OpReturnValue, 2, 0, 0)
			},
			// Python: -7 % 3 == 2 (floored, not truncated)
			expected: value.Int(2),
		},
		{
			name: "string concatenation",
			build: func(a *vmtest.Asm) {
				c1, c2 := a.Const(value.String("foo")), a.Const(value.String("bar"))
				a.Emit(bytecode.OpLoadConst, 0, c1, 0)
				a.Emit(bytecode.OpLoadConst, 1, c2, 0)
				a.Emit(bytecode.OpBinaryAddRR, 2, 0, 1)
				a.Emit(bytecode.OpReturnValue, 2, 0, 0)
			},
			expected: value.String("foobar"),
		},
		{
			name: "list repeat via mul",
			build: func(a *vmtest.Asm) {
				c1, c3 := a.Const(value.Int(1)), a.Const(value.Int(3))
				a.Emit(bytecode.OpLoadConst, 0, c1, 0)
				a.Emit(bytecode.OpBuildList, 1, 0, 1)
				a.Emit(bytecode.OpBinaryMulRI, 2, 1, c3)
				a.Emit(bytecode.OpReturnValue, 2, 0, 0)
			},
			expected: value.List([]value.Value{value.Int(1), value.Int(1), value.Int(1)}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asm := vmtest.New(tt.name)
			tt.build(asm)
			asm.Registers(4)

			machine := New(Config{})
			result, err := machine.Run(asm.Code())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !value.Equal(result, tt.expected) {
				t.Errorf("got %s, want %s", value.Repr(result), value.Repr(tt.expected))
			}
		})
	}
}

// TestDivisionByZeroRaises checks that an integer division by zero makes
// Run fail with an error (spec.md §7's DivisionByZero kind).
func TestDivisionByZeroRaises(t *testing.T) {
	asm := vmtest.New("div0")
	c1, c0 := asm.Const(value.Int(1)), asm.Const(value.Int(0))
	asm.Emit(bytecode.OpLoadConst, 0, c1, 0)
	asm.Emit(bytecode.OpLoadConst, 1, c0, 0)
	asm.Emit(bytecode.OpBinaryDivRR, 2, 0, 1)
	asm.Emit(bytecode.OpReturnValue, 2, 0, 0)
	asm.Registers(4)

	machine := New(Config{})
	_, err := machine.Run(asm.Code())
	if err == nil {
		t.Fatal("expected a division-by-zero error")
	}
}
