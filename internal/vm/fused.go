package vm

import (
	"corevm/internal/bytecode"
	"corevm/internal/errors"
	"corevm/internal/value"
)

// fusedLoadOpStore implements the LoadAddStore/LoadSubStore/LoadMulStore/
// LoadDivStore super-instructions: augmented-assignment sites (`x += y`)
// collapsed into a single opcode that reads a local, combines it with a
// register operand, and returns the value for step() to store back —
// one dispatch instead of LoadFast+Binary*+StoreFast (spec.md §4.1's
// "optional fused super-instructions").
func (vm *VM) fusedLoadOpStore(frame *Frame, instr bytecode.Instruction) (value.Value, error) {
	current := frame.Locals[instr.A].Get()
	other := frame.Registers[instr.B]

	if symbol, ok := fusedSymbol(instr.Op); ok && (value.IsInstance(current) || value.IsInstance(other)) {
		if v, handled, err := vm.tryBinaryDunder(symbol, current, other); handled {
			return v, err
		}
	}

	switch instr.Op {
	case bytecode.OpLoadAddStore:
		return addValues(current, other)
	case bytecode.OpLoadSubStore:
		return numericOp(current, other, func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b })
	case bytecode.OpLoadMulStore:
		return mulValues(current, other)
	case bytecode.OpLoadDivStore:
		if value.ToFloat(other) == 0 {
			return value.Nil(), errors.New(errors.DivisionByZero, "division by zero")
		}
		return value.Float(value.ToFloat(current) / value.ToFloat(other)), nil
	default:
		return value.Nil(), errors.New(errors.TypeMismatch, "bad fused opcode %s", instr.Op)
	}
}

// fusedSymbol reports the dunder-dispatch operator symbol a fused
// load-op-store opcode corresponds to, the same symbols binaryOp uses.
func fusedSymbol(op bytecode.OpCode) (string, bool) {
	switch op {
	case bytecode.OpLoadAddStore:
		return "+", true
	case bytecode.OpLoadSubStore:
		return "-", true
	case bytecode.OpLoadMulStore:
		return "*", true
	case bytecode.OpLoadDivStore:
		return "/", true
	default:
		return "", false
	}
}
