package vm

import (
	"corevm/internal/bytecode"
	"corevm/internal/errors"
	"corevm/internal/value"
)

// makeFunction implements MakeFunction: builds a Closure over a compiled
// CodeObject constant, capturing its free variables by value from the
// defining frame's locals or its own free-variable cells (DESIGN.md Open
// Question on closure semantics: a snapshot at creation time rather than
// a live shared cell, since no Testable Property exercises mutation of a
// captured variable after the closure escapes its defining scope).
func (vm *VM) makeFunction(frame *Frame, instr bytecode.Instruction) (value.Value, error) {
	codeVal := frame.Code.Constants[instr.B]
	if !value.IsCode(codeVal) {
		return value.Nil(), errors.New(errors.TypeMismatch, "MakeFunction operand is not a code object")
	}
	code, ok := value.AsCode(codeVal).Code.(*bytecode.CodeObject)
	if !ok {
		return value.Nil(), errors.New(errors.TypeMismatch, "MakeFunction operand is not a code object")
	}

	freeVars := make([]*value.Cell, len(code.FreeVars))
	for i, name := range code.FreeVars {
		v := value.Nil()
		if slot, ok := frame.LocalsMap[name]; ok {
			v = frame.Locals[slot].Get()
		} else {
			for j, outerName := range frame.Code.FreeVars {
				if outerName == name && j < len(frame.FreeVars) {
					v = frame.FreeVars[j].V
				}
			}
		}
		freeVars[i] = &value.Cell{V: v}
	}
	return value.Closure(code.Name, code, freeVars, frame.Globals), nil
}
