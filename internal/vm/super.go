package vm

import (
	"corevm/internal/errors"
	"corevm/internal/value"
)

// loadZeroArgSuper implements the zero-argument `super()` form: the
// receiver is always local slot 0 by calling convention, and the defining
// class is recovered from an implicit "__class__" free-variable cell the
// compiler threads into any method body using bare super() — the same
// convention CPython's compiler uses, adopted here rather than inventing
// a new Frame field just to carry one class pointer.
func (vm *VM) loadZeroArgSuper(frame *Frame) (value.Value, error) {
	if len(frame.Locals) == 0 {
		return value.Nil(), errors.New(errors.TypeMismatch, "super(): no arguments")
	}
	self := frame.Locals[0].Get()
	if !value.IsInstance(self) {
		return value.Nil(), errors.New(errors.TypeMismatch, "super(): self is not an instance")
	}
	inst := value.AsInstance(self)

	currentClass := inst.Class
	for i, name := range frame.Code.FreeVars {
		if name == "__class__" && i < len(frame.FreeVars) {
			if cell := frame.FreeVars[i].V; value.IsClass(cell) {
				currentClass = value.AsClass(cell)
			}
		}
	}
	return value.SuperProxy(inst, currentClass), nil
}
