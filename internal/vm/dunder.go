package vm

import (
	"corevm/internal/bytecode"
	"corevm/internal/value"
)

// Dunder-dispatch fallback for operators on instances (spec.md §4.4 /
// §9: "model all operator overloads as a lookup on the object's class
// method table via MRO... do not special-case per operator"). These are
// consulted by binaryOp/fusedLoadOpStore/compare/membership/isTruthy
// before any of them falls back to a TypeMismatch error, reusing the
// resolveMethod/callValue machinery objmodel.go already has for
// descriptors and properties.

// binaryDunders maps an operator symbol to its forward/reverse method
// names, e.g. left + right tries left.__add__(right), then
// right.__radd__(left).
var binaryDunders = map[string][2]string{
	"+":  {"__add__", "__radd__"},
	"-":  {"__sub__", "__rsub__"},
	"*":  {"__mul__", "__rmul__"},
	"/":  {"__truediv__", "__rtruediv__"},
	"%":  {"__mod__", "__rmod__"},
	"**": {"__pow__", "__rpow__"},
	"//": {"__floordiv__", "__rfloordiv__"},
}

// binarySymbol reports the operator symbol a Binary*{RR,RI,IR} opcode
// family implements, the key into binaryDunders.
func binarySymbol(op bytecode.OpCode) (string, bool) {
	switch op {
	case bytecode.OpBinaryAddRR, bytecode.OpBinaryAddRI, bytecode.OpBinaryAddIR:
		return "+", true
	case bytecode.OpBinarySubRR, bytecode.OpBinarySubRI, bytecode.OpBinarySubIR:
		return "-", true
	case bytecode.OpBinaryMulRR, bytecode.OpBinaryMulRI, bytecode.OpBinaryMulIR:
		return "*", true
	case bytecode.OpBinaryDivRR, bytecode.OpBinaryDivRI, bytecode.OpBinaryDivIR:
		return "/", true
	case bytecode.OpBinaryModRR, bytecode.OpBinaryModRI, bytecode.OpBinaryModIR:
		return "%", true
	case bytecode.OpBinaryPowRR, bytecode.OpBinaryPowRI, bytecode.OpBinaryPowIR:
		return "**", true
	case bytecode.OpBinaryFloorDivRR, bytecode.OpBinaryFloorDivRI, bytecode.OpBinaryFloorDivIR:
		return "//", true
	default:
		return "", false
	}
}

// tryBinaryDunder attempts left.__op__(right) then right.__rop__(left).
// handled reports whether either side's class defined the operator at
// all; callers fall back to their builtin-type behavior when it's false.
func (vm *VM) tryBinaryDunder(symbol string, left, right value.Value) (result value.Value, handled bool, err error) {
	names, ok := binaryDunders[symbol]
	if !ok {
		return value.Nil(), false, nil
	}
	fwd, rev := names[0], names[1]
	if value.IsInstance(left) {
		if method, _, ok := vm.resolveMethod(value.AsInstance(left).Class, fwd); ok {
			v, err := vm.callValue(method, []value.Value{left, right})
			return v, true, err
		}
	}
	if value.IsInstance(right) {
		if method, _, ok := vm.resolveMethod(value.AsInstance(right).Class, rev); ok {
			v, err := vm.callValue(method, []value.Value{right, left})
			return v, true, err
		}
	}
	return value.Nil(), false, nil
}

// orderingDunders maps an ordering comparison opcode to its forward/
// reverse method names, e.g. left < right tries left.__lt__(right),
// then right.__gt__(left).
var orderingDunders = map[bytecode.OpCode][2]string{
	bytecode.OpCompareLess:         {"__lt__", "__gt__"},
	bytecode.OpCompareLessEqual:    {"__le__", "__ge__"},
	bytecode.OpCompareGreater:      {"__gt__", "__lt__"},
	bytecode.OpCompareGreaterEqual: {"__ge__", "__le__"},
}

func (vm *VM) tryOrderingDunder(op bytecode.OpCode, left, right value.Value) (result bool, handled bool, err error) {
	names, ok := orderingDunders[op]
	if !ok {
		return false, false, nil
	}
	fwd, rev := names[0], names[1]
	if value.IsInstance(left) {
		if method, _, ok := vm.resolveMethod(value.AsInstance(left).Class, fwd); ok {
			v, err := vm.callValue(method, []value.Value{left, right})
			if err != nil {
				return false, true, err
			}
			return coerceBool(v), true, nil
		}
	}
	if value.IsInstance(right) {
		if method, _, ok := vm.resolveMethod(value.AsInstance(right).Class, rev); ok {
			v, err := vm.callValue(method, []value.Value{right, left})
			if err != nil {
				return false, true, err
			}
			return coerceBool(v), true, nil
		}
	}
	return false, false, nil
}

// tryEqualityDunder attempts left.__eq__(right) then right.__eq__(left),
// the symmetric case (unlike ordering, __eq__ has no separate reflected
// name).
func (vm *VM) tryEqualityDunder(left, right value.Value) (result bool, handled bool, err error) {
	if value.IsInstance(left) {
		if method, _, ok := vm.resolveMethod(value.AsInstance(left).Class, "__eq__"); ok {
			v, err := vm.callValue(method, []value.Value{left, right})
			if err != nil {
				return false, true, err
			}
			return coerceBool(v), true, nil
		}
	}
	if value.IsInstance(right) {
		if method, _, ok := vm.resolveMethod(value.AsInstance(right).Class, "__eq__"); ok {
			v, err := vm.callValue(method, []value.Value{right, left})
			if err != nil {
				return false, true, err
			}
			return coerceBool(v), true, nil
		}
	}
	return false, false, nil
}

// coerceBool re-projects a dunder's return value through default
// truthiness when it isn't already a bool (spec.md §4.4).
func coerceBool(v value.Value) bool {
	if value.IsBool(v) {
		return value.AsBool(v)
	}
	return value.IsTruthy(v)
}

// isTruthy is the VM-level wrapper around value.IsTruthy that spec.md
// §4.4 asks for: a custom class's __bool__ override is consulted first,
// and a non-bool result from it is re-projected through default
// truthiness rather than used directly.
func (vm *VM) isTruthy(v value.Value) (bool, error) {
	if !value.IsInstance(v) {
		return value.IsTruthy(v), nil
	}
	method, _, ok := vm.resolveMethod(value.AsInstance(v).Class, "__bool__")
	if !ok {
		return value.IsTruthy(v), nil
	}
	result, err := vm.callValue(method, []value.Value{v})
	if err != nil {
		return false, err
	}
	return coerceBool(result), nil
}
