package vm

import (
	"corevm/internal/bytecode"
	"corevm/internal/errors"
	"corevm/internal/value"
)

// slowEquivalent maps a monomorphic fast-path opcode back to its general
// RR form, the bailout path FastInt*/F64* take when either operand isn't
// the type the site was specialized for (spec.md §4.1's inline-cache-like
// arithmetic specialization).
func slowEquivalent(op bytecode.OpCode) bytecode.OpCode {
	switch op {
	case bytecode.OpFastIntAdd, bytecode.OpF64Add:
		return bytecode.OpBinaryAddRR
	case bytecode.OpFastIntSub, bytecode.OpF64Sub:
		return bytecode.OpBinarySubRR
	case bytecode.OpFastIntMul, bytecode.OpF64Mul:
		return bytecode.OpBinaryMulRR
	case bytecode.OpFastIntFloorDiv:
		return bytecode.OpBinaryFloorDivRR
	case bytecode.OpF64Div:
		return bytecode.OpBinaryDivRR
	default:
		return op
	}
}

func fastIntOp(op bytecode.OpCode, left, right value.Value) (value.Value, error) {
	a, b := value.AsInt(left), value.AsInt(right)
	switch op {
	case bytecode.OpFastIntAdd:
		return value.CachedInt(a + b), nil
	case bytecode.OpFastIntSub:
		return value.CachedInt(a - b), nil
	case bytecode.OpFastIntMul:
		return value.CachedInt(a * b), nil
	case bytecode.OpFastIntFloorDiv:
		if b == 0 {
			return value.Nil(), errors.New(errors.DivisionByZero, "integer division or modulo by zero")
		}
		return value.CachedInt(floorDivInt(a, b)), nil
	default:
		return value.Nil(), errors.New(errors.TypeMismatch, "bad fast-int opcode %s", op)
	}
}

func fastFloatOp(op bytecode.OpCode, left, right value.Value) value.Value {
	a, b := value.AsFloat(left), value.AsFloat(right)
	switch op {
	case bytecode.OpF64Add:
		return value.Float(a + b)
	case bytecode.OpF64Sub:
		return value.Float(a - b)
	case bytecode.OpF64Mul:
		return value.Float(a * b)
	case bytecode.OpF64Div:
		return value.Float(a / b)
	default:
		return value.Nil()
	}
}

func floorDivInt(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// binaryOp implements every Binary*{RR,RI,IR} family after operand
// resolution (spec.md §4.1/§4.4): an instance operand's class is tried
// first via the __op__/__rop__ dunder protocol, then numeric promotion
// to float when either side is float, plus the string/list/tuple
// overloads of + and *.
func (vm *VM) binaryOp(op bytecode.OpCode, left, right value.Value) (value.Value, error) {
	if symbol, ok := binarySymbol(op); ok && (value.IsInstance(left) || value.IsInstance(right)) {
		if v, handled, err := vm.tryBinaryDunder(symbol, left, right); handled {
			return v, err
		}
	}
	switch op {
	case bytecode.OpBinaryAddRR, bytecode.OpBinaryAddRI, bytecode.OpBinaryAddIR:
		return addValues(left, right)
	case bytecode.OpBinarySubRR, bytecode.OpBinarySubRI, bytecode.OpBinarySubIR:
		return numericOp(left, right, func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b })
	case bytecode.OpBinaryMulRR, bytecode.OpBinaryMulRI, bytecode.OpBinaryMulIR:
		return mulValues(left, right)
	case bytecode.OpBinaryDivRR, bytecode.OpBinaryDivRI, bytecode.OpBinaryDivIR:
		if value.ToFloat(right) == 0 {
			return value.Nil(), errors.New(errors.DivisionByZero, "division by zero")
		}
		return value.Float(value.ToFloat(left) / value.ToFloat(right)), nil
	case bytecode.OpBinaryModRR, bytecode.OpBinaryModRI, bytecode.OpBinaryModIR:
		return modValues(left, right)
	case bytecode.OpBinaryPowRR, bytecode.OpBinaryPowRI, bytecode.OpBinaryPowIR:
		return powValues(left, right)
	case bytecode.OpBinaryFloorDivRR, bytecode.OpBinaryFloorDivRI, bytecode.OpBinaryFloorDivIR:
		if value.IsInt(left) && value.IsInt(right) {
			if value.AsInt(right) == 0 {
				return value.Nil(), errors.New(errors.DivisionByZero, "integer division or modulo by zero")
			}
			return value.CachedInt(floorDivInt(value.AsInt(left), value.AsInt(right))), nil
		}
		if value.ToFloat(right) == 0 {
			return value.Nil(), errors.New(errors.DivisionByZero, "float floor division by zero")
		}
		return value.Float(floorDivFloat(value.ToFloat(left), value.ToFloat(right))), nil
	default:
		return value.Nil(), errors.New(errors.TypeMismatch, "unknown binary opcode %s", op)
	}
}

func addValues(left, right value.Value) (value.Value, error) {
	switch {
	case value.IsString(left) && value.IsString(right):
		return value.String(value.AsString(left).Value + value.AsString(right).Value), nil
	case value.IsList(left) && value.IsList(right):
		out := append([]value.Value{}, value.AsList(left).Elements...)
		out = append(out, value.AsList(right).Elements...)
		return value.List(out), nil
	case value.IsTuple(left) && value.IsTuple(right):
		out := append([]value.Value{}, value.AsTuple(left).Elements...)
		out = append(out, value.AsTuple(right).Elements...)
		return value.Tuple(out), nil
	case value.IsNumber(left) && value.IsNumber(right):
		return numericOp(left, right, func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b })
	default:
		return value.Nil(), errors.New(errors.TypeMismatch,
			"unsupported operand type(s) for +: '%s' and '%s'", value.TypeName(left), value.TypeName(right))
	}
}

func mulValues(left, right value.Value) (value.Value, error) {
	switch {
	case value.IsString(left) && value.IsInt(right):
		return value.String(repeatString(value.AsString(left).Value, value.AsInt(right))), nil
	case value.IsInt(left) && value.IsString(right):
		return value.String(repeatString(value.AsString(right).Value, value.AsInt(left))), nil
	case value.IsList(left) && value.IsInt(right):
		return value.List(repeatElements(value.AsList(left).Elements, value.AsInt(right))), nil
	case value.IsNumber(left) && value.IsNumber(right):
		return numericOp(left, right, func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b })
	default:
		return value.Nil(), errors.New(errors.TypeMismatch,
			"unsupported operand type(s) for *: '%s' and '%s'", value.TypeName(left), value.TypeName(right))
	}
}

func repeatString(s string, n int64) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, 0, len(s)*int(n))
	for i := int64(0); i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}

func repeatElements(els []value.Value, n int64) []value.Value {
	if n <= 0 {
		return nil
	}
	out := make([]value.Value, 0, len(els)*int(n))
	for i := int64(0); i < n; i++ {
		out = append(out, els...)
	}
	return out
}

func modValues(left, right value.Value) (value.Value, error) {
	if value.IsInt(left) && value.IsInt(right) {
		b := value.AsInt(right)
		if b == 0 {
			return value.Nil(), errors.New(errors.DivisionByZero, "integer division or modulo by zero")
		}
		a := value.AsInt(left)
		m := a % b
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return value.CachedInt(m), nil
	}
	b := value.ToFloat(right)
	if b == 0 {
		return value.Nil(), errors.New(errors.DivisionByZero, "float modulo")
	}
	a := value.ToFloat(left)
	m := a - b*floorDivFloat(a, b)
	return value.Float(m), nil
}

func floorDivFloat(a, b float64) float64 {
	q := a / b
	if q >= 0 {
		return float64(int64(q))
	}
	i := float64(int64(q))
	if i != q {
		return i - 1
	}
	return i
}

func powValues(left, right value.Value) (value.Value, error) {
	if value.IsInt(left) && value.IsInt(right) && value.AsInt(right) >= 0 {
		a, b := value.AsInt(left), value.AsInt(right)
		result := int64(1)
		for i := int64(0); i < b; i++ {
			result *= a
		}
		return value.CachedInt(result), nil
	}
	return value.Float(powFloat(value.ToFloat(left), value.ToFloat(right))), nil
}

func powFloat(a, b float64) float64 {
	if b == 0 {
		return 1
	}
	neg := b < 0
	if neg {
		b = -b
	}
	result := 1.0
	n := int64(b)
	for i := int64(0); i < n; i++ {
		result *= a
	}
	if neg {
		return 1 / result
	}
	return result
}

func numericOp(left, right value.Value, intOp func(a, b int64) int64, floatOp func(a, b float64) float64) (value.Value, error) {
	if value.IsInt(left) && value.IsInt(right) {
		return value.CachedInt(intOp(value.AsInt(left), value.AsInt(right))), nil
	}
	if !value.IsNumber(left) || !value.IsNumber(right) {
		return value.Nil(), errors.New(errors.TypeMismatch,
			"unsupported operand type(s): '%s' and '%s'", value.TypeName(left), value.TypeName(right))
	}
	return value.Float(floatOp(value.ToFloat(left), value.ToFloat(right))), nil
}

func negate(v value.Value) (value.Value, error) {
	switch {
	case value.IsInt(v):
		return value.CachedInt(-value.AsInt(v)), nil
	case value.IsFloat(v):
		return value.Float(-value.AsFloat(v)), nil
	default:
		return value.Nil(), errors.New(errors.TypeMismatch, "bad operand type for unary -: '%s'", value.TypeName(v))
	}
}

// compare implements the Compare* family (spec.md §4.4): comparison
// dunders (__eq__, __lt__/__gt__, etc.) on an instance operand first,
// then ordering for numbers/strings, membership for containers
// (__contains__ on an instance), identity via value.Identical.
func (vm *VM) compare(op bytecode.OpCode, left, right value.Value) (value.Value, error) {
	switch op {
	case bytecode.OpCompareEqual, bytecode.OpCompareNotEqual:
		eq := value.Equal(left, right)
		if value.IsInstance(left) || value.IsInstance(right) {
			if v, handled, err := vm.tryEqualityDunder(left, right); handled {
				if err != nil {
					return value.Nil(), err
				}
				eq = v
			}
		}
		if op == bytecode.OpCompareNotEqual {
			eq = !eq
		}
		return value.Bool(eq), nil
	case bytecode.OpCompareIs:
		return value.Bool(value.Identical(left, right)), nil
	case bytecode.OpCompareIsNot:
		return value.Bool(!value.Identical(left, right)), nil
	case bytecode.OpCompareIn, bytecode.OpCompareNotIn:
		found, err := vm.membership(left, right)
		if err != nil {
			return value.Nil(), err
		}
		if op == bytecode.OpCompareNotIn {
			found = !found
		}
		return value.Bool(found), nil
	}

	if value.IsInstance(left) || value.IsInstance(right) {
		if v, handled, err := vm.tryOrderingDunder(op, left, right); handled {
			return value.Bool(v), err
		}
	}

	cmp, err := orderCompare(left, right)
	if err != nil {
		return value.Nil(), err
	}
	switch op {
	case bytecode.OpCompareLess:
		return value.Bool(cmp < 0), nil
	case bytecode.OpCompareLessEqual:
		return value.Bool(cmp <= 0), nil
	case bytecode.OpCompareGreater:
		return value.Bool(cmp > 0), nil
	case bytecode.OpCompareGreaterEqual:
		return value.Bool(cmp >= 0), nil
	default:
		return value.Nil(), errors.New(errors.TypeMismatch, "unknown comparison opcode %s", op)
	}
}

func orderCompare(left, right value.Value) (int, error) {
	switch {
	case value.IsNumber(left) && value.IsNumber(right):
		a, b := value.ToFloat(left), value.ToFloat(right)
		switch {
		case a < b:
			return -1, nil
		case a > b:
			return 1, nil
		default:
			return 0, nil
		}
	case value.IsString(left) && value.IsString(right):
		a, b := value.AsString(left).Value, value.AsString(right).Value
		switch {
		case a < b:
			return -1, nil
		case a > b:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, errors.New(errors.TypeMismatch,
			"'<' not supported between instances of '%s' and '%s'", value.TypeName(left), value.TypeName(right))
	}
}

func (vm *VM) membership(item, container value.Value) (bool, error) {
	if value.IsInstance(container) {
		if method, _, ok := vm.resolveMethod(value.AsInstance(container).Class, "__contains__"); ok {
			result, err := vm.callValue(method, []value.Value{container, item})
			if err != nil {
				return false, err
			}
			return coerceBool(result), nil
		}
	}
	switch {
	case value.IsList(container):
		for _, e := range value.AsList(container).Elements {
			if value.Equal(e, item) {
				return true, nil
			}
		}
		return false, nil
	case value.IsTuple(container):
		for _, e := range value.AsTuple(container).Elements {
			if value.Equal(e, item) {
				return true, nil
			}
		}
		return false, nil
	case value.IsSet(container):
		_, ok := value.AsSet(container).Items[value.Repr(item)]
		return ok, nil
	case value.IsMap(container):
		_, ok := value.AsMap(container).Items[value.ToString(item)]
		return ok, nil
	case value.IsString(container) && value.IsString(item):
		return stringsContains(value.AsString(container).Value, value.AsString(item).Value), nil
	default:
		return false, errors.New(errors.TypeMismatch, "argument of type '%s' is not iterable", value.TypeName(container))
	}
}

func stringsContains(s, substr string) bool {
	if len(substr) == 0 {
		return true
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func bitwiseOp(op bytecode.OpCode, left, right value.Value) (value.Value, error) {
	if !value.IsInt(left) || !value.IsInt(right) {
		return value.Nil(), errors.New(errors.TypeMismatch,
			"unsupported operand type(s) for bitwise op: '%s' and '%s'", value.TypeName(left), value.TypeName(right))
	}
	a, b := value.AsInt(left), value.AsInt(right)
	switch op {
	case bytecode.OpBinaryBitAnd:
		return value.CachedInt(a & b), nil
	case bytecode.OpBinaryBitOr:
		return value.CachedInt(a | b), nil
	case bytecode.OpBinaryBitXor:
		return value.CachedInt(a ^ b), nil
	case bytecode.OpBinaryLShift:
		return value.CachedInt(a << uint(b)), nil
	case bytecode.OpBinaryRShift:
		return value.CachedInt(a >> uint(b)), nil
	default:
		return value.Nil(), errors.New(errors.TypeMismatch, "unknown bitwise opcode %s", op)
	}
}
