// Package value implements the VM's tagged-sum Value representation
// (spec.md §3) as an 8-byte NaN-boxed word, the technique the teacher
// repository uses in vmregister/value.go, extended with object tags for
// every kind spec.md names that the teacher didn't have.
//
// spec.md separately names "RegisterValue" as an unboxed specialization
// of Value used inside a Frame's register file. Here they are the same
// Go type: a NaN-boxed Value already stores Int/Float/Bool/None inline
// with zero allocation and has a total, order-preserving projection to
// itself, so it satisfies every invariant spec.md §3 asks of
// RegisterValue by construction. See DESIGN.md Open Question #1.
package value

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unsafe"
)

// Value is a NaN-boxed 64-bit word.
type Value uint64

const (
	nanMask  = 0x7FF8000000000000
	tagMask  = 0xFFFF000000000000
	tagNil   = 0x7FF8000000000000
	tagFalse = 0x7FF8000000000001
	tagTrue  = 0x7FF8000000000002
	tagPtr   = 0x7FFC000000000000
	ptrMask  = 0x0000FFFFFFFFFFFF
	tagInt   = 0x7FFE000000000000
	intMask  = 0x0000FFFFFFFFFFFF
	intSign  = 0x0000800000000000
	numberMask = 0x7FF8000000000000
)

// ObjectType discriminates heap-allocated values (anything tagged tagPtr).
type ObjectType uint8

const (
	ObjString ObjectType = iota
	ObjBytes
	ObjList
	ObjTuple
	ObjSet
	ObjMap
	ObjRange
	ObjRangeIter
	ObjIterator
	ObjCode
	ObjClosure
	ObjNativeFunction
	ObjClass
	ObjInstance
	ObjBoundMethod
	ObjClassMethod
	ObjStaticMethod
	ObjSuperProxy
	ObjModule
	ObjException
	ObjGenerator
	ObjCoroutine
	ObjKwargsMarker
	ObjStarred
)

// Object is the common header every heap object embeds, mirroring
// vmregister/value.go's Object header.
type Object struct {
	Type ObjectType
}

// ---------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------

func Nil() Value { return tagNil }

func Bool(b bool) Value {
	if b {
		return tagTrue
	}
	return tagFalse
}

func Float(f float64) Value { return Value(math.Float64bits(f)) }

// Int encodes i in 48 signed bits when possible, otherwise falls back to
// float64 — identical strategy to vmregister/value.go's BoxInt.
func Int(i int64) Value {
	if i >= -(1<<47) && i < (1<<47) {
		if i < 0 {
			return Value(tagInt | uint64(i&0xFFFFFFFFFFFF))
		}
		return Value(tagInt | uint64(i))
	}
	return Float(float64(i))
}

var smallInts [262]Value // [-5, 256]

func init() {
	for i := -5; i <= 256; i++ {
		smallInts[i+5] = Int(int64(i))
	}
}

// CachedInt returns the shared small-integer Value in [-5, 256] (spec.md
// §5/§8 invariant 5: int(n) is int(n) for n in that range), or a fresh
// boxed int outside it.
func CachedInt(i int64) Value {
	if i >= -5 && i <= 256 {
		return smallInts[i+5]
	}
	return Int(i)
}

// boxPointer stores a pointer's address in the 48-bit pointer field.
// The pointee must already be reachable through an ordinary Go reference
// (a local binding held across the call, a struct field, a slice
// element) for as long as the returned Value is in use; the boxed bits
// themselves are a bare uintptr and carry no reference for Go's GC to
// trace, exactly like vmregister/value.go's pointer tag.
func boxPointer(p unsafe.Pointer) Value {
	addr := uintptr(p)
	if uint64(addr) > ptrMask {
		panic("value: pointer does not fit in 48-bit NaN-boxed field")
	}
	return Value(tagPtr | uint64(addr))
}

func asPointer(v Value) unsafe.Pointer {
	return unsafe.Pointer(uintptr(v & ptrMask))
}

// asObject returns the common Object header so its Type tag can be read
// without knowing the concrete struct — every heap struct embeds Object
// as its first field, mirroring vmregister/value.go.
func asObject(v Value) *Object {
	return (*Object)(asPointer(v))
}

// ---------------------------------------------------------------------
// Type tests
// ---------------------------------------------------------------------

func IsNil(v Value) bool    { return v == tagNil }
func IsBool(v Value) bool   { return v == tagTrue || v == tagFalse }
func IsInt(v Value) bool    { return (v & tagMask) == tagInt }
func IsFloat(v Value) bool  { return (v & numberMask) != numberMask }
func IsNumber(v Value) bool { return IsInt(v) || IsFloat(v) }
func IsPointer(v Value) bool {
	return (v & tagMask) == tagPtr
}

func Is(v Value, t ObjectType) bool {
	return IsPointer(v) && asObject(v).Type == t
}

func IsString(v Value) bool       { return Is(v, ObjString) }
func IsBytes(v Value) bool        { return Is(v, ObjBytes) }
func IsList(v Value) bool         { return Is(v, ObjList) }
func IsTuple(v Value) bool        { return Is(v, ObjTuple) }
func IsSet(v Value) bool          { return Is(v, ObjSet) }
func IsMap(v Value) bool          { return Is(v, ObjMap) }
func IsRange(v Value) bool        { return Is(v, ObjRange) }
func IsRangeIter(v Value) bool     { return Is(v, ObjRangeIter) }
func IsIterator(v Value) bool     { return Is(v, ObjIterator) }
func IsCode(v Value) bool         { return Is(v, ObjCode) }
func IsClosure(v Value) bool      { return Is(v, ObjClosure) }
func IsNativeFunction(v Value) bool { return Is(v, ObjNativeFunction) }
func IsClass(v Value) bool        { return Is(v, ObjClass) }
func IsInstance(v Value) bool     { return Is(v, ObjInstance) }
func IsBoundMethod(v Value) bool  { return Is(v, ObjBoundMethod) }
func IsClassMethod(v Value) bool  { return Is(v, ObjClassMethod) }
func IsStaticMethod(v Value) bool { return Is(v, ObjStaticMethod) }
func IsSuperProxy(v Value) bool   { return Is(v, ObjSuperProxy) }
func IsModule(v Value) bool       { return Is(v, ObjModule) }
func IsException(v Value) bool    { return Is(v, ObjException) }
func IsGenerator(v Value) bool    { return Is(v, ObjGenerator) }
func IsCoroutine(v Value) bool    { return Is(v, ObjCoroutine) }
func IsKwargsMarker(v Value) bool { return Is(v, ObjKwargsMarker) }
func IsStarred(v Value) bool      { return Is(v, ObjStarred) }

func IsCallable(v Value) bool {
	return IsClosure(v) || IsNativeFunction(v) || IsClass(v) || IsBoundMethod(v) ||
		IsClassMethod(v) || IsStaticMethod(v)
}

// ---------------------------------------------------------------------
// Extraction
// ---------------------------------------------------------------------

func AsFloat(v Value) float64 { return math.Float64frombits(uint64(v)) }

func AsInt(v Value) int64 {
	raw := int64(v & intMask)
	if raw&int64(intSign) != 0 {
		return raw | ^int64(intMask)
	}
	return raw
}

func AsBool(v Value) bool { return v == tagTrue }

// ---------------------------------------------------------------------
// Numeric coercion
// ---------------------------------------------------------------------

func ToFloat(v Value) float64 {
	switch {
	case IsFloat(v):
		return AsFloat(v)
	case IsInt(v):
		return float64(AsInt(v))
	case IsBool(v):
		if AsBool(v) {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func ToInt(v Value) int64 {
	switch {
	case IsInt(v):
		return AsInt(v)
	case IsFloat(v):
		return int64(AsFloat(v))
	case IsBool(v):
		if AsBool(v) {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// ---------------------------------------------------------------------
// Truthiness, equality, identity (spec.md §4.4)
// ---------------------------------------------------------------------

// IsTruthy implements default truthiness without consulting `__bool__`;
// the VM's isTruthy wrapper (internal/vm/dunder.go) calls this for every
// non-instance value, as the fallback for instances with no override, and
// to re-project a `__bool__` result that isn't itself a bool (spec.md §4.4).
func IsTruthy(v Value) bool {
	switch {
	case IsNil(v):
		return false
	case IsBool(v):
		return AsBool(v)
	case IsInt(v):
		return AsInt(v) != 0
	case IsFloat(v):
		return AsFloat(v) != 0
	case IsString(v):
		return AsString(v).Value != ""
	case IsBytes(v):
		return len(AsBytes(v).Value) > 0
	case IsList(v):
		return len(AsList(v).Elements) > 0
	case IsTuple(v):
		return len(AsTuple(v).Elements) > 0
	case IsSet(v):
		return len(AsSet(v).Items) > 0
	case IsMap(v):
		return len(AsMap(v).Items) > 0
	default:
		return true
	}
}

// Equal implements value equality without consulting dunders; the VM's
// dunder-dispatch layer (spec.md §4.4) calls this only as the built-in
// fallback behavior for primitive/container kinds.
func Equal(a, b Value) bool {
	if a == b {
		return true
	}
	if IsNumber(a) && IsNumber(b) {
		return ToFloat(a) == ToFloat(b)
	}
	if IsString(a) && IsString(b) {
		return AsString(a).Value == AsString(b).Value
	}
	if IsBytes(a) && IsBytes(b) {
		return string(AsBytes(a).Value) == string(AsBytes(b).Value)
	}
	if (IsList(a) && IsList(b)) || (IsTuple(a) && IsTuple(b)) {
		ea, eb := elementsOf(a), elementsOf(b)
		if len(ea) != len(eb) {
			return false
		}
		for i := range ea {
			if !Equal(ea[i], eb[i]) {
				return false
			}
		}
		return true
	}
	if IsMap(a) && IsMap(b) {
		ma, mb := AsMap(a), AsMap(b)
		if len(ma.Items) != len(mb.Items) {
			return false
		}
		for k, v := range ma.Items {
			bv, ok := mb.Items[k]
			if !ok || !Equal(v, bv) {
				return false
			}
		}
		return true
	}
	if IsSet(a) && IsSet(b) {
		sa, sb := AsSet(a), AsSet(b)
		if len(sa.Items) != len(sb.Items) {
			return false
		}
		for k := range sa.Items {
			if _, ok := sb.Items[k]; !ok {
				return false
			}
		}
		return true
	}
	return false
}

func elementsOf(v Value) []Value {
	if IsList(v) {
		return AsList(v).Elements
	}
	if IsTuple(v) {
		return AsTuple(v).Elements
	}
	return nil
}

// Identical implements spec.md §4.4 "Identity" (`is`): None is identical
// only to None, reference-typed containers compare by the pointer of
// their shared data cell, and value types (int/float/bool/string) treat
// equal values as identical, strings being interned at use. Floats are
// resolved here per DESIGN.md Open Question #3: equal floats are
// identical, same as every other value type, not Python's
// potentially-distinct-boxed-float behavior.
func Identical(a, b Value) bool {
	if IsNil(a) || IsNil(b) {
		return IsNil(a) && IsNil(b)
	}
	if IsInstance(a) && IsInstance(b) {
		return AsInstance(a).Fields == AsInstance(b).Fields
	}
	if IsList(a) || IsMap(a) || IsSet(a) || IsInstance(a) {
		return a == b
	}
	return Equal(a, b)
}

// ---------------------------------------------------------------------
// String conversion
// ---------------------------------------------------------------------

func ToString(v Value) string {
	switch {
	case IsNil(v):
		return "None"
	case IsBool(v):
		if AsBool(v) {
			return "True"
		}
		return "False"
	case IsInt(v):
		return fmt.Sprintf("%d", AsInt(v))
	case IsFloat(v):
		return fmt.Sprintf("%g", AsFloat(v))
	case IsString(v):
		return AsString(v).Value
	case IsBytes(v):
		return fmt.Sprintf("b'%s'", string(AsBytes(v).Value))
	case IsList(v):
		return bracket("[", "]", AsList(v).Elements)
	case IsTuple(v):
		els := AsTuple(v).Elements
		if len(els) == 1 {
			return "(" + Repr(els[0]) + ",)"
		}
		return bracket("(", ")", els)
	case IsSet(v):
		items := AsSet(v).Items
		keys := make([]string, 0, len(items))
		for k := range items {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = Repr(items[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case IsMap(v):
		m := AsMap(v)
		keys := make([]string, 0, len(m.Items))
		for k := range m.Items {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%q: %s", k, Repr(m.Items[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case IsRange(v):
		r := AsRange(v)
		return fmt.Sprintf("range(%d, %d, %d)", r.Start, r.Stop, r.Step)
	case IsClosure(v):
		return fmt.Sprintf("<function %s>", AsClosure(v).Name)
	case IsNativeFunction(v):
		return fmt.Sprintf("<built-in function %s>", AsNativeFunction(v).Name)
	case IsClass(v):
		return fmt.Sprintf("<class '%s'>", AsClass(v).Name)
	case IsInstance(v):
		return fmt.Sprintf("<%s object>", AsInstance(v).Class.Name)
	case IsBoundMethod(v):
		return fmt.Sprintf("<bound method %s>", AsBoundMethod(v).Name)
	case IsModule(v):
		return fmt.Sprintf("<module '%s'>", AsModule(v).Name)
	case IsException(v):
		return fmt.Sprintf("%s: %s", AsException(v).ClassName, AsException(v).Message)
	case IsGenerator(v):
		return fmt.Sprintf("<generator object %s>", AsGenerator(v).ID)
	case IsCoroutine(v):
		return fmt.Sprintf("<coroutine object %s>", AsCoroutine(v).ID)
	default:
		return "<object>"
	}
}

func Repr(v Value) string {
	if IsString(v) {
		return fmt.Sprintf("%q", AsString(v).Value)
	}
	return ToString(v)
}

func bracket(open, close string, els []Value) string {
	parts := make([]string, len(els))
	for i, e := range els {
		parts[i] = Repr(e)
	}
	return open + strings.Join(parts, ", ") + close
}

// TypeName returns the dynamic type name used in error messages and
// type(x) / isinstance-style queries.
func TypeName(v Value) string {
	switch {
	case IsNil(v):
		return "NoneType"
	case IsBool(v):
		return "bool"
	case IsInt(v):
		return "int"
	case IsFloat(v):
		return "float"
	case IsString(v):
		return "str"
	case IsBytes(v):
		return "bytes"
	case IsList(v):
		return "list"
	case IsTuple(v):
		return "tuple"
	case IsSet(v):
		return "set"
	case IsMap(v):
		return "dict"
	case IsRange(v):
		return "range"
	case IsClosure(v), IsNativeFunction(v):
		return "function"
	case IsClass(v):
		return "type"
	case IsInstance(v):
		return AsInstance(v).Class.Name
	case IsBoundMethod(v):
		return "method"
	case IsModule(v):
		return "module"
	case IsException(v):
		return AsException(v).ClassName
	case IsGenerator(v):
		return "generator"
	case IsCoroutine(v):
		return "coroutine"
	default:
		return "object"
	}
}
