package vm

import (
	"testing"

	"corevm/internal/bytecode"
	"corevm/internal/value"
)

func newPoint(t *testing.T, machine *VM, methods map[string]value.Value) (*value.ClassObj, func(x int64) value.Value) {
	t.Helper()
	classVal := value.Class("Point", nil)
	class := value.AsClass(classVal)
	for name, fn := range methods {
		class.Methods[name] = fn
	}
	if err := machine.DefineClass(class); err != nil {
		t.Fatalf("DefineClass: %v", err)
	}
	newInstance := func(x int64) value.Value {
		inst := value.Instance(class)
		if err := machine.StoreAttr(inst, "x", value.Int(x)); err != nil {
			t.Fatalf("StoreAttr: %v", err)
		}
		return inst
	}
	return class, newInstance
}

// TestBinaryDunderAddCallsClassMethod checks left.__add__(right) is tried
// via MRO before binaryOp falls back to TypeMismatch (spec.md §4.4's
// "__op__" half of the dunder protocol).
func TestBinaryDunderAddCallsClassMethod(t *testing.T) {
	machine := New(Config{})
	_, makePoint := newPoint(t, machine, map[string]value.Value{
		"__add__": value.NativeFunction("__add__", func(args []value.Value) (value.Value, error) {
			self, other := value.AsInstance(args[0]), value.AsInstance(args[1])
			return value.Int(value.AsInt(self.Fields.M["x"]) + value.AsInt(other.Fields.M["x"])), nil
		}),
	})

	a, b := makePoint(3), makePoint(4)
	result, err := machine.binaryOp(bytecode.OpBinaryAddRR, a, b)
	if err != nil {
		t.Fatalf("binaryOp: %v", err)
	}
	if want := value.Int(7); !value.Equal(result, want) {
		t.Errorf("got %s, want %s", value.Repr(result), value.Repr(want))
	}
}

// TestBinaryDunderReflectedFallback checks a plain int left operand falls
// back to right.__radd__(left) when int.__add__ can't handle an instance
// (spec.md §4.4's "__rop__" half).
func TestBinaryDunderReflectedFallback(t *testing.T) {
	machine := New(Config{})
	_, makePoint := newPoint(t, machine, map[string]value.Value{
		"__radd__": value.NativeFunction("__radd__", func(args []value.Value) (value.Value, error) {
			self, other := value.AsInstance(args[0]), args[1]
			return value.Int(value.AsInt(self.Fields.M["x"]) + value.AsInt(other)), nil
		}),
	})

	result, err := machine.binaryOp(bytecode.OpBinaryAddRR, value.Int(10), makePoint(5))
	if err != nil {
		t.Fatalf("binaryOp: %v", err)
	}
	if want := value.Int(15); !value.Equal(result, want) {
		t.Errorf("got %s, want %s", value.Repr(result), value.Repr(want))
	}
}

// TestBinaryDunderUnhandledStillErrors checks a class with no matching
// dunder still raises TypeMismatch, the existing builtin-type behavior.
func TestBinaryDunderUnhandledStillErrors(t *testing.T) {
	machine := New(Config{})
	_, makePoint := newPoint(t, machine, nil)

	if _, err := machine.binaryOp(bytecode.OpBinaryAddRR, makePoint(1), makePoint(2)); err == nil {
		t.Fatal("expected a TypeMismatch error with no __add__ defined")
	}
}

// TestEqualityDunder checks __eq__ is consulted for == and !=.
func TestEqualityDunder(t *testing.T) {
	machine := New(Config{})
	_, makePoint := newPoint(t, machine, map[string]value.Value{
		"__eq__": value.NativeFunction("__eq__", func(args []value.Value) (value.Value, error) {
			self, other := value.AsInstance(args[0]), value.AsInstance(args[1])
			return value.Bool(value.Equal(self.Fields.M["x"], other.Fields.M["x"])), nil
		}),
	})

	same, err := machine.compare(bytecode.OpCompareEqual, makePoint(1), makePoint(1))
	if err != nil {
		t.Fatalf("compare ==: %v", err)
	}
	if !value.AsBool(same) {
		t.Error("expected equal points to compare equal via __eq__")
	}

	diff, err := machine.compare(bytecode.OpCompareNotEqual, makePoint(1), makePoint(2))
	if err != nil {
		t.Fatalf("compare !=: %v", err)
	}
	if !value.AsBool(diff) {
		t.Error("expected different points to compare not-equal via __eq__")
	}
}

// TestOrderingDunderReflected checks OpCompareLess tries left.__lt__(right)
// then right.__gt__(left) when only the reflected side defines it.
func TestOrderingDunderReflected(t *testing.T) {
	machine := New(Config{})
	_, makePoint := newPoint(t, machine, map[string]value.Value{
		"__gt__": value.NativeFunction("__gt__", func(args []value.Value) (value.Value, error) {
			self, other := value.AsInstance(args[0]), value.AsInstance(args[1])
			return value.Bool(value.AsInt(self.Fields.M["x"]) > value.AsInt(other.Fields.M["x"])), nil
		}),
	})

	result, err := machine.compare(bytecode.OpCompareLess, makePoint(1), makePoint(5))
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !value.AsBool(result) {
		t.Error("expected 1 < 5 via reflected __gt__")
	}
}

// TestContainsDunder checks `in`/`not in` consult __contains__ on the
// container's class before falling back to the builtin list/set/map/
// string protocol (spec.md §4.4).
func TestContainsDunder(t *testing.T) {
	machine := New(Config{})
	classVal := value.Class("Bag", nil)
	class := value.AsClass(classVal)
	class.Methods["__contains__"] = value.NativeFunction("__contains__", func(args []value.Value) (value.Value, error) {
		self := value.AsInstance(args[0])
		items := value.AsList(self.Fields.M["items"]).Elements
		for _, it := range items {
			if value.Equal(it, args[1]) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	})
	if err := machine.DefineClass(class); err != nil {
		t.Fatalf("DefineClass: %v", err)
	}
	bag := value.Instance(class)
	if err := machine.StoreAttr(bag, "items", value.List([]value.Value{value.Int(1), value.Int(2)})); err != nil {
		t.Fatalf("StoreAttr: %v", err)
	}

	found, err := machine.compare(bytecode.OpCompareIn, value.Int(2), bag)
	if err != nil {
		t.Fatalf("compare in: %v", err)
	}
	if !value.AsBool(found) {
		t.Error("expected 2 in bag via __contains__")
	}

	missing, err := machine.compare(bytecode.OpCompareNotIn, value.Int(9), bag)
	if err != nil {
		t.Fatalf("compare not in: %v", err)
	}
	if !value.AsBool(missing) {
		t.Error("expected 9 not in bag via __contains__")
	}
}

// TestBoolDunderTruthiness checks isTruthy consults __bool__ and
// re-projects a non-bool result through default truthiness
// (spec.md §4.4).
func TestBoolDunderTruthiness(t *testing.T) {
	machine := New(Config{})
	classVal := value.Class("AlwaysFalse", nil)
	class := value.AsClass(classVal)
	class.Methods["__bool__"] = value.NativeFunction("__bool__", func(args []value.Value) (value.Value, error) {
		return value.Bool(false), nil
	})
	if err := machine.DefineClass(class); err != nil {
		t.Fatalf("DefineClass: %v", err)
	}
	inst := value.Instance(class)

	truthy, err := machine.isTruthy(inst)
	if err != nil {
		t.Fatalf("isTruthy: %v", err)
	}
	if truthy {
		t.Error("expected __bool__ returning False to make the instance falsy")
	}

	plainClassVal := value.Class("NoOverride", nil)
	plainClass := value.AsClass(plainClassVal)
	if err := machine.DefineClass(plainClass); err != nil {
		t.Fatalf("DefineClass(NoOverride): %v", err)
	}
	plain := value.Instance(plainClass)
	truthy, err = machine.isTruthy(plain)
	if err != nil {
		t.Fatalf("isTruthy: %v", err)
	}
	if !truthy {
		t.Error("expected an instance with no __bool__ override to default truthy")
	}
}
