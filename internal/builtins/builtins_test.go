package builtins

import (
	"testing"

	"corevm/internal/value"
	"corevm/internal/vm"
)

// installBuiltins wires a fresh table into machine the way a host embedder
// would: machine must exist first (New(machine) closes over it), so
// registration is a second step through vm.VM.Builtins() rather than
// Config.Builtins.
func installBuiltins(machine *vm.VM) map[string]value.Value {
	table := New(machine)
	b := machine.Builtins()
	for name, fn := range table {
		if _, exists := b.Items[name]; !exists {
			b.KeyOrder = append(b.KeyOrder, name)
		}
		b.Items[name] = fn
	}
	return table
}

// TestPropertyDescriptorGetSet drives property() end to end: a class-level
// property bound once via property(fget, fset), read and written through
// LoadAttr/StoreAttr on two different instances, confirming each
// instance's backing field stays independent (spec.md §4.3's descriptor
// protocol, exercised through the builtin rather than hand-assembled
// bytecode since it is the one builtin with VM-callback plumbing worth
// testing at this level).
func TestPropertyDescriptorGetSet(t *testing.T) {
	machine := vm.New(vm.Config{})
	table := installBuiltins(machine)

	fget := value.NativeFunction("get_celsius", func(args []value.Value) (value.Value, error) {
		self := value.AsInstance(args[0])
		return self.Fields.M["_c"], nil
	})
	fset := value.NativeFunction("set_celsius", func(args []value.Value) (value.Value, error) {
		self := value.AsInstance(args[0])
		self.Fields.M["_c"] = args[1]
		return value.Nil(), nil
	})

	propVal, err := machine.Call(table["property"], []value.Value{fget, fset})
	if err != nil {
		t.Fatalf("property(): %v", err)
	}

	classVal := value.Class("Temperature", nil)
	class := value.AsClass(classVal)
	class.Methods["celsius"] = propVal
	if err := machine.DefineClass(class); err != nil {
		t.Fatalf("DefineClass: %v", err)
	}

	a := value.Instance(class)
	b := value.Instance(class)
	value.AsInstance(a).Fields.M["_c"] = value.Int(0)
	value.AsInstance(b).Fields.M["_c"] = value.Int(0)

	if err := machine.StoreAttr(a, "celsius", value.Int(100)); err != nil {
		t.Fatalf("StoreAttr(a): %v", err)
	}
	if err := machine.StoreAttr(b, "celsius", value.Int(37)); err != nil {
		t.Fatalf("StoreAttr(b): %v", err)
	}

	gotA, err := machine.LoadAttr(a, "celsius")
	if err != nil {
		t.Fatalf("LoadAttr(a): %v", err)
	}
	gotB, err := machine.LoadAttr(b, "celsius")
	if err != nil {
		t.Fatalf("LoadAttr(b): %v", err)
	}
	if want := value.Int(100); !value.Equal(gotA, want) {
		t.Errorf("a.celsius: got %s, want %s", value.Repr(gotA), value.Repr(want))
	}
	if want := value.Int(37); !value.Equal(gotB, want) {
		t.Errorf("b.celsius: got %s, want %s", value.Repr(gotB), value.Repr(want))
	}
}

// TestNextBuiltinDefaultOnStopIteration checks next(it, default) swallows
// StopIteration (spec.md §4.5/§6).
func TestNextBuiltinDefaultOnStopIteration(t *testing.T) {
	machine := vm.New(vm.Config{})
	table := installBuiltins(machine)

	it, err := machine.Iter(value.List(nil))
	if err != nil {
		t.Fatalf("Iter: %v", err)
	}
	result, err := machine.Call(table["next"], []value.Value{it, value.String("empty")})
	if err != nil {
		t.Fatalf("next(): %v", err)
	}
	if want := value.String("empty"); !value.Equal(result, want) {
		t.Errorf("got %s, want %s", value.Repr(result), value.Repr(want))
	}
}

// TestListBuiltinDrainsIterable checks list(range(3)) drains through the
// same Iter/Next protocol ForIter uses.
func TestListBuiltinDrainsIterable(t *testing.T) {
	machine := vm.New(vm.Config{})
	table := installBuiltins(machine)

	rangeVal, err := machine.Call(table["range"], []value.Value{value.Int(3)})
	if err != nil {
		t.Fatalf("range(): %v", err)
	}
	result, err := machine.Call(table["list"], []value.Value{rangeVal})
	if err != nil {
		t.Fatalf("list(): %v", err)
	}
	want := value.List([]value.Value{value.Int(0), value.Int(1), value.Int(2)})
	if !value.Equal(result, want) {
		t.Errorf("got %s, want %s", value.Repr(result), value.Repr(want))
	}
}
