// Package builtins supplies the native function table a host copies into
// an already-constructed VM's Builtins() mapping; New needs that VM, so
// the table cannot be passed in through vm.Config.Builtins (spec.md §6:
// "builtin library implementations are an external collaborator" — this
// is the minimal reference set needed to drive the end-to-end scenarios
// spec.md §8 describes: print, len, range, type, isinstance, issubclass,
// super, property, staticmethod, classmethod, list, dict, str, next,
// iter).
//
// Grounded on the shape of the teacher's native-function registration
// pattern (a map[string]Value of NativeFunctionObj values installed into
// globals at VM construction, see vmregister/stdlib.go, whose *content*
// is the out-of-scope security/network/database surface spec.md §1
// excludes — only the registration shape survives here).
package builtins

import (
	"fmt"

	"corevm/internal/errors"
	"corevm/internal/value"
	"corevm/internal/vm"
)

// New builds the native function table, capturing machine so the few
// builtins that must call back into user code (property's getter/setter,
// next()'s iterator protocol) can do so through the same Call/Next entry
// points the dispatch loop itself uses.
func New(machine *vm.VM) map[string]value.Value {
	callBack = machine.Call

	table := map[string]value.Value{
		"print":        value.NativeFunction("print", builtinPrint),
		"len":          value.NativeFunction("len", builtinLen),
		"range":        value.NativeFunction("range", builtinRange),
		"type":         value.NativeFunction("type", builtinType),
		"isinstance":   value.NativeFunction("isinstance", builtinIsinstance),
		"issubclass":   value.NativeFunction("issubclass", builtinIssubclass),
		"list":         value.NativeFunction("list", listBuiltin(machine)),
		"dict":         value.NativeFunction("dict", builtinDict),
		"str":          value.NativeFunction("str", builtinStr),
		"staticmethod": value.NativeFunction("staticmethod", builtinStaticMethod),
		"classmethod":  value.NativeFunction("classmethod", builtinClassMethod),
	}
	table["next"] = value.NativeFunction("next", nextBuiltin(machine))
	table["iter"] = value.NativeFunction("iter", iterBuiltin(machine))
	table["property"] = value.NativeFunction("property", propertyBuiltin(machine))
	table["super"] = value.NativeFunction("super", superBuiltin())
	return table
}

func argOr(args []value.Value, i int, def value.Value) value.Value {
	if i < len(args) {
		return args[i]
	}
	return def
}

func builtinPrint(args []value.Value) (value.Value, error) {
	parts := make([]interface{}, len(args))
	for i, a := range args {
		parts[i] = value.ToString(a)
	}
	fmt.Println(parts...)
	return value.Nil(), nil
}

func builtinLen(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil(), errors.New(errors.TypeMismatch, "len() takes exactly one argument")
	}
	v := args[0]
	switch {
	case value.IsString(v):
		return value.Int(int64(len(value.AsString(v).Value))), nil
	case value.IsBytes(v):
		return value.Int(int64(len(value.AsBytes(v).Value))), nil
	case value.IsList(v):
		return value.Int(int64(len(value.AsList(v).Elements))), nil
	case value.IsTuple(v):
		return value.Int(int64(len(value.AsTuple(v).Elements))), nil
	case value.IsSet(v):
		return value.Int(int64(len(value.AsSet(v).Items))), nil
	case value.IsMap(v):
		return value.Int(int64(len(value.AsMap(v).Items))), nil
	default:
		return value.Nil(), errors.New(errors.TypeMismatch, "object of type '%s' has no len()", value.TypeName(v))
	}
}

func builtinRange(args []value.Value) (value.Value, error) {
	var start, stop, step int64 = 0, 0, 1
	switch len(args) {
	case 1:
		stop = value.AsInt(args[0])
	case 2:
		start, stop = value.AsInt(args[0]), value.AsInt(args[1])
	case 3:
		start, stop, step = value.AsInt(args[0]), value.AsInt(args[1]), value.AsInt(args[2])
		if step == 0 {
			return value.Nil(), errors.New(errors.ValueInvalid, "range() arg 3 must not be zero")
		}
	default:
		return value.Nil(), errors.New(errors.TypeMismatch, "range expected 1 to 3 arguments, got %d", len(args))
	}
	return value.Range(start, stop, step), nil
}

func builtinType(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil(), errors.New(errors.TypeMismatch, "type() takes exactly one argument")
	}
	if value.IsInstance(args[0]) {
		return value.ClassValue(value.AsInstance(args[0]).Class), nil
	}
	return value.String(value.TypeName(args[0])), nil
}

// listBuiltin implements list()/list(iterable): with no argument it
// returns an empty list, otherwise it drains the argument through the
// same Iter/Next protocol ForIter and the hosted next() builtin use.
func listBuiltin(machine *vm.VM) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.List(nil), nil
		}
		if len(args) != 1 {
			return value.Nil(), errors.New(errors.TypeMismatch, "list() takes at most one argument")
		}
		it, err := machine.Iter(args[0])
		if err != nil {
			return value.Nil(), err
		}
		var elems []value.Value
		for {
			v, err := machine.Next(it)
			if err != nil {
				if re, ok := err.(*errors.RuntimeError); ok && re.Kind == errors.StopIteration {
					break
				}
				return value.Nil(), err
			}
			elems = append(elems, v)
		}
		return value.List(elems), nil
	}
}

func builtinIsinstance(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Nil(), errors.New(errors.TypeMismatch, "isinstance() takes exactly two arguments")
	}
	obj, classVal := args[0], args[1]
	if !value.IsInstance(obj) || !value.IsClass(classVal) {
		return value.Bool(false), nil
	}
	target := value.AsClass(classVal)
	for _, c := range value.AsInstance(obj).Class.MRO {
		if c == target {
			return value.Bool(true), nil
		}
	}
	return value.Bool(false), nil
}

func builtinIssubclass(args []value.Value) (value.Value, error) {
	if len(args) != 2 || !value.IsClass(args[0]) || !value.IsClass(args[1]) {
		return value.Nil(), errors.New(errors.TypeMismatch, "issubclass() takes two class arguments")
	}
	target := value.AsClass(args[1])
	for _, c := range value.AsClass(args[0]).MRO {
		if c == target {
			return value.Bool(true), nil
		}
	}
	return value.Bool(false), nil
}

func builtinDict(args []value.Value) (value.Value, error) {
	return value.Map(nil, nil), nil
}

func builtinStr(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.String(""), nil
	}
	return value.String(value.ToString(args[0])), nil
}

func builtinStaticMethod(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil(), errors.New(errors.TypeMismatch, "staticmethod() takes exactly one argument")
	}
	return value.StaticMethod(args[0]), nil
}

func builtinClassMethod(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil(), errors.New(errors.TypeMismatch, "classmethod() takes exactly one argument")
	}
	return value.ClassMethod(args[0]), nil
}

func nextBuiltin(machine *vm.VM) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Nil(), errors.New(errors.TypeMismatch, "next() takes at least one argument")
		}
		v, err := machine.Next(args[0])
		if err != nil {
			if len(args) > 1 {
				if re, ok := err.(*errors.RuntimeError); ok && re.Kind == errors.StopIteration {
					return args[1], nil
				}
			}
			return value.Nil(), err
		}
		return v, nil
	}
}

func iterBuiltin(machine *vm.VM) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil(), errors.New(errors.TypeMismatch, "iter() takes exactly one argument")
		}
		return machine.Iter(args[0])
	}
}

// propertyBuiltin returns a native-backed property descriptor: an
// instance of a synthetic "property" class whose __get__/__set__ methods
// call back into the stored fget/fset through the VM's own Call entry
// point, exercising the same descriptor protocol objmodel.go's LoadAttr/
// StoreAttr already implement for user-defined descriptors.
func propertyBuiltin(machine *vm.VM) func([]value.Value) (value.Value, error) {
	class := newPropertyClass()
	if err := machine.DefineClass(class); err != nil {
		panic(err)
	}

	return func(args []value.Value) (value.Value, error) {
		fget := argOr(args, 0, value.Nil())
		fset := argOr(args, 1, value.Nil())
		inst := value.Instance(class)
		value.AsInstance(inst).Fields.M["fget"] = fget
		value.AsInstance(inst).Fields.M["fset"] = fset
		return inst, nil
	}
}

func newPropertyClass() *value.ClassObj {
	classVal := value.Class("property", nil)
	class := value.AsClass(classVal)
	class.Methods["__get__"] = value.NativeFunction("property.__get__", func(args []value.Value) (value.Value, error) {
		descriptor, obj := args[0], args[1]
		fget := value.AsInstance(descriptor).Fields.M["fget"]
		if !value.IsCallable(fget) {
			return value.Nil(), errors.New(errors.AttributeMissing, "unreadable attribute")
		}
		return callBack(fget, []value.Value{obj})
	})
	class.Methods["__set__"] = value.NativeFunction("property.__set__", func(args []value.Value) (value.Value, error) {
		descriptor, obj, v := args[0], args[1], args[2]
		fset := value.AsInstance(descriptor).Fields.M["fset"]
		if !value.IsCallable(fset) {
			return value.Nil(), errors.New(errors.AttributeMissing, "can't set attribute")
		}
		return callBack(fset, []value.Value{obj, v})
	})
	return class
}

// callBack is filled in by New via a package-level indirection so the
// native __get__/__set__ closures above (created once, before any VM
// call is in flight) can still reach the owning VM's Call method.
var callBack func(fn value.Value, args []value.Value) (value.Value, error)

func superBuiltin() func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		if len(args) != 2 || !value.IsClass(args[0]) || !value.IsInstance(args[1]) {
			return value.Nil(), errors.New(errors.TypeMismatch, "super() takes a class and an instance")
		}
		return value.SuperProxy(value.AsInstance(args[1]), value.AsClass(args[0])), nil
	}
}
