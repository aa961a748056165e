package vm

import (
	"corevm/internal/bytecode"
	"corevm/internal/errors"
	"corevm/internal/value"
)

// callArgs is a fully-evaluated, already-expanded argument vector: any
// Starred call-site values have been spread into positionals and a
// trailing KwargsMarker has been split out, per spec.md §4.2.
type callArgs struct {
	positional []value.Value
	kwargs     map[string]value.Value
}

// expandArgs implements spec.md §4.2's "Starred arguments in the call
// site... are expanded into positionals. A trailing KwargsMarker value...
// is extracted and treated as keyword arguments."
func expandArgs(raw []value.Value) callArgs {
	out := callArgs{positional: make([]value.Value, 0, len(raw))}
	for _, a := range raw {
		switch {
		case value.IsStarred(a):
			inner := value.AsStarred(a).Value
			if value.IsList(inner) {
				out.positional = append(out.positional, value.AsList(inner).Elements...)
			} else if value.IsTuple(inner) {
				out.positional = append(out.positional, value.AsTuple(inner).Elements...)
			} else {
				out.positional = append(out.positional, inner)
			}
		case value.IsKwargsMarker(a):
			out.kwargs = value.AsKwargsMarker(a).Kwargs
		default:
			out.positional = append(out.positional, a)
		}
	}
	return out
}

// Call resolves and invokes any callable Value per spec.md §4.2's six
// cases, returning the callee's result. Used both by the dispatch loop's
// CallFunction family and internally (property getters/setters,
// descriptor protocol, dunder overloads) wherever a result is needed
// immediately rather than written to a register by the main loop.
func (vm *VM) Call(callee value.Value, rawArgs []value.Value) (value.Value, error) {
	vm.calls++
	args := expandArgs(rawArgs)

	switch {
	case value.IsNativeFunction(callee):
		fn := value.AsNativeFunction(callee)
		if args.kwargs != nil {
			rawArgs = append(append([]value.Value{}, args.positional...), value.KwargsMarker(args.kwargs))
			return fn.Fn(rawArgs)
		}
		return fn.Fn(args.positional)

	case value.IsClosure(callee):
		return vm.callClosure(value.AsClosure(callee), args)

	case value.IsBoundMethod(callee):
		bm := value.AsBoundMethod(callee)
		full := append([]value.Value{bm.Receiver}, args.positional...)
		return vm.Call(bm.Func, withKwargs(full, args.kwargs))

	case value.IsClassMethod(callee):
		// Bare (unbound) class-method value: the caller (LoadAttr) already
		// should have bound it; reaching here with no receiver means it was
		// called directly off the class object, so prepend nothing further.
		return vm.Call(value.AsClassMethod(callee).Func, withKwargs(args.positional, args.kwargs))

	case value.IsStaticMethod(callee):
		return vm.Call(value.AsStaticMethod(callee).Func, withKwargs(args.positional, args.kwargs))

	case value.IsClass(callee):
		return vm.instantiate(value.AsClass(callee), args)

	default:
		return value.Nil(), errors.New(errors.TypeMismatch, "'%s' object is not callable", value.TypeName(callee))
	}
}

func withKwargs(positional []value.Value, kwargs map[string]value.Value) []value.Value {
	if kwargs == nil {
		return positional
	}
	return append(positional, value.KwargsMarker(kwargs))
}

// isExceptionClass reports whether a class descends from the builtin
// Exception root, spec.md §4.2 case 6's "short-circuits the object
// instantiation path."
func isExceptionClass(class *value.ClassObj) bool {
	for _, c := range class.MRO {
		if c.Name == "Exception" || c.Name == "BaseException" {
			return true
		}
	}
	return false
}

func (vm *VM) instantiate(class *value.ClassObj, args callArgs) (value.Value, error) {
	if isExceptionClass(class) {
		msg := ""
		if len(args.positional) > 0 {
			msg = value.ToString(args.positional[0])
		}
		return value.Exception(class.Name, msg, value.Nil()), nil
	}

	inst := value.Instance(class)
	if init, _, ok := vm.resolveMethod(class, "__init__"); ok {
		full := append([]value.Value{inst}, args.positional...)
		if _, err := vm.Call(init, withKwargs(full, args.kwargs)); err != nil {
			return value.Nil(), err
		}
	}
	return inst, nil
}

// callClosure implements spec.md §4.2 case 2: allocate a pooled frame,
// bind arguments, push it, run the dispatch loop down to (and including)
// this frame, then return its result. The frame goes onto the shared
// vm.frames stack, so maxFrameDepth still bounds the depth, but it is run
// by a nested vm.run call, so each call made this way also adds to Go's
// call stack; calls from the dispatch loop itself avoid that through
// pushInlineClosure (callops.go).
func (vm *VM) callClosure(closure *value.ClosureObj, args callArgs) (value.Value, error) {
	code, ok := closure.Code.(*bytecode.CodeObject)
	if !ok {
		return value.Nil(), errors.New(errors.TypeMismatch, "closure has no executable code")
	}

	if isGeneratorCode(code) {
		return vm.makeGenerator(closure, args)
	}
	if code.IsAsync {
		return vm.makeCoroutine(closure, args)
	}

	frame := vm.pool.Get()
	globals := vm.globals
	if g, ok := closure.Globals.(*value.RcValue); ok && g != nil {
		globals = g
	}
	frame.Reset(code, globals, vm.builtins)
	frame.FreeVars = closure.FreeVars

	if err := bindParams(frame, code, args); err != nil {
		vm.pool.Put(frame)
		return value.Nil(), err
	}

	stopDepth := len(vm.frames)
	if err := vm.pushFrame(frame); err != nil {
		vm.pool.Put(frame)
		return value.Nil(), err
	}
	return vm.run(stopDepth)
}

// bindParams implements spec.md §4.2's argument binding: positionals and
// keywords fill named parameters (with defaults for the missing), excess
// positionals collect into *args, excess keywords into **kwargs.
func bindParams(frame *Frame, code *bytecode.CodeObject, args callArgs) error {
	positional := args.positional
	kwargs := args.kwargs
	usedKwargs := make(map[string]bool, len(kwargs))

	posIdx := 0
	for i, p := range code.Params {
		switch p.Kind {
		case bytecode.ParamPositional, bytecode.ParamKeyword:
			var v value.Value
			switch {
			case posIdx < len(positional):
				v = positional[posIdx]
				posIdx++
			case kwargs != nil && func() bool { _, ok := kwargs[p.Name]; return ok }():
				v = kwargs[p.Name]
				usedKwargs[p.Name] = true
			case p.Default != nil:
				v = *p.Default
			default:
				return errors.New(errors.TypeMismatch, "missing required argument: %s", p.Name)
			}
			setLocal(frame, i, v)

		case bytecode.ParamStarArgs:
			rest := positional[min(posIdx, len(positional)):]
			setLocal(frame, i, value.Tuple(append([]value.Value{}, rest...)))
			posIdx = len(positional)

		case bytecode.ParamStarKwargs:
			extra := make(map[string]value.Value)
			for k, v := range kwargs {
				if !usedKwargs[k] {
					extra[k] = v
				}
			}
			setLocal(frame, i, value.Map(extra, nil))
		}
	}
	if posIdx < len(positional) && !code.HasVarArgs() {
		return errors.New(errors.TypeMismatch, "too many positional arguments for %s", code.Name)
	}
	return nil
}

func setLocal(frame *Frame, slot int, v value.Value) {
	if slot < len(frame.Locals) {
		frame.Locals[slot].Set(v)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// callValue is the internal alias dispatch.go and objmodel.go use for
// dunder/property/descriptor invocation.
func (vm *VM) callValue(callee value.Value, args []value.Value) (value.Value, error) {
	return vm.Call(callee, args)
}
