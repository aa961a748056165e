package vm

import (
	"corevm/internal/bytecode"
	"corevm/internal/errors"
	"corevm/internal/value"
)

// isGeneratorCode reports whether a CodeObject's body contains a yield,
// making any call to it a generator factory rather than an eager call
// (spec.md §4.7: "A function compiled with any YieldValue/YieldFrom
// instruction is a generator factory").
func isGeneratorCode(code *bytecode.CodeObject) bool {
	for _, instr := range code.Instructions {
		if instr.Op == bytecode.OpYieldValue || instr.Op == bytecode.OpYieldFrom {
			return true
		}
	}
	return false
}

// makeGenerator builds the Generator value a factory call returns: the
// frame is bound to the call's arguments right away but not pushed or
// stepped, matching "returns a Generator value wrapping the code object"
// without committing to "frame = None" as a literal nil — the frame
// simply hasn't been pushed onto vm.frames yet, which is
// behaviorally identical from any caller's perspective.
func (vm *VM) makeGenerator(closure *value.ClosureObj, args callArgs) (value.Value, error) {
	code, ok := closure.Code.(*bytecode.CodeObject)
	if !ok {
		return value.Nil(), errors.New(errors.TypeMismatch, "closure has no executable code")
	}
	frame := &Frame{} // not pool-backed: its lifetime is tied to the Generator, not one call
	frame.Reset(code, vm.globals, vm.builtins)
	frame.FreeVars = closure.FreeVars
	frame.IsGenerator = true
	if err := bindParams(frame, code, args); err != nil {
		return value.Nil(), err
	}

	id := vm.nextGeneratorID()
	gen := value.Generator(id, code)
	value.AsGenerator(gen).Frame = frame
	return gen, nil
}

// makeCoroutine is makeGenerator's counterpart for `is_async` closures
// with no yield (spec.md §4.7: "Coroutines are identical in shape but
// flagged is_async").
func (vm *VM) makeCoroutine(closure *value.ClosureObj, args callArgs) (value.Value, error) {
	code, ok := closure.Code.(*bytecode.CodeObject)
	if !ok {
		return value.Nil(), errors.New(errors.TypeMismatch, "closure has no executable code")
	}
	frame := &Frame{}
	frame.Reset(code, vm.globals, vm.builtins)
	frame.FreeVars = closure.FreeVars
	if err := bindParams(frame, code, args); err != nil {
		return value.Nil(), err
	}
	id := vm.nextGeneratorID()
	co := value.Coroutine(id, code)
	value.AsCoroutine(co).Frame = frame
	return co, nil
}

// resumeGenerator drives a suspended generator one step further: pushes
// its stored frame, runs until it yields or completes, and re-detaches
// it either way (spec.md §4.7).
func (vm *VM) resumeGenerator(genVal value.Value) (yielded value.Value, done bool, err error) {
	gen := value.AsGenerator(genVal)
	if gen.Finished {
		return value.Nil(), true, nil
	}
	frame, ok := gen.Frame.(*Frame)
	if !ok {
		return value.Nil(), true, errors.New(errors.TypeMismatch, "generator has no frame")
	}

	stopDepth := len(vm.frames)
	frame.Return = returnTarget{} // no VM-level caller; resumeGenerator is the boundary
	vm.frames = append(vm.frames, frame)

	val, yieldedFlag, runErr := vm.runCore(stopDepth)
	if runErr != nil {
		gen.Finished = true
		return value.Nil(), true, runErr
	}
	if yieldedFlag {
		gen.Frame = frame // still suspended, state preserved in place
		return val, false, nil
	}
	gen.Finished = true
	gen.Frame = nil
	return val, true, nil
}

// Await implements spec.md §4.7's coroutine await: "executes its frame
// to completion and binds the result" — no event loop, fully synchronous.
func (vm *VM) Await(awaitable value.Value) (value.Value, error) {
	if value.IsCoroutine(awaitable) {
		co := value.AsCoroutine(awaitable)
		frame, ok := co.Frame.(*Frame)
		if !ok || co.Finished {
			return value.Nil(), nil
		}
		stopDepth := len(vm.frames)
		frame.Return = returnTarget{}
		vm.frames = append(vm.frames, frame)
		val, _, err := vm.runCore(stopDepth)
		co.Finished = true
		co.Frame = nil
		return val, err
	}
	// A plain value used with `await` outside a coroutine is simply
	// itself, the minimal-event-loop behavior spec.md §4.7 allows.
	return awaitable, nil
}
