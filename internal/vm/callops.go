package vm

import (
	"corevm/internal/bytecode"
	"corevm/internal/errors"
	"corevm/internal/value"
)

// lookupMethodCache implements the per-call-site inline cache a
// LoadMethod/CallMethod pair shares (spec.md §4.3): the cache slot index
// is taken to equal the method name's index into CodeObject.Names, the
// operand-packing convention this core uses throughout. A hit skips the
// MRO walk entirely; a miss falls through to the full LoadAttr protocol
// and refills the slot.
func (vm *VM) lookupMethodCache(frame *Frame, obj value.Value, nameIdx int, name string) (value.Value, error) {
	if value.IsInstance(obj) && nameIdx < len(frame.Code.MethodCache) {
		inst := value.AsInstance(obj)
		slot := &frame.Code.MethodCache[nameIdx]
		version := vm.currentVersion()
		if slot.Hit(inst.Class.Name, version) {
			slot.Hits++
			return value.BoundMethod(name, obj, slot.MethodRef), nil
		}
		v, err := vm.LoadAttr(obj, name)
		if err != nil {
			return value.Nil(), err
		}
		if method, _, ok := vm.resolveMethod(inst.Class, name); ok {
			slot.Misses++
			slot.Fill(inst.Class.Name, method, version)
		}
		return v, nil
	}
	return vm.LoadAttr(obj, name)
}

func (vm *VM) loadMethodCached(frame *Frame, instr bytecode.Instruction) (value.Value, error) {
	obj := frame.Registers[instr.B]
	nameIdx := int(instr.C)
	return vm.lookupMethodCache(frame, obj, nameIdx, frame.Code.Names[nameIdx])
}

// dispatchCall handles CallFunction/CallFunctionKw: A=dest, B=callee reg,
// C=arg count, with arguments occupying the contiguous window
// [B+1, B+C]. A trailing KwargsMarker inside that window (CallFunctionKw)
// is unwrapped generically by expandArgs, so both opcodes share this path.
func (vm *VM) dispatchCall(frame *Frame, instr bytecode.Instruction) (stepSignal, value.Value, error) {
	dest := int(instr.A)
	calleeReg := int(instr.B)
	argCount := int(instr.C)
	callee := frame.Registers[calleeReg]
	rawArgs := append([]value.Value{}, frame.Registers[calleeReg+1:calleeReg+1+argCount]...)
	frame.PC++
	return vm.invokeCallableInline(frame, dest, callee, rawArgs)
}

// dispatchCallEx handles CallFunctionEx: A=dest, B=callee reg, C=a single
// register holding a pre-expanded list/tuple of arguments (starred
// expansion and kwargs wrapping already folded in by the compiler).
func (vm *VM) dispatchCallEx(frame *Frame, instr bytecode.Instruction) (stepSignal, value.Value, error) {
	dest := int(instr.A)
	callee := frame.Registers[instr.B]
	argsVal := frame.Registers[instr.C]
	var raw []value.Value
	switch {
	case value.IsList(argsVal):
		raw = value.AsList(argsVal).Elements
	case value.IsTuple(argsVal):
		raw = value.AsTuple(argsVal).Elements
	default:
		raw = []value.Value{argsVal}
	}
	frame.PC++
	return vm.invokeCallableInline(frame, dest, callee, raw)
}

// dispatchCallMethod handles CallMethod/CallMethodCached: A=dest, B=obj
// reg, C packs (nameIndex&0xFFFF)|(argCount<<16), with arguments in the
// contiguous window starting at B+1.
func (vm *VM) dispatchCallMethod(frame *Frame, instr bytecode.Instruction) (stepSignal, value.Value, error) {
	dest := int(instr.A)
	objReg := int(instr.B)
	nameIdx := int(instr.C & 0xFFFF)
	argCount := int(instr.C >> 16)
	obj := frame.Registers[objReg]
	name := frame.Code.Names[nameIdx]

	callee, err := vm.lookupMethodCache(frame, obj, nameIdx, name)
	if err != nil {
		return 0, value.Nil(), err
	}
	rawArgs := append([]value.Value{}, frame.Registers[objReg+1:objReg+1+argCount]...)
	frame.PC++
	return vm.invokeCallableInline(frame, dest, callee, rawArgs)
}

// invokeCallableInline is the shared landing point for every call-family
// opcode. A Closure callee (bare or bound) is pushed directly onto
// vm.frames so runCore's own loop steps into it next iteration — the
// mechanism that keeps deep user-level recursion (fib, ackermann, ...)
// from growing the Go call stack. Any other callable kind (native
// function, class instantiation, class/static method) is resolved
// synchronously through vm.Call, since those bottom out in Go code or in
// a short, bounded nested call chain rather than user recursion.
func (vm *VM) invokeCallableInline(frame *Frame, dest int, callee value.Value, rawArgs []value.Value) (stepSignal, value.Value, error) {
	args := expandArgs(rawArgs)

	switch {
	case value.IsClosure(callee):
		return vm.pushInlineClosure(frame, dest, value.AsClosure(callee), args)

	case value.IsBoundMethod(callee):
		bm := value.AsBoundMethod(callee)
		full := append([]value.Value{bm.Receiver}, args.positional...)
		if value.IsClosure(bm.Func) {
			return vm.pushInlineClosure(frame, dest, value.AsClosure(bm.Func), callArgs{positional: full, kwargs: args.kwargs})
		}
		v, err := vm.Call(bm.Func, withKwargs(full, args.kwargs))
		if err != nil {
			return 0, value.Nil(), err
		}
		frame.Registers[dest] = v
		return sigNext, value.Nil(), nil

	default:
		v, err := vm.Call(callee, withKwargs(args.positional, args.kwargs))
		if err != nil {
			return 0, value.Nil(), err
		}
		frame.Registers[dest] = v
		return sigNext, value.Nil(), nil
	}
}

// pushInlineClosure binds args into a pooled frame and pushes it with a
// returnTarget pointing back at frame's dest register, instead of
// recursing through vm.Call/callClosure. Generator/coroutine factories
// are the one exception: their "call" never pushes a frame at all (see
// makeGenerator), so those go through callClosure for the plain result.
func (vm *VM) pushInlineClosure(frame *Frame, dest int, closure *value.ClosureObj, args callArgs) (stepSignal, value.Value, error) {
	code, ok := closure.Code.(*bytecode.CodeObject)
	if !ok {
		return 0, value.Nil(), errors.New(errors.TypeMismatch, "closure has no executable code")
	}
	if isGeneratorCode(code) || code.IsAsync {
		v, err := vm.callClosure(closure, args)
		if err != nil {
			return 0, value.Nil(), err
		}
		frame.Registers[dest] = v
		return sigNext, value.Nil(), nil
	}

	newFrame := vm.pool.Get()
	globals := vm.globals
	if g, ok := closure.Globals.(*value.RcValue); ok && g != nil {
		globals = g
	}
	newFrame.Reset(code, globals, vm.builtins)
	newFrame.FreeVars = closure.FreeVars

	if err := bindParams(newFrame, code, args); err != nil {
		vm.pool.Put(newFrame)
		return 0, value.Nil(), err
	}

	callerIndex := len(vm.frames) - 1
	newFrame.Return = returnTarget{callerIndex: callerIndex, resultReg: dest, valid: true}
	if err := vm.pushFrame(newFrame); err != nil {
		vm.pool.Put(newFrame)
		return 0, value.Nil(), err
	}
	return sigNext, value.Nil(), nil
}
