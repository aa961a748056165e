package vm

import (
	"corevm/internal/errors"
	"corevm/internal/value"
)

// vmException carries a raised value.Value exception alongside its
// Go-level errors.RuntimeError so the block-stack unwinder can hand the
// original exception object back to StoreException/GetExceptionValue
// while still satisfying the `error` interface the dispatch loop
// propagates (spec.md §4.6).
type vmException struct {
	excValue value.Value
	runtime  *errors.RuntimeError
}

func (e *vmException) Error() string { return e.runtime.Error() }
func (e *vmException) Unwrap() error  { return e.runtime }

// wrapFault converts any runtime fault (division by zero, missing name,
// ...) raised as an *errors.RuntimeError into a vmException so it can be
// caught by an `except` clause naming its class, per spec.md §7's
// propagation policy.
func wrapFault(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*vmException); ok {
		return err
	}
	re, ok := err.(*errors.RuntimeError)
	if !ok {
		re = errors.New(errors.ArbitraryUserRaised, "%s", err.Error())
	}
	className := re.ClassName
	if className == "" {
		className = re.Kind.ClassName()
	}
	return &vmException{
		excValue: value.Exception(className, re.Message, value.Nil()),
		runtime:  re,
	}
}

// raiseValue builds a vmException from a user-raised exception Value
// (OpRaise's operand), the counterpart to wrapFault for internal faults.
func raiseValue(exc value.Value) error {
	if !value.IsException(exc) {
		return wrapFault(errors.New(errors.TypeMismatch, "exceptions must derive from BaseException"))
	}
	e := value.AsException(exc)
	return &vmException{
		excValue: exc,
		runtime:  errors.Raised(e.ClassName, e.Message, nil),
	}
}

// matchException implements MatchExceptionType: compares a raised
// exception's class name against the name an `except SomeError:` clause
// names (spec.md §4.6).
func matchException(exc value.Value, className string) bool {
	if !value.IsException(exc) {
		return false
	}
	return value.AsException(exc).ClassName == className
}

// unwind searches frame for a handler and, if found, installs the
// exception and jumps pc to the handler. If none is found in frame, it
// reports false so the caller pops the frame and retries in the caller.
func unwind(frame *Frame, err error) (*vmException, bool) {
	vex, ok := err.(*vmException)
	if !ok {
		vex = wrapFault(err).(*vmException)
	}
	block, found := frame.FindHandler()
	if !found {
		return vex, false
	}
	frame.PC = block.HandlerPC
	frame.CurrentException = vex.excValue
	return vex, true
}

// renderTraceback builds the Python-shaped rendering spec.md §6 asks
// for, walking vm.frames innermost-last (the order they're already
// stored in).
func (vm *VM) renderTraceback(base *errors.RuntimeError) *errors.RuntimeError {
	for _, f := range vm.frames {
		base.Frames = append(base.Frames, errors.Frame{
			Function: f.Function,
			File:     f.Filename,
			Line:     f.LineNumber,
		})
	}
	return base
}
