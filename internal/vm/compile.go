package vm

import (
	"corevm/internal/bytecode"
	"corevm/internal/errors"
	"corevm/internal/value"
)

// SourceCompiler is the external collaborator boundary spec.md §1 leaves
// unimplemented: turning source text into a CodeObject. Compile/Exec/Eval
// accept an already-built CodeObject's source form only if a host
// embedding this core supplies one; without it they fail rather than
// silently no-op.
type SourceCompiler interface {
	Compile(source, filename string) (*bytecode.CodeObject, error)
}

// Compile delegates to the configured SourceCompiler (spec.md §6).
func (vm *VM) Compile(source, filename string) (*bytecode.CodeObject, error) {
	if vm.compiler == nil {
		return nil, errors.New(errors.TypeMismatch, "no source compiler configured")
	}
	return vm.compiler.Compile(source, filename)
}

// Exec compiles and runs source as a module body — the `exec()` builtin's
// semantics (spec.md §6).
func (vm *VM) Exec(source, filename string) (value.Value, error) {
	code, err := vm.Compile(source, filename)
	if err != nil {
		return value.Nil(), err
	}
	return vm.Run(code)
}

// Eval compiles and runs source as a single expression — the `eval()`
// builtin's semantics. Identical machinery to Exec: this core treats both
// as "run a CodeObject and return what Run returns" (spec.md §6), leaving
// the statement-vs-expression distinction to the compiler.
func (vm *VM) Eval(source, filename string) (value.Value, error) {
	return vm.Exec(source, filename)
}
