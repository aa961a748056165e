package vm

import (
	"testing"

	"corevm/internal/bytecode"
	"corevm/internal/errors"
	"corevm/internal/value"
)

// stubCompiler satisfies SourceCompiler by mapping a fixed source string
// to a pre-built CodeObject, standing in for a real front end the core
// itself doesn't implement (spec.md §1).
type stubCompiler struct {
	source string
	code   *bytecode.CodeObject
}

func (s stubCompiler) Compile(source, filename string) (*bytecode.CodeObject, error) {
	if source != s.source {
		return nil, errors.New(errors.ValueInvalid, "unknown source: %q", source)
	}
	return s.code, nil
}

func TestExecRunsCompiledSource(t *testing.T) {
	code := buildConstReturn(value.Int(42))
	machine := New(Config{Compiler: stubCompiler{source: "return 42", code: code}})

	result, err := machine.Exec("return 42", "<test>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := value.Int(42); !value.Equal(result, want) {
		t.Errorf("got %s, want %s", value.Repr(result), value.Repr(want))
	}
}

func TestCompileWithoutCompilerFails(t *testing.T) {
	machine := New(Config{})
	if _, err := machine.Compile("x", "<test>"); err == nil {
		t.Fatal("expected an error with no compiler configured")
	}
}

func buildConstReturn(v value.Value) *bytecode.CodeObject {
	return &bytecode.CodeObject{
		Name:         "<test>",
		Filename:     "<test>",
		Constants:    []value.Value{v},
		NumRegisters: 1,
		Instructions: []bytecode.Instruction{
			bytecode.Make(bytecode.OpLoadConst, 0, 0, 0),
			bytecode.Make(bytecode.OpReturnValue, 0, 0, 0),
		},
	}
}
