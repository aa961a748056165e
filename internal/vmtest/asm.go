// Package vmtest supplies the hand-assembly and diffing helpers
// internal/vm's tests build hand-written CodeObjects with. Grounded on
// internal/vm/vm_test.go's table-driven style of constructing raw
// instruction slices by hand (no compiler, no testify anywhere in the
// corpus) — Asm exists only because this VM's Instruction is a
// three-operand struct rather than the teacher's byte-opcode stream, so
// building one by hand benefits from named accessors instead of a raw
// []byte literal.
package vmtest

import (
	"corevm/internal/bytecode"
	"corevm/internal/value"

	"github.com/kr/pretty"
)

// Asm incrementally builds a bytecode.CodeObject, interning constants,
// names, and local-variable slots as they're referenced so a test can
// write `asm.Const(value.Int(1))` instead of tracking indices by hand.
type Asm struct {
	code *bytecode.CodeObject
}

// New starts a CodeObject under construction, named the way a traceback
// frame would show it.
func New(name string) *Asm {
	return &Asm{code: &bytecode.CodeObject{Name: name, Filename: "<vmtest>"}}
}

// Const interns a constant and returns its index for a LoadConst operand.
func (a *Asm) Const(v value.Value) uint32 {
	a.code.Constants = append(a.code.Constants, v)
	return uint32(len(a.code.Constants) - 1)
}

// Name interns an identifier (attribute, global, or method name) and
// returns its index, reusing an existing entry if already interned —
// the shared index-space convention LoadMethodCached's inline-cache slot
// assumes.
func (a *Asm) Name(n string) uint32 {
	for i, existing := range a.code.Names {
		if existing == n {
			return uint32(i)
		}
	}
	a.code.Names = append(a.code.Names, n)
	return uint32(len(a.code.Names) - 1)
}

// Local interns a local-variable slot name and returns its index.
func (a *Asm) Local(n string) uint32 {
	for i, existing := range a.code.VarNames {
		if existing == n {
			return uint32(i)
		}
	}
	a.code.VarNames = append(a.code.VarNames, n)
	return uint32(len(a.code.VarNames) - 1)
}

// FreeVar appends a closure free-variable name and returns its index.
func (a *Asm) FreeVar(n string) uint32 {
	a.code.FreeVars = append(a.code.FreeVars, n)
	return uint32(len(a.code.FreeVars) - 1)
}

// Emit appends one instruction and returns the Asm for chaining.
func (a *Asm) Emit(op bytecode.OpCode, x, y, z uint32) *Asm {
	a.code.Instructions = append(a.code.Instructions, bytecode.Make(op, x, y, z))
	return a
}

// EmitLine is Emit with an explicit source line, for traceback-rendering
// tests that assert on reported line numbers.
func (a *Asm) EmitLine(op bytecode.OpCode, x, y, z, line uint32) *Asm {
	a.code.Instructions = append(a.code.Instructions, bytecode.MakeLine(op, x, y, z, line))
	return a
}

// Here returns the index the next Emit call will occupy, used to back-
// patch a jump target once the loop body or handler's length is known:
//
//	loopStart := asm.Here()
//	...
//	asm.Emit(bytecode.OpJump, 0, loopStart, 0)
func (a *Asm) Here() uint32 { return uint32(len(a.code.Instructions)) }

// Registers fixes the CodeObject's register-file size. Must cover every
// register index any emitted instruction references — Frame.Reset
// allocates exactly this many.
func (a *Asm) Registers(n int) *Asm {
	a.code.NumRegisters = n
	return a
}

// Params sets the CodeObject's formal parameter list.
func (a *Asm) Params(params ...bytecode.Param) *Asm {
	a.code.Params = params
	return a
}

// Async marks the CodeObject as a coroutine body (spec.md §4.7's
// `async def`).
func (a *Asm) Async() *Asm {
	a.code.IsAsync = true
	return a
}

// MethodCacheSlots preallocates n inline-cache slots, needed by any test
// exercising OpCallMethodCached/OpLoadMethodCached.
func (a *Asm) MethodCacheSlots(n int) *Asm {
	a.code.MethodCache = make([]bytecode.InlineCacheSlot, n)
	return a
}

// Code returns the finished CodeObject.
func (a *Asm) Code() *bytecode.CodeObject { return a.code }

// Diff renders a field-by-field kr/pretty diff between got and want, the
// style of failure message a table-driven VM test wants over a pair of
// opaque %#v dumps when comparing structured Values (lists, instances,
// exceptions).
func Diff(got, want interface{}) []string {
	return pretty.Diff(got, want)
}
