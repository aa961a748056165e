// Package jit implements the optional tracing JIT integration point from
// spec.md §4.8/§9: a HotLoopDetector keyed by (function name, loop start
// pc), and a pluggable Compiler trait for loop backends (the VM's
// loop-header hook does not call it). "On failure or when the JIT is absent, the interpreter
// continues unchanged" — every exported entry point here is fail-soft by
// construction, never an error the caller must propagate.
//
// Kept standalone with its own Value=uint64 alias rather than importing
// corevm/internal/value, matching the teacher's own jit/jit.go isolation
// — a JIT backend is the one component plausibly swapped for a
// native-codegen package with no Go object model at all, so it should
// not gain a dependency on the interpreter's heap object definitions.
package jit

import "unsafe"

// Value mirrors the VM's NaN-boxed representation bit-for-bit without
// importing it (see package doc).
type Value uint64

// Tier is the compilation tier a loop has been promoted to.
type Tier int

const (
	TierInterpreted Tier = iota
	TierQuick
	TierOptimized
)

// Template identifies a recognized loop shape a backend knows how to
// natively compile. TemplateUnknown means the loop's instruction window
// didn't match any recognized pattern — the fail-soft default.
type Template int

const (
	TemplateUnknown Template = iota
	TemplateCounter
	TemplateSum
	TemplateAccumulate
)

// LoopKey identifies one loop header for profiling purposes: spec.md
// §4.8's "(function_name, loop_start_pc) pair".
type LoopKey struct {
	FunctionName string
	LoopStartPC  int
}

// HotLoopDetector counts iterations per LoopKey and reports when a loop
// crosses the promotion threshold.
type HotLoopDetector struct {
	threshold int
	counts    map[LoopKey]int
	promoted  map[LoopKey]Tier
}

func NewHotLoopDetector(threshold int) *HotLoopDetector {
	if threshold <= 0 {
		threshold = 1000
	}
	return &HotLoopDetector{
		threshold: threshold,
		counts:    make(map[LoopKey]int),
		promoted:  make(map[LoopKey]Tier),
	}
}

// RecordIteration records one pass through a loop header and reports
// whether this iteration just crossed a promotion threshold, plus which
// tier it was promoted to (valid only when promote is true).
func (d *HotLoopDetector) RecordIteration(key LoopKey) (promote bool, tier Tier) {
	d.counts[key]++
	n := d.counts[key]
	switch {
	case n == d.threshold:
		d.promoted[key] = TierQuick
		return true, TierQuick
	case n == d.threshold*10:
		d.promoted[key] = TierOptimized
		return true, TierOptimized
	default:
		return false, TierInterpreted
	}
}

// Tier reports the highest tier a loop has been promoted to, or
// TierInterpreted if it has never crossed the threshold.
func (d *HotLoopDetector) Tier(key LoopKey) Tier {
	return d.promoted[key]
}

// LoopWindow is the input a Compiler receives for one loop body: spec.md
// §4.8's "relevant instruction window, constant pool, bounds, the result
// register, and (for range loops) the current iteration state." Left
// untyped against bytecode.Instruction (same isolation rationale as
// Value) — a compiled representation (e.g. []uint32) is what a real
// native backend would want anyway.
type LoopWindow struct {
	Code       []uint32
	Constants  []Value
	StartPC    int
	EndPC      int
	ResultReg  int
	CounterReg int
	LimitReg   int
	StepReg    int
	AccumReg   int
}

// Analyze returns TemplateUnknown for every window: it recognizes none of
// the templates above. Callers treat TemplateUnknown as "do not attempt
// native compilation." It never errors.
func Analyze(w LoopWindow) Template {
	return TemplateUnknown
}

// CompiledLoop is a native entry point a Compiler produced for one loop
// body, replacing the interpreter for that body "until the iterator is
// exhausted" (spec.md §4.7/§4.8).
type CompiledLoop struct {
	Template Template
	Run      func(registers unsafe.Pointer) bool
}

// Compiler is the trait spec.md §9 calls for: "factored as a trait with
// compile_loop(...) -> native entry returning opaque function pointers."
// A real backend (e.g. one targeting amd64 directly, or lowering to a
// Cranelift-like IR) implements this; nothing in this package requires
// one to exist.
type Compiler interface {
	CompileLoop(w LoopWindow, tmpl Template) (*CompiledLoop, bool)
}

// NullCompiler always declines, giving callers a safe default backend
// when none has been configured — "the interpreter continues unchanged."
type NullCompiler struct{}

func (NullCompiler) CompileLoop(w LoopWindow, tmpl Template) (*CompiledLoop, bool) {
	return nil, false
}

// Execute runs a compiled loop body against a caller-owned register
// file. A panic inside Run (a miscompiled template, an out-of-bounds
// access the native path didn't check) is converted to a fallback
// signal rather than crashing the interpreter — "falls back
// transparently on non-monomorphic shapes" (spec.md §9).
func Execute(loop *CompiledLoop, registers unsafe.Pointer) (ok bool) {
	if loop == nil || loop.Run == nil {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return loop.Run(registers)
}
