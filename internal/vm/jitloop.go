package vm

import "corevm/internal/jit"

// recordLoopIteration feeds a loop's backward-edge jump (the universal
// loop-header signal in a register-machine CFG) to the hot-loop detector
// and, once a loop crosses the promotion threshold, runs jit.Analyze on
// its window (spec.md §4.8). It never calls the configured jit.Compiler:
// Analyze returns TemplateUnknown for every window and the function
// returns there, so no loop is compiled and results are unaffected.
func (vm *VM) recordLoopIteration(frame *Frame, loopStartPC int) {
	key := jit.LoopKey{FunctionName: frame.Function, LoopStartPC: loopStartPC}
	promote, _ := vm.hotLoops.RecordIteration(key)
	if !promote {
		return
	}
	window := jit.LoopWindow{StartPC: loopStartPC, EndPC: frame.PC}
	tmpl := jit.Analyze(window)
	if tmpl == jit.TemplateUnknown {
		return
	}
	// vm.jitCompiler.CompileLoop is not called here, and no compiled loop
	// is cached or executed.
}
