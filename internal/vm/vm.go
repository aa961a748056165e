// Package vm implements the execution core: dispatch loop, frame and
// object model, call protocol, exception unwinding, and generator
// suspension (spec.md §4). Grounded on vmregister/vm.go's RegisterVM,
// generalized from a single shared 64K register file and a process-wide
// switch-based stdlib to per-frame register slices sized at compile time
// and an injected builtins/module-loader contract (spec.md §6).
package vm

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"corevm/internal/bytecode"
	"corevm/internal/errors"
	"corevm/internal/jit"
	"corevm/internal/module"
	"corevm/internal/value"
)

// maxFrameDepth is spec.md §4.1/§5's "stack depth limit: 1000 frames."
const maxFrameDepth = 1000

// Config carries VM-construction-time policy, the ambient-stack
// equivalent of the teacher's scattered VM struct fields promoted into
// one injectable value (spec.md names none of this, but a host
// embedding the VM needs to supply builtins and a module source).
type Config struct {
	Builtins map[string]value.Value
	Modules  module.Source
	// JITCompiler is kept on the VM (jit.NullCompiler when nil). The
	// hot-loop hook in jitloop.go does not call it, so execution is always
	// interpreted whatever is set here.
	JITCompiler    jit.Compiler
	JITThreshold   int
	RecursionLimit int
	// Compiler, when non-nil, backs Eval/Exec/Compile — the named-but-
	// out-of-scope "turn source text into a CodeObject" collaborator
	// spec.md §1/§6 leaves to an embedder.
	Compiler SourceCompiler
}

// methodCacheEntry backs the VM-wide cache keyed by (class, method) in
// spec.md §4.3's "Global method cache."
type methodCacheEntry struct {
	method  value.Value
	version uint64
}

// VM is the process-local execution engine. Every operation threads
// through a *VM handle rather than touching package-level state (spec.md
// §5: "A clean implementation threads a VM handle through every
// operation rather than relying on process globals.")
type VM struct {
	globals  *value.RcValue // *value.MapObj-backed namespace, shared with every frame
	builtins *value.RcValue

	frames []*Frame
	pool   *Pool

	// methodCacheVersion is bumped on any class method-table mutation;
	// cache hits (inline or global) require a version match (spec.md §4.3).
	methodCacheVersion uint64
	methodCacheMu      sync.RWMutex
	methodCache        map[methodCacheKey]methodCacheEntry

	modules  *module.Loader
	compiler SourceCompiler

	hotLoops    *jit.HotLoopDetector
	jitCompiler jit.Compiler

	recursionLimit int

	genCounter int // number of generator/coroutine IDs handed out; the IDs themselves are random UUIDs

	startedAt    time.Time
	instructions uint64
	calls        uint64
}

type methodCacheKey struct {
	class  *value.ClassObj
	method string
}

// New constructs a VM ready to Run a CodeObject. Builtins and a module
// Source are supplied by the host embedding the core (spec.md §1:
// builtin library implementations are an external collaborator).
func New(cfg Config) *VM {
	if cfg.JITThreshold <= 0 {
		cfg.JITThreshold = 1000
	}
	if cfg.RecursionLimit <= 0 {
		cfg.RecursionLimit = maxFrameDepth
	}
	builtinsMap := cfg.Builtins
	if builtinsMap == nil {
		builtinsMap = map[string]value.Value{}
	}
	order := make([]string, 0, len(builtinsMap))
	for k := range builtinsMap {
		order = append(order, k)
	}

	vmInstance := &VM{
		globals:        value.NewRcValue(value.Map(nil, nil)),
		builtins:       value.NewRcValue(value.Map(builtinsMap, order)),
		pool:           NewPool(),
		methodCache:    make(map[methodCacheKey]methodCacheEntry),
		hotLoops:       jit.NewHotLoopDetector(cfg.JITThreshold),
		jitCompiler:    cfg.JITCompiler,
		compiler:       cfg.Compiler,
		recursionLimit: cfg.RecursionLimit,
		startedAt:      time.Now(),
	}
	if cfg.Modules != nil {
		vmInstance.modules = module.NewLoader(cfg.Modules)
	}
	if vmInstance.jitCompiler == nil {
		vmInstance.jitCompiler = jit.NullCompiler{}
	}
	return vmInstance
}

// Globals exposes the shared globals mapping (spec.md §5: "Globals
// mapping is shared... between the VM and every frame").
func (vm *VM) Globals() *value.MapObj { return value.AsMap(vm.globals.Get()) }

// Builtins exposes the shared builtins mapping for late registration —
// needed because a native function that calls back into the VM (like
// internal/builtins' next/iter/property) can only close over a *VM handle
// that exists after New returns, one step later than Config.Builtins.
func (vm *VM) Builtins() *value.MapObj { return value.AsMap(vm.builtins.Get()) }

func (vm *VM) nextGeneratorID() string {
	vm.genCounter++
	return uuid.NewString()
}

// bumpMethodCacheVersion invalidates every inline and global method
// cache entry by advancing the monotonic version counter (spec.md §4.3).
func (vm *VM) bumpMethodCacheVersion() {
	vm.methodCacheMu.Lock()
	vm.methodCacheVersion++
	vm.methodCacheMu.Unlock()
}

func (vm *VM) currentVersion() uint64 {
	vm.methodCacheMu.RLock()
	defer vm.methodCacheMu.RUnlock()
	return vm.methodCacheVersion
}

// lookupGlobalMethodCache consults spec.md §4.3's "Global method cache",
// keyed by (class, method) and invalidated by the version counter.
func (vm *VM) lookupGlobalMethodCache(class *value.ClassObj, name string) (value.Value, bool) {
	vm.methodCacheMu.RLock()
	defer vm.methodCacheMu.RUnlock()
	e, ok := vm.methodCache[methodCacheKey{class, name}]
	if !ok || e.version != vm.methodCacheVersion {
		return value.Nil(), false
	}
	return e.method, true
}

func (vm *VM) storeGlobalMethodCache(class *value.ClassObj, name string, method value.Value) {
	vm.methodCacheMu.Lock()
	defer vm.methodCacheMu.Unlock()
	vm.methodCache[methodCacheKey{class, name}] = methodCacheEntry{method: method, version: vm.methodCacheVersion}
}

// pushFrame enforces spec.md §4.1's recursion-depth limit before growing
// the frame stack.
func (vm *VM) pushFrame(f *Frame) error {
	if len(vm.frames) >= vm.recursionLimit {
		return errors.New(errors.RecursionDepth, "maximum recursion depth exceeded")
	}
	vm.frames = append(vm.frames, f)
	return nil
}

func (vm *VM) popFrame() *Frame {
	n := len(vm.frames)
	f := vm.frames[n-1]
	vm.frames = vm.frames[:n-1]
	return f
}

func (vm *VM) topFrame() *Frame {
	return vm.frames[len(vm.frames)-1]
}

// Run executes a top-level CodeObject (a module body or a compiled
// `exec`/`eval` unit) to completion and returns the value its
// ReturnValue instruction returns, or None if execution falls off the end
// of the code.
func (vm *VM) Run(code *bytecode.CodeObject) (value.Value, error) {
	frame := vm.pool.Get()
	frame.Reset(code, vm.globals, vm.builtins)
	if err := vm.pushFrame(frame); err != nil {
		return value.Nil(), err
	}
	return vm.run(0)
}

// Stats reports human-readable runtime counters, the ambient-observability
// surface spec.md's Non-goals exclude as a *feature* but which every
// embedding host still wants for diagnostics — rendered with
// github.com/dustin/go-humanize the way a CLI wrapping this core would.
type Stats struct {
	Uptime       string
	Instructions string
	Calls        string
	FrameDepth   int
}

func (vm *VM) Stats() Stats {
	return Stats{
		Uptime:       time.Since(vm.startedAt).Round(time.Millisecond).String(),
		Instructions: humanize.Comma(int64(vm.instructions)),
		Calls:        humanize.Comma(int64(vm.calls)),
		FrameDepth:   len(vm.frames),
	}
}

func (vm *VM) String() string {
	s := vm.Stats()
	return fmt.Sprintf("vm<uptime=%s instructions=%s calls=%s depth=%d>",
		s.Uptime, s.Instructions, s.Calls, s.FrameDepth)
}
