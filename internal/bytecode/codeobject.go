package bytecode

import "corevm/internal/value"

// ParamKind classifies a CodeObject parameter (spec.md §3).
type ParamKind uint8

const (
	ParamPositional ParamKind = iota
	ParamKeyword
	ParamStarArgs
	ParamStarKwargs
)

// Param describes one formal parameter.
type Param struct {
	Name       string
	Default    *value.Value // nil if no default
	Annotation string
	Kind       ParamKind
}

// InlineCacheSlot is a per-call-site cache cell, sized into
// CodeObject.MethodCache at compile time (spec.md §4.3). Grounded on
// vmregister/bytecode.go's InlineCache, repurposed from property-shape
// caching to method-resolution caching: ClassName/MethodRef/Version
// instead of ShapeID/Offset.
type InlineCacheSlot struct {
	ClassName string
	MethodRef value.Value
	Version   uint64
	Hits      uint32
	Misses    uint32
}

func (s *InlineCacheSlot) Hit(className string, version uint64) bool {
	return s.ClassName == className && s.Version == version && s.ClassName != ""
}

func (s *InlineCacheSlot) Fill(className string, method value.Value, version uint64) {
	s.ClassName = className
	s.MethodRef = method
	s.Version = version
}

// CodeObject is the immutable-after-compilation unit the VM executes
// (spec.md §3). Compiling source into one is out of scope; any front end
// (or a test, via internal/vmtest) builds this directly.
type CodeObject struct {
	Name        string
	Filename    string
	Params      []Param
	Instructions []Instruction
	Constants   []value.Value
	Names       []string // interned identifiers referenced by index
	VarNames    []string // local slot names
	FreeVars    []string // closure capture names
	IsAsync     bool
	NumRegisters int
	MethodCache []InlineCacheSlot
}

// ParamCount returns the number of positional-or-keyword parameters
// (excluding *args/**kwargs), the common case argument binding checks
// against for arity errors.
func (c *CodeObject) ParamCount() int {
	n := 0
	for _, p := range c.Params {
		if p.Kind == ParamPositional || p.Kind == ParamKeyword {
			n++
		}
	}
	return n
}

func (c *CodeObject) HasVarArgs() bool {
	for _, p := range c.Params {
		if p.Kind == ParamStarArgs {
			return true
		}
	}
	return false
}

func (c *CodeObject) HasVarKwargs() bool {
	for _, p := range c.Params {
		if p.Kind == ParamStarKwargs {
			return true
		}
	}
	return false
}
