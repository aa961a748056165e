// Package errors implements the VM's runtime error taxonomy (spec.md §7)
// and Python-shaped traceback rendering (spec.md §6). Grounded on the
// teacher's SentraError/StackFrame/SourceLocation shape, generalized from
// six source-compile-time error types and a single source location to
// the spec's twelve runtime-error kinds and a full multi-frame traceback.
package errors

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Kind enumerates spec.md §7's error taxonomy.
type Kind string

const (
	NameNotDefined      Kind = "name-not-defined"
	AttributeMissing    Kind = "attribute-missing"
	TypeMismatch        Kind = "type-mismatch"
	ValueInvalid        Kind = "value-invalid"
	IndexOutOfRange     Kind = "index-out-of-range"
	KeyMissing          Kind = "key-missing"
	DivisionByZero      Kind = "division-by-zero"
	RecursionDepth      Kind = "recursion-depth"
	StopIteration       Kind = "stop-iteration"
	AssertionFailed     Kind = "assertion-failed"
	ImportFailure       Kind = "import-failure"
	ArbitraryUserRaised Kind = "arbitrary-user-raised"
)

// kindClassNames maps a Kind to the exception class name the final line
// of a rendered traceback shows (spec.md §6).
var kindClassNames = map[Kind]string{
	NameNotDefined:      "NameError",
	AttributeMissing:    "AttributeError",
	TypeMismatch:        "TypeError",
	ValueInvalid:        "ValueError",
	IndexOutOfRange:     "IndexError",
	KeyMissing:          "KeyError",
	DivisionByZero:      "ZeroDivisionError",
	RecursionDepth:      "RecursionError",
	StopIteration:       "StopIteration",
	AssertionFailed:     "AssertionError",
	ImportFailure:       "ImportError",
	ArbitraryUserRaised: "Exception",
}

func (k Kind) ClassName() string {
	if n, ok := kindClassNames[k]; ok {
		return n
	}
	return "Exception"
}

// Frame is one entry of a rendered traceback: "filename, line, function
// name, and source excerpt per active frame, innermost last" (spec.md §6).
type Frame struct {
	Function string
	File     string
	Line     int
	Source   string
}

// RuntimeError is the value OP_RAISE and the runtime's own faults carry.
// It serves two audiences: Error() renders the user-facing Python-shaped
// traceback from Frames, while Stack() exposes the github.com/pkg/errors
// stack captured at construction for implementor debugging.
type RuntimeError struct {
	Kind      Kind
	ClassName string // overrides Kind.ClassName() for a user-raised class
	Message   string
	Cause     error
	Frames    []Frame
	goStack   error
}

func New(kind Kind, format string, args ...interface{}) *RuntimeError {
	e := &RuntimeError{Kind: kind, Message: fmt.Sprintf(format, args...)}
	e.goStack = pkgerrors.WithStack(e)
	return e
}

// Raised builds the error for a user `raise ClassName(message)` statement,
// as opposed to a fault the VM itself detects via New.
func Raised(className, message string, cause error) *RuntimeError {
	e := &RuntimeError{Kind: ArbitraryUserRaised, ClassName: className, Message: message, Cause: cause}
	e.goStack = pkgerrors.WithStack(e)
	return e
}

func (e *RuntimeError) className() string {
	if e.ClassName != "" {
		return e.ClassName
	}
	return e.Kind.ClassName()
}

// WithFrame adds one traceback frame, called by the dispatch loop as an
// exception unwinds outward. Each caller frame arrives after the frame it
// called, so it is prepended, and Frames ends up innermost-last.
func (e *RuntimeError) WithFrame(f Frame) *RuntimeError {
	e.Frames = append([]Frame{f}, e.Frames...)
	return e
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	if len(e.Frames) > 0 {
		b.WriteString("Traceback (most recent call last):\n")
		for _, f := range e.Frames {
			fmt.Fprintf(&b, "  File \"%s\", line %d, in %s\n", f.File, f.Line, f.Function)
			if f.Source != "" {
				fmt.Fprintf(&b, "    %s\n", strings.TrimSpace(f.Source))
			}
		}
	}
	fmt.Fprintf(&b, "%s: %s", e.className(), e.Message)
	return b.String()
}

// Stack renders the Go-level stack captured at construction, for
// debugging the VM's own faults — distinct from Error()'s user traceback.
func (e *RuntimeError) Stack() string {
	return fmt.Sprintf("%+v", e.goStack)
}

func (e *RuntimeError) Unwrap() error { return e.Cause }
