package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseClassify Phase = "classify" // layout to storage classification
	PhaseArrange  Phase = "arrange"  // calling sequence construction
	PhaseVaList   Phase = "valist"   // variadic list build/traversal
	PhaseMemory   Phase = "memory"   // scopes, arenas, segments
	PhaseInvoke   Phase = "invoke"   // downcall/upcall execution
	PhaseParse    Phase = "parse"    // signature text parsing
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidLayout     Kind = "invalid_layout"
	KindUnsupportedLayout Kind = "unsupported_layout"
	KindTypeMismatch      Kind = "type_mismatch"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindLifecycle         Kind = "lifecycle"
	KindAllocatorRequired Kind = "allocator_required"
	KindAllocation        Kind = "allocation"
	KindExhausted         Kind = "exhausted"
	KindNotFound          Kind = "not_found"
	KindInvalidInput      Kind = "invalid_input"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	Layout string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.Layout != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.Layout != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", layout ")
			b.WriteString(e.Layout)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("layout ")
			b.WriteString(e.Layout)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.Layout != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the argument path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Layout sets the layout description
func (b *Builder) Layout(l string) *Builder {
	b.err.Layout = l
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidLayout creates an invalid layout error
func InvalidLayout(phase Phase, layout, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidLayout,
		Layout: layout,
		Detail: detail,
	}
}

// UnsupportedLayout creates an error for layouts the target convention cannot carry
func UnsupportedLayout(phase Phase, layout, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupportedLayout,
		Layout: layout,
		Detail: detail,
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, layout string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		GoType: goType,
		Layout: layout,
	}
}

// OutOfBounds creates an out of bounds access error
func OutOfBounds(phase Phase, path []string, offset, length uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("offset %d out of bounds (length %d)", offset, length),
		Value:  offset,
	}
}

// Lifecycle creates an error for operations on closed or consumed state
func Lifecycle(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindLifecycle,
		Detail: detail,
	}
}

// AllocatorRequired creates an error for by-copy arguments with no allocator
func AllocatorRequired(phase Phase, layout string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocatorRequired,
		Layout: layout,
		Detail: "argument passed by copy requires an allocator",
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// Exhausted creates an error for cursors advanced past their last element
func Exhausted(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindExhausted,
		Detail: fmt.Sprintf("%s exhausted", what),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidInput,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
