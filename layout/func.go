package layout

import "strings"

// Func is an immutable function signature: ordered argument layouts
// plus an optional return layout (nil means void).
type Func struct {
	ret      Layout
	args     []Layout
	variadic int
}

// NewFunc returns a signature with the given return layout and
// arguments. Pass a nil return layout for void functions.
func NewFunc(ret Layout, args ...Layout) Func {
	return Func{ret: ret, args: args, variadic: -1}
}

// WithVariadic returns a copy marking index as the first variadic
// argument. Arguments before index are the fixed portion.
func (f Func) WithVariadic(index int) Func {
	f.variadic = index
	return f
}

// Return returns the return layout, nil for void.
func (f Func) Return() Layout { return f.ret }

// NumArgs returns the number of argument layouts.
func (f Func) NumArgs() int { return len(f.args) }

// Arg returns the i-th argument layout.
func (f Func) Arg(i int) Layout { return f.args[i] }

// FirstVariadic returns the index of the first variadic argument,
// or -1 when the signature is not variadic.
func (f Func) FirstVariadic() int { return f.variadic }

// IsVariadic reports whether the signature has a variadic portion.
func (f Func) IsVariadic() bool { return f.variadic >= 0 }

// String returns the canonical signature text, with "..." marking the
// start of the variadic portion and "void" for missing returns.
func (f Func) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, a := range f.args {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i == f.variadic {
			b.WriteString("... ")
		}
		b.WriteString(a.String())
	}
	if f.variadic == len(f.args) {
		if len(f.args) > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("...")
	}
	b.WriteString(") -> ")
	if f.ret == nil {
		b.WriteString("void")
	} else {
		b.WriteString(f.ret.String())
	}
	return b.String()
}
