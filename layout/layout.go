package layout

import (
	"fmt"
	"strings"
)

// Layout describes the size, alignment, and shape of a native value.
// Implementations are immutable values with a deterministic String form.
type Layout interface {
	// ByteSize returns the total size in bytes.
	ByteSize() uint64
	// ByteAlignment returns the required alignment in bytes.
	ByteAlignment() uint64
	// String returns the canonical text form of the layout.
	String() string
}

// ScalarKind distinguishes the value categories a scalar can carry.
type ScalarKind uint8

const (
	KindSigned ScalarKind = iota
	KindUnsigned
	KindFloat
)

var kindPrefixes = [...]string{
	KindSigned:   "i",
	KindUnsigned: "u",
	KindFloat:    "f",
}

func (k ScalarKind) String() string {
	if int(k) < len(kindPrefixes) {
		return kindPrefixes[k]
	}
	return "?"
}

// AlignTo rounds offset up to the next multiple of align.
// align must be a power of two; zero align leaves offset unchanged.
func AlignTo(offset, align uint64) uint64 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// Scalar is a primitive value layout: an integral or floating value of
// 1, 2, 4, 8, or 16 bytes. Natural alignment equals the width unless
// overridden with WithAlignment.
type Scalar struct {
	width uint64
	align uint64
	kind  ScalarKind
}

// NewScalar returns a scalar layout with natural alignment.
// Width validity is checked at classification time, not here.
func NewScalar(kind ScalarKind, width uint64) Scalar {
	return Scalar{width: width, align: width, kind: kind}
}

func (s Scalar) ByteSize() uint64 { return s.width }

func (s Scalar) ByteAlignment() uint64 { return s.align }

// Kind returns the scalar's value category.
func (s Scalar) Kind() ScalarKind { return s.kind }

// WithAlignment returns a copy of the scalar with an explicit alignment.
func (s Scalar) WithAlignment(align uint64) Scalar {
	s.align = align
	return s
}

func (s Scalar) String() string {
	base := fmt.Sprintf("%s%d", s.kind, s.width*8)
	if s.align != s.width {
		return fmt.Sprintf("%s%%%d", base, s.align)
	}
	return base
}

// Pointer is an address-sized value layout. It classifies like an
// integer but is boxed/unboxed as an address at call boundaries.
type Pointer struct{}

func (Pointer) ByteSize() uint64 { return 8 }

func (Pointer) ByteAlignment() uint64 { return 8 }

func (Pointer) String() string { return "ptr" }

// Padding reserves bytes inside a group without carrying value bits.
type Padding struct {
	size uint64
}

// NewPadding returns a padding layout of the given byte size.
func NewPadding(size uint64) Padding {
	return Padding{size: size}
}

func (p Padding) ByteSize() uint64 { return p.size }

func (Padding) ByteAlignment() uint64 { return 1 }

func (p Padding) String() string { return fmt.Sprintf("x%d", p.size) }

// Predefined scalar and pointer layouts.
var (
	Int8    = NewScalar(KindSigned, 1)
	Int16   = NewScalar(KindSigned, 2)
	Int32   = NewScalar(KindSigned, 4)
	Int64   = NewScalar(KindSigned, 8)
	Int128  = NewScalar(KindSigned, 16)
	UInt8   = NewScalar(KindUnsigned, 1)
	UInt16  = NewScalar(KindUnsigned, 2)
	UInt32  = NewScalar(KindUnsigned, 4)
	UInt64  = NewScalar(KindUnsigned, 8)
	Float   = NewScalar(KindFloat, 4)
	Double  = NewScalar(KindFloat, 8)
	Address = Pointer{}
)

// joinStrings renders a space-separated member list inside brackets.
func joinStrings(parts []string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}
	b.WriteByte(']')
	return b.String()
}
