package valist

import (
	"fmt"
	"math"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/abi"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
	"github.com/wippyai/native-abi/memory"
)

// vararg is one recorded (layout, value) pair awaiting placement.
type vararg struct {
	l     layout.Layout
	word  uint64
	seg   memory.Segment
	group bool
}

// Builder accumulates variadic arguments and defers every byte of
// native memory work to Build. Add methods chain; the first validation
// failure sticks and surfaces from Err and Build.
type Builder struct {
	desc  *abi.Descriptor
	scope *memory.Scope
	args  []vararg
	err   error
}

// NewBuilder returns a builder for the descriptor's variadic
// convention, bound to scope.
func NewBuilder(desc *abi.Descriptor, scope *memory.Scope) *Builder {
	b := &Builder{desc: desc, scope: scope}
	if desc == nil {
		b.err = errors.InvalidInput(errors.PhaseVaList, "nil descriptor")
	} else if scope == nil {
		b.err = errors.InvalidInput(errors.PhaseVaList, "nil scope")
	}
	return b
}

// Err returns the first recorded validation failure, if any.
func (b *Builder) Err() error { return b.err }

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// alive reports whether the builder can accept another argument.
func (b *Builder) alive() bool {
	if b.err != nil {
		return false
	}
	if !b.scope.IsAlive() {
		b.err = errors.Lifecycle(errors.PhaseVaList, "builder scope closed")
		return false
	}
	return true
}

// AddInt records an integer argument no wider than 32 bits.
func (b *Builder) AddInt(l layout.Scalar, value int32) *Builder {
	if !b.alive() {
		return b
	}
	if l.Kind() == layout.KindFloat || l.ByteSize() == 0 || l.ByteSize() > 4 {
		return b.fail(errors.TypeMismatch(errors.PhaseVaList, nil, "int32", l.String()))
	}
	b.args = append(b.args, vararg{l: l, word: truncExtend(uint64(int64(value)), l)})
	return b
}

// AddLong records an integer argument no wider than 64 bits.
func (b *Builder) AddLong(l layout.Scalar, value int64) *Builder {
	if !b.alive() {
		return b
	}
	if l.Kind() == layout.KindFloat || l.ByteSize() == 0 || l.ByteSize() > 8 {
		return b.fail(errors.TypeMismatch(errors.PhaseVaList, nil, "int64", l.String()))
	}
	b.args = append(b.args, vararg{l: l, word: truncExtend(uint64(value), l)})
	return b
}

// AddDouble records a floating argument; the layout must be the 8-byte
// float layout, matching C's variadic promotion.
func (b *Builder) AddDouble(l layout.Scalar, value float64) *Builder {
	if !b.alive() {
		return b
	}
	if l.Kind() != layout.KindFloat || l.ByteSize() != 8 {
		return b.fail(errors.New(errors.PhaseVaList, errors.KindTypeMismatch).
			GoType("float64").
			Layout(l.String()).
			Detail("variadic floats are promoted to double").
			Build())
	}
	b.args = append(b.args, vararg{l: l, word: math.Float64bits(value)})
	return b
}

// AddAddress records a pointer argument.
func (b *Builder) AddAddress(value nativeabi.Address) *Builder {
	if !b.alive() {
		return b
	}
	b.args = append(b.args, vararg{l: layout.Address, word: uint64(value)})
	return b
}

// AddGroup records an aggregate argument. The segment's first ByteSize
// bytes are captured when Build runs.
func (b *Builder) AddGroup(l layout.Group, value memory.Segment) *Builder {
	if !b.alive() {
		return b
	}
	if value.IsZero() {
		return b.fail(errors.InvalidInput(errors.PhaseVaList, "absent group value"))
	}
	if value.Size() < l.ByteSize() {
		return b.fail(errors.TypeMismatch(errors.PhaseVaList, nil,
			fmt.Sprintf("segment[%d]", value.Size()), l.String()))
	}
	if _, err := abi.ClassifyVariadic(b.desc, l); err != nil {
		return b.fail(err)
	}
	b.args = append(b.args, vararg{l: l, seg: value, group: true})
	return b
}

// Build computes all region sizes in one pass, allocates the header
// and regions as one contiguous block, writes every recorded value,
// and returns an immutable list with cursors reset. With nothing
// recorded it returns the canonical empty list and allocates nothing.
func (b *Builder) Build(alloc nativeabi.MemoryAllocator) (*VaList, error) {
	if b.err != nil {
		return nil, b.err
	}
	if !b.scope.IsAlive() {
		return nil, errors.Lifecycle(errors.PhaseVaList, "builder scope closed")
	}
	if len(b.args) == 0 {
		return Empty(), nil
	}
	if alloc == nil {
		return nil, errors.AllocatorRequired(errors.PhaseVaList, "va_list regions")
	}

	// Sizing pass: replay the reader's cursor arithmetic for exact
	// region sizes, plus space for indirect aggregate copies.
	specs := make([]vargSpec, len(b.args))
	c := newCursors(b.desc)
	var copyBytes uint64
	for i, a := range b.args {
		spec, err := specFor(b.desc, a.l)
		if err != nil {
			return nil, err
		}
		specs[i] = spec
		c.place(spec.class, spec.words, spec.size, spec.align)
		if spec.indirect {
			copyBytes = layout.AlignTo(copyBytes, a.l.ByteAlignment()) + a.l.ByteSize()
		}
	}

	geo := b.desc.Variadic
	regSaveOff := layout.AlignTo(HeaderSize, 16)
	overflowOff := layout.AlignTo(regSaveOff+geo.RegSaveSize(), geo.OverflowOverAlign)
	copiesOff := layout.AlignTo(overflowOff+c.ov, 16)
	total := copiesOff + copyBytes

	block, err := memory.AllocateIn(b.scope, alloc, total, 16)
	if err != nil {
		return nil, err
	}
	base := uint64(block.Address())

	// Header: cursors reset, region pointers absolute.
	if err := block.PutU32(hdrGPOffset, 0); err != nil {
		return nil, err
	}
	if err := block.PutU32(hdrFPOffset, uint32(geo.GPAreaSize())); err != nil {
		return nil, err
	}
	if err := block.PutU64(hdrOverflowPtr, base+overflowOff); err != nil {
		return nil, err
	}
	if err := block.PutU64(hdrRegSavePtr, base+regSaveOff); err != nil {
		return nil, err
	}

	// Write pass: fresh cursors, identical placement.
	c = newCursors(b.desc)
	copyOff := copiesOff
	for i, a := range b.args {
		spec := specs[i]
		p := c.place(spec.class, spec.words, spec.size, spec.align)

		at := regSaveOff + p.offset
		if p.area == areaOverflow {
			at = overflowOff + p.offset
		}

		switch {
		case spec.indirect:
			copyOff = layout.AlignTo(copyOff, a.l.ByteAlignment())
			data, err := a.seg.Bytes(0, a.l.ByteSize())
			if err != nil {
				return nil, err
			}
			if err := block.PutBytes(copyOff, data); err != nil {
				return nil, err
			}
			if err := block.PutU64(at, base+copyOff); err != nil {
				return nil, err
			}
			copyOff += a.l.ByteSize()
		case a.group:
			data, err := a.seg.Bytes(0, a.l.ByteSize())
			if err != nil {
				return nil, err
			}
			if err := putWords(block, at, p.stride, data); err != nil {
				return nil, err
			}
		default:
			if err := block.PutU64(at, a.word); err != nil {
				return nil, err
			}
		}
	}

	return &VaList{mem: alloc, desc: b.desc, scope: b.scope, addr: block.Address()}, nil
}

// putWords spreads data across save slots: 8 payload bytes per slot,
// slots stride bytes apart.
func putWords(block memory.Segment, off, stride uint64, data []byte) error {
	size := uint64(len(data))
	for w := uint64(0); w*8 < size; w++ {
		end := (w + 1) * 8
		if end > size {
			end = size
		}
		if err := block.PutBytes(off+w*stride, data[w*8:end]); err != nil {
			return err
		}
	}
	return nil
}

// truncExtend masks an integer to the layout's width, then widens it
// back per the layout's signedness, yielding the promoted slot value.
func truncExtend(u uint64, l layout.Scalar) uint64 {
	w := l.ByteSize()
	if w < 8 {
		u &= 1<<(8*w) - 1
	}
	if l.Kind() == layout.KindSigned && w < 8 {
		shift := 64 - 8*w
		return uint64(int64(u<<shift) >> shift)
	}
	return u
}
