package valist

import (
	"github.com/wippyai/native-abi/abi"
	"github.com/wippyai/native-abi/layout"
)

// area identifies which va_list region carries an argument.
type area uint8

const (
	areaGP area = iota
	areaFP
	areaOverflow
)

// placement is one argument's resolved position: a byte offset into
// its area and the stride between consecutive payload words. Register
// save slots can be wider than a word (SysV float slots are 16 bytes),
// so multi-word values step by the stride while each slot carries 8
// payload bytes.
type placement struct {
	area   area
	offset uint64
	stride uint64
}

// cursors is the consumption state of a va_list: bytes consumed of the
// GP area, the FP cursor within the register save area, and the
// overflow position. The reader runs the overflow cursor as an
// absolute address; the builder runs it relative to a base it aligns
// itself. Reader and builder replay identical arithmetic, which is
// what keeps written and read layouts in lockstep.
type cursors struct {
	desc *abi.Descriptor
	gp   uint64
	fp   uint64
	ov   uint64
}

func newCursors(desc *abi.Descriptor) cursors {
	return cursors{desc: desc, fp: desc.Variadic.GPAreaSize()}
}

// place resolves the slot for the next value of the given class and
// advances exactly one region's cursor. A value that does not fit the
// remaining register slots falls through to overflow without consuming
// register capacity, so a later, smaller value may still register.
func (c *cursors) place(class abi.StorageClass, words int, size, align uint64) placement {
	geo := c.desc.Variadic
	switch class {
	case abi.ClassIntReg:
		need := uint64(words) * geo.GPSlotSize
		off := c.gp
		if c.desc.PairAlignEven && words == 2 && align >= 2*c.desc.WordSize {
			off = layout.AlignTo(off, 2*geo.GPSlotSize)
		}
		if off+need <= geo.GPAreaSize() {
			c.gp = off + need
			return placement{area: areaGP, offset: off, stride: geo.GPSlotSize}
		}
	case abi.ClassFloatReg:
		need := uint64(words) * geo.FPSlotSize
		if c.fp+need <= geo.RegSaveSize() {
			off := c.fp
			c.fp = off + need
			return placement{area: areaFP, offset: off, stride: geo.FPSlotSize}
		}
	}

	a := geo.OverflowGranularity
	if align > a {
		a = geo.OverflowOverAlign
	}
	off := layout.AlignTo(c.ov, a)
	c.ov = off + layout.AlignTo(size, geo.OverflowGranularity)
	return placement{area: areaOverflow, offset: off, stride: c.desc.WordSize}
}

// vargSpec flattens a classification into placement inputs. Indirect
// aggregates place their pointer, not their payload.
type vargSpec struct {
	class    abi.StorageClass
	words    int
	size     uint64
	align    uint64
	indirect bool
}

func specFor(desc *abi.Descriptor, l layout.Layout) (vargSpec, error) {
	cls, err := abi.ClassifyVariadic(desc, l)
	if err != nil {
		return vargSpec{}, err
	}
	if cls.Indirect {
		return vargSpec{
			class:    abi.ClassIntReg,
			words:    1,
			size:     desc.WordSize,
			align:    desc.WordSize,
			indirect: true,
		}, nil
	}
	return vargSpec{
		class: cls.Class,
		words: cls.RegCount,
		size:  l.ByteSize(),
		align: l.ByteAlignment(),
	}, nil
}
