package abi

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
)

// Direction distinguishes the two call orientations.
type Direction uint8

const (
	// Downcall: the runtime calls into native code.
	Downcall Direction = iota
	// Upcall: native code calls back into the runtime.
	Upcall
)

func (d Direction) String() string {
	if d == Upcall {
		return "upcall"
	}
	return "downcall"
}

// Assignment is the resolved plan for one logical argument: its
// classification, the physical storages it occupies in order, and the
// binding program that realizes the transfer.
type Assignment struct {
	Layout   layout.Layout
	Storages []Storage
	Program  []Binding
	Class    ArgClass
	// Synthetic marks the hidden return pointer argument.
	Synthetic bool
}

// CallingSequence is the complete, replayable call plan for one
// signature under one descriptor and direction. It holds no live
// resources and is safe for unsynchronized concurrent reuse.
type CallingSequence struct {
	Desc      *Descriptor
	Fn        layout.Func
	Direction Direction

	// Args holds one assignment per logical argument. When
	// HiddenReturn is set, Args[0] is the synthesized return pointer
	// and the declared arguments follow from index 1.
	Args []Assignment

	// Return is the binding program for the return value, empty for
	// void.
	Return      []Binding
	ReturnClass ArgClass
	ReturnRegs  []Storage

	HiddenReturn bool

	// StackBytes is the outgoing stack argument area size, aligned to
	// the descriptor's frame alignment.
	StackBytes uint64
}

// NumDeclaredArgs returns the argument count of the declared
// signature, excluding any synthesized return pointer.
func (cs *CallingSequence) NumDeclaredArgs() int {
	if cs.HiddenReturn {
		return len(cs.Args) - 1
	}
	return len(cs.Args)
}

// DeclaredArg returns the assignment of the i-th declared argument.
func (cs *CallingSequence) DeclaredArg(i int) Assignment {
	if cs.HiddenReturn {
		return cs.Args[i+1]
	}
	return cs.Args[i]
}

func (cs *CallingSequence) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s [%s] stack=%d\n", cs.Direction, cs.Fn, cs.Desc.Name, cs.StackBytes)
	for i, a := range cs.Args {
		names := make([]string, len(a.Storages))
		for j, s := range a.Storages {
			names[j] = s.String()
		}
		tag := ""
		if a.Synthetic {
			tag = " (hidden return)"
		}
		fmt.Fprintf(&b, "  arg%d %s: %s -> %s%s\n", i, a.Layout, a.Class.Class, strings.Join(names, ","), tag)
		for _, step := range a.Program {
			fmt.Fprintf(&b, "    %s\n", step)
		}
	}
	if len(cs.Return) > 0 {
		fmt.Fprintf(&b, "  ret %s\n", cs.Fn.Return())
		for _, step := range cs.Return {
			fmt.Fprintf(&b, "    %s\n", step)
		}
	}
	return b.String()
}

var arrangeCache sync.Map // descriptor|direction|signature -> *CallingSequence

// Arrange classifies every argument and the return value of fn under
// desc and builds the calling sequence for the given direction. Both
// directions share one classification and storage-assignment pass;
// only the binding programs mirror. Results are memoized per
// (descriptor, signature, direction): repeated calls return the same
// sequence.
func Arrange(desc *Descriptor, fn layout.Func, dir Direction) (*CallingSequence, error) {
	if desc == nil {
		return nil, errors.InvalidInput(errors.PhaseArrange, "nil descriptor")
	}
	key := desc.Name + "|" + dir.String() + "|" + fn.String()
	if cached, ok := arrangeCache.Load(key); ok {
		return cached.(*CallingSequence), nil
	}

	cs, err := arrange(desc, fn, dir)
	if err != nil {
		return nil, err
	}

	actual, _ := arrangeCache.LoadOrStore(key, cs)
	return actual.(*CallingSequence), nil
}

func arrange(desc *Descriptor, fn layout.Func, dir Direction) (*CallingSequence, error) {
	// Classify everything up front; no binding is emitted for a
	// signature that fails anywhere.
	ret := fn.Return()
	var retClass ArgClass
	if ret != nil {
		var err error
		retClass, err = classifyReturn(desc, ret)
		if err != nil {
			return nil, wrapArgErr(err, "ret")
		}
	}
	hidden := ret != nil && retClass.Indirect

	classes := make([]ArgClass, fn.NumArgs())
	for i := 0; i < fn.NumArgs(); i++ {
		variadic := fn.IsVariadic() && i >= fn.FirstVariadic()
		c, err := classify(desc, fn.Arg(i), variadic)
		if err != nil {
			return nil, wrapArgErr(err, strconv.Itoa(i))
		}
		classes[i] = c
	}

	cs := &CallingSequence{
		Desc:         desc,
		Fn:           fn,
		Direction:    dir,
		HiddenReturn: hidden,
		ReturnClass:  retClass,
	}
	as := assigner{desc: desc}

	// The hidden return pointer is discovered by classifying the
	// return value but inserted as the logically first argument, so it
	// consumes the first integer register.
	if hidden {
		c := ArgClass{Class: ClassIntReg, RegCount: 1}
		sto, err := as.assign(c, desc.WordSize, desc.WordSize)
		if err != nil {
			return nil, err
		}
		slot := ValueSlot(0)
		var prog []Binding
		if dir == Downcall {
			prog = []Binding{
				{Op: OpAllocStack, Size: ret.ByteSize(), Align: ret.ByteAlignment()},
				{Op: OpMove, Src: slot, Dst: sto[0], Width: desc.WordSize},
			}
		} else {
			prog = []Binding{
				{Op: OpMove, Src: sto[0], Dst: slot, Width: desc.WordSize},
				{Op: OpBoxAddress},
			}
		}
		cs.Args = append(cs.Args, Assignment{
			Layout:    layout.Address,
			Class:     c,
			Storages:  sto,
			Program:   prog,
			Synthetic: true,
		})
	}

	for i := 0; i < fn.NumArgs(); i++ {
		l := fn.Arg(i)
		c := classes[i]

		size, align := l.ByteSize(), l.ByteAlignment()
		if c.Indirect {
			// only the pointer travels in-band
			size, align = desc.WordSize, desc.WordSize
		}
		sto, err := as.assign(c, size, align)
		if err != nil {
			return nil, wrapArgErr(err, strconv.Itoa(i))
		}

		slot := ValueSlot(len(cs.Args))
		var prog []Binding
		if dir == Downcall {
			prog = valueToPhys(slot, l, c, sto, desc)
		} else {
			prog = physToValue(slot, l, c, sto, desc)
		}
		cs.Args = append(cs.Args, Assignment{Layout: l, Class: c, Storages: sto, Program: prog})
	}

	if ret != nil {
		if hidden {
			cs.Return = []Binding{{Op: OpDeref, Size: ret.ByteSize(), Align: ret.ByteAlignment()}}
		} else {
			regs := desc.IntRetRegs
			if retClass.Class == ClassFloatReg {
				regs = desc.FloatRetRegs
			}
			cs.ReturnRegs = regs[:retClass.RegCount]
			if dir == Downcall {
				cs.Return = physToValue(ReturnSlot(), ret, retClass, cs.ReturnRegs, desc)
			} else {
				cs.Return = valueToPhys(ReturnSlot(), ret, retClass, cs.ReturnRegs, desc)
			}
		}
	}

	cs.StackBytes = layout.AlignTo(as.stackOff, desc.StackFrameAlign)
	return cs, nil
}

// wrapArgErr attaches the argument position to a classification error.
func wrapArgErr(err error, pos string) error {
	if e, ok := err.(*errors.Error); ok {
		return errors.New(e.Phase, e.Kind).
			Path("args", pos).
			Layout(e.Layout).
			Detail(e.Detail).
			Build()
	}
	return err
}

// assigner tracks the next free register per class and the running
// stack offset during one arrangement pass.
type assigner struct {
	desc      *Descriptor
	intUsed   int
	floatUsed int
	stackOff  uint64
}

// assign hands out the next storages for one argument: registers of
// the matching class while they last, whole-argument stack spill
// otherwise. size and align describe the in-band value (the pointer,
// for indirect arguments).
func (a *assigner) assign(c ArgClass, size, align uint64) ([]Storage, error) {
	switch c.Class {
	case ClassIntReg, ClassIndirect:
		need := c.RegCount
		start := a.intUsed
		if a.desc.PairAlignEven && need == 2 && align >= 2*a.desc.WordSize {
			start += start & 1
		}
		if start+need <= len(a.desc.IntArgRegs) {
			a.intUsed = start + need
			return a.desc.IntArgRegs[start : start+need], nil
		}
	case ClassFloatReg:
		need := c.RegCount
		if a.floatUsed+need <= len(a.desc.FloatArgRegs) {
			regs := a.desc.FloatArgRegs[a.floatUsed : a.floatUsed+need]
			a.floatUsed += need
			return regs, nil
		}
	}
	return a.assignStack(size, align)
}

func (a *assigner) assignStack(size, align uint64) ([]Storage, error) {
	d := a.desc
	if align < d.StackAlign {
		align = d.StackAlign
	}
	if d.RealignOveraligned && align > d.WordSize && align < 2*d.WordSize {
		align = 2 * d.WordSize
	}

	off := layout.AlignTo(a.stackOff, align)
	words := (size + d.StackAlign - 1) / d.StackAlign
	if words == 0 {
		words = 1
	}

	sto := make([]Storage, words)
	for i := range sto {
		sto[i] = StackSlot(off + uint64(i)*d.StackAlign)
	}

	a.stackOff = off + words*d.StackAlign
	if a.stackOff > d.MaxStackArgBytes {
		return nil, errors.UnsupportedLayout(errors.PhaseArrange, "",
			fmt.Sprintf("outgoing argument area exceeds %d bytes", d.MaxStackArgBytes))
	}
	return sto, nil
}

// valueToPhys emits the program moving a logical value into its
// physical storages: downcall arguments and upcall returns.
func valueToPhys(slot Storage, l layout.Layout, c ArgClass, sto []Storage, desc *Descriptor) []Binding {
	word := desc.WordSize

	if c.Indirect {
		return []Binding{
			{Op: OpAllocStack, Size: l.ByteSize(), Align: l.ByteAlignment()},
			{Op: OpMove, Src: slot, Dst: sto[0], Width: word},
		}
	}

	switch t := l.(type) {
	case layout.Pointer:
		return []Binding{
			{Op: OpUnboxAddress},
			{Op: OpMove, Src: slot, Dst: sto[0], Width: word},
		}
	case layout.Scalar:
		w := t.ByteSize()
		if t.Kind() == layout.KindFloat {
			if c.Class == ClassIntReg && w < word {
				// variadic float routed through a GP slot: widen first
				return []Binding{
					{Op: OpConvert, Kind: layout.KindFloat, Width: word},
					{Op: OpMove, Src: slot, Dst: sto[0], Width: word},
				}
			}
			return []Binding{{Op: OpMove, Src: slot, Dst: sto[0], Width: w}}
		}
		if w < word {
			return []Binding{
				{Op: OpConvert, Kind: t.Kind(), Width: word},
				{Op: OpMove, Src: slot, Dst: sto[0], Width: word},
			}
		}
		return wordMoves(slot, l, sto, word, false)
	default:
		return wordMoves(slot, l, sto, word, false)
	}
}

// physToValue emits the mirrored program: upcall arguments and
// downcall returns.
func physToValue(slot Storage, l layout.Layout, c ArgClass, sto []Storage, desc *Descriptor) []Binding {
	word := desc.WordSize

	if c.Indirect {
		return []Binding{
			{Op: OpMove, Src: sto[0], Dst: slot, Width: word},
			{Op: OpDeref, Size: l.ByteSize(), Align: l.ByteAlignment()},
		}
	}

	switch t := l.(type) {
	case layout.Pointer:
		return []Binding{
			{Op: OpMove, Src: sto[0], Dst: slot, Width: word},
			{Op: OpBoxAddress},
		}
	case layout.Scalar:
		w := t.ByteSize()
		if t.Kind() == layout.KindFloat {
			if c.Class == ClassIntReg && w < word {
				return []Binding{
					{Op: OpMove, Src: sto[0], Dst: slot, Width: word},
					{Op: OpConvert, Kind: layout.KindFloat, Width: w},
				}
			}
			return []Binding{{Op: OpMove, Src: sto[0], Dst: slot, Width: w}}
		}
		if w < word {
			return []Binding{
				{Op: OpMove, Src: sto[0], Dst: slot, Width: word},
				{Op: OpConvert, Kind: t.Kind(), Width: w},
			}
		}
		return wordMoves(slot, l, sto, word, true)
	default:
		return wordMoves(slot, l, sto, word, true)
	}
}

// wordMoves splits a multi-word value into per-storage moves with byte
// offsets into the logical value.
func wordMoves(slot Storage, l layout.Layout, sto []Storage, word uint64, toValue bool) []Binding {
	size := l.ByteSize()
	prog := make([]Binding, len(sto))
	for k := range sto {
		off := uint64(k) * word
		w := word
		if size-off < w {
			w = size - off
		}
		b := Binding{Op: OpMove, Src: slot, Dst: sto[k], Offset: off, Width: w}
		if toValue {
			b.Src, b.Dst = b.Dst, b.Src
		}
		prog[k] = b
	}
	return prog
}
