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

// Header field offsets. The record shape is the SysV AMD64 va_list and
// is part of the bit-exact contract with native code.
const (
	hdrGPOffset    = 0
	hdrFPOffset    = 4
	hdrOverflowPtr = 8
	hdrRegSavePtr  = 16

	// HeaderSize is the byte size of the va_list record.
	HeaderSize = 24
)

// State is the reader's lifecycle position.
type State uint8

const (
	// StateActive: register save slots remain.
	StateActive State = iota
	// StateConsumedTail: both register areas are exhausted; further
	// reads come from the overflow region.
	StateConsumedTail
	// StateClosed: the owning scope has closed.
	StateClosed
)

var stateNames = [...]string{"active", "consumed-tail", "closed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// VaList reads the remaining arguments of a variadic native call from
// their in-memory representation. Cursors live in the header itself,
// exactly as native va_arg leaves them, so a list adopted from foreign
// code and one produced by a Builder behave identically.
//
// A VaList is single-pass and not safe for concurrent use; Copy
// snapshots the cursors when independent replay is needed.
type VaList struct {
	mem   nativeabi.Memory
	desc  *abi.Descriptor
	scope *memory.Scope
	addr  nativeabi.Address
	empty bool
}

var emptyList = &VaList{empty: true, scope: memory.GlobalScope()}

// Empty returns the canonical empty list. Its reads yield zero values,
// its skips do nothing, and it holds no native memory.
func Empty() *VaList { return emptyList }

// FromAddress adopts a va_list whose header was written at addr, by
// foreign code or by a Builder.
func FromAddress(addr nativeabi.Address, mem nativeabi.Memory, desc *abi.Descriptor, scope *memory.Scope) (*VaList, error) {
	if mem == nil {
		return nil, errors.InvalidInput(errors.PhaseVaList, "nil memory")
	}
	if desc == nil {
		return nil, errors.InvalidInput(errors.PhaseVaList, "nil descriptor")
	}
	if scope == nil {
		return nil, errors.InvalidInput(errors.PhaseVaList, "nil scope")
	}
	if addr == 0 {
		return nil, errors.InvalidInput(errors.PhaseVaList, "null va_list address")
	}
	return &VaList{mem: mem, desc: desc, scope: scope, addr: addr}, nil
}

// Address returns the header address, zero for the empty list.
func (v *VaList) Address() nativeabi.Address { return v.addr }

// Scope returns the owning scope.
func (v *VaList) Scope() *memory.Scope { return v.scope }

// State reports the reader's position in its lifecycle.
func (v *VaList) State() State {
	if v.empty {
		return StateConsumedTail
	}
	if !v.scope.IsAlive() {
		return StateClosed
	}
	c, _, err := v.loadCursors()
	if err != nil {
		return StateClosed
	}
	geo := v.desc.Variadic
	if c.gp >= geo.GPAreaSize() && c.fp >= geo.RegSaveSize() {
		return StateConsumedTail
	}
	return StateActive
}

func (v *VaList) String() string {
	if v.empty {
		return "valist{empty}"
	}
	c, _, err := v.loadCursors()
	if err != nil {
		return fmt.Sprintf("valist{addr=%#x}", uint64(v.addr))
	}
	geo := v.desc.Variadic
	return fmt.Sprintf("valist{gp=%d/%d fp=%d/%d overflow=%#x state=%s}",
		c.gp, geo.GPAreaSize(), c.fp, geo.RegSaveSize(), c.ov, v.State())
}

func (v *VaList) check() error {
	if v.empty {
		return nil
	}
	if !v.scope.IsAlive() {
		return errors.Lifecycle(errors.PhaseVaList, "va_list scope closed")
	}
	return nil
}

func (v *VaList) loadCursors() (cursors, nativeabi.Address, error) {
	gp, err := v.mem.ReadU32(v.addr + hdrGPOffset)
	if err != nil {
		return cursors{}, 0, err
	}
	fp, err := v.mem.ReadU32(v.addr + hdrFPOffset)
	if err != nil {
		return cursors{}, 0, err
	}
	ov, err := v.mem.ReadU64(v.addr + hdrOverflowPtr)
	if err != nil {
		return cursors{}, 0, err
	}
	regSave, err := v.mem.ReadU64(v.addr + hdrRegSavePtr)
	if err != nil {
		return cursors{}, 0, err
	}
	c := cursors{desc: v.desc, gp: uint64(gp), fp: uint64(fp), ov: ov}
	return c, nativeabi.Address(regSave), nil
}

func (v *VaList) storeCursors(c cursors) error {
	if err := v.mem.WriteU32(v.addr+hdrGPOffset, uint32(c.gp)); err != nil {
		return err
	}
	if err := v.mem.WriteU32(v.addr+hdrFPOffset, uint32(c.fp)); err != nil {
		return err
	}
	return v.mem.WriteU64(v.addr+hdrOverflowPtr, c.ov)
}

// next classifies l, advances the matching cursor, and returns the
// argument's payload bytes (the pointer itself for an indirect
// aggregate). The header is only updated after the payload read
// succeeds, so a failed read leaves the cursors untouched.
func (v *VaList) next(l layout.Layout) ([]byte, vargSpec, error) {
	spec, err := specFor(v.desc, l)
	if err != nil {
		return nil, vargSpec{}, err
	}
	c, regSave, err := v.loadCursors()
	if err != nil {
		return nil, vargSpec{}, err
	}
	p := c.place(spec.class, spec.words, spec.size, spec.align)

	base := nativeabi.Address(p.offset)
	if p.area != areaOverflow {
		base += regSave
	}
	out := make([]byte, spec.size)
	for w := uint64(0); w*8 < spec.size; w++ {
		n := spec.size - w*8
		if n > 8 {
			n = 8
		}
		chunk, err := v.mem.Read(base+nativeabi.Address(w*p.stride), n)
		if err != nil {
			return nil, vargSpec{}, err
		}
		copy(out[w*8:], chunk)
	}
	if err := v.storeCursors(c); err != nil {
		return nil, vargSpec{}, err
	}
	return out, spec, nil
}

// NextInt reads an integer argument no wider than 32 bits, extended
// per the layout's signedness.
func (v *VaList) NextInt(l layout.Scalar) (int32, error) {
	if err := v.check(); err != nil {
		return 0, err
	}
	if v.empty {
		return 0, nil
	}
	if l.Kind() == layout.KindFloat || l.ByteSize() > 4 {
		return 0, errors.TypeMismatch(errors.PhaseVaList, nil, "int32", l.String())
	}
	raw, _, err := v.next(l)
	if err != nil {
		return 0, err
	}
	return int32(extend(raw, l)), nil
}

// NextLong reads an integer argument no wider than 64 bits.
func (v *VaList) NextLong(l layout.Scalar) (int64, error) {
	if err := v.check(); err != nil {
		return 0, err
	}
	if v.empty {
		return 0, nil
	}
	if l.Kind() == layout.KindFloat || l.ByteSize() > 8 {
		return 0, errors.TypeMismatch(errors.PhaseVaList, nil, "int64", l.String())
	}
	raw, _, err := v.next(l)
	if err != nil {
		return 0, err
	}
	return int64(extend(raw, l)), nil
}

// NextDouble reads a floating argument. C promotes variadic floats to
// double, so the layout must be the 8-byte float layout.
func (v *VaList) NextDouble(l layout.Scalar) (float64, error) {
	if err := v.check(); err != nil {
		return 0, err
	}
	if v.empty {
		return 0, nil
	}
	if l.Kind() != layout.KindFloat || l.ByteSize() != 8 {
		return 0, errors.New(errors.PhaseVaList, errors.KindTypeMismatch).
			GoType("float64").
			Layout(l.String()).
			Detail("variadic floats are promoted to double").
			Build()
	}
	raw, _, err := v.next(l)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(leU64(raw)), nil
}

// NextAddress reads a pointer argument.
func (v *VaList) NextAddress() (nativeabi.Address, error) {
	if err := v.check(); err != nil {
		return 0, err
	}
	if v.empty {
		return 0, nil
	}
	raw, _, err := v.next(layout.Address)
	if err != nil {
		return 0, err
	}
	return nativeabi.Address(leU64(raw)), nil
}

// NextGroup reads an aggregate argument. A direct aggregate is copied
// out of its register save slots or overflow space; an indirect one
// reads the pointer, then copy-constructs from the pointed-to memory.
// The result lives in storage from alloc, bound to the list's scope.
func (v *VaList) NextGroup(g layout.Group, alloc nativeabi.MemoryAllocator) (memory.Segment, error) {
	if err := v.check(); err != nil {
		return memory.Segment{}, err
	}
	if v.empty {
		return memory.Segment{}, nil
	}
	if alloc == nil {
		return memory.Segment{}, errors.AllocatorRequired(errors.PhaseVaList, g.String())
	}
	raw, spec, err := v.next(g)
	if err != nil {
		return memory.Segment{}, err
	}
	data := raw
	if spec.indirect {
		data, err = v.mem.Read(nativeabi.Address(leU64(raw)), g.ByteSize())
		if err != nil {
			return memory.Segment{}, err
		}
	}
	seg, err := memory.AllocateIn(v.scope, alloc, g.ByteSize(), g.ByteAlignment())
	if err != nil {
		return memory.Segment{}, err
	}
	if err := seg.PutBytes(0, data); err != nil {
		return memory.Segment{}, err
	}
	return seg, nil
}

// Skip advances past arguments without materializing them. The header
// is only updated once every layout has classified, so an invalid
// layout leaves the cursors untouched.
func (v *VaList) Skip(layouts ...layout.Layout) error {
	if err := v.check(); err != nil {
		return err
	}
	if v.empty || len(layouts) == 0 {
		return nil
	}
	c, _, err := v.loadCursors()
	if err != nil {
		return err
	}
	for _, l := range layouts {
		spec, err := specFor(v.desc, l)
		if err != nil {
			return err
		}
		c.place(spec.class, spec.words, spec.size, spec.align)
	}
	return v.storeCursors(c)
}

// Copy snapshots the cursors into a new list sharing the same register
// save and overflow memory, so one reader can replay from a checkpoint
// without disturbing another. The new header comes from alloc, which
// must allocate within the same memory space the list lives in.
func (v *VaList) Copy(alloc nativeabi.MemoryAllocator) (*VaList, error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	if v.empty {
		return v, nil
	}
	if alloc == nil {
		return nil, errors.AllocatorRequired(errors.PhaseVaList, "va_list header")
	}
	hdr, err := v.mem.Read(v.addr, HeaderSize)
	if err != nil {
		return nil, err
	}
	seg, err := memory.AllocateIn(v.scope, alloc, HeaderSize, 8)
	if err != nil {
		return nil, err
	}
	if err := seg.PutBytes(0, hdr); err != nil {
		return nil, err
	}
	return &VaList{mem: v.mem, desc: v.desc, scope: v.scope, addr: seg.Address()}, nil
}

// leU64 assembles up to 8 little-endian bytes.
func leU64(raw []byte) uint64 {
	var u uint64
	for i := len(raw) - 1; i >= 0; i-- {
		u = u<<8 | uint64(raw[i])
	}
	return u
}

// extend widens a narrow integer payload to 64 bits per the layout's
// signedness.
func extend(raw []byte, l layout.Scalar) uint64 {
	u := leU64(raw)
	if l.Kind() == layout.KindSigned && len(raw) < 8 {
		shift := uint(64 - 8*len(raw))
		return uint64(int64(u<<shift) >> shift)
	}
	return u
}
