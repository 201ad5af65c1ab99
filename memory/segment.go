package memory

import (
	"fmt"
	"math"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/errors"
)

// Segment is a scope-bound view over a range of foreign memory. Every
// accessor checks the owning scope first and the segment bounds
// second; a closed scope fails with a lifecycle error, never stale
// data.
type Segment struct {
	mem   nativeabi.Memory
	scope *Scope
	addr  nativeabi.Address
	size  uint64
}

// NewSegment wraps [addr, addr+size) of mem, bound to scope.
func NewSegment(mem nativeabi.Memory, addr nativeabi.Address, size uint64, scope *Scope) Segment {
	return Segment{mem: mem, scope: scope, addr: addr, size: size}
}

// AllocateIn allocates size bytes aligned to align from alloc and
// returns a segment bound to scope. The allocation is freed when the
// scope closes.
func AllocateIn(scope *Scope, alloc nativeabi.MemoryAllocator, size, align uint64) (Segment, error) {
	if scope == nil {
		return Segment{}, errors.InvalidInput(errors.PhaseMemory, "nil scope")
	}
	if alloc == nil {
		return Segment{}, errors.InvalidInput(errors.PhaseMemory, "nil allocator")
	}

	addr, err := alloc.Alloc(size, align)
	if err != nil {
		return Segment{}, err
	}
	if err := scope.Defer(func() { alloc.Free(addr, size, align) }); err != nil {
		alloc.Free(addr, size, align)
		return Segment{}, err
	}
	return NewSegment(alloc, addr, size, scope), nil
}

// Address returns the segment's base address.
func (s Segment) Address() nativeabi.Address { return s.addr }

// Size returns the segment's length in bytes.
func (s Segment) Size() uint64 { return s.size }

// Scope returns the owning scope.
func (s Segment) Scope() *Scope { return s.scope }

// Memory returns the backing memory capability.
func (s Segment) Memory() nativeabi.Memory { return s.mem }

// IsZero reports whether the segment is the zero value.
func (s Segment) IsZero() bool { return s.mem == nil }

func (s Segment) String() string {
	return fmt.Sprintf("segment{addr=%#x size=%d}", uint64(s.addr), s.size)
}

func (s Segment) check(offset, length uint64) error {
	if s.scope != nil {
		if err := s.scope.check(); err != nil {
			return err
		}
	}
	if offset+length > s.size {
		return errors.OutOfBounds(errors.PhaseMemory, nil, offset+length, s.size)
	}
	return nil
}

// Slice returns a sub-view of the segment sharing scope and memory.
func (s Segment) Slice(offset, length uint64) (Segment, error) {
	if err := s.check(offset, length); err != nil {
		return Segment{}, err
	}
	return Segment{mem: s.mem, scope: s.scope, addr: s.addr + nativeabi.Address(offset), size: length}, nil
}

// Bytes reads length bytes at offset.
func (s Segment) Bytes(offset, length uint64) ([]byte, error) {
	if err := s.check(offset, length); err != nil {
		return nil, err
	}
	return s.mem.Read(s.addr+nativeabi.Address(offset), length)
}

// PutBytes writes data at offset.
func (s Segment) PutBytes(offset uint64, data []byte) error {
	if err := s.check(offset, uint64(len(data))); err != nil {
		return err
	}
	return s.mem.Write(s.addr+nativeabi.Address(offset), data)
}

// CopyFrom copies the whole of src into the segment at offset 0.
func (s Segment) CopyFrom(src Segment) error {
	data, err := src.Bytes(0, src.Size())
	if err != nil {
		return err
	}
	return s.PutBytes(0, data)
}

func (s Segment) U8(offset uint64) (uint8, error) {
	if err := s.check(offset, 1); err != nil {
		return 0, err
	}
	return s.mem.ReadU8(s.addr + nativeabi.Address(offset))
}

func (s Segment) U16(offset uint64) (uint16, error) {
	if err := s.check(offset, 2); err != nil {
		return 0, err
	}
	return s.mem.ReadU16(s.addr + nativeabi.Address(offset))
}

func (s Segment) U32(offset uint64) (uint32, error) {
	if err := s.check(offset, 4); err != nil {
		return 0, err
	}
	return s.mem.ReadU32(s.addr + nativeabi.Address(offset))
}

func (s Segment) U64(offset uint64) (uint64, error) {
	if err := s.check(offset, 8); err != nil {
		return 0, err
	}
	return s.mem.ReadU64(s.addr + nativeabi.Address(offset))
}

func (s Segment) F32(offset uint64) (float32, error) {
	bits, err := s.U32(offset)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

func (s Segment) F64(offset uint64) (float64, error) {
	bits, err := s.U64(offset)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func (s Segment) PutU8(offset uint64, value uint8) error {
	if err := s.check(offset, 1); err != nil {
		return err
	}
	return s.mem.WriteU8(s.addr+nativeabi.Address(offset), value)
}

func (s Segment) PutU16(offset uint64, value uint16) error {
	if err := s.check(offset, 2); err != nil {
		return err
	}
	return s.mem.WriteU16(s.addr+nativeabi.Address(offset), value)
}

func (s Segment) PutU32(offset uint64, value uint32) error {
	if err := s.check(offset, 4); err != nil {
		return err
	}
	return s.mem.WriteU32(s.addr+nativeabi.Address(offset), value)
}

func (s Segment) PutU64(offset uint64, value uint64) error {
	if err := s.check(offset, 8); err != nil {
		return err
	}
	return s.mem.WriteU64(s.addr+nativeabi.Address(offset), value)
}

func (s Segment) PutF32(offset uint64, value float32) error {
	return s.PutU32(offset, math.Float32bits(value))
}

func (s Segment) PutF64(offset uint64, value float64) error {
	return s.PutU64(offset, math.Float64bits(value))
}
