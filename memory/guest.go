package memory

import (
	"math"

	"github.com/tetratelabs/wazero/api"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
)

// GuestMemory adapts a wazero linear memory to the Memory interface.
// Wasm offsets are 32-bit, so addresses above 4 GiB are out of bounds
// by construction.
type GuestMemory struct {
	mem api.Memory
}

// NewGuestMemory wraps a wazero module memory.
func NewGuestMemory(mem api.Memory) *GuestMemory {
	return &GuestMemory{mem: mem}
}

var _ nativeabi.Memory = (*GuestMemory)(nil)

func (m *GuestMemory) offset(addr nativeabi.Address, length uint64) (uint32, error) {
	if uint64(addr) > math.MaxUint32 || length > math.MaxUint32 || uint64(addr)+length > math.MaxUint32 {
		return 0, errors.OutOfBounds(errors.PhaseMemory, nil, uint64(addr), length)
	}
	return uint32(addr), nil
}

// Read returns a copy of length bytes starting at addr. Copying
// detaches the result from the linear memory, which can move when the
// guest grows it.
func (m *GuestMemory) Read(addr nativeabi.Address, length uint64) ([]byte, error) {
	off, err := m.offset(addr, length)
	if err != nil {
		return nil, err
	}
	data, ok := m.mem.Read(off, uint32(length))
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseMemory, nil, uint64(addr), length)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write copies data into linear memory starting at addr.
func (m *GuestMemory) Write(addr nativeabi.Address, data []byte) error {
	off, err := m.offset(addr, uint64(len(data)))
	if err != nil {
		return err
	}
	if !m.mem.Write(off, data) {
		return errors.OutOfBounds(errors.PhaseMemory, nil, uint64(addr), uint64(len(data)))
	}
	return nil
}

func (m *GuestMemory) ReadU8(addr nativeabi.Address) (uint8, error) {
	off, err := m.offset(addr, 1)
	if err != nil {
		return 0, err
	}
	v, ok := m.mem.ReadByte(off)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseMemory, nil, uint64(addr), 1)
	}
	return v, nil
}

func (m *GuestMemory) ReadU16(addr nativeabi.Address) (uint16, error) {
	off, err := m.offset(addr, 2)
	if err != nil {
		return 0, err
	}
	v, ok := m.mem.ReadUint16Le(off)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseMemory, nil, uint64(addr), 2)
	}
	return v, nil
}

func (m *GuestMemory) ReadU32(addr nativeabi.Address) (uint32, error) {
	off, err := m.offset(addr, 4)
	if err != nil {
		return 0, err
	}
	v, ok := m.mem.ReadUint32Le(off)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseMemory, nil, uint64(addr), 4)
	}
	return v, nil
}

func (m *GuestMemory) ReadU64(addr nativeabi.Address) (uint64, error) {
	off, err := m.offset(addr, 8)
	if err != nil {
		return 0, err
	}
	v, ok := m.mem.ReadUint64Le(off)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseMemory, nil, uint64(addr), 8)
	}
	return v, nil
}

func (m *GuestMemory) WriteU8(addr nativeabi.Address, value uint8) error {
	off, err := m.offset(addr, 1)
	if err != nil {
		return err
	}
	if !m.mem.WriteByte(off, value) {
		return errors.OutOfBounds(errors.PhaseMemory, nil, uint64(addr), 1)
	}
	return nil
}

func (m *GuestMemory) WriteU16(addr nativeabi.Address, value uint16) error {
	off, err := m.offset(addr, 2)
	if err != nil {
		return err
	}
	if !m.mem.WriteUint16Le(off, value) {
		return errors.OutOfBounds(errors.PhaseMemory, nil, uint64(addr), 2)
	}
	return nil
}

func (m *GuestMemory) WriteU32(addr nativeabi.Address, value uint32) error {
	off, err := m.offset(addr, 4)
	if err != nil {
		return err
	}
	if !m.mem.WriteUint32Le(off, value) {
		return errors.OutOfBounds(errors.PhaseMemory, nil, uint64(addr), 4)
	}
	return nil
}

func (m *GuestMemory) WriteU64(addr nativeabi.Address, value uint64) error {
	off, err := m.offset(addr, 8)
	if err != nil {
		return err
	}
	if !m.mem.WriteUint64Le(off, value) {
		return errors.OutOfBounds(errors.PhaseMemory, nil, uint64(addr), 8)
	}
	return nil
}

// GuestArena is a bump allocator over a reserved region of guest
// linear memory. Free is a no-op; the region is reclaimed as a whole
// when the owning module is dropped.
type GuestArena struct {
	*GuestMemory
	base nativeabi.Address
	size uint64
	off  uint64
}

// NewGuestArena reserves [base, base+size) of mem for allocation.
func NewGuestArena(mem api.Memory, base nativeabi.Address, size uint64) *GuestArena {
	return &GuestArena{GuestMemory: NewGuestMemory(mem), base: base, size: size}
}

var _ nativeabi.MemoryAllocator = (*GuestArena)(nil)

// Base returns the start of the reserved region.
func (a *GuestArena) Base() nativeabi.Address { return a.base }

// Used returns the number of bytes handed out so far.
func (a *GuestArena) Used() uint64 { return a.off }

// Alloc reserves size bytes at an address aligned to align within the
// region. Alignment is of the absolute address, so it holds even when
// the region base is not itself aligned.
func (a *GuestArena) Alloc(size, align uint64) (nativeabi.Address, error) {
	addr := layout.AlignTo(uint64(a.base)+a.off, align)
	off := addr - uint64(a.base)
	if off+size > a.size {
		return 0, errors.AllocationFailed(errors.PhaseMemory, size, align)
	}
	a.off = off + size
	return nativeabi.Address(addr), nil
}

// Free is a no-op.
func (a *GuestArena) Free(addr nativeabi.Address, size, align uint64) {}
