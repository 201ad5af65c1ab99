package memory

import (
	"encoding/binary"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
)

// arenaBase keeps arena addresses away from zero so that a zero
// address stays a null sentinel.
const arenaBase nativeabi.Address = 0x10000

// Arena is a pure-Go backing store: a bump allocator over one byte
// buffer, addressed from a non-zero base. Free is a no-op; an arena
// releases everything at once when it is dropped. Not safe for
// concurrent use.
type Arena struct {
	buf  []byte
	base nativeabi.Address
	off  uint64
}

// NewArena returns an arena over a fresh buffer of size bytes.
func NewArena(size uint64) *Arena {
	return &Arena{buf: make([]byte, size), base: arenaBase}
}

// Base returns the arena's first address.
func (a *Arena) Base() nativeabi.Address { return a.base }

// Used returns the number of allocated bytes.
func (a *Arena) Used() uint64 { return a.off }

// Alloc reserves size bytes aligned to align and returns their
// address.
func (a *Arena) Alloc(size, align uint64) (nativeabi.Address, error) {
	off := layout.AlignTo(a.off, align)
	if off+size > uint64(len(a.buf)) {
		return 0, errors.AllocationFailed(errors.PhaseMemory, size, align)
	}
	a.off = off + size
	return a.base + nativeabi.Address(off), nil
}

// Free is a no-op: bump arenas release en masse.
func (a *Arena) Free(addr nativeabi.Address, size, align uint64) {}

// index translates an address range into a buffer offset.
func (a *Arena) index(addr nativeabi.Address, length uint64) (uint64, error) {
	if addr < a.base {
		return 0, errors.OutOfBounds(errors.PhaseMemory, nil, uint64(addr), uint64(len(a.buf)))
	}
	off := uint64(addr - a.base)
	if off+length > uint64(len(a.buf)) {
		return 0, errors.OutOfBounds(errors.PhaseMemory, nil, off+length, uint64(len(a.buf)))
	}
	return off, nil
}

func (a *Arena) Read(addr nativeabi.Address, length uint64) ([]byte, error) {
	off, err := a.index(addr, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, a.buf[off:off+length])
	return out, nil
}

func (a *Arena) Write(addr nativeabi.Address, data []byte) error {
	off, err := a.index(addr, uint64(len(data)))
	if err != nil {
		return err
	}
	copy(a.buf[off:], data)
	return nil
}

func (a *Arena) ReadU8(addr nativeabi.Address) (uint8, error) {
	off, err := a.index(addr, 1)
	if err != nil {
		return 0, err
	}
	return a.buf[off], nil
}

func (a *Arena) ReadU16(addr nativeabi.Address) (uint16, error) {
	off, err := a.index(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(a.buf[off:]), nil
}

func (a *Arena) ReadU32(addr nativeabi.Address) (uint32, error) {
	off, err := a.index(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(a.buf[off:]), nil
}

func (a *Arena) ReadU64(addr nativeabi.Address) (uint64, error) {
	off, err := a.index(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(a.buf[off:]), nil
}

func (a *Arena) WriteU8(addr nativeabi.Address, value uint8) error {
	off, err := a.index(addr, 1)
	if err != nil {
		return err
	}
	a.buf[off] = value
	return nil
}

func (a *Arena) WriteU16(addr nativeabi.Address, value uint16) error {
	off, err := a.index(addr, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(a.buf[off:], value)
	return nil
}

func (a *Arena) WriteU32(addr nativeabi.Address, value uint32) error {
	off, err := a.index(addr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(a.buf[off:], value)
	return nil
}

func (a *Arena) WriteU64(addr nativeabi.Address, value uint64) error {
	off, err := a.index(addr, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(a.buf[off:], value)
	return nil
}

var _ nativeabi.MemoryAllocator = (*Arena)(nil)
