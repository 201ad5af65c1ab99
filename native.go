package nativeabi

// Address is a location in the foreign address space. Address 0 is never a
// valid allocation and acts as the null sentinel throughout the library.
type Address uint64

// Memory is byte-addressed access to a foreign address space. Multi-byte
// accessors are little-endian, matching the in-memory representation of the
// supported ABIs.
type Memory interface {
	Read(addr Address, length uint64) ([]byte, error)
	Write(addr Address, data []byte) error
	ReadU8(addr Address) (uint8, error)
	ReadU16(addr Address) (uint16, error)
	ReadU32(addr Address) (uint32, error)
	ReadU64(addr Address) (uint64, error)
	WriteU8(addr Address, value uint8) error
	WriteU16(addr Address, value uint16) error
	WriteU32(addr Address, value uint32) error
	WriteU64(addr Address, value uint64) error
}

// Allocator reserves space in a foreign address space.
type Allocator interface {
	Alloc(size, align uint64) (Address, error)
	Free(addr Address, size, align uint64)
}

// MemoryAllocator combines both capabilities; backing stores such as
// memory.Arena implement it.
type MemoryAllocator interface {
	Memory
	Allocator
}
