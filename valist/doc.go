// Package valist reads and builds native variadic argument lists.
//
// A va_list is the in-memory structure holding the not-yet-consumed
// arguments of a variadic native call. Its header is the SysV AMD64
// record and is part of the bit-exact contract with native code:
//
//	offset 0   u32 gpOffset     bytes consumed of the GP save area
//	offset 4   u32 fpOffset     FP cursor within the register save area
//	offset 8   u64 overflowPtr  address of the next overflow argument
//	offset 16  u64 regSavePtr   base of the register save area
//
// The register save area is the GP slots followed by the FP slots,
// with geometry taken from the ABI descriptor. Cursors live in the
// header itself, exactly as native va_arg leaves them, so lists built
// by a Builder and lists adopted from foreign frames via FromAddress
// are interchangeable.
//
// Reader and builder replay one cursor arithmetic: a value whose
// register area still has capacity consumes save slots; everything
// else lands in the overflow region, pre-aligned to the value's
// alignment and advanced by its size rounded up to the stack
// granularity. Aggregates classified indirect pass a pointer to a
// caller-owned copy. Descriptors whose ABI promotes variadic floats
// route them through GP slots; the promotion rule is a descriptor
// constant, never inferred.
//
// Instances are single-pass and confined to one goroutine. Copy
// snapshots the cursors into a new header over the same regions for
// independent replay.
package valist
