// Package abi maps function signatures onto target calling conventions.
//
// A Descriptor captures one convention: its argument and return
// register files, stack granularity, the aggregate size threshold for
// by-value passing, and the variadic save-area geometry. Two built-in
// descriptors cover the System V AMD64 and PPC64 ELF v2 conventions;
// Lookup and Host select one per (architecture, OS) pair.
//
// Classify decides how a single layout travels: integer register,
// floating register, or indirectly through a pointer to a caller-owned
// copy. Arrange runs classification over a whole signature and emits a
// CallingSequence: per-argument register/stack assignments plus binding
// programs for both call directions.
//
//	desc, _ := abi.Lookup("amd64", "linux")
//	fn := layout.NewFunc(layout.Int64, layout.Int32, layout.Double)
//	seq, err := abi.Arrange(desc, fn, abi.Downcall)
//
// Binding programs are pure data. An engine replaying one interprets
// the steps in order against a logical value slot:
//
//	move         transfer bytes between the slot and a physical location
//	convert      normalize the slot to a width with sign/zero extension
//	box-address  wrap raw bits as an address, unbox-address the reverse
//	alloc-stack  clone the slot's bytes into a fresh caller-owned
//	             temporary; the slot becomes the temporary's address
//	deref        replace a pointer slot with a copy of its pointee
//
// Downcalls and upcalls share one classification and assignment pass;
// only the programs mirror. An aggregate return that exceeds the
// return registers is carried through a hidden pointer argument,
// synthesized as the logically first argument so it consumes the first
// integer register.
//
// Arrange memoizes sequences per (descriptor, signature, direction);
// sequences are immutable and safe for concurrent reuse.
package abi
