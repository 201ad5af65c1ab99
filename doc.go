// Package nativeabi provides a Go implementation of native calling
// conventions for foreign code running in an emulated or sandboxed address
// space.
//
// Given a function signature described as memory layouts, the library decides
// which machine register or stack slot carries every argument and return
// value, produces a reusable calling-sequence description, and executes
// transfers of control across that boundary in both directions: downcalls
// from Go into foreign code and upcalls from foreign code back into Go. It
// also implements the ABI's variadic-argument structure (va_list) exactly as
// the platform C compiler lays it out, so values written by one side read
// back correctly on the other.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	nativeabi/       Root package with core Memory and Allocator interfaces
//	├── layout/      Value layouts (scalars, pointers, groups) and function descriptors
//	├── abi/         Storage model, ABI descriptors, classifier, calling-sequence builder
//	├── memory/      Scoped foreign memory: arenas, segments, wazero-backed guest memory
//	├── valist/      Variadic list reader and builder
//	├── engine/      Emulated machine, downcall handles, upcall stubs
//	├── witsig/      WIT-style signature text to function descriptors
//	└── errors/      Structured error types for debugging
//
// # Quick Start
//
// Arrange and execute a downcall:
//
//	desc, err := abi.Host()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fn := layout.NewFunc(layout.Int32, layout.Int32, layout.Int32)
//	seq, err := abi.Arrange(desc, fn, abi.Downcall)
//
//	m := engine.NewMachine(desc, mem)
//	call, err := engine.NewDowncall(m, seq, addr)
//	result, err := call.Call(int32(2), int32(3))
//
// Build a va_list for a foreign variadic callee:
//
//	scope := memory.NewScope()
//	defer scope.Close()
//
//	b := valist.NewBuilder(desc, scope)
//	b.AddInt(layout.Int32, 42)
//	b.AddDouble(layout.Double, 3.14)
//	vl, err := b.Build(arena)
//
// # Thread Safety
//
// Descriptors and calling sequences are immutable and safe for concurrent
// use. VaList, Builder, Machine, and Scope instances hold mutable cursors and
// are confined to a single goroutine, matching the calling convention's own
// single-threaded-per-call-frame assumption.
//
// # Memory Model
//
// All foreign memory is owned by an explicit Scope and released exactly once
// when the scope closes. Operations on scope-owned resources after close fail
// with a lifecycle error rather than returning stale data.
package nativeabi
