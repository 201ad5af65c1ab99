// Package engine executes calling sequences against an emulated
// native machine.
//
// The arranger in package abi decides where every argument travels;
// this package is the moving side. It hosts Go routines behind native
// entry-point addresses, drives downcalls into them, and exposes Go
// callbacks to native code as upcall stubs.
//
// # Architecture
//
// The engine package provides three main types:
//
//	Machine    - Emulated register files, stack window and routine table
//	Downcall   - Reusable handle replaying one downcall sequence
//	UpcallFunc - Go callback installed behind a native address
//
// # Call Flow
//
//  1. abi.Arrange() builds the calling sequence for a signature
//  2. Machine.RegisterNative() binds a routine to an address
//  3. NewDowncall() ties a sequence to that address
//  4. Downcall.Call() runs the binding program, transfers control,
//     and replays the return program
//
// Upcalls mirror the flow: NewUpcallStub() installs a callback and
// native code reaches it with Machine.Invoke on the stub address.
//
// # Value Carriers
//
// Logical values cross the boundary as fixed Go carriers:
//
//	Layout            Carrier
//	─────────────────────────────────
//	i8..i64           int8..int64
//	u8..u64           uint8..uint64
//	i128/u128         [2]uint64
//	f32, f64          float32, float64
//	ptr               nativeabi.Address
//	groups, arrays    memory.Segment
//
// Aggregate results need a destination scope; use Downcall.CallIn.
// Aggregate arguments materialized for an upcall are valid only for
// the duration of the callback, matching the lifetime of stack-passed
// data in a real call.
//
// # Thread Safety
//
// The routine table is safe for concurrent registration and release.
// Register state and the stack window model one hardware thread: run
// one call chain at a time per Machine.
package engine
