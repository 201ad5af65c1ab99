// Package memory provides scoped native memory for the arranger and
// the variadic list engine.
//
// A Scope is an explicit lifetime: cleanups registered with Defer run
// in reverse order exactly once when the scope closes, and every
// accessor bound to the scope fails afterwards. The package-level
// GlobalScope never closes and backs canonical shared values.
//
// An Arena is a pure-Go backing store: bump allocation over a byte
// buffer, with a non-zero base address so that zero remains a null
// sentinel. A Segment is a bounds-checked, scope-bound typed view over
// any Memory.
//
//	scope := memory.NewScope()
//	defer scope.Close()
//	arena := memory.NewArena(64 * 1024)
//	seg, err := memory.AllocateIn(scope, arena, 24, 8)
//
// GuestMemory adapts a wazero linear memory to the same Memory
// capability, so register save areas and aggregate copies can live
// inside a sandboxed guest address space; GuestArena bump-allocates
// within a reserved guest region.
//
// Scope close is safe to race with accessor checks; everything else
// assumes the single-goroutine confinement native call frames already
// impose.
package memory
