package valist

import (
	"math"
	"testing"

	"github.com/wippyai/native-abi/abi"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
	"github.com/wippyai/native-abi/memory"
)

func TestBuilderHeaderLayout(t *testing.T) {
	scope, arena := testEnv(t)
	desc := abi.AMD64SysV

	lst, err := NewBuilder(desc, scope).
		AddInt(layout.Int32, 7).
		AddDouble(layout.Double, 2.5).
		Build(arena)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	base := lst.Address()

	gp, fp, overflow := readHeader(t, arena, lst)
	if gp != 0 {
		t.Errorf("gpOffset = %d, want 0", gp)
	}
	if fp != 48 {
		t.Errorf("fpOffset = %d, want 48 (GP area size)", fp)
	}

	regSave, err := arena.ReadU64(base + hdrRegSavePtr)
	if err != nil {
		t.Fatalf("regSavePtr read error: %v", err)
	}
	if regSave != uint64(base)+32 {
		t.Errorf("regSavePtr = %#x, want header+32 = %#x", regSave, uint64(base)+32)
	}
	if overflow != uint64(base)+208 {
		t.Errorf("overflowPtr = %#x, want header+208 = %#x", overflow, uint64(base)+208)
	}

	// First GP slot holds the int, first FP slot (offset 48, 16-byte
	// slots) holds the double's bits.
	if v, _ := arena.ReadU64(base + 32); v != 7 {
		t.Errorf("GP slot 0 = %d, want 7", v)
	}
	if v, _ := arena.ReadU64(base + 32 + 48); v != math.Float64bits(2.5) {
		t.Errorf("FP slot 0 = %#x, want bits(2.5)", v)
	}
}

func TestBuilderValidation(t *testing.T) {
	desc := abi.AMD64SysV

	t.Run("int_from_float_layout", func(t *testing.T) {
		scope, _ := testEnv(t)
		b := NewBuilder(desc, scope).AddInt(layout.Double, 1)
		if err := b.Err(); err == nil {
			t.Fatal("AddInt(double layout) should record a failure")
		} else if e, ok := err.(*errors.Error); !ok || e.Kind != errors.KindTypeMismatch {
			t.Errorf("Err() = %v, want type-mismatch error", err)
		}
	})

	t.Run("int_too_wide", func(t *testing.T) {
		scope, _ := testEnv(t)
		if err := NewBuilder(desc, scope).AddInt(layout.Int64, 1).Err(); err == nil {
			t.Error("AddInt(i64) should record a failure")
		}
	})

	t.Run("double_unpromoted", func(t *testing.T) {
		scope, _ := testEnv(t)
		if err := NewBuilder(desc, scope).AddDouble(layout.Float, 1).Err(); err == nil {
			t.Error("AddDouble(f32) should record a failure")
		}
	})

	t.Run("group_absent_value", func(t *testing.T) {
		scope, _ := testEnv(t)
		err := NewBuilder(desc, scope).AddGroup(layout.NewGroup(layout.Int32), memory.Segment{}).Err()
		if err == nil {
			t.Fatal("AddGroup(zero segment) should record a failure")
		}
		if e, ok := err.(*errors.Error); !ok || e.Kind != errors.KindInvalidInput {
			t.Errorf("Err() = %v, want invalid-input error", err)
		}
	})

	t.Run("group_undersized_segment", func(t *testing.T) {
		scope, arena := testEnv(t)
		seg := groupSegment(t, scope, arena, 8, 8)
		err := NewBuilder(desc, scope).AddGroup(layout.NewGroup(layout.Int64, layout.Int64), seg).Err()
		if err == nil {
			t.Fatal("AddGroup(undersized segment) should record a failure")
		}
		if e, ok := err.(*errors.Error); !ok || e.Kind != errors.KindTypeMismatch {
			t.Errorf("Err() = %v, want type-mismatch error", err)
		}
	})

	t.Run("group_invalid_layout", func(t *testing.T) {
		scope, arena := testEnv(t)
		seg := groupSegment(t, scope, arena, 8, 8)
		err := NewBuilder(desc, scope).AddGroup(layout.NewGroup(), seg).Err()
		if err == nil {
			t.Fatal("AddGroup(empty group) should record a failure")
		}
		if e, ok := err.(*errors.Error); !ok || e.Kind != errors.KindInvalidLayout {
			t.Errorf("Err() = %v, want invalid-layout error", err)
		}
	})

	t.Run("error_sticks", func(t *testing.T) {
		scope, arena := testEnv(t)
		b := NewBuilder(desc, scope).
			AddInt(layout.Double, 1).
			AddInt(layout.Int32, 2).
			AddDouble(layout.Double, 3)
		first := b.Err()
		if first == nil {
			t.Fatal("expected a recorded failure")
		}
		if _, err := b.Build(arena); err != first {
			t.Errorf("Build() = %v, want the first recorded failure", err)
		}
	})

	t.Run("nil_descriptor", func(t *testing.T) {
		scope, arena := testEnv(t)
		_, err := NewBuilder(nil, scope).AddInt(layout.Int32, 1).Build(arena)
		if err == nil {
			t.Fatal("Build() with nil descriptor should fail")
		}
		if e, ok := err.(*errors.Error); !ok || e.Kind != errors.KindInvalidInput {
			t.Errorf("error = %v, want invalid-input error", err)
		}
	})

	t.Run("nil_scope", func(t *testing.T) {
		_, arena := testEnv(t)
		if _, err := NewBuilder(desc, nil).Build(arena); err == nil {
			t.Error("Build() with nil scope should fail")
		}
	})
}

func TestBuilderLifecycle(t *testing.T) {
	desc := abi.AMD64SysV

	t.Run("add_after_close", func(t *testing.T) {
		scope := memory.NewScope()
		b := NewBuilder(desc, scope)
		if err := scope.Close(); err != nil {
			t.Fatalf("Close() error: %v", err)
		}
		err := b.AddInt(layout.Int32, 1).Err()
		if err == nil {
			t.Fatal("AddInt() after scope close should record a failure")
		}
		if e, ok := err.(*errors.Error); !ok || e.Kind != errors.KindLifecycle {
			t.Errorf("Err() = %v, want lifecycle error", err)
		}
	})

	t.Run("build_after_close", func(t *testing.T) {
		scope := memory.NewScope()
		arena := memory.NewArena(4096)
		b := NewBuilder(desc, scope).AddInt(layout.Int32, 1)
		if err := scope.Close(); err != nil {
			t.Fatalf("Close() error: %v", err)
		}
		_, err := b.Build(arena)
		if err == nil {
			t.Fatal("Build() after scope close should fail")
		}
		if e, ok := err.(*errors.Error); !ok || e.Kind != errors.KindLifecycle {
			t.Errorf("error = %v, want lifecycle error", err)
		}
	})
}

func TestBuilderAllocation(t *testing.T) {
	desc := abi.AMD64SysV

	t.Run("nil_allocator", func(t *testing.T) {
		scope, _ := testEnv(t)
		_, err := NewBuilder(desc, scope).AddInt(layout.Int32, 1).Build(nil)
		if err == nil {
			t.Fatal("Build(nil) with recorded args should fail")
		}
		if e, ok := err.(*errors.Error); !ok || e.Kind != errors.KindAllocatorRequired {
			t.Errorf("error = %v, want allocator-required error", err)
		}
	})

	t.Run("allocator_exhausted", func(t *testing.T) {
		scope, _ := testEnv(t)
		tiny := memory.NewArena(64)
		_, err := NewBuilder(desc, scope).AddInt(layout.Int32, 1).Build(tiny)
		if err == nil {
			t.Fatal("Build() into an exhausted arena should fail")
		}
		if e, ok := err.(*errors.Error); !ok || e.Kind != errors.KindAllocation {
			t.Errorf("error = %v, want allocation error", err)
		}
	})
}

func TestBuilderSignedNarrowing(t *testing.T) {
	scope, arena := testEnv(t)
	desc := abi.AMD64SysV

	lst, err := NewBuilder(desc, scope).
		AddInt(layout.Int8, -1).
		AddInt(layout.Int16, -2).
		AddInt(layout.UInt16, 0xffff).
		AddLong(layout.Int32, -3).
		Build(arena)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if v, _ := lst.NextInt(layout.Int8); v != -1 {
		t.Errorf("NextInt(i8) = %d, want -1", v)
	}
	if v, _ := lst.NextInt(layout.Int16); v != -2 {
		t.Errorf("NextInt(i16) = %d, want -2", v)
	}
	if v, _ := lst.NextInt(layout.UInt16); v != 0xffff {
		t.Errorf("NextInt(u16) = %d, want 65535", v)
	}
	if v, _ := lst.NextLong(layout.Int32); v != -3 {
		t.Errorf("NextLong(i32) = %d, want -3", v)
	}
}
