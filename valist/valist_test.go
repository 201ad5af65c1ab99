package valist

import (
	"strings"
	"testing"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/abi"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
	"github.com/wippyai/native-abi/memory"
)

func testEnv(t *testing.T) (*memory.Scope, *memory.Arena) {
	t.Helper()
	scope := memory.NewScope()
	t.Cleanup(func() { scope.Close() })
	return scope, memory.NewArena(8192)
}

func groupSegment(t *testing.T, scope *memory.Scope, arena *memory.Arena, size, align uint64) memory.Segment {
	t.Helper()
	seg, err := memory.AllocateIn(scope, arena, size, align)
	if err != nil {
		t.Fatalf("AllocateIn() error: %v", err)
	}
	return seg
}

func readHeader(t *testing.T, arena *memory.Arena, lst *VaList) (gp, fp uint32, overflow uint64) {
	t.Helper()
	gp, err := arena.ReadU32(lst.Address() + hdrGPOffset)
	if err != nil {
		t.Fatalf("header gp read error: %v", err)
	}
	fp, err = arena.ReadU32(lst.Address() + hdrFPOffset)
	if err != nil {
		t.Fatalf("header fp read error: %v", err)
	}
	overflow, err = arena.ReadU64(lst.Address() + hdrOverflowPtr)
	if err != nil {
		t.Fatalf("header overflow read error: %v", err)
	}
	return gp, fp, overflow
}

func TestVaListRoundTrip(t *testing.T) {
	scope, arena := testEnv(t)
	desc := abi.AMD64SysV

	point := layout.NewGroup(layout.Int32, layout.Int32)
	vec := layout.NewGroup(layout.Double, layout.Double)
	big := layout.NewGroup(layout.Int64, layout.Int64, layout.Int64)

	pointSeg := groupSegment(t, scope, arena, 8, 4)
	pointSeg.PutU32(0, 3)
	pointSeg.PutU32(4, 4)
	vecSeg := groupSegment(t, scope, arena, 16, 8)
	vecSeg.PutF64(0, 1.5)
	vecSeg.PutF64(8, 2.5)
	bigSeg := groupSegment(t, scope, arena, 24, 8)
	bigSeg.PutU64(0, 11)
	bigSeg.PutU64(8, 22)
	bigSeg.PutU64(16, 33)

	lst, err := NewBuilder(desc, scope).
		AddInt(layout.Int32, -7).
		AddInt(layout.UInt8, 200).
		AddLong(layout.Int64, 1<<40).
		AddDouble(layout.Double, 3.25).
		AddAddress(0xdeadbeef).
		AddGroup(point, pointSeg).
		AddGroup(vec, vecSeg).
		AddGroup(big, bigSeg).
		Build(arena)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if got, err := lst.NextInt(layout.Int32); err != nil || got != -7 {
		t.Errorf("NextInt(i32) = %d, %v, want -7", got, err)
	}
	if got, err := lst.NextInt(layout.UInt8); err != nil || got != 200 {
		t.Errorf("NextInt(u8) = %d, %v, want 200", got, err)
	}
	if got, err := lst.NextLong(layout.Int64); err != nil || got != 1<<40 {
		t.Errorf("NextLong(i64) = %d, %v, want 1<<40", got, err)
	}
	if got, err := lst.NextDouble(layout.Double); err != nil || got != 3.25 {
		t.Errorf("NextDouble(f64) = %v, %v, want 3.25", got, err)
	}
	if got, err := lst.NextAddress(); err != nil || got != 0xdeadbeef {
		t.Errorf("NextAddress() = %#x, %v, want 0xdeadbeef", uint64(got), err)
	}

	gotPoint, err := lst.NextGroup(point, arena)
	if err != nil {
		t.Fatalf("NextGroup(point) error: %v", err)
	}
	if x, _ := gotPoint.U32(0); x != 3 {
		t.Errorf("point x = %d, want 3", x)
	}
	if y, _ := gotPoint.U32(4); y != 4 {
		t.Errorf("point y = %d, want 4", y)
	}

	gotVec, err := lst.NextGroup(vec, arena)
	if err != nil {
		t.Fatalf("NextGroup(vec) error: %v", err)
	}
	if a, _ := gotVec.F64(0); a != 1.5 {
		t.Errorf("vec[0] = %v, want 1.5", a)
	}
	if b, _ := gotVec.F64(8); b != 2.5 {
		t.Errorf("vec[1] = %v, want 2.5", b)
	}

	gotBig, err := lst.NextGroup(big, arena)
	if err != nil {
		t.Fatalf("NextGroup(big) error: %v", err)
	}
	for i, want := range []uint64{11, 22, 33} {
		if v, _ := gotBig.U64(uint64(i) * 8); v != want {
			t.Errorf("big[%d] = %d, want %d", i, v, want)
		}
	}

	gp, fp, _ := readHeader(t, arena, lst)
	if gp != 48 {
		t.Errorf("final gpOffset = %d, want 48", gp)
	}
	if fp != 96 {
		t.Errorf("final fpOffset = %d, want 96", fp)
	}
}

func TestVaListRegisterSpill(t *testing.T) {
	scope, arena := testEnv(t)
	desc := abi.AMD64SysV

	b := NewBuilder(desc, scope)
	for i := int32(1); i <= 7; i++ {
		b.AddInt(layout.Int32, i*10)
	}
	lst, err := b.Build(arena)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	_, _, ovBase := readHeader(t, arena, lst)

	for i := int32(1); i <= 6; i++ {
		got, err := lst.NextInt(layout.Int32)
		if err != nil || got != i*10 {
			t.Fatalf("NextInt() #%d = %d, %v, want %d", i, got, err, i*10)
		}
	}
	gp, _, ov := readHeader(t, arena, lst)
	if gp != 48 {
		t.Errorf("gpOffset after six reads = %d, want 48", gp)
	}
	if ov != ovBase {
		t.Errorf("overflow advanced before register exhaustion: %#x -> %#x", ovBase, ov)
	}

	got, err := lst.NextInt(layout.Int32)
	if err != nil || got != 70 {
		t.Fatalf("NextInt() #7 = %d, %v, want 70", got, err)
	}
	gp, _, ov = readHeader(t, arena, lst)
	if gp != 48 {
		t.Errorf("gpOffset moved on an overflow read: %d", gp)
	}
	if ov != ovBase+8 {
		t.Errorf("overflowPtr = %#x, want %#x", ov, ovBase+8)
	}
}

func TestVaListCursorIndependence(t *testing.T) {
	scope, arena := testEnv(t)
	desc := abi.AMD64SysV

	lst, err := NewBuilder(desc, scope).
		AddInt(layout.Int32, 1).
		AddDouble(layout.Double, 1.5).
		AddInt(layout.Int32, 2).
		AddDouble(layout.Double, 2.5).
		Build(arena)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	gp0, fp0, ov0 := readHeader(t, arena, lst)
	if gp0 != 0 || fp0 != 48 {
		t.Fatalf("fresh cursors = gp %d fp %d, want 0 and 48", gp0, fp0)
	}

	if _, err := lst.NextInt(layout.Int32); err != nil {
		t.Fatalf("NextInt() error: %v", err)
	}
	gp, fp, ov := readHeader(t, arena, lst)
	if gp != 8 {
		t.Errorf("gpOffset = %d, want 8", gp)
	}
	if fp != fp0 || ov != ov0 {
		t.Errorf("integer read moved another region's cursor (fp %d ov %#x)", fp, ov)
	}

	if _, err := lst.NextDouble(layout.Double); err != nil {
		t.Fatalf("NextDouble() error: %v", err)
	}
	gp, fp, ov = readHeader(t, arena, lst)
	if fp != 64 {
		t.Errorf("fpOffset = %d, want 64", fp)
	}
	if gp != 8 || ov != ov0 {
		t.Errorf("float read moved another region's cursor (gp %d ov %#x)", gp, ov)
	}
}

func TestVaListOverflowAlignment(t *testing.T) {
	scope, arena := testEnv(t)
	desc := abi.AMD64SysV

	g128 := layout.NewGroup(layout.Int128)
	gSeg := groupSegment(t, scope, arena, 16, 16)
	gSeg.PutU64(0, 0xaaaa)
	gSeg.PutU64(8, 0xbbbb)

	b := NewBuilder(desc, scope)
	for i := int32(0); i < 6; i++ {
		b.AddInt(layout.Int32, i)
	}
	lst, err := b.
		AddLong(layout.Int64, 0x42).
		AddGroup(g128, gSeg).
		AddLong(layout.Int64, 0x43).
		Build(arena)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	_, _, ovBase := readHeader(t, arena, lst)
	if ovBase%16 != 0 {
		t.Fatalf("overflow base %#x not 16-aligned", ovBase)
	}

	skips := make([]layout.Layout, 6)
	for i := range skips {
		skips[i] = layout.Int32
	}
	if err := lst.Skip(skips...); err != nil {
		t.Fatalf("Skip() error: %v", err)
	}

	if got, err := lst.NextLong(layout.Int64); err != nil || got != 0x42 {
		t.Fatalf("NextLong() = %#x, %v, want 0x42", got, err)
	}
	_, _, ov := readHeader(t, arena, lst)
	if ov != ovBase+8 {
		t.Errorf("overflowPtr = %#x, want %#x", ov, ovBase+8)
	}

	// The 16-aligned aggregate skips the 8-byte gap at ovBase+8.
	got, err := lst.NextGroup(g128, arena)
	if err != nil {
		t.Fatalf("NextGroup() error: %v", err)
	}
	if v, _ := got.U64(0); v != 0xaaaa {
		t.Errorf("g128[0] = %#x, want 0xaaaa", v)
	}
	if v, _ := got.U64(8); v != 0xbbbb {
		t.Errorf("g128[1] = %#x, want 0xbbbb", v)
	}
	_, _, ov = readHeader(t, arena, lst)
	if ov != ovBase+32 {
		t.Errorf("overflowPtr = %#x, want %#x", ov, ovBase+32)
	}

	if got, err := lst.NextLong(layout.Int64); err != nil || got != 0x43 {
		t.Fatalf("NextLong() = %#x, %v, want 0x43", got, err)
	}
	_, _, ov = readHeader(t, arena, lst)
	if ov != ovBase+40 {
		t.Errorf("overflowPtr = %#x, want %#x", ov, ovBase+40)
	}
}

func TestVaListIndirectCopySemantics(t *testing.T) {
	scope, arena := testEnv(t)
	desc := abi.AMD64SysV

	big := layout.NewGroup(layout.Int64, layout.Int64, layout.Int64)
	src := groupSegment(t, scope, arena, 24, 8)
	for i := uint64(0); i < 3; i++ {
		src.PutU64(i*8, 100+i)
	}

	lst, err := NewBuilder(desc, scope).AddGroup(big, src).Build(arena)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	// The GP slot carries a pointer to a copy, not the payload.
	regSave, err := arena.ReadU64(lst.Address() + hdrRegSavePtr)
	if err != nil {
		t.Fatalf("header regSave read error: %v", err)
	}
	ptr, err := arena.ReadU64(nativeabi.Address(regSave))
	if err != nil {
		t.Fatalf("slot read error: %v", err)
	}
	if ptr == uint64(src.Address()) {
		t.Fatal("slot points at the original segment, want a copy")
	}
	if v, _ := arena.ReadU64(nativeabi.Address(ptr)); v != 100 {
		t.Errorf("copy[0] = %d, want 100", v)
	}

	// Mutating the original after build must not reach the copy.
	src.PutU64(0, 999)

	got, err := lst.NextGroup(big, arena)
	if err != nil {
		t.Fatalf("NextGroup() error: %v", err)
	}
	for i := uint64(0); i < 3; i++ {
		if v, _ := got.U64(i * 8); v != 100+i {
			t.Errorf("copy[%d] = %d, want %d", i, v, 100+i)
		}
	}
}

func TestVaListDirectThreshold(t *testing.T) {
	scope, arena := testEnv(t)
	desc := abi.AMD64SysV

	atLimit := layout.NewGroup(layout.Int64, layout.Int64)
	cls, err := abi.ClassifyVariadic(desc, atLimit)
	if err != nil || cls.Indirect {
		t.Fatalf("16-byte aggregate classified %+v, %v, want direct", cls, err)
	}

	over := layout.NewGroup(layout.Int64, layout.Int64, layout.Int8)
	cls, err = abi.ClassifyVariadic(desc, over)
	if err != nil || !cls.Indirect {
		t.Fatalf("oversized aggregate classified %+v, %v, want indirect", cls, err)
	}

	seg := groupSegment(t, scope, arena, 16, 8)
	seg.PutU64(0, 7)
	seg.PutU64(8, 8)
	lst, err := NewBuilder(desc, scope).AddGroup(atLimit, seg).Build(arena)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	// Direct: the payload itself sits in the register save slots.
	regSave, _ := arena.ReadU64(lst.Address() + hdrRegSavePtr)
	if v, _ := arena.ReadU64(nativeabi.Address(regSave)); v != 7 {
		t.Errorf("slot 0 = %d, want inline payload 7", v)
	}
	if v, _ := arena.ReadU64(nativeabi.Address(regSave) + 8); v != 8 {
		t.Errorf("slot 1 = %d, want inline payload 8", v)
	}
}

func TestVaListPromotionPPC64(t *testing.T) {
	scope, arena := testEnv(t)
	desc := abi.PPC64ELFv2

	pair := layout.NewGroup(layout.Double, layout.Double)
	pairSeg := groupSegment(t, scope, arena, 16, 8)
	pairSeg.PutF64(0, 4.5)
	pairSeg.PutF64(8, 5.5)

	lst, err := NewBuilder(desc, scope).
		AddDouble(layout.Double, 2.5).
		AddInt(layout.Int32, 9).
		AddGroup(pair, pairSeg).
		Build(arena)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if got, err := lst.NextDouble(layout.Double); err != nil || got != 2.5 {
		t.Errorf("NextDouble() = %v, %v, want 2.5", got, err)
	}
	if got, err := lst.NextInt(layout.Int32); err != nil || got != 9 {
		t.Errorf("NextInt() = %d, %v, want 9", got, err)
	}
	got, err := lst.NextGroup(pair, arena)
	if err != nil {
		t.Fatalf("NextGroup() error: %v", err)
	}
	if a, _ := got.F64(0); a != 4.5 {
		t.Errorf("pair[0] = %v, want 4.5", a)
	}
	if b, _ := got.F64(8); b != 5.5 {
		t.Errorf("pair[1] = %v, want 5.5", b)
	}

	// Everything rode general-purpose slots; the FP cursor never moves.
	gp, fp, _ := readHeader(t, arena, lst)
	if gp != 32 {
		t.Errorf("gpOffset = %d, want 32", gp)
	}
	if fp != uint32(desc.Variadic.GPAreaSize()) {
		t.Errorf("fpOffset = %d, want %d", fp, desc.Variadic.GPAreaSize())
	}
}

func TestVaListPairParityPPC64(t *testing.T) {
	scope, arena := testEnv(t)
	desc := abi.PPC64ELFv2

	g128 := layout.NewGroup(layout.Int128)
	gSeg := groupSegment(t, scope, arena, 16, 16)
	gSeg.PutU64(0, 0x1111)
	gSeg.PutU64(8, 0x2222)

	lst, err := NewBuilder(desc, scope).
		AddInt(layout.Int32, 5).
		AddGroup(g128, gSeg).
		Build(arena)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if got, err := lst.NextInt(layout.Int32); err != nil || got != 5 {
		t.Errorf("NextInt() = %d, %v, want 5", got, err)
	}
	got, err := lst.NextGroup(g128, arena)
	if err != nil {
		t.Fatalf("NextGroup() error: %v", err)
	}
	if v, _ := got.U64(0); v != 0x1111 {
		t.Errorf("g128[0] = %#x, want 0x1111", v)
	}

	// The pair starts at an even slot: one slot skipped after the int.
	gp, _, _ := readHeader(t, arena, lst)
	if gp != 32 {
		t.Errorf("gpOffset = %d, want 32 (8 consumed + 8 parity skip + 16 pair)", gp)
	}
}

func TestVaListCopy(t *testing.T) {
	scope, arena := testEnv(t)
	desc := abi.AMD64SysV

	lst, err := NewBuilder(desc, scope).
		AddInt(layout.Int32, 10).
		AddInt(layout.Int32, 20).
		AddInt(layout.Int32, 30).
		Build(arena)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if _, err := lst.NextInt(layout.Int32); err != nil {
		t.Fatalf("NextInt() error: %v", err)
	}

	snap, err := lst.Copy(arena)
	if err != nil {
		t.Fatalf("Copy() error: %v", err)
	}
	if snap.Address() == lst.Address() {
		t.Fatal("Copy() shares the header, want an independent snapshot")
	}

	// Both continue from the checkpoint, independently.
	if got, _ := lst.NextInt(layout.Int32); got != 20 {
		t.Errorf("original second read = %d, want 20", got)
	}
	if got, _ := snap.NextInt(layout.Int32); got != 20 {
		t.Errorf("snapshot second read = %d, want 20", got)
	}
	if got, _ := lst.NextInt(layout.Int32); got != 30 {
		t.Errorf("original third read = %d, want 30", got)
	}
	if got, _ := snap.NextInt(layout.Int32); got != 30 {
		t.Errorf("snapshot third read = %d, want 30", got)
	}

	if _, err := lst.Copy(nil); err == nil {
		t.Error("Copy(nil) should fail")
	} else if e, ok := err.(*errors.Error); !ok || e.Kind != errors.KindAllocatorRequired {
		t.Errorf("Copy(nil) error = %v, want allocator-required error", err)
	}
}

func TestVaListFromAddress(t *testing.T) {
	scope, arena := testEnv(t)
	desc := abi.AMD64SysV

	built, err := NewBuilder(desc, scope).
		AddInt(layout.Int32, 41).
		AddDouble(layout.Double, 6.5).
		Build(arena)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	adopted, err := FromAddress(built.Address(), arena, desc, scope)
	if err != nil {
		t.Fatalf("FromAddress() error: %v", err)
	}
	if got, err := adopted.NextInt(layout.Int32); err != nil || got != 41 {
		t.Errorf("NextInt() = %d, %v, want 41", got, err)
	}
	if got, err := adopted.NextDouble(layout.Double); err != nil || got != 6.5 {
		t.Errorf("NextDouble() = %v, %v, want 6.5", got, err)
	}

	tests := []struct {
		name string
		call func() (*VaList, error)
	}{
		{"nil_memory", func() (*VaList, error) { return FromAddress(built.Address(), nil, desc, scope) }},
		{"nil_descriptor", func() (*VaList, error) { return FromAddress(built.Address(), arena, nil, scope) }},
		{"nil_scope", func() (*VaList, error) { return FromAddress(built.Address(), arena, desc, nil) }},
		{"null_address", func() (*VaList, error) { return FromAddress(0, arena, desc, scope) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.call()
			if err == nil {
				t.Fatal("FromAddress() should fail")
			}
			e, ok := err.(*errors.Error)
			if !ok || e.Kind != errors.KindInvalidInput {
				t.Errorf("error = %v, want invalid-input error", err)
			}
		})
	}
}

func TestVaListTypeMismatch(t *testing.T) {
	scope, arena := testEnv(t)
	desc := abi.AMD64SysV

	lst, err := NewBuilder(desc, scope).AddInt(layout.Int32, 1).Build(arena)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	tests := []struct {
		name string
		read func() error
	}{
		{"int_from_float", func() error { _, err := lst.NextInt(layout.Double); return err }},
		{"int_too_wide", func() error { _, err := lst.NextInt(layout.Int64); return err }},
		{"long_from_float", func() error { _, err := lst.NextLong(layout.Double); return err }},
		{"double_from_int", func() error { _, err := lst.NextDouble(layout.Int64); return err }},
		{"double_unpromoted", func() error { _, err := lst.NextDouble(layout.Float); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.read()
			if err == nil {
				t.Fatal("mismatched read should fail")
			}
			e, ok := err.(*errors.Error)
			if !ok || e.Kind != errors.KindTypeMismatch {
				t.Errorf("error = %v, want type-mismatch error", err)
			}
			gp, _, _ := readHeader(t, arena, lst)
			if gp != 0 {
				t.Errorf("rejected read advanced the cursor: gp = %d", gp)
			}
		})
	}

	if _, err := lst.NextGroup(layout.NewGroup(layout.Int32), nil); err == nil {
		t.Error("NextGroup(nil allocator) should fail")
	} else if e, ok := err.(*errors.Error); !ok || e.Kind != errors.KindAllocatorRequired {
		t.Errorf("error = %v, want allocator-required error", err)
	}

	if got, err := lst.NextInt(layout.Int32); err != nil || got != 1 {
		t.Errorf("NextInt() after rejected reads = %d, %v, want 1", got, err)
	}
}

func TestVaListState(t *testing.T) {
	scope, arena := testEnv(t)
	desc := abi.AMD64SysV

	b := NewBuilder(desc, scope)
	for i := int32(0); i < 6; i++ {
		b.AddInt(layout.Int32, i)
	}
	for i := 0; i < 8; i++ {
		b.AddDouble(layout.Double, float64(i))
	}
	lst, err := b.Build(arena)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if s := lst.State(); s != StateActive {
		t.Errorf("fresh State() = %v, want active", s)
	}

	var all []layout.Layout
	for i := 0; i < 6; i++ {
		all = append(all, layout.Int32)
	}
	for i := 0; i < 8; i++ {
		all = append(all, layout.Double)
	}
	if err := lst.Skip(all...); err != nil {
		t.Fatalf("Skip() error: %v", err)
	}
	if s := lst.State(); s != StateConsumedTail {
		t.Errorf("drained State() = %v, want consumed-tail", s)
	}
	if !strings.Contains(lst.String(), "consumed-tail") {
		t.Errorf("String() = %q", lst.String())
	}

	if err := scope.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if s := lst.State(); s != StateClosed {
		t.Errorf("closed State() = %v, want closed", s)
	}
}

func TestVaListLifecycle(t *testing.T) {
	scope := memory.NewScope()
	arena := memory.NewArena(4096)
	desc := abi.AMD64SysV

	lst, err := NewBuilder(desc, scope).AddInt(layout.Int32, 1).Build(arena)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if err := scope.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	wantLifecycle := func(t *testing.T, err error) {
		t.Helper()
		if err == nil {
			t.Fatal("operation on a closed scope should fail")
		}
		e, ok := err.(*errors.Error)
		if !ok || e.Kind != errors.KindLifecycle {
			t.Errorf("error = %v, want lifecycle error", err)
		}
	}

	_, err = lst.NextInt(layout.Int32)
	wantLifecycle(t, err)
	_, err = lst.NextDouble(layout.Double)
	wantLifecycle(t, err)
	_, err = lst.NextGroup(layout.NewGroup(layout.Int32), arena)
	wantLifecycle(t, err)
	wantLifecycle(t, lst.Skip(layout.Int32))
	_, err = lst.Copy(arena)
	wantLifecycle(t, err)
}

func TestVaListEmpty(t *testing.T) {
	scope, _ := testEnv(t)
	desc := abi.AMD64SysV

	lst, err := NewBuilder(desc, scope).Build(nil)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	again, err := NewBuilder(desc, scope).Build(nil)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if lst != Empty() || again != Empty() {
		t.Fatal("empty builds should return the canonical empty list")
	}

	if v, err := lst.NextInt(layout.Int32); err != nil || v != 0 {
		t.Errorf("empty NextInt() = %d, %v, want 0", v, err)
	}
	if v, err := lst.NextLong(layout.Int64); err != nil || v != 0 {
		t.Errorf("empty NextLong() = %d, %v, want 0", v, err)
	}
	if v, err := lst.NextDouble(layout.Double); err != nil || v != 0 {
		t.Errorf("empty NextDouble() = %v, %v, want 0", v, err)
	}
	if v, err := lst.NextAddress(); err != nil || v != 0 {
		t.Errorf("empty NextAddress() = %#x, %v, want 0", uint64(v), err)
	}
	if seg, err := lst.NextGroup(layout.NewGroup(layout.Int32), nil); err != nil || !seg.IsZero() {
		t.Errorf("empty NextGroup() = %v, %v, want zero segment", seg, err)
	}
	if err := lst.Skip(layout.Int32, layout.Double); err != nil {
		t.Errorf("empty Skip() error: %v", err)
	}
	if cp, err := lst.Copy(nil); err != nil || cp != lst {
		t.Errorf("empty Copy() = %v, %v, want the same instance", cp, err)
	}
	if lst.Address() != 0 {
		t.Errorf("empty Address() = %#x, want 0", uint64(lst.Address()))
	}
	if lst.State() != StateConsumedTail {
		t.Errorf("empty State() = %v, want consumed-tail", lst.State())
	}
	if lst.String() != "valist{empty}" {
		t.Errorf("empty String() = %q", lst.String())
	}
}

func BenchmarkBuildAndRead(b *testing.B) {
	desc := abi.AMD64SysV
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		scope := memory.NewScope()
		arena := memory.NewArena(1024)
		lst, err := NewBuilder(desc, scope).
			AddInt(layout.Int32, 1).
			AddDouble(layout.Double, 2.5).
			AddLong(layout.Int64, 3).
			Build(arena)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := lst.NextInt(layout.Int32); err != nil {
			b.Fatal(err)
		}
		if _, err := lst.NextDouble(layout.Double); err != nil {
			b.Fatal(err)
		}
		if _, err := lst.NextLong(layout.Int64); err != nil {
			b.Fatal(err)
		}
		scope.Close()
	}
}
