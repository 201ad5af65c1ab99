package engine

import (
	"fmt"
	"strconv"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/abi"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
	"github.com/wippyai/native-abi/memory"
)

// Downcall is a reusable handle for calling one native routine
// through its calling sequence. The handle itself is stateless; every
// Call builds a fresh frame.
type Downcall struct {
	m    *Machine
	seq  *abi.CallingSequence
	addr nativeabi.Address
}

// NewDowncall binds a downcall sequence to the routine at addr. The
// sequence must have been arranged for the machine's descriptor.
func NewDowncall(m *Machine, seq *abi.CallingSequence, addr nativeabi.Address) (*Downcall, error) {
	if m == nil || seq == nil {
		return nil, errors.InvalidInput(errors.PhaseInvoke, "nil machine or sequence")
	}
	if seq.Direction != abi.Downcall {
		return nil, errors.InvalidInput(errors.PhaseInvoke, "sequence was arranged for upcalls")
	}
	if seq.Desc.Name != m.desc.Name {
		return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
			Detail("sequence descriptor %s does not match machine descriptor %s",
				seq.Desc.Name, m.desc.Name).Build()
	}
	if !m.bound(addr) {
		return nil, errors.NotFound(errors.PhaseInvoke, "routine", fmt.Sprintf("%#x", uint64(addr)))
	}
	return &Downcall{m: m, seq: seq, addr: addr}, nil
}

// Sequence returns the calling sequence the handle replays.
func (d *Downcall) Sequence() *abi.CallingSequence { return d.seq }

// Target returns the bound routine address.
func (d *Downcall) Target() nativeabi.Address { return d.addr }

// Call invokes the routine. Carriers follow the layout of each
// declared argument: sized ints and uints, float32/float64, [2]uint64
// for 16-byte scalars, nativeabi.Address for pointers, and
// memory.Segment for aggregates. Signatures returning an aggregate
// need a scope for the result; use CallIn for those.
func (d *Downcall) Call(args ...any) (any, error) {
	if ret := d.seq.Fn.Return(); ret != nil && aggregateResult(ret) {
		return nil, errors.New(errors.PhaseInvoke, errors.KindAllocatorRequired).
			Path("ret").Layout(ret.String()).
			Detail("aggregate result needs a destination scope, use CallIn").Build()
	}
	frameScope := memory.NewScope()
	defer frameScope.Close()
	return d.call(frameScope, frameScope, args)
}

// CallIn invokes the routine and materializes an aggregate result in
// scope. Call temporaries still live only for the duration of the
// call.
func (d *Downcall) CallIn(scope *memory.Scope, args ...any) (any, error) {
	if scope == nil {
		return nil, errors.InvalidInput(errors.PhaseInvoke, "nil result scope")
	}
	if !scope.IsAlive() {
		return nil, errors.Lifecycle(errors.PhaseInvoke, "result scope is closed")
	}
	frameScope := memory.NewScope()
	defer frameScope.Close()
	return d.call(frameScope, scope, args)
}

func (d *Downcall) call(frameScope, resultScope *memory.Scope, args []any) (any, error) {
	seq := d.seq
	if len(args) != seq.NumDeclaredArgs() {
		return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
			Detail("argument count mismatch: got %d, want %d", len(args), seq.NumDeclaredArgs()).
			Build()
	}

	f := &frame{m: d.m, scope: frameScope}
	if seq.StackBytes > 0 {
		area, err := memory.AllocateIn(frameScope, d.m.mem, seq.StackBytes, seq.Desc.StackFrameAlign)
		if err != nil {
			return nil, err
		}
		f.outArgs = area
	}

	next := 0
	for _, a := range seq.Args {
		if a.Synthetic {
			if err := f.storeValue(a.Layout, a.Program, nil, true, []string{"ret"}); err != nil {
				return nil, err
			}
			continue
		}
		pos := []string{"args", strconv.Itoa(next)}
		if err := f.storeValue(a.Layout, a.Program, args[next], false, pos); err != nil {
			return nil, err
		}
		next++
	}

	if err := d.m.InvokeWithArgs(d.addr, f.outArgs); err != nil {
		return nil, err
	}

	ret := seq.Fn.Return()
	if ret == nil {
		return nil, nil
	}
	var seed []byte
	if seq.HiddenReturn {
		seed = leBytes(uint64(f.retBuf.Address()))
	}
	return f.loadValue(ret, seq.Return, resultScope, seed, []string{"ret"})
}

// aggregateResult reports whether a return layout materializes as a
// segment and therefore needs a caller scope.
func aggregateResult(l layout.Layout) bool {
	switch l.(type) {
	case layout.Scalar, layout.Pointer:
		return false
	}
	return true
}
