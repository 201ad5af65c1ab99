package engine

import (
	"fmt"
	"strconv"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/abi"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/memory"
	"go.uber.org/zap"
)

// UpcallFunc is the runtime-side target of an upcall stub. Arguments
// arrive with the same carriers Downcall.Call accepts; the result
// must match the return layout's carrier. Aggregate arguments are
// valid only for the duration of the callback.
type UpcallFunc func(args []any) (any, error)

// NewUpcallStub installs fn as a callable routine and returns its
// address for handing to native code. The stub lives until scope
// closes; it is released exactly once, and calling a released stub
// fails with a lifecycle error.
func NewUpcallStub(m *Machine, seq *abi.CallingSequence, fn UpcallFunc, scope *memory.Scope) (nativeabi.Address, error) {
	if m == nil || seq == nil {
		return 0, errors.InvalidInput(errors.PhaseInvoke, "nil machine or sequence")
	}
	if fn == nil {
		return 0, errors.InvalidInput(errors.PhaseInvoke, "nil upcall target")
	}
	if seq.Direction != abi.Upcall {
		return 0, errors.InvalidInput(errors.PhaseInvoke, "sequence was arranged for downcalls")
	}
	if seq.Desc.Name != m.desc.Name {
		return 0, errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
			Detail("sequence descriptor %s does not match machine descriptor %s",
				seq.Desc.Name, m.desc.Name).Build()
	}
	if scope == nil {
		return 0, errors.InvalidInput(errors.PhaseInvoke, "nil stub scope")
	}
	if !scope.IsAlive() {
		return 0, errors.Lifecycle(errors.PhaseInvoke, "stub scope is closed")
	}

	addr := m.install("upcall:"+seq.Fn.String(), upcallStub(seq, fn))
	if err := scope.Defer(func() {
		if err := m.release(addr); err != nil {
			Logger().Warn("upcall stub release failed",
				zap.String("addr", fmt.Sprintf("%#x", uint64(addr))),
				zap.Error(err))
		}
	}); err != nil {
		// scope closed between the liveness check and registration
		_ = m.release(addr)
		return 0, err
	}
	return addr, nil
}

// upcallStub builds the dispatching routine: materialize arguments
// from the machine per the binding programs, run the callback, write
// the result back.
func upcallStub(seq *abi.CallingSequence, fn UpcallFunc) NativeFunc {
	return func(m *Machine) error {
		frameScope := memory.NewScope()
		defer frameScope.Close()
		f := &frame{m: m, scope: frameScope}

		var retBuf nativeabi.Address
		args := make([]any, 0, seq.NumDeclaredArgs())
		for _, a := range seq.Args {
			pos := []string{"ret"}
			if !a.Synthetic {
				pos = []string{"args", strconv.Itoa(len(args))}
			}
			v, err := f.loadValue(a.Layout, a.Program, frameScope, nil, pos)
			if err != nil {
				return err
			}
			if a.Synthetic {
				retBuf = v.(nativeabi.Address)
				continue
			}
			args = append(args, v)
		}

		result, err := fn(args)
		if err != nil {
			return err
		}

		ret := seq.Fn.Return()
		if ret == nil {
			return nil
		}
		if seq.HiddenReturn {
			seg, ok := result.(memory.Segment)
			if !ok {
				return errors.TypeMismatch(errors.PhaseInvoke, []string{"ret"},
					fmt.Sprintf("%T", result), ret.String())
			}
			size := seq.Return[0].Size
			data, err := seg.Bytes(0, size)
			if err != nil {
				return err
			}
			return m.mem.Write(retBuf, data)
		}
		return f.storeValue(ret, seq.Return, result, false, []string{"ret"})
	}
}
