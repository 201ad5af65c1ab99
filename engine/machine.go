package engine

import (
	"fmt"
	"sync"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/abi"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/memory"
)

// codeBase is the first address handed out for native routines and
// upcall stubs. It sits above any 32-bit data address so routine
// addresses never collide with arena or guest memory.
const codeBase nativeabi.Address = 1 << 32

// codeStride spaces routine addresses like real entry points.
const codeStride = 16

// NativeFunc is a routine callable through the machine. It receives
// the machine to read argument registers and the incoming stack area,
// access memory, and write return registers.
type NativeFunc func(m *Machine) error

type routine struct {
	name     string
	fn       NativeFunc
	released bool
}

// Machine emulates the callee side of a platform calling convention:
// an integer and a floating-point register file sized per the
// descriptor, a window onto the caller's outgoing stack arguments,
// and a table of callable routines addressed like code.
//
// The routine table is safe for concurrent registration and release.
// The register files and the stack window model a single hardware
// thread: run one call chain at a time.
type Machine struct {
	desc *abi.Descriptor
	mem  nativeabi.MemoryAllocator

	ints   []uint64
	floats []uint64

	argBase nativeabi.Address
	argLen  uint64

	mu       sync.RWMutex
	routines map[nativeabi.Address]*routine
	symbols  map[string]nativeabi.Address
	nextCode nativeabi.Address
}

// NewMachine creates a machine for desc backed by mem. All argument
// temporaries, stack areas and materialized results are allocated
// from mem.
func NewMachine(desc *abi.Descriptor, mem nativeabi.MemoryAllocator) *Machine {
	return &Machine{
		desc:     desc,
		mem:      mem,
		ints:     make([]uint64, desc.IntFileSize),
		floats:   make([]uint64, desc.FloatFileSize),
		routines: make(map[nativeabi.Address]*routine),
		symbols:  make(map[string]nativeabi.Address),
		nextCode: codeBase,
	}
}

// Descriptor returns the calling convention the machine emulates.
func (m *Machine) Descriptor() *abi.Descriptor { return m.desc }

// Memory returns the machine's backing memory and allocator.
func (m *Machine) Memory() nativeabi.MemoryAllocator { return m.mem }

// IntReg returns the raw value of integer register i.
func (m *Machine) IntReg(i int) uint64 { return m.ints[i] }

// SetIntReg sets integer register i.
func (m *Machine) SetIntReg(i int, v uint64) { m.ints[i] = v }

// FloatReg returns the raw bits of float register i.
func (m *Machine) FloatReg(i int) uint64 { return m.floats[i] }

// SetFloatReg sets the raw bits of float register i.
func (m *Machine) SetFloatReg(i int, bits uint64) { m.floats[i] = bits }

// ArgInt reads the i-th integer argument register as laid out by the
// descriptor.
func (m *Machine) ArgInt(i int) uint64 {
	return m.ints[m.desc.IntArgRegs[i].Index]
}

// ArgFloat reads the i-th float argument register as a float64.
func (m *Machine) ArgFloat(i int) float64 {
	return f64FromBits(m.floats[m.desc.FloatArgRegs[i].Index])
}

// SetRetInt writes the i-th integer return register.
func (m *Machine) SetRetInt(i int, v uint64) {
	m.ints[m.desc.IntRetRegs[i].Index] = v
}

// RetInt reads the i-th integer return register.
func (m *Machine) RetInt(i int) uint64 {
	return m.ints[m.desc.IntRetRegs[i].Index]
}

// SetRetFloat writes the i-th float return register.
func (m *Machine) SetRetFloat(i int, v float64) {
	m.floats[m.desc.FloatRetRegs[i].Index] = f64ToBits(v)
}

// RetFloat reads the i-th float return register.
func (m *Machine) RetFloat(i int) float64 {
	return f64FromBits(m.floats[m.desc.FloatRetRegs[i].Index])
}

// StackArg reads one word of the incoming stack argument area at the
// given byte offset. Valid only while a call with a stack area is in
// flight.
func (m *Machine) StackArg(off uint64) (uint64, error) {
	b, err := m.stackArgBytes(off, 8)
	if err != nil {
		return 0, err
	}
	return leU64(b), nil
}

func (m *Machine) stackArgBytes(off, width uint64) ([]byte, error) {
	if off > m.argLen || m.argLen-off < width {
		return nil, errors.OutOfBounds(errors.PhaseInvoke, []string{"stack"}, off, m.argLen)
	}
	return m.mem.Read(m.argBase+nativeabi.Address(off), width)
}

// RegisterNative installs fn under name and returns its address.
// Names are unique per machine.
func (m *Machine) RegisterNative(name string, fn NativeFunc) (nativeabi.Address, error) {
	if fn == nil {
		return 0, errors.InvalidInput(errors.PhaseInvoke, "nil native function")
	}
	if name == "" {
		return 0, errors.InvalidInput(errors.PhaseInvoke, "empty routine name")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.symbols[name]; ok {
		return 0, errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
			Detail("routine %q already registered", name).Build()
	}
	addr := m.bind(name, fn)
	m.symbols[name] = addr
	return addr, nil
}

// Symbol resolves a registered routine name to its address.
func (m *Machine) Symbol(name string) (nativeabi.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	addr, ok := m.symbols[name]
	if !ok {
		return 0, errors.NotFound(errors.PhaseInvoke, "routine", name)
	}
	return addr, nil
}

// install adds an anonymous releasable routine (an upcall stub).
func (m *Machine) install(name string, fn NativeFunc) nativeabi.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bind(name, fn)
}

// bind must run under mu.
func (m *Machine) bind(name string, fn NativeFunc) nativeabi.Address {
	addr := m.nextCode
	m.nextCode += codeStride
	m.routines[addr] = &routine{name: name, fn: fn}
	return addr
}

// release retires the routine at addr. The address stays bound as a
// tombstone so later calls fail with a lifecycle error instead of
// reaching a recycled slot.
func (m *Machine) release(addr nativeabi.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routines[addr]
	if !ok {
		return errors.NotFound(errors.PhaseInvoke, "routine", fmt.Sprintf("%#x", uint64(addr)))
	}
	if r.released {
		return errors.Lifecycle(errors.PhaseInvoke,
			fmt.Sprintf("routine at %#x already released", uint64(addr)))
	}
	r.released = true
	r.fn = nil
	return nil
}

// bound reports whether addr names a routine, released or not.
func (m *Machine) bound(addr nativeabi.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.routines[addr]
	return ok
}

// Invoke transfers control to the routine at addr with the current
// register state. The incoming stack window is left as-is; use
// InvokeWithArgs when the callee takes stack arguments.
func (m *Machine) Invoke(addr nativeabi.Address) error {
	m.mu.RLock()
	r, ok := m.routines[addr]
	var name string
	var fn NativeFunc
	var released bool
	if ok {
		name, fn, released = r.name, r.fn, r.released
	}
	m.mu.RUnlock()

	if !ok {
		return errors.NotFound(errors.PhaseInvoke, "routine", fmt.Sprintf("%#x", uint64(addr)))
	}
	if released {
		return errors.Lifecycle(errors.PhaseInvoke,
			fmt.Sprintf("routine at %#x was released", uint64(addr)))
	}
	debugf("invoke %#x %s", uint64(addr), name)
	return fn(m)
}

// InvokeWithArgs points the incoming stack argument window at area for
// the duration of the call, restoring the previous window after. A
// zero area clears the window.
func (m *Machine) InvokeWithArgs(addr nativeabi.Address, area memory.Segment) error {
	prevBase, prevLen := m.argBase, m.argLen
	if area.IsZero() {
		m.argBase, m.argLen = 0, 0
	} else {
		m.argBase, m.argLen = area.Address(), area.Size()
	}
	err := m.Invoke(addr)
	m.argBase, m.argLen = prevBase, prevLen
	return err
}
