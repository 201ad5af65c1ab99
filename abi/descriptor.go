package abi

import (
	"runtime"
	"sync"

	"github.com/wippyai/native-abi/errors"
)

// FloatPromotion is the ABI's rule for variadic floating arguments.
// It is a required constant of each target ABI, taken from the
// platform's ABI supplement, never inferred.
type FloatPromotion uint8

const (
	// PromoteNone: variadic floats use the floating-point register file
	// until it is exhausted.
	PromoteNone FloatPromotion = iota
	// PromoteGP: variadic floats are carried in general-purpose slots;
	// the floating-point save area goes unused.
	PromoteGP
)

func (p FloatPromotion) String() string {
	if p == PromoteGP {
		return "gp"
	}
	return "none"
}

// VariadicLayout is the geometry of an ABI's va_list structure: the
// register save area slot counts and sizes, and the overflow region's
// granularity rules.
type VariadicLayout struct {
	GPSlots             int
	GPSlotSize          uint64
	FPSlots             int
	FPSlotSize          uint64
	OverflowGranularity uint64
	// OverflowOverAlign is applied to overflow values whose alignment
	// exceeds the granularity.
	OverflowOverAlign uint64
	Promotion         FloatPromotion
}

// GPAreaSize returns the byte size of the general-purpose save area.
func (v VariadicLayout) GPAreaSize() uint64 {
	return uint64(v.GPSlots) * v.GPSlotSize
}

// FPAreaSize returns the byte size of the floating-point save area.
func (v VariadicLayout) FPAreaSize() uint64 {
	return uint64(v.FPSlots) * v.FPSlotSize
}

// RegSaveSize returns the byte size of the whole register save area:
// GP slots followed by FP slots.
func (v VariadicLayout) RegSaveSize() uint64 {
	return v.GPAreaSize() + v.FPAreaSize()
}

// Descriptor is one target calling convention: register files, stack
// rules, aggregate thresholds, and variadic geometry. Descriptors are
// process-wide, constructed once, and never mutated.
type Descriptor struct {
	Name string
	Arch string

	// WordSize is the machine word in bytes.
	WordSize uint64

	// Argument registers in assignment order. Index fields address the
	// machine register files, which also cover the return registers.
	IntArgRegs   []Storage
	FloatArgRegs []Storage
	IntRetRegs   []Storage
	FloatRetRegs []Storage

	// Register file sizes for an emulated machine.
	IntFileSize   int
	FloatFileSize int

	// StackAlign is the stack slot granularity; StackFrameAlign the
	// outgoing-area alignment.
	StackAlign      uint64
	StackFrameAlign uint64

	// RealignOveraligned: stack arguments whose alignment exceeds the
	// word size realign to 2x word.
	RealignOveraligned bool

	// PairAlignEven: a register pair for a 16-byte-aligned value must
	// start at an even register index, skipping one if needed.
	PairAlignEven bool

	// DirectThreshold is the largest aggregate passed by value in
	// registers; larger aggregates go by pointer to a copy.
	DirectThreshold uint64

	// MaxStackArgBytes bounds the representable outgoing argument area.
	MaxStackArgBytes uint64

	StackGrowsDown bool

	Variadic VariadicLayout
}

// AMD64SysV is the System V AMD64 convention used by linux/amd64 and
// darwin/amd64. Integer register file: rax rdi rsi rdx rcx r8 r9;
// floating file: xmm0-xmm7.
var AMD64SysV = &Descriptor{
	Name:     "amd64-sysv",
	Arch:     "amd64",
	WordSize: 8,
	IntArgRegs: []Storage{
		IntReg(1, "rdi"), IntReg(2, "rsi"), IntReg(3, "rdx"),
		IntReg(4, "rcx"), IntReg(5, "r8"), IntReg(6, "r9"),
	},
	FloatArgRegs: []Storage{
		FloatReg(0, "xmm0"), FloatReg(1, "xmm1"), FloatReg(2, "xmm2"),
		FloatReg(3, "xmm3"), FloatReg(4, "xmm4"), FloatReg(5, "xmm5"),
		FloatReg(6, "xmm6"), FloatReg(7, "xmm7"),
	},
	IntRetRegs:         []Storage{IntReg(0, "rax"), IntReg(3, "rdx")},
	FloatRetRegs:       []Storage{FloatReg(0, "xmm0"), FloatReg(1, "xmm1")},
	IntFileSize:        7,
	FloatFileSize:      8,
	StackAlign:         8,
	StackFrameAlign:    16,
	RealignOveraligned: true,
	PairAlignEven:      false,
	DirectThreshold:    16,
	MaxStackArgBytes:   1 << 15,
	StackGrowsDown:     true,
	Variadic: VariadicLayout{
		GPSlots:             6,
		GPSlotSize:          8,
		FPSlots:             8,
		FPSlotSize:          16,
		OverflowGranularity: 8,
		OverflowOverAlign:   16,
		Promotion:           PromoteNone,
	},
}

// PPC64ELFv2 is the OpenPOWER ELF v2 convention used by linux/ppc64le.
// Integer register file: r3-r10; floating file: f1-f13. The ELF v2
// supplement routes variadic floats through general-purpose slots.
var PPC64ELFv2 = &Descriptor{
	Name:     "ppc64-elfv2",
	Arch:     "ppc64le",
	WordSize: 8,
	IntArgRegs: []Storage{
		IntReg(0, "r3"), IntReg(1, "r4"), IntReg(2, "r5"), IntReg(3, "r6"),
		IntReg(4, "r7"), IntReg(5, "r8"), IntReg(6, "r9"), IntReg(7, "r10"),
	},
	FloatArgRegs: []Storage{
		FloatReg(0, "f1"), FloatReg(1, "f2"), FloatReg(2, "f3"),
		FloatReg(3, "f4"), FloatReg(4, "f5"), FloatReg(5, "f6"),
		FloatReg(6, "f7"), FloatReg(7, "f8"), FloatReg(8, "f9"),
		FloatReg(9, "f10"), FloatReg(10, "f11"), FloatReg(11, "f12"),
		FloatReg(12, "f13"),
	},
	IntRetRegs:         []Storage{IntReg(0, "r3"), IntReg(1, "r4")},
	FloatRetRegs:       []Storage{FloatReg(0, "f1"), FloatReg(1, "f2")},
	IntFileSize:        8,
	FloatFileSize:      13,
	StackAlign:         8,
	StackFrameAlign:    16,
	RealignOveraligned: true,
	PairAlignEven:      true,
	DirectThreshold:    16,
	MaxStackArgBytes:   1 << 15,
	StackGrowsDown:     true,
	Variadic: VariadicLayout{
		GPSlots:             8,
		GPSlotSize:          8,
		FPSlots:             0,
		FPSlotSize:          16,
		OverflowGranularity: 8,
		OverflowOverAlign:   16,
		Promotion:           PromoteGP,
	},
}

var descriptors = map[string]*Descriptor{
	"amd64/linux":   AMD64SysV,
	"amd64/darwin":  AMD64SysV,
	"ppc64le/linux": PPC64ELFv2,
}

// Lookup returns the descriptor for an (architecture, OS) pair.
func Lookup(arch, os string) (*Descriptor, error) {
	d, ok := descriptors[arch+"/"+os]
	if !ok {
		return nil, errors.NotFound(errors.PhaseArrange, "abi descriptor", arch+"/"+os)
	}
	return d, nil
}

var (
	hostOnce sync.Once
	hostDesc *Descriptor
	hostErr  error
)

// Host returns the descriptor for the current platform, selected once
// per process.
func Host() (*Descriptor, error) {
	hostOnce.Do(func() {
		hostDesc, hostErr = Lookup(runtime.GOARCH, runtime.GOOS)
	})
	return hostDesc, hostErr
}
