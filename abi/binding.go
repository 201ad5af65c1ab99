package abi

import (
	"fmt"
	"strings"

	"github.com/wippyai/native-abi/layout"
)

// BindingOp tags one step of a binding program.
type BindingOp uint8

const (
	// OpMove transfers Width bytes between Src and Dst. Offset is the
	// byte offset into the logical value when it spans several
	// physical locations.
	OpMove BindingOp = iota
	// OpConvert normalizes the argument to Width bytes using Kind's
	// extension rule (sign-extend, zero-extend, or float widen).
	OpConvert
	// OpBoxAddress wraps raw bits as an address value.
	OpBoxAddress
	// OpUnboxAddress strips an address value to raw bits.
	OpUnboxAddress
	// OpAllocStack allocates a caller-owned Size/Align temporary,
	// copies the argument's bytes into it, and replaces the argument
	// value with the temporary's address. For the synthesized return
	// argument there is nothing to copy; the temporary starts zeroed.
	OpAllocStack
	// OpDeref resolves a pointed-to value of Size bytes: downcalls
	// read the result out of the hidden buffer (or copy-construct an
	// indirect argument), upcalls write result bytes into the buffer
	// the native caller supplied.
	OpDeref
)

var opNames = [...]string{
	OpMove:         "move",
	OpConvert:      "convert",
	OpBoxAddress:   "box-address",
	OpUnboxAddress: "unbox-address",
	OpAllocStack:   "alloc-stack",
	OpDeref:        "deref",
}

func (op BindingOp) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "unknown"
}

// Binding is one step of a calling-sequence program. The fields a step
// uses depend on its op; unused fields are zero. Bindings are pure
// data: a program can be replayed any number of times.
type Binding struct {
	Op     BindingOp
	Src    Storage
	Dst    Storage
	Offset uint64
	Width  uint64
	Kind   layout.ScalarKind
	Size   uint64
	Align  uint64
}

func (b Binding) String() string {
	switch b.Op {
	case OpMove:
		var sb strings.Builder
		sb.WriteString("move ")
		sb.WriteString(b.Src.String())
		if b.Offset > 0 && b.Src.Class == ClassValue {
			fmt.Fprintf(&sb, "+%d", b.Offset)
		}
		sb.WriteString(" -> ")
		sb.WriteString(b.Dst.String())
		if b.Offset > 0 && b.Dst.Class == ClassValue {
			fmt.Fprintf(&sb, "+%d", b.Offset)
		}
		fmt.Fprintf(&sb, " (%dB)", b.Width)
		return sb.String()
	case OpConvert:
		rule := "zero-extend"
		switch b.Kind {
		case layout.KindSigned:
			rule = "sign-extend"
		case layout.KindFloat:
			rule = "float-widen"
		}
		return fmt.Sprintf("convert %s -> %dB", rule, b.Width)
	case OpAllocStack:
		return fmt.Sprintf("alloc-stack %dB align %d", b.Size, b.Align)
	case OpDeref:
		return fmt.Sprintf("deref %dB", b.Size)
	default:
		return b.Op.String()
	}
}
