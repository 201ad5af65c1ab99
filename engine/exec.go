package engine

import (
	"encoding/binary"
	"fmt"
	"math"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/abi"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
	"github.com/wippyai/native-abi/memory"
)

// frame is the transient state of one call: the outgoing stack area,
// the scope owning call temporaries, and the hidden return buffer when
// the sequence has one.
//
// Binding programs run against a frame. Each program transfers one
// logical value between its Go carrier and the machine's registers
// and stack slots; the value travels as little-endian raw bytes
// between steps.
type frame struct {
	m       *Machine
	scope   *memory.Scope
	outArgs memory.Segment
	retBuf  memory.Segment
}

// storeValue runs prog in the value-to-physical direction: downcall
// arguments and upcall returns. v is the Go carrier, nil for the
// synthetic return pointer.
func (f *frame) storeValue(l layout.Layout, prog []abi.Binding, v any, synthetic bool, pos []string) error {
	var raw []byte
	if !synthetic {
		var err error
		raw, err = carrierBytes(l, v, pos)
		if err != nil {
			return err
		}
	}

	for _, b := range prog {
		switch b.Op {
		case abi.OpConvert:
			raw = convertRaw(raw, b.Kind, b.Width)

		case abi.OpUnboxAddress:
			// carrierBytes already rendered the address; reject
			// anything that is not one
			if _, ok := v.(nativeabi.Address); !ok {
				return errors.TypeMismatch(errors.PhaseInvoke, pos, fmt.Sprintf("%T", v), l.String())
			}

		case abi.OpAllocStack:
			seg, err := memory.AllocateIn(f.scope, f.m.mem, b.Size, b.Align)
			if err != nil {
				return err
			}
			if raw == nil {
				raw = make([]byte, b.Size)
			}
			if err := seg.PutBytes(0, raw[:b.Size]); err != nil {
				return err
			}
			if synthetic {
				f.retBuf = seg
			}
			raw = leBytes(uint64(seg.Address()))

		case abi.OpMove:
			if b.Offset+b.Width > uint64(len(raw)) {
				return errors.OutOfBounds(errors.PhaseInvoke, pos, b.Offset+b.Width, uint64(len(raw)))
			}
			if err := f.writeStorage(b.Dst, raw[b.Offset:b.Offset+b.Width]); err != nil {
				return err
			}

		default:
			return errors.InvalidInput(errors.PhaseInvoke,
				fmt.Sprintf("binding op %s cannot store", b.Op))
		}
	}
	return nil
}

// loadValue runs prog in the physical-to-value direction: upcall
// arguments and downcall returns. seed pre-loads the raw bytes, used
// for the hidden return buffer address. Materialized aggregates are
// allocated in scope.
func (f *frame) loadValue(l layout.Layout, prog []abi.Binding, scope *memory.Scope, seed []byte, pos []string) (any, error) {
	raw := seed

	for _, b := range prog {
		switch b.Op {
		case abi.OpMove:
			chunk, err := f.readStorage(b.Src, b.Width)
			if err != nil {
				return nil, err
			}
			raw = growTo(raw, b.Offset+b.Width)
			copy(raw[b.Offset:], chunk)

		case abi.OpConvert:
			raw = convertRaw(raw, b.Kind, b.Width)

		case abi.OpBoxAddress:
			return nativeabi.Address(leU64(raw)), nil

		case abi.OpDeref:
			src := nativeabi.Address(leU64(raw))
			data, err := f.m.mem.Read(src, b.Size)
			if err != nil {
				return nil, err
			}
			seg, err := memory.AllocateIn(scope, f.m.mem, b.Size, b.Align)
			if err != nil {
				return nil, err
			}
			if err := seg.PutBytes(0, data); err != nil {
				return nil, err
			}
			return seg, nil

		default:
			return nil, errors.InvalidInput(errors.PhaseInvoke,
				fmt.Sprintf("binding op %s cannot load", b.Op))
		}
	}
	return materialize(l, raw, scope, f.m.mem, pos)
}

func (f *frame) writeStorage(dst abi.Storage, chunk []byte) error {
	switch dst.Class {
	case abi.ClassIntReg:
		f.m.ints[dst.Index] = leU64(chunk)
		return nil
	case abi.ClassFloatReg:
		f.m.floats[dst.Index] = leU64(chunk)
		return nil
	case abi.ClassStack:
		if f.outArgs.IsZero() {
			return errors.InvalidInput(errors.PhaseInvoke, "no outgoing stack area")
		}
		return f.outArgs.PutBytes(dst.Offset, chunk)
	default:
		return errors.InvalidInput(errors.PhaseInvoke,
			fmt.Sprintf("cannot write storage %s", dst))
	}
}

func (f *frame) readStorage(src abi.Storage, width uint64) ([]byte, error) {
	switch src.Class {
	case abi.ClassIntReg:
		return leBytes(f.m.ints[src.Index])[:width], nil
	case abi.ClassFloatReg:
		return leBytes(f.m.floats[src.Index])[:width], nil
	case abi.ClassStack:
		return f.m.stackArgBytes(src.Offset, width)
	default:
		return nil, errors.InvalidInput(errors.PhaseInvoke,
			fmt.Sprintf("cannot read storage %s", src))
	}
}

// carrierBytes renders a Go carrier value into the raw little-endian
// form of its layout. The carrier types are fixed per layout: sized
// ints and uints for integer scalars, float32/float64 for floats,
// [2]uint64 for 16-byte scalars, nativeabi.Address for pointers, and
// memory.Segment for aggregates.
func carrierBytes(l layout.Layout, v any, pos []string) ([]byte, error) {
	switch t := l.(type) {
	case layout.Scalar:
		if raw, ok := scalarBytes(t, v); ok {
			return raw, nil
		}
	case layout.Pointer:
		if a, ok := v.(nativeabi.Address); ok {
			return leBytes(uint64(a)), nil
		}
	default:
		seg, ok := v.(memory.Segment)
		if !ok {
			break
		}
		return seg.Bytes(0, l.ByteSize())
	}
	return nil, errors.TypeMismatch(errors.PhaseInvoke, pos, fmt.Sprintf("%T", v), l.String())
}

func scalarBytes(t layout.Scalar, v any) ([]byte, bool) {
	switch t.Kind() {
	case layout.KindSigned:
		switch x := v.(type) {
		case int8:
			if t.ByteSize() == 1 {
				return []byte{byte(x)}, true
			}
		case int16:
			if t.ByteSize() == 2 {
				return leBytes(uint64(x))[:2], true
			}
		case int32:
			if t.ByteSize() == 4 {
				return leBytes(uint64(x))[:4], true
			}
		case int64:
			if t.ByteSize() == 8 {
				return leBytes(uint64(x)), true
			}
		case [2]uint64:
			if t.ByteSize() == 16 {
				return append(leBytes(x[0]), leBytes(x[1])...), true
			}
		}
	case layout.KindUnsigned:
		switch x := v.(type) {
		case uint8:
			if t.ByteSize() == 1 {
				return []byte{x}, true
			}
		case uint16:
			if t.ByteSize() == 2 {
				return leBytes(uint64(x))[:2], true
			}
		case uint32:
			if t.ByteSize() == 4 {
				return leBytes(uint64(x))[:4], true
			}
		case uint64:
			if t.ByteSize() == 8 {
				return leBytes(x), true
			}
		case [2]uint64:
			if t.ByteSize() == 16 {
				return append(leBytes(x[0]), leBytes(x[1])...), true
			}
		}
	case layout.KindFloat:
		switch x := v.(type) {
		case float32:
			if t.ByteSize() == 4 {
				return leBytes(uint64(math.Float32bits(x)))[:4], true
			}
		case float64:
			if t.ByteSize() == 8 {
				return leBytes(math.Float64bits(x)), true
			}
		}
	}
	return nil, false
}

// materialize builds the Go carrier for raw bytes of layout l.
// Aggregates are copied into a fresh segment allocated in scope.
func materialize(l layout.Layout, raw []byte, scope *memory.Scope, alloc nativeabi.MemoryAllocator, pos []string) (any, error) {
	switch t := l.(type) {
	case layout.Scalar:
		if uint64(len(raw)) < t.ByteSize() {
			return nil, errors.OutOfBounds(errors.PhaseInvoke, pos, t.ByteSize(), uint64(len(raw)))
		}
		switch t.Kind() {
		case layout.KindSigned:
			switch t.ByteSize() {
			case 1:
				return int8(raw[0]), nil
			case 2:
				return int16(leU64(raw[:2])), nil
			case 4:
				return int32(leU64(raw[:4])), nil
			case 8:
				return int64(leU64(raw[:8])), nil
			case 16:
				return [2]uint64{leU64(raw[:8]), leU64(raw[8:16])}, nil
			}
		case layout.KindUnsigned:
			switch t.ByteSize() {
			case 1:
				return raw[0], nil
			case 2:
				return uint16(leU64(raw[:2])), nil
			case 4:
				return uint32(leU64(raw[:4])), nil
			case 8:
				return leU64(raw[:8]), nil
			case 16:
				return [2]uint64{leU64(raw[:8]), leU64(raw[8:16])}, nil
			}
		case layout.KindFloat:
			switch t.ByteSize() {
			case 4:
				return math.Float32frombits(uint32(leU64(raw[:4]))), nil
			case 8:
				return math.Float64frombits(leU64(raw[:8])), nil
			}
		}
	case layout.Pointer:
		return nativeabi.Address(leU64(raw)), nil
	default:
		size := l.ByteSize()
		if uint64(len(raw)) < size {
			return nil, errors.OutOfBounds(errors.PhaseInvoke, pos, size, uint64(len(raw)))
		}
		seg, err := memory.AllocateIn(scope, alloc, size, l.ByteAlignment())
		if err != nil {
			return nil, err
		}
		if err := seg.PutBytes(0, raw[:size]); err != nil {
			return nil, err
		}
		return seg, nil
	}
	return nil, errors.UnsupportedLayout(errors.PhaseInvoke, l.String(), "no carrier for layout")
}

// convertRaw widens, narrows or reinterprets raw to width bytes.
// Integer conversions extend per kind; float conversions go through
// the value.
func convertRaw(raw []byte, kind layout.ScalarKind, width uint64) []byte {
	if kind == layout.KindFloat {
		switch {
		case uint64(len(raw)) == 4 && width == 8:
			f := math.Float32frombits(uint32(leU64(raw)))
			return leBytes(math.Float64bits(float64(f)))
		case uint64(len(raw)) == 8 && width == 4:
			f := math.Float64frombits(leU64(raw))
			return leBytes(uint64(math.Float32bits(float32(f))))[:4]
		default:
			return raw
		}
	}

	u := leU64(raw)
	if kind == layout.KindSigned && len(raw) < 8 {
		shift := uint(64 - 8*len(raw))
		u = uint64(int64(u<<shift) >> shift)
	}
	out := leBytes(u)
	if width < 8 {
		out = out[:width]
	}
	return out
}

func growTo(raw []byte, n uint64) []byte {
	for uint64(len(raw)) < n {
		raw = append(raw, 0)
	}
	return raw
}

func leBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func leU64(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func f64ToBits(v float64) uint64   { return math.Float64bits(v) }
func f64FromBits(b uint64) float64 { return math.Float64frombits(b) }
