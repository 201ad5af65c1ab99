package abi

import (
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
)

// ArgClass is the classification of one argument or return value:
// which storage class carries it, how many registers it occupies when
// passed directly, and whether it is passed indirectly through a
// pointer to a caller-owned copy.
type ArgClass struct {
	Class    StorageClass
	RegCount int
	Indirect bool
}

// Classify decides the storage class of a layout under a descriptor.
// Scalars take one register of the matching class, 16-byte scalars a
// register pair. Aggregates no larger than the direct threshold whose
// leaves all share one class are passed by value across that many
// same-class registers; every other aggregate is an indirect pointer
// to a caller-owned copy.
//
// Classification is pure and precedes any binding emission; malformed
// layouts fail here and leave no partial state behind.
func Classify(desc *Descriptor, l layout.Layout) (ArgClass, error) {
	return classify(desc, l, false)
}

// ClassifyVariadic classifies a layout in variadic position, where the
// descriptor's float promotion rule applies.
func ClassifyVariadic(desc *Descriptor, l layout.Layout) (ArgClass, error) {
	return classify(desc, l, true)
}

func classify(desc *Descriptor, l layout.Layout, variadic bool) (ArgClass, error) {
	if l == nil {
		return ArgClass{}, errors.InvalidLayout(errors.PhaseClassify, "nil", "missing layout")
	}

	switch t := l.(type) {
	case layout.Scalar:
		return classifyScalar(desc, t, variadic)
	case layout.Pointer:
		return ArgClass{Class: ClassIntReg, RegCount: 1}, nil
	case layout.Padding:
		return ArgClass{}, errors.InvalidLayout(errors.PhaseClassify, t.String(), "padding carries no value")
	case layout.Group, layout.Array:
		return classifyAggregate(desc, l, variadic)
	default:
		return ArgClass{}, errors.InvalidLayout(errors.PhaseClassify, l.String(), "unrecognized layout")
	}
}

func classifyScalar(desc *Descriptor, s layout.Scalar, variadic bool) (ArgClass, error) {
	w := s.ByteSize()
	if w == 0 {
		return ArgClass{}, errors.InvalidLayout(errors.PhaseClassify, s.String(), "zero-size scalar")
	}

	if s.Kind() == layout.KindFloat {
		switch w {
		case 4, 8:
		default:
			return ArgClass{}, errors.UnsupportedLayout(errors.PhaseClassify, s.String(),
				"no storage class carries this float width")
		}
		if variadic && desc.Variadic.Promotion == PromoteGP {
			return ArgClass{Class: ClassIntReg, RegCount: 1}, nil
		}
		return ArgClass{Class: ClassFloatReg, RegCount: 1}, nil
	}

	switch w {
	case 1, 2, 4, 8:
		return ArgClass{Class: ClassIntReg, RegCount: 1}, nil
	case 16:
		return ArgClass{Class: ClassIntReg, RegCount: 2}, nil
	default:
		return ArgClass{}, errors.InvalidLayout(errors.PhaseClassify, s.String(), "unsupported scalar width")
	}
}

func classifyAggregate(desc *Descriptor, l layout.Layout, variadic bool) (ArgClass, error) {
	size := l.ByteSize()
	if size == 0 {
		return ArgClass{}, errors.InvalidLayout(errors.PhaseClassify, l.String(), "zero-size aggregate")
	}

	leaf, homogeneous, err := leafClass(desc, l)
	if err != nil {
		return ArgClass{}, err
	}

	if homogeneous && size <= desc.DirectThreshold {
		class := leaf
		if class == ClassFloatReg && variadic && desc.Variadic.Promotion == PromoteGP {
			class = ClassIntReg
		}
		words := int((size + desc.WordSize - 1) / desc.WordSize)
		return ArgClass{Class: class, RegCount: words}, nil
	}

	return ArgClass{Class: ClassIndirect, RegCount: 1, Indirect: true}, nil
}

// leafClass walks an aggregate's non-padding leaves and reports their
// common storage class. homogeneous is false when leaves disagree.
func leafClass(desc *Descriptor, l layout.Layout) (StorageClass, bool, error) {
	found := false
	class := ClassIntReg
	homogeneous := true

	var walk func(layout.Layout) error
	walk = func(m layout.Layout) error {
		switch t := m.(type) {
		case layout.Scalar:
			if t.ByteSize() == 0 {
				return errors.InvalidLayout(errors.PhaseClassify, l.String(), "zero-size scalar field")
			}
			c := ClassIntReg
			if t.Kind() == layout.KindFloat {
				c = ClassFloatReg
			}
			if !found {
				class, found = c, true
			} else if c != class {
				homogeneous = false
			}
		case layout.Pointer:
			if !found {
				class, found = ClassIntReg, true
			} else if class != ClassIntReg {
				homogeneous = false
			}
		case layout.Padding:
			// occupies space, no value bits
		case layout.Group:
			for i := 0; i < t.NumFields(); i++ {
				if err := walk(t.Field(i).Layout); err != nil {
					return err
				}
			}
		case layout.Array:
			if t.Count() == 0 {
				return errors.InvalidLayout(errors.PhaseClassify, l.String(), "zero-length array field")
			}
			// every element classifies identically
			return walk(t.Elem())
		default:
			return errors.InvalidLayout(errors.PhaseClassify, l.String(), "unrecognized field layout")
		}
		return nil
	}

	if err := walk(l); err != nil {
		return ClassIntReg, false, err
	}
	if !found {
		return ClassIntReg, false, errors.InvalidLayout(errors.PhaseClassify, l.String(), "aggregate has no value fields")
	}
	return class, homogeneous, nil
}

// classifyReturn classifies a return layout. Aggregates needing more
// registers than the return file provides are returned through a
// hidden pointer to caller-allocated storage.
func classifyReturn(desc *Descriptor, l layout.Layout) (ArgClass, error) {
	c, err := classify(desc, l, false)
	if err != nil {
		return ArgClass{}, err
	}
	if c.Indirect {
		return c, nil
	}

	limit := len(desc.IntRetRegs)
	if c.Class == ClassFloatReg {
		limit = len(desc.FloatRetRegs)
	}
	if isAggregate(l) && c.RegCount > limit {
		return ArgClass{Class: ClassIndirect, RegCount: 1, Indirect: true}, nil
	}
	return c, nil
}

func isAggregate(l layout.Layout) bool {
	switch l.(type) {
	case layout.Group, layout.Array:
		return true
	}
	return false
}
