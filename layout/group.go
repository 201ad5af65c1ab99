package layout

import "fmt"

// Field is one member of a Group. The name is optional and only
// affects the String form, never classification.
type Field struct {
	Layout Layout
	Name   string
}

// Group is an ordered sequence of fields packed with C struct rules:
// each field sits at the next offset aligned to its own alignment, the
// group's alignment is the maximum field alignment, and the total size
// is rounded up to that alignment.
type Group struct {
	fields  []Field
	offsets []uint64
	size    uint64
	align   uint64
}

// NewGroup packs the given layouts into a group with unnamed fields.
func NewGroup(members ...Layout) Group {
	fields := make([]Field, len(members))
	for i, m := range members {
		fields[i] = Field{Layout: m}
	}
	return NewGroupFields(fields...)
}

// NewGroupFields packs the given fields into a group.
func NewGroupFields(fields ...Field) Group {
	g := Group{
		fields:  fields,
		offsets: make([]uint64, len(fields)),
		align:   1,
	}

	offset := uint64(0)
	for i, f := range fields {
		a := f.Layout.ByteAlignment()
		offset = AlignTo(offset, a)
		g.offsets[i] = offset
		if a > g.align {
			g.align = a
		}
		offset += f.Layout.ByteSize()
	}
	g.size = AlignTo(offset, g.align)

	return g
}

func (g Group) ByteSize() uint64 { return g.size }

func (g Group) ByteAlignment() uint64 { return g.align }

// NumFields returns the number of fields, padding included.
func (g Group) NumFields() int { return len(g.fields) }

// Field returns the i-th field.
func (g Group) Field(i int) Field { return g.fields[i] }

// OffsetOf returns the byte offset of the i-th field within the group.
func (g Group) OffsetOf(i int) uint64 { return g.offsets[i] }

func (g Group) String() string {
	parts := make([]string, len(g.fields))
	for i, f := range g.fields {
		if f.Name != "" {
			parts[i] = f.Name + ":" + f.Layout.String()
		} else {
			parts[i] = f.Layout.String()
		}
	}
	return joinStrings(parts)
}

// Array is count repetitions of an element layout. Classification
// treats it as the element's leaves repeated count times.
type Array struct {
	elem  Layout
	count uint64
}

// NewArray returns an array layout of count elements.
func NewArray(elem Layout, count uint64) Array {
	return Array{elem: elem, count: count}
}

func (a Array) ByteSize() uint64 {
	return AlignTo(a.elem.ByteSize(), a.elem.ByteAlignment()) * a.count
}

func (a Array) ByteAlignment() uint64 { return a.elem.ByteAlignment() }

// Elem returns the element layout.
func (a Array) Elem() Layout { return a.elem }

// Count returns the number of elements.
func (a Array) Count() uint64 { return a.count }

func (a Array) String() string {
	return fmt.Sprintf("[%d]%s", a.count, a.elem)
}
