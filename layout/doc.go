// Package layout describes native value layouts and function signatures.
//
// A Layout captures everything the classifier needs to know about a value:
// its byte size, its required alignment, and its shape (scalar, pointer,
// group, array, padding). Layouts are immutable values; every layout has a
// canonical String form used as a cache key and in diagnostic output.
//
// Layout kinds:
//
//	Scalar   integral (signed/unsigned) or floating value of 1-16 bytes
//	Pointer  address-sized value, boxed/unboxed at call boundaries
//	Group    ordered fields packed with natural C struct rules
//	Array    count x element, classified as repeated leaves
//	Padding  reserved bytes with no value bits
//
// Function signatures combine layouts:
//
//	fn := layout.NewFunc(layout.Int64, layout.Int32, layout.Double)
//	fn = fn.WithVariadic(1) // arguments from index 1 on are variadic
//
// Group packing follows the standard C rules: each field is placed at the
// next offset aligned to its own alignment, the group's alignment is the
// maximum field alignment, and the total size is rounded up to that
// alignment.
package layout
