// Package errors provides structured error types for the native-abi library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: argument path, Go type and layout names, and
// a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseClassify, errors.KindUnsupportedLayout).
//		Path("args", "2").
//		Layout("[f32 f32 f32]").
//		Detail("aggregate exceeds register budget").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseVaList, path, "int32", "f64")
//	err := errors.OutOfBounds(errors.PhaseMemory, path, 4096, 1024)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
