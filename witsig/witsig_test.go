package witsig

import (
	"testing"

	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
)

func TestParseText(t *testing.T) {
	text := `
		interface calc {
			export add: func(a: s32, b: s32) -> s32;
			export scale: func(v: f64, by: f32) -> f64;
			export log: func(level: u8, message: string);
			get-value: func() -> u64;
		}
	`

	sigs, err := ParseText(text)
	if err != nil {
		t.Fatalf("ParseText() error: %v", err)
	}
	if len(sigs) != 4 {
		t.Fatalf("parsed %d functions, want 4", len(sigs))
	}

	want := []struct {
		name string
		sig  string
	}{
		{"add", "(i32 i32) -> i32"},
		{"scale", "(f64 f32) -> f64"},
		{"log", "(u8 ptr) -> void"},
		{"get-value", "() -> u64"},
	}
	for i, w := range want {
		if sigs[i].Name != w.name {
			t.Errorf("sigs[%d].Name = %q, want %q", i, sigs[i].Name, w.name)
		}
		if got := sigs[i].Func.String(); got != w.sig {
			t.Errorf("%s = %s, want %s", w.name, got, w.sig)
		}
	}
}

func TestParseTypeMapping(t *testing.T) {
	tests := []struct {
		wit  string
		want layout.Layout
	}{
		{"bool", layout.UInt8},
		{"u8", layout.UInt8},
		{"s8", layout.Int8},
		{"u16", layout.UInt16},
		{"s16", layout.Int16},
		{"u32", layout.UInt32},
		{"s32", layout.Int32},
		{"u64", layout.UInt64},
		{"s64", layout.Int64},
		{"f32", layout.Float},
		{"f64", layout.Double},
		{"char", layout.UInt32},
	}

	for _, tt := range tests {
		t.Run(tt.wit, func(t *testing.T) {
			sig, err := Parse("probe: func(x: " + tt.wit + ");")
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			got := sig.Func.Arg(0)
			if got.String() != tt.want.String() || got.ByteSize() != tt.want.ByteSize() {
				t.Errorf("%s maps to %s (%d bytes), want %s", tt.wit, got, got.ByteSize(), tt.want)
			}
		})
	}

	t.Run("string", func(t *testing.T) {
		sig, err := Parse("probe: func(s: string);")
		if err != nil {
			t.Fatalf("Parse() error: %v", err)
		}
		if _, ok := sig.Func.Arg(0).(layout.Pointer); !ok {
			t.Errorf("string maps to %s, want a pointer", sig.Func.Arg(0))
		}
	})
}

func TestParseStructuredResult(t *testing.T) {
	sig, err := Parse("stats: func() -> (s64, s64, f64);")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	g, ok := sig.Func.Return().(layout.Group)
	if !ok {
		t.Fatalf("result is %T, want a group", sig.Func.Return())
	}
	if g.NumFields() != 3 {
		t.Errorf("result fields = %d, want 3", g.NumFields())
	}
	if g.ByteSize() != 24 {
		t.Errorf("result size = %d, want 24", g.ByteSize())
	}
}

func TestParseVariadic(t *testing.T) {
	t.Run("open tail", func(t *testing.T) {
		sig, err := Parse("printf: func(format: string, ...) -> s32;")
		if err != nil {
			t.Fatalf("Parse() error: %v", err)
		}
		fn := sig.Func
		if !fn.IsVariadic() || fn.FirstVariadic() != 1 {
			t.Errorf("FirstVariadic() = %d, want 1", fn.FirstVariadic())
		}
		if fn.NumArgs() != 1 {
			t.Errorf("NumArgs() = %d, want 1", fn.NumArgs())
		}
	})

	t.Run("declared tail", func(t *testing.T) {
		sig, err := Parse("fmt1: func(format: string, ..., x: s32, y: f64);")
		if err != nil {
			t.Fatalf("Parse() error: %v", err)
		}
		fn := sig.Func
		if fn.FirstVariadic() != 1 || fn.NumArgs() != 3 {
			t.Errorf("got %s with FirstVariadic %d, want variadic from 1 of 3", fn, fn.FirstVariadic())
		}
	})

	t.Run("duplicate dots", func(t *testing.T) {
		_, err := Parse("bad: func(a: s32, ..., ...);")
		if err == nil {
			t.Error("duplicate \"...\" should fail")
		}
	})
}

func TestParseErrors(t *testing.T) {
	t.Run("empty text", func(t *testing.T) {
		_, err := ParseText("nothing callable here")
		e, ok := err.(*errors.Error)
		if !ok || e.Kind != errors.KindInvalidInput {
			t.Errorf("ParseText(no funcs) error = %v, want invalid input", err)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := Parse("bad: func(x: quux-type);")
		if err == nil {
			t.Error("unknown type should fail")
		}
	})

	t.Run("duplicate name", func(t *testing.T) {
		_, err := ParseText("f: func(); f: func() -> s32;")
		e, ok := err.(*errors.Error)
		if !ok || e.Kind != errors.KindInvalidInput {
			t.Errorf("duplicate name error = %v, want invalid input", err)
		}
	})

	t.Run("two functions for Parse", func(t *testing.T) {
		_, err := Parse("f: func(); g: func();")
		if err == nil {
			t.Error("Parse() with two functions should fail")
		}
	})
}
