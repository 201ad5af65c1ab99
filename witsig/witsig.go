// Package witsig turns WIT-style signature text into function
// layouts.
//
// Signatures look like function items in a WIT interface:
//
//	add: func(a: s32, b: s32) -> s32;
//	log: func(level: u8, message: string);
//	stats: func() -> (s64, s64, f64);
//	printf: func(format: string, ...) -> s32;
//
// Primitive WIT types map onto their native representation: sized
// integers and floats map directly, char is its unicode scalar in a
// u32, bool is one byte, and string is the address of its character
// data. A parenthesized result list becomes a structured return. The
// trailing "..." marks the start of the variadic tail; declared types
// may follow it.
package witsig

import (
	"regexp"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
)

// Signature is one parsed function item.
type Signature struct {
	Name string
	Func layout.Func
}

// funcPattern: [export] name: func(params) -> result;
var funcPattern = regexp.MustCompile(`(?:export\s+)?([a-zA-Z_][a-zA-Z0-9_-]*)\s*:\s*func\s*\(([^)]*)\)(?:\s*->\s*([^;\n]+))?`)

// ParseText extracts every function item from text, in order of
// appearance.
func ParseText(text string) ([]Signature, error) {
	matches := funcPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil, errors.InvalidInput(errors.PhaseParse, "no functions found in signature text")
	}

	sigs := make([]Signature, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, match := range matches {
		name := match[1]
		if seen[name] {
			return nil, errors.New(errors.PhaseParse, errors.KindInvalidInput).
				Detail("duplicate function %q", name).Build()
		}
		seen[name] = true

		fn, err := parseFunc(strings.TrimSpace(match[2]), strings.TrimSpace(match[3]))
		if err != nil {
			return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err,
				"function "+name)
		}
		sigs = append(sigs, Signature{Name: name, Func: fn})
	}
	return sigs, nil
}

// Parse extracts exactly one function item.
func Parse(text string) (Signature, error) {
	sigs, err := ParseText(text)
	if err != nil {
		return Signature{}, err
	}
	if len(sigs) != 1 {
		return Signature{}, errors.New(errors.PhaseParse, errors.KindInvalidInput).
			Detail("expected one function, found %d", len(sigs)).Build()
	}
	return sigs[0], nil
}

func parseFunc(paramsStr, resultStr string) (layout.Func, error) {
	var args []layout.Layout
	variadicAt := -1

	if paramsStr != "" {
		for _, p := range splitParams(paramsStr) {
			if p == "..." {
				if variadicAt != -1 {
					return layout.Func{}, errors.InvalidInput(errors.PhaseParse, "duplicate \"...\"")
				}
				variadicAt = len(args)
				continue
			}
			typStr := p
			if idx := strings.LastIndex(p, ":"); idx != -1 {
				typStr = strings.TrimSpace(p[idx+1:])
			}
			l, err := parseLayout(typStr)
			if err != nil {
				return layout.Func{}, err
			}
			args = append(args, l)
		}
	}

	ret, err := parseResult(resultStr)
	if err != nil {
		return layout.Func{}, err
	}

	fn := layout.NewFunc(ret, args...)
	if variadicAt != -1 {
		fn = fn.WithVariadic(variadicAt)
	}
	return fn, nil
}

func parseResult(resultStr string) (layout.Layout, error) {
	if resultStr == "" || resultStr == "()" {
		return nil, nil
	}

	// a parenthesized result list is returned as one structure
	if strings.HasPrefix(resultStr, "(") && strings.HasSuffix(resultStr, ")") {
		inner := strings.TrimSpace(resultStr[1 : len(resultStr)-1])
		if inner == "" {
			return nil, nil
		}
		var members []layout.Layout
		for _, part := range splitParams(inner) {
			l, err := parseLayout(part)
			if err != nil {
				return nil, err
			}
			members = append(members, l)
		}
		return layout.NewGroup(members...), nil
	}

	return parseLayout(resultStr)
}

// splitParams splits a parameter list, handling nested parens.
func splitParams(s string) []string {
	var result []string
	var current strings.Builder
	depth := 0

	for _, ch := range s {
		switch ch {
		case '(':
			depth++
			current.WriteRune(ch)
		case ')':
			depth--
			current.WriteRune(ch)
		case ',':
			if depth == 0 {
				if str := strings.TrimSpace(current.String()); str != "" {
					result = append(result, str)
				}
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}

	if str := strings.TrimSpace(current.String()); str != "" {
		result = append(result, str)
	}

	return result
}

func parseLayout(s string) (layout.Layout, error) {
	s = strings.TrimSpace(s)
	t, err := wit.ParseType(s)
	if err != nil {
		return nil, errors.ParseFailed("type "+s, err)
	}
	return mapType(t, s)
}

// mapType picks the native layout of a WIT primitive.
func mapType(t wit.Type, s string) (layout.Layout, error) {
	switch t.(type) {
	case wit.Bool:
		return layout.UInt8, nil
	case wit.U8:
		return layout.UInt8, nil
	case wit.S8:
		return layout.Int8, nil
	case wit.U16:
		return layout.UInt16, nil
	case wit.S16:
		return layout.Int16, nil
	case wit.U32:
		return layout.UInt32, nil
	case wit.S32:
		return layout.Int32, nil
	case wit.U64:
		return layout.UInt64, nil
	case wit.S64:
		return layout.Int64, nil
	case wit.F32:
		return layout.Float, nil
	case wit.F64:
		return layout.Double, nil
	case wit.Char:
		return layout.UInt32, nil
	case wit.String:
		return layout.Address, nil
	default:
		return nil, errors.UnsupportedLayout(errors.PhaseParse, s,
			"type has no native representation")
	}
}
