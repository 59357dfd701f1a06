package store

import (
	"fmt"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindAbsent Kind = iota
	KindString
	KindInt
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a scalar telemetry value. The zero Value is absent.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
}

// Absent returns a Value that has not been observed yet.
func Absent() Value { return Value{} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int wraps an integer.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a floating-point number.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Str returns the string payload; empty for other variants.
func (v Value) Str() string { return v.s }

func (v Value) IntVal() int64 { return v.i }

func (v Value) FloatVal() float64 { return v.f }

// Number returns the numeric value for integer and float variants.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

// Interface returns the Go value held: nil, string, int64 or float64.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	default:
		return nil
	}
}

// Equal reports whether both values hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == o.s
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.s)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindAbsent:
		return "<absent>"
	default:
		return fmt.Sprintf("<%s>", v.kind)
	}
}
