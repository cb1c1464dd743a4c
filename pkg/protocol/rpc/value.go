package rpc

import (
    "fmt"
    "strconv"
    "strings"
)

// Tag is the one-byte wire type of a Value.
type Tag uint8

// Tag numbering is fixed by the wire format; 2 is reserved and rejected.
const (
    TagInvalid Tag = 0
    TagBool    Tag = 1
    TagNumber  Tag = 3
    TagString  Tag = 4
)

func (t Tag) String() string {
    switch t {
    case TagBool:
        return "bool"
    case TagNumber:
        return "number"
    case TagString:
        return "string"
    default:
        return fmt.Sprintf("tag(%d)", uint8(t))
    }
}

// Value is an RPC argument: exactly one of String, Number or Bool.
// The zero Value is invalid and is rejected by the encoder.
type Value struct {
    tag Tag
    s   string
    n   float64
    b   bool
}

func String(s string) Value  { return Value{tag: TagString, s: s} }
func Number(n float64) Value { return Value{tag: TagNumber, n: n} }
func Bool(b bool) Value      { return Value{tag: TagBool, b: b} }

func (v Value) Tag() Tag { return v.tag }

// Valid reports whether v carries one of the wire types.
func (v Value) Valid() bool {
    switch v.tag {
    case TagString, TagNumber, TagBool:
        return true
    }
    return false
}

// Str returns the string payload; ok is false for other tags.
func (v Value) Str() (s string, ok bool) { return v.s, v.tag == TagString }

// Num returns the number payload; ok is false for other tags.
func (v Value) Num() (n float64, ok bool) { return v.n, v.tag == TagNumber }

// Boolean returns the bool payload; ok is false for other tags.
func (v Value) Boolean() (b bool, ok bool) { return v.b, v.tag == TagBool }

// Any returns the payload as string, float64 or bool (nil when invalid).
func (v Value) Any() any {
    switch v.tag {
    case TagString:
        return v.s
    case TagNumber:
        return v.n
    case TagBool:
        return v.b
    }
    return nil
}

// Equal compares tag and payload.
func (v Value) Equal(o Value) bool {
    if v.tag != o.tag { return false }
    switch v.tag {
    case TagString:
        return v.s == o.s
    case TagNumber:
        return v.n == o.n
    case TagBool:
        return v.b == o.b
    }
    return true
}

func (v Value) String() string {
    switch v.tag {
    case TagString:
        return strconv.Quote(v.s)
    case TagNumber:
        return strconv.FormatFloat(v.n, 'g', -1, 64)
    case TagBool:
        return strconv.FormatBool(v.b)
    }
    return "<invalid>"
}

// FromAny converts a Go value at the API boundary. Strings, bools and every
// integer or float kind are accepted; anything else fails with
// ErrUnsupportedArgumentType.
func FromAny(x any) (Value, error) {
    switch v := x.(type) {
    case Value:
        if !v.Valid() { return Value{}, fmt.Errorf("%w: invalid Value", ErrUnsupportedArgumentType) }
        return v, nil
    case string:
        return String(v), nil
    case bool:
        return Bool(v), nil
    case float64:
        return Number(v), nil
    case float32:
        return Number(float64(v)), nil
    case int:
        return Number(float64(v)), nil
    case int8:
        return Number(float64(v)), nil
    case int16:
        return Number(float64(v)), nil
    case int32:
        return Number(float64(v)), nil
    case int64:
        return Number(float64(v)), nil
    case uint:
        return Number(float64(v)), nil
    case uint8:
        return Number(float64(v)), nil
    case uint16:
        return Number(float64(v)), nil
    case uint32:
        return Number(float64(v)), nil
    case uint64:
        return Number(float64(v)), nil
    default:
        return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedArgumentType, x)
    }
}

// ParseArg parses a command-line argument of the form s:<text>, n:<number>
// or b:<bool>.
func ParseArg(s string) (Value, error) {
    kind, rest, ok := strings.Cut(s, ":")
    if !ok { return Value{}, fmt.Errorf("rpc: argument %q: want s:|n:|b: prefix", s) }
    switch kind {
    case "s", "str", "string":
        return String(rest), nil
    case "n", "num", "number":
        f, err := strconv.ParseFloat(rest, 64)
        if err != nil { return Value{}, fmt.Errorf("rpc: argument %q: %w", s, err) }
        return Number(f), nil
    case "b", "bool":
        b, err := strconv.ParseBool(rest)
        if err != nil { return Value{}, fmt.Errorf("rpc: argument %q: %w", s, err) }
        return Bool(b), nil
    default:
        return Value{}, fmt.Errorf("%w: %q", ErrUnsupportedArgumentType, kind)
    }
}
