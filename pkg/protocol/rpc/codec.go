// Package rpc implements the function-call frame carried on the RPC channel.
//
// Frame layout, all integers little-endian:
//
//  u16      name length
//  []byte   function name
//  u16      argument count
//  per argument:
//    u8     tag (1 bool, 3 number, 4 string)
//    bool   u8 0|1
//    number 8 bytes IEEE-754 float64
//    string u32 length + bytes
package rpc

import (
    "encoding/binary"
    "fmt"
    "math"
)

// DefaultMaxFrameSize bounds an encoded frame when no limit is configured.
const DefaultMaxFrameSize = 1024

const (
    maxNameLen = math.MaxUint16
    maxArgs    = math.MaxUint16
)

// Frame is a decoded call.
type Frame struct {
    Name string
    Args []Value
}

// Encode serializes a call. Nothing is returned unless the whole frame is
// valid and fits maxSize bytes (maxSize <= 0 selects DefaultMaxFrameSize).
func Encode(name string, args []Value, maxSize int) ([]byte, error) {
    if maxSize <= 0 { maxSize = DefaultMaxFrameSize }
    if name == "" {
        return nil, fmt.Errorf("%w: empty function name", ErrProtocolViolation)
    }
    if len(name) > maxNameLen {
        return nil, fmt.Errorf("%w: function name is %d bytes", ErrFrameTooLarge, len(name))
    }
    if len(args) > maxArgs {
        return nil, fmt.Errorf("%w: %s has %d arguments", ErrFrameTooLarge, name, len(args))
    }

    size := 2 + len(name) + 2
    for i, a := range args {
        switch a.tag {
        case TagBool:
            size += 1 + 1
        case TagNumber:
            size += 1 + 8
        case TagString:
            if uint64(len(a.s)) > math.MaxUint32 {
                return nil, &ArgError{Func: name, Index: i + 1, Err: ErrFrameTooLarge}
            }
            size += 1 + 4 + len(a.s)
        default:
            return nil, &ArgError{Func: name, Index: i + 1, Err: ErrUnsupportedArgumentType}
        }
        if size > maxSize {
            return nil, fmt.Errorf("%w: %s exceeds %d bytes at argument #%d", ErrFrameTooLarge, name, maxSize, i+1)
        }
    }
    if size > maxSize {
        return nil, fmt.Errorf("%w: %s needs %d bytes, limit %d", ErrFrameTooLarge, name, size, maxSize)
    }

    buf := make([]byte, 0, size)
    buf = binary.LittleEndian.AppendUint16(buf, uint16(len(name)))
    buf = append(buf, name...)
    buf = binary.LittleEndian.AppendUint16(buf, uint16(len(args)))
    for _, a := range args {
        buf = append(buf, byte(a.tag))
        switch a.tag {
        case TagBool:
            if a.b { buf = append(buf, 1) } else { buf = append(buf, 0) }
        case TagNumber:
            buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(a.n))
        case TagString:
            buf = binary.LittleEndian.AppendUint32(buf, uint32(len(a.s)))
            buf = append(buf, a.s...)
        }
    }
    return buf, nil
}

// EncodeAny converts args with FromAny and encodes them. A conversion failure
// aborts the whole call.
func EncodeAny(name string, maxSize int, args ...any) ([]byte, error) {
    vals := make([]Value, len(args))
    for i, x := range args {
        v, err := FromAny(x)
        if err != nil {
            return nil, &ArgError{Func: name, Index: i + 1, Err: err}
        }
        vals[i] = v
    }
    return Encode(name, vals, maxSize)
}

// Decode parses a complete frame without consulting any registry.
func Decode(data []byte) (Frame, error) {
    r := reader{buf: data}
    name, err := r.name()
    if err != nil { return Frame{}, err }
    args, err := r.args(name)
    if err != nil { return Frame{Name: name}, err }
    return Frame{Name: name, Args: args}, nil
}

type reader struct {
    buf []byte
    off int
}

func (r *reader) need(n int, what string) error {
    if n < 0 || len(r.buf)-r.off < n {
        return fmt.Errorf("%w: truncated %s at offset %d", ErrProtocolViolation, what, r.off)
    }
    return nil
}

func (r *reader) u8(what string) (uint8, error) {
    if err := r.need(1, what); err != nil { return 0, err }
    v := r.buf[r.off]
    r.off++
    return v, nil
}

func (r *reader) u16(what string) (uint16, error) {
    if err := r.need(2, what); err != nil { return 0, err }
    v := binary.LittleEndian.Uint16(r.buf[r.off:])
    r.off += 2
    return v, nil
}

func (r *reader) bytes(n int, what string) ([]byte, error) {
    if err := r.need(n, what); err != nil { return nil, err }
    b := r.buf[r.off : r.off+n]
    r.off += n
    return b, nil
}

func (r *reader) name() (string, error) {
    n, err := r.u16("name length")
    if err != nil { return "", err }
    if n == 0 {
        return "", fmt.Errorf("%w: empty function name", ErrProtocolViolation)
    }
    b, err := r.bytes(int(n), "name")
    if err != nil { return "", err }
    return string(b), nil
}

func (r *reader) args(name string) ([]Value, error) {
    argc, err := r.u16("argument count")
    if err != nil { return nil, err }
    args := make([]Value, 0, argc)
    for i := 0; i < int(argc); i++ {
        v, err := r.value()
        if err != nil {
            return nil, &ArgError{Func: name, Index: i + 1, Err: err}
        }
        args = append(args, v)
    }
    if r.off != len(r.buf) {
        return nil, fmt.Errorf("%w: %d trailing bytes after %s", ErrProtocolViolation, len(r.buf)-r.off, name)
    }
    return args, nil
}

func (r *reader) value() (Value, error) {
    t, err := r.u8("tag")
    if err != nil { return Value{}, err }
    switch Tag(t) {
    case TagBool:
        b, err := r.u8("bool")
        if err != nil { return Value{}, err }
        if b > 1 { return Value{}, fmt.Errorf("%w: bool byte %#x", ErrProtocolViolation, b) }
        return Bool(b == 1), nil
    case TagNumber:
        b, err := r.bytes(8, "number")
        if err != nil { return Value{}, err }
        return Number(math.Float64frombits(binary.LittleEndian.Uint64(b))), nil
    case TagString:
        lb, err := r.bytes(4, "string length")
        if err != nil { return Value{}, err }
        n := binary.LittleEndian.Uint32(lb)
        if uint64(n) > uint64(len(r.buf)-r.off) {
            return Value{}, fmt.Errorf("%w: string of %d bytes overruns frame", ErrProtocolViolation, n)
        }
        b, err := r.bytes(int(n), "string")
        if err != nil { return Value{}, err }
        return String(string(b)), nil
    default:
        return Value{}, fmt.Errorf("%w: unexpected tag %d", ErrProtocolViolation, t)
    }
}
