package rpc

import (
    "errors"
    "fmt"

    "github.com/nem0/lumixengine-net/pkg/conntable"
)

var (
    ErrUnsupportedArgumentType = errors.New("rpc: unsupported argument type")
    ErrFrameTooLarge           = errors.New("rpc: frame too large")
    ErrUnknownFunction         = errors.New("rpc: unknown function")
    ErrProtocolViolation       = errors.New("rpc: protocol violation")
)

// ArgError locates an encode or decode failure at a 1-based argument index.
type ArgError struct {
    Func  string
    Index int
    Err   error
}

func (e *ArgError) Error() string {
    return fmt.Sprintf("%s: argument #%d: %v", e.Func, e.Index, e.Err)
}

func (e *ArgError) Unwrap() error { return e.Err }

// HandlerError wraps a failure returned (or panicked) by a registered handler.
type HandlerError struct {
    Func string
    Conn conntable.Handle
    Err  error
}

func (e *HandlerError) Error() string {
    return fmt.Sprintf("rpc handler %s (conn %d): %v", e.Func, e.Conn, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
