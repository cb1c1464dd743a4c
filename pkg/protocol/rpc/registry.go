package rpc

import (
    "fmt"
    "sort"
    "sync"

    "github.com/nem0/lumixengine-net/pkg/conntable"
)

// Call is what a handler receives for one decoded frame.
type Call struct {
    Conn conntable.Handle
    Name string
    Args []Value
}

// StringArg returns argument i (0-based) as a string.
func (c *Call) StringArg(i int) (string, error) {
    v, err := c.arg(i)
    if err != nil { return "", err }
    s, ok := v.Str()
    if !ok { return "", c.typeErr(i, TagString, v) }
    return s, nil
}

// NumberArg returns argument i (0-based) as a float64.
func (c *Call) NumberArg(i int) (float64, error) {
    v, err := c.arg(i)
    if err != nil { return 0, err }
    n, ok := v.Num()
    if !ok { return 0, c.typeErr(i, TagNumber, v) }
    return n, nil
}

// BoolArg returns argument i (0-based) as a bool.
func (c *Call) BoolArg(i int) (bool, error) {
    v, err := c.arg(i)
    if err != nil { return false, err }
    b, ok := v.Boolean()
    if !ok { return false, c.typeErr(i, TagBool, v) }
    return b, nil
}

func (c *Call) arg(i int) (Value, error) {
    if i < 0 || i >= len(c.Args) {
        return Value{}, fmt.Errorf("%s: argument #%d missing (got %d)", c.Name, i+1, len(c.Args))
    }
    return c.Args[i], nil
}

func (c *Call) typeErr(i int, want Tag, got Value) error {
    return fmt.Errorf("%s: argument #%d is %s, want %s", c.Name, i+1, got.Tag(), want)
}

// Handler runs one remote call. A returned error becomes a HandlerError.
type Handler func(c *Call) error

// Registry maps function names to handlers. It is safe for concurrent use so
// handlers can be registered from setup code running on another goroutine.
type Registry struct {
    mu       sync.RWMutex
    handlers map[string]Handler
}

func NewRegistry() *Registry { return &Registry{handlers: make(map[string]Handler)} }

// Register binds name to h, replacing any previous handler. A nil h removes it.
func (r *Registry) Register(name string, h Handler) {
    r.mu.Lock()
    defer r.mu.Unlock()
    if h == nil {
        delete(r.handlers, name)
        return
    }
    r.handlers[name] = h
}

func (r *Registry) Unregister(name string) { r.Register(name, nil) }

// Lookup returns the handler bound to name.
func (r *Registry) Lookup(name string) (Handler, bool) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    h, ok := r.handlers[name]
    return h, ok
}

// Names lists registered functions in sorted order.
func (r *Registry) Names() []string {
    r.mu.RLock()
    out := make([]string, 0, len(r.handlers))
    for n := range r.handlers { out = append(out, n) }
    r.mu.RUnlock()
    sort.Strings(out)
    return out
}

// Dispatch decodes one frame received on conn and runs its handler.
// The name is resolved before the arguments are parsed, so a frame for an
// unknown function fails with ErrUnknownFunction even if its body is malformed.
func (r *Registry) Dispatch(conn conntable.Handle, data []byte) error {
    rd := reader{buf: data}
    name, err := rd.name()
    if err != nil { return err }
    h, ok := r.Lookup(name)
    if !ok {
        return fmt.Errorf("%w: %q", ErrUnknownFunction, name)
    }
    args, err := rd.args(name)
    if err != nil { return err }
    return invoke(h, &Call{Conn: conn, Name: name, Args: args})
}

func invoke(h Handler, c *Call) (err error) {
    defer func() {
        if p := recover(); p != nil {
            err = &HandlerError{Func: c.Name, Conn: c.Conn, Err: fmt.Errorf("panic: %v", p)}
        }
    }()
    if herr := h(c); herr != nil {
        return &HandlerError{Func: c.Name, Conn: c.Conn, Err: herr}
    }
    return nil
}
