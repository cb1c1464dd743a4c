package netsys

import (
    "github.com/nem0/lumixengine-net/pkg/conntable"
    "github.com/nem0/lumixengine-net/pkg/transport"
)

// EventKind classifies an Event.
type EventKind = transport.EventType

const (
    EventNone       = transport.EventNone
    EventConnect    = transport.EventConnect
    EventDisconnect = transport.EventDisconnect
    EventReceive    = transport.EventReceive
)

// Event is a transport event resolved to a connection handle.
// Channel and Payload are set for EventReceive only.
type Event struct {
    Kind    EventKind
    Conn    conntable.Handle
    Channel Channel
    Payload []byte
}

// Callbacks receive dispatched events. Nil fields are skipped. Payload slices
// are owned by the callee.
type Callbacks struct {
    OnConnect      func(conn conntable.Handle)
    OnDisconnect   func(conn conntable.Handle)
    OnDataReceived func(conn conntable.Handle, ch Channel, payload []byte)
    // OnEvent sees every event, including RPC traffic, before the specific callback.
    OnEvent func(ev Event)
}

func (c *Callbacks) event(ev Event) {
    if c.OnEvent != nil { c.OnEvent(ev) }
}

func (c *Callbacks) connect(h conntable.Handle) {
    if c.OnConnect != nil { c.OnConnect(h) }
}

func (c *Callbacks) disconnect(h conntable.Handle) {
    if c.OnDisconnect != nil { c.OnDisconnect(h) }
}

func (c *Callbacks) data(h conntable.Handle, ch Channel, payload []byte) {
    if c.OnDataReceived != nil { c.OnDataReceived(h, ch, payload) }
}
