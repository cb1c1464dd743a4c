// Package conntable maps small integer connection handles to transport peers.
//
// Handles are slot indexes. A freed slot is reused by the next allocation and
// the table is never compacted, so a live handle never changes meaning.
package conntable

import (
    "errors"
    "fmt"

    "github.com/nem0/lumixengine-net/pkg/transport"
)

// Handle identifies a logical connection.
type Handle int32

// Invalid is the reserved "no connection" handle.
const Invalid Handle = -1

// ErrInvalidConnection reports an out-of-range or free handle.
var ErrInvalidConnection = errors.New("invalid connection")

// Role records which side initiated the connection.
type Role uint8

const (
    RoleServer Role = iota // accepted by the server host
    RoleClient             // initiated through Connect
)

func (r Role) String() string {
    if r == RoleClient { return "client" }
    return "server"
}

// State tracks the handshake of a client-initiated connection.
type State uint8

const (
    StatePending State = iota
    StateConnected
)

func (s State) String() string {
    if s == StateConnected { return "connected" }
    return "pending"
}

// Slot is one table entry. A nil Peer marks the slot free.
type Slot struct {
    Peer  transport.Peer
    Role  Role
    State State
}

func (s Slot) free() bool { return s.Peer == nil }

// Table is not safe for concurrent use; it is owned by a single dispatcher.
type Table struct {
    slots []Slot
}

func New() *Table { return &Table{} }

// Len returns the number of slots, free ones included.
func (t *Table) Len() int { return len(t.slots) }

// Allocate returns the first free slot, appending one when none is free.
// A slot only counts as taken once Assign stores a peer in it.
func (t *Table) Allocate() Handle {
    for i := range t.slots {
        if t.slots[i].free() { return Handle(i) }
    }
    t.slots = append(t.slots, Slot{})
    return Handle(len(t.slots) - 1)
}

// Assign stores peer in slot h.
func (t *Table) Assign(h Handle, peer transport.Peer, role Role, state State) error {
    if h < 0 || int(h) >= len(t.slots) {
        return fmt.Errorf("%w: %d", ErrInvalidConnection, h)
    }
    if peer == nil {
        return fmt.Errorf("conntable: assign nil peer to %d", h)
    }
    t.slots[h] = Slot{Peer: peer, Role: role, State: state}
    return nil
}

// Lookup returns the handle holding the peer with id, or Invalid.
// It is a linear scan; connection counts are small enough that an index is not
// worth keeping in sync.
func (t *Table) Lookup(id transport.PeerID) Handle {
    for i := range t.slots {
        if p := t.slots[i].Peer; p != nil && p.ID() == id {
            return Handle(i)
        }
    }
    return Invalid
}

// Valid reports whether h names a live slot.
func (t *Table) Valid(h Handle) bool {
    return h >= 0 && int(h) < len(t.slots) && !t.slots[h].free()
}

// Get returns the live slot h.
func (t *Table) Get(h Handle) (Slot, error) {
    if !t.Valid(h) {
        return Slot{}, fmt.Errorf("%w: %d", ErrInvalidConnection, h)
    }
    return t.slots[h], nil
}

// Peer returns the transport peer of the live slot h.
func (t *Table) Peer(h Handle) (transport.Peer, error) {
    s, err := t.Get(h)
    if err != nil { return nil, err }
    return s.Peer, nil
}

// MarkConnected moves a pending slot to StateConnected.
func (t *Table) MarkConnected(h Handle) error {
    if !t.Valid(h) {
        return fmt.Errorf("%w: %d", ErrInvalidConnection, h)
    }
    t.slots[h].State = StateConnected
    return nil
}

// Free releases slot h. Freeing an already free slot is a no-op.
func (t *Table) Free(h Handle) error {
    if h < 0 || int(h) >= len(t.slots) {
        return fmt.Errorf("%w: %d", ErrInvalidConnection, h)
    }
    t.slots[h] = Slot{}
    return nil
}

// Live returns the live handles in ascending order.
func (t *Table) Live() []Handle {
    var out []Handle
    for i := range t.slots {
        if !t.slots[i].free() { out = append(out, Handle(i)) }
    }
    return out
}
