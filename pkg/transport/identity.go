package transport

import (
    "fmt"
    "sync/atomic"
)

// PeerID is an opaque peer identity, unique within the process for the
// lifetime of the program. It never aliases a recycled peer object.
type PeerID uint64

var lastPeerID atomic.Uint64

// NewPeerID returns a fresh identity. Zero is never returned.
func NewPeerID() PeerID { return PeerID(lastPeerID.Add(1)) }

func (id PeerID) String() string { return fmt.Sprintf("peer-%d", uint64(id)) }
