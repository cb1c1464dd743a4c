package transport

import (
    "errors"
    "net"
    "time"
)

// Kind identifies the transport implementation.
type Kind int

const (
    KindUnknown Kind = iota
    KindQUIC
    KindMem
)

func (k Kind) String() string {
    switch k {
    case KindQUIC:
        return "quic"
    case KindMem:
        return "mem"
    default:
        return "unknown"
    }
}

// EventType classifies what a Host reported from Service.
type EventType int

const (
    EventNone EventType = iota
    EventConnect
    EventDisconnect
    EventReceive
)

func (t EventType) String() string {
    switch t {
    case EventConnect:
        return "connect"
    case EventDisconnect:
        return "disconnect"
    case EventReceive:
        return "receive"
    default:
        return "none"
    }
}

// Event is one transport notification. Channel and Data are set for EventReceive only.
type Event struct {
    Type    EventType
    Peer    Peer
    Channel uint8
    Data    []byte
}

// Stats are cumulative byte counters of a host since it was created.
type Stats struct {
    BytesSent     uint64
    BytesReceived uint64
}

var (
    ErrNotInitialized = errors.New("transport: network not initialized")
    ErrHostDestroyed  = errors.New("transport: host destroyed")
    ErrHostFull       = errors.New("transport: host has no free peer slots")
    ErrNotConnected   = errors.New("transport: peer not connected")
    ErrBadChannel     = errors.New("transport: channel out of range")
)

// Network is the process-wide transport library state.
type Network interface {
    Kind() Kind
    // Init prepares library state. Every successful Init is paired with one Deinit.
    Init() error
    Deinit() error
    // CreateHost binds a host. An empty bindAddr creates an unbound client host.
    CreateHost(bindAddr string, maxPeers, channelCount int) (Host, error)
}

// Host owns peers and reports their events in arrival order.
type Host interface {
    // Service returns the next queued event, waiting at most timeout.
    // A zero timeout never blocks; EventNone means nothing was queued.
    Service(timeout time.Duration) (Event, error)
    // Connect starts an asynchronous connect. The returned peer reports
    // EventConnect on success or EventDisconnect on failure.
    Connect(address string, channelCount int) (Peer, error)
    Stats() Stats
    Addr() net.Addr
    // Destroy resets all peers and releases the host.
    Destroy() error
}

// Peer is one connection endpoint owned by a Host.
type Peer interface {
    ID() PeerID
    Addr() string
    Send(channel uint8, data []byte, reliable bool) error
    // Disconnect requests a graceful close; EventDisconnect follows on the owning host.
    Disconnect()
    // Reset drops the connection immediately without a local event.
    Reset()
}
