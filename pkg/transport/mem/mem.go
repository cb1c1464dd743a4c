// Package mem is an in-process transport. Hosts bind to a port on a shared
// hub and deliver to each other without touching the network, so everything
// above the transport can be tested deterministically. Events become visible
// on the next Service call of the receiving host.
package mem

import (
    "errors"
    "fmt"
    "net"
    "sync"
    "sync/atomic"
    "time"

    "github.com/nem0/lumixengine-net/pkg/transport"
)

var ErrAddrInUse = errors.New("mem: address already in use")

// Network is a hub of in-process hosts keyed by port.
type Network struct {
    mu     sync.Mutex
    inited int
    hosts  map[string]*host
}

func New() *Network { return &Network{hosts: make(map[string]*host)} }

func (n *Network) Kind() transport.Kind { return transport.KindMem }

func (n *Network) Init() error {
    n.mu.Lock(); defer n.mu.Unlock()
    n.inited++
    return nil
}

func (n *Network) Deinit() error {
    n.mu.Lock(); defer n.mu.Unlock()
    if n.inited == 0 { return transport.ErrNotInitialized }
    n.inited--
    return nil
}

// CreateHost binds bindAddr ("host:port"; only the port is significant).
// An empty bindAddr makes an unbound client host.
func (n *Network) CreateHost(bindAddr string, maxPeers, channelCount int) (transport.Host, error) {
    n.mu.Lock()
    defer n.mu.Unlock()
    if n.inited == 0 { return nil, transport.ErrNotInitialized }
    h := &host{
        net:      n,
        channels: channelCount,
        queue:    transport.NewQueue(),
        peers:    transport.NewManager(maxPeers),
    }
    if bindAddr == "" {
        h.addr = memAddr("mem:client")
        return h, nil
    }
    key, err := portOf(bindAddr)
    if err != nil { return nil, err }
    if _, ok := n.hosts[key]; ok {
        return nil, fmt.Errorf("%w: %s", ErrAddrInUse, bindAddr)
    }
    h.key = key
    h.addr = memAddr("mem:" + key)
    n.hosts[key] = h
    return h, nil
}

func (n *Network) lookup(address string) *host {
    key, err := portOf(address)
    if err != nil { return nil }
    n.mu.Lock(); defer n.mu.Unlock()
    return n.hosts[key]
}

func (n *Network) unbind(h *host) {
    if h.key == "" { return }
    n.mu.Lock()
    if n.hosts[h.key] == h { delete(n.hosts, h.key) }
    n.mu.Unlock()
}

func portOf(addr string) (string, error) {
    _, port, err := net.SplitHostPort(addr)
    if err != nil { return "", fmt.Errorf("mem: address %q: %w", addr, err) }
    return port, nil
}

type memAddr string

func (a memAddr) Network() string { return "mem" }
func (a memAddr) String() string  { return string(a) }

type host struct {
    net      *Network
    key      string
    addr     memAddr
    channels int
    queue    *transport.Queue
    peers    *transport.Manager

    sent, recv atomic.Uint64
    destroyed  atomic.Bool
}

func (h *host) Service(timeout time.Duration) (transport.Event, error) {
    if h.destroyed.Load() { return transport.Event{}, transport.ErrHostDestroyed }
    return h.queue.Pop(timeout), nil
}

// Connect links a new peer to the host bound at address. Both hosts see
// EventConnect; an unreachable or full target yields EventDisconnect instead.
func (h *host) Connect(address string, channelCount int) (transport.Peer, error) {
    if h.destroyed.Load() { return nil, transport.ErrHostDestroyed }
    local := &peer{id: transport.NewPeerID(), host: h, channels: channelCount, addr: address}
    if err := h.peers.Add(local); err != nil { return nil, err }

    dst := h.net.lookup(address)
    if dst == nil || dst.destroyed.Load() {
        h.peers.Remove(local.id)
        h.queue.Push(transport.Event{Type: transport.EventDisconnect, Peer: local})
        return local, nil
    }
    remote := &peer{id: transport.NewPeerID(), host: dst, channels: min(channelCount, dst.channels), addr: string(h.addr)}
    if err := dst.peers.Add(remote); err != nil {
        h.peers.Remove(local.id)
        h.queue.Push(transport.Event{Type: transport.EventDisconnect, Peer: local})
        return local, nil
    }
    local.channels = remote.channels
    link(local, remote)
    dst.queue.Push(transport.Event{Type: transport.EventConnect, Peer: remote})
    h.queue.Push(transport.Event{Type: transport.EventConnect, Peer: local})
    return local, nil
}

func (h *host) Stats() transport.Stats {
    return transport.Stats{BytesSent: h.sent.Load(), BytesReceived: h.recv.Load()}
}

func (h *host) Addr() net.Addr { return h.addr }

func (h *host) Destroy() error {
    if !h.destroyed.CompareAndSwap(false, true) { return nil }
    h.peers.ResetAll()
    h.net.unbind(h)
    h.queue.Close()
    return nil
}

// peer is one end of a linked pair. Both ends share mu.
type peer struct {
    id       transport.PeerID
    host     *host
    channels int
    addr     string

    mu     *sync.Mutex
    remote *peer
}

func link(a, b *peer) {
    mu := new(sync.Mutex)
    a.mu, b.mu = mu, mu
    a.remote, b.remote = b, a
}

func (p *peer) ID() transport.PeerID { return p.id }
func (p *peer) Addr() string         { return p.addr }

func (p *peer) Send(channel uint8, data []byte, _ bool) error {
    if int(channel) >= p.channels { return transport.ErrBadChannel }
    if p.mu == nil { return transport.ErrNotConnected }
    p.mu.Lock()
    r := p.remote
    p.mu.Unlock()
    if r == nil { return transport.ErrNotConnected }
    buf := append([]byte(nil), data...)
    p.host.sent.Add(uint64(len(buf)))
    r.host.recv.Add(uint64(len(buf)))
    r.host.queue.Push(transport.Event{Type: transport.EventReceive, Peer: r, Channel: channel, Data: buf})
    return nil
}

// unlink detaches both ends and returns the former remote, or nil if the
// pair was already broken.
func (p *peer) unlink() *peer {
    if p.mu == nil { return nil }
    p.mu.Lock()
    defer p.mu.Unlock()
    r := p.remote
    if r == nil { return nil }
    p.remote, r.remote = nil, nil
    p.host.peers.Remove(p.id)
    r.host.peers.Remove(r.id)
    return r
}

// Disconnect closes the pair gracefully; both hosts report EventDisconnect.
func (p *peer) Disconnect() {
    r := p.unlink()
    if r == nil { return }
    r.host.queue.Push(transport.Event{Type: transport.EventDisconnect, Peer: r})
    p.host.queue.Push(transport.Event{Type: transport.EventDisconnect, Peer: p})
}

// Reset drops the pair; only the remote host is notified.
func (p *peer) Reset() {
    r := p.unlink()
    if r == nil { return }
    r.host.queue.Push(transport.Event{Type: transport.EventDisconnect, Peer: r})
}
