package netsys

import (
    "net"
    "testing"
    "time"

    "go.uber.org/zap"
    "go.uber.org/zap/zaptest/observer"

    "github.com/nem0/lumixengine-net/pkg/transport"
)

// fakeNet is a scripted transport that counts every peer send.
type fakeNet struct {
    initErr  error
    bindErr  error
    inited   int
    deinited int
    sends    int
    hosts    []*fakeHost
}

func (n *fakeNet) Kind() transport.Kind { return transport.KindUnknown }

func (n *fakeNet) Init() error {
    if n.initErr != nil { return n.initErr }
    n.inited++
    return nil
}

func (n *fakeNet) Deinit() error { n.deinited++; return nil }

func (n *fakeNet) CreateHost(bind string, maxPeers, channels int) (transport.Host, error) {
    if bind != "" && n.bindErr != nil { return nil, n.bindErr }
    h := &fakeHost{net: n, bind: bind}
    n.hosts = append(n.hosts, h)
    return h, nil
}

type fakeHost struct {
    net       *fakeNet
    bind      string
    events    []transport.Event
    stats     transport.Stats
    destroyed bool
}

func (h *fakeHost) Service(time.Duration) (transport.Event, error) {
    if len(h.events) == 0 { return transport.Event{Type: transport.EventNone}, nil }
    ev := h.events[0]
    h.events = h.events[1:]
    return ev, nil
}

func (h *fakeHost) Connect(addr string, _ int) (transport.Peer, error) {
    return &fakePeer{id: transport.NewPeerID(), host: h, addr: addr}, nil
}

func (h *fakeHost) Stats() transport.Stats { return h.stats }
func (h *fakeHost) Addr() net.Addr         { return &net.UDPAddr{} }
func (h *fakeHost) Destroy() error         { h.destroyed = true; return nil }

func (h *fakeHost) inject(ev transport.Event) { h.events = append(h.events, ev) }

// accept simulates an inbound connection on a server host.
func (h *fakeHost) accept() *fakePeer {
    p := &fakePeer{id: transport.NewPeerID(), host: h, addr: "remote"}
    h.inject(transport.Event{Type: transport.EventConnect, Peer: p})
    return p
}

type sent struct {
    ch       uint8
    data     []byte
    reliable bool
}

type fakePeer struct {
    id          transport.PeerID
    host        *fakeHost
    addr        string
    sent        []sent
    disconnects int
    resets      int
}

func (p *fakePeer) ID() transport.PeerID { return p.id }
func (p *fakePeer) Addr() string         { return p.addr }

func (p *fakePeer) Send(ch uint8, data []byte, reliable bool) error {
    p.host.net.sends++
    p.sent = append(p.sent, sent{ch: ch, data: append([]byte(nil), data...), reliable: reliable})
    return nil
}

func (p *fakePeer) Disconnect() { p.disconnects++ }
func (p *fakePeer) Reset()      { p.resets++ }

func (p *fakePeer) receive(ch uint8, data []byte) {
    p.host.inject(transport.Event{Type: transport.EventReceive, Peer: p, Channel: ch, Data: data})
}

// newFakeSystem builds a System over a fakeNet with an observed logger.
func newFakeSystem(t *testing.T, opts Options) (*System, *fakeNet, *observer.ObservedLogs) {
    t.Helper()
    core, logs := observer.New(zap.DebugLevel)
    opts.Logger = zap.New(core)
    n := &fakeNet{}
    s, err := New(n, opts)
    if err != nil { t.Fatalf("new: %v", err) }
    t.Cleanup(func() { _ = s.Close() })
    return s, n, logs
}

func connectEvent(p *fakePeer) transport.Event {
    return transport.Event{Type: transport.EventConnect, Peer: p}
}

func disconnectEvent(p *fakePeer) transport.Event {
    return transport.Event{Type: transport.EventDisconnect, Peer: p}
}
