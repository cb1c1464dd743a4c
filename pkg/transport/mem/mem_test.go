package mem

import (
    "errors"
    "testing"

    "github.com/nem0/lumixengine-net/pkg/transport"
)

func setup(t *testing.T) (*Network, transport.Host, transport.Host) {
    t.Helper()
    n := New()
    if err := n.Init(); err != nil { t.Fatalf("init: %v", err) }
    srv, err := n.CreateHost("0.0.0.0:7000", 2, 3)
    if err != nil { t.Fatalf("server: %v", err) }
    cli, err := n.CreateHost("", 4, 3)
    if err != nil { t.Fatalf("client: %v", err) }
    return n, srv, cli
}

func next(t *testing.T, h transport.Host, want transport.EventType) transport.Event {
    t.Helper()
    ev, err := h.Service(0)
    if err != nil { t.Fatalf("service: %v", err) }
    if ev.Type != want { t.Fatalf("event = %v, want %v", ev.Type, want) }
    return ev
}

func TestConnectSendDisconnect(t *testing.T) {
    _, srv, cli := setup(t)
    p, err := cli.Connect("localhost:7000", 3)
    if err != nil { t.Fatalf("connect: %v", err) }
    sp := next(t, srv, transport.EventConnect).Peer
    if got := next(t, cli, transport.EventConnect).Peer; got.ID() != p.ID() { t.Fatalf("client peer mismatch") }

    if err := p.Send(2, []byte("abc"), true); err != nil { t.Fatalf("send: %v", err) }
    ev := next(t, srv, transport.EventReceive)
    if ev.Peer.ID() != sp.ID() || ev.Channel != 2 || string(ev.Data) != "abc" { t.Fatalf("receive = %+v", ev) }
    if s := cli.Stats(); s.BytesSent != 3 { t.Fatalf("client stats = %+v", s) }
    if s := srv.Stats(); s.BytesReceived != 3 { t.Fatalf("server stats = %+v", s) }

    if err := p.Send(3, nil, true); !errors.Is(err, transport.ErrBadChannel) { t.Fatalf("bad channel: %v", err) }

    p.Disconnect()
    next(t, srv, transport.EventDisconnect)
    next(t, cli, transport.EventDisconnect)
    if err := p.Send(0, []byte("x"), false); !errors.Is(err, transport.ErrNotConnected) { t.Fatalf("send after close: %v", err) }
    next(t, srv, transport.EventNone)
}

func TestResetNotifiesRemoteOnly(t *testing.T) {
    _, srv, cli := setup(t)
    p, _ := cli.Connect("127.0.0.1:7000", 3)
    next(t, srv, transport.EventConnect)
    next(t, cli, transport.EventConnect)
    p.Reset()
    next(t, srv, transport.EventDisconnect)
    next(t, cli, transport.EventNone)
}

func TestConnectFailures(t *testing.T) {
    n, srv, cli := setup(t)
    p, err := cli.Connect("localhost:7999", 3)
    if err != nil { t.Fatalf("connect: %v", err) }
    if ev := next(t, cli, transport.EventDisconnect); ev.Peer.ID() != p.ID() { t.Fatalf("wrong peer") }

    // server capacity is 2
    cli.Connect("localhost:7000", 3)
    cli.Connect("localhost:7000", 3)
    cli.Connect("localhost:7000", 3)
    next(t, srv, transport.EventConnect)
    next(t, srv, transport.EventConnect)
    next(t, srv, transport.EventNone)
    next(t, cli, transport.EventConnect)
    next(t, cli, transport.EventConnect)
    next(t, cli, transport.EventDisconnect)

    if _, err := n.CreateHost(":7000", 1, 3); !errors.Is(err, ErrAddrInUse) { t.Fatalf("double bind: %v", err) }
}

func TestDestroyResetsPeersAndUnbinds(t *testing.T) {
    n, srv, cli := setup(t)
    cli.Connect("localhost:7000", 3)
    next(t, srv, transport.EventConnect)
    next(t, cli, transport.EventConnect)

    if err := srv.Destroy(); err != nil { t.Fatalf("destroy: %v", err) }
    if err := srv.Destroy(); err != nil { t.Fatalf("destroy twice: %v", err) }
    next(t, cli, transport.EventDisconnect)
    if _, err := srv.Service(0); !errors.Is(err, transport.ErrHostDestroyed) { t.Fatalf("service after destroy: %v", err) }
    if _, err := n.CreateHost(":7000", 1, 3); err != nil { t.Fatalf("rebind: %v", err) }
}

func TestNotInitialized(t *testing.T) {
    n := New()
    if _, err := n.CreateHost("", 1, 1); !errors.Is(err, transport.ErrNotInitialized) { t.Fatalf("err = %v", err) }
    if err := n.Deinit(); !errors.Is(err, transport.ErrNotInitialized) { t.Fatalf("deinit = %v", err) }
}
