package netsys

import (
    "errors"
    "strings"
    "testing"
    "time"

    "go.uber.org/zap/zapcore"

    "github.com/nem0/lumixengine-net/pkg/conntable"
    "github.com/nem0/lumixengine-net/pkg/protocol/rpc"
)

func TestNewTransportInitFailure(t *testing.T) {
    cause := errors.New("no sockets")
    s, err := New(&fakeNet{initErr: cause}, Options{})
    if s != nil { t.Fatalf("system returned on init failure") }
    if !errors.Is(err, ErrTransportInit) || !errors.Is(err, cause) { t.Fatalf("err = %v", err) }
}

func TestClosedSystemRefusesOperations(t *testing.T) {
    s, n, _ := newFakeSystem(t, Options{})
    if err := s.Close(); err != nil { t.Fatalf("close: %v", err) }
    if err := s.Close(); err != nil { t.Fatalf("second close: %v", err) }
    if n.deinited != 1 { t.Fatalf("deinit called %d times", n.deinited) }
    if err := s.CreateServer(7000, 4); !errors.Is(err, ErrClosed) { t.Fatalf("create server: %v", err) }
    if _, err := s.Connect("localhost", 7000); !errors.Is(err, ErrClosed) { t.Fatalf("connect: %v", err) }
    if err := s.Send(0, nil, true); !errors.Is(err, ErrClosed) { t.Fatalf("send: %v", err) }
    if err := s.Poll(0); !errors.Is(err, ErrClosed) { t.Fatalf("poll: %v", err) }
}

func TestCreateServerErrors(t *testing.T) {
    s, n, _ := newFakeSystem(t, Options{})
    n.bindErr = errors.New("address in use")
    if err := s.CreateServer(7000, 4); !errors.Is(err, ErrBind) { t.Fatalf("bind failure: %v", err) }
    n.bindErr = nil
    if err := s.CreateServer(7000, 4); err != nil { t.Fatalf("retry: %v", err) }
    if n.hosts[0].bind != "0.0.0.0:7000" { t.Fatalf("bind addr = %q", n.hosts[0].bind) }
    if err := s.CreateServer(7001, 4); !errors.Is(err, ErrServerExists) { t.Fatalf("second server: %v", err) }
}

func TestInvalidHandleNeverReachesTransport(t *testing.T) {
    s, n, logs := newFakeSystem(t, Options{})
    for _, h := range []conntable.Handle{-1, 0, 5} {
        if err := s.Send(h, []byte("x"), true); !errors.Is(err, ErrInvalidConnection) { t.Fatalf("send %d: %v", h, err) }
        if err := s.SendString(h, "x", true); !errors.Is(err, ErrInvalidConnection) { t.Fatalf("send string %d: %v", h, err) }
        if err := s.CallRPC(h, "f", 1); !errors.Is(err, ErrInvalidConnection) { t.Fatalf("call %d: %v", h, err) }
        if err := s.Disconnect(h); !errors.Is(err, ErrInvalidConnection) { t.Fatalf("disconnect %d: %v", h, err) }
    }
    if n.sends != 0 { t.Fatalf("transport saw %d sends", n.sends) }
    if logs.FilterMessageSnippet("invalid connection").Len() == 0 { t.Fatalf("invalid handle not logged") }
}

func TestCallRPCEncodeFailuresSendNothing(t *testing.T) {
    s, n, _ := newFakeSystem(t, Options{MaxFrameSize: 64})
    h, err := s.Connect("localhost", 7000)
    if err != nil { t.Fatalf("connect: %v", err) }

    err = s.CallRPC(h, "f", "ok", struct{}{})
    if !errors.Is(err, rpc.ErrUnsupportedArgumentType) { t.Fatalf("unsupported: %v", err) }
    if err := s.CallRPC(h, "f", strings.Repeat("x", 100)); !errors.Is(err, rpc.ErrFrameTooLarge) { t.Fatalf("too large: %v", err) }
    if n.sends != 0 { t.Fatalf("transport saw %d sends", n.sends) }

    if err := s.CallRPC(h, "f", "ok", 1, false); err != nil { t.Fatalf("valid call: %v", err) }
    p, _ := s.table.Peer(h)
    got := p.(*fakePeer).sent
    if len(got) != 1 || got[0].ch != uint8(ChannelRPC) || !got[0].reliable { t.Fatalf("sent = %+v", got) }
}

func TestSendChannels(t *testing.T) {
    s, _, _ := newFakeSystem(t, Options{})
    h, _ := s.Connect("localhost", 7000)
    p, _ := s.table.Peer(h)
    fp := p.(*fakePeer)

    if err := s.Send(h, []byte{1, 2}, false); err != nil { t.Fatalf("send: %v", err) }
    if err := s.SendString(h, "hi", true); err != nil { t.Fatalf("send string: %v", err) }
    if fp.sent[0].ch != uint8(ChannelUser) || fp.sent[0].reliable { t.Fatalf("user send = %+v", fp.sent[0]) }
    if fp.sent[1].ch != uint8(ChannelString) || string(fp.sent[1].data) != "hi\x00" { t.Fatalf("string send = %+v", fp.sent[1]) }
    if err := s.SendString(h, "ab\x00cd", true); err != nil { t.Fatalf("send string with NUL: %v", err) }
    if string(fp.sent[2].data) != "ab\x00" { t.Fatalf("embedded NUL not truncated: %q", fp.sent[2].data) }
}

func TestPollWithoutEventsInvokesNothing(t *testing.T) {
    calls := 0
    cb := Callbacks{
        OnConnect:      func(conntable.Handle) { calls++ },
        OnDisconnect:   func(conntable.Handle) { calls++ },
        OnDataReceived: func(conntable.Handle, Channel, []byte) { calls++ },
        OnEvent:        func(Event) { calls++ },
    }
    s, _, _ := newFakeSystem(t, Options{Callbacks: cb})
    if err := s.Poll(0); err != nil { t.Fatalf("poll without hosts: %v", err) }
    s.CreateServer(7000, 4)
    s.Connect("localhost", 7001)
    if err := s.Poll(16 * time.Millisecond); err != nil { t.Fatalf("poll: %v", err) }
    if calls != 0 { t.Fatalf("%d callbacks fired", calls) }
}

func TestServerConnectDisconnectReusesHandle(t *testing.T) {
    var events []Event
    var connects, disconnects []conntable.Handle
    s, n, _ := newFakeSystem(t, Options{Callbacks: Callbacks{
        OnConnect:    func(h conntable.Handle) { connects = append(connects, h) },
        OnDisconnect: func(h conntable.Handle) { disconnects = append(disconnects, h) },
        OnEvent:      func(ev Event) { events = append(events, ev) },
    }})
    s.CreateServer(7000, 4)
    srv := n.hosts[0]
    a, b := srv.accept(), srv.accept()
    s.Poll(0)
    if len(connects) != 2 || connects[0] != 0 || connects[1] != 1 { t.Fatalf("connects = %v", connects) }

    srv.inject(disconnectEvent(a))
    s.Poll(0)
    if len(disconnects) != 1 || disconnects[0] != 0 { t.Fatalf("disconnects = %v", disconnects) }
    if s.table.Valid(0) { t.Fatalf("handle 0 still live") }

    srv.accept()
    s.Poll(0)
    if connects[2] != 0 { t.Fatalf("reconnect got handle %d", connects[2]) }
    if h := s.table.Lookup(b.ID()); h != 1 { t.Fatalf("live handle moved to %d", h) }
    if len(events) != 4 { t.Fatalf("OnEvent saw %d events", len(events)) }

    // disconnect for a peer that is no longer known is ignored
    srv.inject(disconnectEvent(a))
    s.Poll(0)
    if len(disconnects) != 1 { t.Fatalf("stale disconnect dispatched") }
}

func TestClientConnectCompletesPendingHandle(t *testing.T) {
    var connected []conntable.Handle
    s, n, logs := newFakeSystem(t, Options{Callbacks: Callbacks{OnConnect: func(h conntable.Handle) { connected = append(connected, h) }}})
    h, err := s.Connect("localhost", 7000)
    if err != nil { t.Fatalf("connect: %v", err) }
    if st, _ := s.State(h); st != conntable.StatePending { t.Fatalf("state = %v", st) }

    cli := n.hosts[0]
    p, _ := s.table.Peer(h)
    cli.inject(connectEvent(p.(*fakePeer)))
    stranger := &fakePeer{id: 999999, host: cli}
    cli.inject(connectEvent(stranger))
    s.Poll(0)

    if st, _ := s.State(h); st != conntable.StateConnected { t.Fatalf("state = %v", st) }
    if len(connected) != 1 || connected[0] != h { t.Fatalf("connected = %v", connected) }
    if stranger.resets != 1 { t.Fatalf("unknown client peer not reset") }
    if logs.FilterMessage("connect from unknown client peer").Len() != 1 { t.Fatalf("warning missing") }
}

func TestRPCDispatchSurvivesBadFrames(t *testing.T) {
    reg := rpc.NewRegistry()
    var got []string
    reg.Register("log", func(c *rpc.Call) error {
        s, err := c.StringArg(0)
        got = append(got, s)
        return err
    })
    s, n, logs := newFakeSystem(t, Options{Registry: reg})
    s.CreateServer(7000, 4)
    p := n.hosts[0].accept()

    unknown, _ := rpc.EncodeAny("missing", 0, 1)
    good1, _ := rpc.EncodeAny("log", 0, "first")
    bad, _ := rpc.EncodeAny("log", 0, "x")
    bad[7] = 9 // first tag byte after name and argc
    good2, _ := rpc.EncodeAny("log", 0, "second")
    wrongType, _ := rpc.EncodeAny("log", 0, 2)
    for _, f := range [][]byte{unknown, good1, bad, good2, wrongType} {
        p.receive(uint8(ChannelRPC), f)
    }
    s.Poll(0)

    if len(got) != 3 || got[0] != "first" || got[1] != "second" { t.Fatalf("handler saw %v", got) }
    if logs.FilterMessage("unknown rpc function").Len() != 1 { t.Fatalf("unknown function not logged") }
    if logs.FilterMessage("rpc argument rejected").Len() != 1 { t.Fatalf("protocol violation not logged") }
    if logs.FilterMessage("rpc handler failed").Len() != 1 { t.Fatalf("handler error not logged") }
}

func TestReceiveRouting(t *testing.T) {
    type rx struct {
        h  conntable.Handle
        ch Channel
        b  string
    }
    var data []rx
    var all []Event
    s, n, logs := newFakeSystem(t, Options{Callbacks: Callbacks{
        OnDataReceived: func(h conntable.Handle, ch Channel, b []byte) { data = append(data, rx{h, ch, string(b)}) },
        OnEvent:        func(ev Event) { all = append(all, ev) },
    }})
    s.CreateServer(7000, 4)
    srv := n.hosts[0]
    p := srv.accept()
    p.receive(uint8(ChannelString), []byte("hi\x00"))
    p.receive(uint8(ChannelUser), []byte{1, 2, 3})
    p.receive(7, []byte{0})
    stranger := &fakePeer{id: 424242, host: srv}
    stranger.receive(uint8(ChannelUser), []byte{9})
    s.Poll(0)

    if len(data) != 2 { t.Fatalf("data = %+v", data) }
    if data[0].ch != ChannelString || PayloadString([]byte(data[0].b)) != "hi" { t.Fatalf("string = %+v", data[0]) }
    if data[1].ch != ChannelUser || data[1].b != "\x01\x02\x03" { t.Fatalf("user = %+v", data[1]) }
    // connect + three receives from the known peer
    if len(all) != 4 { t.Fatalf("OnEvent saw %d events", len(all)) }
    if logs.FilterLevelExact(zapcore.DPanicLevel).Len() != 1 { t.Fatalf("unknown channel not asserted") }
    if logs.FilterMessage("data from unknown peer dropped").Len() != 1 { t.Fatalf("unknown peer not logged") }
}

func TestReentrantCallsFromCallbacks(t *testing.T) {
    var s *System
    var pollErr error
    s, n, _ := newFakeSystem(t, Options{Callbacks: Callbacks{
        OnConnect: func(h conntable.Handle) {
            pollErr = s.Poll(0)
            if err := s.SendString(h, "welcome", true); err != nil { t.Errorf("send from callback: %v", err) }
            if _, err := s.Connect("other", 7001); err != nil { t.Errorf("connect from callback: %v", err) }
        },
    }})
    s.CreateServer(7000, 4)
    p := n.hosts[0].accept()
    if err := s.Poll(0); err != nil { t.Fatalf("poll: %v", err) }
    if !errors.Is(pollErr, ErrReentrantPoll) { t.Fatalf("nested poll: %v", pollErr) }
    if len(p.sent) != 1 || PayloadString(p.sent[0].data) != "welcome" { t.Fatalf("sent = %+v", p.sent) }
    if s.table.Len() != 2 { t.Fatalf("table len = %d", s.table.Len()) }
}

func TestDestroyServerResetsWithoutCallbacks(t *testing.T) {
    disconnects := 0
    s, n, _ := newFakeSystem(t, Options{Callbacks: Callbacks{OnDisconnect: func(conntable.Handle) { disconnects++ }}})
    s.CreateServer(7000, 4)
    srv := n.hosts[0]
    a := srv.accept()
    s.Poll(0)
    ch, _ := s.Connect("localhost", 7100)

    if err := s.DestroyServer(); err != nil { t.Fatalf("destroy: %v", err) }
    if err := s.DestroyServer(); err != nil { t.Fatalf("destroy twice: %v", err) }
    if a.resets != 1 || !srv.destroyed { t.Fatalf("server peer not reset or host kept") }
    if s.table.Valid(0) || !s.table.Valid(ch) { t.Fatalf("wrong slots freed") }
    if disconnects != 0 { t.Fatalf("callbacks fired on destroy") }
    if err := s.CreateServer(7000, 4); err != nil { t.Fatalf("recreate: %v", err) }
}

func TestCloseResetsEverything(t *testing.T) {
    s, n, _ := newFakeSystem(t, Options{})
    s.CreateServer(7000, 4)
    a := n.hosts[0].accept()
    s.Poll(0)
    h, _ := s.Connect("localhost", 7100)
    cp, _ := s.table.Peer(h)
    if err := s.Close(); err != nil { t.Fatalf("close: %v", err) }
    if a.resets != 1 || cp.(*fakePeer).resets != 1 { t.Fatalf("peers not reset") }
    for _, h := range n.hosts {
        if !h.destroyed { t.Fatalf("host not destroyed") }
    }
}

func TestStats(t *testing.T) {
    s, n, _ := newFakeSystem(t, Options{})
    s.CreateServer(7000, 4)
    n.hosts[0].stats.BytesSent = 10
    n.hosts[0].accept()
    s.Poll(0)
    st := s.Stats()
    if !st.HasServer || st.HasClient || st.Server.BytesSent != 10 || st.Connections != 1 { t.Fatalf("stats = %+v", st) }
}

func TestPayloadString(t *testing.T) {
    if PayloadString(nil) != "" || PayloadString([]byte("abc")) != "" { t.Fatalf("unterminated payload decoded") }
    if PayloadString([]byte{0}) != "" || PayloadString([]byte("a\x00")) != "a" { t.Fatalf("terminated payload mismatch") }
    if PayloadString([]byte("a\x00b\x00")) != "a" { t.Fatalf("text past the first NUL returned") }
}
