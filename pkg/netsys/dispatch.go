package netsys

import (
    "errors"
    "time"

    "go.uber.org/zap"

    "github.com/nem0/lumixengine-net/pkg/conntable"
    "github.com/nem0/lumixengine-net/pkg/protocol/rpc"
    "github.com/nem0/lumixengine-net/pkg/transport"
)

// Poll samples bandwidth, then drains the events queued on the server host
// and the client host and dispatches them one by one. Events caused by
// callbacks during this call are seen on a later Poll.
func (s *System) Poll(dt time.Duration) error {
    if s.closed { return ErrClosed }
    if s.polling {
        s.log.Error("poll called from inside a callback")
        return ErrReentrantPoll
    }
    s.polling = true
    defer func() { s.polling = false }()

    s.sampleBandwidth(dt)
    if h := s.server; h != nil {
        s.dispatchAll(h, conntable.RoleServer, s.drain(h))
    }
    if h := s.client; h != nil {
        s.dispatchAll(h, conntable.RoleClient, s.drain(h))
    }
    return nil
}

// drain collects what h has queued right now.
func (s *System) drain(h transport.Host) []transport.Event {
    var out []transport.Event
    for {
        ev, err := h.Service(0)
        if err != nil {
            s.log.Warn("host service failed", zap.Error(err))
            return out
        }
        if ev.Type == transport.EventNone { return out }
        out = append(out, ev)
    }
}

func (s *System) dispatchAll(h transport.Host, role conntable.Role, evs []transport.Event) {
    for _, ev := range evs {
        // a callback may have closed the system or replaced this host
        if s.closed || !s.owns(h, role) { return }
        s.handleEvent(role, ev)
    }
}

func (s *System) owns(h transport.Host, role conntable.Role) bool {
    if role == conntable.RoleServer { return s.server == h }
    return s.client == h
}

func (s *System) handleEvent(role conntable.Role, ev transport.Event) {
    switch ev.Type {
    case transport.EventConnect:
        s.handleConnect(role, ev.Peer)
    case transport.EventDisconnect:
        s.handleDisconnect(ev.Peer)
    case transport.EventReceive:
        s.handleReceive(ev)
    }
}

func (s *System) handleConnect(role conntable.Role, p transport.Peer) {
    var h conntable.Handle
    if role == conntable.RoleServer {
        h = s.table.Allocate()
        if err := s.table.Assign(h, p, conntable.RoleServer, conntable.StateConnected); err != nil {
            s.log.Error("can not store connection", zap.Stringer("peer", p.ID()), zap.Error(err))
            p.Reset()
            return
        }
    } else {
        h = s.table.Lookup(p.ID())
        if h == conntable.Invalid {
            s.log.Warn("connect from unknown client peer", zap.Stringer("peer", p.ID()), zap.String("addr", p.Addr()))
            p.Reset()
            return
        }
        _ = s.table.MarkConnected(h)
    }
    s.log.Info("connected", zap.Int32("conn", int32(h)), zap.Stringer("role", role), zap.String("addr", p.Addr()))
    s.opts.Callbacks.event(Event{Kind: EventConnect, Conn: h})
    s.opts.Callbacks.connect(h)
}

func (s *System) handleDisconnect(p transport.Peer) {
    h := s.table.Lookup(p.ID())
    if h == conntable.Invalid {
        s.log.Debug("disconnect for unknown peer", zap.Stringer("peer", p.ID()))
        return
    }
    _ = s.table.Free(h)
    s.log.Info("disconnected", zap.Int32("conn", int32(h)), zap.String("addr", p.Addr()))
    s.opts.Callbacks.event(Event{Kind: EventDisconnect, Conn: h})
    s.opts.Callbacks.disconnect(h)
}

func (s *System) handleReceive(ev transport.Event) {
    h := s.table.Lookup(ev.Peer.ID())
    if h == conntable.Invalid {
        s.log.Warn("data from unknown peer dropped", zap.Stringer("peer", ev.Peer.ID()), zap.Uint8("channel", ev.Channel))
        return
    }
    ch := Channel(ev.Channel)
    s.opts.Callbacks.event(Event{Kind: EventReceive, Conn: h, Channel: ch, Payload: ev.Data})
    switch ch {
    case ChannelRPC:
        if err := s.opts.Registry.Dispatch(h, ev.Data); err != nil {
            s.logRPCError(h, err)
        }
    case ChannelString, ChannelUser:
        s.opts.Callbacks.data(h, ch, ev.Data)
    default:
        s.log.DPanic("data on unknown channel", zap.Int32("conn", int32(h)), zap.Uint8("channel", ev.Channel))
    }
}

func (s *System) logRPCError(h conntable.Handle, err error) {
    fields := []zap.Field{zap.Int32("conn", int32(h)), zap.Error(err)}
    var he *rpc.HandlerError
    var ae *rpc.ArgError
    switch {
    case errors.As(err, &he):
        s.log.Error("rpc handler failed", append(fields, zap.String("func", he.Func))...)
    case errors.As(err, &ae):
        s.log.Error("rpc argument rejected", append(fields, zap.String("func", ae.Func), zap.Int("arg", ae.Index))...)
    case errors.Is(err, rpc.ErrUnknownFunction):
        s.log.Error("unknown rpc function", fields...)
    default:
        s.log.Error("malformed rpc frame", fields...)
    }
}

func (s *System) sampleBandwidth(dt time.Duration) {
    var hs []HostSample
    if s.server != nil {
        hs = append(hs, HostSample{Role: conntable.RoleServer.String(), Stats: s.server.Stats()})
    }
    if s.client != nil {
        hs = append(hs, HostSample{Role: conntable.RoleClient.String(), Stats: s.client.Stats()})
    }
    s.bw.Sample(dt, hs...)
}
