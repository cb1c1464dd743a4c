package netsys

import (
    "errors"
    "fmt"
    "net"

    "go.uber.org/zap"

    "github.com/nem0/lumixengine-net/pkg/conntable"
    "github.com/nem0/lumixengine-net/pkg/protocol/rpc"
    "github.com/nem0/lumixengine-net/pkg/transport"
)

// System owns the hosts and the connection table of one networking stack.
type System struct {
    net   transport.Network
    opts  Options
    log   *zap.Logger
    table *conntable.Table
    bw    *BandwidthMonitor

    server transport.Host
    client transport.Host

    polling bool
    closed  bool
}

// New initializes the transport. On failure no System is returned and the
// error wraps ErrTransportInit.
func New(network transport.Network, opts Options) (*System, error) {
    opts = opts.withDefaults()
    if err := network.Init(); err != nil {
        opts.Logger.Error("failed to initialize network", zap.Stringer("kind", network.Kind()), zap.Error(err))
        return nil, fmt.Errorf("%w: %w", ErrTransportInit, err)
    }
    return &System{
        net:   network,
        opts:  opts,
        log:   opts.Logger,
        table: conntable.New(),
        bw:    NewBandwidthMonitor(opts.BandwidthInterval, opts.Sink),
    }, nil
}

// Close resets every live connection, destroys both hosts and releases the
// transport. It is idempotent; every later operation fails with ErrClosed.
func (s *System) Close() error {
    if s.closed { return nil }
    s.closed = true
    for _, h := range s.table.Live() {
        if p, err := s.table.Peer(h); err == nil { p.Reset() }
        _ = s.table.Free(h)
    }
    var errs []error
    if s.server != nil {
        errs = append(errs, s.server.Destroy())
        s.server = nil
    }
    if s.client != nil {
        errs = append(errs, s.client.Destroy())
        s.client = nil
    }
    errs = append(errs, s.net.Deinit())
    return errors.Join(errs...)
}

// State reports whether h is still connecting or connected.
func (s *System) State(h conntable.Handle) (conntable.State, error) {
    slot, err := s.table.Get(h)
    if err != nil { return 0, err }
    return slot.State, nil
}

// Stats is a snapshot of host counters and table occupancy.
type Stats struct {
    Server      transport.Stats
    Client      transport.Stats
    HasServer   bool
    HasClient   bool
    Connections int
    Slots       int
}

func (s *System) Stats() Stats {
    st := Stats{Connections: len(s.table.Live()), Slots: s.table.Len()}
    if s.server != nil {
        st.HasServer, st.Server = true, s.server.Stats()
    }
    if s.client != nil {
        st.HasClient, st.Client = true, s.client.Stats()
    }
    return st
}

// Registry returns the handler registry frames are dispatched to.
func (s *System) Registry() *rpc.Registry { return s.opts.Registry }

// ServerAddr is the bound address of the server host, or nil.
func (s *System) ServerAddr() net.Addr {
    if s.server == nil { return nil }
    return s.server.Addr()
}
