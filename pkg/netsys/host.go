package netsys

import (
    "fmt"
    "net"
    "strconv"

    "go.uber.org/zap"

    "github.com/nem0/lumixengine-net/pkg/conntable"
)

// CreateServer binds the passive host on port. It fails with ErrServerExists
// while a server host is alive and with ErrBind when the transport cannot
// bind; the latter may be retried.
func (s *System) CreateServer(port uint16, maxClients int) error {
    if s.closed { return ErrClosed }
    if s.server != nil { return ErrServerExists }
    addr := net.JoinHostPort(s.opts.BindHost, strconv.Itoa(int(port)))
    h, err := s.net.CreateHost(addr, maxClients, ChannelCount)
    if err != nil {
        s.log.Error("failed to create server host", zap.String("addr", addr), zap.Error(err))
        return fmt.Errorf("%w %s: %w", ErrBind, addr, err)
    }
    s.server = h
    s.log.Info("server listening", zap.Stringer("addr", h.Addr()), zap.Int("max_clients", maxClients))
    return nil
}

// DestroyServer resets the server's connections without callbacks and
// releases the host. It is a no-op when no server exists.
func (s *System) DestroyServer() error {
    if s.closed || s.server == nil { return nil }
    for _, h := range s.table.Live() {
        slot, err := s.table.Get(h)
        if err != nil || slot.Role != conntable.RoleServer { continue }
        slot.Peer.Reset()
        _ = s.table.Free(h)
    }
    err := s.server.Destroy()
    s.server = nil
    s.log.Info("server destroyed")
    return err
}

// Connect starts connecting to hostname:port through the shared client host,
// creating that host on first use. The handle is valid at once and stays in
// StatePending until the connect event arrives.
func (s *System) Connect(hostname string, port uint16) (conntable.Handle, error) {
    if s.closed { return conntable.Invalid, ErrClosed }
    if s.client == nil {
        h, err := s.net.CreateHost("", s.opts.ClientPeers, ChannelCount)
        if err != nil {
            s.log.Error("failed to create client host", zap.Error(err))
            return conntable.Invalid, fmt.Errorf("netsys: create client host: %w", err)
        }
        s.client = h
    }
    addr := net.JoinHostPort(hostname, strconv.Itoa(int(port)))
    p, err := s.client.Connect(addr, ChannelCount)
    if err != nil {
        s.log.Warn("connect failed", zap.String("addr", addr), zap.Error(err))
        return conntable.Invalid, fmt.Errorf("netsys: connect %s: %w", addr, err)
    }
    h := s.table.Allocate()
    if err := s.table.Assign(h, p, conntable.RoleClient, conntable.StatePending); err != nil {
        p.Reset()
        return conntable.Invalid, err
    }
    s.log.Debug("connecting", zap.Int32("conn", int32(h)), zap.String("addr", addr), zap.Stringer("peer", p.ID()))
    return h, nil
}

// Disconnect asks the peer behind h to close. The handle stays live until the
// matching disconnect event is polled.
func (s *System) Disconnect(h conntable.Handle) error {
    if s.closed { return ErrClosed }
    p, err := s.peer(h, "close")
    if err != nil { return err }
    p.Disconnect()
    return nil
}
