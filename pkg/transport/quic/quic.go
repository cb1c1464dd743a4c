// Package quic carries netsys channels over QUIC. Each connection opens one
// bidirectional stream per channel for reliable traffic; unreliable sends go
// out as datagrams. All hosts of a Network share one self-signed identity.
package quic

import (
    "context"
    "crypto/ed25519"
    "crypto/rand"
    "crypto/tls"
    "crypto/x509"
    "encoding/binary"
    "errors"
    "fmt"
    "io"
    "math/big"
    "net"
    "sync"
    "sync/atomic"
    "time"

    quicgo "github.com/quic-go/quic-go"
    "github.com/quic-go/quic-go/logging"
    "go.uber.org/zap"

    "github.com/nem0/lumixengine-net/pkg/transport"
)

const (
    alpn = "netsys"

    // MaxFrameSize bounds one reliable frame.
    MaxFrameSize = 16 << 20

    codeNormal    quicgo.ApplicationErrorCode = 0
    codeReset     quicgo.ApplicationErrorCode = 1
    codeHostFull  quicgo.ApplicationErrorCode = 2
    codeHandshake quicgo.ApplicationErrorCode = 3
    codeBadFrame  quicgo.ApplicationErrorCode = 4

    // admitted is written by the acceptor on channel 0 once the peer holds a slot.
    admitted byte = 1
)

// Config tunes QUIC connections. Zero fields use the defaults below.
type Config struct {
    HandshakeTimeout time.Duration
    IdleTimeout      time.Duration
    KeepAlive        time.Duration
    // Linger bounds how long a graceful Disconnect waits for the remote close.
    Linger time.Duration
}

func (c Config) withDefaults() Config {
    if c.HandshakeTimeout <= 0 { c.HandshakeTimeout = 5 * time.Second }
    if c.IdleTimeout <= 0 { c.IdleTimeout = 30 * time.Second }
    if c.KeepAlive <= 0 { c.KeepAlive = 5 * time.Second }
    if c.Linger <= 0 { c.Linger = 2 * time.Second }
    return c
}

// Network is the QUIC transport library state.
type Network struct {
    cfg Config

    mu        sync.Mutex
    inited    int
    serverTLS *tls.Config
    clientTLS *tls.Config
}

func New(cfg Config) *Network { return &Network{cfg: cfg.withDefaults()} }

func (n *Network) Kind() transport.Kind { return transport.KindQUIC }

// Init creates the TLS identity on first use.
func (n *Network) Init() error {
    n.mu.Lock()
    defer n.mu.Unlock()
    if n.inited == 0 {
        cert, err := selfSignedCert()
        if err != nil { return fmt.Errorf("quic: certificate: %w", err) }
        n.serverTLS = &tls.Config{
            Certificates: []tls.Certificate{cert},
            NextProtos:   []string{alpn},
            MinVersion:   tls.VersionTLS13,
        }
        n.clientTLS = &tls.Config{
            // peers use throwaway certificates; there is nothing to verify against
            InsecureSkipVerify: true,
            NextProtos:         []string{alpn},
            MinVersion:         tls.VersionTLS13,
        }
    }
    n.inited++
    return nil
}

func (n *Network) Deinit() error {
    n.mu.Lock()
    defer n.mu.Unlock()
    if n.inited == 0 { return transport.ErrNotInitialized }
    n.inited--
    if n.inited == 0 {
        n.serverTLS, n.clientTLS = nil, nil
    }
    return nil
}

func (n *Network) quicConfig(st *byteStats) *quicgo.Config {
    return &quicgo.Config{
        EnableDatagrams:      true,
        HandshakeIdleTimeout: n.cfg.HandshakeTimeout,
        MaxIdleTimeout:       n.cfg.IdleTimeout,
        KeepAlivePeriod:      n.cfg.KeepAlive,
        Tracer:               st.tracer,
    }
}

// CreateHost binds a UDP socket. A non-empty bindAddr also accepts
// connections; an empty one makes a client host on an ephemeral port.
func (n *Network) CreateHost(bindAddr string, maxPeers, channelCount int) (transport.Host, error) {
    n.mu.Lock()
    if n.inited == 0 {
        n.mu.Unlock()
        return nil, transport.ErrNotInitialized
    }
    serverTLS, clientTLS := n.serverTLS, n.clientTLS
    n.mu.Unlock()

    laddr := bindAddr
    if laddr == "" { laddr = ":0" }
    ua, err := net.ResolveUDPAddr("udp", laddr)
    if err != nil { return nil, err }
    pc, err := net.ListenUDP("udp", ua)
    if err != nil { return nil, err }

    ctx, cancel := context.WithCancel(context.Background())
    h := &host{
        cfg:       n.cfg,
        clientTLS: clientTLS,
        pc:        pc,
        channels:  channelCount,
        queue:     transport.NewQueue(),
        peers:     transport.NewManager(maxPeers),
        ctx:       ctx,
        cancel:    cancel,
    }
    h.qconf = n.quicConfig(&h.stats)
    h.tr = &quicgo.Transport{Conn: pc}
    if bindAddr != "" {
        ln, err := h.tr.Listen(serverTLS, h.qconf)
        if err != nil {
            cancel()
            _ = h.tr.Close()
            _ = pc.Close()
            return nil, err
        }
        h.ln = ln
        h.wg.Add(1)
        go h.acceptLoop()
    }
    return h, nil
}

type host struct {
    cfg       Config
    qconf     *quicgo.Config
    clientTLS *tls.Config
    pc        *net.UDPConn
    stats     byteStats
    tr        *quicgo.Transport
    ln        *quicgo.Listener
    channels  int
    queue     *transport.Queue
    peers     *transport.Manager

    ctx       context.Context
    cancel    context.CancelFunc
    wg        sync.WaitGroup
    destroyed atomic.Bool
}

func (h *host) Service(timeout time.Duration) (transport.Event, error) {
    if h.destroyed.Load() { return transport.Event{}, transport.ErrHostDestroyed }
    return h.queue.Pop(timeout), nil
}

func (h *host) Stats() transport.Stats {
    return transport.Stats{BytesSent: h.stats.sent.Load(), BytesReceived: h.stats.recv.Load()}
}

func (h *host) Addr() net.Addr { return h.pc.LocalAddr() }

// Connect dials address in the background. The peer reports EventConnect once
// every channel stream is open and the remote host has admitted it, or
// EventDisconnect if either fails.
func (h *host) Connect(address string, channelCount int) (transport.Peer, error) {
    if h.destroyed.Load() { return nil, transport.ErrHostDestroyed }
    raddr, err := net.ResolveUDPAddr("udp", address)
    if err != nil { return nil, err }
    p := newPeer(h, address, channelCount)
    if err := h.peers.Add(p); err != nil { return nil, err }
    h.wg.Add(1)
    go h.dial(p, raddr)
    return p, nil
}

func (h *host) dial(p *peer, raddr *net.UDPAddr) {
    defer h.wg.Done()
    fail := func(err error) {
        zap.L().Debug("quic connect failed", zap.String("addr", p.addr), zap.Error(err))
        h.peers.Remove(p.id)
        if !p.reset.Load() {
            h.queue.Push(transport.Event{Type: transport.EventDisconnect, Peer: p})
        }
    }
    ctx, cancel := context.WithTimeout(h.ctx, h.cfg.HandshakeTimeout)
    defer cancel()
    conn, err := h.tr.Dial(ctx, raddr, h.clientTLS, h.qconf)
    if err != nil { fail(err); return }

    streams := make([]quicgo.Stream, p.channels)
    for i := range streams {
        st, err := conn.OpenStreamSync(ctx)
        if err == nil {
            _, err = st.Write([]byte{byte(i)})
        }
        if err != nil {
            _ = conn.CloseWithError(codeHandshake, "channel setup")
            fail(err)
            return
        }
        streams[i] = st
    }
    if err := awaitAdmission(ctx, streams[0]); err != nil {
        _ = conn.CloseWithError(codeHandshake, "not admitted")
        fail(err)
        return
    }
    if !p.attach(conn, streams) {
        _ = conn.CloseWithError(codeNormal, "")
        fail(errors.New("closed while connecting"))
        return
    }
    h.queue.Push(transport.Event{Type: transport.EventConnect, Peer: p})
    p.run()
}

// awaitAdmission reads the acceptor's admission byte from st. A full host
// closes the connection instead, which fails the read.
func awaitAdmission(ctx context.Context, st quicgo.Stream) error {
    if d, ok := ctx.Deadline(); ok { _ = st.SetReadDeadline(d) }
    defer st.SetReadDeadline(time.Time{})
    var b [1]byte
    if _, err := io.ReadFull(st, b[:]); err != nil { return err }
    if b[0] != admitted { return fmt.Errorf("quic: unexpected admission byte %d", b[0]) }
    return nil
}

func (h *host) acceptLoop() {
    defer h.wg.Done()
    for {
        conn, err := h.ln.Accept(h.ctx)
        if err != nil { return }
        h.wg.Add(1)
        go h.handshake(conn)
    }
}

// handshake collects the dialer's channel streams. Each stream starts with
// its channel id. A peer that gets a slot is told so on channel 0.
func (h *host) handshake(conn quicgo.Connection) {
    defer h.wg.Done()
    deadline := time.Now().Add(h.cfg.HandshakeTimeout)
    ctx, cancel := context.WithDeadline(h.ctx, deadline)
    defer cancel()

    streams := make([]quicgo.Stream, h.channels)
    for range streams {
        st, err := conn.AcceptStream(ctx)
        if err != nil {
            _ = conn.CloseWithError(codeHandshake, "channel setup")
            return
        }
        var hdr [1]byte
        _ = st.SetReadDeadline(deadline)
        _, err = io.ReadFull(st, hdr[:])
        _ = st.SetReadDeadline(time.Time{})
        if err != nil || int(hdr[0]) >= len(streams) || streams[hdr[0]] != nil {
            _ = conn.CloseWithError(codeHandshake, "bad channel header")
            return
        }
        streams[hdr[0]] = st
    }

    p := newPeer(h, conn.RemoteAddr().String(), h.channels)
    if err := h.peers.Add(p); err != nil {
        zap.L().Warn("quic host full", zap.String("peer", p.addr))
        _ = conn.CloseWithError(codeHostFull, "host full")
        return
    }
    if !p.attach(conn, streams) {
        h.peers.Remove(p.id)
        _ = conn.CloseWithError(codeReset, "reset")
        return
    }
    _ = streams[0].SetWriteDeadline(deadline)
    _, err := streams[0].Write([]byte{admitted})
    _ = streams[0].SetWriteDeadline(time.Time{})
    if err != nil {
        h.peers.Remove(p.id)
        _ = conn.CloseWithError(codeHandshake, "admission")
        return
    }
    h.queue.Push(transport.Event{Type: transport.EventConnect, Peer: p})
    p.run()
}

func (h *host) Destroy() error {
    if !h.destroyed.CompareAndSwap(false, true) { return nil }
    h.peers.ResetAll()
    if h.ln != nil { _ = h.ln.Close() }
    h.cancel()
    err := h.tr.Close()
    h.wg.Wait()
    if cerr := h.pc.Close(); err == nil { err = cerr }
    h.queue.Close()
    return err
}

type peer struct {
    id       transport.PeerID
    host     *host
    addr     string
    channels int

    mu      sync.Mutex
    conn    quicgo.Connection
    streams []quicgo.Stream
    wmu     []sync.Mutex
    closing bool
    reset   atomic.Bool
}

func newPeer(h *host, addr string, channels int) *peer {
    return &peer{id: transport.NewPeerID(), host: h, addr: addr, channels: channels}
}

func (p *peer) ID() transport.PeerID { return p.id }
func (p *peer) Addr() string         { return p.addr }

func (p *peer) attach(conn quicgo.Connection, streams []quicgo.Stream) bool {
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.closing || p.reset.Load() { return false }
    p.conn = conn
    p.streams = streams
    p.wmu = make([]sync.Mutex, len(streams))
    return true
}

func (p *peer) connected() (quicgo.Connection, []quicgo.Stream) {
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.closing { return nil, nil }
    return p.conn, p.streams
}

// run reads until the connection ends, then reports EventDisconnect unless
// the peer was reset locally.
func (p *peer) run() {
    var rg sync.WaitGroup
    for ch, st := range p.streams {
        rg.Add(1)
        go func(ch uint8, st quicgo.Stream) {
            defer rg.Done()
            p.readStream(ch, st)
        }(uint8(ch), st)
    }
    rg.Add(1)
    go func() {
        defer rg.Done()
        p.readDatagrams()
    }()
    <-p.conn.Context().Done()
    rg.Wait()
    p.host.peers.Remove(p.id)
    if !p.reset.Load() {
        p.host.queue.Push(transport.Event{Type: transport.EventDisconnect, Peer: p})
    }
}

func (p *peer) readStream(ch uint8, st quicgo.Stream) {
    var hdr [4]byte
    for {
        if _, err := io.ReadFull(st, hdr[:]); err != nil {
            if errors.Is(err, io.EOF) {
                // remote finished its streams: graceful disconnect
                _ = p.conn.CloseWithError(codeNormal, "")
            }
            return
        }
        n := binary.LittleEndian.Uint32(hdr[:])
        if n > MaxFrameSize {
            _ = p.conn.CloseWithError(codeBadFrame, "frame too large")
            return
        }
        buf := make([]byte, n)
        if _, err := io.ReadFull(st, buf); err != nil {
            _ = p.conn.CloseWithError(codeBadFrame, "truncated frame")
            return
        }
        p.host.queue.Push(transport.Event{Type: transport.EventReceive, Peer: p, Channel: ch, Data: buf})
    }
}

func (p *peer) readDatagrams() {
    for {
        b, err := p.conn.ReceiveDatagram(p.host.ctx)
        if err != nil { return }
        if len(b) == 0 || int(b[0]) >= len(p.streams) { continue }
        p.host.queue.Push(transport.Event{Type: transport.EventReceive, Peer: p, Channel: b[0], Data: b[1:]})
    }
}

// Send writes data on channel. Unreliable data that does not fit a datagram
// goes over the channel stream instead.
func (p *peer) Send(channel uint8, data []byte, reliable bool) error {
    if int(channel) >= p.channels { return transport.ErrBadChannel }
    conn, streams := p.connected()
    if conn == nil { return transport.ErrNotConnected }
    if !reliable {
        dg := make([]byte, 1+len(data))
        dg[0] = channel
        copy(dg[1:], data)
        err := conn.SendDatagram(dg)
        if err == nil { return nil }
        var tooLarge *quicgo.DatagramTooLargeError
        if !errors.As(err, &tooLarge) { return err }
    }
    if len(data) > MaxFrameSize { return fmt.Errorf("quic: frame of %d bytes exceeds %d", len(data), MaxFrameSize) }
    frame := make([]byte, 4+len(data))
    binary.LittleEndian.PutUint32(frame, uint32(len(data)))
    copy(frame[4:], data)
    p.wmu[channel].Lock()
    defer p.wmu[channel].Unlock()
    _, err := streams[channel].Write(frame)
    return err
}

// Disconnect finishes every channel stream; the remote closes the connection
// once it has read them. If it does not within the linger time the
// connection is closed anyway.
func (p *peer) Disconnect() {
    p.mu.Lock()
    if p.closing || p.reset.Load() {
        p.mu.Unlock()
        return
    }
    p.closing = true
    conn, streams := p.conn, p.streams
    p.mu.Unlock()
    if conn == nil { return }
    for i, st := range streams {
        p.wmu[i].Lock()
        _ = st.Close()
        p.wmu[i].Unlock()
    }
    go func() {
        t := time.NewTimer(p.host.cfg.Linger)
        defer t.Stop()
        select {
        case <-conn.Context().Done():
        case <-t.C:
            _ = conn.CloseWithError(codeNormal, "")
        }
    }()
}

// Reset closes the connection at once. No local event follows.
func (p *peer) Reset() {
    if !p.reset.CompareAndSwap(false, true) { return }
    p.mu.Lock()
    conn := p.conn
    p.mu.Unlock()
    p.host.peers.Remove(p.id)
    if conn != nil {
        _ = conn.CloseWithError(codeReset, "reset")
    }
}

// byteStats tallies QUIC packet bytes of every connection on a host.
type byteStats struct {
    sent, recv atomic.Uint64
}

func (s *byteStats) tracer(context.Context, logging.Perspective, quicgo.ConnectionID) *logging.ConnectionTracer {
    return &logging.ConnectionTracer{
        SentLongHeaderPacket: func(_ *logging.ExtendedHeader, n logging.ByteCount, _ logging.ECN, _ *logging.AckFrame, _ []logging.Frame) {
            s.sent.Add(uint64(n))
        },
        SentShortHeaderPacket: func(_ *logging.ShortHeader, n logging.ByteCount, _ logging.ECN, _ *logging.AckFrame, _ []logging.Frame) {
            s.sent.Add(uint64(n))
        },
        ReceivedLongHeaderPacket: func(_ *logging.ExtendedHeader, n logging.ByteCount, _ logging.ECN, _ []logging.Frame) {
            s.recv.Add(uint64(n))
        },
        ReceivedShortHeaderPacket: func(_ *logging.ShortHeader, n logging.ByteCount, _ logging.ECN, _ []logging.Frame) {
            s.recv.Add(uint64(n))
        },
    }
}

// selfSignedCert generates a short-lived ed25519 certificate for the hosts of one Network.
func selfSignedCert() (tls.Certificate, error) {
    pub, priv, err := ed25519.GenerateKey(rand.Reader)
    if err != nil { return tls.Certificate{}, err }
    tmpl := x509.Certificate{
        SerialNumber:          big.NewInt(time.Now().UnixNano()),
        NotBefore:             time.Now().Add(-time.Minute),
        NotAfter:              time.Now().Add(24 * time.Hour),
        KeyUsage:              x509.KeyUsageDigitalSignature,
        ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
        BasicConstraintsValid: true,
        DNSNames:              []string{"localhost"},
    }
    der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, pub, priv)
    if err != nil { return tls.Certificate{}, err }
    return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}, nil
}
