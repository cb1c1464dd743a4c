package main

import (
    "context"
    "os"
    "os/signal"
    "syscall"

    "go.uber.org/zap"
    "google.golang.org/protobuf/types/known/structpb"

    "github.com/nem0/lumixengine-net/pkg/config"
    "github.com/nem0/lumixengine-net/pkg/conntable"
    "github.com/nem0/lumixengine-net/pkg/netsys"
    "github.com/nem0/lumixengine-net/pkg/observability"
    "github.com/nem0/lumixengine-net/pkg/protocol"
    "github.com/nem0/lumixengine-net/pkg/protocol/rpc"
    "github.com/nem0/lumixengine-net/pkg/transport"
    "github.com/nem0/lumixengine-net/pkg/transports"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
    cfg, err := config.Load(opts.ConfigPath)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
        return 1
    }
    if opts.Port > 0 {
        cfg.Net.Server.Enable = true
        cfg.Net.Server.Port = opts.Port
    }

    logger, err := observability.SetupLogger(cfg.Log)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
        return 1
    }
    defer func() { _ = logger.Sync() }()

    zap.L().Info("netsys-node started", zap.String("app", cfg.AppName))
    zap.L().Info("effective configuration", zap.Any("config", cfg))

    network, err := transports.FromConfig(cfg.Net)
    if err != nil {
        zap.L().Error("failed to build transport", zap.Error(err))
        return 1
    }

    counters := observability.NewCounters()
    sys, err := newNode(network, cfg, counters)
    if err != nil { return 1 }

    r := netsys.NewRunner(sys, cfg.Net.Tick())
    r.Start()
    defer r.Stop()

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    if cfg.Net.Server.Enable {
        port, maxClients := uint16(cfg.Net.Server.Port), cfg.Net.Server.MaxClients
        if err := r.Call(ctx, func(s *netsys.System) error { return s.CreateServer(port, maxClients) }); err != nil {
            zap.L().Error("failed to start server", zap.Error(err))
            return 1
        }
    }
    for _, target := range cfg.Net.Connect {
        host, port, _ := config.SplitTarget(target)
        err := r.Call(ctx, func(s *netsys.System) error {
            h, err := s.Connect(host, port)
            if err == nil { zap.L().Info("dialing", zap.String("target", target), zap.Int32("conn", int32(h))) }
            return err
        })
        if err != nil { zap.L().Warn("dial failed", zap.String("target", target), zap.Error(err)) }
    }

    zap.L().Info("node is running; press Ctrl+C to exit")
    <-ctx.Done()
    zap.L().Info("shutting down", zap.Any("telemetry", counters.Snapshot()))
    return 0
}

// newNode wires the RPC handlers and callbacks of a node onto network.
func newNode(network transport.Network, cfg *config.Config, counters *observability.Counters) (*netsys.System, error) {
    var sys *netsys.System
    reg := rpc.NewRegistry()
    reg.Register("ping", func(c *rpc.Call) error {
        args := make([]any, len(c.Args))
        for i, a := range c.Args { args[i] = a }
        return sys.CallRPC(c.Conn, "pong", args...)
    })
    reg.Register("pong", func(c *rpc.Call) error {
        zap.L().Info("pong", zap.Int32("conn", int32(c.Conn)), zap.Stringers("args", c.Args))
        return nil
    })

    opts := netsys.OptionsFromConfig(cfg)
    opts.Registry = reg
    var sink observability.Sink = counters
    if cfg.Telemetry.LogSamples {
        sink = observability.Multi(counters, observability.LogSink{})
    }
    if cfg.Telemetry.Enable {
        opts.Sink = sink
    }
    opts.Callbacks = netsys.Callbacks{
        OnConnect:    func(h conntable.Handle) { zap.L().Info("peer connected", zap.Int32("conn", int32(h))) },
        OnDisconnect: func(h conntable.Handle) { zap.L().Info("peer disconnected", zap.Int32("conn", int32(h))) },
        OnDataReceived: func(h conntable.Handle, ch netsys.Channel, payload []byte) {
            if ch == netsys.ChannelString {
                zap.L().Info("string", zap.Int32("conn", int32(h)), zap.String("text", netsys.PayloadString(payload)))
                return
            }
            var body any = new(any)
            if protocol.PeekFormat(payload) == protocol.FormatProto {
                body = new(structpb.Struct)
            }
            f, err := protocol.DecodeBody(nil, payload, body)
            if err != nil {
                zap.L().Info("user data", zap.Int32("conn", int32(h)), zap.Int("bytes", len(payload)))
                return
            }
            zap.L().Info("body", zap.Int32("conn", int32(h)), zap.Stringer("format", f), zap.Any("value", body))
        },
    }

    s, err := netsys.New(network, opts)
    if err != nil { return nil, err }
    sys = s
    return sys, nil
}
