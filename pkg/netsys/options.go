package netsys

import (
    "time"

    "go.uber.org/zap"

    "github.com/nem0/lumixengine-net/pkg/config"
    "github.com/nem0/lumixengine-net/pkg/observability"
    "github.com/nem0/lumixengine-net/pkg/protocol/codec"
    "github.com/nem0/lumixengine-net/pkg/protocol/rpc"
)

const (
    DefaultClientPeers       = 64
    DefaultBandwidthInterval = time.Second
)

// Options carries every collaborator of a System. Zero fields get defaults.
type Options struct {
    Registry  *rpc.Registry
    Callbacks Callbacks
    Sink      observability.Sink
    Logger    *zap.Logger
    // Codecs resolves SendBody formats; nil uses the built-in codecs.
    Codecs *codec.Registry

    BindHost          string
    ClientPeers       int
    MaxFrameSize      int
    BandwidthInterval time.Duration
}

func (o Options) withDefaults() Options {
    if o.Registry == nil { o.Registry = rpc.NewRegistry() }
    if o.Sink == nil { o.Sink = observability.NopSink{} }
    if o.Logger == nil { o.Logger = zap.L() }
    if o.BindHost == "" { o.BindHost = "0.0.0.0" }
    if o.ClientPeers <= 0 { o.ClientPeers = DefaultClientPeers }
    if o.MaxFrameSize <= 0 { o.MaxFrameSize = rpc.DefaultMaxFrameSize }
    if o.BandwidthInterval <= 0 { o.BandwidthInterval = DefaultBandwidthInterval }
    return o
}

// OptionsFromConfig maps the net and telemetry sections onto Options.
// Collaborators (registry, callbacks, sink) are left for the caller.
func OptionsFromConfig(c *config.Config) Options {
    return Options{
        BindHost:          c.Net.BindHost,
        ClientPeers:       c.Net.ClientPeers,
        MaxFrameSize:      c.Net.MaxFrameBytes,
        BandwidthInterval: time.Duration(c.Telemetry.IntervalMS) * time.Millisecond,
    }
}
