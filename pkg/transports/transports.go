// Package transports builds a transport.Network by kind name.
package transports

import (
    "github.com/nem0/lumixengine-net/pkg/config"
    "github.com/nem0/lumixengine-net/pkg/transport"
    "github.com/nem0/lumixengine-net/pkg/transport/mem"
    tquic "github.com/nem0/lumixengine-net/pkg/transport/quic"
)

// ErrUnknownKind reports an unsupported transport name.
type ErrUnknownKind string

func (e ErrUnknownKind) Error() string { return "unknown transport kind: " + string(e) }

// New returns the network named by kind, tuned from c.
func New(kind string, c config.NetConfig) (transport.Network, error) {
    switch kind {
    case "quic", "udp":
        return tquic.New(tquic.Config{
            IdleTimeout: c.IdleTimeout(),
            KeepAlive:   c.KeepAlive(),
        }), nil
    case "mem", "inproc":
        return mem.New(), nil
    default:
        return nil, ErrUnknownKind(kind)
    }
}

// FromConfig is New for c.Transport.
func FromConfig(c config.NetConfig) (transport.Network, error) { return New(c.Transport, c) }
