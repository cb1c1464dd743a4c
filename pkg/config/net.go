package config

import (
    "fmt"
    "net"
    "strconv"
    "strings"
    "time"
)

// NetConfig contains transport and connection options.
// Example YAML:
// net:
//   transport: quic
//   server:
//     enable: true
//     port: 7000
//     max_clients: 32
//   connect:
//     - "10.0.0.2:7000"
type NetConfig struct {
    // Transport: quic or mem
    Transport string `mapstructure:"transport"`
    // BindHost is the interface the server host listens on
    BindHost string       `mapstructure:"bind_host"`
    Server   ServerConfig `mapstructure:"server"`
    // ClientPeers bounds the shared client host
    ClientPeers   int `mapstructure:"client_peers"`
    MaxFrameBytes int `mapstructure:"max_frame_bytes"`
    TickMS        int `mapstructure:"tick_ms"`
    IdleTimeoutMS int `mapstructure:"idle_timeout_ms"`
    KeepAliveMS   int `mapstructure:"keepalive_ms"`
    // Connect lists host:port targets dialed on startup
    Connect []string `mapstructure:"connect"`
}

// ServerConfig describes the passive host.
type ServerConfig struct {
    Enable     bool `mapstructure:"enable"`
    Port       int  `mapstructure:"port"`
    MaxClients int  `mapstructure:"max_clients"`
}

// Tick returns the poll interval.
func (n NetConfig) Tick() time.Duration { return time.Duration(n.TickMS) * time.Millisecond }

func (n NetConfig) IdleTimeout() time.Duration {
    return time.Duration(n.IdleTimeoutMS) * time.Millisecond
}

func (n NetConfig) KeepAlive() time.Duration {
    return time.Duration(n.KeepAliveMS) * time.Millisecond
}

// SplitTarget parses a "host:port" connect target.
func SplitTarget(target string) (string, uint16, error) {
    host, ps, err := net.SplitHostPort(strings.TrimSpace(target))
    if err != nil { return "", 0, fmt.Errorf("connect target %q: %w", target, err) }
    p, err := strconv.ParseUint(ps, 10, 16)
    if err != nil || p == 0 { return "", 0, fmt.Errorf("connect target %q: bad port", target) }
    return host, uint16(p), nil
}

func (n *NetConfig) validate() error {
    n.Transport = strings.ToLower(strings.TrimSpace(n.Transport))
    switch n.Transport {
    case "quic", "mem":
    case "", "udp":
        n.Transport = "quic"
    case "inproc":
        n.Transport = "mem"
    default:
        return fmt.Errorf("invalid net.transport: %q", n.Transport)
    }
    if n.Server.Enable {
        if n.Server.Port <= 0 || n.Server.Port > 65535 {
            return fmt.Errorf("invalid net.server.port: %d", n.Server.Port)
        }
        if n.Server.MaxClients <= 0 {
            return fmt.Errorf("invalid net.server.max_clients: %d", n.Server.MaxClients)
        }
    }
    if n.ClientPeers <= 0 {
        n.ClientPeers = 64
    }
    if n.MaxFrameBytes <= 0 {
        n.MaxFrameBytes = 1024
    }
    if n.TickMS <= 0 {
        n.TickMS = 10
    }
    for _, c := range n.Connect {
        if _, _, err := SplitTarget(c); err != nil { return err }
    }
    return nil
}
