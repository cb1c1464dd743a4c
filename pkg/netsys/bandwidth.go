package netsys

import (
    "time"

    "github.com/nem0/lumixengine-net/pkg/observability"
    "github.com/nem0/lumixengine-net/pkg/transport"
)

// HostSample is the cumulative counter reading of one host.
type HostSample struct {
    Role  string
    Stats transport.Stats
}

// BandwidthMonitor turns cumulative host counters into per-second rates.
// Once at least interval has accumulated it publishes, per role:
//
//  net.<role>.in_bps, net.<role>.out_bps        bytes per second since the last publish
//  net.<role>.total_recv_kb, net.<role>.total_sent_kb
type BandwidthMonitor struct {
    interval time.Duration
    sink     observability.Sink
    acc      time.Duration
    last     map[string]transport.Stats
}

func NewBandwidthMonitor(interval time.Duration, sink observability.Sink) *BandwidthMonitor {
    if interval <= 0 { interval = DefaultBandwidthInterval }
    if sink == nil { sink = observability.NopSink{} }
    return &BandwidthMonitor{interval: interval, sink: sink, last: make(map[string]transport.Stats)}
}

// Sample adds dt to the accumulator and publishes when the interval is
// reached. It reports whether it published. Roles missing from hosts are
// forgotten, so a recreated host starts again from zero.
func (m *BandwidthMonitor) Sample(dt time.Duration, hosts ...HostSample) bool {
    m.acc += dt
    if m.acc < m.interval { return false }
    secs := m.acc.Seconds()
    m.acc = 0

    seen := make(map[string]bool, len(hosts))
    for _, h := range hosts {
        seen[h.Role] = true
        prev := m.last[h.Role]
        // counters went backwards: the host was replaced
        if h.Stats.BytesSent < prev.BytesSent || h.Stats.BytesReceived < prev.BytesReceived {
            prev = transport.Stats{}
        }
        prefix := "net." + h.Role + "."
        m.sink.Publish(prefix+"in_bps", float64(h.Stats.BytesReceived-prev.BytesReceived)/secs)
        m.sink.Publish(prefix+"out_bps", float64(h.Stats.BytesSent-prev.BytesSent)/secs)
        m.sink.Publish(prefix+"total_recv_kb", float64(h.Stats.BytesReceived)/1024)
        m.sink.Publish(prefix+"total_sent_kb", float64(h.Stats.BytesSent)/1024)
        m.last[h.Role] = h.Stats
    }
    for role := range m.last {
        if !seen[role] { delete(m.last, role) }
    }
    return true
}
