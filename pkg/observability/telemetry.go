package observability

import (
    "sort"
    "sync"

    "go.uber.org/zap"
)

// Sink receives named numeric samples.
type Sink interface {
    Publish(name string, value float64)
}

// NopSink drops every sample.
type NopSink struct{}

func (NopSink) Publish(string, float64) {}

// SinkFunc adapts a function to Sink.
type SinkFunc func(name string, value float64)

func (f SinkFunc) Publish(name string, value float64) { f(name, value) }

// LogSink writes samples to a zap logger at debug level.
type LogSink struct{ L *zap.Logger }

func (s LogSink) Publish(name string, value float64) {
    l := s.L
    if l == nil {
        l = zap.L()
    }
    l.Debug("telemetry", zap.String("name", name), zap.Float64("value", value))
}

// Multi fans a sample out to every non-nil sink.
func Multi(sinks ...Sink) Sink {
    out := make(multi, 0, len(sinks))
    for _, s := range sinks {
        if s != nil {
            out = append(out, s)
        }
    }
    return out
}

type multi []Sink

func (m multi) Publish(name string, value float64) {
    for _, s := range m {
        s.Publish(name, value)
    }
}

// Counters keeps the latest value per name. Safe for concurrent use.
type Counters struct {
    mu   sync.Mutex
    vals map[string]float64
    seq  map[string]int
}

func NewCounters() *Counters {
    return &Counters{vals: make(map[string]float64), seq: make(map[string]int)}
}

func (c *Counters) Publish(name string, value float64) {
    c.mu.Lock()
    c.vals[name] = value
    c.seq[name]++
    c.mu.Unlock()
}

// Get returns the latest value and how many times name was published.
func (c *Counters) Get(name string) (float64, int) {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.vals[name], c.seq[name]
}

// Snapshot copies the latest values.
func (c *Counters) Snapshot() map[string]float64 {
    c.mu.Lock()
    defer c.mu.Unlock()
    out := make(map[string]float64, len(c.vals))
    for k, v := range c.vals {
        out[k] = v
    }
    return out
}

// Names lists published names in sorted order.
func (c *Counters) Names() []string {
    c.mu.Lock()
    out := make([]string, 0, len(c.vals))
    for k := range c.vals {
        out = append(out, k)
    }
    c.mu.Unlock()
    sort.Strings(out)
    return out
}
