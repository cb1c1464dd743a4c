package transports

import (
    "errors"
    "testing"

    "github.com/nem0/lumixengine-net/pkg/config"
    "github.com/nem0/lumixengine-net/pkg/transport"
)

func TestNewByKind(t *testing.T) {
    c := config.Default().Net
    for kind, want := range map[string]transport.Kind{"quic": transport.KindQUIC, "udp": transport.KindQUIC, "mem": transport.KindMem} {
        n, err := New(kind, c)
        if err != nil { t.Fatalf("%s: %v", kind, err) }
        if n.Kind() != want { t.Fatalf("%s built %v", kind, n.Kind()) }
    }
    var uk ErrUnknownKind
    if _, err := New("winpipe", c); !errors.As(err, &uk) { t.Fatalf("unknown kind: %v", err) }
}

func TestFromConfig(t *testing.T) {
    c := config.Default().Net
    c.Transport = "mem"
    n, err := FromConfig(c)
    if err != nil || n.Kind() != transport.KindMem { t.Fatalf("got %v %v", n, err) }
}
