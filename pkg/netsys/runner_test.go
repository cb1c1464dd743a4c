package netsys

import (
    "context"
    "errors"
    "testing"
    "time"

    "go.uber.org/zap"

    "github.com/nem0/lumixengine-net/pkg/conntable"
    "github.com/nem0/lumixengine-net/pkg/protocol/rpc"
    "github.com/nem0/lumixengine-net/pkg/transport/mem"
)

func TestRunnerDrivesSystems(t *testing.T) {
    n := mem.New()
    pinged := make(chan string, 1)
    reg := rpc.NewRegistry()
    reg.Register("ping", func(c *rpc.Call) error {
        s, err := c.StringArg(0)
        pinged <- s
        return err
    })
    srv, err := New(n, Options{Registry: reg, Logger: zap.NewNop()})
    if err != nil { t.Fatalf("server: %v", err) }
    connected := make(chan conntable.Handle, 1)
    cli, err := New(n, Options{Logger: zap.NewNop(), Callbacks: Callbacks{OnConnect: func(h conntable.Handle) { connected <- h }}})
    if err != nil { t.Fatalf("client: %v", err) }

    rs, rc := NewRunner(srv, time.Millisecond), NewRunner(cli, time.Millisecond)
    rs.Start()
    rc.Start()
    defer rs.Stop()
    defer rc.Stop()

    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := rs.Call(ctx, func(s *System) error { return s.CreateServer(7000, 4) }); err != nil { t.Fatalf("create: %v", err) }
    var h conntable.Handle
    if err := rc.Call(ctx, func(s *System) (err error) { h, err = s.Connect("localhost", 7000); return }); err != nil { t.Fatalf("connect: %v", err) }

    select {
    case <-connected:
    case <-ctx.Done():
        t.Fatalf("no connect event")
    }
    if err := rc.Do(func(s *System) { _ = s.CallRPC(h, "ping", "over runner") }); err != nil { t.Fatalf("do: %v", err) }
    select {
    case got := <-pinged:
        if got != "over runner" { t.Fatalf("ping arg = %q", got) }
    case <-ctx.Done():
        t.Fatalf("ping not delivered")
    }
}

func TestRunnerStop(t *testing.T) {
    s, n, _ := newFakeSystem(t, Options{})
    r := NewRunner(s, time.Millisecond)
    r.Start()
    r.Stop()
    r.Stop()
    if n.deinited != 1 { t.Fatalf("system not closed by the runner") }
    if err := r.Do(func(*System) {}); !errors.Is(err, ErrClosed) { t.Fatalf("do after stop: %v", err) }
    if err := r.Call(context.Background(), func(*System) error { return nil }); !errors.Is(err, ErrClosed) {
        t.Fatalf("call after stop: %v", err)
    }

    idle, idleNet, _ := newFakeSystem(t, Options{})
    never := NewRunner(idle, 0)
    never.Stop()
    <-never.Done()
    if idleNet.deinited != 1 { t.Fatalf("unstarted runner did not close its system") }
}
