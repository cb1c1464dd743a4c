// Command netsys-call connects to a netsys node, performs one remote call and
// prints what comes back until the timeout.
//
//  netsys-call -addr localhost:7000 -func ping s:hello n:3.5 b:true
package main

import (
    "encoding/json"
    "flag"
    "fmt"
    "os"
    "time"

    "go.uber.org/zap"
    "google.golang.org/protobuf/types/known/structpb"

    "github.com/nem0/lumixengine-net/pkg/config"
    "github.com/nem0/lumixengine-net/pkg/conntable"
    "github.com/nem0/lumixengine-net/pkg/netsys"
    "github.com/nem0/lumixengine-net/pkg/protocol"
    "github.com/nem0/lumixengine-net/pkg/protocol/rpc"
    "github.com/nem0/lumixengine-net/pkg/transports"
)

func main() {
    kind := flag.String("kind", "quic", "transport kind: quic|udp|mem|inproc")
    addr := flag.String("addr", "localhost:7000", "node address host:port")
    fn := flag.String("func", "ping", "remote function name")
    text := flag.String("string", "", "also send this text on the string channel")
    body := flag.String("body", "", "also send this JSON object as a protobuf Struct body")
    reply := flag.String("reply", "pong", "local function that prints incoming calls")
    timeout := flag.Duration("timeout", 3*time.Second, "how long to wait for replies")
    verbose := flag.Bool("v", false, "debug logging")
    flag.Parse()

    logger, _ := zap.NewDevelopment()
    if !*verbose {
        logger = zap.NewNop()
    }
    zap.ReplaceGlobals(logger)

    err := run(callOptions{
        kind: *kind, addr: *addr, fn: *fn, text: *text, body: *body,
        reply: *reply, timeout: *timeout, args: flag.Args(), logger: logger,
    })
    _ = logger.Sync()
    if err != nil {
        fmt.Fprintln(os.Stderr, err)
        os.Exit(1)
    }
}

type callOptions struct {
    kind, addr, fn, text, body, reply string
    timeout                           time.Duration
    args                              []string
    logger                            *zap.Logger
}

// run performs the call. The System is closed before it returns.
func run(o callOptions) error {
    args := make([]any, 0, len(o.args))
    for _, a := range o.args {
        v, err := rpc.ParseArg(a)
        if err != nil { return fmt.Errorf("argument %q: %w", a, err) }
        args = append(args, v)
    }
    host, port, err := config.SplitTarget(o.addr)
    if err != nil { return err }

    cfg := config.Default()
    network, err := transports.New(o.kind, cfg.Net)
    if err != nil { return fmt.Errorf("transport: %w", err) }

    reg := rpc.NewRegistry()
    reg.Register(o.reply, func(c *rpc.Call) error {
        fmt.Printf("%s(%v)\n", c.Name, c.Args)
        return nil
    })
    connected, lost := false, false
    sys, err := netsys.New(network, netsys.Options{
        Registry: reg,
        Logger:   o.logger,
        Callbacks: netsys.Callbacks{
            OnConnect:    func(conntable.Handle) { connected = true },
            OnDisconnect: func(conntable.Handle) { lost = true },
            OnDataReceived: func(_ conntable.Handle, ch netsys.Channel, payload []byte) {
                fmt.Printf("%s: %q\n", ch, payload)
            },
        },
    })
    if err != nil { return fmt.Errorf("init: %w", err) }
    defer sys.Close()

    h, err := sys.Connect(host, port)
    if err != nil { return fmt.Errorf("connect: %w", err) }

    tick := cfg.Net.Tick()
    deadline := time.Now().Add(o.timeout)
    for !connected {
        if lost { return fmt.Errorf("connection to %s failed", o.addr) }
        if time.Now().After(deadline) { return fmt.Errorf("timed out connecting to %s", o.addr) }
        _ = sys.Poll(tick)
        time.Sleep(tick)
    }

    if err := sys.CallRPC(h, o.fn, args...); err != nil { return fmt.Errorf("call: %w", err) }
    if o.text != "" {
        if err := sys.SendString(h, o.text, true); err != nil { return fmt.Errorf("send string: %w", err) }
    }
    if o.body != "" {
        var m map[string]any
        if err := json.Unmarshal([]byte(o.body), &m); err != nil { return fmt.Errorf("body: %w", err) }
        st, err := structpb.NewStruct(m)
        if err != nil { return fmt.Errorf("body: %w", err) }
        if err := sys.SendBody(h, protocol.FormatProto, st, true); err != nil { return fmt.Errorf("send body: %w", err) }
    }

    deadline = time.Now().Add(o.timeout)
    for time.Now().Before(deadline) {
        if lost { return fmt.Errorf("connection to %s closed", o.addr) }
        _ = sys.Poll(tick)
        time.Sleep(tick)
    }

    // wait briefly for the graceful close to complete
    _ = sys.Disconnect(h)
    for end := time.Now().Add(2 * time.Second); !lost && time.Now().Before(end); {
        _ = sys.Poll(tick)
        time.Sleep(tick)
    }
    return nil
}
