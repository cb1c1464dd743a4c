package netsys

import (
    "context"
    "sync/atomic"
    "time"

    "github.com/glycerine/idem"
    "go.uber.org/zap"
)

// Runner gives a System to one goroutine that polls it on a ticker and runs
// queued commands between polls. All access to the System goes through Do or
// Call; callbacks already run on the owning goroutine.
type Runner struct {
    sys     *System
    tick    time.Duration
    cmds    chan func(*System)
    halt    *idem.Halter
    started atomic.Bool
}

func NewRunner(sys *System, tick time.Duration) *Runner {
    if tick <= 0 { tick = 10 * time.Millisecond }
    return &Runner{sys: sys, tick: tick, cmds: make(chan func(*System), 64), halt: idem.NewHalter()}
}

// Start launches the poll loop. Calling it again has no effect.
func (r *Runner) Start() {
    if !r.started.CompareAndSwap(false, true) { return }
    go r.loop()
}

func (r *Runner) loop() {
    defer r.halt.Done.Close()
    defer func() {
        if err := r.sys.Close(); err != nil {
            zap.L().Warn("netsys close", zap.Error(err))
        }
    }()
    t := time.NewTicker(r.tick)
    defer t.Stop()
    last := time.Now()
    for {
        select {
        case <-r.halt.ReqStop.Chan:
            return
        case f := <-r.cmds:
            f(r.sys)
        case now := <-t.C:
            dt := now.Sub(last)
            last = now
            if err := r.sys.Poll(dt); err != nil {
                zap.L().Warn("netsys poll", zap.Error(err))
            }
        }
    }
}

// Do queues f to run on the owning goroutine.
func (r *Runner) Do(f func(*System)) error {
    select {
    case <-r.halt.ReqStop.Chan:
        return ErrClosed
    default:
    }
    select {
    case r.cmds <- f:
        return nil
    case <-r.halt.ReqStop.Chan:
        return ErrClosed
    }
}

// Call runs f on the owning goroutine and waits for its result.
func (r *Runner) Call(ctx context.Context, f func(*System) error) error {
    res := make(chan error, 1)
    if err := r.Do(func(s *System) { res <- f(s) }); err != nil { return err }
    select {
    case err := <-res:
        return err
    case <-ctx.Done():
        return ctx.Err()
    case <-r.halt.Done.Chan:
        select {
        case err := <-res:
            return err
        default:
            return ErrClosed
        }
    }
}

// Stop ends the loop and closes the System. It is safe to call more than once.
func (r *Runner) Stop() {
    r.halt.ReqStop.Close()
    if r.started.CompareAndSwap(false, true) {
        // never started: close here
        _ = r.sys.Close()
        r.halt.Done.Close()
        return
    }
    <-r.halt.Done.Chan
}

// Done is closed once the loop has exited and the System is closed.
func (r *Runner) Done() <-chan struct{} { return r.halt.Done.Chan }
