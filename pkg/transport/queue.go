package transport

import (
    "sync"
    "time"
)

// Queue is the FIFO event queue behind Host.Service. Producers may be any
// goroutine; events are popped in the order they were pushed.
type Queue struct {
    mu     sync.Mutex
    events []Event
    notify chan struct{}
    closed bool
}

func NewQueue() *Queue { return &Queue{notify: make(chan struct{}, 1)} }

// Push appends ev. Pushing to a closed queue is a no-op.
func (q *Queue) Push(ev Event) {
    q.mu.Lock()
    if q.closed { q.mu.Unlock(); return }
    q.events = append(q.events, ev)
    q.mu.Unlock()
    select { case q.notify <- struct{}{}: default: }
}

func (q *Queue) tryPop() (Event, bool) {
    q.mu.Lock()
    defer q.mu.Unlock()
    if len(q.events) == 0 { return Event{Type: EventNone}, false }
    ev := q.events[0]
    q.events[0] = Event{}
    q.events = q.events[1:]
    return ev, true
}

// Pop returns the next event, waiting up to timeout. A zero timeout never blocks.
func (q *Queue) Pop(timeout time.Duration) Event {
    if ev, ok := q.tryPop(); ok || timeout <= 0 {
        return ev
    }
    timer := time.NewTimer(timeout)
    defer timer.Stop()
    for {
        select {
        case <-q.notify:
            if ev, ok := q.tryPop(); ok { return ev }
        case <-timer.C:
            ev, _ := q.tryPop()
            return ev
        }
    }
}

func (q *Queue) Len() int {
    q.mu.Lock(); defer q.mu.Unlock()
    return len(q.events)
}

// Close drops pending events and rejects further pushes.
func (q *Queue) Close() {
    q.mu.Lock()
    q.closed = true
    q.events = nil
    q.mu.Unlock()
}
