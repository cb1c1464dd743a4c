// Package transport defines the collaborator interfaces the networking layer is
// built on and ships two implementations (quic, mem).
//
// Key concepts:
// - Network: process-wide transport state; Init/Deinit bracket its lifetime
// - Host: a bound endpoint that owns peers and a FIFO event queue; Service
//   pops the next event and never blocks when called with a zero timeout
// - Peer: one connection endpoint; Send multiplexes over a fixed channel count
// - Manager: live peer bookkeeping shared by the host implementations
package transport
