// Package netsys is a connection-oriented networking layer over a
// reliable/unreliable datagram transport.
//
// A System owns at most one server host and one shared client host. Every
// connection is addressed by a small integer handle from a conntable.Table;
// handles of closed connections are reused. Each connection multiplexes
// three channels: remote procedure calls, NUL-terminated strings, and opaque
// user data.
//
// A System is driven by Poll and is not safe for concurrent use. Programs
// with more than one goroutine wrap it in a Runner.
package netsys
