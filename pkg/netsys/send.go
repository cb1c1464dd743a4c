package netsys

import (
    "bytes"
    "fmt"
    "strings"

    "go.uber.org/zap"

    "github.com/nem0/lumixengine-net/pkg/conntable"
    "github.com/nem0/lumixengine-net/pkg/protocol"
    "github.com/nem0/lumixengine-net/pkg/protocol/rpc"
    "github.com/nem0/lumixengine-net/pkg/transport"
)

// peer resolves h or logs and returns ErrInvalidConnection. op names the
// attempted operation in the log.
func (s *System) peer(h conntable.Handle, op string) (transport.Peer, error) {
    p, err := s.table.Peer(h)
    if err != nil {
        s.log.Error("trying to "+op+" through invalid connection", zap.Int32("conn", int32(h)))
        return nil, fmt.Errorf("netsys: connection %d: %w", h, err)
    }
    return p, nil
}

func (s *System) send(h conntable.Handle, ch Channel, data []byte, reliable bool) error {
    if s.closed { return ErrClosed }
    p, err := s.peer(h, "send data")
    if err != nil { return err }
    if err := p.Send(uint8(ch), data, reliable); err != nil {
        s.log.Warn("send failed", zap.Int32("conn", int32(h)), zap.Stringer("channel", ch), zap.Error(err))
        return fmt.Errorf("netsys: send on %s: %w", ch, err)
    }
    return nil
}

// Send transmits opaque bytes on the user channel.
func (s *System) Send(h conntable.Handle, data []byte, reliable bool) error {
    return s.send(h, ChannelUser, data, reliable)
}

// SendString transmits text on the string channel with a trailing NUL.
// Text is cut at its first NUL.
func (s *System) SendString(h conntable.Handle, text string, reliable bool) error {
    if i := strings.IndexByte(text, 0); i >= 0 { text = text[:i] }
    buf := make([]byte, len(text)+1)
    copy(buf, text)
    return s.send(h, ChannelString, buf, reliable)
}

// PayloadString recovers the text of a string-channel payload, up to its
// first NUL. Payloads without a NUL yield "".
func PayloadString(payload []byte) string {
    i := bytes.IndexByte(payload, 0)
    if i < 0 { return "" }
    return string(payload[:i])
}

// CallRPC encodes a call of name and sends it reliably on the RPC channel.
// Arguments must be strings, bools, numbers or rpc.Values; anything else
// aborts the call before the transport is touched.
func (s *System) CallRPC(h conntable.Handle, name string, args ...any) error {
    if s.closed { return ErrClosed }
    if _, err := s.peer(h, "call "+name); err != nil { return err }
    frame, err := rpc.EncodeAny(name, s.opts.MaxFrameSize, args...)
    if err != nil {
        s.log.Error("can not encode rpc", zap.Int32("conn", int32(h)), zap.String("func", name), zap.Error(err))
        return err
    }
    return s.send(h, ChannelRPC, frame, true)
}

// SendBody encodes v in format f and sends it on the user channel.
// The receiver decodes it with protocol.DecodeBody.
func (s *System) SendBody(h conntable.Handle, f protocol.Format, v any, reliable bool) error {
    if s.closed { return ErrClosed }
    if _, err := s.peer(h, "send body"); err != nil { return err }
    payload, err := protocol.EncodeBody(s.opts.Codecs, f, v)
    if err != nil {
        s.log.Error("can not encode body", zap.Int32("conn", int32(h)), zap.Stringer("format", f), zap.Error(err))
        return err
    }
    return s.send(h, ChannelUser, payload, reliable)
}
