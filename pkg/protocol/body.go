// Package protocol holds payload framing shared by the wire protocols: the
// structured body format used for user-channel data. The RPC frame lives in
// the rpc subpackage.
package protocol

import (
    "errors"
    "fmt"
    "sync"

    "github.com/klauspost/compress/zstd"

    "github.com/nem0/lumixengine-net/pkg/protocol/codec"
)

// Format is the one-byte body prefix naming the payload codec.
// The high bit marks a zstd-compressed body.
type Format uint8

const (
    FormatUnknown Format = iota
    FormatJSON
    FormatCBOR
    FormatProto
)

const (
    flagCompressed = 0x80
    formatMask     = 0x7f

    // CompressThreshold is the encoded size above which bodies are compressed.
    CompressThreshold = 512
    // MaxBodySize bounds a decompressed body.
    MaxBodySize = 16 << 20
)

var ErrEmptyBody = errors.New("protocol: empty body")

func (f Format) String() string {
    switch f {
    case FormatJSON:
        return codec.ContentJSON
    case FormatCBOR:
        return codec.ContentCBOR
    case FormatProto:
        return codec.ContentProto
    default:
        return "application/octet-stream"
    }
}

// CodecFor returns the codec registered for f, falling back to a built-in.
func CodecFor(r *codec.Registry, f Format) (codec.Codec, error) {
    if r != nil {
        if c := r.Get(f.String()); c != nil { return c, nil }
    }
    switch f {
    case FormatJSON:
        return codec.JSON(), nil
    case FormatCBOR:
        return codec.CBOR()
    case FormatProto:
        return codec.Proto(), nil
    default:
        return nil, fmt.Errorf("protocol: unknown format %d", f)
    }
}

var (
    zstdOnce sync.Once
    zstdEnc  *zstd.Encoder
    zstdDec  *zstd.Decoder
    zstdErr  error
)

func zstdCodec() (*zstd.Encoder, *zstd.Decoder, error) {
    zstdOnce.Do(func() {
        zstdEnc, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
        if zstdErr != nil { return }
        zstdDec, zstdErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxBodySize))
    })
    return zstdEnc, zstdDec, zstdErr
}

// EncodeBody serializes v with the codec for f and prefixes the format byte.
// Bodies larger than CompressThreshold are zstd-compressed when that helps.
func EncodeBody(r *codec.Registry, f Format, v any) ([]byte, error) {
    c, err := CodecFor(r, f)
    if err != nil { return nil, err }
    b, err := c.Marshal(v)
    if err != nil { return nil, err }
    if len(b) > CompressThreshold {
        enc, _, err := zstdCodec()
        if err != nil { return nil, err }
        out := make([]byte, 1, 1+len(b)/2)
        out[0] = byte(f) | flagCompressed
        out = enc.EncodeAll(b, out)
        if len(out) < 1+len(b) { return out, nil }
    }
    out := make([]byte, 1+len(b))
    out[0] = byte(f)
    copy(out[1:], b)
    return out, nil
}

// DecodeBody decodes a payload produced by EncodeBody into v.
func DecodeBody(r *codec.Registry, payload []byte, v any) (Format, error) {
    if len(payload) == 0 { return FormatUnknown, ErrEmptyBody }
    f := Format(payload[0] & formatMask)
    c, err := CodecFor(r, f)
    if err != nil { return f, err }
    body := payload[1:]
    if payload[0]&flagCompressed != 0 {
        _, dec, err := zstdCodec()
        if err != nil { return f, err }
        body, err = dec.DecodeAll(body, nil)
        if err != nil { return f, fmt.Errorf("protocol: decompress body: %w", err) }
    }
    if err := c.Unmarshal(body, v); err != nil { return f, err }
    return f, nil
}

// PeekFormat returns the format of payload without decoding it.
func PeekFormat(payload []byte) Format {
    if len(payload) == 0 { return FormatUnknown }
    return Format(payload[0] & formatMask)
}

// Compressed reports whether payload carries the compression flag.
func Compressed(payload []byte) bool {
    return len(payload) > 0 && payload[0]&flagCompressed != 0
}
