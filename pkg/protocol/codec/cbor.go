package codec

import (
    "reflect"

    cbor "github.com/fxamacker/cbor/v2"
)

var reflectMapStringAny = reflect.TypeOf(map[string]any(nil))

type cborCodec struct{ enc cbor.EncMode; dec cbor.DecMode }

// CBOR returns a canonical-encoding CBOR codec. Decoded maps use string keys
// so values round-trip into map[string]any.
func CBOR() (Codec, error) {
    em, err := cbor.CanonicalEncOptions().EncMode()
    if err != nil { return nil, err }
    dm, err := cbor.DecOptions{DefaultMapType: reflectMapStringAny}.DecMode()
    if err != nil { return nil, err }
    return cborCodec{enc: em, dec: dm}, nil
}

func (c cborCodec) ContentType() string { return ContentCBOR }
func (c cborCodec) Marshal(v any) ([]byte, error) { return c.enc.Marshal(v) }
func (c cborCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }
