package codec

import (
    "testing"
    "google.golang.org/protobuf/types/known/structpb"
)

func TestJSONCodec(t *testing.T) {
    c := JSON()
    in := map[string]any{"a": 1, "b": "x"}
    b, err := c.Marshal(in)
    if err != nil { t.Fatalf("marshal: %v", err) }
    var out map[string]any
    if err := c.Unmarshal(b, &out); err != nil { t.Fatalf("unmarshal: %v", err) }
    if out["a"].(float64) != 1 || out["b"].(string) != "x" {
        t.Fatalf("roundtrip mismatch: %#v", out)
    }
}

func TestCBORCodecStringKeys(t *testing.T) {
    c, err := CBOR()
    if err != nil { t.Fatalf("new cbor: %v", err) }
    in := map[string]any{"n": 42, "nested": map[string]any{"k": "v"}}
    b, err := c.Marshal(in)
    if err != nil { t.Fatalf("marshal: %v", err) }
    var out any
    if err := c.Unmarshal(b, &out); err != nil { t.Fatalf("unmarshal: %v", err) }
    m, ok := out.(map[string]any)
    if !ok { t.Fatalf("decoded %T, want map[string]any", out) }
    if n, ok := m["n"].(uint64); !ok || n != 42 { t.Fatalf("n = %#v", m["n"]) }
    if _, ok := m["nested"].(map[string]any); !ok { t.Fatalf("nested = %T", m["nested"]) }
}

func TestProtoCodec(t *testing.T) {
    c := Proto()
    s, err := structpb.NewStruct(map[string]any{"k": "v"})
    if err != nil { t.Fatalf("struct: %v", err) }
    b, err := c.Marshal(s)
    if err != nil { t.Fatalf("marshal: %v", err) }
    var out structpb.Struct
    if err := c.Unmarshal(b, &out); err != nil { t.Fatalf("unmarshal: %v", err) }
    if out.Fields["k"].GetStringValue() != "v" { t.Fatalf("roundtrip mismatch") }
    if _, err := c.Marshal(map[string]any{}); err == nil { t.Fatalf("non-proto value accepted") }
}

func TestDefaultRegistry(t *testing.T) {
    r, err := Default()
    if err != nil { t.Fatalf("default: %v", err) }
    for _, ct := range []string{ContentJSON, ContentCBOR, ContentProto} {
        if r.Get(ct) == nil { t.Fatalf("%s missing", ct) }
    }
    if NewRegistry().Get(ContentCBOR) != nil { t.Fatalf("cbor preloaded") }
}
