// Package codec holds the structured-payload codecs usable for user data.
package codec

const (
    ContentJSON  = "application/json"
    ContentCBOR  = "application/cbor"
    ContentProto = "application/x-protobuf"
)

// Codec marshals typed messages. Implementations must be deterministic and
// safe for concurrent use.
type Codec interface {
    ContentType() string
    Marshal(v any) ([]byte, error)
    Unmarshal(data []byte, v any) error
}

// Registry maps content types to codecs. Populate it before sharing it.
type Registry struct { byType map[string]Codec }

// NewRegistry returns a registry with JSON and Protobuf preloaded.
// CBOR can fail to build its modes, so it is added with Register(CBOR()).
func NewRegistry() *Registry {
    r := &Registry{byType: make(map[string]Codec)}
    r.Register(JSON())
    r.Register(Proto())
    return r
}

// Default returns a registry with every built-in codec.
func Default() (*Registry, error) {
    r := NewRegistry()
    c, err := CBOR()
    if err != nil { return nil, err }
    r.Register(c)
    return r, nil
}

func (r *Registry) Register(c Codec) { r.byType[c.ContentType()] = c }

// Get returns a codec by content type, or nil.
func (r *Registry) Get(contentType string) Codec { return r.byType[contentType] }
