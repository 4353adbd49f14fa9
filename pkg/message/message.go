// Package message defines the abstract application message carried by a
// [github.com/sirosfoundation/go-htduplex/pkg/socket] Connection, along
// with the per-type encode/decode contract the wire codec dispatches on.
package message

import "fmt"

// MessageType is the single-character wire tag identifying how a message's
// payload was encoded (the "t<i>" field of the request body and the "type"
// attribute of an inbound <message> element).
type MessageType byte

const (
	// TypeText carries a short inline UTF-8 payload.
	TypeText MessageType = 'S'
	// TypeBinary carries base64-encoded bytes, spilling to a TempFileContext
	// when larger than BinarySpillThreshold.
	TypeBinary MessageType = 'B'
)

func (t MessageType) String() string {
	return string(rune(t))
}

// Message is an application-level unit carried over a Connection in either
// direction. Implementations must be safe to encode from any goroutine.
type Message interface {
	// Type returns the wire tag for this message's encoding.
	Type() MessageType
	// EncodeAsString renders the payload as the string placed in the "m<i>"
	// request field or, for server-originated replies, the <message> text.
	EncodeAsString() (string, error)
}

// Decoder reconstructs a Message from its wire string for one MessageType.
// tmp is non-nil only when the decoder may need to spill payload data to
// disk; decoders that never spill may ignore it.
type Decoder func(encoded string, tmp *TempFileContext) (Message, error)

// Registry maps a MessageType to the Decoder that understands it.
type Registry struct {
	decoders map[MessageType]Decoder
}

// NewRegistry returns a Registry with no decoders registered.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[MessageType]Decoder)}
}

// Register installs decode for typ, replacing any previous registration.
func (r *Registry) Register(typ MessageType, decode Decoder) {
	r.decoders[typ] = decode
}

// Decode looks up the decoder for typ and invokes it. It returns an error
// if no decoder is registered for typ.
func (r *Registry) Decode(typ MessageType, encoded string, tmp *TempFileContext) (Message, error) {
	decode, ok := r.decoders[typ]
	if !ok {
		return nil, fmt.Errorf("message: no decoder registered for type %q", typ)
	}
	return decode(encoded, tmp)
}

// NewDefaultRegistry returns a Registry with TypeText and TypeBinary
// already registered, suitable for demos and tests.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TypeText, decodeText)
	r.Register(TypeBinary, decodeBinary)
	return r
}
