package wire

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/sirosfoundation/go-htduplex/pkg/message"
)

// Inbound is one decoded server-assigned sequence/message pair, as read
// from an inbound <message> element.
type Inbound struct {
	Seq     int64
	Message message.Message
}

// DecodeResponse parses one inbound response body per spec.md §4.3 step 4
// and §6: the root element must be named "messages"; each "message" child
// must carry "seq" and "type" attributes and, optionally, a single text
// child holding the encoded payload.
//
// This is a streaming pull-parser over xml.Decoder rather than a DOM walk
// (spec.md §9 Design Notes: "reimplement as a streaming pull-parser that
// reads root messages, then for each message element extracts seq, type,
// and text content"). xml.Decoder never dereferences external entities or
// fetches a DTD from the network, and DecodeResponse additionally rejects
// any xml.Directive token outright, so a server response declaring an
// external DOCTYPE is refused rather than silently ignored — the
// streaming equivalent of the original's hardened DocumentBuilderFactory.
func DecodeResponse(r io.Reader, registry *message.Registry, tmp *message.TempFileContext) ([]Inbound, error) {
	dec := xml.NewDecoder(r)

	root, err := nextStartElement(dec)
	if err != nil {
		return nil, err
	}
	if root.Name.Local != "messages" {
		return nil, fmt.Errorf("wire: unexpected root element %q, want \"messages\"", root.Name.Local)
	}

	var out []Inbound
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("wire: reading response body: %w", err)
		}
		switch t := tok.(type) {
		case xml.Directive:
			return nil, fmt.Errorf("wire: response body declares a disallowed XML directive")
		case xml.StartElement:
			if t.Name.Local != "message" {
				return nil, fmt.Errorf("wire: unexpected child element %q of messages", t.Name.Local)
			}
			in, err := decodeMessageElement(dec, t, registry, tmp)
			if err != nil {
				return nil, err
			}
			out = append(out, in)
		case xml.EndElement:
			if t.Name.Local == "messages" {
				return out, nil
			}
		}
	}
	return out, nil
}

func nextStartElement(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, fmt.Errorf("wire: reading response body: %w", err)
		}
		switch t := tok.(type) {
		case xml.Directive:
			return xml.StartElement{}, fmt.Errorf("wire: response body declares a disallowed XML directive")
		case xml.StartElement:
			return t, nil
		}
	}
}

func decodeMessageElement(dec *xml.Decoder, start xml.StartElement, registry *message.Registry, tmp *message.TempFileContext) (Inbound, error) {
	var seqStr, typeStr string
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "seq":
			seqStr = attr.Value
		case "type":
			typeStr = attr.Value
		}
	}
	if seqStr == "" {
		return Inbound{}, fmt.Errorf("wire: message element missing \"seq\" attribute")
	}
	if len(typeStr) != 1 {
		return Inbound{}, fmt.Errorf("wire: message element \"type\" attribute must be one character, got %q", typeStr)
	}

	var seq int64
	if _, err := fmt.Sscanf(seqStr, "%d", &seq); err != nil {
		return Inbound{}, fmt.Errorf("wire: parsing \"seq\" attribute %q: %w", seqStr, err)
	}

	var text string
	sawText := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return Inbound{}, fmt.Errorf("wire: reading message element: %w", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			if sawText {
				return Inbound{}, fmt.Errorf("wire: message element has more than one text child")
			}
			text = string(t)
			sawText = true
		case xml.StartElement:
			return Inbound{}, fmt.Errorf("wire: message element's first child is not a text node")
		case xml.EndElement:
			msg, err := registry.Decode(message.MessageType(typeStr[0]), text, tmp)
			if err != nil {
				return Inbound{}, err
			}
			return Inbound{Seq: seq, Message: msg}, nil
		}
	}
}
