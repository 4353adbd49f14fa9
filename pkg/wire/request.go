// Package wire implements the on-the-wire codec for the long-polling
// duplex protocol described in spec.md §6: the form-urlencoded outbound
// POST body and the XML inbound response body.
package wire

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirosfoundation/go-htduplex/pkg/message"
)

// Outbound pairs a Message with the outbound sequence number assigned to
// it immediately before encoding (spec.md §3: "incremented atomically
// once per outbound message as it is placed into a POST body").
type Outbound struct {
	Seq     int64
	Message message.Message
}

// EncodeRequest builds the POST body for one donation cycle: "action=messages",
// the connection id, the batch length, and per-message "s<i>"/"t<i>"/"m<i>"
// triples, in that order, matching spec.md §6 exactly.
func EncodeRequest(id string, batch []Outbound) ([]byte, error) {
	var b strings.Builder
	b.WriteString("action=messages&id=")
	b.WriteString(url.QueryEscape(id))
	b.WriteString("&l=")
	b.WriteString(strconv.Itoa(len(batch)))
	for i, item := range batch {
		encoded, err := item.Message.EncodeAsString()
		if err != nil {
			return nil, fmt.Errorf("wire: encoding message %d: %w", i, err)
		}
		fmt.Fprintf(&b, "&s%d=%d&t%d=%c&m%d=%s",
			i, item.Seq,
			i, item.Message.Type(),
			i, url.QueryEscape(encoded),
		)
	}
	return []byte(b.String()), nil
}
