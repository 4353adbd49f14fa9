package message

// TextMessage is a short inline UTF-8 message, encoded as itself.
type TextMessage struct {
	Text string
}

// NewTextMessage wraps s as a TextMessage.
func NewTextMessage(s string) *TextMessage {
	return &TextMessage{Text: s}
}

func (m *TextMessage) Type() MessageType { return TypeText }

func (m *TextMessage) EncodeAsString() (string, error) {
	return m.Text, nil
}

func decodeText(encoded string, _ *TempFileContext) (Message, error) {
	return &TextMessage{Text: encoded}, nil
}
