package message

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
)

// BinarySpillThreshold is the payload size, in decoded bytes, above which
// BinaryMessage spills its content into a TempFileContext instead of
// holding it in memory.
const BinarySpillThreshold = 64 * 1024

// BinaryMessage carries an opaque byte payload. Payloads at or below
// BinarySpillThreshold are held in memory; larger payloads are written to
// a temp file owned by the TempFileContext passed to the decoder.
type BinaryMessage struct {
	Data      []byte
	SpillTo   *TempFileContext
	spillPath string // path of the backing temp file, if spilled
}

// NewBinaryMessage wraps data as a BinaryMessage.
func NewBinaryMessage(data []byte) *BinaryMessage {
	return &BinaryMessage{Data: data}
}

func (m *BinaryMessage) Type() MessageType { return TypeBinary }

// EncodeAsString base64-encodes the payload, reading it back from its
// spill file first if it was spilled.
func (m *BinaryMessage) EncodeAsString() (string, error) {
	data := m.Data
	if data == nil && m.spillPath != "" {
		f, err := os.Open(m.spillPath)
		if err != nil {
			return "", fmt.Errorf("message: reopening spilled binary payload: %w", err)
		}
		defer f.Close()
		b, err := io.ReadAll(f)
		if err != nil {
			return "", fmt.Errorf("message: reading spilled binary payload: %w", err)
		}
		data = b
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Bytes returns the payload, reading it back from disk if it was spilled.
func (m *BinaryMessage) Bytes() ([]byte, error) {
	if m.Data != nil {
		return m.Data, nil
	}
	if m.spillPath == "" {
		return nil, nil
	}
	return os.ReadFile(m.spillPath)
}

func decodeBinary(encoded string, tmp *TempFileContext) (Message, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("message: decoding binary payload: %w", err)
	}
	if len(data) <= BinarySpillThreshold || tmp == nil {
		return &BinaryMessage{Data: data}, nil
	}
	path, err := tmp.Spill(data)
	if err != nil {
		return nil, fmt.Errorf("message: spilling binary payload: %w", err)
	}
	return &BinaryMessage{SpillTo: tmp, spillPath: path}, nil
}
