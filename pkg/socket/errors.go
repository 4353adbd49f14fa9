package socket

import (
	"errors"
	"fmt"
)

// ErrConnectionClosed is returned by Start when called on an already
// closed Connection — a programmer error per spec.md §4.1.
var ErrConnectionClosed = errors.New("socket: connection is closed")

// protocolError reports a fatal protocol violation in an inbound response
// (spec.md §7: "wrong root element, bad child node kind, malformed
// sequence/type", and the duplicate-sequence case).
type protocolError struct {
	msg string
}

func (e *protocolError) Error() string { return "socket: protocol error: " + e.msg }

func newProtocolError(format string, args ...any) error {
	return &protocolError{msg: fmt.Sprintf(format, args...)}
}

// transportError reports a fatal transport failure (spec.md §7: connect
// failure, write/read failure, timeout, non-200 status).
type transportError struct {
	msg string
	err error
}

func (e *transportError) Error() string {
	if e.err != nil {
		return "socket: transport error: " + e.msg + ": " + e.err.Error()
	}
	return "socket: transport error: " + e.msg
}

func (e *transportError) Unwrap() error { return e.err }

func newTransportError(msg string, err error) error {
	return &transportError{msg: msg, err: err}
}
