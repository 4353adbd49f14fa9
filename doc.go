// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package gohtduplex implements the client side of an asynchronous,
bidirectional, reliable, in-order messaging transport layered on top of
plain HTTP request/response: a long-polling emulation of a full-duplex
socket.

# Overview

Every outbound POST donates its still-open HTTP response to the next
receive cycle, so a single endpoint serves as both the send channel and
the receive channel without a persistent TCP connection, a WebSocket
upgrade, or server push of any kind. A Connection keeps exactly one
response parked as its receive channel at all times; if there is nothing
to send, it sends an empty batch purely to keep that channel open.

# Package Structure

	github.com/sirosfoundation/go-htduplex/pkg/message    - application message types, codecs, temp-file spillover
	github.com/sirosfoundation/go-htduplex/pkg/wire        - outbound POST encoding, inbound XML decoding
	github.com/sirosfoundation/go-htduplex/pkg/transport   - HTTP client and request construction
	github.com/sirosfoundation/go-htduplex/pkg/socket      - Connection, Context, sender and receiver workers

# Quick Start

	ctx := socket.NewContext(socket.DefaultConfig())
	endpoint, _ := url.Parse("https://example.com/duplex")
	conn := ctx.NewConnection(socket.NewIdentifier(), endpoint)

	conn.Start(
	    func(messages []message.Message) { ... },
	    func(c *socket.Connection) { ... },
	    func(err error) { ... },
	)
	conn.Send([]message.Message{message.NewTextMessage("hello")})
	defer conn.Close()

# Non-goals

This module implements the transport only: connection-identifier
handshake, transport encryption, authentication beyond the opaque
connection id, flow control, and message persistence across restarts are
all out of scope and left to the caller and the server.

# License

BSD-2-Clause License
*/
package gohtduplex
