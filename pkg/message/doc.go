// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package message defines the application-message abstraction carried over
a duplex connection: a one-character wire type tag, a string-based encode
contract, and a registry that maps a type tag back to a decoder.

# Message Types

Two concrete kinds are provided out of the box:

TextMessage - small inline text payloads, encoded verbatim.

BinaryMessage - arbitrary byte payloads, base64-encoded on the wire.
Payloads above BinarySpillThreshold are written to a TempFileContext by
the decoder instead of being held in memory for the life of the message.

# Registry

NewDefaultRegistry returns a Registry with both decoders pre-registered.
Register a custom MessageType to extend the wire protocol with
application-specific payloads without touching the transport layer.
*/
package message
