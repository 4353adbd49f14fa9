// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package transport builds the net/http.Client and *http.Request values
used for one donation cycle of the duplex protocol: a fixed connect
timeout, a long read timeout so the server can hold the response open as
the next receive channel, redirects disabled, and caching disabled.

TLS, if any, is delegated entirely to the endpoint URL's scheme; this
package has no certificate or cipher-suite configuration of its own.
*/
package transport
