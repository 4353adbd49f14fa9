// Package transport builds the net/http.Client and requests used for one
// donation cycle (spec.md §4.2 step 4): fixed connect/read timeouts,
// redirects disabled, caching disabled, method POST.
//
// Adapted from the teacher's pkg/transport/https.go; the TLS version and
// cipher-suite configuration it carries is dropped here because this
// module delegates all transport security to the URL scheme (spec.md §1
// Non-goals: "no encryption, delegated to HTTPS at the URL layer").
package transport

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

// Config controls the timeouts of the client built by NewClient.
type Config struct {
	// ConnectTimeout bounds establishing the TCP/TLS connection.
	ConnectTimeout time.Duration
	// ReadTimeout bounds the whole exchange, from dialing through reading
	// the response body; the server is expected to hold the response open
	// as the long-polling receive channel, so this is deliberately long.
	ReadTimeout time.Duration
}

// DefaultConfig matches spec.md §4.2 step 4: connect timeout 15s, read
// timeout 120s.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 15 * time.Second,
		ReadTimeout:    120 * time.Second,
	}
}

// NewClient returns an *http.Client configured per spec.md §4.2 step 4
// and §6: redirects are never followed, and the read timeout is applied
// as the client's overall per-request Timeout (the connect phase is
// bounded separately by the dialer).
func NewClient(cfg Config) *http.Client {
	dialer := &netDialer{connectTimeout: cfg.ConnectTimeout}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:     dialer.DialContext,
			DisableCompression: false,
		},
		Timeout: cfg.ReadTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// NewPOSTRequest builds the outbound POST request for one donation cycle:
// form-urlencoded content type, fixed Content-Length equal to len(body),
// and cache-disabling headers, matching spec.md §6.
func NewPOSTRequest(ctx context.Context, endpoint string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transport: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.ContentLength = int64(len(body))
	return req, nil
}
