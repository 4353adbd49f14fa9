package socket

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-htduplex/pkg/message"
)

// echoHandler is a minimal in-process stand-in for the server side of the
// protocol: every inbound message is echoed straight back, tagged with a
// per-connection-id outbound sequence counter, in the same donation cycle
// it arrived on. The server side of this protocol is explicitly out of
// scope for this module; this exists only to drive Connection end to end.
type echoHandler struct {
	mu       sync.Mutex
	outSeq   map[string]int64
	requests atomic.Int64

	mutate func(id string, body map[string]string, w http.ResponseWriter) bool // true if it handled the response itself
}

func newEchoHandler() *echoHandler {
	return &echoHandler{outSeq: make(map[string]int64)}
}

func (h *echoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.requests.Add(1)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form body", http.StatusBadRequest)
		return
	}
	id := r.Form.Get("id")

	if h.mutate != nil {
		fields := map[string]string{}
		for k := range r.Form {
			fields[k] = r.Form.Get(k)
		}
		if h.mutate(id, fields, w) {
			return
		}
	}

	count := 0
	fmt.Sscanf(r.Form.Get("l"), "%d", &count)

	h.mu.Lock()
	seq := h.outSeq[id]
	var b []byte
	b = append(b, []byte(`<messages>`)...)
	for i := 0; i < count; i++ {
		seq++
		text := r.Form.Get(fmt.Sprintf("m%d", i))
		typ := r.Form.Get(fmt.Sprintf("t%d", i))
		b = append(b, []byte(fmt.Sprintf(`<message seq="%d" type="%s">ECHO:%s</message>`, seq, typ, text))...)
	}
	b = append(b, []byte(`</messages>`)...)
	h.outSeq[id] = seq
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func newTestContext(t *testing.T, handler http.Handler) (*Context, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewContext(DefaultConfig()), server
}

func TestConnectionSendAndReceiveRoundTrip(t *testing.T) {
	h := newEchoHandler()
	ctx, server := newTestContext(t, h)
	endpoint, err := url.Parse(server.URL)
	require.NoError(t, err)

	conn := ctx.NewConnection(NewIdentifier(), endpoint)

	received := make(chan string, 4)
	require.NoError(t, conn.Start(
		func(messages []message.Message) {
			for _, m := range messages {
				received <- m.(*message.TextMessage).Text
			}
		},
		nil,
		func(err error) { t.Errorf("unexpected connection error: %v", err) },
	))
	defer conn.Close()

	conn.Send([]message.Message{message.NewTextMessage("ping")})

	select {
	case text := <-received:
		assert.Equal(t, "ECHO:ping", text)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for echoed message")
	}
}

func TestConnectionReordersOutOfSequenceDelivery(t *testing.T) {
	h := newEchoHandler()
	h.mutate = func(id string, fields map[string]string, w http.ResponseWriter) bool {
		if fields["l"] != "0" {
			return false
		}
		// First kicker cycle: hand back seq 2 before seq 1 in document
		// order; the reorder buffer must still deliver 1 then 2.
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<messages>` +
			`<message seq="2" type="S">second</message>` +
			`<message seq="1" type="S">first</message>` +
			`</messages>`))
		h.mutate = nil
		return true
	}

	ctx, server := newTestContext(t, h)
	endpoint, err := url.Parse(server.URL)
	require.NoError(t, err)
	conn := ctx.NewConnection(NewIdentifier(), endpoint)

	received := make(chan string, 4)
	require.NoError(t, conn.Start(
		func(messages []message.Message) {
			for _, m := range messages {
				received <- m.(*message.TextMessage).Text
			}
		},
		nil,
		func(err error) { t.Errorf("unexpected connection error: %v", err) },
	))
	defer conn.Close()

	assertNext := func(want string) {
		select {
		case got := <-received:
			assert.Equal(t, want, got)
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
	assertNext("first")
	assertNext("second")
}

func TestConnectionDeliversAcrossSeparateCyclesInOrder(t *testing.T) {
	var cycle atomic.Int64
	h := newEchoHandler()
	h.mutate = func(id string, fields map[string]string, w http.ResponseWriter) bool {
		n := cycle.Add(1)
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusOK)
		switch n {
		case 1:
			// First donation cycle delivers seq 1 alone.
			w.Write([]byte(`<messages><message seq="1" type="S">first</message></messages>`))
		case 2:
			// Second, independent cycle delivers seq 2 alone. Each cycle
			// produces its own deliverJob; onMessages for "first" and
			// "second" must still fire in seq order even though they are
			// handed off on two separate receive cycles.
			w.Write([]byte(`<messages><message seq="2" type="S">second</message></messages>`))
		default:
			w.Write([]byte(`<messages></messages>`))
		}
		return true
	}

	ctx, server := newTestContext(t, h)
	endpoint, err := url.Parse(server.URL)
	require.NoError(t, err)
	conn := ctx.NewConnection(NewIdentifier(), endpoint)

	var order []string
	var mu sync.Mutex
	done := make(chan struct{})
	require.NoError(t, conn.Start(
		func(messages []message.Message) {
			mu.Lock()
			for _, m := range messages {
				order = append(order, m.(*message.TextMessage).Text)
			}
			n := len(order)
			mu.Unlock()
			if n >= 2 {
				select {
				case done <- struct{}{}:
				default:
				}
			}
		},
		nil,
		func(err error) { t.Errorf("unexpected connection error: %v", err) },
	))
	defer conn.Close()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for both messages to be delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second"}, order)
}

func TestConnectionDuplicateInboundSequenceIsFatal(t *testing.T) {
	var cycle atomic.Int64
	h := newEchoHandler()
	h.mutate = func(id string, fields map[string]string, w http.ResponseWriter) bool {
		n := cycle.Add(1)
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusOK)
		if n <= 2 {
			// Same sequence number delivered on two separate cycles.
			w.Write([]byte(`<messages><message seq="1" type="S">dup</message></messages>`))
			return true
		}
		w.Write([]byte(`<messages></messages>`))
		return true
	}

	ctx, server := newTestContext(t, h)
	endpoint, err := url.Parse(server.URL)
	require.NoError(t, err)
	conn := ctx.NewConnection(NewIdentifier(), endpoint)

	onErr := make(chan error, 1)
	require.NoError(t, conn.Start(
		func(messages []message.Message) {},
		nil,
		func(err error) { onErr <- err },
	))
	defer conn.Close()

	select {
	case err := <-onErr:
		assert.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for fatal duplicate-sequence error")
	}
}

func TestConnectionNonOKStatusIsFatal(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx, server := newTestContext(t, handler)
	endpoint, err := url.Parse(server.URL)
	require.NoError(t, err)
	conn := ctx.NewConnection(NewIdentifier(), endpoint)

	onErr := make(chan error, 1)
	require.NoError(t, conn.Start(
		func(messages []message.Message) {},
		nil,
		func(err error) { onErr <- err },
	))
	defer conn.Close()

	select {
	case err := <-onErr:
		assert.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for fatal transport error")
	}
}

func TestConnectionCloseIsIdempotent(t *testing.T) {
	ctx := NewContext(DefaultConfig())
	endpoint, _ := url.Parse("http://127.0.0.1:0/duplex")
	conn := ctx.NewConnection(NewIdentifier(), endpoint)

	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
}

func TestConnectionStartAfterCloseFails(t *testing.T) {
	ctx := NewContext(DefaultConfig())
	endpoint, _ := url.Parse("http://127.0.0.1:0/duplex")
	conn := ctx.NewConnection(NewIdentifier(), endpoint)
	require.NoError(t, conn.Close())

	err := conn.Start(func(messages []message.Message) {}, nil, nil)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestConnectionStartIsIdempotent(t *testing.T) {
	h := newEchoHandler()
	ctx, server := newTestContext(t, h)
	endpoint, err := url.Parse(server.URL)
	require.NoError(t, err)
	conn := ctx.NewConnection(NewIdentifier(), endpoint)
	defer conn.Close()

	var starts atomic.Int64
	onStart := func(c *Connection) { starts.Add(1) }

	require.NoError(t, conn.Start(func(messages []message.Message) {}, onStart, nil))
	require.NoError(t, conn.Start(func(messages []message.Message) {}, onStart, nil))

	assert.Eventually(t, func() bool { return starts.Load() == 2 }, time.Second, 10*time.Millisecond)
}

func TestConnectionKickerRepeatsWhileIdle(t *testing.T) {
	h := newEchoHandler()
	ctx, server := newTestContext(t, h)
	endpoint, err := url.Parse(server.URL)
	require.NoError(t, err)
	conn := ctx.NewConnection(NewIdentifier(), endpoint)
	defer conn.Close()

	require.NoError(t, conn.Start(func(messages []message.Message) {}, nil, nil))

	assert.Eventually(t, func() bool { return h.requests.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}
