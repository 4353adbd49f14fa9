// Package socket implements the long-polling full-duplex emulation engine
// described in spec.md: a Connection that keeps exactly one HTTP response
// parked as its receive channel at all times, donating each outbound POST's
// still-open response to the next receiver cycle.
package socket

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/sirosfoundation/go-htduplex/pkg/message"
)

// Protocol is the constant string returned by Connection.Protocol.
const Protocol = "http"

// OnMessages is invoked with a contiguous, in-order batch of newly
// delivered messages (spec.md §4.3 step 6). Invocations across receive
// cycles are serialized on a single dedicated goroutine so that deliveries
// are never reordered relative to each other (spec.md §5 "Upward
// deliveries are strictly in ascending seq order"); a slow handler
// therefore delays, but does not corrupt the order of, later deliveries —
// the same tradeoff spec.md §5 accepts by listing "upward onMessages
// invocation" as one of the receiver's own blocking points. A panic inside
// the handler is recovered and logged (spec.md §7 callback errors).
type OnMessages func(messages []message.Message)

// OnStart is invoked once the receiver worker has been scheduled.
type OnStart func(c *Connection)

// OnError is invoked at most once, for the first fatal error, immediately
// before the Connection closes itself (spec.md §7).
type OnError func(err error)

// Connection is one established endpoint session — the "socket" of
// spec.md §4.1. The zero Connection is not usable; construct one with
// Context.NewConnection.
type Connection struct {
	owner    *Context
	id       Identifier
	endpoint *url.URL
	address  Address

	logger     *slog.Logger
	httpClient *http.Client
	registry   *message.Registry

	// ioCtx is canceled by Close so any in-flight POST or response-body
	// read is interrupted promptly, standing in for the original's
	// executor-shutdown-driven interruption (spec.md §5).
	ioCtx    context.Context
	ioCancel context.CancelFunc

	// mu/cond form the single monitor spec.md §3/§5 describes: it guards
	// outQueue, its present/absent marker, and receiveSlot together.
	mu          sync.Mutex
	cond        *sync.Cond
	outQueue    []message.Message // nil == queue absent, no sender running
	receiveSlot *http.Response    // at most one parked response at a time
	closed      bool
	started     bool
	failed      bool // set by the first fail call, so onError fires once

	outSeq atomic.Int64 // next value is outSeq.Add(1); starts effectively at 1

	// inMu guards the reorder buffer and inSeq, independent of the
	// send-side monitor (spec.md §5).
	inMu    sync.Mutex
	inSeq   int64
	reorder map[int64]message.Message

	// deliverCh feeds the single dedicated delivery goroutine (see
	// deliverLoop in receiver.go) so that upward deliveries are invoked
	// strictly in the order the receive loop produced them, mirroring the
	// original's per-socket sequential callback executor (spec.md §5
	// "Upward deliveries are strictly in ascending seq order"; a batch
	// per freshly spawned goroutine would give Go no happens-before
	// relation between two deliveries and could reorder them). Only
	// receiveLoop ever sends on it, and receiveLoop alone closes it once
	// it stops producing.
	deliverCh chan deliverJob

	onMessages OnMessages
	onStart    OnStart
	onError    OnError

	// wg tracks the receiver, the sender (while alive), and the single
	// delivery goroutine, so tests can observe quiescence.
	wg sync.WaitGroup
}

// ID returns the connection's opaque server-assigned identifier.
func (c *Connection) ID() Identifier { return c.id }

// Address returns the connection's endpoint address.
func (c *Connection) Address() Address { return c.address }

// Protocol returns the constant string "http" (spec.md §4.1).
func (c *Connection) Protocol() string { return Protocol }

// Start idempotently starts the receiver worker. Calling Start after Close
// returns ErrConnectionClosed; calling it again while already running is a
// no-op that still invokes onStart. onStart is invoked once the receiver
// goroutine has been scheduled; onError is invoked at most once, on the
// first fatal error, immediately before the connection closes.
func (c *Connection) Start(onMessages OnMessages, onStart OnStart, onError OnError) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	if c.started {
		c.mu.Unlock()
		c.safeOnStart(onStart)
		return nil
	}
	c.started = true
	c.onMessages = onMessages
	c.onStart = onStart
	c.onError = onError
	c.mu.Unlock()

	c.logger.Info("connection starting", "endpoint", c.address.String())
	c.wg.Add(1)
	go c.receiveLoop()

	c.safeOnStart(onStart)
	return nil
}

func (c *Connection) safeOnStart(onStart OnStart) {
	if onStart == nil {
		return
	}
	defer c.recoverCallback("onStart")
	onStart(c)
}

// Send enqueues an ordered batch of application messages for transmission.
// It is safe to call from any goroutine at any time and returns
// immediately; messages enqueued after Close are silently dropped
// (spec.md §4.1, §7).
func (c *Connection) Send(messages []message.Message) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	first := c.outQueue == nil
	if first {
		c.outQueue = make([]message.Message, 0, len(messages))
	}
	c.outQueue = append(c.outQueue, messages...)
	c.mu.Unlock()

	if first {
		c.wg.Add(1)
		go c.senderLoop()
	}
}

// Close marks the connection closed, wakes every monitor waiter, and
// closes any currently parked receive channel. Idempotent (spec.md §4.1).
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	slot := c.receiveSlot
	c.receiveSlot = nil
	c.cond.Broadcast()
	c.mu.Unlock()

	c.logger.Info("connection closing")
	if c.ioCancel != nil {
		c.ioCancel()
	}
	if slot != nil {
		slot.Body.Close()
	}
	if c.owner != nil {
		c.owner.remove(c.id)
	}
	return nil
}

// isClosed reports the closed flag without otherwise touching the
// monitor.
func (c *Connection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fail reports err through onError (once) and closes the connection
// (spec.md §7: "If the connection is not already closed, invoke
// callOnError and then close()").
func (c *Connection) fail(err error) {
	c.mu.Lock()
	if c.closed || c.failed {
		c.mu.Unlock()
		return
	}
	c.failed = true
	c.mu.Unlock()

	c.callOnError(err)
	c.Close()
}

func (c *Connection) callOnError(err error) {
	defer c.recoverCallback("onError")
	if c.onError != nil {
		c.onError(err)
	}
	c.logger.Error("connection failed", "error", err)
}

func (c *Connection) recoverCallback(which string) {
	if r := recover(); r != nil {
		c.logger.Error("callback panicked", "callback", which, "panic", r)
	}
}
