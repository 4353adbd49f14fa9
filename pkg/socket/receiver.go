package socket

import (
	"net/http"

	"github.com/sirosfoundation/go-htduplex/pkg/message"
	"github.com/sirosfoundation/go-htduplex/pkg/wire"
)

// receiveLoop is the receiver worker of spec.md §4.3. It owns the
// connection's single parked receive channel: whenever no response is
// currently parked, it kicks the sender with an empty Send so a fresh
// donation cycle parks one, waits for it, decodes it, and reorders the
// messages it carries into the contiguous delivery sequence before handing
// them upward through onMessages.
func (c *Connection) receiveLoop() {
	defer c.wg.Done()
	c.logger.Info("receiver starting")
	defer c.logger.Info("receiver stopped")

	c.wg.Add(1)
	go c.deliverLoop()
	defer close(c.deliverCh)

	tmp, err := message.NewTempFileContext()
	if err != nil {
		c.fail(newTransportError("allocating temp file context", err))
		return
	}
	defer tmp.Close()

	for {
		resp, ok := c.awaitReceiveSlot()
		if !ok {
			return
		}

		delivered, err := c.processResponse(resp, tmp)
		if err != nil {
			c.fail(err)
			return
		}

		if len(delivered) == 0 {
			c.logger.Debug("receive cycle completed with no deliverable messages")
			continue
		}
		c.logger.Debug("receive cycle delivering messages", "count", len(delivered))

		if tmp.Size() > 0 {
			// Payload spilled during this cycle's decode: hand the
			// current context to the delivery goroutine to close once
			// onMessages has finished with it, and start the next cycle
			// with a fresh one (spec.md §4.3 step 6, §6).
			spent := tmp
			next, err := message.NewTempFileContext()
			if err != nil {
				c.fail(newTransportError("allocating temp file context", err))
				return
			}
			c.sendDeliver(delivered, spent)
			tmp = next
		} else {
			c.sendDeliver(delivered, nil)
		}
	}
}

// awaitReceiveSlot waits until a response is parked in receiveSlot and
// claims it without clearing the slot field yet (spec.md §4.3 steps 1-3):
// the slot stays occupied, continuing to satisfy the donation invariant,
// until this response has actually been consumed and a fresh one takes
// its place. If no queue is currently running, it unlocks and calls
// Send(nil) as the side-effecting kick that spawns one (mirroring the
// original's "wait with side effect" pattern; Go's Mutex is not
// reentrant, so the kick must happen outside the lock Send itself needs).
func (c *Connection) awaitReceiveSlot() (*http.Response, bool) {
	c.mu.Lock()
	for {
		if c.closed {
			c.mu.Unlock()
			return nil, false
		}
		if c.receiveSlot != nil {
			resp := c.receiveSlot
			c.mu.Unlock()
			return resp, true
		}
		if c.outQueue != nil {
			c.cond.Wait()
			continue
		}
		c.mu.Unlock()
		c.Send(nil)
		c.mu.Lock()
	}
}

// processResponse validates the HTTP status, decodes the response body,
// and merges newly arrived sequence numbers into the reorder buffer,
// returning the contiguous in-order prefix now ready for delivery
// (spec.md §4.3 steps 4-6). It clears receiveSlot and wakes the sender
// once the response has been fully read, per the donation protocol: the
// slot must stay occupied for the sender to see until this point.
func (c *Connection) processResponse(resp *http.Response, tmp *message.TempFileContext) ([]message.Message, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.clearReceiveSlot(resp)
		return nil, newTransportError("unexpected response status "+resp.Status, nil)
	}

	inbound, err := wire.DecodeResponse(resp.Body, c.registry, tmp)
	if err != nil {
		c.clearReceiveSlot(resp)
		return nil, newProtocolError("%v", err)
	}

	c.clearReceiveSlot(resp)

	return c.mergeInbound(inbound)
}

// clearReceiveSlot clears receiveSlot back to nil, asserting it still
// holds the response this receiver cycle claimed (spec.md §4.3 step 7),
// and wakes any sender blocked waiting for the slot to free up.
func (c *Connection) clearReceiveSlot(resp *http.Response) {
	c.mu.Lock()
	if c.receiveSlot == resp {
		c.receiveSlot = nil
	}
	c.cond.Broadcast()
	c.mu.Unlock()
}

// mergeInbound inserts newly decoded messages into the reorder buffer and
// drains the contiguous prefix starting at inSeq (spec.md §4.3 step 6,
// §9 Open Questions: a sequence number at or below the already-delivered
// cursor, or already present in the buffer, is treated as a fatal
// duplicate rather than silently dropped).
func (c *Connection) mergeInbound(inbound []wire.Inbound) ([]message.Message, error) {
	c.inMu.Lock()
	defer c.inMu.Unlock()

	for _, in := range inbound {
		if in.Seq < c.inSeq {
			return nil, newProtocolError("duplicate inbound sequence %d: already delivered up to %d", in.Seq, c.inSeq-1)
		}
		if _, exists := c.reorder[in.Seq]; exists {
			return nil, newProtocolError("duplicate inbound sequence %d", in.Seq)
		}
		c.reorder[in.Seq] = in.Message
	}

	var out []message.Message
	for {
		msg, ok := c.reorder[c.inSeq]
		if !ok {
			break
		}
		delete(c.reorder, c.inSeq)
		out = append(out, msg)
		c.inSeq++
	}
	return out, nil
}

// deliverJob is one batch handed from receiveLoop to deliverLoop: the
// contiguous run of newly in-order messages from one receive cycle, plus
// the temp-file context (if any) that backs any spilled payloads in it.
type deliverJob struct {
	messages []message.Message
	spent    *message.TempFileContext
}

// sendDeliver hands one cycle's delivery off to the single deliverLoop
// goroutine. Only receiveLoop calls this, and only before it closes
// deliverCh, so the send never races a close.
func (c *Connection) sendDeliver(messages []message.Message, spent *message.TempFileContext) {
	c.deliverCh <- deliverJob{messages: messages, spent: spent}
}

// deliverLoop is the connection's single dedicated delivery goroutine. It
// invokes onMessages once per job, strictly in the order receiveLoop
// produced them — a channel's single consumer preserves FIFO order, unlike
// one goroutine per batch, which gives Go no happens-before relation
// between two deliveries and can let a later sequence run its callback
// before an earlier one (spec.md §5: "Upward deliveries are strictly in
// ascending seq order"; §8 property 1). It exits once receiveLoop closes
// deliverCh, after draining whatever was already queued.
//
// Each job's callback is gated on the connection not yet being closed
// (spec.md §8 property 4: "After close() returns, no further upward
// callback fires"), checked immediately before invocation so a Close()
// that races a still-queued job wins the race rather than the callback.
func (c *Connection) deliverLoop() {
	defer c.wg.Done()
	for job := range c.deliverCh {
		if !c.isClosed() && c.onMessages != nil {
			c.invokeOnMessages(job.messages)
		}
		if job.spent != nil {
			job.spent.Close()
		}
	}
}

// invokeOnMessages calls onMessages with panics recovered and logged
// (spec.md §7: "exceptions thrown by upward onMessages... are logged and
// swallowed; they never propagate into worker control flow").
func (c *Connection) invokeOnMessages(messages []message.Message) {
	defer c.recoverCallback("onMessages")
	c.onMessages(messages)
}
