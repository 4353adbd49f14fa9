package socket

import (
	"net/http"

	"github.com/sirosfoundation/go-htduplex/pkg/message"
	"github.com/sirosfoundation/go-htduplex/pkg/transport"
	"github.com/sirosfoundation/go-htduplex/pkg/wire"
)

// senderLoop is the sender worker of spec.md §4.2. Exactly one instance
// runs at a time per Connection (invariant 5: the sender exists iff the
// outbound queue is present).
func (c *Connection) senderLoop() {
	defer c.wg.Done()
	c.logger.Info("sender starting")
	defer c.logger.Info("sender stopped")

	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		if len(c.outQueue) == 0 && c.receiveSlot != nil {
			// Step 1: nothing to send and a receive channel is already
			// parked — the donation invariant holds without us. Exit;
			// a later Send will spawn a fresh sender.
			c.outQueue = nil
			c.mu.Unlock()
			return
		}
		batch := c.outQueue
		c.outQueue = make([]message.Message, 0, 8)
		c.mu.Unlock()

		c.logger.Debug("posting outbound batch", "count", len(batch))
		resp, err := c.postBatch(batch)
		if err != nil {
			c.fail(err)
			return
		}

		c.mu.Lock()
		for c.receiveSlot != nil && !c.closed {
			c.cond.Wait()
		}
		if c.closed {
			c.mu.Unlock()
			resp.Body.Close()
			return
		}
		c.receiveSlot = resp
		c.cond.Broadcast()
		c.mu.Unlock()
		c.logger.Debug("donated response as new receive channel")
	}
}

// postBatch assigns fresh outbound sequence numbers, encodes the batch,
// and performs one donation-cycle POST (spec.md §4.2 steps 3-5). The
// response is returned with its body unread — reading and closing it is
// the receiver's job.
func (c *Connection) postBatch(batch []message.Message) (*http.Response, error) {
	out := make([]wire.Outbound, len(batch))
	for i, m := range batch {
		out[i] = wire.Outbound{Seq: c.outSeq.Add(1), Message: m}
	}

	body, err := wire.EncodeRequest(c.id.String(), out)
	if err != nil {
		return nil, newProtocolError("encoding outbound batch: %v", err)
	}

	req, err := transport.NewPOSTRequest(c.ioCtx, c.endpoint.String(), body)
	if err != nil {
		return nil, newTransportError("building request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newTransportError("POST failed", err)
	}
	return resp, nil
}
