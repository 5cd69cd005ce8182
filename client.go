// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package tinymq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// A Client is the request side of a balancing broker. It sends structured
// requests to whichever worker the broker selects, and correlates the replies
// with the pending requests by id.
//
// A Client is safe for concurrent use by multiple goroutines.
type Client struct {
	*requester
	reg *Registry
	ttl time.Duration
}

// NewClient constructs a disconnected client. Call Connect to attach it to a
// broker.
func NewClient(opts *Options) *Client {
	c := &Client{reg: NewRegistry(nil), ttl: opts.requestTTL()}
	c.requester = newRequester("client", opts, c.gotReply)
	c.conn.addTimer(opts.sweepInterval(), c.sweep)
	return c
}

// Connect connects c to the broker at uri. It returns once the connection is
// under way; requests sent before it is established are queued.
func (c *Client) Connect(uri string) error { return c.conn.Connect(uri) }

// State reports the connection state of c.
func (c *Client) State() State { return c.conn.State() }

// Pending reports the number of requests awaiting a reply.
func (c *Client) Pending() int { return c.reg.Len() }

// Send sends a request carrying params, which must encode as an object. It
// returns a Call that completes when the reply arrives or the request
// expires. If cb != nil, it is invoked with the result when the call
// completes, but not if c is shut down first. The callback runs on the
// goroutine serving the connection, so it must not call c.Shutdown directly;
// use go c.Shutdown() instead.
func (c *Client) Send(params any, cb Callback) (*Call, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	frame, err := EncodeRequest(id, params)
	if err != nil {
		return nil, err
	}
	call, err := c.reg.Register(id, c.ttl, cb)
	if err != nil {
		return nil, err
	}
	if err := c.enqueue(frame); err != nil {
		c.reg.Remove(id)
		c.conn.log.Error().Err(err).Str("id", id).Msg("request not sent")
		return nil, err
	}
	c.conn.m.callOut.Inc()
	c.conn.m.callPending.Inc()
	return call, nil
}

// Call sends a request carrying params and blocks until the reply arrives,
// the request expires, or ctx ends. A reply in the error form is reported as
// a *RemoteError.
func (c *Client) Call(ctx context.Context, params any) (json.RawMessage, error) {
	call, err := c.Send(params, nil)
	if err != nil {
		return nil, err
	}
	return call.Wait(ctx)
}

// Shutdown closes the connection and stops all timers. Pending calls are
// released with ErrClosed; their callbacks are not invoked.
func (c *Client) Shutdown() {
	c.conn.Shutdown()
	n := c.reg.Close(ErrClosed)
	c.conn.m.callPending.Sub(float64(n))
}

func (c *Client) gotReply(frame []byte) {
	if c.conn.State() == Terminating {
		return
	}
	log := c.conn.log
	if len(frame) == 0 {
		c.conn.m.frameDropped.Inc()
		log.Error().Msg("empty reply from the broker")
		return
	}
	rsp, err := DecodeReply(frame)
	if err != nil {
		c.conn.m.frameDropped.Inc()
		log.Error().Err(err).Str("frame", preview(frame)).Msg("unable to parse the reply")
		return
	}
	if !c.reg.Resolve(rsp.ID, rsp.Response, rsp.Err()) {
		c.conn.m.callUnmatch.Inc()
		log.Debug().Str("id", rsp.ID).Stringer("reply", rsp).Msg("no pending request for reply")
		return
	}
	c.conn.m.callPending.Dec()
}

func (c *Client) sweep() {
	if n := c.reg.Sweep(time.Now()); n > 0 {
		c.conn.m.callTimeout.Add(float64(n))
		c.conn.m.callPending.Sub(float64(n))
		c.conn.log.Debug().Int("expired", n).Msg("expired pending requests")
	}
}
