// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package tinymq

// A Publisher is the request side of a broadcast broker. Each published
// notification is acknowledged by the broker and fanned out to every
// subscriber; the acknowledgement carries no data and serves only as proof
// of liveness.
//
// A Publisher is safe for concurrent use by multiple goroutines.
type Publisher struct {
	*requester
}

// NewPublisher constructs a disconnected publisher. Call Connect to attach it
// to a broker.
func NewPublisher(opts *Options) *Publisher {
	p := new(Publisher)
	p.requester = newRequester("publisher", opts, func([]byte) {})
	return p
}

// Connect connects p to the broker at uri. It returns once the connection is
// under way; notifications published before it is established are queued.
func (p *Publisher) Connect(uri string) error { return p.conn.Connect(uri) }

// State reports the connection state of p.
func (p *Publisher) State() State { return p.conn.State() }

// Publish queues payload, which must encode as an object, for broadcast.
// Delivery is not confirmed.
func (p *Publisher) Publish(payload any) error {
	if err := p.ready(); err != nil {
		return err
	}
	frame, err := marshalObject(payload)
	if err != nil {
		return err
	}
	if err := p.enqueue(frame); err != nil {
		p.conn.log.Error().Err(err).Msg("notification not sent")
		return err
	}
	p.conn.m.callOut.Inc()
	return nil
}

// Shutdown closes the connection and stops all timers. Queued notifications
// that were not yet sent are discarded.
func (p *Publisher) Shutdown() { p.conn.Shutdown() }
