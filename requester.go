// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package tinymq

import (
	"context"
	"time"
)

// A requester runs the lockstep exchange of a request-side socket: each
// outbound frame is followed by exactly one inbound frame. Frames queued while
// no socket is connected are sent once one is.
type requester struct {
	conn  *Conn
	queue chan []byte
	ping  time.Duration
	recv  func([]byte) // handles each inbound frame other than a pong
}

func newRequester(name string, opts *Options, recv func([]byte)) *requester {
	r := &requester{
		queue: make(chan []byte, opts.queueSize()),
		ping:  opts.pingInterval(),
		recv:  recv,
	}
	r.conn = newConn(KindRequest, name, r.session, opts, requesterHealthInterval)
	return r
}

// enqueue adds frame to the outbound queue without blocking.
func (r *requester) enqueue(frame []byte) error {
	select {
	case r.queue <- frame:
		return nil
	default:
		return ErrQueueFull
	}
}

// ready reports whether r can accept outbound frames.
func (r *requester) ready() error {
	switch r.conn.State() {
	case Terminating:
		return ErrClosed
	case Disconnected:
		return ErrNotConnected
	}
	return nil
}

func (r *requester) session(ctx context.Context, s Socket) error {
	idle := time.NewTimer(r.ping)
	defer idle.Stop()
	for {
		var frame []byte
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame = <-r.queue:
		case <-idle.C:
			frame = []byte(Ping)
		}
		if err := s.Send(frame); err != nil {
			return err
		}
		r.conn.m.frameSent.Inc()

		rsp, err := s.Recv()
		if err != nil {
			return err
		}
		r.conn.Touch()
		r.conn.m.frameRecv.Inc()
		if !IsPong(rsp) {
			r.recv(rsp)
		}
		idle.Reset(r.ping)
	}
}
