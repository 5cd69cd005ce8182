// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package tinymq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// A NotifyFunc receives a notification relayed by a broadcast broker. There
// is no reply path, so an error it reports is only logged.
type NotifyFunc func(ctx context.Context, payload json.RawMessage) error

// A Subscriber is the receiving side of a broadcast broker. It receives every
// notification published through the broker, and relies on the broker's
// periodic pings to detect that the broker has gone away.
type Subscriber struct {
	conn *Conn

	μ     sync.Mutex
	notif NotifyFunc
}

// NewSubscriber constructs a disconnected subscriber. Call Connect to attach
// it to a broker.
func NewSubscriber(opts *Options) *Subscriber {
	s := new(Subscriber)
	s.conn = newConn(KindSubscribe, "subscriber", s.session, opts,
		opts.pingBase()+listenerHealthSlack)
	return s
}

// Connect connects s to the broker at uri and delivers notifications to f. If
// s is already connected to uri, only the callback is replaced. If f == nil,
// the previous callback is kept; it is an error if there is none.
func (s *Subscriber) Connect(uri string, f NotifyFunc) error {
	if uri == "" {
		return ErrInvalidURI
	}
	s.μ.Lock()
	if f != nil {
		s.notif = f
	}
	ok := s.notif != nil
	s.μ.Unlock()
	if !ok {
		return ErrNoHandler
	}
	return s.conn.Connect(uri)
}

// State reports the connection state of s.
func (s *Subscriber) State() State { return s.conn.State() }

// Shutdown closes the connection and stops all timers.
func (s *Subscriber) Shutdown() { s.conn.Shutdown() }

func (s *Subscriber) session(ctx context.Context, sock Socket) error {
	for {
		frame, err := sock.Recv()
		if err != nil {
			return err
		}
		s.conn.Touch()
		s.conn.m.frameRecv.Inc()
		if IsPing(frame) {
			continue
		}
		s.deliver(ctx, frame)
	}
}

func (s *Subscriber) deliver(ctx context.Context, frame []byte) {
	log := s.conn.log
	var payload json.RawMessage
	if err := codec.Unmarshal(frame, &payload); err != nil {
		s.conn.m.frameDropped.Inc()
		log.Error().Err(err).Str("frame", preview(frame)).Msg("unable to parse the notification")
		return
	}
	s.conn.m.callIn.Inc()

	s.μ.Lock()
	f := s.notif
	s.μ.Unlock()
	if err := s.invoke(ctx, f, payload); err != nil {
		s.conn.m.callInErr.Inc()
		log.Error().Err(err).Msg("notification handler failed")
	}
}

func (s *Subscriber) invoke(ctx context.Context, f NotifyFunc, payload json.RawMessage) (err error) {
	defer func() {
		if x := recover(); x != nil {
			err = fmt.Errorf("handler panicked: %v", x)
		}
	}()
	return f(ctx, payload)
}
