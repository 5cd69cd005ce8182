// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

// Package channel provides implementations of the tinymq.Socket and
// tinymq.Dialer interfaces.
package channel

import (
	"bytes"
	"context"
	"net"
	"sync"

	"github.com/creachadair/tinymq"
)

// Direct constructs a connected pair of in-memory sockets. Frames sent to A
// are received by B and vice versa. Closing either end closes both, and
// unblocks any pending operations on either end.
//
// Direct sockets do not enforce the alternation of a request or reply socket.
func Direct() (A, B tinymq.Socket) {
	l := &link{done: make(chan struct{})}
	a2b := make(chan []byte)
	b2a := make(chan []byte)
	A = direct{link: l, out: a2b, in: b2a}
	B = direct{link: l, out: b2a, in: a2b}
	return
}

type link struct {
	once sync.Once
	done chan struct{}
}

func (l *link) closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

type direct struct {
	*link
	out chan<- []byte
	in  <-chan []byte
}

// Send implements a method of the [tinymq.Socket] interface.
func (d direct) Send(frame []byte) error {
	if d.closed() {
		return net.ErrClosed
	}
	select {
	case <-d.done:
		return net.ErrClosed
	case d.out <- bytes.Clone(frame):
		return nil
	}
}

// Recv implements a method of the [tinymq.Socket] interface.
func (d direct) Recv() ([]byte, error) {
	if d.closed() {
		return nil, net.ErrClosed
	}
	select {
	case <-d.done:
		return nil, net.ErrClosed
	case frame := <-d.in:
		return frame, nil
	}
}

// Close implements a method of the [tinymq.Socket] interface.
func (d direct) Close() error {
	err := net.ErrClosed
	d.once.Do(func() { close(d.done); err = nil })
	return err
}

// A Conn is the broker end of a connection accepted by a [Switch].
type Conn struct {
	tinymq.Socket
	Kind tinymq.Kind // the kind of socket the dialer requested
	URI  string      // the URI passed to Dial
}

// A Switch is an in-memory [tinymq.Dialer]. Each call to Dial blocks until
// the connection is accepted by a call to Accept, as if the broker were not
// yet listening, and then returns one end of a [Direct] pair while Accept
// returns the other.
type Switch struct {
	conns chan Conn
	stop  chan struct{}
	once  sync.Once
}

// NewSwitch constructs a new empty switch.
func NewSwitch() *Switch {
	return &Switch{conns: make(chan Conn), stop: make(chan struct{})}
}

// Dial implements the [tinymq.Dialer] interface.
func (s *Switch) Dial(ctx context.Context, kind tinymq.Kind, uri string) (tinymq.Socket, error) {
	a, b := Direct()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.stop:
		return nil, net.ErrClosed
	case s.conns <- Conn{Socket: b, Kind: kind, URI: uri}:
		return a, nil
	}
}

// Accept blocks until a dialer connects, ctx ends, or s is closed.
func (s *Switch) Accept(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return Conn{}, ctx.Err()
	case <-s.stop:
		return Conn{}, net.ErrClosed
	case c := <-s.conns:
		return c, nil
	}
}

// Close closes s, causing pending and future Dial and Accept calls to fail.
// Connections already accepted are not affected.
func (s *Switch) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}
