// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package tinymq_test

import (
	"sync"
	"testing"

	"github.com/creachadair/taskgroup"
	"github.com/creachadair/tinymq"
	"github.com/creachadair/tinymq/channel"
)

// fakeBroker accepts every connection dialed through its switch, and records
// them in order.
type fakeBroker struct {
	sw   *channel.Switch
	loop *taskgroup.Single[error]

	μ     sync.Mutex
	conns []channel.Conn
	ready chan struct{} // closed and replaced when a connection arrives
}

func newFakeBroker(t testing.TB) *fakeBroker {
	t.Helper()
	b := &fakeBroker{sw: channel.NewSwitch(), ready: make(chan struct{})}
	b.loop = taskgroup.Go(func() error {
		for {
			c, err := b.sw.Accept(t.Context())
			if err != nil {
				return nil
			}
			b.μ.Lock()
			b.conns = append(b.conns, c)
			close(b.ready)
			b.ready = make(chan struct{})
			b.μ.Unlock()
		}
	})
	return b
}

// Options returns role options that dial b.
func (b *fakeBroker) Options() *tinymq.Options { return &tinymq.Options{Dialer: b.sw} }

// Dials reports the number of connections accepted so far.
func (b *fakeBroker) Dials() int {
	b.μ.Lock()
	defer b.μ.Unlock()
	return len(b.conns)
}

// Conn returns the i-th connection accepted, waiting for it if necessary.
func (b *fakeBroker) Conn(t testing.TB, i int) channel.Conn {
	t.Helper()
	for {
		b.μ.Lock()
		if i < len(b.conns) {
			c := b.conns[i]
			b.μ.Unlock()
			return c
		}
		ready := b.ready
		b.μ.Unlock()
		select {
		case <-ready:
		case <-t.Context().Done():
			t.Fatalf("Conn %d: %v", i, t.Context().Err())
		}
	}
}

// Stop closes the switch and every connection, and waits for the accept loop
// to exit.
func (b *fakeBroker) Stop() {
	b.sw.Close()
	b.loop.Wait()
	b.μ.Lock()
	defer b.μ.Unlock()
	for _, c := range b.conns {
		c.Close()
	}
}

// exchange sends frame on c and returns the frame received in reply.
func exchange(t *testing.T, c channel.Conn, frame []byte) []byte {
	t.Helper()
	if err := c.Send(frame); err != nil {
		t.Fatalf("Send %q: %v", frame, err)
	}
	rsp, err := c.Recv()
	if err != nil {
		t.Fatalf("Recv reply to %q: %v", frame, err)
	}
	return rsp
}

// relay forwards each frame received from front to back, and returns the
// reply from back to front, in the manner of a balancing broker with a single
// worker. It runs until either connection fails.
func relay(front, back channel.Conn) *taskgroup.Single[error] {
	return taskgroup.Go(func() error {
		defer front.Close()
		defer back.Close()
		for {
			frame, err := front.Recv()
			if err != nil {
				return nil
			}
			if err := back.Send(frame); err != nil {
				return nil
			}
			rsp, err := back.Recv()
			if err != nil {
				return nil
			}
			if err := front.Send(rsp); err != nil {
				return nil
			}
		}
	})
}
