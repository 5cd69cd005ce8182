// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package tinymq_test

import (
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"github.com/creachadair/taskgroup"
	"github.com/creachadair/tinymq"
	"github.com/creachadair/tinymq/broker"
	"github.com/creachadair/tinymq/channel"
	"github.com/fortytw2/leaktest"
	"github.com/google/go-cmp/cmp"
)

func TestPublisherUsage(t *testing.T) {
	defer leaktest.Check(t)()

	sw := channel.NewSwitch()
	defer sw.Close()
	p := tinymq.NewPublisher(&tinymq.Options{Dialer: sw})

	if err := p.Publish(map[string]int{"n": 1}); !errors.Is(err, tinymq.ErrNotConnected) {
		t.Errorf("Publish before Connect: got %v, want %v", err, tinymq.ErrNotConnected)
	}
	if err := p.Connect("test://broker"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	for _, bad := range []any{nil, "text", 1.5, []int{1}} {
		if err := p.Publish(bad); !errors.Is(err, tinymq.ErrInvalidPayload) {
			t.Errorf("Publish %#v: got %v, want %v", bad, err, tinymq.ErrInvalidPayload)
		}
	}
	p.Shutdown()
	if err := p.Publish(map[string]int{"n": 1}); !errors.Is(err, tinymq.ErrClosed) {
		t.Errorf("Publish after Shutdown: got %v, want %v", err, tinymq.ErrClosed)
	}
}

func TestPublisher(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		b := newFakeBroker(t)
		defer b.Stop()
		p := tinymq.NewPublisher(b.Options())
		defer p.Shutdown()

		if err := p.Connect("test://broker"); err != nil {
			t.Fatalf("Connect: %v", err)
		}

		// Notifications published before the connection is up are queued.
		for i := range 3 {
			if err := p.Publish(map[string]int{"n": i}); err != nil {
				t.Fatalf("Publish %d: %v", i, err)
			}
		}
		conn := b.Conn(t, 0)
		if conn.Kind != tinymq.KindRequest {
			t.Errorf("Socket kind: got %v, want %v", conn.Kind, tinymq.KindRequest)
		}

		var got []string
		for range 3 {
			frame, err := conn.Recv()
			if err != nil {
				t.Fatalf("Recv: %v", err)
			}
			got = append(got, string(frame))
			mustSend(t, conn, []byte{}) // the acknowledgement carries nothing
		}
		if diff := cmp.Diff([]string{`{"n":0}`, `{"n":1}`, `{"n":2}`}, got); diff != "" {
			t.Errorf("Frames (-want, +got):\n%s", diff)
		}

		// When idle, the publisher pings.
		frame, err := conn.Recv()
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if !tinymq.IsPing(frame) {
			t.Errorf("Idle frame: got %q, want ping", frame)
		}
		mustSend(t, conn, []byte(tinymq.Pong))
		synctest.Wait()
		if got := p.State(); got != tinymq.Connected {
			t.Errorf("State: got %v, want %v", got, tinymq.Connected)
		}
	})
}

// A publisher reaches a subscriber through a broadcast broker.
func TestBroadcastRoundTrip(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		pb, sb := newFakeBroker(t), newFakeBroker(t)
		defer pb.Stop()
		defer sb.Stop()

		var n notes
		s := tinymq.NewSubscriber(sb.Options())
		defer s.Shutdown()
		if err := s.Connect("test://subscribers", n.notify); err != nil {
			t.Fatalf("Subscriber connect: %v", err)
		}
		p := tinymq.NewPublisher(pb.Options())
		defer p.Shutdown()
		if err := p.Connect("test://publishers"); err != nil {
			t.Fatalf("Publisher connect: %v", err)
		}

		ctx, cancel := context.WithCancel(t.Context())
		bc := broker.NewBroadcast(pb.Conn(t, 0), sb.Conn(t, 0), nil)
		run := taskgroup.Go(func() error { return bc.Run(ctx) })

		for i := range 5 {
			if err := p.Publish(map[string]int{"n": i}); err != nil {
				t.Fatalf("Publish %d: %v", i, err)
			}
		}

		// The broker pings keep the subscriber alive, and the acknowledgements
		// keep the publisher alive.
		time.Sleep(20 * time.Second)
		synctest.Wait()

		want := []string{`{"n":0}`, `{"n":1}`, `{"n":2}`, `{"n":3}`, `{"n":4}`}
		if diff := cmp.Diff(want, n.Get()); diff != "" {
			t.Errorf("Notifications (-want, +got):\n%s", diff)
		}
		if p.State() != tinymq.Connected || s.State() != tinymq.Connected {
			t.Errorf("States: publisher %v, subscriber %v; want connected", p.State(), s.State())
		}
		if pb.Dials() != 1 || sb.Dials() != 1 {
			t.Errorf("Dials: publisher %d, subscriber %d; want 1", pb.Dials(), sb.Dials())
		}

		cancel()
		if err := run.Wait(); err != nil {
			t.Errorf("Broadcast: %v", err)
		}
	})
}
