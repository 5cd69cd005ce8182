// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package broker_test

import (
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"github.com/creachadair/taskgroup"
	"github.com/creachadair/tinymq/broker"
	"github.com/creachadair/tinymq/channel"
	"github.com/google/go-cmp/cmp"
)

func TestBroadcast(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		pub, in := channel.Direct()
		sub, out := channel.Direct()

		ctx, cancel := context.WithCancel(t.Context())
		b := broker.NewBroadcast(in, out, &broker.Options{PingInterval: 500 * time.Millisecond})
		run := taskgroup.Go(func() error { return b.Run(ctx) })

		var got []string
		recv := taskgroup.Go(func() error {
			for {
				frame, err := sub.Recv()
				if err != nil {
					return nil
				}
				got = append(got, string(frame))
			}
		})

		exchange := func(msg string) string {
			t.Helper()
			if err := pub.Send([]byte(msg)); err != nil {
				t.Fatalf("Send %q: %v", msg, err)
			}
			ack, err := pub.Recv()
			if err != nil {
				t.Fatalf("Recv ack for %q: %v", msg, err)
			}
			return string(ack)
		}

		// A ping is acknowledged but not relayed.
		if ack := exchange("ping"); ack != "pong" {
			t.Errorf("Ping ack: got %q, want pong", ack)
		}

		// A notification is relayed and acknowledged with an empty frame.
		if ack := exchange(`{"a":1}`); ack != "" {
			t.Errorf("Notification ack: got %q, want empty", ack)
		}

		// Subscribers are pinged periodically.
		time.Sleep(1200 * time.Millisecond)
		synctest.Wait()

		cancel()
		if err := run.Wait(); err != nil {
			t.Errorf("Run: unexpected error: %v", err)
		}
		recv.Wait()

		want := []string{`{"a":1}`, "ping", "ping"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Subscriber frames (-want, +got):\n%s", diff)
		}
	})
}

func TestBroadcastFailure(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		pub, in := channel.Direct()
		_, out := channel.Direct()

		b := broker.NewBroadcast(in, out, nil)
		run := taskgroup.Go(func() error { return b.Run(t.Context()) })

		// Losing the ingress socket stops the relay with an error.
		pub.Close()
		if err := run.Wait(); err == nil {
			t.Error("Run: got nil, want error")
		} else {
			t.Logf("Run OK: %v", err)
		}
	})
}

func TestInvalidPorts(t *testing.T) {
	tests := []struct {
		name string
		a, b int
	}{
		{"Zero", 0, 5560},
		{"Negative", 5559, -1},
		{"TooLarge", 70000, 5560},
		{"Same", 5559, 5559},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := broker.RunBalancing(t.Context(), tc.a, tc.b, nil); !errors.Is(err, broker.ErrInvalidPorts) {
				t.Errorf("RunBalancing(%d, %d): got %v, want %v", tc.a, tc.b, err, broker.ErrInvalidPorts)
			}
			if _, err := broker.ListenBroadcast(t.Context(), tc.a, tc.b, nil); !errors.Is(err, broker.ErrInvalidPorts) {
				t.Errorf("ListenBroadcast(%d, %d): got %v, want %v", tc.a, tc.b, err, broker.ErrInvalidPorts)
			}
		})
	}
}
