// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package tinymq_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/creachadair/tinymq"
	"github.com/google/go-cmp/cmp"
)

func TestSentinels(t *testing.T) {
	tests := []struct {
		frame      string
		ping, pong bool
	}{
		{"ping", true, false},
		{"pong", false, true},
		{"", false, false},
		{"PING", false, false},
		{"ping ", false, false},
		{`"ping"`, false, false},
		{`{"id":"ping"}`, false, false},
	}
	for _, tc := range tests {
		if got := tinymq.IsPing([]byte(tc.frame)); got != tc.ping {
			t.Errorf("IsPing(%q): got %v, want %v", tc.frame, got, tc.ping)
		}
		if got := tinymq.IsPong([]byte(tc.frame)); got != tc.pong {
			t.Errorf("IsPong(%q): got %v, want %v", tc.frame, got, tc.pong)
		}
	}
}

func TestEncodeRequest(t *testing.T) {
	frame, err := tinymq.EncodeRequest("r1", map[string]int{"x": 1})
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	if got, want := string(frame), `{"id":"r1","parameters":{"x":1}}`; got != want {
		t.Errorf("Frame: got %s, want %s", got, want)
	}

	req, err := tinymq.DecodeRequest(frame)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if req.ID != "r1" || string(req.Parameters) != `{"x":1}` {
		t.Errorf("DecodeRequest: got %v", req)
	}

	for _, bad := range []any{nil, "text", 25, []int{1, 2}, func() {}} {
		if frame, err := tinymq.EncodeRequest("r2", bad); !errors.Is(err, tinymq.ErrInvalidPayload) {
			t.Errorf("EncodeRequest(%T): got %s, %v; want %v", bad, frame, err, tinymq.ErrInvalidPayload)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, bad := range []string{"", "ping", "{", "not json", `{"id":5}`} {
		if req, err := tinymq.DecodeRequest([]byte(bad)); !errors.Is(err, tinymq.ErrMalformedPayload) {
			t.Errorf("DecodeRequest(%q): got %v, %v; want %v", bad, req, err, tinymq.ErrMalformedPayload)
		}
		if rsp, err := tinymq.DecodeReply([]byte(bad)); !errors.Is(err, tinymq.ErrMalformedPayload) {
			t.Errorf("DecodeReply(%q): got %v, %v; want %v", bad, rsp, err, tinymq.ErrMalformedPayload)
		}
	}
}

func TestReply(t *testing.T) {
	t.Run("Response", func(t *testing.T) {
		frame := tinymq.EncodeReply("r1", map[string]string{"ok": "yes"})
		rsp, err := tinymq.DecodeReply(frame)
		if err != nil {
			t.Fatalf("DecodeReply: %v", err)
		}
		want := &tinymq.Reply{ID: "r1", Response: json.RawMessage(`{"ok":"yes"}`)}
		if diff := cmp.Diff(want, rsp); diff != "" {
			t.Errorf("Reply (-want, +got):\n%s", diff)
		}
		if err := rsp.Err(); err != nil {
			t.Errorf("Err: got %v, want nil", err)
		}
	})

	t.Run("Error", func(t *testing.T) {
		frame := tinymq.EncodeError("r2", "it broke")
		rsp, err := tinymq.DecodeReply(frame)
		if err != nil {
			t.Fatalf("DecodeReply: %v", err)
		}
		var rerr *tinymq.RemoteError
		if !errors.As(rsp.Err(), &rerr) {
			t.Fatalf("Err: got %v, want *RemoteError", rsp.Err())
		}
		if rerr.ID != "r2" || rerr.Message != "it broke" {
			t.Errorf("RemoteError: got %+v", rerr)
		}
	})

	t.Run("Unencodable", func(t *testing.T) {
		frame := tinymq.EncodeReply("r3", make(chan int))
		rsp, err := tinymq.DecodeReply(frame)
		if err != nil {
			t.Fatalf("DecodeReply: %v", err)
		}
		if !rsp.Error || rsp.ID != "r3" {
			t.Errorf("Reply: got %v, want an error for r3", rsp)
		}
	})

	t.Run("LongMessage", func(t *testing.T) {
		frame := tinymq.EncodeError("", strings.Repeat("x", 10000))
		rsp, err := tinymq.DecodeReply(frame)
		if err != nil {
			t.Fatalf("DecodeReply: %v", err)
		}
		if len(rsp.Message) > 4096 {
			t.Errorf("Message length: got %d, want at most 4096", len(rsp.Message))
		}
	})
}

func TestHeartbeatInterval(t *testing.T) {
	const ms = time.Millisecond
	tests := []struct {
		base        time.Duration
		peers, self int
		want        time.Duration
	}{
		{500 * ms, 4, 2, 990 * ms},
		{500 * ms, 2, 4, 240 * ms},
		{500 * ms, 1, 1, 490 * ms},
		{500 * ms, 1, 3, 156 * ms}, // floor(166.67) - 10
		{500 * ms, 0, 2, 500 * ms},
		{500 * ms, 4, 0, 500 * ms},
		{500 * ms, -1, 2, 500 * ms},
		{10 * ms, 1, 2, 10 * ms}, // scaled value is not positive
	}
	for _, tc := range tests {
		if got := tinymq.HeartbeatInterval(tc.base, tc.peers, tc.self); got != tc.want {
			t.Errorf("HeartbeatInterval(%v, %d, %d): got %v, want %v",
				tc.base, tc.peers, tc.self, got, tc.want)
		}
	}
}
