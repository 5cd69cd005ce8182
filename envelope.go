// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package tinymq

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// codec is the structured payload codec shared by all roles.
var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// The sentinel liveness frames. They are recognized before any structured
// decoding is attempted.
const (
	Ping = "ping"
	Pong = "pong"
)

// maxMessageLen bounds the length of the message in an error envelope.
const maxMessageLen = 4096

// IsPing reports whether frame is the ping sentinel.
func IsPing(frame []byte) bool { return len(frame) == len(Ping) && string(frame) == Ping }

// IsPong reports whether frame is the liveness ack sentinel.
func IsPong(frame []byte) bool { return len(frame) == len(Pong) && string(frame) == Pong }

// Request is the outbound envelope of a structured request.
type Request struct {
	ID         string          `json:"id"`
	Parameters json.RawMessage `json:"parameters"`
}

// EncodeRequest encodes params as the parameters of a request with the given
// id. The parameters must encode as a structured object, otherwise
// EncodeRequest reports ErrInvalidPayload.
func EncodeRequest(id string, params any) ([]byte, error) {
	raw, err := marshalObject(params)
	if err != nil {
		return nil, err
	}
	return codec.Marshal(Request{ID: id, Parameters: raw})
}

// DecodeRequest decodes a request envelope from frame. Decoding errors wrap
// ErrMalformedPayload.
func DecodeRequest(frame []byte) (*Request, error) {
	var req Request
	if err := codec.Unmarshal(frame, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &req, nil
}

// String returns a human-friendly rendering of the request.
func (r Request) String() string {
	return fmt.Sprintf("Request(ID=%v, Parameters=%s)", r.ID, preview(r.Parameters))
}

// Reply is the inbound envelope of a structured response. An error envelope
// has Error set and carries a human-readable Message; its ID is empty when
// the request could not be decoded at all.
type Reply struct {
	ID       string          `json:"id,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
	Error    bool            `json:"error,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// EncodeReply encodes result as the response for the request with the given
// id. If result cannot be encoded, the reply is an error envelope instead, so
// that exactly one reply is always produced.
func EncodeReply(id string, result any) []byte {
	raw, err := codec.Marshal(result)
	if err != nil {
		return EncodeError(id, fmt.Sprintf("unable to encode the response: %v", err))
	}
	return mustEncode(Reply{ID: id, Response: raw})
}

// EncodeError encodes an error envelope with the given id and message.
func EncodeError(id, message string) []byte {
	return mustEncode(Reply{ID: id, Error: true, Message: truncate(message, maxMessageLen)})
}

// DecodeReply decodes a reply envelope from frame. Decoding errors wrap
// ErrMalformedPayload.
func DecodeReply(frame []byte) (*Reply, error) {
	var rsp Reply
	if err := codec.Unmarshal(frame, &rsp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &rsp, nil
}

// Err returns the error carried by an error envelope, or nil.
func (r Reply) Err() error {
	if !r.Error {
		return nil
	}
	return &RemoteError{ID: r.ID, Message: r.Message}
}

// String returns a human-friendly rendering of the reply.
func (r Reply) String() string {
	if r.Error {
		return fmt.Sprintf("Reply(ID=%v, Error=%q)", r.ID, r.Message)
	}
	return fmt.Sprintf("Reply(ID=%v, Response=%s)", r.ID, preview(r.Response))
}

// marshalObject encodes v and checks that the result is a structured object.
func marshalObject(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, ErrInvalidPayload
	}
	raw, err := codec.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if t := bytes.TrimSpace(raw); len(t) == 0 || t[0] != '{' {
		return nil, ErrInvalidPayload
	}
	return raw, nil
}

func mustEncode(v any) []byte {
	data, err := codec.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("encoding envelope: %w", err))
	}
	return data
}

// preview renders at most 64 bytes of a frame for logging.
func preview(frame []byte) string {
	const n = 64
	if len(frame) > n {
		return truncate(string(frame), n) + " ..."
	}
	return string(frame)
}

// truncate returns a prefix of a UTF-8 string s, having length no greater than
// n bytes.  If s exceeds this length, it is truncated at a point ≤ n so that
// the result does not end in a partial UTF-8 encoding.
func truncate(s string, n int) string {
	if n >= len(s) {
		return s
	}

	// Back up until we find the beginning of a UTF-8 encoding.
	for n > 0 && s[n-1]&0xc0 == 0x80 { // 0x10... is a continuation byte
		n--
	}

	// If we're at the beginning of a multi-byte encoding, back up one more to
	// skip it. It's possible the value was already complete, but it's simpler
	// if we only have to check in one direction.
	//
	// Otherwise, we have a single-byte code (0x00... or 0x01...).
	if n > 0 && s[n-1]&0xc0 == 0xc0 { // 0x11... starts a multibyte encoding
		n--
	}
	return s[:n]
}
