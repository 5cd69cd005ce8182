// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package tinymq

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is reported by operations on an instance that has been shut
	// down, and by pending calls released by the shutdown.
	ErrClosed = errors.New("tinymq: instance is terminating")

	// ErrRequestTimeout is the result of a call whose deadline passed before
	// a reply arrived.
	ErrRequestTimeout = errors.New("tinymq: request timeout")

	// ErrMalformedPayload is reported when a structured frame cannot be
	// decoded.
	ErrMalformedPayload = errors.New("tinymq: malformed payload")

	// ErrInvalidURI is reported when a broker URI is missing.
	ErrInvalidURI = errors.New("tinymq: expected the broker URI to connect to")

	// ErrNoHandler is reported when a reply-side or subscribe-side role is
	// connected without a handler.
	ErrNoHandler = errors.New("tinymq: expected a handler to notify")

	// ErrInvalidPayload is reported when request parameters are not a
	// structured object.
	ErrInvalidPayload = errors.New("tinymq: the payload must be an object")

	// ErrNotConnected is reported when sending before Connect was called.
	ErrNotConnected = errors.New("tinymq: not connected")

	// ErrDuplicateID is reported when registering an id that is still pending.
	ErrDuplicateID = errors.New("tinymq: duplicate request id")

	// ErrQueueFull is reported when the outbound queue cannot accept a frame.
	ErrQueueFull = errors.New("tinymq: outbound queue is full")

	// ErrNoDialer is reported by Connect when no Dialer was configured.
	ErrNoDialer = errors.New("tinymq: no dialer configured")
)

// RemoteError is the error reported for a call when the reply side answered
// with an error envelope.
type RemoteError struct {
	ID      string // the request id, if the remote echoed it
	Message string // the human-readable message from the remote
}

// Error satisfies the error interface.
func (e *RemoteError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("remote error: %s", e.Message)
	}
	return fmt.Sprintf("request %s: remote error: %s", e.ID, e.Message)
}
