// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package tinymq

import "context"

// A Socket is one end of a message-queue connection. It carries whole frames
// and enforces the transport's send/receive pattern: a request socket must
// alternate Send and Recv, a reply socket Recv and Send.
//
// The methods of an implementation must be safe for concurrent use by one
// sender and one receiver, and Close must unblock a pending Send or Recv.
type Socket interface {
	// Send a frame to the remote end.
	Send([]byte) error

	// Receive the next available frame.
	Recv() ([]byte, error)

	// Close the socket, causing any pending send or receive operations to
	// terminate and report an error.
	Close() error
}

// Kind identifies the messaging pattern of a socket.
type Kind int

const (
	KindRequest   Kind = iota + 1 // REQ: send, then receive
	KindReply                     // REP: receive, then send
	KindSubscribe                 // SUB: receive only, all topics
	KindPublish                   // PUB: send only
)

var kindStr = [...]string{"invalid", "request", "reply", "subscribe", "publish"}

func (k Kind) String() string {
	if k <= 0 || int(k) >= len(kindStr) {
		return kindStr[0]
	}
	return kindStr[k]
}

// A Dialer opens sockets connected to a broker.
type Dialer interface {
	// Dial opens a socket of the given kind connected to uri. Cancelling ctx
	// abandons the attempt.
	Dial(ctx context.Context, kind Kind, uri string) (Socket, error)
}

// DialFunc adapts a function to the Dialer interface.
type DialFunc func(ctx context.Context, kind Kind, uri string) (Socket, error)

// Dial implements the Dialer interface.
func (f DialFunc) Dial(ctx context.Context, kind Kind, uri string) (Socket, error) {
	return f(ctx, kind, uri)
}
