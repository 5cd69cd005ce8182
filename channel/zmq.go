// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package channel

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/creachadair/tinymq"
	"github.com/go-zeromq/zmq4"
	"github.com/rs/zerolog"
)

// ZMQOptions are settings for sockets opened by [ZMQ] and [Listen].
// A nil *ZMQOptions is ready for use and provides defaults as described.
type ZMQOptions struct {
	// Logger receives the diagnostics of the socket library when Debug is
	// set. If nil, they are discarded.
	Logger *zerolog.Logger

	// Debug enables socket library diagnostics.
	Debug bool

	// RetryInterval is the delay between attempts to reach a broker that is
	// not listening. If zero, 250ms.
	RetryInterval time.Duration

	// MaxRetries bounds the attempts to reach a broker before Dial fails.
	// If zero, 10; if negative, Dial retries until its context ends.
	MaxRetries int
}

// SocketOptions returns the zmq4 socket options corresponding to o.
func (o *ZMQOptions) SocketOptions() []zmq4.Option {
	var opts []zmq4.Option
	if o == nil {
		return opts
	}
	if o.Debug && o.Logger != nil {
		sub := o.Logger.With().Str("component", "zmq4").Logger()
		opts = append(opts, zmq4.WithLogger(log.New(sub, "", 0)))
	}
	if o.RetryInterval > 0 {
		opts = append(opts, zmq4.WithDialerRetry(o.RetryInterval))
	}
	if o.MaxRetries != 0 {
		opts = append(opts, zmq4.WithDialerMaxRetries(o.MaxRetries))
	}
	return opts
}

// ZMQ returns a [tinymq.Dialer] that opens ZeroMQ sockets. Subscribe sockets
// are subscribed to all topics.
func ZMQ(opts *ZMQOptions) tinymq.Dialer {
	return zmqDialer{opts: opts.SocketOptions()}
}

type zmqDialer struct{ opts []zmq4.Option }

// Dial implements the [tinymq.Dialer] interface.
func (d zmqDialer) Dial(ctx context.Context, kind tinymq.Kind, uri string) (tinymq.Socket, error) {
	s, err := newSocket(ctx, kind, d.opts)
	if err != nil {
		return nil, err
	}
	if kind == tinymq.KindSubscribe {
		if err := s.SetOption(zmq4.OptionSubscribe, ""); err != nil {
			s.Close()
			return nil, fmt.Errorf("subscribe: %w", err)
		}
	}
	if err := s.Dial(uri); err != nil {
		s.Close()
		return nil, fmt.Errorf("dial %q: %w", uri, err)
	}
	return Socket{s}, nil
}

// Listen opens a ZeroMQ socket of the given kind listening at uri. The socket
// is closed when ctx ends.
func Listen(ctx context.Context, kind tinymq.Kind, uri string, opts *ZMQOptions) (Socket, error) {
	s, err := newSocket(ctx, kind, opts.SocketOptions())
	if err != nil {
		return Socket{}, err
	}
	if err := s.Listen(uri); err != nil {
		s.Close()
		return Socket{}, fmt.Errorf("listen %q: %w", uri, err)
	}
	return Socket{s}, nil
}

func newSocket(ctx context.Context, kind tinymq.Kind, opts []zmq4.Option) (zmq4.Socket, error) {
	switch kind {
	case tinymq.KindRequest:
		return zmq4.NewReq(ctx, opts...), nil
	case tinymq.KindReply:
		return zmq4.NewRep(ctx, opts...), nil
	case tinymq.KindSubscribe:
		return zmq4.NewSub(ctx, opts...), nil
	case tinymq.KindPublish:
		return zmq4.NewPub(ctx, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported socket kind %v", kind)
	}
}

// Socket adapts a single-frame exchange to a [zmq4.Socket].
type Socket struct {
	zmq4.Socket
}

// Send implements a method of the [tinymq.Socket] interface.
func (s Socket) Send(frame []byte) error { return s.Socket.Send(zmq4.NewMsg(frame)) }

// Recv implements a method of the [tinymq.Socket] interface. Only the first
// frame of a multipart message is reported; an empty message reports an
// empty frame.
func (s Socket) Recv() ([]byte, error) {
	msg, err := s.Socket.Recv()
	if err != nil {
		return nil, err
	}
	if len(msg.Frames) == 0 {
		return []byte{}, nil
	}
	return msg.Frames[0], nil
}
