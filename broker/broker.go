// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

// Package broker implements the relays that request-side and reply-side
// roles attach to.
//
// A balancing broker passes each request from a client to one worker, and the
// reply back to the client that sent it. A broadcast broker acknowledges each
// notification from a publisher and fans it out to every subscriber.
package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/creachadair/taskgroup"
	"github.com/creachadair/tinymq"
	"github.com/creachadair/tinymq/channel"
	"github.com/go-zeromq/zmq4"
	"github.com/rs/zerolog"
)

// ErrInvalidPorts is reported when a broker is started without a valid pair
// of ports to bind.
var ErrInvalidPorts = errors.New("broker: two distinct ports in 1..65535 are required")

// Options are settings for a broker. A nil *Options is ready for use.
type Options struct {
	// Logger receives broker events. If nil, nothing is logged.
	Logger *zerolog.Logger

	// PingInterval is the period of the liveness pings sent to subscribers.
	// If zero, tinymq.DefaultPingBase.
	PingInterval time.Duration

	// Socket configures the sockets opened by the broker.
	Socket *channel.ZMQOptions
}

func (o *Options) logger(name string) zerolog.Logger {
	if o == nil || o.Logger == nil {
		return zerolog.Nop()
	}
	return o.Logger.With().Str("component", name).Logger()
}

func (o *Options) pingInterval() time.Duration {
	if o == nil || o.PingInterval <= 0 {
		return tinymq.DefaultPingBase
	}
	return o.PingInterval
}

func (o *Options) socket() *channel.ZMQOptions {
	if o == nil {
		return nil
	}
	return o.Socket
}

func checkPorts(a, b int) error {
	if a <= 0 || a > 65535 || b <= 0 || b > 65535 || a == b {
		return ErrInvalidPorts
	}
	return nil
}

// bindURI returns the URI for listening on port on all interfaces.
func bindURI(port int) string { return fmt.Sprintf("tcp://*:%d", port) }

// Broadcast relays notifications from publishers to subscribers. Every frame
// received on its ingress socket other than a ping is published on its egress
// socket and acknowledged with an empty frame; a ping is acknowledged with a
// pong and not published. Subscribers are pinged periodically.
type Broadcast struct {
	in    tinymq.Socket // reply socket for publishers
	out   tinymq.Socket // publish socket for subscribers
	every time.Duration
	log   zerolog.Logger

	μ sync.Mutex // serializes sends on out
}

// NewBroadcast constructs a broadcast relay from publishers on in to
// subscribers on out. Call Run to start it.
func NewBroadcast(in, out tinymq.Socket, opts *Options) *Broadcast {
	return &Broadcast{
		in:    in,
		out:   out,
		every: opts.pingInterval(),
		log:   opts.logger("broadcast"),
	}
}

// ListenBroadcast constructs a broadcast relay listening for publishers on
// clientsPort and for subscribers on subscribersPort, on all interfaces.
func ListenBroadcast(ctx context.Context, clientsPort, subscribersPort int, opts *Options) (*Broadcast, error) {
	if err := checkPorts(clientsPort, subscribersPort); err != nil {
		return nil, err
	}
	log := opts.logger("broadcast")
	log.Info().Int("clients", clientsPort).Int("subscribers", subscribersPort).Msg("binding")

	in, err := channel.Listen(ctx, tinymq.KindReply, bindURI(clientsPort), opts.socket())
	if err != nil {
		return nil, err
	}
	out, err := channel.Listen(ctx, tinymq.KindPublish, bindURI(subscribersPort), opts.socket())
	if err != nil {
		in.Close()
		return nil, err
	}
	log.Info().Int("clients", clientsPort).Int("subscribers", subscribersPort).Msg("listening")
	return NewBroadcast(in, out, opts), nil
}

// Run relays notifications until ctx ends or a socket fails. Both sockets are
// closed when Run returns. Run reports nil if ctx ended.
func (b *Broadcast) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g := taskgroup.New(cancel)
	g.Go(func() error {
		// The sockets do not obey a context, so close them when ctx ends to
		// unblock the relay.
		<-ctx.Done()
		b.in.Close()
		b.out.Close()
		return nil
	})
	g.Go(func() error {
		tick := time.NewTicker(b.every)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-tick.C:
				if err := b.publish([]byte(tinymq.Ping)); err != nil && ctx.Err() == nil {
					return fmt.Errorf("ping subscribers: %w", err)
				}
			}
		}
	})
	g.Go(func() error { return b.relay(ctx) })

	return g.Wait()
}

func (b *Broadcast) relay(ctx context.Context) error {
	for {
		frame, err := b.in.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		ack := []byte{}
		if tinymq.IsPing(frame) {
			ack = []byte(tinymq.Pong)
		} else if err := b.publish(frame); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("publish: %w", err)
		} else {
			b.log.Debug().Int("bytes", len(frame)).Msg("broadcast")
		}
		if err := b.in.Send(ack); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("acknowledge: %w", err)
		}
	}
}

func (b *Broadcast) publish(frame []byte) error {
	b.μ.Lock()
	defer b.μ.Unlock()
	return b.out.Send(frame)
}

// RunBalancing runs a balancing broker that accepts clients on clientsPort
// and workers on workersPort, on all interfaces. Requests are passed to the
// workers in turn, and each reply is routed to the client that sent the
// request. RunBalancing runs until ctx ends or the relay fails.
func RunBalancing(ctx context.Context, clientsPort, workersPort int, opts *Options) error {
	if err := checkPorts(clientsPort, workersPort); err != nil {
		return err
	}
	log := opts.logger("balancing")
	log.Info().Int("clients", clientsPort).Int("workers", workersPort).Msg("binding")

	zopts := opts.socket().SocketOptions()
	front := zmq4.NewRouter(ctx, zopts...)
	defer front.Close()
	back := zmq4.NewDealer(ctx, zopts...)
	defer back.Close()

	if err := front.Listen(bindURI(clientsPort)); err != nil {
		return fmt.Errorf("listen for clients: %w", err)
	}
	if err := back.Listen(bindURI(workersPort)); err != nil {
		return fmt.Errorf("listen for workers: %w", err)
	}
	log.Info().Int("clients", clientsPort).Int("workers", workersPort).Msg("listening")

	err := zmq4.NewProxy(ctx, front, back, nil).Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
