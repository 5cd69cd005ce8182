// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package tinymq

import (
	"time"

	"github.com/rs/zerolog"
)

// Default settings. The pool sizes are the nominal number of request-side and
// reply-side instances sharing a broker, used to scale the ping interval.
const (
	DefaultPingBase          = 500 * time.Millisecond
	DefaultInactivityTimeout = 5 * time.Second
	DefaultReconnectDelay    = 50 * time.Millisecond
	DefaultRequestTTL        = 10 * time.Second
	DefaultSweepInterval     = 20 * time.Second
	DefaultClientInstances   = 2
	DefaultWorkerInstances   = 4
	DefaultQueueSize         = 1024

	// Request-side roles check their health on a fixed period; reply-side and
	// subscribe-side roles check slightly slower than the ping base.
	requesterHealthInterval = 500 * time.Millisecond
	listenerHealthSlack     = 100 * time.Millisecond

	pingSlack = 10 * time.Millisecond
)

// Options are settings shared by all roles. A nil *Options is ready for use
// and provides default values as described, except that Connect reports
// ErrNoDialer until a Dialer is set.
type Options struct {
	// Dialer opens sockets to the broker. See package channel.
	Dialer Dialer

	// Logger is the base logger for the instance. If nil, nothing is logged.
	Logger *zerolog.Logger

	// Debug enables logging of connection events at debug level.
	Debug bool

	// PingBase is the base heartbeat interval. If zero, DefaultPingBase.
	PingBase time.Duration

	// InactivityTimeout is how long a connection may go without inbound
	// traffic before it is torn down and re-established.
	// If zero, DefaultInactivityTimeout.
	InactivityTimeout time.Duration

	// ClientInstances and WorkerInstances are the nominal pool sizes used to
	// scale the ping interval of request-side roles.
	// If zero, DefaultClientInstances and DefaultWorkerInstances.
	ClientInstances int
	WorkerInstances int

	// ReconnectDelay is the delay between tearing down a connection and
	// opening its replacement. If zero, DefaultReconnectDelay.
	ReconnectDelay time.Duration

	// RequestTTL is how long a request waits for its reply.
	// If zero, DefaultRequestTTL.
	RequestTTL time.Duration

	// SweepInterval is the period of the expired request sweep.
	// If zero, DefaultSweepInterval.
	SweepInterval time.Duration

	// HealthInterval is the period of the liveness check. If zero, each role
	// uses its own default.
	HealthInterval time.Duration

	// QueueSize bounds the number of outbound frames held while a connection
	// is being established. If zero, DefaultQueueSize.
	QueueSize int
}

func pick[T comparable](v, dflt T) T {
	var zero T
	if v == zero {
		return dflt
	}
	return v
}

func (o *Options) dialer() Dialer {
	if o == nil {
		return nil
	}
	return o.Dialer
}

func (o *Options) pingBase() time.Duration {
	if o == nil {
		return DefaultPingBase
	}
	return pick(o.PingBase, DefaultPingBase)
}

func (o *Options) inactivityTimeout() time.Duration {
	if o == nil {
		return DefaultInactivityTimeout
	}
	return pick(o.InactivityTimeout, DefaultInactivityTimeout)
}

func (o *Options) reconnectDelay() time.Duration {
	if o == nil {
		return DefaultReconnectDelay
	}
	return pick(o.ReconnectDelay, DefaultReconnectDelay)
}

func (o *Options) requestTTL() time.Duration {
	if o == nil {
		return DefaultRequestTTL
	}
	return pick(o.RequestTTL, DefaultRequestTTL)
}

func (o *Options) sweepInterval() time.Duration {
	if o == nil {
		return DefaultSweepInterval
	}
	return pick(o.SweepInterval, DefaultSweepInterval)
}

func (o *Options) healthInterval(dflt time.Duration) time.Duration {
	if o == nil {
		return dflt
	}
	return pick(o.HealthInterval, dflt)
}

func (o *Options) queueSize() int {
	if o == nil {
		return DefaultQueueSize
	}
	return pick(o.QueueSize, DefaultQueueSize)
}

// pingInterval is the heartbeat period of a request-side role.
func (o *Options) pingInterval() time.Duration {
	clients, workers := DefaultClientInstances, DefaultWorkerInstances
	if o != nil {
		clients = pick(o.ClientInstances, clients)
		workers = pick(o.WorkerInstances, workers)
	}
	return HeartbeatInterval(o.pingBase(), workers, clients)
}

// logger returns a child of the base logger for the named component. Debug
// events are suppressed unless o.Debug is set.
func (o *Options) logger(component string) zerolog.Logger {
	if o == nil || o.Logger == nil {
		return zerolog.Nop()
	}
	log := o.Logger.With().Str("component", component).Logger()
	if !o.Debug && log.GetLevel() < zerolog.InfoLevel {
		log = log.Level(zerolog.InfoLevel)
	}
	return log
}

// HeartbeatInterval computes the ping period for a request-side instance
// sharing a broker with peers reply-side instances and self request-side
// instances: floor(base × peers / self) in milliseconds, less 10ms. The
// result falls back to base when a pool size is not positive or the scaled
// value is not positive.
func HeartbeatInterval(base time.Duration, peers, self int) time.Duration {
	if peers <= 0 || self <= 0 {
		return base
	}
	ms := base.Milliseconds() * int64(peers) / int64(self)
	d := time.Duration(ms)*time.Millisecond - pingSlack
	if d <= 0 {
		return base
	}
	return d
}
