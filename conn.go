// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package tinymq

import (
	"context"
	"sync"
	"time"

	"github.com/creachadair/taskgroup"
	"github.com/rs/zerolog"
)

// State is the lifecycle state of a Conn.
type State int

const (
	Disconnected State = iota // no socket, never connected or torn down
	Connecting                // dialing the broker
	Connected                 // socket open, session running
	Reconnecting              // socket torn down, waiting to redial
	Terminating               // shut down; absorbing
)

var stateStr = [...]string{"disconnected", "connecting", "connected", "reconnecting", "terminating"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateStr) {
		return "invalid"
	}
	return stateStr[s]
}

// A Session runs the role-specific exchange on a connected socket. It should
// run until the socket fails or ctx ends, and report why it stopped.
type Session func(ctx context.Context, s Socket) error

// A Conn manages the socket of one role: it dials the broker, runs a session
// on the resulting socket, watches its liveness, and replaces the socket when
// it fails or goes silent. The methods of a Conn are safe for concurrent use.
//
// Only one socket is open at a time. A reconnect closes the old socket before
// opening the new one, so an in-flight exchange on the old socket is lost.
type Conn struct {
	kind   Kind
	dialer Dialer
	serve  Session
	delay  time.Duration
	every  time.Duration
	log    zerolog.Logger
	health *HealthMonitor
	m      *roleMetrics

	tasks *taskgroup.Group
	stop  context.CancelFunc
	root  context.Context

	μ       sync.Mutex
	state   State
	uri     string
	sock    Socket
	cancel  context.CancelFunc // cancels the current session
	gen     int                // incremented for each session
	retry   *time.Timer        // pending redial, or nil
	started bool               // timers are running
	timers  []ticker
}

type ticker struct {
	every time.Duration
	run   func()
}

// NewConn constructs a disconnected Conn that runs serve on each socket of the
// given kind it opens.
func NewConn(kind Kind, serve Session, opts *Options) *Conn {
	return newConn(kind, kind.String(), serve, opts, requesterHealthInterval)
}

func newConn(kind Kind, name string, serve Session, opts *Options, health time.Duration) *Conn {
	root, stop := context.WithCancel(context.Background())
	return &Conn{
		kind:   kind,
		dialer: opts.dialer(),
		serve:  serve,
		delay:  opts.reconnectDelay(),
		every:  opts.healthInterval(health),
		log:    opts.logger(name),
		health: NewHealthMonitor(opts.inactivityTimeout(), nil),
		m:      newRoleMetrics(name),
		tasks:  taskgroup.New(nil),
		stop:   stop,
		root:   root,
	}
}

// State reports the current state of c.
func (c *Conn) State() State {
	c.μ.Lock()
	defer c.μ.Unlock()
	return c.state
}

// URI reports the broker URI of c, or "" if Connect has not succeeded.
func (c *Conn) URI() string {
	c.μ.Lock()
	defer c.μ.Unlock()
	return c.uri
}

// Touch records inbound activity on the connection.
func (c *Conn) Touch() { c.health.Touch() }

// Connect starts connecting c to the broker at uri. It does not wait for the
// connection to be established.
//
// Connecting to the URI already in use is a no-op. Connecting to a different
// URI closes the current socket first.
func (c *Conn) Connect(uri string) error {
	if uri == "" {
		return ErrInvalidURI
	}
	c.μ.Lock()
	defer c.μ.Unlock()
	switch {
	case c.state == Terminating:
		return ErrClosed
	case c.dialer == nil:
		return ErrNoDialer
	case uri == c.uri && c.state != Disconnected:
		c.log.Warn().Str("uri", uri).Msg("connection already established to the broker")
		return nil
	case c.uri != "" && c.state != Disconnected:
		c.log.Warn().Str("old", c.uri).Str("uri", uri).Msg("connecting to another broker, closing the previous connection")
		c.teardownLocked()
	}
	c.uri = uri
	c.startTimersLocked()
	c.startLocked()
	return nil
}

// Reconnect tears down the current socket and schedules a fresh connection to
// the same URI. It has no effect unless c is connected or connecting, so that
// concurrent triggers produce a single cycle.
func (c *Conn) Reconnect() {
	c.μ.Lock()
	defer c.μ.Unlock()
	c.reconnectLocked(c.gen)
}

// Shutdown terminates c. It closes the socket, stops all timers, and waits for
// the session and timer goroutines to exit. After Shutdown, Connect reports
// ErrClosed. Shutdown is idempotent.
func (c *Conn) Shutdown() {
	c.μ.Lock()
	if c.state != Terminating {
		c.log.Debug().Str("uri", c.uri).Msg("terminating")
		c.state = Terminating
		c.teardownLocked()
		c.stop()
	}
	c.μ.Unlock()
	c.tasks.Wait()
}

// addTimer arranges for run to be called every d once c has been connected,
// until c is shut down. It must be called before the first Connect.
func (c *Conn) addTimer(d time.Duration, run func()) {
	c.μ.Lock()
	defer c.μ.Unlock()
	c.timers = append(c.timers, ticker{every: d, run: run})
}

// reconnectLocked begins a reconnect cycle on behalf of session gen.
// The caller must hold c.μ.
func (c *Conn) reconnectLocked(gen int) {
	if gen != c.gen || (c.state != Connected && c.state != Connecting) {
		return
	}
	c.log.Debug().Str("uri", c.uri).Stringer("state", c.state).Msg("reconnecting")
	c.m.reconnect.Inc()
	c.state = Reconnecting
	c.teardownLocked()
	c.retry = time.AfterFunc(c.delay, func() {
		c.μ.Lock()
		defer c.μ.Unlock()
		if c.state == Reconnecting && c.gen == gen {
			c.retry = nil
			c.startLocked()
		}
	})
}

// teardownLocked cancels the current session and closes its socket. Close
// errors are logged and otherwise ignored. The caller must hold c.μ.
func (c *Conn) teardownLocked() {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.sock != nil {
		if err := c.sock.Close(); err != nil {
			c.log.Debug().Err(err).Msg("close socket")
		} else {
			c.log.Debug().Str("uri", c.uri).Msg("closed")
		}
		c.sock = nil
	}
}

// startLocked starts a new session on the current URI. The caller must hold
// c.μ, and c must not be terminating.
func (c *Conn) startLocked() {
	c.gen++
	c.state = Connecting
	ctx, cancel := context.WithCancel(c.root)
	c.cancel = cancel
	gen, uri := c.gen, c.uri
	c.tasks.Go(func() error {
		c.run(ctx, gen, uri)
		return nil
	})
}

// startTimersLocked starts the health check and any timers added by the role,
// the first time c is connected. The caller must hold c.μ.
func (c *Conn) startTimersLocked() {
	if c.started {
		return
	}
	c.started = true
	all := append([]ticker{{every: c.every, run: c.checkHealth}}, c.timers...)
	for _, t := range all {
		c.tasks.Go(func() error {
			tick := time.NewTicker(t.every)
			defer tick.Stop()
			for {
				select {
				case <-c.root.Done():
					return nil
				case <-tick.C:
					if c.State() != Terminating {
						t.run()
					}
				}
			}
		})
	}
}

// run dials uri and serves the resulting socket until the session ends.
func (c *Conn) run(ctx context.Context, gen int, uri string) {
	c.log.Debug().Str("uri", uri).Stringer("kind", c.kind).Msg("dialing")
	s, err := c.dialer.Dial(ctx, c.kind, uri)
	if err != nil {
		if ctx.Err() == nil {
			c.log.Error().Err(err).Str("uri", uri).Msg("dial failed")
			c.failed(gen)
		}
		return
	}

	c.μ.Lock()
	if gen != c.gen || c.state != Connecting {
		c.μ.Unlock()
		s.Close() // superseded while dialing
		return
	}
	c.sock = s
	c.state = Connected
	c.μ.Unlock()

	c.health.Touch()
	c.log.Debug().Str("uri", uri).Msg("connected")

	err = c.serve(ctx, s)
	if ctx.Err() != nil {
		return // torn down on purpose
	}
	c.log.Warn().Err(err).Str("uri", uri).Msg("disconnected")
	c.failed(gen)
}

// failed reports that session gen ended on its own.
func (c *Conn) failed(gen int) {
	c.μ.Lock()
	defer c.μ.Unlock()
	c.reconnectLocked(gen)
}

// checkHealth runs the liveness check and reconnects on a breach.
func (c *Conn) checkHealth() {
	if !c.health.Check(c.State() == Connected) {
		return
	}
	c.m.breach.Inc()
	c.log.Warn().Dur("timeout", c.health.timeout).Msg("no heartbeat from the broker")
	c.Reconnect()
}
