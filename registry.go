// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package tinymq

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// A Callback receives the result of a call. It is invoked at most once, with
// either the response payload or an error. A timeout is reported as
// ErrRequestTimeout and an error envelope as a *RemoteError.
//
// A Callback runs on the goroutine that completed the call, which for a
// Client is the goroutine serving its connection. It must not block, and
// must not call Shutdown on the Client that issued the call, since Shutdown
// waits for that goroutine to exit.
type Callback func(rsp json.RawMessage, err error)

// A Call is a pending request awaiting its reply. It is a future: the result
// becomes available when Done is closed.
type Call struct {
	ID       string    // correlation id, unique while pending
	Deadline time.Time // when the call expires if no reply has arrived

	cb   Callback
	done chan struct{}
	rsp  json.RawMessage
	err  error
}

// Done returns a channel that is closed when the call is complete, after the
// callback (if any) has returned.
func (c *Call) Done() <-chan struct{} { return c.done }

// Result reports the response and error of a completed call. It must not be
// called before Done is closed.
func (c *Call) Result() (json.RawMessage, error) { return c.rsp, c.err }

// Wait blocks until the call completes or ctx ends. If ctx ends first, the
// call remains pending and Wait reports the context error.
func (c *Call) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return c.rsp, c.err
	}
}

// complete records the result, invokes the callback if notify is true, and
// then releases waiters. The registry guarantees it is called once per call.
func (c *Call) complete(rsp json.RawMessage, err error, notify bool) {
	c.rsp, c.err = rsp, err
	if notify && c.cb != nil {
		c.cb(rsp, err)
	}
	close(c.done)
}

// A Registry tracks pending calls by id. Each call is removed exactly once,
// either by Resolve or by Sweep, and its callback runs at most once. A
// Registry is safe for concurrent use by multiple goroutines.
type Registry struct {
	now func() time.Time

	μ      sync.Mutex
	calls  map[string]*Call
	closed error
}

// NewRegistry constructs an empty registry using now as its clock. If now ==
// nil, time.Now is used.
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{now: now, calls: make(map[string]*Call)}
}

// Register adds a pending call for id, expiring ttl after the current time.
// It reports ErrDuplicateID if id is already pending, and the close error if
// the registry has been closed.
func (r *Registry) Register(id string, ttl time.Duration, cb Callback) (*Call, error) {
	r.μ.Lock()
	defer r.μ.Unlock()
	if r.closed != nil {
		return nil, r.closed
	} else if _, ok := r.calls[id]; ok {
		return nil, ErrDuplicateID
	}
	c := &Call{
		ID:       id,
		Deadline: r.now().Add(ttl),
		cb:       cb,
		done:     make(chan struct{}),
	}
	r.calls[id] = c
	return c, nil
}

// Resolve completes the pending call for id with the given result, and reports
// whether a call was found. A missing id (already expired, or a duplicate
// delivery) is not an error.
func (r *Registry) Resolve(id string, rsp json.RawMessage, err error) bool {
	r.μ.Lock()
	c, ok := r.calls[id]
	if ok {
		delete(r.calls, id)
	}
	r.μ.Unlock()

	if ok {
		c.complete(rsp, err, true)
	}
	return ok
}

// Remove discards the pending call for id without completing it, and reports
// whether a call was found. It is used when a request could not be queued.
func (r *Registry) Remove(id string) bool {
	r.μ.Lock()
	defer r.μ.Unlock()
	_, ok := r.calls[id]
	delete(r.calls, id)
	return ok
}

// Sweep removes every call whose deadline is before now, completing each with
// ErrRequestTimeout. It returns the number of calls expired.
func (r *Registry) Sweep(now time.Time) int {
	var expired []*Call
	r.μ.Lock()
	for id, c := range r.calls {
		if now.After(c.Deadline) {
			delete(r.calls, id)
			expired = append(expired, c)
		}
	}
	r.μ.Unlock()

	for _, c := range expired {
		c.complete(nil, ErrRequestTimeout, true)
	}
	return len(expired)
}

// Len reports the number of pending calls.
func (r *Registry) Len() int {
	r.μ.Lock()
	defer r.μ.Unlock()
	return len(r.calls)
}

// Close closes the registry and returns the number of calls it released.
// Pending calls are released with err so that waiters return, but their
// callbacks are not invoked. Subsequent calls to Register report err. Close
// is idempotent; only the first err is kept.
func (r *Registry) Close(err error) int {
	r.μ.Lock()
	if r.closed != nil {
		r.μ.Unlock()
		return 0
	}
	r.closed = err
	calls := r.calls
	r.calls = make(map[string]*Call)
	r.μ.Unlock()

	for _, c := range calls {
		c.complete(nil, err, false)
	}
	return len(calls)
}
