// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package tinymq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// A Handler processes the parameters of a request and returns a result to be
// encoded as the response. If it reports an error, the caller receives an
// error reply carrying the text of the error. The request being served can be
// recovered from ctx using ContextRequest.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// reqContextKey is a context key for the request passed to a handler.
type reqContextKey struct{}

// ContextRequest returns the request being served by a handler, or nil if ctx
// has no associated request.
func ContextRequest(ctx context.Context) *Request {
	if v := ctx.Value(reqContextKey{}); v != nil {
		return v.(*Request)
	}
	return nil
}

// parseFailure is the message of the reply to an undecodable request.
const parseFailure = "Unable to parse the payload"

// A Worker is the reply side of a balancing broker. It answers every request
// the broker routes to it with exactly one reply, and answers pings with
// pongs so that clients can observe it is alive.
type Worker struct {
	conn *Conn

	μ       sync.Mutex
	handler Handler
}

// NewWorker constructs a disconnected worker. Call Connect to attach it to a
// broker.
func NewWorker(opts *Options) *Worker {
	w := new(Worker)
	w.conn = newConn(KindReply, "worker", w.session, opts,
		opts.pingBase()+listenerHealthSlack)
	return w
}

// Connect connects w to the broker at uri and serves requests with h. If w is
// already connected to uri, only the handler is replaced. If h == nil, the
// previous handler is kept; it is an error if there is none.
func (w *Worker) Connect(uri string, h Handler) error {
	if uri == "" {
		return ErrInvalidURI
	}
	w.μ.Lock()
	if h != nil {
		w.handler = h
	}
	ok := w.handler != nil
	w.μ.Unlock()
	if !ok {
		return ErrNoHandler
	}
	return w.conn.Connect(uri)
}

// State reports the connection state of w.
func (w *Worker) State() State { return w.conn.State() }

// Shutdown closes the connection and stops all timers. A request being
// handled when Shutdown is called is not answered.
func (w *Worker) Shutdown() { w.conn.Shutdown() }

func (w *Worker) session(ctx context.Context, s Socket) error {
	for {
		frame, err := s.Recv()
		if err != nil {
			return err
		}
		w.conn.Touch()
		w.conn.m.frameRecv.Inc()

		if err := s.Send(w.dispatch(ctx, frame)); err != nil {
			return err
		}
		w.conn.m.frameSent.Inc()
	}
}

// dispatch computes the single reply to frame.
func (w *Worker) dispatch(ctx context.Context, frame []byte) []byte {
	if IsPing(frame) {
		return []byte(Pong)
	}
	log := w.conn.log
	req, err := DecodeRequest(frame)
	if err != nil {
		w.conn.m.frameDropped.Inc()
		log.Error().Err(err).Str("frame", preview(frame)).Msg("unable to parse the request")
		return EncodeError("", parseFailure)
	}
	w.conn.m.callIn.Inc()

	w.μ.Lock()
	h := w.handler
	w.μ.Unlock()
	if h == nil {
		w.conn.m.callInErr.Inc()
		return EncodeError(req.ID, ErrNoHandler.Error())
	}

	rsp, err := w.invoke(context.WithValue(ctx, reqContextKey{}, req), h, req)
	if err != nil {
		w.conn.m.callInErr.Inc()
		log.Debug().Err(err).Str("id", req.ID).Msg("handler failed")
		return EncodeError(req.ID, err.Error())
	}
	return EncodeReply(req.ID, rsp)
}

// invoke calls h, converting a panic into an error.
func (w *Worker) invoke(ctx context.Context, h Handler, req *Request) (_ any, err error) {
	defer func() {
		if x := recover(); x != nil {
			w.conn.log.Error().Interface("panic", x).Str("id", req.ID).Msg("handler panicked")
			err = fmt.Errorf("handler panicked: %v", x)
		}
	}()
	return h(ctx, req.Parameters)
}
