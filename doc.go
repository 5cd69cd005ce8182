// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

// Package tinymq implements request/response and broadcast messaging over
// message-queue sockets that allow only one exchange in flight at a time,
// such as ZeroMQ REQ/REP and PUB/SUB sockets relayed through a broker.
//
// The package adds three things the sockets do not provide on their own:
// correlation of replies with requests, liveness detection for connections
// that go silent, and automatic recovery when a broker restarts.
//
// # Roles
//
// There are four roles, grouped by the kind of broker they attach to:
//
//   - A [Client] sends structured requests through a balancing broker and
//     receives their replies.
//   - A [Worker] receives requests from a balancing broker, passes them to a
//     [Handler], and sends back exactly one reply per request.
//   - A [Publisher] sends notifications to a broadcast broker.
//   - A [Subscriber] receives every notification relayed by a broadcast
//     broker.
//
// Package broker implements both kinds of broker.
//
// To issue a request:
//
//	c := tinymq.NewClient(&tinymq.Options{Dialer: channel.ZMQ(nil)})
//	defer c.Shutdown()
//	if err := c.Connect("tcp://localhost:5559"); err != nil {
//	   log.Fatalf("Connect: %v", err)
//	}
//	rsp, err := c.Call(ctx, map[string]any{"name": "value"})
//
// To serve requests:
//
//	w := tinymq.NewWorker(&tinymq.Options{Dialer: channel.ZMQ(nil)})
//	defer w.Shutdown()
//	w.Connect("tcp://localhost:5560", func(ctx context.Context, params json.RawMessage) (any, error) {
//	   return doStuffWith(params)
//	})
//
// # Envelopes
//
// Requests and replies are JSON objects carried one per frame. A request is
// {"id": ..., "parameters": {...}} and its reply is {"id": ..., "response":
// ...}. A request that fails is answered with {"id": ..., "error": true,
// "message": ...}, which the client reports as a [*RemoteError]. A request
// that cannot be decoded at all is answered with an error reply with no id.
//
// # Liveness
//
// Request-side roles send a "ping" frame when idle, which the other side
// answers with "pong". The broadcast broker also sends "ping" to subscribers
// periodically. Every inbound frame counts as activity; a connection with no
// activity for [Options.InactivityTimeout] is torn down and re-established.
// See [HeartbeatInterval] for how the ping period is chosen.
//
// # Correlation
//
// Each request is assigned a fresh id and recorded in a [Registry] until its
// reply arrives or its deadline passes, whichever comes first. The result is
// delivered exactly once. Replies for requests that are no longer pending are
// logged and discarded.
//
// # Metrics
//
// Instances maintain Prometheus metrics labelled by role. Use
// [RegisterMetrics] to export them. The metrics include:
//
//   - tinymq_frames_received_total: frames received
//   - tinymq_frames_sent_total: frames sent
//   - tinymq_frames_dropped_total: inbound frames discarded as malformed
//   - tinymq_calls_out_total: requests or notifications issued
//   - tinymq_calls_timeout_total: requests expired without a reply
//   - tinymq_calls_unmatched_total: replies with no pending request
//   - tinymq_calls_in_total: inbound requests or notifications handled
//   - tinymq_calls_in_failed_total: inbound requests answered with errors
//   - tinymq_calls_pending: gauge of requests awaiting replies
//   - tinymq_liveness_breaches_total: connections found silent
//   - tinymq_reconnects_total: reconnect cycles started
package tinymq
