// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package tinymq

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "tinymq"

var (
	framesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "frames_received_total",
		Help:      "Frames received, including liveness frames",
	}, []string{"role"})

	framesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "frames_sent_total",
		Help:      "Frames sent, including liveness frames",
	}, []string{"role"})

	framesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "frames_dropped_total",
		Help:      "Inbound frames discarded because they could not be decoded",
	}, []string{"role"})

	callsOut = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "calls_out_total",
		Help:      "Outbound requests issued",
	}, []string{"role"})

	callsTimedOut = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "calls_timeout_total",
		Help:      "Outbound requests expired by the sweep",
	}, []string{"role"})

	callsUnmatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "calls_unmatched_total",
		Help:      "Replies received for a request id with no pending entry",
	}, []string{"role"})

	callsIn = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "calls_in_total",
		Help:      "Inbound requests or notifications dispatched to a handler",
	}, []string{"role"})

	callsInFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "calls_in_failed_total",
		Help:      "Inbound requests answered with an error envelope",
	}, []string{"role"})

	callsPending = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "calls_pending",
		Help:      "Outbound requests awaiting a reply",
	}, []string{"role"})

	livenessBreaches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "liveness_breaches_total",
		Help:      "Inactivity timeouts detected by the health monitor",
	}, []string{"role"})

	reconnects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "reconnects_total",
		Help:      "Reconnect cycles started",
	}, []string{"role"})
)

var collectors = []prometheus.Collector{
	framesReceived, framesSent, framesDropped,
	callsOut, callsTimedOut, callsUnmatched, callsIn, callsInFailed, callsPending,
	livenessBreaches, reconnects,
}

// RegisterMetrics registers the metrics exported by all instances with reg.
// Metrics are labelled by role. It is safe to call more than once with the
// same registerer.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// roleMetrics are the metrics of one role, bound to its label.
type roleMetrics struct {
	frameRecv    prometheus.Counter
	frameSent    prometheus.Counter
	frameDropped prometheus.Counter
	callOut      prometheus.Counter
	callTimeout  prometheus.Counter
	callUnmatch  prometheus.Counter
	callIn       prometheus.Counter
	callInErr    prometheus.Counter
	callPending  prometheus.Gauge
	breach       prometheus.Counter
	reconnect    prometheus.Counter
}

func newRoleMetrics(l string) *roleMetrics {
	return &roleMetrics{
		frameRecv:    framesReceived.WithLabelValues(l),
		frameSent:    framesSent.WithLabelValues(l),
		frameDropped: framesDropped.WithLabelValues(l),
		callOut:      callsOut.WithLabelValues(l),
		callTimeout:  callsTimedOut.WithLabelValues(l),
		callUnmatch:  callsUnmatched.WithLabelValues(l),
		callIn:       callsIn.WithLabelValues(l),
		callInErr:    callsInFailed.WithLabelValues(l),
		callPending:  callsPending.WithLabelValues(l),
		breach:       livenessBreaches.WithLabelValues(l),
		reconnect:    reconnects.WithLabelValues(l),
	}
}
