// Package metrics exposes Prometheus collectors for the USSD service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatch outcomes.
const (
	OutcomeContinue = "continue"
	OutcomeEnd      = "end"
	OutcomeError    = "error"
)

// Metrics owns a private registry so tests can build as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	dispatches *prometheus.CounterVec
	expired    prometheus.Counter
	sms        *prometheus.CounterVec
}

// New registers the collectors. liveSessions backs the active session gauge.
func New(liveSessions func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gkash_ussd",
			Name:      "dispatch_total",
			Help:      "USSD requests handled, by session state and outcome.",
		}, []string{"state", "outcome"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gkash_ussd",
			Name:      "sessions_expired_total",
			Help:      "Sessions evicted by the idle sweep.",
		}),
		sms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gkash_ussd",
			Name:      "sms_total",
			Help:      "SMS notifications attempted, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(m.dispatches, m.expired, m.sms)
	if liveSessions != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "gkash_ussd",
			Name:      "sessions_active",
			Help:      "Sessions that have not expired.",
		}, func() float64 { return float64(liveSessions()) }))
	}
	return m
}

// ObserveDispatch counts one handled request.
func (m *Metrics) ObserveDispatch(state, outcome string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(state, outcome).Inc()
}

// ObserveSweep counts sessions removed by one sweep pass.
func (m *Metrics) ObserveSweep(removed int) {
	if m == nil || removed <= 0 {
		return
	}
	m.expired.Add(float64(removed))
}

// ObserveSMS counts one notification attempt.
func (m *Metrics) ObserveSMS(delivered bool) {
	if m == nil {
		return
	}
	result := "failed"
	if delivered {
		result = "sent"
	}
	m.sms.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
