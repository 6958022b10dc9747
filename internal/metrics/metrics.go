// Package metrics provides Prometheus metrics for the realtime service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several instances can coexist in tests.
// All methods are safe on a nil receiver.
type Metrics struct {
	reg *prometheus.Registry

	// ActiveConnections tracks live transport handles by transport.
	ActiveConnections *prometheus.GaugeVec

	// MessagesProcessed counts inbound events by delivery outcome.
	MessagesProcessed *prometheus.CounterVec

	// PushTickets counts provider tickets by classification.
	PushTickets *prometheus.CounterVec

	// PushReceipts counts provider receipts by classification.
	PushReceipts *prometheus.CounterVec

	// PushTokensPruned counts tokens deleted after DeviceNotRegistered.
	PushTokensPruned prometheus.Counter

	// PushBatchFailures counts provider batches that failed outright.
	PushBatchFailures prometheus.Counter

	// RPCDuration tracks gRPC handling time.
	RPCDuration *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		ActiveConnections: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "realtime_active_connections",
			Help: "Number of currently registered live connections",
		}, []string{"transport"}),
		MessagesProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_messages_processed_total",
			Help: "Total number of inbound message events by delivery outcome",
		}, []string{"delivery"}),
		PushTickets: f.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_push_tickets_total",
			Help: "Total number of push tickets by classification",
		}, []string{"outcome"}),
		PushReceipts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_push_receipts_total",
			Help: "Total number of push receipts by classification",
		}, []string{"outcome"}),
		PushTokensPruned: f.NewCounter(prometheus.CounterOpts{
			Name: "realtime_push_tokens_pruned_total",
			Help: "Total number of push tokens removed after the device was reported unregistered",
		}),
		PushBatchFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "realtime_push_batch_failures_total",
			Help: "Total number of push provider batches that failed",
		}),
		RPCDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "realtime_grpc_duration_seconds",
			Help:    "Duration of gRPC calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "code"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// ConnectionOpened increments the live connection gauge.
func (m *Metrics) ConnectionOpened(transport string) {
	if m == nil {
		return
	}
	m.ActiveConnections.WithLabelValues(transport).Inc()
}

// ConnectionClosed decrements the live connection gauge.
func (m *Metrics) ConnectionClosed(transport string) {
	if m == nil {
		return
	}
	m.ActiveConnections.WithLabelValues(transport).Dec()
}

// MessageProcessed records one inbound event outcome.
func (m *Metrics) MessageProcessed(delivery string) {
	if m == nil {
		return
	}
	m.MessagesProcessed.WithLabelValues(delivery).Inc()
}

// TicketsClassified adds n tickets with the given outcome.
func (m *Metrics) TicketsClassified(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.PushTickets.WithLabelValues(outcome).Add(float64(n))
}

// ReceiptsClassified adds n receipts with the given outcome.
func (m *Metrics) ReceiptsClassified(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.PushReceipts.WithLabelValues(outcome).Add(float64(n))
}

// TokensPruned adds n removed tokens.
func (m *Metrics) TokensPruned(n int64) {
	if m == nil || n == 0 {
		return
	}
	m.PushTokensPruned.Add(float64(n))
}

// BatchFailed records one failed provider batch.
func (m *Metrics) BatchFailed() {
	if m == nil {
		return
	}
	m.PushBatchFailures.Inc()
}

// ObserveRPC records one gRPC call.
func (m *Metrics) ObserveRPC(method, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.RPCDuration.WithLabelValues(method, code).Observe(d.Seconds())
}
