// Package metrics provides Prometheus-backed metrics for the Pub/Sub broker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects broker-wide and per-topic counters exposed at /metrics in
// addition to the JSON stats surface of §6.2.
type Metrics struct {
	registry       *prometheus.Registry
	publishedTotal *prometheus.CounterVec
	deliveredTotal *prometheus.CounterVec
	droppedTotal   *prometheus.CounterVec
	topicsActive   prometheus.Gauge
	sessionsActive prometheus.Gauge
	subscribers    *prometheus.GaugeVec
}

// New registers a fresh metrics set against a private registry, so parallel
// tests instantiating independent brokers never collide on global
// collector registration.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		publishedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pubsub_messages_published_total",
			Help: "Total messages published, by topic.",
		}, []string{"topic"}),
		deliveredTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pubsub_messages_delivered_total",
			Help: "Total messages handed to a subscriber queue, by topic.",
		}, []string{"topic"}),
		droppedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pubsub_messages_dropped_total",
			Help: "Total messages evicted from a subscriber queue, by topic.",
		}, []string{"topic"}),
		topicsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "pubsub_topics_active",
			Help: "Number of topics currently registered.",
		}),
		sessionsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "pubsub_sessions_active",
			Help: "Number of currently connected sessions.",
		}),
		subscribers: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "pubsub_subscribers_active",
			Help: "Number of subscribers currently attached, by topic.",
		}, []string{"topic"}),
	}
	m.registry = reg
	return m
}

// registry backs the Handler method below; kept unexported since callers
// only ever need the http.Handler, not the collector registry itself.
func (m *Metrics) handlerRegistry() *prometheus.Registry { return m.registry }

// Handler returns the HTTP handler that serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.handlerRegistry(), promhttp.HandlerOpts{})
}

func (m *Metrics) IncPublished(topic string) { m.publishedTotal.WithLabelValues(topic).Inc() }

func (m *Metrics) AddDelivered(topic string, n int) {
	if n > 0 {
		m.deliveredTotal.WithLabelValues(topic).Add(float64(n))
	}
}

func (m *Metrics) AddDropped(topic string, n int) {
	if n > 0 {
		m.droppedTotal.WithLabelValues(topic).Add(float64(n))
	}
}

func (m *Metrics) IncTopics() { m.topicsActive.Inc() }
func (m *Metrics) DecTopics() { m.topicsActive.Dec() }

func (m *Metrics) IncSessions() { m.sessionsActive.Inc() }
func (m *Metrics) DecSessions() { m.sessionsActive.Dec() }

func (m *Metrics) SetSubscribers(topic string, n int) {
	m.subscribers.WithLabelValues(topic).Set(float64(n))
}

func (m *Metrics) RemoveTopic(topic string) {
	m.subscribers.DeleteLabelValues(topic)
}
