package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetrics_HandlerExposesExpositionFormat(t *testing.T) {
	m := New()
	m.IncPublished("orders")
	m.AddDelivered("orders", 3)
	m.AddDropped("orders", 1)
	m.IncTopics()
	m.SetSubscribers("orders", 2)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"pubsub_messages_published_total",
		"pubsub_messages_delivered_total",
		"pubsub_messages_dropped_total",
		"pubsub_topics_active",
		"pubsub_subscribers_active",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected exposition output to contain %q", want)
		}
	}
}

func TestMetrics_IndependentRegistriesDoNotCollide(t *testing.T) {
	// Two brokers' metric sets must never panic on duplicate registration
	// against Prometheus's global default registry.
	m1 := New()
	m2 := New()
	m1.IncPublished("a")
	m2.IncPublished("b")
}

func TestMetrics_RemoveTopicClearsSubscriberGauge(t *testing.T) {
	m := New()
	m.SetSubscribers("orders", 5)
	m.RemoveTopic("orders")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if strings.Contains(rec.Body.String(), `topic="orders"`) {
		t.Error("expected the orders label to be removed from the subscribers gauge")
	}
}
