package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/riverbend/pubsub-broker/internals/auth"
	"github.com/riverbend/pubsub-broker/internals/broker"
	"github.com/riverbend/pubsub-broker/internals/config"
	"github.com/riverbend/pubsub-broker/internals/metrics"
)

func testHandler() (*Handler, *broker.Broker) {
	cfg := &config.Config{
		SubscriberQueueSize:   10,
		DefaultRingBufferSize: 100,
		MaxRingBufferSize:     10000,
		SlowConsumerThreshold: 3,
		MetricsPath:           "/metrics",
		Version:               "test",
	}
	b := broker.New(cfg, metrics.New())
	allowlist := auth.New([]string{"test-key"})
	h := NewHandler(b, allowlist, cfg, metrics.New(), func() {})
	return h, b
}

func router(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestCreateTopic(t *testing.T) {
	h, _ := testHandler()
	r := router(h)

	body, _ := json.Marshal(createTopicRequest{Name: "orders"})
	req := httptest.NewRequest("POST", "/topics/", bytes.NewReader(body))
	req.Header.Set(auth.HeaderName, "test-key")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateTopic_DuplicateReturns409(t *testing.T) {
	h, b := testHandler()
	b.CreateTopic("orders", 0)
	r := router(h)

	body, _ := json.Marshal(createTopicRequest{Name: "orders"})
	req := httptest.NewRequest("POST", "/topics/", bytes.NewReader(body))
	req.Header.Set(auth.HeaderName, "test-key")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestCreateTopic_MissingCredentialReturns401(t *testing.T) {
	h, _ := testHandler()
	r := router(h)

	body, _ := json.Marshal(createTopicRequest{Name: "orders"})
	req := httptest.NewRequest("POST", "/topics/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestDeleteTopic_NotFoundReturns404(t *testing.T) {
	h, _ := testHandler()
	r := router(h)

	req := httptest.NewRequest("DELETE", "/topics/missing/", nil)
	req.Header.Set(auth.HeaderName, "test-key")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestListTopics(t *testing.T) {
	h, b := testHandler()
	b.CreateTopic("orders", 0)
	r := router(h)

	req := httptest.NewRequest("GET", "/topics/", nil)
	req.Header.Set(auth.HeaderName, "test-key")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Topics []topicListEntry `json:"topics"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Topics) != 1 || body.Topics[0].Name != "orders" {
		t.Errorf("expected one topic named orders, got %+v", body.Topics)
	}
}

func TestHealth_RequiresCredentialLikeEveryOtherEndpoint(t *testing.T) {
	h, _ := testHandler()
	r := router(h)

	req := httptest.NewRequest("GET", "/health/", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without credential, got %d", rec.Code)
	}

	req = httptest.NewRequest("GET", "/health/", nil)
	req.Header.Set(auth.HeaderName, "test-key")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with credential, got %d", rec.Code)
	}
}

func TestStats(t *testing.T) {
	h, _ := testHandler()
	r := router(h)

	req := httptest.NewRequest("GET", "/stats/", nil)
	req.Header.Set(auth.HeaderName, "test-key")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestShutdown_ReturnsConflictOnSecondCall(t *testing.T) {
	h, b := testHandler()
	r := router(h)

	req := httptest.NewRequest("POST", "/shutdown/", nil)
	req.Header.Set(auth.HeaderName, "test-key")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	b.BeginShutdown()
	req = httptest.NewRequest("POST", "/shutdown/", nil)
	req.Header.Set(auth.HeaderName, "test-key")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 on a repeat shutdown call, got %d", rec.Code)
	}
}
