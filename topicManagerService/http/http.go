// Package http provides the REST control surface (§6.2): topic CRUD,
// health, stats, and the shutdown trigger, each a thin adapter onto the
// broker and lifecycle controller.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/riverbend/pubsub-broker/internals/auth"
	"github.com/riverbend/pubsub-broker/internals/broker"
	"github.com/riverbend/pubsub-broker/internals/config"
	"github.com/riverbend/pubsub-broker/internals/metrics"
)

// Handler serves the REST control surface.
type Handler struct {
	broker     *broker.Broker
	allowlist  *auth.Allowlist
	cfg        *config.Config
	metrics    *metrics.Metrics
	validate   *validator.Validate
	startTime  time.Time
	version    string
	shutdownFn func()
}

// NewHandler creates a REST handler bound to b. shutdownFn is invoked once
// (in its own goroutine) when POST /shutdown/ is first accepted.
func NewHandler(b *broker.Broker, allowlist *auth.Allowlist, cfg *config.Config, m *metrics.Metrics, shutdownFn func()) *Handler {
	return &Handler{
		broker:     b,
		allowlist:  allowlist,
		cfg:        cfg,
		metrics:    m,
		validate:   validator.New(),
		startTime:  time.Now(),
		version:    cfg.Version,
		shutdownFn: shutdownFn,
	}
}

// RegisterRoutes mounts every REST endpoint from §6.2 onto r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.requireCredential)

	r.Route("/topics", func(r chi.Router) {
		r.Post("/", h.createTopic)
		r.Get("/", h.listTopics)
		r.Delete("/{name}/", h.deleteTopic)
		r.Delete("/{name}", h.deleteTopic)
	})

	r.Get("/health", h.health)
	r.Get("/health/", h.health)
	r.Get("/stats", h.stats)
	r.Get("/stats/", h.stats)
	r.Post("/shutdown", h.shutdown)
	r.Post("/shutdown/", h.shutdown)
	r.Handle("/"+stripLeadingSlash(h.metricsPath()), h.metrics.Handler())
}

func (h *Handler) metricsPath() string {
	if h.cfg.MetricsPath == "" {
		return "metrics"
	}
	return h.cfg.MetricsPath
}

func stripLeadingSlash(s string) string {
	if len(s) > 0 && s[0] == '/' {
		return s[1:]
	}
	return s
}

// requireCredential enforces the same allow-list check as the WebSocket
// endpoint (§6.2): every REST endpoint, including health/stats/metrics,
// requires the shared credential in the same two ways. "Missing/invalid
// credential → 401."
func (h *Handler) requireCredential(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := h.allowlist.Check(r); !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or missing credential"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type createTopicRequest struct {
	Name     string `json:"name" validate:"required"`
	RingSize int    `json:"ring_size"`
}

func (h *Handler) createTopic(w http.ResponseWriter, r *http.Request) {
	var req createTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	switch err := h.broker.CreateTopic(req.Name, req.RingSize); {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]any{"name": req.Name, "ring_size": h.cfg.ClampRingSize(req.RingSize)})
	case errors.Is(err, broker.ErrTopicExists):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "topic already exists"})
	case errors.Is(err, broker.ErrServiceUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "shutting down"})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid topic name or ring_size"})
	}
}

func (h *Handler) deleteTopic(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	switch err := h.broker.DeleteTopic(name); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, broker.ErrTopicNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "topic not found"})
	case errors.Is(err, broker.ErrServiceUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "shutting down"})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid topic name"})
	}
}

type topicListEntry struct {
	Name              string `json:"name"`
	Subscribers       int    `json:"subscribers"`
	RingBufferSize    int    `json:"ring_buffer_size"`
	MessagesInHistory int    `json:"messages_in_history"`
	TotalMessages     uint64 `json:"total_messages"`
}

func (h *Handler) listTopics(w http.ResponseWriter, r *http.Request) {
	snapshots := h.broker.ListTopics()
	entries := make([]topicListEntry, 0, len(snapshots))
	for _, t := range snapshots {
		entries = append(entries, topicListEntry{
			Name:              t.Name,
			Subscribers:       t.Subscribers,
			RingBufferSize:    t.RingSize,
			MessagesInHistory: t.HistorySize,
			TotalMessages:     t.TotalPublished,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": entries})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if h.broker.IsShuttingDown() {
		status = "shutting_down"
	}

	body := map[string]any{
		"status":         status,
		"uptime_seconds": time.Since(h.startTime).Seconds(),
		"version":        h.version,
	}
	for k, v := range processStats() {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	s := h.broker.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"published_total":    s.PublishedTotal,
		"delivered_total":    s.DeliveredTotal,
		"dropped_total":      s.DroppedTotal,
		"active_subscribers": s.ActiveSubscribers,
		"active_sessions":    s.ActiveSessions,
		"shutting_down":      s.ShuttingDown,
	})
}

func (h *Handler) shutdown(w http.ResponseWriter, r *http.Request) {
	if h.broker.IsShuttingDown() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "already shutting down"})
		return
	}
	go h.shutdownFn()
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

