// Package http exposes the WebSocket endpoint (§6.1) that the broker's
// SessionProtocol runs over.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/riverbend/pubsub-broker/internals/auth"
	"github.com/riverbend/pubsub-broker/internals/broker"
	"github.com/riverbend/pubsub-broker/internals/config"
	"github.com/riverbend/pubsub-broker/internals/session"
	subscriberService "github.com/riverbend/pubsub-broker/subscriberService"
)

// Handler upgrades admitted connections and runs a SessionProtocol over each.
type Handler struct {
	broker    *broker.Broker
	allowlist *auth.Allowlist
	cfg       *config.Config
	logger    zerolog.Logger
	upgrader  websocket.Upgrader
}

// NewHandler creates a WebSocket handler bound to b, gated by allowlist.
func NewHandler(b *broker.Broker, allowlist *auth.Allowlist, cfg *config.Config, logger zerolog.Logger) *Handler {
	return &Handler{
		broker:    b,
		allowlist: allowlist,
		cfg:       cfg,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes mounts /ws and /ws/ on r (§6.1).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleUpgrade)
	r.Get("/ws/", h.handleUpgrade)
}

// handleUpgrade performs credential admission before ever upgrading the
// connection — a miss closes the request with 401 and no frames are sent,
// matching the transport-level nature of authentication failure (§7).
func (h *Handler) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	credential, ok := h.allowlist.Check(r)
	if !ok {
		http.Error(w, "invalid or missing credential", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	transport := subscriberService.NewTransportForConn(conn, h.cfg.WriteTimeout)
	sess := session.New(h.broker, transport, credential, h.cfg.SlowConsumerThreshold, h.logger)
	sess.Run()
}
