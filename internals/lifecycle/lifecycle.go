// Package lifecycle coordinates graceful shutdown of the broker (§4.6).
package lifecycle

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/riverbend/pubsub-broker/internals/broker"
)

// CloseCodeShutdown is the transport close code used for graceful shutdown (§6.1).
const CloseCodeShutdown = 1001

const pollInterval = 25 * time.Millisecond

// Controller drives the bounded-time drain-then-close procedure of §4.6.
type Controller struct {
	broker *broker.Broker
	budget time.Duration
	logger zerolog.Logger
	once   sync.Once
}

// New creates a Controller that will drain for at most budget.
func New(b *broker.Broker, budget time.Duration, logger zerolog.Logger) *Controller {
	return &Controller{broker: b, budget: budget, logger: logger}
}

// Shutdown runs the full procedure: set the flag, broadcast, wait for
// queues to drain (bounded by budget), force-close every session, then
// release topic storage. It returns once every session has been told to
// close; it does not wait for transports to finish closing. Safe to call
// more than once (e.g. a REST trigger racing a signal) — only the first
// call runs the procedure.
func (c *Controller) Shutdown() {
	c.once.Do(c.run)
}

func (c *Controller) run() {
	c.broker.BeginShutdown()
	c.broker.BroadcastInfo("server shutting down")

	deadline := time.Now().Add(c.budget)
	for time.Now().Before(deadline) {
		if c.broker.TotalPending() == 0 {
			break
		}
		time.Sleep(pollInterval)
	}

	if pending := c.broker.TotalPending(); pending > 0 {
		c.logger.Warn().Int("pending", pending).Msg("shutdown budget expired with undelivered messages")
	}

	c.broker.ForceCloseAllSessions(CloseCodeShutdown, "server shutting down")
	c.broker.CloseAllTopics()

	c.logger.Info().Msg("shutdown complete")
}
