package relay

import (
	"go.uber.org/zap"

	"interviewhub/internal/metrics"
	"interviewhub/pkg/interfaces"
	"interviewhub/pkg/types"
)

// Relay forwards negotiation messages between two connections by identity.
// It keeps no state apart from the rate limiter and never looks inside
// the sdp or candidate payloads.
type Relay struct {
	notifier interfaces.Notifier
	limiter  *RateLimiter
	logger   *zap.Logger
}

// New creates a relay delivering through notifier. maxPerMinute bounds
// each sender; zero disables the bound.
func New(notifier interfaces.Notifier, maxPerMinute int, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		notifier: notifier,
		limiter:  NewRateLimiter(maxPerMinute),
		logger:   logger.With(zap.String("component", "relay")),
	}
}

// Forward delivers req to its recipient tagged with kind and the sender's
// identity. Delivery is at most once. A non-nil error means the message
// was dropped; callers must not surface it to the sender.
func (r *Relay) Forward(kind, fromID string, req *types.RelayRequest) error {
	if !types.IsRelayEvent(kind) {
		return ErrNotRelayEvent
	}
	if err := req.Validate(); err != nil {
		return err
	}

	if !r.limiter.Allow(fromID) {
		metrics.RelayMessagesTotal.WithLabelValues(kind, metrics.OutcomeRateLimited).Inc()
		r.logger.Debug("relay rate limited", zap.String("kind", kind), zap.String("from", fromID))
		return ErrRateLimited
	}

	delivery := types.RelayDelivery{
		From:      fromID,
		SDP:       req.SDP,
		Candidate: req.Candidate,
	}
	if !r.notifier.Notify(req.To, kind, delivery) {
		metrics.RelayMessagesTotal.WithLabelValues(kind, metrics.OutcomeUnavailable).Inc()
		r.logger.Debug("relay recipient unavailable",
			zap.String("kind", kind), zap.String("from", fromID), zap.String("to", req.To))
		return ErrRecipientUnavailable
	}

	metrics.RelayMessagesTotal.WithLabelValues(kind, metrics.OutcomeDelivered).Inc()
	return nil
}

// Disconnected releases per-sender state of a closed connection.
func (r *Relay) Disconnected(connID string) {
	r.limiter.Forget(connID)
}

// Cleanup prunes idle rate limiter entries.
func (r *Relay) Cleanup() {
	r.limiter.Cleanup()
}
