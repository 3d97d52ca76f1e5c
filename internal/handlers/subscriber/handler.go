package subscriber

import (
	"context"
	"net/http"
	"time"

	"github.com/davydenko-ucu/lesson-subscription-api/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const timeoutDuration = 10 * time.Second

const unsubscribedPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Unsubscribed</title></head>
<body style="font-family: sans-serif; text-align: center; padding: 80px;">
  <h1>Successfully Unsubscribed</h1>
  <p>You will no longer receive daily lesson emails.</p>
  <p>You can resubscribe anytime by logging into your account.</p>
</body>
</html>`

const pausedPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Paused</title></head>
<body style="font-family: sans-serif; text-align: center; padding: 80px;">
  <h1>Lessons Paused</h1>
  <p>Daily lessons are paused. Resume anytime from your account settings.</p>
</body>
</html>`

type tokenVerifier interface {
	Verify(token string) (string, error)
}

type unsubscribeStore interface {
	Insert(ctx context.Context, userID string) error
}

type subscriberStore interface {
	Pause(ctx context.Context, id string) error
}

// Handler serves the signed unsubscribe and pause links embedded in
// lesson emails.
type Handler struct {
	verifier     tokenVerifier
	unsubscribes unsubscribeStore
	subscribers  subscriberStore
	log          zerolog.Logger
	m            *metrics.Metrics
}

func NewHandler(
	verifier tokenVerifier,
	unsubscribes unsubscribeStore,
	subscribers subscriberStore,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *Handler {
	logger = logger.With().Str("component", "SubscriberHandler").Logger()
	return &Handler{
		verifier:     verifier,
		unsubscribes: unsubscribes,
		subscribers:  subscribers,
		log:          logger,
		m:            m,
	}
}

func (h *Handler) Unsubscribe(c *gin.Context) {
	userID, ok := h.verifiedUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
	defer cancel()

	if err := h.unsubscribes.Insert(ctx, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.m.Unsubscribes.Inc()
	h.log.Info().Str("subscriber_id", userID).Msg("subscriber unsubscribed via link")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(unsubscribedPage))
}

func (h *Handler) Pause(c *gin.Context) {
	userID, ok := h.verifiedUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
	defer cancel()

	if err := h.subscribers.Pause(ctx, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.m.Pauses.Inc()
	h.log.Info().Str("subscriber_id", userID).Msg("subscriber paused via link")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(pausedPage))
}

func (h *Handler) verifiedUserID(c *gin.Context) (string, bool) {
	tok := c.Query("token")
	if tok == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token required"})
		return "", false
	}

	userID, err := h.verifier.Verify(tok)
	if err != nil {
		h.log.Warn().Err(err).Msg("rejected subscriber link token")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token"})
		return "", false
	}

	return userID, true
}
