package trigger

import (
	"context"
	"net/http"
	"time"

	"github.com/davydenko-ucu/lesson-subscription-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const timeoutDuration = 5 * time.Minute

type schedulerEngine interface {
	Run(ctx context.Context, at time.Time) ([]models.Result, error)
}

// Handler exposes the scheduling run as an externally-triggered
// endpoint guarded by a shared secret. An external cron hits it every
// minute; the engine's ledger dedup makes repeated triggers safe.
type Handler struct {
	engine schedulerEngine
	secret string
	log    zerolog.Logger
}

func NewHandler(engine schedulerEngine, secret string, logger zerolog.Logger) *Handler {
	logger = logger.With().Str("component", "TriggerHandler").Logger()
	return &Handler{engine: engine, secret: secret, log: logger}
}

func (h *Handler) Run(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if h.secret == "" || authHeader != "Bearer "+h.secret {
		h.log.Warn().Str("remote_addr", c.ClientIP()).Msg("unauthorized trigger attempt")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
	defer cancel()

	results, err := h.engine.Run(ctx, time.Now())
	if err != nil {
		h.log.Error().Err(err).Msg("scheduling run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"processed": len(results),
		"results":   results,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
