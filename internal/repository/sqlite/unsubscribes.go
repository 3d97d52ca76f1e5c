package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/davydenko-ucu/lesson-subscription-api/internal/metrics"
	"github.com/rs/zerolog"
)

// UnsubscribeRepository stores terminal unsubscribe markers. Presence
// of a marker permanently excludes a subscriber from scheduling.
type UnsubscribeRepository struct {
	DB  *sql.DB
	log zerolog.Logger
	m   *metrics.Metrics
}

func NewUnsubscribeRepository(
	db *sql.DB,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *UnsubscribeRepository {
	logger = logger.With().Str("component", "UnsubscribeRepository").Logger()
	return &UnsubscribeRepository{DB: db, log: logger, m: m}
}

func (r *UnsubscribeRepository) IsUnsubscribed(ctx context.Context, userID string) (bool, error) {
	var cnt int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM unsubscribes WHERE user_id = ?", userID,
	).Scan(&cnt)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).
			Str("user_id", userID).
			Msg("failed to check unsubscribe marker")
		r.m.TechnicalErrors.WithLabelValues("db_query_error", "critical").Inc()
		return false, err
	}
	return cnt > 0, nil
}

// Insert sets the marker. Repeated unsubscribes are a no-op.
func (r *UnsubscribeRepository) Insert(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO unsubscribes (user_id, unsubscribed_at)
		VALUES (?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		userID, time.Now(),
	)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).
			Str("user_id", userID).
			Msg("failed to insert unsubscribe marker")
		r.m.TechnicalErrors.WithLabelValues("db_insert_error", "critical").Inc()
		return err
	}

	r.log.Info().Ctx(ctx).Str("user_id", userID).Msg("unsubscribe marker set")
	return nil
}
