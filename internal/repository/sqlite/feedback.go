package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/davydenko-ucu/lesson-subscription-api/internal/metrics"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/models"
	"github.com/rs/zerolog"
)

// FeedbackRepository stores per-lesson difficulty feedback used to
// steer generation.
type FeedbackRepository struct {
	DB  *sql.DB
	log zerolog.Logger
	m   *metrics.Metrics
}

func NewFeedbackRepository(
	db *sql.DB,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *FeedbackRepository {
	logger = logger.With().Str("component", "FeedbackRepository").Logger()
	return &FeedbackRepository{DB: db, log: logger, m: m}
}

func (r *FeedbackRepository) ListRecent(
	ctx context.Context, userID string, limit int,
) ([]models.Feedback, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT user_id, difficulty, created_at
		FROM user_feedback WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, userID, limit,
	)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).
			Str("user_id", userID).
			Msg("failed to query feedback")
		r.m.TechnicalErrors.WithLabelValues("db_query_error", "critical").Inc()
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			r.log.Error().Err(err).Ctx(ctx).Msg("failed to close rows after feedback query")
		}
	}(rows)

	var feedbacks []models.Feedback
	for rows.Next() {
		var fb models.Feedback
		if err := rows.Scan(&fb.UserID, &fb.Difficulty, &fb.CreatedAt); err != nil {
			r.log.Error().Err(err).Ctx(ctx).Msg("failed to scan feedback row")
			r.m.TechnicalErrors.WithLabelValues("db_scan_error", "critical").Inc()
			return nil, err
		}
		feedbacks = append(feedbacks, fb)
	}

	return feedbacks, rows.Err()
}

func (r *FeedbackRepository) Insert(ctx context.Context, fb models.Feedback) error {
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO user_feedback (user_id, difficulty, created_at)
		VALUES (?, ?, ?)`,
		fb.UserID, fb.Difficulty, fb.CreatedAt,
	)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).
			Str("user_id", fb.UserID).
			Msg("failed to insert feedback")
		r.m.TechnicalErrors.WithLabelValues("db_insert_error", "critical").Inc()
		return err
	}
	return nil
}
