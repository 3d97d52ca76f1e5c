package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/davydenko-ucu/lesson-subscription-api/internal/metrics"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/models"
	"github.com/rs/zerolog"
)

// SubscriptionRepository reads paid-subscription state. The scheduler
// only ever reads it; billing webhooks write it out of band.
type SubscriptionRepository struct {
	DB  *sql.DB
	log zerolog.Logger
	m   *metrics.Metrics
}

func NewSubscriptionRepository(
	db *sql.DB,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *SubscriptionRepository {
	logger = logger.With().Str("component", "SubscriptionRepository").Logger()
	return &SubscriptionRepository{DB: db, log: logger, m: m}
}

// GetByUserID returns the subscriber's subscription, or nil when none
// exists.
func (r *SubscriptionRepository) GetByUserID(
	ctx context.Context, userID string,
) (*models.Subscription, error) {
	var sub models.Subscription
	var periodEnd sql.NullTime

	err := r.DB.QueryRowContext(ctx, `
		SELECT user_id, status, period_end
		FROM subscriptions WHERE user_id = ?`, userID,
	).Scan(&sub.UserID, &sub.Status, &periodEnd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).
			Str("user_id", userID).
			Msg("failed to query subscription")
		r.m.TechnicalErrors.WithLabelValues("db_query_error", "critical").Inc()
		return nil, err
	}

	if periodEnd.Valid {
		sub.PeriodEnd = &periodEnd.Time
	}
	return &sub, nil
}

// Upsert replaces the subscription row for a user. Used by billing
// event ingestion, not by the scheduling engine.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub models.Subscription) error {
	var periodEnd any
	if sub.PeriodEnd != nil {
		periodEnd = *sub.PeriodEnd
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, status, period_end, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			status = excluded.status,
			period_end = excluded.period_end,
			updated_at = excluded.updated_at`,
		sub.UserID, sub.Status, periodEnd, time.Now(),
	)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).
			Str("user_id", sub.UserID).
			Msg("failed to upsert subscription")
		r.m.TechnicalErrors.WithLabelValues("db_insert_error", "critical").Inc()
		return err
	}

	r.log.Info().Ctx(ctx).
		Str("user_id", sub.UserID).
		Str("status", sub.Status).
		Msg("subscription upserted")
	return nil
}
