package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/davydenko-ucu/lesson-subscription-api/internal/metrics"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/models"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

var ErrSubscriberNotFound = errors.New("subscriber not found")

// SubscriberRepository reads and updates subscriber profiles.
type SubscriberRepository struct {
	DB  *sql.DB
	log zerolog.Logger
	m   *metrics.Metrics
}

func NewSubscriberRepository(
	db *sql.DB,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *SubscriberRepository {
	logger = logger.With().Str("component", "SubscriberRepository").Logger()
	return &SubscriberRepository{DB: db, log: logger, m: m}
}

// ListCandidates returns subscribers eligible for scheduling
// consideration: not paused and with a topic set.
func (r *SubscriberRepository) ListCandidates(ctx context.Context) ([]models.Subscriber, error) {
	start := time.Now()
	r.log.Debug().Ctx(ctx).Msg("querying candidate subscribers")

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, email, topic, timezone, send_time, paused, created_at
		FROM subscribers
		WHERE paused = 0 AND topic IS NOT NULL AND topic != ''`,
	)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).Msg("failed to query candidate subscribers")
		r.m.TechnicalErrors.WithLabelValues("db_query_error", "critical").Inc()
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			r.log.Error().Err(err).Ctx(ctx).Msg("failed to close rows after candidate query")
			r.m.TechnicalErrors.WithLabelValues("db_rows_close_error", "critical").Inc()
		}
	}(rows)

	var subs []models.Subscriber
	for rows.Next() {
		var sub models.Subscriber
		var topic sql.NullString
		var paused int

		if err := rows.Scan(
			&sub.ID, &sub.Email, &topic, &sub.Timezone,
			&sub.SendTime, &paused, &sub.CreatedAt,
		); err != nil {
			r.log.Error().Err(err).Ctx(ctx).Msg("failed to scan subscriber row")
			r.m.TechnicalErrors.WithLabelValues("db_scan_error", "critical").Inc()
			return nil, err
		}

		sub.Topic = topic.String
		sub.Paused = paused != 0
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.log.Info().Ctx(ctx).
		Int("count", len(subs)).
		Dur("duration", time.Since(start)).
		Msg("fetched candidate subscribers")
	return subs, nil
}

func (r *SubscriberRepository) GetByID(ctx context.Context, id string) (*models.Subscriber, error) {
	var sub models.Subscriber
	var topic sql.NullString
	var paused int

	err := r.DB.QueryRowContext(ctx, `
		SELECT id, email, topic, timezone, send_time, paused, created_at
		FROM subscribers WHERE id = ?`, id,
	).Scan(&sub.ID, &sub.Email, &topic, &sub.Timezone, &sub.SendTime, &paused, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubscriberNotFound
	}
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).Str("subscriber_id", id).Msg("failed to get subscriber")
		r.m.TechnicalErrors.WithLabelValues("db_query_error", "critical").Inc()
		return nil, err
	}

	sub.Topic = topic.String
	sub.Paused = paused != 0
	return &sub, nil
}

// Pause sets the paused flag, excluding the subscriber from future
// scheduling runs until unpaused out of band.
func (r *SubscriberRepository) Pause(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE subscribers SET paused = 1 WHERE id = ?", id,
	)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).Str("subscriber_id", id).Msg("failed to pause subscriber")
		r.m.TechnicalErrors.WithLabelValues("db_update_error", "critical").Inc()
		return err
	}

	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrSubscriberNotFound
	}

	r.log.Info().Ctx(ctx).Str("subscriber_id", id).Msg("subscriber paused")
	return nil
}
