package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/davydenko-ucu/lesson-subscription-api/internal/metrics"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/models"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LessonRepository is the delivery ledger: one row per subscriber per
// local calendar date.
type LessonRepository struct {
	DB  *sql.DB
	log zerolog.Logger
	m   *metrics.Metrics
}

func NewLessonRepository(
	db *sql.DB,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *LessonRepository {
	logger = logger.With().Str("component", "LessonRepository").Logger()
	return &LessonRepository{DB: db, log: logger, m: m}
}

// FindByLocalDate returns the lesson recorded for the subscriber on the
// given local calendar date, or nil when none exists.
func (r *LessonRepository) FindByLocalDate(
	ctx context.Context, userID, date string,
) (*models.Lesson, error) {
	var lesson models.Lesson

	err := r.DB.QueryRowContext(ctx, `
		SELECT id, user_id, lesson_date, subject, html_body, text_body,
		       model, tokens_in, tokens_out, created_at
		FROM lessons WHERE user_id = ? AND lesson_date = ?`,
		userID, date,
	).Scan(
		&lesson.ID, &lesson.UserID, &lesson.LessonDate, &lesson.Subject,
		&lesson.HTMLBody, &lesson.TextBody, &lesson.Model,
		&lesson.TokensIn, &lesson.TokensOut, &lesson.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).
			Str("user_id", userID).
			Str("lesson_date", date).
			Msg("failed to query lesson by date")
		r.m.TechnicalErrors.WithLabelValues("db_query_error", "critical").Inc()
		return nil, err
	}

	return &lesson, nil
}

// ListRecent returns the newest lessons first, up to limit rows.
func (r *LessonRepository) ListRecent(
	ctx context.Context, userID string, limit int,
) ([]models.Lesson, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, user_id, lesson_date, subject, html_body, text_body,
		       model, tokens_in, tokens_out, created_at
		FROM lessons WHERE user_id = ?
		ORDER BY lesson_date DESC
		LIMIT ?`, userID, limit,
	)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).
			Str("user_id", userID).
			Msg("failed to query recent lessons")
		r.m.TechnicalErrors.WithLabelValues("db_query_error", "critical").Inc()
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			r.log.Error().Err(err).Ctx(ctx).Msg("failed to close rows after lesson query")
		}
	}(rows)

	var lessons []models.Lesson
	for rows.Next() {
		var lesson models.Lesson
		if err := rows.Scan(
			&lesson.ID, &lesson.UserID, &lesson.LessonDate, &lesson.Subject,
			&lesson.HTMLBody, &lesson.TextBody, &lesson.Model,
			&lesson.TokensIn, &lesson.TokensOut, &lesson.CreatedAt,
		); err != nil {
			r.log.Error().Err(err).Ctx(ctx).Msg("failed to scan lesson row")
			r.m.TechnicalErrors.WithLabelValues("db_scan_error", "critical").Inc()
			return nil, err
		}
		lessons = append(lessons, lesson)
	}

	return lessons, rows.Err()
}

// Count returns the all-time lesson count for a subscriber. Trial
// entitlement depends on the full history, not a recent window.
func (r *LessonRepository) Count(ctx context.Context, userID string) (int, error) {
	var cnt int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM lessons WHERE user_id = ?", userID,
	).Scan(&cnt)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).
			Str("user_id", userID).
			Msg("failed to count lessons")
		r.m.TechnicalErrors.WithLabelValues("db_query_error", "critical").Inc()
		return 0, err
	}
	return cnt, nil
}

// Record inserts the ledger row for a delivered lesson. The UNIQUE
// (user_id, lesson_date) constraint turns a concurrent double insert
// into ErrLessonExists for the loser.
func (r *LessonRepository) Record(ctx context.Context, lesson models.Lesson) (*models.Lesson, error) {
	start := time.Now()

	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	lesson.CreatedAt = time.Now()

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO lessons
		    (id, user_id, lesson_date, subject, html_body, text_body,
		     model, tokens_in, tokens_out, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lesson.ID, lesson.UserID, lesson.LessonDate, lesson.Subject,
		lesson.HTMLBody, lesson.TextBody, lesson.Model,
		lesson.TokensIn, lesson.TokensOut, lesson.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			r.log.Warn().Ctx(ctx).
				Str("user_id", lesson.UserID).
				Str("lesson_date", lesson.LessonDate).
				Msg("lesson already recorded, concurrent run lost the insert race")
			r.m.BusinessErrors.WithLabelValues("lesson_exists", "warning").Inc()
			return nil, repository.ErrLessonExists
		}
		r.log.Error().Err(err).Ctx(ctx).
			Str("user_id", lesson.UserID).
			Msg("failed to insert lesson record")
		r.m.TechnicalErrors.WithLabelValues("db_insert_error", "critical").Inc()
		return nil, err
	}

	r.log.Info().Ctx(ctx).
		Str("user_id", lesson.UserID).
		Str("lesson_date", lesson.LessonDate).
		Dur("duration", time.Since(start)).
		Msg("lesson recorded")
	return &lesson, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
