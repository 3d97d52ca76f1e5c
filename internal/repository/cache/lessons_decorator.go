package cache

import (
	"context"
	"fmt"

	"github.com/davydenko-ucu/lesson-subscription-api/internal/models"
	"github.com/rs/zerolog"
)

type lessonLedger interface {
	FindByLocalDate(ctx context.Context, userID, date string) (*models.Lesson, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]models.Lesson, error)
	Count(ctx context.Context, userID string) (int, error)
	Record(ctx context.Context, lesson models.Lesson) (*models.Lesson, error)
}

type cacheClient[T any] interface {
	Set(ctx context.Context, key string, value T) error
	Get(ctx context.Context, key string) (T, error)
}

// CachedLessonRepository decorates the lesson ledger with a cache for
// the hot already-sent-today lookup. Only positive results are cached:
// a cached miss could suppress a legitimate delivery, a cached hit only
// saves a read that would have found the same row.
type CachedLessonRepository struct {
	inner lessonLedger
	cache cacheClient[models.Lesson]
	log   zerolog.Logger
}

func NewCachedLessonRepository(
	inner lessonLedger,
	cache cacheClient[models.Lesson],
	logger zerolog.Logger,
) *CachedLessonRepository {
	logger = logger.With().Str("component", "CachedLessonRepository").Logger()
	return &CachedLessonRepository{inner: inner, cache: cache, log: logger}
}

func lessonKey(userID, date string) string {
	return fmt.Sprintf("lesson:%s:%s", userID, date)
}

func (r *CachedLessonRepository) FindByLocalDate(
	ctx context.Context, userID, date string,
) (*models.Lesson, error) {
	key := lessonKey(userID, date)

	if lesson, err := r.cache.Get(ctx, key); err == nil {
		r.log.Debug().Ctx(ctx).Str("key", key).Msg("lesson cache hit")
		return &lesson, nil
	}

	lesson, err := r.inner.FindByLocalDate(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	if lesson == nil {
		return nil, nil
	}

	if err := r.cache.Set(ctx, key, *lesson); err != nil {
		r.log.Warn().Err(err).Ctx(ctx).Str("key", key).Msg("lesson cache set failed")
	}
	return lesson, nil
}

func (r *CachedLessonRepository) ListRecent(
	ctx context.Context, userID string, limit int,
) ([]models.Lesson, error) {
	return r.inner.ListRecent(ctx, userID, limit)
}

func (r *CachedLessonRepository) Count(ctx context.Context, userID string) (int, error) {
	return r.inner.Count(ctx, userID)
}

// Record writes through to the ledger and primes the cache so the very
// next run sees the row without touching the database.
func (r *CachedLessonRepository) Record(
	ctx context.Context, lesson models.Lesson,
) (*models.Lesson, error) {
	recorded, err := r.inner.Record(ctx, lesson)
	if err != nil {
		return nil, err
	}

	key := lessonKey(recorded.UserID, recorded.LessonDate)
	if err := r.cache.Set(ctx, key, *recorded); err != nil {
		r.log.Warn().Err(err).Ctx(ctx).Str("key", key).Msg("lesson cache set failed")
	}
	return recorded, nil
}
