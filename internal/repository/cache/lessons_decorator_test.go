//go:build unit

package cache_test

import (
	"context"
	"errors"
	"testing"

	"github.com/davydenko-ucu/lesson-subscription-api/internal/models"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/repository/cache"
	"github.com/davydenko-ucu/lesson-subscription-api/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) FindByLocalDate(ctx context.Context, userID, date string) (*models.Lesson, error) {
	args := m.Called(ctx, userID, date)
	lesson, ok := args.Get(0).(*models.Lesson)
	if !ok {
		return nil, args.Error(1)
	}
	return lesson, args.Error(1)
}

func (m *mockLedger) ListRecent(ctx context.Context, userID string, limit int) ([]models.Lesson, error) {
	args := m.Called(ctx, userID, limit)
	lessons, ok := args.Get(0).([]models.Lesson)
	if !ok {
		return nil, args.Error(1)
	}
	return lessons, args.Error(1)
}

func (m *mockLedger) Count(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockLedger) Record(ctx context.Context, lesson models.Lesson) (*models.Lesson, error) {
	args := m.Called(ctx, lesson.UserID, lesson.LessonDate)
	recorded, ok := args.Get(0).(*models.Lesson)
	if !ok {
		return nil, args.Error(1)
	}
	return recorded, args.Error(1)
}

var errCacheMiss = errors.New("cache miss")

type fakeCache struct {
	store map[string]models.Lesson
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: map[string]models.Lesson{}}
}

func (f *fakeCache) Set(_ context.Context, key string, value models.Lesson) error {
	f.store[key] = value
	return nil
}

func (f *fakeCache) Get(_ context.Context, key string) (models.Lesson, error) {
	lesson, ok := f.store[key]
	if !ok {
		return models.Lesson{}, errCacheMiss
	}
	return lesson, nil
}

func newDecorator(t *testing.T, inner *mockLedger, c *fakeCache) *cache.CachedLessonRepository {
	t.Helper()

	l, err := logger.NewLogger("logs/cache_test.log", "cache_test")
	require.NoError(t, err)

	t.Cleanup(func() { inner.AssertExpectations(t) })
	return cache.NewCachedLessonRepository(inner, c, l)
}

func TestFindByLocalDate_CacheHitSkipsStore(t *testing.T) {
	inner := &mockLedger{}
	c := newFakeCache()
	c.store["lesson:u1:2025-06-15"] = models.Lesson{ID: "l1", UserID: "u1", LessonDate: "2025-06-15"}

	repo := newDecorator(t, inner, c)

	lesson, err := repo.FindByLocalDate(context.Background(), "u1", "2025-06-15")
	require.NoError(t, err)
	require.NotNil(t, lesson)
	assert.Equal(t, "l1", lesson.ID)
	inner.AssertNotCalled(t, "FindByLocalDate", mock.Anything, mock.Anything, mock.Anything)
}

func TestFindByLocalDate_MissFallsThroughAndCachesHit(t *testing.T) {
	inner := &mockLedger{}
	inner.On("FindByLocalDate", mock.Anything, "u1", "2025-06-15").
		Return(&models.Lesson{ID: "l1", UserID: "u1", LessonDate: "2025-06-15"}, nil)

	c := newFakeCache()
	repo := newDecorator(t, inner, c)

	lesson, err := repo.FindByLocalDate(context.Background(), "u1", "2025-06-15")
	require.NoError(t, err)
	require.NotNil(t, lesson)

	cached, ok := c.store["lesson:u1:2025-06-15"]
	require.True(t, ok)
	assert.Equal(t, "l1", cached.ID)
}

func TestFindByLocalDate_NegativeResultNotCached(t *testing.T) {
	inner := &mockLedger{}
	inner.On("FindByLocalDate", mock.Anything, "u1", "2025-06-15").Return(nil, nil)

	c := newFakeCache()
	repo := newDecorator(t, inner, c)

	lesson, err := repo.FindByLocalDate(context.Background(), "u1", "2025-06-15")
	require.NoError(t, err)
	assert.Nil(t, lesson)
	assert.Empty(t, c.store)
}

func TestRecord_PrimesCache(t *testing.T) {
	inner := &mockLedger{}
	inner.On("Record", mock.Anything, "u1", "2025-06-15").
		Return(&models.Lesson{ID: "l1", UserID: "u1", LessonDate: "2025-06-15"}, nil)

	c := newFakeCache()
	repo := newDecorator(t, inner, c)

	_, err := repo.Record(context.Background(), models.Lesson{UserID: "u1", LessonDate: "2025-06-15"})
	require.NoError(t, err)

	cached, ok := c.store["lesson:u1:2025-06-15"]
	require.True(t, ok)
	assert.Equal(t, "l1", cached.ID)
}

func TestRecord_StoreErrorLeavesCacheCold(t *testing.T) {
	inner := &mockLedger{}
	inner.On("Record", mock.Anything, "u1", "2025-06-15").Return(nil, errors.New("unique violation"))

	c := newFakeCache()
	repo := newDecorator(t, inner, c)

	_, err := repo.Record(context.Background(), models.Lesson{UserID: "u1", LessonDate: "2025-06-15"})
	assert.Error(t, err)
	assert.Empty(t, c.store)
}
