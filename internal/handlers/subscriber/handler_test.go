//go:build unit

package subscriber_test

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/davydenko-ucu/lesson-subscription-api/internal/handlers/subscriber"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/metrics"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/token"
	"github.com/davydenko-ucu/lesson-subscription-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUnsubscribes struct {
	mock.Mock
}

func (m *mockUnsubscribes) Insert(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type mockSubscribers struct {
	mock.Mock
}

func (m *mockSubscribers) Pause(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type handlerFixture struct {
	router       *gin.Engine
	signer       *token.Signer
	unsubscribes *mockUnsubscribes
	subscribers  *mockSubscribers
}

func newFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	l, err := logger.NewLogger("logs/subscriber_test.log", "subscriber_test")
	require.NoError(t, err)

	signer := token.NewSigner("test-secret")
	unsubscribes := &mockUnsubscribes{}
	subscribers := &mockSubscribers{}
	m := metrics.NewMetrics("subscriber_test", &sql.DB{}, "test")

	h := subscriber.NewHandler(signer, unsubscribes, subscribers, l, m)
	router := gin.New()
	router.GET("/api/unsubscribe", h.Unsubscribe)
	router.GET("/api/pause", h.Pause)

	t.Cleanup(func() {
		unsubscribes.AssertExpectations(t)
		subscribers.AssertExpectations(t)
	})

	return &handlerFixture{
		router:       router,
		signer:       signer,
		unsubscribes: unsubscribes,
		subscribers:  subscribers,
	}
}

func (f *handlerFixture) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestUnsubscribe_Success(t *testing.T) {
	f := newFixture(t)
	f.unsubscribes.On("Insert", mock.Anything, "u1").Return(nil)

	tok, err := f.signer.Sign("u1")
	require.NoError(t, err)

	w := f.get("/api/unsubscribe?token=" + tok)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Successfully Unsubscribed")
}

func TestUnsubscribe_MissingToken(t *testing.T) {
	f := newFixture(t)

	w := f.get("/api/unsubscribe")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Token required")
	f.unsubscribes.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestUnsubscribe_InvalidToken(t *testing.T) {
	f := newFixture(t)

	w := f.get("/api/unsubscribe?token=not-a-real-token")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid token")
	f.unsubscribes.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestUnsubscribe_TokenSignedWithOtherSecret(t *testing.T) {
	f := newFixture(t)

	other := token.NewSigner("different-secret")
	tok, err := other.Sign("u1")
	require.NoError(t, err)

	w := f.get("/api/unsubscribe?token=" + tok)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.unsubscribes.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestUnsubscribe_StoreError(t *testing.T) {
	f := newFixture(t)
	f.unsubscribes.On("Insert", mock.Anything, "u1").Return(errors.New("db down"))

	tok, err := f.signer.Sign("u1")
	require.NoError(t, err)

	w := f.get("/api/unsubscribe?token=" + tok)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPause_Success(t *testing.T) {
	f := newFixture(t)
	f.subscribers.On("Pause", mock.Anything, "u1").Return(nil)

	tok, err := f.signer.Sign("u1")
	require.NoError(t, err)

	w := f.get("/api/pause?token=" + tok)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Lessons Paused")
}

func TestPause_InvalidToken(t *testing.T) {
	f := newFixture(t)

	w := f.get("/api/pause?token=garbage")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.subscribers.AssertNotCalled(t, "Pause", mock.Anything, mock.Anything)
}
