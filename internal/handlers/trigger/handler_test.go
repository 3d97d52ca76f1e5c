//go:build unit

package trigger_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/davydenko-ucu/lesson-subscription-api/internal/handlers/trigger"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/models"
	"github.com/davydenko-ucu/lesson-subscription-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Run(ctx context.Context, at time.Time) ([]models.Result, error) {
	args := m.Called(ctx, at)
	results, ok := args.Get(0).([]models.Result)
	if !ok {
		return nil, args.Error(1)
	}
	return results, args.Error(1)
}

func newTestRouter(t *testing.T, engine *mockEngine, secret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	l, err := logger.NewLogger("logs/trigger_test.log", "trigger_test")
	require.NoError(t, err)

	h := trigger.NewHandler(engine, secret, l)
	router := gin.New()
	router.POST("/api/cron/run", h.Run)

	t.Cleanup(func() { engine.AssertExpectations(t) })
	return router
}

func doRun(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/cron/run", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRun_Success(t *testing.T) {
	engine := &mockEngine{}
	engine.On("Run", mock.Anything, mock.Anything).Return([]models.Result{
		{UserID: "u1", Status: models.StatusSent},
		{UserID: "u2", Status: models.StatusSkipped, Reason: models.ReasonAlreadySent},
	}, nil)

	router := newTestRouter(t, engine, "s3cret")
	w := doRun(router, "Bearer s3cret")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"processed":2`)
	assert.Contains(t, w.Body.String(), `"status":"sent"`)
	assert.Contains(t, w.Body.String(), `"reason":"already_sent_today"`)
}

func TestRun_MissingAuth(t *testing.T) {
	engine := &mockEngine{}
	router := newTestRouter(t, engine, "s3cret")

	w := doRun(router, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	engine.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestRun_WrongSecret(t *testing.T) {
	engine := &mockEngine{}
	router := newTestRouter(t, engine, "s3cret")

	w := doRun(router, "Bearer wrong")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	engine.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestRun_EmptyConfiguredSecretRejectsAll(t *testing.T) {
	engine := &mockEngine{}
	router := newTestRouter(t, engine, "")

	w := doRun(router, "Bearer ")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	engine.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestRun_EngineError(t *testing.T) {
	engine := &mockEngine{}
	engine.On("Run", mock.Anything, mock.Anything).Return(nil, errors.New("fetch candidates: db down"))

	router := newTestRouter(t, engine, "s3cret")
	w := doRun(router, "Bearer s3cret")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
