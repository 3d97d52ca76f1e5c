package generator

import (
	"context"
	"errors"
	"time"

	"github.com/davydenko-ucu/lesson-subscription-api/internal/models"
	"github.com/sony/gobreaker"
)

const (
	timeInterval = time.Duration(30) * time.Second
	timeTimeOut  = time.Duration(60) * time.Second

	repeatNumber = 5
)

type contentGenerator interface {
	Generate(ctx context.Context, topic, previousSummary, difficultyTrend string) (models.Generation, error)
}

// BreakerClient wraps a generator in a circuit breaker so a flapping
// model API fails fast instead of stalling every subscriber in a run.
type BreakerClient struct {
	name    string
	cb      *gobreaker.CircuitBreaker
	wrapped contentGenerator
}

func NewBreakerClient(name string, wrapped contentGenerator) *BreakerClient {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    timeInterval,
		Timeout:     timeTimeOut,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= repeatNumber
		},
	}
	return &BreakerClient{
		name:    name,
		cb:      gobreaker.NewCircuitBreaker(settings),
		wrapped: wrapped,
	}
}

func (b *BreakerClient) Generate(
	ctx context.Context,
	topic, previousSummary, difficultyTrend string,
) (models.Generation, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.wrapped.Generate(ctx, topic, previousSummary, difficultyTrend)
	})
	if err != nil {
		return models.Generation{},
			errors.New(b.name + " unavailable: " + err.Error())
	}
	gen, ok := result.(models.Generation)
	if !ok {
		return models.Generation{},
			errors.New(b.name + " unavailable: unexpected result type")
	}
	return gen, nil
}
