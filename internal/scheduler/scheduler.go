package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/davydenko-ucu/lesson-subscription-api/internal/clock"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/metrics"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/models"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/repository"
	"github.com/rs/zerolog"
)

type subscriberSource interface {
	ListCandidates(ctx context.Context) ([]models.Subscriber, error)
}

type unsubscribeChecker interface {
	IsUnsubscribed(ctx context.Context, userID string) (bool, error)
}

type lessonLedger interface {
	FindByLocalDate(ctx context.Context, userID, date string) (*models.Lesson, error)
	Count(ctx context.Context, userID string) (int, error)
}

type subscriptionSource interface {
	GetByUserID(ctx context.Context, userID string) (*models.Subscription, error)
}

type entitlementEvaluator interface {
	Entitled(sub models.Subscriber, subscription *models.Subscription, lessonCount int, at time.Time) bool
}

type lessonPipeline interface {
	Deliver(ctx context.Context, sub models.Subscriber, localDate string) (*models.Lesson, error)
}

// ClockFunc resolves an instant into a subscriber's local wall-clock
// view. Injected so tests can pin the timezone arithmetic.
type ClockFunc func(timezone string, at time.Time) (clock.LocalTime, error)

// Engine decides, once per invocation, which subscribers are due at
// their local send time and drives the delivery pipeline for each.
// It keeps no state between invocations: dedup and entitlement live in
// the ledger, which is what makes repeated invocations safe at daily
// granularity.
type Engine struct {
	subscribers   subscriberSource
	unsubscribes  unsubscribeChecker
	lessons       lessonLedger
	subscriptions subscriptionSource
	entitlement   entitlementEvaluator
	pipeline      lessonPipeline
	clock         ClockFunc

	log zerolog.Logger
	m   *metrics.Metrics

	workers         int
	pipelineTimeout time.Duration
}

func New(
	subscribers subscriberSource,
	unsubscribes unsubscribeChecker,
	lessons lessonLedger,
	subscriptions subscriptionSource,
	entitlement entitlementEvaluator,
	pipeline lessonPipeline,
	clockFn ClockFunc,
	logger zerolog.Logger,
	m *metrics.Metrics,
	workers int,
	pipelineTimeout time.Duration,
) *Engine {
	logger = logger.With().Str("component", "SchedulerEngine").Logger()
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		subscribers:     subscribers,
		unsubscribes:    unsubscribes,
		lessons:         lessons,
		subscriptions:   subscriptions,
		entitlement:     entitlement,
		pipeline:        pipeline,
		clock:           clockFn,
		log:             logger,
		m:               m,
		workers:         workers,
		pipelineTimeout: pipelineTimeout,
	}
}

// Run executes one scheduling pass at the given reference instant and
// returns one result per considered subscriber. A candidate-fetch
// failure fails the whole run; every later failure is isolated to its
// subscriber and reported as a skip.
func (e *Engine) Run(ctx context.Context, at time.Time) ([]models.Result, error) {
	start := time.Now()
	e.m.SchedulerRuns.Inc()
	e.log.Debug().Ctx(ctx).Time("reference_instant", at).Msg("starting scheduling run")

	candidates, err := e.subscribers.ListCandidates(ctx)
	if err != nil {
		e.log.Error().Err(err).Ctx(ctx).Msg("failed to fetch candidate subscribers")
		e.m.TechnicalErrors.WithLabelValues("fetch_candidates", "critical").Inc()
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}
	e.log.Info().Ctx(ctx).Int("count", len(candidates)).Msg("fetched candidate subscribers")

	jobs := make(chan models.Subscriber)
	resultCh := make(chan models.Result)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range jobs {
				if res, ok := e.processOne(ctx, sub, at); ok {
					resultCh <- res
				}
			}
		}()
	}

	go func() {
		for _, sub := range candidates {
			jobs <- sub
		}
		close(jobs)
		wg.Wait()
		close(resultCh)
	}()

	var results []models.Result
	for res := range resultCh {
		results = append(results, res)
	}

	dur := time.Since(start)
	e.m.SchedulerRunDuration.Observe(dur.Seconds())
	e.log.Info().Ctx(ctx).
		Int("processed", len(results)).
		Dur("duration", dur).
		Msg("completed scheduling run")
	return results, nil
}

// processOne walks one subscriber through the filter chain. The second
// return value is false when the subscriber is not a candidate at all
// and must not appear in the result list.
func (e *Engine) processOne(ctx context.Context, sub models.Subscriber, at time.Time) (models.Result, bool) {
	if !sub.IsCandidate() {
		return models.Result{}, false
	}

	unsubscribed, err := e.unsubscribes.IsUnsubscribed(ctx, sub.ID)
	if err != nil {
		return e.skip(sub.ID, models.ReasonGenerationError, "unsubscribe check: "+err.Error()), true
	}
	if unsubscribed {
		return e.skip(sub.ID, models.ReasonUnsubscribed, ""), true
	}

	local, err := e.clock(sub.Timezone, at)
	if err != nil {
		// Unknown zone excludes this subscriber only, never the run.
		e.log.Warn().Err(err).Ctx(ctx).
			Str("subscriber_id", sub.ID).
			Str("timezone", sub.Timezone).
			Msg("failed to resolve subscriber timezone")
		return e.skip(sub.ID, models.ReasonTimeNotDue, ""), true
	}

	existing, err := e.lessons.FindByLocalDate(ctx, sub.ID, local.Date)
	if err != nil {
		return e.skip(sub.ID, models.ReasonGenerationError, "ledger read: "+err.Error()), true
	}
	if existing != nil {
		return e.skip(sub.ID, models.ReasonAlreadySent, ""), true
	}

	subscription, err := e.subscriptions.GetByUserID(ctx, sub.ID)
	if err != nil {
		return e.skip(sub.ID, models.ReasonGenerationError, "subscription read: "+err.Error()), true
	}
	lessonCount, err := e.lessons.Count(ctx, sub.ID)
	if err != nil {
		return e.skip(sub.ID, models.ReasonGenerationError, "lesson count: "+err.Error()), true
	}
	if !e.entitlement.Entitled(sub, subscription, lessonCount, at) {
		return e.skip(sub.ID, models.ReasonTrialExceeded, ""), true
	}

	// Exact-minute match; the trigger cadence must be at least once a
	// minute or send times get missed.
	if local.HHMM() != sub.SendTime {
		return e.skip(sub.ID, models.ReasonTimeNotDue, ""), true
	}

	pctx, cancel := context.WithTimeout(ctx, e.pipelineTimeout)
	defer cancel()

	if _, err := e.pipeline.Deliver(pctx, sub, local.Date); err != nil {
		if errors.Is(err, repository.ErrLessonExists) {
			// A concurrent run already delivered today's lesson.
			return e.skip(sub.ID, models.ReasonAlreadySent, ""), true
		}
		detail := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			detail = "timeout"
		}
		e.log.Error().Err(err).Ctx(ctx).
			Str("subscriber_id", sub.ID).
			Msg("pipeline delivery failed")
		return e.skip(sub.ID, models.ReasonGenerationError, detail), true
	}

	e.m.LessonsSent.Inc()
	e.log.Info().Ctx(ctx).Str("subscriber_id", sub.ID).Msg("lesson sent")
	return models.Result{UserID: sub.ID, Status: models.StatusSent}, true
}

func (e *Engine) skip(userID, reason, detail string) models.Result {
	e.m.LessonsSkipped.WithLabelValues(reason).Inc()

	full := reason
	if detail != "" {
		full = reason + ": " + detail
	}
	return models.Result{UserID: userID, Status: models.StatusSkipped, Reason: full}
}
