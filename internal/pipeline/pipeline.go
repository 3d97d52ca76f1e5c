package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davydenko-ucu/lesson-subscription-api/internal/metrics"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/models"
	"github.com/rs/zerolog"
)

const recentWindow = 5

var ErrNoTopic = errors.New("subscriber has no topic set")

type lessonLedger interface {
	ListRecent(ctx context.Context, userID string, limit int) ([]models.Lesson, error)
	Record(ctx context.Context, lesson models.Lesson) (*models.Lesson, error)
}

type feedbackSource interface {
	ListRecent(ctx context.Context, userID string, limit int) ([]models.Feedback, error)
}

type contentGenerator interface {
	Generate(ctx context.Context, topic, previousSummary, difficultyTrend string) (models.Generation, error)
}

type emailService interface {
	Render(content models.LessonContent, unsubscribeURL, pauseURL string) (string, string, error)
	SendLesson(to, subject, htmlBody, textBody, unsubscribeURL, pauseURL string) error
}

type linkSigner interface {
	Sign(userID string) (string, error)
}

// Pipeline generates, sends and records one lesson for one subscriber.
// The ledger row is written only after the email is accepted by the
// transport, so a failed send never shows up as delivered.
type Pipeline struct {
	lessons   lessonLedger
	feedback  feedbackSource
	generator contentGenerator
	email     emailService
	signer    linkSigner
	appURL    string
	log       zerolog.Logger
	m         *metrics.Metrics
}

func New(
	lessons lessonLedger,
	feedback feedbackSource,
	generator contentGenerator,
	email emailService,
	signer linkSigner,
	appURL string,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *Pipeline {
	logger = logger.With().Str("component", "Pipeline").Logger()
	return &Pipeline{
		lessons:   lessons,
		feedback:  feedback,
		generator: generator,
		email:     email,
		signer:    signer,
		appURL:    appURL,
		log:       logger,
		m:         m,
	}
}

// Deliver runs the full generate-send-record sequence for a subscriber
// on the given local calendar date.
func (p *Pipeline) Deliver(
	ctx context.Context, sub models.Subscriber, localDate string,
) (*models.Lesson, error) {
	start := time.Now()
	p.log.Debug().Ctx(ctx).Str("subscriber_id", sub.ID).Msg("Deliver start")

	if sub.Topic == "" {
		return nil, ErrNoTopic
	}

	previous, err := p.lessons.ListRecent(ctx, sub.ID, recentWindow)
	if err != nil {
		return nil, fmt.Errorf("fetch recent lessons: %w", err)
	}

	feedbacks, err := p.feedback.ListRecent(ctx, sub.ID, recentWindow)
	if err != nil {
		return nil, fmt.Errorf("fetch feedback: %w", err)
	}

	gen, err := p.generator.Generate(
		ctx, sub.Topic, previousLessonsSummary(previous), difficultyTrend(feedbacks),
	)
	if err != nil {
		p.m.TechnicalErrors.WithLabelValues("generation_error", "critical").Inc()
		return nil, err
	}

	tok, err := p.signer.Sign(sub.ID)
	if err != nil {
		return nil, fmt.Errorf("sign unsubscribe token: %w", err)
	}
	unsubscribeURL := p.appURL + "/api/unsubscribe?token=" + tok
	pauseURL := p.appURL + "/api/pause?token=" + tok

	htmlBody, textBody, err := p.email.Render(gen.Content, unsubscribeURL, pauseURL)
	if err != nil {
		return nil, fmt.Errorf("render lesson email: %w", err)
	}

	if err := p.email.SendLesson(
		sub.Email, gen.Content.Subject, htmlBody, textBody, unsubscribeURL, pauseURL,
	); err != nil {
		p.m.TechnicalErrors.WithLabelValues("email_send_error", "critical").Inc()
		return nil, fmt.Errorf("send lesson email: %w", err)
	}

	lesson, err := p.lessons.Record(ctx, models.Lesson{
		UserID:     sub.ID,
		LessonDate: localDate,
		Subject:    gen.Content.Subject,
		HTMLBody:   htmlBody,
		TextBody:   textBody,
		Model:      gen.Model,
		TokensIn:   gen.TokensIn,
		TokensOut:  gen.TokensOut,
	})
	if err != nil {
		// The email is already out. Surfacing the error lets the next
		// run retry, which may double-send; see the ledger unique
		// constraint for the concurrent-run half of this gap.
		p.m.TechnicalErrors.WithLabelValues("ledger_write_error", "critical").Inc()
		return nil, fmt.Errorf("record lesson: %w", err)
	}

	p.log.Info().Ctx(ctx).
		Str("subscriber_id", sub.ID).
		Str("lesson_date", localDate).
		Dur("duration", time.Since(start)).
		Msg("lesson delivered")
	return lesson, nil
}

func previousLessonsSummary(lessons []models.Lesson) string {
	if len(lessons) == 0 {
		return "This is the first lesson."
	}

	summary := ""
	for i, lesson := range lessons {
		summary += fmt.Sprintf("Lesson %d (%s): %s\n", i+1, lesson.LessonDate, lesson.Subject)
	}
	return summary
}

func difficultyTrend(feedbacks []models.Feedback) string {
	if len(feedbacks) == 0 {
		return "No feedback yet"
	}

	var easy, hard int
	for _, fb := range feedbacks {
		switch fb.Difficulty {
		case "easy":
			easy++
		case "hard":
			hard++
		}
	}

	switch {
	case hard > easy:
		return "Recent lessons have been too difficult"
	case easy > hard:
		return "Recent lessons have been too easy"
	default:
		return "Difficulty level is appropriate"
	}
}
