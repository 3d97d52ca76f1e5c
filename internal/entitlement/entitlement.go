package entitlement

import (
	"time"

	"github.com/davydenko-ucu/lesson-subscription-api/internal/models"
)

const (
	trialDays    = 3
	trialLessons = 3
)

// Evaluator decides whether a subscriber may receive a lesson, either
// through a paid subscription or while inside the free trial window.
// It is stateless and evaluated fresh on every scheduling run.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Entitled reports whether the subscriber is allowed a lesson at the
// given instant. A subscription with status "active" or "trialing"
// always entitles. Without one, the subscriber is entitled only while
// both trial limits hold: at most 3 calendar days since account
// creation and fewer than 3 lessons already delivered.
func (e *Evaluator) Entitled(
	sub models.Subscriber,
	subscription *models.Subscription,
	lessonCount int,
	at time.Time,
) bool {
	if subscription != nil && subscription.IsEntitling() {
		return true
	}

	daysSinceCreation := at.Sub(sub.CreatedAt).Hours() / 24
	if daysSinceCreation <= trialDays {
		return lessonCount < trialLessons
	}

	return false
}
