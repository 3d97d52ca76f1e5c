//go:build unit

package entitlement_test

import (
	"testing"
	"time"

	"github.com/davydenko-ucu/lesson-subscription-api/internal/entitlement"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/models"

	"github.com/stretchr/testify/assert"
)

func subscriberCreatedDaysAgo(days int, now time.Time) models.Subscriber {
	return models.Subscriber{
		ID:        "u1",
		CreatedAt: now.AddDate(0, 0, -days),
	}
}

func TestEntitled_TrialWindow(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	e := entitlement.NewEvaluator()

	tests := []struct {
		name        string
		daysAgo     int
		lessonCount int
		want        bool
	}{
		{"fresh account no lessons", 0, 0, true},
		{"2 days 2 lessons", 2, 2, true},
		{"2 days 3 lessons", 2, 3, false},
		{"4 days 1 lesson", 4, 1, false},
		{"3 days boundary", 3, 0, true},
		{"4 days no lessons", 4, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := subscriberCreatedDaysAgo(tt.daysAgo, now)
			got := e.Entitled(sub, nil, tt.lessonCount, now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntitled_SubscriptionOverridesTrialExpiry(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	e := entitlement.NewEvaluator()

	// Way past both trial limits.
	sub := subscriberCreatedDaysAgo(30, now)

	active := &models.Subscription{UserID: "u1", Status: models.SubscriptionActive}
	assert.True(t, e.Entitled(sub, active, 25, now))

	trialing := &models.Subscription{UserID: "u1", Status: models.SubscriptionTrialing}
	assert.True(t, e.Entitled(sub, trialing, 25, now))
}

func TestEntitled_NonEntitlingStatusFallsBackToTrial(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	e := entitlement.NewEvaluator()

	canceled := &models.Subscription{UserID: "u1", Status: "canceled"}

	inTrial := subscriberCreatedDaysAgo(1, now)
	assert.True(t, e.Entitled(inTrial, canceled, 0, now))

	expired := subscriberCreatedDaysAgo(10, now)
	assert.False(t, e.Entitled(expired, canceled, 0, now))
}
