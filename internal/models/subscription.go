package models

import "time"

const (
	SubscriptionActive   = "active"
	SubscriptionTrialing = "trialing"
)

type Subscription struct {
	UserID    string
	Status    string
	PeriodEnd *time.Time
}

// IsEntitling reports whether the subscription status alone grants
// lesson delivery.
func (s Subscription) IsEntitling() bool {
	return s.Status == SubscriptionActive || s.Status == SubscriptionTrialing
}
