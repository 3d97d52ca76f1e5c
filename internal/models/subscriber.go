package models

import "time"

type Subscriber struct {
	ID        string
	Email     string
	Topic     string
	Timezone  string
	SendTime  string
	Paused    bool
	CreatedAt time.Time
}

// IsCandidate reports whether the subscriber may be considered for
// scheduling at all. Paused subscribers and subscribers without a topic
// are never candidates.
func (s Subscriber) IsCandidate() bool {
	return !s.Paused && s.Topic != ""
}
