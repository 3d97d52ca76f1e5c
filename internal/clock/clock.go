package clock

import (
	"fmt"
	"time"
)

// LocalTime is the wall-clock view of an instant in a subscriber's
// timezone.
type LocalTime struct {
	Hour   int
	Minute int
	Date   string
}

// HHMM formats the local time the way subscribers configure their send
// time, zero-padded "HH:MM".
func (t LocalTime) HHMM() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// LocalNow resolves an instant into local wall-clock time and calendar
// date for an IANA timezone identifier. The date is the dedup key for
// the lesson ledger, so it is always the subscriber's local date, never
// the UTC date.
func LocalNow(timezone string, at time.Time) (LocalTime, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return LocalTime{}, fmt.Errorf("load timezone %q: %w", timezone, err)
	}

	local := at.In(loc)
	return LocalTime{
		Hour:   local.Hour(),
		Minute: local.Minute(),
		Date:   local.Format("2006-01-02"),
	}, nil
}
