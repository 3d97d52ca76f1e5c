//go:build unit

package clock_test

import (
	"testing"
	"time"

	"github.com/davydenko-ucu/lesson-subscription-api/internal/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalNow_UTC(t *testing.T) {
	at := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

	lt, err := clock.LocalNow("UTC", at)
	require.NoError(t, err)

	assert.Equal(t, 9, lt.Hour)
	assert.Equal(t, 0, lt.Minute)
	assert.Equal(t, "2025-06-15", lt.Date)
	assert.Equal(t, "09:00", lt.HHMM())
}

func TestLocalNow_NewYorkDST(t *testing.T) {
	// June 15th: EDT, UTC-4.
	at := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	lt, err := clock.LocalNow("America/New_York", at)
	require.NoError(t, err)

	assert.Equal(t, "08:00", lt.HHMM())
	assert.Equal(t, "2025-06-15", lt.Date)
}

func TestLocalNow_NewYorkStandardTime(t *testing.T) {
	// January 15th: EST, UTC-5.
	at := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

	lt, err := clock.LocalNow("America/New_York", at)
	require.NoError(t, err)

	assert.Equal(t, "07:00", lt.HHMM())
}

func TestLocalNow_NonHourOffset(t *testing.T) {
	// Kathmandu is UTC+5:45.
	at := time.Date(2025, 6, 15, 20, 0, 0, 0, time.UTC)

	lt, err := clock.LocalNow("Asia/Kathmandu", at)
	require.NoError(t, err)

	assert.Equal(t, "01:45", lt.HHMM())
	assert.Equal(t, "2025-06-16", lt.Date, "local date rolls over before UTC date")
}

func TestLocalNow_DateBehindUTC(t *testing.T) {
	at := time.Date(2025, 6, 15, 2, 30, 0, 0, time.UTC)

	lt, err := clock.LocalNow("America/Los_Angeles", at)
	require.NoError(t, err)

	assert.Equal(t, "19:30", lt.HHMM())
	assert.Equal(t, "2025-06-14", lt.Date)
}

func TestLocalNow_UnknownZone(t *testing.T) {
	_, err := clock.LocalNow("Mars/Olympus_Mons", time.Now())
	assert.Error(t, err)
}

func TestHHMM_ZeroPadding(t *testing.T) {
	lt := clock.LocalTime{Hour: 7, Minute: 5}
	assert.Equal(t, "07:05", lt.HHMM())
}
