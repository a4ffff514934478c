package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatEta(t *testing.T) {
	// a Friday
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		duration time.Duration
		want     Eta
	}{
		"under a minute":        {30 * time.Second, Eta{"1 minute", "12:01 PM"}},
		"rounds to five":        {12 * time.Minute, Eta{"15 minutes", "12:15 PM"}},
		"just under the hour":   {54 * time.Minute, Eta{"55 minutes", "12:55 PM"}},
		"one hour":              {55 * time.Minute, Eta{"1 hour", "1:00 PM"}},
		"half hours":            {70 * time.Minute, Eta{"1.5 hours", "1:30 PM"}},
		"whole hours":           {100 * time.Minute, Eta{"2 hours", "2:00 PM"}},
		"long print":            {10 * time.Hour, Eta{"10 hours", "10:00 PM"}},
		"finishes another day":  {13 * time.Hour, Eta{"13 hours", "1:00 AM on Saturday"}},
		"rounds long up a hour": {8*time.Hour + time.Minute, Eta{"9 hours", "9:00 PM"}},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatEta(now, tt.duration, time.UTC))
		})
	}
}

func TestFormatEtaUsesLocation(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	brisbane := time.FixedZone("AEST", 10*60*60)

	got := FormatEta(now, 3*time.Hour, brisbane)
	assert.Equal(t, Eta{"3 hours", "1:00 AM on Saturday"}, got)
}

func TestRoundUp(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 7, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 10, 0, 0, time.UTC), roundUp(base, 5*time.Minute))
	assert.Equal(t, time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC), roundUp(base, halfHour))
	assert.Equal(t, time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC), roundUp(base, time.Hour))

	exact := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	assert.Equal(t, exact, roundUp(exact, halfHour))
}
