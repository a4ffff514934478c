package jobs

import (
	"fmt"
	"math"
	"time"
)

const (
	timeFormat    = "3:04 PM"
	dayTimeFormat = "3:04 PM on Monday"

	fiftyFiveMinutes = 55 * time.Minute
	halfHour         = 30 * time.Minute
	eightHours       = 8 * time.Hour
)

// Eta is a rounded, human readable estimate of when a print will finish.
type Eta struct {
	Duration   string
	FinishTime string
}

// FormatEta rounds duration up to a granularity that suits its size and
// renders the finish time in loc. Printer estimates are noisy, so a long
// print is never reported to the minute.
func FormatEta(now time.Time, duration time.Duration, loc *time.Location) Eta {
	now = now.In(loc)
	finish := now.Add(duration)

	var (
		text string
		unit time.Duration
	)
	switch {
	case duration < time.Minute:
		text, unit = "1 minute", time.Minute
	case duration < fiftyFiveMinutes:
		text, unit = fmt.Sprintf("%d minutes", ceilDiv(duration, 5*time.Minute)*5), 5*time.Minute
	case duration < eightHours:
		text, unit = formatHours(float64(ceilDiv(duration, halfHour))/2), halfHour
	default:
		text, unit = fmt.Sprintf("%d hours", ceilDiv(duration, time.Hour)), time.Hour
	}

	finish = roundUp(finish, unit)
	layout := timeFormat
	if !sameDay(now, finish) {
		layout = dayTimeFormat
	}
	return Eta{Duration: text, FinishTime: finish.Format(layout)}
}

func formatHours(hours float64) string {
	switch {
	case hours == 1:
		return "1 hour"
	case hours == math.Trunc(hours):
		return fmt.Sprintf("%d hours", int(hours))
	default:
		return fmt.Sprintf("%.1f hours", hours)
	}
}

func ceilDiv(d, unit time.Duration) int64 {
	return int64(math.Ceil(float64(d) / float64(unit)))
}

// roundUp rounds t up to the next multiple of unit counted from the start of
// its day.
func roundUp(t time.Time, unit time.Duration) time.Time {
	startOfDay := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return startOfDay.Add(time.Duration(ceilDiv(t.Sub(startOfDay), unit)) * unit)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
