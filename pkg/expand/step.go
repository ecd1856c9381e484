package expand

import (
	"time"

	"github.com/jinzhu/now"

	"github.com/fieldops/maintsched/pkg/core"
)

// horizonYears is how far past the anchor a series may reach. Dates
// beyond it are not schedulable and would overflow calendar arithmetic.
const horizonYears = 10000

// stepper yields the date k calendar units after the anchor.
type stepper interface {
	At(anchor time.Time, k int) time.Time
	// MaxUnits is the largest k that stays within horizonYears.
	MaxUnits() int
}

// dayStep adds whole days, keeping the wall clock.
type dayStep struct {
	days int
}

func (s dayStep) At(anchor time.Time, k int) time.Time {
	return anchor.AddDate(0, 0, s.days*k)
}

func (s dayStep) MaxUnits() int { return horizonYears * 366 / s.days }

// monthStep adds whole months, clamping to the last day of the target month.
type monthStep struct {
	months int
}

func (s monthStep) At(anchor time.Time, k int) time.Time {
	return addMonths(anchor, s.months*k)
}

func (s monthStep) MaxUnits() int { return horizonYears * 12 / s.months }

func stepFor(f core.Frequency) stepper {
	switch f {
	case core.FrequencyDaily:
		return dayStep{days: 1}
	case core.FrequencyWeekly:
		return dayStep{days: 7}
	case core.FrequencyMonthly:
		return monthStep{months: 1}
	case core.FrequencyYearly:
		return monthStep{months: 12}
	}
	return nil
}

// addMonths moves t by months. When t's day does not exist in the target
// month the result lands on that month's last day.
func addMonths(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())

	day := t.Day()
	if last := now.With(first).EndOfMonth().Day(); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
