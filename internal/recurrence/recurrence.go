// Package recurrence expands weekly recurrence rules into concrete
// candidate intervals. Expansion never persists or conflict-checks;
// callers book each candidate individually so a series can partially
// succeed when some weeks are already taken.
package recurrence

import (
	"errors"
	"time"

	"github.com/physioflow/clinic-scheduler/internal/timeslot"
)

var (
	ErrNoDays        = errors.New("recurrence rule needs at least one weekday")
	ErrUntilTooEarly = errors.New("recurrence end date must be after the anchor date")
)

// Rule is a weekly recurrence: occurrences fall on the listed weekdays up
// to, but not including, Until. Weekday numbering is Go's (Sunday = 0).
type Rule struct {
	Days  []time.Weekday
	Until time.Time
}

func (r Rule) Validate(anchor time.Time) error {
	if len(r.Days) == 0 {
		return ErrNoDays
	}
	if !r.Until.After(anchor) {
		return ErrUntilTooEarly
	}
	return nil
}

// Expand walks forward one calendar day at a time from the day after the
// anchor's date to rule.Until (exclusive), emitting one candidate per
// date whose weekday is in rule.Days. Every candidate keeps the anchor's
// time-of-day and duration. The anchor itself is not re-emitted.
func Expand(rule Rule, anchor timeslot.Candidate) ([]timeslot.Candidate, error) {
	if err := rule.Validate(anchor.Start); err != nil {
		return nil, err
	}

	wanted := make(map[time.Weekday]bool, len(rule.Days))
	for _, d := range rule.Days {
		wanted[d] = true
	}

	var candidates []timeslot.Candidate
	day := anchor.Start.AddDate(0, 0, 1)
	for day.Before(rule.Until) {
		if wanted[day.Weekday()] {
			start, end := timeslot.OnDate(anchor.Start, anchor.End, day)
			candidates = append(candidates, timeslot.Candidate{
				TherapistID: anchor.TherapistID,
				Start:       start,
				End:         end,
			})
		}
		day = day.AddDate(0, 0, 1)
	}

	return candidates, nil
}
