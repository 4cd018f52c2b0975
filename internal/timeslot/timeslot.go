// Package timeslot provides the pure interval math used by conflict
// detection and the drag/resize controller: half-open overlap tests,
// grid snapping, and business-hours checks.
package timeslot

import (
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultGranularity is the snapping grid for calendar placement.
	DefaultGranularity = 15 * time.Minute

	// MinDuration is the shortest interval a resize may produce.
	MinDuration = 15 * time.Minute

	DefaultOpenHour  = 7
	DefaultCloseHour = 19
)

// Candidate is a proposed, not-yet-committed interval for one therapist.
// It only lives for the duration of a conflict check or an interactive
// gesture and is never persisted.
type Candidate struct {
	TherapistID uuid.UUID
	Start       time.Time
	End         time.Time
}

// Overlaps reports whether the half-open intervals [aStart,aEnd) and
// [bStart,bEnd) intersect. Touching edges do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Snap rounds t to the nearest multiple of granularity within its hour,
// half up, zeroing seconds and nanoseconds. Snapping a snapped time is a
// no-op.
func Snap(t time.Time, granularity time.Duration) time.Time {
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	base := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := t.Sub(base)
	snapped := (offset + granularity/2) / granularity * granularity
	return base.Add(snapped)
}

// WithinBusinessHours reports whether [start,end) lies entirely inside
// [openHour, closeHour) on start's calendar date. It is a predicate only;
// callers reject out-of-range proposals rather than shortening them.
func WithinBusinessHours(start, end time.Time, openHour, closeHour int) bool {
	if !end.After(start) {
		return false
	}
	open := time.Date(start.Year(), start.Month(), start.Day(), openHour, 0, 0, 0, start.Location())
	close := time.Date(start.Year(), start.Month(), start.Day(), closeHour, 0, 0, 0, start.Location())
	return !start.Before(open) && !end.After(close)
}

// Duration returns the length of [start,end) in whole minutes.
func Duration(start, end time.Time) int {
	return int(end.Sub(start) / time.Minute)
}

// OnDate re-stamps the time-of-day of start/end onto date, preserving the
// interval's duration. Used when a drag crosses day columns.
func OnDate(start, end, date time.Time) (time.Time, time.Time) {
	newStart := time.Date(date.Year(), date.Month(), date.Day(),
		start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), start.Location())
	return newStart, newStart.Add(end.Sub(start))
}
