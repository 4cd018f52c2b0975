package session

import (
	"context"
	"time"

	"github.com/physioflow/clinic-scheduler/internal/appointment"
	"github.com/physioflow/clinic-scheduler/internal/timeslot"
)

// BeginDrag starts a drag gesture for the appointment, snapshotting its
// original interval. Any gesture already in progress is ended first.
func (c *Controller) BeginDrag(appt appointment.Appointment, pointerY float64, date time.Time) error {
	return c.begin(&gesture{
		phase:        phaseDragging,
		appt:         appt,
		date:         date,
		previewStart: appt.StartTime,
		previewEnd:   appt.EndTime,
	})
}

// UpdateDrag recomputes the candidate interval from the pointer position.
// The original duration is preserved and the start snaps to the grid.
// Nothing is validated or mutated; this runs on every pointer move.
func (c *Controller) UpdateDrag(pointerY float64) (Preview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return Preview{}, ErrNoActiveSession
	}
	if c.active.phase != phaseDragging {
		return Preview{}, ErrWrongGesture
	}
	g := c.active

	duration := g.appt.EndTime.Sub(g.appt.StartTime)
	start := timeslot.Snap(c.geom.PositionToTime(pointerY, g.date), c.cfg.SnapGranularity)

	g.previewStart = start
	g.previewEnd = start.Add(duration)

	return Preview{Start: g.previewStart, End: g.previewEnd}, nil
}

// EndDrag finalizes the drop. The candidate's time-of-day is re-stamped
// onto targetDate, so dragging across day columns moves the calendar
// date. Out-of-hours and conflicting drops revert silently; a successful
// drop is persisted and the committed appointment returned.
func (c *Controller) EndDrag(ctx context.Context, pointerY float64, targetDate time.Time) (DropResult, error) {
	g, err := c.take(phaseDragging)
	if err != nil {
		return DropResult{}, err
	}

	duration := g.appt.EndTime.Sub(g.appt.StartTime)
	start := timeslot.Snap(c.geom.PositionToTime(pointerY, g.date), c.cfg.SnapGranularity)
	start, end := timeslot.OnDate(start, start.Add(duration), targetDate)

	if !timeslot.WithinBusinessHours(start, end, c.cfg.OpenHour, c.cfg.CloseHour) {
		c.logger.Debug().
			Str("appointment_id", g.appt.ID.String()).
			Time("start", start).
			Msg("drop outside business hours, reverting")
		return DropResult{Reverted: true, RevertCause: appointment.ErrOutOfBusinessHours}, nil
	}

	return c.commit(ctx, g, start, end)
}
