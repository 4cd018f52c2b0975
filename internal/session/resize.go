package session

import (
	"context"
	"time"

	"github.com/physioflow/clinic-scheduler/internal/appointment"
	"github.com/physioflow/clinic-scheduler/internal/timeslot"
)

// BeginResize starts a resize gesture on one edge of the appointment.
func (c *Controller) BeginResize(appt appointment.Appointment, edge Edge, pointerY float64) error {
	return c.begin(&gesture{
		phase:         phaseResizing,
		appt:          appt,
		date:          appt.StartTime,
		edge:          edge,
		beginPointerY: pointerY,
		previewStart:  appt.StartTime,
		previewEnd:    appt.EndTime,
	})
}

// UpdateResize converts the vertical pixel delta since BeginResize into
// minutes and applies it to the dragged edge. The moved edge is clamped
// so the interval never shrinks below the minimum duration, then both
// edges snap to the grid independently.
func (c *Controller) UpdateResize(pointerY float64) (Preview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return Preview{}, ErrNoActiveSession
	}
	if c.active.phase != phaseResizing {
		return Preview{}, ErrWrongGesture
	}
	g := c.active

	pxPerMin := c.cfg.ResizePixelsPerMin
	if pxPerMin <= 0 {
		pxPerMin = 2
	}
	delta := time.Duration((pointerY-g.beginPointerY)/float64(pxPerMin)) * time.Minute

	start, end := g.appt.StartTime, g.appt.EndTime
	switch g.edge {
	case EdgeTop:
		start = start.Add(delta)
		if latest := end.Add(-c.minDuration()); start.After(latest) {
			start = latest
		}
	case EdgeBottom:
		end = end.Add(delta)
		if earliest := start.Add(c.minDuration()); end.Before(earliest) {
			end = earliest
		}
	}

	start = timeslot.Snap(start, c.cfg.SnapGranularity)
	end = timeslot.Snap(end, c.cfg.SnapGranularity)
	if end.Sub(start) < c.minDuration() {
		// snapping both edges toward each other can undershoot the
		// minimum; push the dragged edge back out
		if g.edge == EdgeTop {
			start = end.Add(-c.minDuration())
		} else {
			end = start.Add(c.minDuration())
		}
	}

	g.previewStart = start
	g.previewEnd = end

	return Preview{Start: start, End: end}, nil
}

// EndResize validates the previewed interval the same way a drop is
// validated: out-of-hours and conflicts revert silently, success
// persists.
func (c *Controller) EndResize(ctx context.Context) (DropResult, error) {
	g, err := c.take(phaseResizing)
	if err != nil {
		return DropResult{}, err
	}

	start, end := g.previewStart, g.previewEnd

	if !timeslot.WithinBusinessHours(start, end, c.cfg.OpenHour, c.cfg.CloseHour) {
		c.logger.Debug().
			Str("appointment_id", g.appt.ID.String()).
			Time("start", start).
			Msg("resize outside business hours, reverting")
		return DropResult{Reverted: true, RevertCause: appointment.ErrOutOfBusinessHours}, nil
	}

	return c.commit(ctx, g, start, end)
}

func (c *Controller) minDuration() time.Duration {
	if c.cfg.MinDuration > 0 {
		return c.cfg.MinDuration
	}
	return timeslot.MinDuration
}
