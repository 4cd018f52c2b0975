package appointment

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/physioflow/clinic-scheduler/internal/timeslot"
)

// ConflictError reports every appointment a candidate interval collides
// with, so the operator can be shown all of them rather than the first.
type ConflictError struct {
	ConflictingIDs []uuid.UUID
}

func (e *ConflictError) Error() string {
	ids := make([]string, len(e.ConflictingIDs))
	for i, id := range e.ConflictingIDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("time slot conflicts with appointments: %s", strings.Join(ids, ", "))
}

// FindConflicts returns every appointment of the candidate's therapist
// whose interval overlaps the candidate's. Cancelled appointments never
// block a booking; every other status still represents occupied time.
// excludeID removes the appointment being moved from the comparison set;
// pass uuid.Nil when booking a new one. Result order is unspecified.
func FindConflicts(cand timeslot.Candidate, existing []Appointment, excludeID uuid.UUID) []Appointment {
	var conflicts []Appointment
	for _, appt := range existing {
		if appt.TherapistID != cand.TherapistID {
			continue
		}
		if excludeID != uuid.Nil && appt.ID == excludeID {
			continue
		}
		if !appt.Active() {
			continue
		}
		if timeslot.Overlaps(cand.Start, cand.End, appt.StartTime, appt.EndTime) {
			conflicts = append(conflicts, appt)
		}
	}
	return conflicts
}

// conflictError builds a ConflictError from detector output, or nil when
// the slot is free.
func conflictError(conflicts []Appointment) error {
	if len(conflicts) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(conflicts))
	for i, c := range conflicts {
		ids[i] = c.ID
	}
	return &ConflictError{ConflictingIDs: ids}
}
