package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/physioflow/clinic-scheduler/internal/timeslot"
)

func slotAt(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}

func TestFindConflicts(t *testing.T) {
	therapist := uuid.New()
	other := uuid.New()

	nineToTen := Appointment{
		ID:          uuid.New(),
		TherapistID: therapist,
		StartTime:   slotAt(9, 0),
		EndTime:     slotAt(10, 0),
		Status:      StatusScheduled,
	}

	t.Run("overlapping candidate conflicts", func(t *testing.T) {
		cand := timeslot.Candidate{TherapistID: therapist, Start: slotAt(9, 30), End: slotAt(10, 30)}
		got := FindConflicts(cand, []Appointment{nineToTen}, uuid.Nil)
		require.Len(t, got, 1)
		assert.Equal(t, nineToTen.ID, got[0].ID)
	})

	t.Run("touching edges do not conflict", func(t *testing.T) {
		cand := timeslot.Candidate{TherapistID: therapist, Start: slotAt(10, 0), End: slotAt(11, 0)}
		assert.Empty(t, FindConflicts(cand, []Appointment{nineToTen}, uuid.Nil))
	})

	t.Run("other therapist never conflicts", func(t *testing.T) {
		cand := timeslot.Candidate{TherapistID: other, Start: slotAt(9, 0), End: slotAt(10, 0)}
		assert.Empty(t, FindConflicts(cand, []Appointment{nineToTen}, uuid.Nil))
	})

	t.Run("cancelled appointment frees the slot", func(t *testing.T) {
		cancelled := nineToTen
		cancelled.Status = StatusCancelled
		cand := timeslot.Candidate{TherapistID: therapist, Start: slotAt(9, 30), End: slotAt(10, 30)}
		assert.Empty(t, FindConflicts(cand, []Appointment{cancelled}, uuid.Nil))
	})

	t.Run("completed and no_show still occupy time", func(t *testing.T) {
		for _, status := range []Status{StatusConfirmed, StatusCompleted, StatusNoShow, StatusRescheduled} {
			occupied := nineToTen
			occupied.Status = status
			cand := timeslot.Candidate{TherapistID: therapist, Start: slotAt(9, 30), End: slotAt(10, 30)}
			assert.Len(t, FindConflicts(cand, []Appointment{occupied}, uuid.Nil), 1, "status %s", status)
		}
	})

	t.Run("moved appointment excluded by id", func(t *testing.T) {
		cand := timeslot.Candidate{TherapistID: therapist, Start: slotAt(9, 0), End: slotAt(10, 0)}
		assert.Empty(t, FindConflicts(cand, []Appointment{nineToTen}, nineToTen.ID))
	})

	t.Run("all conflicts reported, not just the first", func(t *testing.T) {
		second := Appointment{
			ID:          uuid.New(),
			TherapistID: therapist,
			StartTime:   slotAt(10, 0),
			EndTime:     slotAt(11, 0),
			Status:      StatusConfirmed,
		}
		cand := timeslot.Candidate{TherapistID: therapist, Start: slotAt(9, 30), End: slotAt(10, 30)}
		got := FindConflicts(cand, []Appointment{nineToTen, second}, uuid.Nil)
		assert.Len(t, got, 2)
	})
}
