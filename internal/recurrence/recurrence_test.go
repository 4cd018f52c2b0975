package recurrence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/physioflow/clinic-scheduler/internal/timeslot"
)

func TestExpand(t *testing.T) {
	// Monday 2026-03-02, 09:00–10:00
	anchor := timeslot.Candidate{
		TherapistID: uuid.New(),
		Start:       time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		End:         time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}

	t.Run("two weeks of Tuesday and Thursday", func(t *testing.T) {
		rule := Rule{
			Days:  []time.Weekday{time.Tuesday, time.Thursday},
			Until: anchor.Start.AddDate(0, 0, 14),
		}

		candidates, err := Expand(rule, anchor)
		require.NoError(t, err)
		require.Len(t, candidates, 4)

		wantDays := []int{3, 5, 10, 12} // Mar 3, 5, 10, 12
		for i, cand := range candidates {
			assert.Equal(t, wantDays[i], cand.Start.Day())
			assert.Equal(t, 9, cand.Start.Hour(), "time-of-day preserved")
			assert.Equal(t, time.Hour, cand.End.Sub(cand.Start), "duration preserved")
			assert.Equal(t, anchor.TherapistID, cand.TherapistID)
		}
	})

	t.Run("anchor weekday is not re-emitted for the anchor date", func(t *testing.T) {
		rule := Rule{
			Days:  []time.Weekday{time.Monday},
			Until: anchor.Start.AddDate(0, 0, 15), // covers the next two Mondays
		}

		candidates, err := Expand(rule, anchor)
		require.NoError(t, err)
		require.Len(t, candidates, 2)
		assert.Equal(t, 9, candidates[0].Start.Day(), "first occurrence is the following Monday")
	})

	t.Run("until is exclusive", func(t *testing.T) {
		rule := Rule{
			Days:  []time.Weekday{time.Tuesday},
			Until: anchor.Start.AddDate(0, 0, 1), // Tuesday itself
		}

		candidates, err := Expand(rule, anchor)
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("empty days rejected", func(t *testing.T) {
		_, err := Expand(Rule{Until: anchor.Start.AddDate(0, 0, 7)}, anchor)
		require.ErrorIs(t, err, ErrNoDays)
	})

	t.Run("until before anchor rejected", func(t *testing.T) {
		_, err := Expand(Rule{
			Days:  []time.Weekday{time.Tuesday},
			Until: anchor.Start.AddDate(0, 0, -1),
		}, anchor)
		require.ErrorIs(t, err, ErrUntilTooEarly)
	})
}
