package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/physioflow/clinic-scheduler/internal/config"
	"github.com/physioflow/clinic-scheduler/internal/recurrence"
	redisclient "github.com/physioflow/clinic-scheduler/internal/redis"
)

type noopNotifier struct{}

func (noopNotifier) StatusChanged(context.Context, *Appointment, StatusChange) error { return nil }

// failingRepo simulates a storage outage on the transition write path.
type failingRepo struct {
	Repository
}

func (failingRepo) ApplyStatusChange(context.Context, StatusChange, *Interval) (*Appointment, error) {
	return nil, errors.New("storage offline")
}

// countingLocker records how many critical sections were entered.
type countingLocker struct {
	calls int
}

func (l *countingLocker) WithAppointmentLock(ctx context.Context, id uuid.UUID, fn func(context.Context) error) error {
	l.calls++
	return fn(ctx)
}

func testConfig() config.Config {
	return config.Config{
		OpenHour:           7,
		CloseHour:          19,
		SnapGranularity:    15 * time.Minute,
		MinDuration:        15 * time.Minute,
		ResizePixelsPerMin: 2,
	}
}

type fixture struct {
	svc       *Service
	repo      *MemoryRepository
	patient   uuid.UUID
	therapist uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := NewMemoryRepository()
	patient := uuid.New()
	therapist := uuid.New()
	repo.PutPatient(Patient{ID: patient, Name: "Ana Souza"})
	repo.PutTherapist(Therapist{ID: therapist, Name: "Dr. Lima"})

	svc := NewService(repo, redisclient.NoopLocker{}, testConfig(), noopNotifier{}, zerolog.Nop())
	return &fixture{svc: svc, repo: repo, patient: patient, therapist: therapist}
}

func (f *fixture) book(t *testing.T, start, end time.Time) *Appointment {
	t.Helper()
	appt, err := f.svc.BookAppointment(context.Background(), BookingRequest{
		PatientID:   f.patient,
		TherapistID: f.therapist,
		Start:       start,
		End:         end,
	})
	require.NoError(t, err)
	return appt
}

func TestBookAppointment(t *testing.T) {
	f := newFixture(t)

	appt := f.book(t, slotAt(9, 0), slotAt(10, 0))
	assert.Equal(t, StatusScheduled, appt.Status)
	assert.Equal(t, TypeSession, appt.Type)
	assert.Equal(t, PaymentPending, appt.PaymentStatus)

	t.Run("overlapping booking reports the conflict", func(t *testing.T) {
		_, err := f.svc.BookAppointment(context.Background(), BookingRequest{
			PatientID:   f.patient,
			TherapistID: f.therapist,
			Start:       slotAt(9, 30),
			End:         slotAt(10, 30),
		})
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, []uuid.UUID{appt.ID}, conflict.ConflictingIDs)
	})

	t.Run("adjacent booking does not conflict", func(t *testing.T) {
		f.book(t, slotAt(10, 0), slotAt(11, 0))
	})

	t.Run("off-grid times snap before validation", func(t *testing.T) {
		booked := f.book(t, slotAt(13, 7), slotAt(14, 8))
		assert.Equal(t, slotAt(13, 0), booked.StartTime)
		assert.Equal(t, slotAt(14, 15), booked.EndTime)
	})

	t.Run("out of business hours rejected", func(t *testing.T) {
		_, err := f.svc.BookAppointment(context.Background(), BookingRequest{
			PatientID:   f.patient,
			TherapistID: f.therapist,
			Start:       slotAt(19, 30),
			End:         slotAt(20, 30),
		})
		require.ErrorIs(t, err, ErrOutOfBusinessHours)
	})

	t.Run("below minimum duration rejected", func(t *testing.T) {
		// snaps to a zero-length interval
		_, err := f.svc.BookAppointment(context.Background(), BookingRequest{
			PatientID:   f.patient,
			TherapistID: f.therapist,
			Start:       slotAt(15, 0),
			End:         slotAt(15, 5),
		})
		require.Error(t, err)
	})

	t.Run("unknown patient rejected", func(t *testing.T) {
		_, err := f.svc.BookAppointment(context.Background(), BookingRequest{
			PatientID:   uuid.New(),
			TherapistID: f.therapist,
			Start:       slotAt(16, 0),
			End:         slotAt(17, 0),
		})
		require.ErrorIs(t, err, ErrPatientNotFound)
	})
}

func TestApplyTransition(t *testing.T) {
	t.Run("confirm then complete", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, slotAt(9, 0), slotAt(10, 0))

		rec, err := f.svc.ApplyTransition(context.Background(), appt.ID, TransitionRequest{
			To: StatusConfirmed, ChangedBy: "reception",
		})
		require.NoError(t, err)
		assert.Equal(t, StatusScheduled, rec.From)
		assert.Equal(t, StatusConfirmed, rec.To)

		_, err = f.svc.ApplyTransition(context.Background(), appt.ID, TransitionRequest{
			To: StatusCompleted, ChangedBy: "therapist",
		})
		require.NoError(t, err)

		detail, err := f.svc.GetAppointment(context.Background(), appt.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, detail.Status)
		require.Len(t, detail.History, 2)
		assert.Equal(t, detail.History[0].To, detail.History[1].From)
	})

	t.Run("illegal transition leaves no trace", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, slotAt(9, 0), slotAt(10, 0))

		_, err := f.svc.ApplyTransition(context.Background(), appt.ID, TransitionRequest{
			To: StatusCompleted, // scheduled → completed is not legal
		})
		require.ErrorIs(t, err, ErrInvalidTransition)

		detail, err := f.svc.GetAppointment(context.Background(), appt.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusScheduled, detail.Status)
		assert.Empty(t, detail.History)
	})

	t.Run("cancel without reason rejected", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, slotAt(9, 0), slotAt(10, 0))

		_, err := f.svc.ApplyTransition(context.Background(), appt.ID, TransitionRequest{
			To: StatusCancelled,
		})
		require.ErrorIs(t, err, ErrReasonRequired)
	})

	t.Run("missing reason reported before interval problems", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, slotAt(9, 0), slotAt(10, 0))

		// no reason and no usable target interval; the reason policy wins
		_, err := f.svc.ApplyTransition(context.Background(), appt.ID, TransitionRequest{
			To: StatusRescheduled,
		})
		require.ErrorIs(t, err, ErrReasonRequired)
	})

	t.Run("illegal transition reported before interval problems", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, slotAt(9, 0), slotAt(10, 0))
		f.book(t, slotAt(11, 0), slotAt(12, 0)) // occupies the target slot

		for _, to := range []Status{StatusConfirmed, StatusCompleted} {
			_, err := f.svc.ApplyTransition(context.Background(), appt.ID, TransitionRequest{
				To: to, ChangedBy: "therapist",
			})
			require.NoError(t, err)
		}

		// completed is terminal; the conflicting target interval is moot
		_, err := f.svc.ApplyTransition(context.Background(), appt.ID, TransitionRequest{
			To:       StatusRescheduled,
			Reason:   "after the fact",
			NewStart: slotAt(11, 30),
			NewEnd:   slotAt(12, 30),
		})
		require.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("persistence failure leaves no partial state", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, slotAt(9, 0), slotAt(10, 0))

		broken := NewService(failingRepo{f.repo}, redisclient.NoopLocker{}, testConfig(), noopNotifier{}, zerolog.Nop())
		_, err := broken.ApplyTransition(context.Background(), appt.ID, TransitionRequest{
			To: StatusConfirmed, ChangedBy: "reception",
		})
		require.Error(t, err)

		detail, err := f.svc.GetAppointment(context.Background(), appt.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusScheduled, detail.Status)
		assert.Empty(t, detail.History)
	})

	t.Run("cancelled appointment frees its slot", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, slotAt(9, 0), slotAt(10, 0))

		_, err := f.svc.ApplyTransition(context.Background(), appt.ID, TransitionRequest{
			To: StatusCancelled, Reason: "patient request",
		})
		require.NoError(t, err)

		// the same interval can now be booked again
		f.book(t, slotAt(9, 0), slotAt(10, 0))
	})
}

func TestReschedule(t *testing.T) {
	t.Run("requires a reason", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, slotAt(9, 0), slotAt(10, 0))

		_, err := f.svc.ApplyTransition(context.Background(), appt.ID, TransitionRequest{
			To:       StatusRescheduled,
			NewStart: slotAt(11, 0),
			NewEnd:   slotAt(12, 0),
		})
		require.ErrorIs(t, err, ErrReasonRequired)
	})

	t.Run("moves the interval and records both hops", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, slotAt(9, 0), slotAt(10, 0))

		moved, err := f.svc.Reschedule(context.Background(), appt.ID, slotAt(11, 0), slotAt(12, 0), "Patient request", "reception")
		require.NoError(t, err)
		assert.Equal(t, StatusScheduled, moved.Status)
		assert.Equal(t, slotAt(11, 0), moved.StartTime)
		assert.Equal(t, slotAt(12, 0), moved.EndTime)

		detail, err := f.svc.GetAppointment(context.Background(), appt.ID)
		require.NoError(t, err)
		require.Len(t, detail.History, 2)
		assert.Equal(t, StatusRescheduled, detail.History[0].To)
		assert.Equal(t, StatusScheduled, detail.History[1].To)
	})

	t.Run("conflicting target interval rejected with ids", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, slotAt(9, 0), slotAt(10, 0))
		blocker := f.book(t, slotAt(11, 0), slotAt(12, 0))

		_, err := f.svc.Reschedule(context.Background(), appt.ID, slotAt(11, 30), slotAt(12, 30), "try to move", "reception")
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, []uuid.UUID{blocker.ID}, conflict.ConflictingIDs)

		// nothing moved, nothing recorded
		detail, err := f.svc.GetAppointment(context.Background(), appt.ID)
		require.NoError(t, err)
		assert.Equal(t, slotAt(9, 0), detail.StartTime)
		assert.Empty(t, detail.History)
	})

	t.Run("both hops run in one critical section", func(t *testing.T) {
		repo := NewMemoryRepository()
		patient, therapist := uuid.New(), uuid.New()
		repo.PutPatient(Patient{ID: patient, Name: "Ana Souza"})
		repo.PutTherapist(Therapist{ID: therapist, Name: "Dr. Lima"})

		locker := &countingLocker{}
		svc := NewService(repo, locker, testConfig(), noopNotifier{}, zerolog.Nop())

		appt, err := svc.BookAppointment(context.Background(), BookingRequest{
			PatientID:   patient,
			TherapistID: therapist,
			Start:       slotAt(9, 0),
			End:         slotAt(10, 0),
		})
		require.NoError(t, err)

		_, err = svc.Reschedule(context.Background(), appt.ID, slotAt(11, 0), slotAt(12, 0), "patient request", "reception")
		require.NoError(t, err)
		assert.Equal(t, 1, locker.calls, "a reschedule takes the appointment lock exactly once")
	})

	t.Run("rescheduling onto its own old slot is allowed", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, slotAt(9, 0), slotAt(10, 0))

		// shifting 30 minutes overlaps the original interval; the moved
		// appointment must not conflict with itself
		_, err := f.svc.Reschedule(context.Background(), appt.ID, slotAt(9, 30), slotAt(10, 30), "slight shift", "reception")
		require.NoError(t, err)
	})
}

func TestCommitMove(t *testing.T) {
	t.Run("persists a valid move", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, slotAt(9, 0), slotAt(10, 0))

		moved, err := f.svc.CommitMove(context.Background(), appt.ID, slotAt(14, 0), slotAt(15, 0))
		require.NoError(t, err)
		assert.Equal(t, slotAt(14, 0), moved.StartTime)

		// gesture moves leave no status history
		detail, err := f.svc.GetAppointment(context.Background(), appt.ID)
		require.NoError(t, err)
		assert.Empty(t, detail.History)
	})

	t.Run("re-validates against committed state", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, slotAt(9, 0), slotAt(10, 0))
		f.book(t, slotAt(14, 0), slotAt(15, 0))

		_, err := f.svc.CommitMove(context.Background(), appt.ID, slotAt(14, 30), slotAt(15, 30))
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)

		detail, err := f.svc.GetAppointment(context.Background(), appt.ID)
		require.NoError(t, err)
		assert.Equal(t, slotAt(9, 0), detail.StartTime, "rejected move must not mutate")
	})
}

func TestBookSeries(t *testing.T) {
	f := newFixture(t)

	// Anchor on Monday 2026-03-02 at 09:00; Tue/Thu for two weeks.
	anchorStart := slotAt(9, 0)
	until := anchorStart.AddDate(0, 0, 14)

	// a pre-existing booking on the first Thursday forces a skip
	blocker := f.book(t, slotAt(9, 0).AddDate(0, 0, 3), slotAt(10, 0).AddDate(0, 0, 3))

	result, err := f.svc.BookSeries(context.Background(), BookingRequest{
		PatientID:   f.patient,
		TherapistID: f.therapist,
		Start:       anchorStart,
		End:         slotAt(10, 0),
	}, recurrence.Rule{Days: []time.Weekday{time.Tuesday, time.Thursday}, Until: until})
	require.NoError(t, err)

	// anchor + Tue1 + Tue2 + Thu2 booked, Thu1 skipped
	assert.Len(t, result.Booked, 4)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, []uuid.UUID{blocker.ID}, result.Skipped[0].ConflictIDs)

	for _, a := range result.Booked {
		require.NotNil(t, a.SeriesID)
		assert.Equal(t, result.SeriesID, *a.SeriesID)
		assert.Equal(t, 9, a.StartTime.Hour(), "time-of-day preserved")
		assert.Equal(t, 60, int(a.EndTime.Sub(a.StartTime).Minutes()), "duration preserved")
	}
}
