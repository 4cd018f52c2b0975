package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/physioflow/clinic-scheduler/internal/config"
	redisclient "github.com/physioflow/clinic-scheduler/internal/redis"
	"github.com/physioflow/clinic-scheduler/internal/timeslot"
)

var (
	ErrOutOfBusinessHours = errors.New("interval is outside business hours")
	ErrMinimumDuration    = errors.New("interval is shorter than the minimum appointment duration")
	ErrInvalidInterval    = errors.New("end time must be after start time")
	ErrEditInProgress     = errors.New("another edit of this appointment is in progress, please retry")
)

// Notifier is invoked after a successful status transition. Failures are
// logged and never roll the transition back.
type Notifier interface {
	StatusChanged(ctx context.Context, appt *Appointment, rec StatusChange) error
}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	cfg      config.Config
	notifier Notifier
	logger   zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		cfg:      cfg,
		notifier: notifier,
		logger:   logger,
	}
}

type BookingRequest struct {
	PatientID   uuid.UUID
	TherapistID uuid.UUID
	Start       time.Time
	End         time.Time
	Type        Type
	SeriesID    *uuid.UUID
	ValueCents  int64
}

// ValidateCandidate checks a proposed interval against business hours and
// the therapist's committed appointments. excludeID removes the
// appointment being moved from the comparison set; pass uuid.Nil for new
// bookings. The scan always hits the repository so a commit decided on a
// stale in-memory view cannot slip through.
func (s *Service) ValidateCandidate(ctx context.Context, cand timeslot.Candidate, excludeID uuid.UUID) error {
	if !cand.End.After(cand.Start) {
		return ErrInvalidInterval
	}
	if timeslot.Duration(cand.Start, cand.End) < int(s.cfg.MinDuration/time.Minute) {
		return ErrMinimumDuration
	}
	if !timeslot.WithinBusinessHours(cand.Start, cand.End, s.cfg.OpenHour, s.cfg.CloseHour) {
		return ErrOutOfBusinessHours
	}

	existing, err := s.repo.ListAppointmentsByTherapist(ctx, cand.TherapistID, cand.Start, cand.End)
	if err != nil {
		return fmt.Errorf("load appointments for conflict scan: %w", err)
	}

	return conflictError(FindConflicts(cand, existing, excludeID))
}

// BookAppointment creates a new scheduled appointment after snapping the
// interval to the calendar grid and validating it.
func (s *Service) BookAppointment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if _, err := s.repo.GetTherapistByID(ctx, req.TherapistID); err != nil {
		if errors.Is(err, ErrTherapistNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load therapist: %w", err)
	}

	start := timeslot.Snap(req.Start, s.cfg.SnapGranularity)
	end := timeslot.Snap(req.End, s.cfg.SnapGranularity)

	cand := timeslot.Candidate{TherapistID: req.TherapistID, Start: start, End: end}
	if err := s.ValidateCandidate(ctx, cand, uuid.Nil); err != nil {
		return nil, err
	}

	apptType := req.Type
	if apptType == "" {
		apptType = TypeSession
	}

	appt, err := s.repo.CreateAppointment(ctx, &Appointment{
		PatientID:     req.PatientID,
		TherapistID:   req.TherapistID,
		StartTime:     start,
		EndTime:       end,
		Status:        StatusScheduled,
		Type:          apptType,
		SeriesID:      req.SeriesID,
		ValueCents:    req.ValueCents,
		PaymentStatus: PaymentPending,
	})
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("therapist_id", appt.TherapistID.String()).
		Time("start", appt.StartTime).
		Time("end", appt.EndTime).
		Msg("appointment booked")

	return appt, nil
}

type TransitionRequest struct {
	To        Status
	Reason    string
	Notes     string
	ChangedBy string

	// Required when To is rescheduled: the new interval that must pass
	// business-hours and conflict validation before the transition lands.
	NewStart time.Time
	NewEnd   time.Time
}

// ApplyTransition validates and executes one status change under the
// per-appointment lock. Commit order is validate, persist, apply; no
// partial mutation survives a failure.
func (s *Service) ApplyTransition(ctx context.Context, id uuid.UUID, req TransitionRequest) (*StatusChange, error) {
	var rec *StatusChange

	err := s.locker.WithAppointmentLock(ctx, id, func(lockCtx context.Context) error {
		r, err := s.applyTransitionLocked(lockCtx, id, req)
		if err != nil {
			return err
		}
		rec = r
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrEditInProgress
		}
		return nil, err
	}

	return rec, nil
}

// applyTransitionLocked runs one transition. The caller holds the
// appointment lock. Guards run in a fixed order: transition legality and
// the reason policy first, then the interval checks a reschedule needs,
// so a request with several violations always reports the status-machine
// one.
func (s *Service) applyTransitionLocked(ctx context.Context, id uuid.UUID, req TransitionRequest) (*StatusChange, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := CheckTransition(appt.Status, req.To, req.Reason); err != nil {
		return nil, err
	}

	var interval *Interval
	if req.To == StatusRescheduled {
		cand := timeslot.Candidate{
			TherapistID: appt.TherapistID,
			Start:       timeslot.Snap(req.NewStart, s.cfg.SnapGranularity),
			End:         timeslot.Snap(req.NewEnd, s.cfg.SnapGranularity),
		}
		if err := s.ValidateCandidate(ctx, cand, appt.ID); err != nil {
			return nil, err
		}
		interval = &Interval{Start: cand.Start, End: cand.End}
	}

	rec, err := appt.Transition(req.To, req.Reason, req.Notes, req.ChangedBy, time.Now())
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.ApplyStatusChange(ctx, *rec, interval)
	if err != nil {
		return nil, fmt.Errorf("persist status change: %w", err)
	}

	if err := s.notifier.StatusChanged(ctx, updated, *rec); err != nil {
		s.logger.Warn().Err(err).
			Str("appointment_id", updated.ID.String()).
			Msg("status change notification failed")
	}
	return rec, nil
}

// Reschedule moves an appointment to a new interval through the full
// status path: current → rescheduled (interval updated) → scheduled, so
// the history shows both hops. Both hops run inside one lock acquisition
// so no concurrent edit can observe or interleave with the intermediate
// rescheduled state.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newStart, newEnd time.Time, reason, changedBy string) (*Appointment, error) {
	var moved *Appointment

	err := s.locker.WithAppointmentLock(ctx, id, func(lockCtx context.Context) error {
		if _, err := s.applyTransitionLocked(lockCtx, id, TransitionRequest{
			To:        StatusRescheduled,
			Reason:    reason,
			ChangedBy: changedBy,
			NewStart:  newStart,
			NewEnd:    newEnd,
		}); err != nil {
			return err
		}

		if _, err := s.applyTransitionLocked(lockCtx, id, TransitionRequest{
			To:        StatusScheduled,
			ChangedBy: changedBy,
		}); err != nil {
			return err
		}

		appt, err := s.repo.GetAppointmentByID(lockCtx, id)
		if err != nil {
			return err
		}
		moved = appt
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrEditInProgress
		}
		return nil, err
	}

	return moved, nil
}

// CommitMove persists a new interval decided by a drag or resize gesture.
// It re-validates against the latest committed appointments immediately
// before persisting; a scan done earlier in the gesture is not trusted.
// Gesture moves do not touch the status history.
func (s *Service) CommitMove(ctx context.Context, id uuid.UUID, newStart, newEnd time.Time) (*Appointment, error) {
	var moved *Appointment

	err := s.locker.WithAppointmentLock(ctx, id, func(lockCtx context.Context) error {
		appt, err := s.repo.GetAppointmentByID(lockCtx, id)
		if err != nil {
			return err
		}

		cand := timeslot.Candidate{TherapistID: appt.TherapistID, Start: newStart, End: newEnd}
		if err := s.ValidateCandidate(lockCtx, cand, appt.ID); err != nil {
			return err
		}

		moved, err = s.repo.UpdateAppointmentInterval(lockCtx, appt.ID, newStart, newEnd)
		if err != nil {
			return fmt.Errorf("persist moved interval: %w", err)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrEditInProgress
		}
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", id.String()).
		Time("start", moved.StartTime).
		Time("end", moved.EndTime).
		Msg("appointment moved")

	return moved, nil
}

// GetAppointment retrieves a fully hydrated appointment by ID.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return detail, nil
}

// ListAppointments returns a therapist's appointments intersecting
// [from, to).
func (s *Service) ListAppointments(ctx context.Context, therapistID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	appts, err := s.repo.ListAppointmentsByTherapist(ctx, therapistID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}
