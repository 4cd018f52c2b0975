package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrTherapistNotFound   = errors.New("therapist not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository contains all persistence interactions needed by the service.
// The engine only inspects success or failure of these calls; the backing
// store is an external collaborator.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetTherapistByID(ctx context.Context, id uuid.UUID) (*Therapist, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)

	// For conflict scans: every appointment of one therapist whose
	// interval intersects [from, to).
	ListAppointmentsByTherapist(ctx context.Context, therapistID uuid.UUID, from, to time.Time) ([]Appointment, error)

	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)
	UpdateAppointmentInterval(ctx context.Context, id uuid.UUID, start, end time.Time) (*Appointment, error)

	// ApplyStatusChange persists one status transition as a unit: the
	// compare-and-set status update (guarded by rec.From), the new interval
	// when non-nil, and the history record. Either all of them land or
	// none do.
	ApplyStatusChange(ctx context.Context, rec StatusChange, interval *Interval) (*Appointment, error)

	// Status history, append-only.
	ListStatusChanges(ctx context.Context, appointmentID uuid.UUID) ([]StatusChange, error)
}
