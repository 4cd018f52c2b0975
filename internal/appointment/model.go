package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusConfirmed   Status = "confirmed"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusNoShow      Status = "no_show"
	StatusRescheduled Status = "rescheduled"
)

// AllStatuses lists every status the engine knows about. Consumers that
// map statuses to display properties should range over this rather than
// hard-coding strings.
var AllStatuses = []Status{
	StatusScheduled,
	StatusConfirmed,
	StatusCompleted,
	StatusCancelled,
	StatusNoShow,
	StatusRescheduled,
}

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted,
		StatusCancelled, StatusNoShow, StatusRescheduled:
		return true
	}
	return false
}

type Type string

const (
	TypeEvaluation Type = "evaluation"
	TypeSession    Type = "session"
	TypeReturn     Type = "return"
	TypeGroup      Type = "group"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Therapist struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment is the unit of truth for a booked slot. It is never deleted
// in place: cancellation is a status transition, so history survives.
type Appointment struct {
	ID            uuid.UUID
	PatientID     uuid.UUID
	TherapistID   uuid.UUID
	StartTime     time.Time
	EndTime       time.Time
	Status        Status
	Type          Type
	SeriesID      *uuid.UUID // set for appointments expanded from one recurrence rule
	ValueCents    int64
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Interval is a half-open [Start, End) time range.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Active reports whether the appointment still occupies its slot for
// conflict purposes. Only cancelled appointments free their time; a
// completed or no-show slot was still occupied.
func (a *Appointment) Active() bool {
	return a.Status != StatusCancelled
}

// StatusChange is one immutable entry in an appointment's append-only
// status history. For record n, From equals record n-1's To (or the
// initial scheduled status for the first record).
type StatusChange struct {
	ID            int64
	AppointmentID uuid.UUID
	From          Status
	To            Status
	Reason        string
	Notes         string
	ChangedBy     string
	ChangedAt     time.Time
}

type AppointmentDetail struct {
	Appointment
	Patient   *Patient
	Therapist *Therapist
	History   []StatusChange
}
