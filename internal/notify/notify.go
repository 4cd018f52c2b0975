// Package notify is the boundary to the patient-facing messaging
// collaborator. Delivery is best-effort: a failed notification never
// rolls back the status change that triggered it.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/physioflow/clinic-scheduler/internal/appointment"
)

type Notifier interface {
	StatusChanged(ctx context.Context, appt *appointment.Appointment, rec appointment.StatusChange) error
}

// LogNotifier records notifications in the structured log instead of
// delivering them. Stands in until a real channel (email/SMS) is wired.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) StatusChanged(ctx context.Context, appt *appointment.Appointment, rec appointment.StatusChange) error {
	n.Logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("patient_id", appt.PatientID.String()).
		Str("from", string(rec.From)).
		Str("to", string(rec.To)).
		Msg("status change notification")
	return nil
}

// NoopNotifier drops everything. Used in tests.
type NoopNotifier struct{}

func (NoopNotifier) StatusChanged(context.Context, *appointment.Appointment, appointment.StatusChange) error {
	return nil
}
