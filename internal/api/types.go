package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/physioflow/clinic-scheduler/internal/appointment"
)

type BookAppointmentRequest struct {
	PatientID   string    `json:"patient_id"`
	TherapistID string    `json:"therapist_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Type        string    `json:"type,omitempty"`
	ValueCents  int64     `json:"value_cents,omitempty"`
}

type BookSeriesRequest struct {
	BookAppointmentRequest

	// Weekday numbers use Go's convention: 0 = Sunday … 6 = Saturday.
	Days  []int     `json:"days"`
	Until time.Time `json:"until"`
}

type TransitionRequest struct {
	To        string `json:"to"`
	Reason    string `json:"reason,omitempty"`
	Notes     string `json:"notes,omitempty"`
	ChangedBy string `json:"changed_by,omitempty"`

	// Required when to == rescheduled.
	NewStart *time.Time `json:"new_start,omitempty"`
	NewEnd   *time.Time `json:"new_end,omitempty"`
}

type RescheduleRequest struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Reason    string    `json:"reason"`
	ChangedBy string    `json:"changed_by,omitempty"`
}

type AppointmentResponse struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	TherapistID   uuid.UUID  `json:"therapist_id"`
	Start         time.Time  `json:"start"`
	End           time.Time  `json:"end"`
	Status        string     `json:"status"`
	Type          string     `json:"type"`
	SeriesID      *uuid.UUID `json:"series_id,omitempty"`
	ValueCents    int64      `json:"value_cents"`
	PaymentStatus string     `json:"payment_status"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:            a.ID,
		PatientID:     a.PatientID,
		TherapistID:   a.TherapistID,
		Start:         a.StartTime,
		End:           a.EndTime,
		Status:        string(a.Status),
		Type:          string(a.Type),
		SeriesID:      a.SeriesID,
		ValueCents:    a.ValueCents,
		PaymentStatus: string(a.PaymentStatus),
	}
}

type StatusChangeResponse struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Reason    string    `json:"reason,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	ChangedBy string    `json:"changed_by,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	PatientName   string                 `json:"patient_name,omitempty"`
	TherapistName string                 `json:"therapist_name,omitempty"`
	History       []StatusChangeResponse `json:"history"`
}

type SkippedOccurrenceResponse struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	ConflictIDs []string  `json:"conflict_ids,omitempty"`
	Cause       string    `json:"cause"`
}

type SeriesResponse struct {
	SeriesID uuid.UUID                   `json:"series_id"`
	Booked   []AppointmentResponse       `json:"booked"`
	Skipped  []SkippedOccurrenceResponse `json:"skipped"`
}
