package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanTherapist(row pgx.Row) (*Therapist, error) {
	var t Therapist
	var specialty *string

	err := row.Scan(
		&t.ID,
		&t.Name,
		&specialty,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTherapistNotFound
		}
		return nil, err
	}

	t.Specialty = specialty
	return &t, nil
}

const appointmentColumns = `id, patient_id, therapist_id, start_time, end_time,
	status, type, series_id, value_cents, payment_status, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var seriesID *uuid.UUID

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.TherapistID,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.Type,
		&seriesID,
		&a.ValueCents,
		&a.PaymentStatus,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.SeriesID = seriesID
	return &a, nil
}

func scanStatusChange(row pgx.Row) (*StatusChange, error) {
	var rec StatusChange

	err := row.Scan(
		&rec.ID,
		&rec.AppointmentID,
		&rec.From,
		&rec.To,
		&rec.Reason,
		&rec.Notes,
		&rec.ChangedBy,
		&rec.ChangedAt,
	)
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetTherapistByID(ctx context.Context, id uuid.UUID) (*Therapist, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM therapists
		WHERE id = $1
	`, id)
	return scanTherapist(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	appt, err := r.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &AppointmentDetail{Appointment: *appt}

	if p, err := r.GetPatientByID(ctx, appt.PatientID); err == nil {
		detail.Patient = p
	} else if !errors.Is(err, ErrPatientNotFound) {
		return nil, err
	}

	if t, err := r.GetTherapistByID(ctx, appt.TherapistID); err == nil {
		detail.Therapist = t
	} else if !errors.Is(err, ErrTherapistNotFound) {
		return nil, err
	}

	history, err := r.ListStatusChanges(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.History = history

	return detail, nil
}

func (r *PgRepository) ListAppointmentsByTherapist(ctx context.Context, therapistID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE therapist_id = $1
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`, therapistID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	id := appt.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments
			(id, patient_id, therapist_id, start_time, end_time,
			 status, type, series_id, value_cents, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, appt.PatientID, appt.TherapistID, appt.StartTime, appt.EndTime,
		appt.Status, appt.Type, appt.SeriesID, appt.ValueCents, appt.PaymentStatus)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentInterval(ctx context.Context, id uuid.UUID, start, end time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = $2,
		    end_time = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, id, start, end)

	return scanAppointment(row)
}

// ApplyStatusChange runs the status update, the optional interval update
// and the history insert inside one transaction, so a failure partway
// through rolls the whole transition back. The status update is a
// compare-and-set on rec.From; a stale From reads back as not found.
func (r *PgRepository) ApplyStatusChange(ctx context.Context, rec StatusChange, interval *Interval) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin status change tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, rec.AppointmentID, rec.To, rec.From)
	appt, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	if interval != nil {
		row = tx.QueryRow(ctx, `
			UPDATE appointments
			SET start_time = $2,
			    end_time = $3,
			    updated_at = now()
			WHERE id = $1
			RETURNING `+appointmentColumns+`
		`, rec.AppointmentID, interval.Start, interval.End)
		appt, err = scanAppointment(row)
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO status_changes
			(appointment_id, from_status, to_status, reason, notes, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
	`, rec.AppointmentID, rec.From, rec.To, rec.Reason, rec.Notes, rec.ChangedBy, nullableTime(rec.ChangedAt))
	if err != nil {
		return nil, fmt.Errorf("insert status change: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit status change tx: %w", err)
	}
	return appt, nil
}

func (r *PgRepository) ListStatusChanges(ctx context.Context, appointmentID uuid.UUID) ([]StatusChange, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, from_status, to_status, reason, notes, changed_by, changed_at
		FROM status_changes
		WHERE appointment_id = $1
		ORDER BY id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []StatusChange
	for rows.Next() {
		rec, err := scanStatusChange(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
