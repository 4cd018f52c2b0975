package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/physioflow/clinic-scheduler/internal/appointment"
	"github.com/physioflow/clinic-scheduler/internal/db"
	"github.com/physioflow/clinic-scheduler/internal/timeslot"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

func main() {
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	therapists, err := seedTherapists(context.Background(), pool, 12)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed therapists")
	}
	patients, err := seedPatients(context.Background(), pool, 400)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedAppointments(context.Background(), pool, therapists, patients); err != nil {
		logger.Fatal().Err(err).Msg("seed appointments")
	}

	logger.Info().Msg("seed complete")
}

func seedTherapists(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	logger.Info().Int("count", count).Msg("seeding therapists")

	specialties := []string{
		"Orthopedic Physiotherapy",
		"Sports Rehabilitation",
		"Neurological Physiotherapy",
		"Pediatric Physiotherapy",
		"Geriatric Physiotherapy",
		"Pelvic Health",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO therapists (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	logger.Info().Msg("therapists seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	logger.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 100

	ids := make([]uuid.UUID, 0, count)
	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		logger.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}

	return ids, nil
}

// seedAppointments fills the next two weeks with non-overlapping sessions
// per therapist on the 15-minute grid, leaving gaps for manual booking.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, therapists, patients []uuid.UUID) error {
	logger.Info().Msg("seeding appointments")

	types := []appointment.Type{
		appointment.TypeEvaluation,
		appointment.TypeSession,
		appointment.TypeReturn,
		appointment.TypeGroup,
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	today := time.Now().Truncate(24 * time.Hour)
	total := 0
	for _, therapistID := range therapists {
		for day := 0; day < 14; day++ {
			date := today.AddDate(0, 0, day)
			if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
				continue
			}

			// walk the day hour by hour, booking roughly half the slots
			for hour := timeslot.DefaultOpenHour; hour < timeslot.DefaultCloseHour-1; hour++ {
				if gofakeit.Bool() {
					continue
				}

				start := time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, time.Local)
				durations := []time.Duration{30 * time.Minute, 45 * time.Minute, time.Hour}
				end := start.Add(durations[gofakeit.Number(0, len(durations)-1)])

				patientID := patients[gofakeit.Number(0, len(patients)-1)]
				apptType := types[gofakeit.Number(0, len(types)-1)]

				_, err := tx.Exec(ctx, `
					INSERT INTO appointments
						(id, patient_id, therapist_id, start_time, end_time,
						 status, type, series_id, value_cents, payment_status, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, 'scheduled', $6, NULL, $7, 'pending', now(), now())
				`, uuid.New(), patientID, therapistID, start, end, apptType,
					int64(gofakeit.Number(4000, 15000)))
				if err != nil {
					return err
				}
				total++
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info().Int("count", total).Msg("appointments seeded")
	return nil
}
