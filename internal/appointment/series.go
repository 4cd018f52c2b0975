package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/physioflow/clinic-scheduler/internal/recurrence"
	"github.com/physioflow/clinic-scheduler/internal/timeslot"
)

// SkippedOccurrence is one expansion date the series could not book,
// with the conflicting appointment ids when the cause was a conflict.
type SkippedOccurrence struct {
	Start       time.Time
	End         time.Time
	ConflictIDs []uuid.UUID
	Cause       string
}

// SeriesResult reports a partial-success series booking: every occurrence
// that landed and every one that was skipped, so the operator can decide
// what to do about the gaps.
type SeriesResult struct {
	SeriesID uuid.UUID
	Booked   []Appointment
	Skipped  []SkippedOccurrence
}

// BookSeries books the anchor request plus every weekly occurrence the
// rule expands to. Occurrences are booked one by one: a conflict or
// out-of-hours occurrence is skipped and reported, never failing the
// whole series. All booked appointments share one series id.
func (s *Service) BookSeries(ctx context.Context, req BookingRequest, rule recurrence.Rule) (*SeriesResult, error) {
	seriesID := uuid.New()
	req.SeriesID = &seriesID

	anchor, err := s.BookAppointment(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("book series anchor: %w", err)
	}

	result := &SeriesResult{
		SeriesID: seriesID,
		Booked:   []Appointment{*anchor},
	}

	candidates, err := recurrence.Expand(rule, timeslot.Candidate{
		TherapistID: anchor.TherapistID,
		Start:       anchor.StartTime,
		End:         anchor.EndTime,
	})
	if err != nil {
		return nil, err
	}

	for _, cand := range candidates {
		occReq := req
		occReq.Start = cand.Start
		occReq.End = cand.End

		appt, err := s.BookAppointment(ctx, occReq)
		if err != nil {
			skipped := SkippedOccurrence{Start: cand.Start, End: cand.End, Cause: err.Error()}
			var conflict *ConflictError
			if errors.As(err, &conflict) {
				skipped.ConflictIDs = conflict.ConflictingIDs
			} else if !errors.Is(err, ErrOutOfBusinessHours) {
				// validation failures are expected on individual
				// occurrences; anything else aborts the series
				return nil, fmt.Errorf("book series occurrence at %s: %w", cand.Start, err)
			}
			result.Skipped = append(result.Skipped, skipped)
			continue
		}
		result.Booked = append(result.Booked, *appt)
	}

	s.logger.Info().
		Str("series_id", seriesID.String()).
		Int("booked", len(result.Booked)).
		Int("skipped", len(result.Skipped)).
		Msg("series booked")

	return result, nil
}
