package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/physioflow/clinic-scheduler/internal/appointment"
	"github.com/physioflow/clinic-scheduler/internal/recurrence"
)

func bookAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		bookingReq, ok := parseBookingRequest(w, req)
		if !ok {
			return
		}

		appt, err := svc.BookAppointment(r.Context(), bookingReq)
		if err != nil {
			bookingsTotal.WithLabelValues(bookingOutcome(err)).Inc()
			handleSchedulingError(w, err)
			return
		}

		bookingsTotal.WithLabelValues("booked").Inc()
		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

func bookSeriesHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookSeriesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		bookingReq, ok := parseBookingRequest(w, req.BookAppointmentRequest)
		if !ok {
			return
		}

		rule := recurrence.Rule{Until: req.Until}
		for _, d := range req.Days {
			if d < 0 || d > 6 {
				writeError(w, http.StatusBadRequest, "invalid_weekday", "days must be 0 (Sunday) through 6 (Saturday)")
				return
			}
			rule.Days = append(rule.Days, time.Weekday(d))
		}

		result, err := svc.BookSeries(r.Context(), bookingReq, rule)
		if err != nil {
			bookingsTotal.WithLabelValues(bookingOutcome(err)).Inc()
			handleSchedulingError(w, err)
			return
		}

		resp := SeriesResponse{
			SeriesID: result.SeriesID,
			Booked:   make([]AppointmentResponse, 0, len(result.Booked)),
			Skipped:  make([]SkippedOccurrenceResponse, 0, len(result.Skipped)),
		}
		for _, a := range result.Booked {
			bookingsTotal.WithLabelValues("booked").Inc()
			resp.Booked = append(resp.Booked, toAppointmentResponse(a))
		}
		for _, s := range result.Skipped {
			if len(s.ConflictIDs) > 0 {
				bookingsTotal.WithLabelValues("conflict").Inc()
			} else {
				bookingsTotal.WithLabelValues("rejected").Inc()
			}
			occ := SkippedOccurrenceResponse{Start: s.Start, End: s.End, Cause: s.Cause}
			for _, id := range s.ConflictIDs {
				occ.ConflictIDs = append(occ.ConflictIDs, id.String())
			}
			resp.Skipped = append(resp.Skipped, occ)
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		therapistID, err := uuid.Parse(r.URL.Query().Get("therapist_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_therapist_id", "therapist_id must be a valid UUID")
			return
		}

		from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "from must be RFC 3339")
			return
		}
		to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", "to must be RFC 3339")
			return
		}

		appts, err := svc.ListAppointments(r.Context(), therapistID, from, to)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for _, a := range appts {
			resp = append(resp, toAppointmentResponse(a))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		detail, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			if errors.Is(err, appointment.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := AppointmentDetailResponse{
			AppointmentResponse: toAppointmentResponse(detail.Appointment),
			History:             make([]StatusChangeResponse, 0, len(detail.History)),
		}
		if detail.Patient != nil {
			resp.PatientName = detail.Patient.Name
		}
		if detail.Therapist != nil {
			resp.TherapistName = detail.Therapist.Name
		}
		for _, rec := range detail.History {
			resp.History = append(resp.History, StatusChangeResponse{
				From:      string(rec.From),
				To:        string(rec.To),
				Reason:    rec.Reason,
				Notes:     rec.Notes,
				ChangedBy: rec.ChangedBy,
				ChangedAt: rec.ChangedAt,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func transitionHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		to := appointment.Status(req.To)
		if !to.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_status", "unknown target status")
			return
		}

		transReq := appointment.TransitionRequest{
			To:        to,
			Reason:    req.Reason,
			Notes:     req.Notes,
			ChangedBy: req.ChangedBy,
		}
		if to == appointment.StatusRescheduled {
			if req.NewStart == nil || req.NewEnd == nil {
				writeError(w, http.StatusBadRequest, "missing_interval", "rescheduling requires new_start and new_end")
				return
			}
			transReq.NewStart = *req.NewStart
			transReq.NewEnd = *req.NewEnd
		}

		rec, err := svc.ApplyTransition(r.Context(), id, transReq)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		transitionsTotal.WithLabelValues(string(rec.To)).Inc()
		writeJSON(w, http.StatusOK, StatusChangeResponse{
			From:      string(rec.From),
			To:        string(rec.To),
			Reason:    rec.Reason,
			Notes:     rec.Notes,
			ChangedBy: rec.ChangedBy,
			ChangedAt: rec.ChangedAt,
		})
	}
}

func rescheduleHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.Reschedule(r.Context(), id, req.Start, req.End, req.Reason, req.ChangedBy)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		transitionsTotal.WithLabelValues(string(appointment.StatusRescheduled)).Inc()
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

// handleSchedulingError maps engine errors onto HTTP codes. Conflicts
// carry the blocking appointment ids so the operator sees all of them.
func handleSchedulingError(w http.ResponseWriter, err error) {
	var conflict *appointment.ConflictError

	switch {
	case errors.As(err, &conflict):
		resp := ErrorResponse{Error: "scheduling_conflict", Details: err.Error()}
		for _, id := range conflict.ConflictingIDs {
			resp.ConflictIDs = append(resp.ConflictIDs, id.String())
		}
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrTherapistNotFound):
		writeError(w, http.StatusNotFound, "therapist_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrReasonRequired):
		writeError(w, http.StatusUnprocessableEntity, "reason_required", err.Error())
	case errors.Is(err, appointment.ErrOutOfBusinessHours):
		writeError(w, http.StatusUnprocessableEntity, "out_of_business_hours", err.Error())
	case errors.Is(err, appointment.ErrMinimumDuration):
		writeError(w, http.StatusUnprocessableEntity, "below_minimum_duration", err.Error())
	case errors.Is(err, appointment.ErrInvalidInterval):
		writeError(w, http.StatusUnprocessableEntity, "invalid_interval", err.Error())
	case errors.Is(err, appointment.ErrEditInProgress):
		writeError(w, http.StatusConflict, "edit_in_progress", err.Error())
	case errors.Is(err, recurrence.ErrNoDays),
		errors.Is(err, recurrence.ErrUntilTooEarly):
		writeError(w, http.StatusBadRequest, "invalid_recurrence_rule", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func bookingOutcome(err error) string {
	var conflict *appointment.ConflictError
	switch {
	case errors.As(err, &conflict):
		return "conflict"
	case errors.Is(err, appointment.ErrOutOfBusinessHours),
		errors.Is(err, appointment.ErrMinimumDuration),
		errors.Is(err, appointment.ErrInvalidInterval):
		return "rejected"
	default:
		return "error"
	}
}

func parseBookingRequest(w http.ResponseWriter, req BookAppointmentRequest) (appointment.BookingRequest, bool) {
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
		return appointment.BookingRequest{}, false
	}

	therapistID, err := uuid.Parse(req.TherapistID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_therapist_id", "therapist_id must be a valid UUID")
		return appointment.BookingRequest{}, false
	}

	return appointment.BookingRequest{
		PatientID:   patientID,
		TherapistID: therapistID,
		Start:       req.Start,
		End:         req.End,
		Type:        appointment.Type(req.Type),
		ValueCents:  req.ValueCents,
	}, true
}
