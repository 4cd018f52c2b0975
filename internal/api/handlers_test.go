package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/physioflow/clinic-scheduler/internal/appointment"
	"github.com/physioflow/clinic-scheduler/internal/config"
	redisclient "github.com/physioflow/clinic-scheduler/internal/redis"
)

type noopNotifier struct{}

func (noopNotifier) StatusChanged(context.Context, *appointment.Appointment, appointment.StatusChange) error {
	return nil
}

type testServer struct {
	srv       *httptest.Server
	patient   uuid.UUID
	therapist uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.Config{
		OpenHour:        7,
		CloseHour:       19,
		SnapGranularity: 15 * time.Minute,
		MinDuration:     15 * time.Minute,
	}

	repo := appointment.NewMemoryRepository()
	patient := uuid.New()
	therapist := uuid.New()
	repo.PutPatient(appointment.Patient{ID: patient, Name: "Ana Souza"})
	repo.PutTherapist(appointment.Therapist{ID: therapist, Name: "Dr. Lima"})

	svc := appointment.NewService(repo, redisclient.NoopLocker{}, cfg, noopNotifier{}, zerolog.Nop())

	router := NewRouter(RouterConfig{
		Service: svc,
		Logger:  zerolog.Nop(),
		Env:     "test",
		Version: "test",
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, patient: patient, therapist: therapist}
}

func (ts *testServer) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.srv.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (ts *testServer) bookAt(t *testing.T, start, end time.Time) AppointmentResponse {
	t.Helper()
	resp := ts.post(t, "/appointments", BookAppointmentRequest{
		PatientID:   ts.patient.String(),
		TherapistID: ts.therapist.String(),
		Start:       start,
		End:         end,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[AppointmentResponse](t, resp)
}

func mondayAt(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}

func TestBookAppointmentEndpoint(t *testing.T) {
	ts := newTestServer(t)

	booked := ts.bookAt(t, mondayAt(9, 0), mondayAt(10, 0))
	assert.Equal(t, "scheduled", booked.Status)

	t.Run("conflict returns 409 with ids", func(t *testing.T) {
		resp := ts.post(t, "/appointments", BookAppointmentRequest{
			PatientID:   ts.patient.String(),
			TherapistID: ts.therapist.String(),
			Start:       mondayAt(9, 30),
			End:         mondayAt(10, 30),
		})
		require.Equal(t, http.StatusConflict, resp.StatusCode)

		errResp := decode[ErrorResponse](t, resp)
		assert.Equal(t, "scheduling_conflict", errResp.Error)
		assert.Equal(t, []string{booked.ID.String()}, errResp.ConflictIDs)
	})

	t.Run("out of hours returns 422", func(t *testing.T) {
		resp := ts.post(t, "/appointments", BookAppointmentRequest{
			PatientID:   ts.patient.String(),
			TherapistID: ts.therapist.String(),
			Start:       mondayAt(19, 30),
			End:         mondayAt(20, 30),
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("bad uuid returns 400", func(t *testing.T) {
		resp := ts.post(t, "/appointments", BookAppointmentRequest{
			PatientID:   "not-a-uuid",
			TherapistID: ts.therapist.String(),
			Start:       mondayAt(11, 0),
			End:         mondayAt(12, 0),
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestTransitionEndpoint(t *testing.T) {
	ts := newTestServer(t)
	booked := ts.bookAt(t, mondayAt(9, 0), mondayAt(10, 0))

	t.Run("confirm succeeds", func(t *testing.T) {
		resp := ts.post(t, fmt.Sprintf("/appointments/%s/status", booked.ID), TransitionRequest{
			To: "confirmed", ChangedBy: "reception",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		rec := decode[StatusChangeResponse](t, resp)
		assert.Equal(t, "scheduled", rec.From)
		assert.Equal(t, "confirmed", rec.To)
	})

	t.Run("illegal transition returns 409", func(t *testing.T) {
		resp := ts.post(t, fmt.Sprintf("/appointments/%s/status", booked.ID), TransitionRequest{
			To: "confirmed",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("cancel without reason returns 422", func(t *testing.T) {
		resp := ts.post(t, fmt.Sprintf("/appointments/%s/status", booked.ID), TransitionRequest{
			To: "cancelled",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("unknown status returns 400", func(t *testing.T) {
		resp := ts.post(t, fmt.Sprintf("/appointments/%s/status", booked.ID), TransitionRequest{
			To: "archived",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRescheduleEndpoint(t *testing.T) {
	ts := newTestServer(t)
	booked := ts.bookAt(t, mondayAt(9, 0), mondayAt(10, 0))

	resp := ts.post(t, fmt.Sprintf("/appointments/%s/reschedule", booked.ID), RescheduleRequest{
		Start:  mondayAt(11, 0),
		End:    mondayAt(12, 0),
		Reason: "Patient request",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	moved := decode[AppointmentResponse](t, resp)
	assert.Equal(t, "scheduled", moved.Status)
	assert.True(t, moved.Start.Equal(mondayAt(11, 0)))

	t.Run("history shows both hops", func(t *testing.T) {
		resp, err := http.Get(ts.srv.URL + "/appointments/" + booked.ID.String())
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		detail := decode[AppointmentDetailResponse](t, resp)
		require.Len(t, detail.History, 2)
		assert.Equal(t, "rescheduled", detail.History[0].To)
		assert.Equal(t, "scheduled", detail.History[1].To)
	})
}

func TestBookSeriesEndpoint(t *testing.T) {
	ts := newTestServer(t)

	// block the first Thursday so the series partially succeeds
	blocker := ts.bookAt(t, mondayAt(9, 0).AddDate(0, 0, 3), mondayAt(10, 0).AddDate(0, 0, 3))

	resp := ts.post(t, "/appointments/series", BookSeriesRequest{
		BookAppointmentRequest: BookAppointmentRequest{
			PatientID:   ts.patient.String(),
			TherapistID: ts.therapist.String(),
			Start:       mondayAt(9, 0),
			End:         mondayAt(10, 0),
		},
		Days:  []int{int(time.Tuesday), int(time.Thursday)},
		Until: mondayAt(9, 0).AddDate(0, 0, 14),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	series := decode[SeriesResponse](t, resp)
	assert.Len(t, series.Booked, 4)
	require.Len(t, series.Skipped, 1)
	assert.Equal(t, []string{blocker.ID.String()}, series.Skipped[0].ConflictIDs)
}

func TestListAppointmentsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.bookAt(t, mondayAt(9, 0), mondayAt(10, 0))
	ts.bookAt(t, mondayAt(11, 0), mondayAt(12, 0))

	url := fmt.Sprintf("%s/appointments?therapist_id=%s&from=%s&to=%s",
		ts.srv.URL, ts.therapist,
		mondayAt(0, 0).Format(time.RFC3339),
		mondayAt(0, 0).AddDate(0, 0, 1).Format(time.RFC3339))

	resp, err := http.Get(url)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	appts := decode[[]AppointmentResponse](t, resp)
	assert.Len(t, appts, 2)
}
