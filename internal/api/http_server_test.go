package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agendo/internal/config"
	"agendo/internal/database"
	"agendo/internal/models"
	"agendo/internal/repository"
	"agendo/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStack struct {
	server *HTTPServer
	db     *database.DB
	date   time.Time
}

func newTestStack(t *testing.T, cfg config.APIConfig) *testStack {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	date := time.Now().UTC().AddDate(0, 0, 7)
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	pro := &models.Professional{
		ID:       "pro-1",
		Name:     "Dana Lima",
		Timezone: "UTC",
		Settings: models.AdvancedSettings{MaxNoticeDays: 30},
	}
	require.NoError(t, db.UpsertProfessional(ctx, pro))
	require.NoError(t, db.UpsertService(ctx, &models.Service{
		ID:             "svc-1",
		ProfessionalID: "pro-1",
		Name:           "Consultation",
		DurationMin:    60,
		PriceCents:     15000,
		Currency:       "BRL",
		Active:         true,
	}))
	require.NoError(t, db.ReplaceWorkingHours(ctx, "pro-1", []models.WorkingHours{{
		Weekday:   date.Weekday(),
		Enabled:   true,
		Intervals: []models.Interval{{StartMin: 9 * 60, EndMin: 17 * 60}},
	}}))

	booker := service.NewBookingService(service.Deps{
		Store:  db,
		Shared: repository.NewMemorySharedState(),
		Logger: &logger,
	})

	server := NewHTTPServer(cfg, booker, db, repository.NewMemorySharedState(), &logger)
	return &testStack{server: server, db: db, date: date}
}

func openTestConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true, Port: 0},
	}
}

func (ts *testStack) serve(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(ts.server.server.Handler)
	t.Cleanup(srv.Close)
	return srv
}

func (ts *testStack) dateParam() string {
	return ts.date.Format(models.DateLayout)
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func getURL(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestGetSlots(t *testing.T) {
	stack := newTestStack(t, openTestConfig())
	srv := stack.serve(t)

	url := fmt.Sprintf("%s/api/v1/professionals/pro-1/slots?service_id=svc-1&date=%s",
		srv.URL, stack.dateParam())
	resp := getURL(t, url)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Date  string `json:"date"`
		Slots []struct {
			StartMin int    `json:"start_min"`
			Start    string `json:"start"`
		} `json:"slots"`
	}
	decodeBody(t, resp, &body)

	require.Equal(t, stack.dateParam(), body.Date)
	require.NotEmpty(t, body.Slots)
	assert.Equal(t, 540, body.Slots[0].StartMin)
	assert.Equal(t, "09:00", body.Slots[0].Start)
}

func TestGetSlots_MissingServiceID(t *testing.T) {
	stack := newTestStack(t, openTestConfig())
	srv := stack.serve(t)

	resp := getURL(t, fmt.Sprintf("%s/api/v1/professionals/pro-1/slots?date=%s",
		srv.URL, stack.dateParam()))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSlots_UnknownProfessional(t *testing.T) {
	stack := newTestStack(t, openTestConfig())
	srv := stack.serve(t)

	resp := getURL(t, fmt.Sprintf("%s/api/v1/professionals/nobody/slots?service_id=svc-1&date=%s",
		srv.URL, stack.dateParam()))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func reservationBody(date, start string) string {
	return fmt.Sprintf(`{
		"service_id": "svc-1",
		"date": %q,
		"start": %q,
		"client": {"name": "Ana", "phone": "+55 11 90000-0000"}
	}`, date, start)
}

func TestReservationLifecycle(t *testing.T) {
	stack := newTestStack(t, openTestConfig())
	srv := stack.serve(t)
	base := srv.URL + "/api/v1/professionals/pro-1"

	resp := postJSON(t, base+"/reservations", reservationBody(stack.dateParam(), "09:00"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ReservationID string `json:"reservation_id"`
		ExpiresAt     string `json:"expires_at"`
	}
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.ReservationID)
	expires, err := time.Parse(time.RFC3339, created.ExpiresAt)
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	// The held window disappears from the published slots.
	slotsResp := getURL(t, fmt.Sprintf("%s/slots?service_id=svc-1&date=%s", base, stack.dateParam()))
	require.Equal(t, http.StatusOK, slotsResp.StatusCode)
	var slots struct {
		Slots []struct {
			StartMin int `json:"start_min"`
		} `json:"slots"`
	}
	decodeBody(t, slotsResp, &slots)
	for _, s := range slots.Slots {
		assert.NotEqual(t, 540, s.StartMin)
	}

	finResp := postJSON(t, base+"/reservations/"+created.ReservationID+"/finalize",
		`{"payment_status": "approved"}`)
	require.Equal(t, http.StatusOK, finResp.StatusCode)

	var finalized struct {
		AppointmentID string `json:"appointment_id"`
		Status        string `json:"status"`
	}
	decodeBody(t, finResp, &finalized)
	require.NotEmpty(t, finalized.AppointmentID)
	assert.Equal(t, models.StatusConfirmed, finalized.Status)

	// Finalize is idempotent: replaying yields the same appointment.
	again := postJSON(t, base+"/reservations/"+created.ReservationID+"/finalize",
		`{"payment_status": "approved"}`)
	require.Equal(t, http.StatusOK, again.StatusCode)
	var replay struct {
		AppointmentID string `json:"appointment_id"`
	}
	decodeBody(t, again, &replay)
	assert.Equal(t, finalized.AppointmentID, replay.AppointmentID)
}

func TestReservationConflict(t *testing.T) {
	stack := newTestStack(t, openTestConfig())
	srv := stack.serve(t)
	url := srv.URL + "/api/v1/professionals/pro-1/reservations"

	first := postJSON(t, url, reservationBody(stack.dateParam(), "10:00"))
	require.Equal(t, http.StatusCreated, first.StatusCode)

	second := postJSON(t, url, reservationBody(stack.dateParam(), "10:00"))
	assert.Equal(t, http.StatusConflict, second.StatusCode)
}

func TestReservation_OffGridStart(t *testing.T) {
	stack := newTestStack(t, openTestConfig())
	srv := stack.serve(t)

	resp := postJSON(t, srv.URL+"/api/v1/professionals/pro-1/reservations",
		reservationBody(stack.dateParam(), "10:07"))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestReservation_InvalidJSON(t *testing.T) {
	stack := newTestStack(t, openTestConfig())
	srv := stack.serve(t)

	resp := postJSON(t, srv.URL+"/api/v1/professionals/pro-1/reservations", "not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFinalize_UnknownReservation(t *testing.T) {
	stack := newTestStack(t, openTestConfig())
	srv := stack.serve(t)

	resp := postJSON(t, srv.URL+"/api/v1/professionals/pro-1/reservations/missing/finalize",
		`{"payment_status": "approved"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAppointmentEndpoints(t *testing.T) {
	stack := newTestStack(t, openTestConfig())
	srv := stack.serve(t)
	base := srv.URL + "/api/v1/professionals/pro-1"

	body := fmt.Sprintf(`{
		"service_id": "svc-1",
		"date": %q,
		"start_min": 600,
		"client": {"name": "Bruno", "phone": "+55 11 91111-1111"}
	}`, stack.dateParam())
	resp := postJSON(t, base+"/appointments", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var appt models.Appointment
	decodeBody(t, resp, &appt)
	require.NotEmpty(t, appt.ID)
	assert.Equal(t, models.StatusScheduled, appt.Status)

	listResp := getURL(t, fmt.Sprintf("%s/appointments?from=%s&to=%s",
		base, stack.dateParam(), stack.dateParam()))
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	var list struct {
		Appointments []models.Appointment `json:"appointments"`
	}
	decodeBody(t, listResp, &list)
	require.Len(t, list.Appointments, 1)
	assert.Equal(t, appt.ID, list.Appointments[0].ID)

	getResp := getURL(t, base+"/appointments/"+appt.ID)
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	cancelResp := postJSON(t, base+"/appointments/"+appt.ID+"/cancel", "")
	require.Equal(t, http.StatusOK, cancelResp.StatusCode)

	afterCancel := getURL(t, base+"/appointments/"+appt.ID)
	require.Equal(t, http.StatusOK, afterCancel.StatusCode)
	var canceled models.Appointment
	decodeBody(t, afterCancel, &canceled)
	assert.Equal(t, models.StatusCanceled, canceled.Status)
}

func TestListAppointments_BadRange(t *testing.T) {
	stack := newTestStack(t, openTestConfig())
	srv := stack.serve(t)

	resp := getURL(t, fmt.Sprintf(
		"%s/api/v1/professionals/pro-1/appointments?from=%s&to=%s",
		srv.URL, stack.dateParam(), stack.date.AddDate(0, 0, -1).Format(models.DateLayout)))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportSchedule(t *testing.T) {
	stack := newTestStack(t, openTestConfig())
	srv := stack.serve(t)
	base := srv.URL + "/api/v1/professionals/pro-1"

	body := fmt.Sprintf(`{
		"service_id": "svc-1",
		"date": %q,
		"start_min": 540,
		"client": {"name": "Carla", "phone": "+55 11 92222-2222"}
	}`, stack.dateParam())
	created := postJSON(t, base+"/appointments", body)
	require.Equal(t, http.StatusCreated, created.StatusCode)

	resp := getURL(t, fmt.Sprintf("%s/schedule/export?from=%s&to=%s",
		base, stack.dateParam(), stack.dateParam()))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "schedule_")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestUnknownRoute(t *testing.T) {
	stack := newTestStack(t, openTestConfig())
	srv := stack.serve(t)

	resp := getURL(t, srv.URL+"/api/v1/professionals/pro-1/unknown")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	stack := newTestStack(t, openTestConfig())
	srv := stack.serve(t)

	resp := getURL(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebhookAlwaysAccepted(t *testing.T) {
	stack := newTestStack(t, openTestConfig())
	srv := stack.serve(t)

	t.Run("QueryForm", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/v1/payments/webhook?id=123&topic=payment", "")
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	})

	t.Run("JSONForm", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/v1/payments/webhook",
			`{"id": "n-1", "type": "payment", "data": {"id": "456"}}`)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	})

	t.Run("NoPaymentID", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/v1/payments/webhook", `{"type": "test"}`)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	})

	t.Run("WrongMethod", func(t *testing.T) {
		resp := getURL(t, srv.URL+"/api/v1/payments/webhook")
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}
