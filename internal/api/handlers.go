package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"agendo/internal/availability"
	"agendo/internal/domain"
	"agendo/internal/export"
	"agendo/internal/models"
)

// handleProfessionals routes /api/v1/professionals/{id}/... by path
// segments.
func (s *HTTPServer) handleProfessionals(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/v1/professionals/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	professionalID := segments[0]
	tail := segments[1:]

	switch {
	case matches(tail, "slots") && r.Method == http.MethodGet:
		s.handleGetSlots(w, r, professionalID)
	case matches(tail, "reservations") && r.Method == http.MethodPost:
		s.handleCreateReservation(w, r, professionalID)
	case matches(tail, "reservations", "*", "finalize") && r.Method == http.MethodPost:
		s.handleFinalize(w, r, professionalID, tail[1])
	case matches(tail, "appointments") && r.Method == http.MethodPost:
		s.handleCreateAppointment(w, r, professionalID)
	case matches(tail, "appointments") && r.Method == http.MethodGet:
		s.handleListAppointments(w, r, professionalID)
	case matches(tail, "appointments", "*") && r.Method == http.MethodGet:
		s.handleGetAppointment(w, r, professionalID, tail[1])
	case matches(tail, "appointments", "*", "cancel") && r.Method == http.MethodPost:
		s.handleCancelAppointment(w, r, professionalID, tail[1])
	case matches(tail, "schedule", "export") && r.Method == http.MethodGet:
		s.handleExportSchedule(w, r, professionalID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// matches compares path segments against a pattern where "*" accepts
// any non-empty segment.
func matches(segments []string, pattern ...string) bool {
	if len(segments) != len(pattern) {
		return false
	}
	for i, p := range pattern {
		if p == "*" {
			if segments[i] == "" {
				return false
			}
			continue
		}
		if segments[i] != p {
			return false
		}
	}
	return true
}

func parseDateParam(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", name)
	}
	date, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s; expected YYYY-MM-DD", name)
	}
	return date, nil
}

func (s *HTTPServer) handleGetSlots(w http.ResponseWriter, r *http.Request, professionalID string) {
	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	if serviceID == "" {
		writeError(w, http.StatusBadRequest, "service_id is required")
		return
	}
	date, err := parseDateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	slots, err := s.booker.GetAvailableSlots(r.Context(), professionalID, serviceID, date)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	if slots == nil {
		slots = []availability.Slot{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":  date.Format(models.DateLayout),
		"slots": slots,
	})
}

type reservationRequestBody struct {
	ServiceID string            `json:"service_id"`
	Date      string            `json:"date"`
	Start     string            `json:"start"`
	StartMin  *int              `json:"start_min"`
	Client    models.ClientInfo `json:"client"`
}

func (b *reservationRequestBody) startMinutes() (int, error) {
	if b.StartMin != nil {
		return *b.StartMin, nil
	}
	if b.Start == "" {
		return 0, fmt.Errorf("start or start_min is required")
	}
	return availability.ParseClock(b.Start)
}

func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request, professionalID string) {
	var body reservationRequestBody
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	date, err := time.Parse(models.DateLayout, body.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date; expected YYYY-MM-DD")
		return
	}
	startMin, err := body.startMinutes()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.booker.CreateReservation(r.Context(), domain.ReservationRequest{
		ProfessionalID: professionalID,
		ServiceID:      body.ServiceID,
		Date:           date,
		StartMin:       startMin,
		Client:         body.Client,
	})
	if err != nil {
		s.writeMappedError(w, err)
		return
	}

	resp := map[string]any{
		"reservation_id": result.Reservation.ID,
		"expires_at":     result.Reservation.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if result.CheckoutURL != "" {
		resp["checkout_url"] = result.CheckoutURL
	}
	writeJSON(w, http.StatusCreated, resp)
}

type finalizeRequestBody struct {
	PaymentStatus string `json:"payment_status"`
}

func (s *HTTPServer) handleFinalize(w http.ResponseWriter, r *http.Request, professionalID, reservationID string) {
	var body finalizeRequestBody
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	appt, err := s.booker.Finalize(r.Context(), professionalID, reservationID, body.PaymentStatus)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"appointment_id": appt.ID,
		"status":         appt.Status,
	})
}

type appointmentRequestBody struct {
	ServiceID     string            `json:"service_id"`
	Date          string            `json:"date"`
	Start         string            `json:"start"`
	StartMin      *int              `json:"start_min"`
	Client        models.ClientInfo `json:"client"`
	PaymentStatus string            `json:"payment_status"`
}

func (s *HTTPServer) handleCreateAppointment(w http.ResponseWriter, r *http.Request, professionalID string) {
	var body appointmentRequestBody
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	date, err := time.Parse(models.DateLayout, body.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date; expected YYYY-MM-DD")
		return
	}

	rb := reservationRequestBody{Start: body.Start, StartMin: body.StartMin}
	startMin, err := rb.startMinutes()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	appt, err := s.booker.CreateAppointment(r.Context(), domain.AppointmentRequest{
		ProfessionalID: professionalID,
		ServiceID:      body.ServiceID,
		Date:           date,
		StartMin:       startMin,
		Client:         body.Client,
		PaymentStatus:  body.PaymentStatus,
	})
	if err != nil {
		s.writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, appt)
}

func (s *HTTPServer) handleListAppointments(w http.ResponseWriter, r *http.Request, professionalID string) {
	from, err := parseDateParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not precede from")
		return
	}

	appointments, err := s.booker.ListAppointments(r.Context(), professionalID, from, to)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	if appointments == nil {
		appointments = []*models.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appointments})
}

func (s *HTTPServer) handleGetAppointment(w http.ResponseWriter, r *http.Request, professionalID, appointmentID string) {
	appt, err := s.booker.GetAppointment(r.Context(), professionalID, appointmentID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (s *HTTPServer) handleCancelAppointment(w http.ResponseWriter, r *http.Request, professionalID, appointmentID string) {
	if err := s.booker.CancelAppointment(r.Context(), professionalID, appointmentID); err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}

func (s *HTTPServer) handleExportSchedule(w http.ResponseWriter, r *http.Request, professionalID string) {
	from, err := parseDateParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pro, err := s.store.GetProfessional(r.Context(), professionalID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	appointments, err := s.booker.ListAppointments(r.Context(), professionalID, from, to)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}

	filename := fmt.Sprintf("schedule_%s_%s.xlsx",
		from.Format(models.DateLayout), to.Format(models.DateLayout))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := export.WriteSchedule(w, pro, appointments, from, to); err != nil {
		s.logger.Error().Err(err).Msg("Schedule export failed")
	}
}
