package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agendo/internal/availability"
	"agendo/internal/database"
	"agendo/internal/domain"
	"agendo/internal/events"
	"agendo/internal/metrics"
	"agendo/internal/models"
	"agendo/internal/payment"

	"github.com/rs/zerolog"
)

// webhookDedupTTL bounds how long a processed notification ID is
// remembered. Gateways stop retrying well before this.
const webhookDedupTTL = 48 * time.Hour

// BookingService orchestrates availability, holds, finalization and
// the payment webhook. Conflict resolution itself lives in the store's
// transactions; this layer validates, composes and fans out
// side effects.
type BookingService struct {
	store    domain.Store
	shared   domain.SharedState
	gateway  payment.Gateway
	eventBus domain.EventPublisher
	notifier domain.Notifier
	sheets   domain.SheetsWriter
	worker   domain.TaskWorker
	logger   *zerolog.Logger
}

// Deps bundles the service's collaborators. Gateway, Notifier, Sheets
// and Worker may be nil; the corresponding side effects are skipped.
type Deps struct {
	Store    domain.Store
	Shared   domain.SharedState
	Gateway  payment.Gateway
	EventBus domain.EventPublisher
	Notifier domain.Notifier
	Sheets   domain.SheetsWriter
	Worker   domain.TaskWorker
	Logger   *zerolog.Logger
}

func NewBookingService(deps Deps) *BookingService {
	logger := deps.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BookingService{
		store:    deps.Store,
		shared:   deps.Shared,
		gateway:  deps.Gateway,
		eventBus: deps.EventBus,
		notifier: deps.Notifier,
		sheets:   deps.Sheets,
		worker:   deps.Worker,
		logger:   logger,
	}
}

// GetAvailableSlots computes bookable start times for a
// professional/service/date.
func (s *BookingService) GetAvailableSlots(ctx context.Context, professionalID, serviceID string, date time.Time) ([]availability.Slot, error) {
	pro, err := s.store.GetProfessional(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	svc, err := s.store.GetService(ctx, professionalID, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, database.ErrServiceInactive
	}

	loc := pro.Location()
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	now := time.Now().In(loc)

	snapshot, err := s.daySnapshot(ctx, pro, day, now)
	if err != nil {
		return nil, err
	}

	starts := availability.Slots(now, snapshot, svc.DurationMin, pro.Settings)
	slots := make([]availability.Slot, 0, len(starts))
	for _, start := range starts {
		slots = append(slots, availability.NewSlot(start, svc.DurationMin))
	}
	return slots, nil
}

func (s *BookingService) daySnapshot(ctx context.Context, pro *models.Professional, day time.Time, now time.Time) (availability.DaySnapshot, error) {
	var snapshot availability.DaySnapshot

	hours, err := s.store.GetWorkingHours(ctx, pro.ID, day.Weekday())
	if err != nil {
		return snapshot, err
	}
	exceptions, err := s.store.GetExceptions(ctx, pro.ID, day)
	if err != nil {
		return snapshot, err
	}
	appointments, err := s.store.ListBlockingAppointmentsByDay(ctx, pro.ID, day)
	if err != nil {
		return snapshot, err
	}
	reservations, err := s.store.ListActiveReservationsByDay(ctx, pro.ID, day, now)
	if err != nil {
		return snapshot, err
	}

	busy := make([]models.Interval, 0, len(appointments)+len(reservations))
	for _, a := range appointments {
		busy = append(busy, a.Window())
	}
	for _, r := range reservations {
		busy = append(busy, r.Window())
	}

	return availability.DaySnapshot{
		Date:        day,
		Hours:       *hours,
		Exceptions:  exceptions,
		Busy:        busy,
		BookedCount: len(appointments) + len(reservations),
	}, nil
}

// CreateReservation validates the request, places the hold and, when
// the gateway is wired, creates the checkout. A checkout failure does
// not roll the hold back: the hold self-expires and the client can
// retry.
func (s *BookingService) CreateReservation(ctx context.Context, req domain.ReservationRequest) (*domain.ReservationResult, error) {
	pro, svc, err := s.validateBooking(ctx, req.ProfessionalID, req.ServiceID, req.Date, req.StartMin, req.Client)
	if err != nil {
		metrics.IncReservation("rejected")
		return nil, err
	}

	res := &models.Reservation{
		ProfessionalID: pro.ID,
		ServiceID:      svc.ID,
		Date:           req.Date,
		StartMin:       req.StartMin,
		DurationMin:    svc.DurationMin,
		Client:         req.Client,
	}
	if err := s.store.CreateReservation(ctx, res, pro.Settings); err != nil {
		metrics.IncReservation(reservationOutcome(err))
		return nil, err
	}
	metrics.IncReservation("created")

	result := &domain.ReservationResult{Reservation: res}

	if s.gateway != nil {
		checkout, err := s.gateway.CreateCheckout(ctx, payment.CheckoutRequest{
			ReservationID: res.ID,
			Title:         fmt.Sprintf("%s - %s", pro.Name, svc.Name),
			AmountCents:   svc.PriceCents,
			Currency:      svc.Currency,
			PayerName:     req.Client.Name,
			PayerEmail:    req.Client.Email,
		})
		if err != nil {
			s.logger.Error().Err(err).Str("reservation_id", res.ID).
				Msg("Checkout creation failed, hold will self-expire")
			return nil, fmt.Errorf("failed to start checkout: %w", err)
		}
		if err := s.store.SetReservationGatewayRef(ctx, res.ID, checkout.ID); err != nil {
			s.logger.Error().Err(err).Str("reservation_id", res.ID).
				Msg("Failed to record gateway ref")
		}
		res.GatewayRef = checkout.ID
		result.CheckoutURL = checkout.CheckoutURL
	}

	s.publishEvent(events.EventReservationCreated, eventPayload(res))
	return result, nil
}

func reservationOutcome(err error) string {
	switch {
	case errors.Is(err, database.ErrSlotTaken):
		return "conflict"
	case errors.Is(err, database.ErrDayFull):
		return "day_full"
	default:
		return "error"
	}
}

// validateBooking loads the professional and service and checks the
// requested start against the generated slot set.
func (s *BookingService) validateBooking(ctx context.Context, professionalID, serviceID string, date time.Time, startMin int, client models.ClientInfo) (*models.Professional, *models.Service, error) {
	if client.Name == "" || client.Phone == "" {
		return nil, nil, database.ErrInvalidClient
	}

	pro, err := s.store.GetProfessional(ctx, professionalID)
	if err != nil {
		return nil, nil, err
	}
	svc, err := s.store.GetService(ctx, professionalID, serviceID)
	if err != nil {
		return nil, nil, err
	}
	if !svc.Active {
		return nil, nil, database.ErrServiceInactive
	}

	loc := pro.Location()
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	now := time.Now().In(loc)

	if day.AddDate(0, 0, 1).Before(now) {
		return nil, nil, database.ErrPastDate
	}
	if pro.Settings.MaxNoticeDays > 0 && day.After(now.AddDate(0, 0, pro.Settings.MaxNoticeDays)) {
		return nil, nil, database.ErrDateTooFar
	}

	snapshot, err := s.daySnapshot(ctx, pro, day, now)
	if err != nil {
		return nil, nil, err
	}
	starts := availability.Slots(now, snapshot, svc.DurationMin, pro.Settings)
	for _, start := range starts {
		if start == startMin {
			return pro, svc, nil
		}
	}
	return nil, nil, database.ErrSlotUnavailable
}

// Finalize promotes a hold into an appointment. Safe to call more than
// once for the same reservation.
func (s *BookingService) Finalize(ctx context.Context, professionalID, reservationID, paymentStatus string) (*models.Appointment, error) {
	res, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		metrics.IncFinalize("error")
		return nil, err
	}
	if professionalID != "" && res.ProfessionalID != professionalID {
		metrics.IncFinalize("error")
		return nil, database.ErrReservationNotFound
	}

	pro, err := s.store.GetProfessional(ctx, res.ProfessionalID)
	if err != nil {
		metrics.IncFinalize("error")
		return nil, err
	}

	if paymentStatus == "" {
		paymentStatus = models.PaymentPending
	}

	alreadyUsed := res.Used
	apptID, err := s.store.FinalizeReservation(ctx, reservationID, paymentStatus, pro.Settings)
	if err != nil {
		metrics.IncFinalize(finalizeOutcome(err))
		if errors.Is(err, database.ErrSlotTaken) {
			s.logger.Error().Str("reservation_id", reservationID).
				Msg("Paid reservation lost its window, needs manual reconciliation")
		}
		return nil, err
	}

	appt, err := s.store.GetAppointment(ctx, res.ProfessionalID, apptID)
	if err != nil {
		metrics.IncFinalize("error")
		return nil, err
	}

	if alreadyUsed {
		metrics.IncFinalize("idempotent")
		return appt, nil
	}
	metrics.IncFinalize("finalized")

	svc, svcErr := s.store.GetService(ctx, res.ProfessionalID, res.ServiceID)
	if svcErr != nil {
		svc = nil
	}
	s.publishEvent(events.EventReservationFinalized, eventPayloadAppt(appt, res.ID))
	s.fanOutAppointment(pro, appt, svc)
	return appt, nil
}

func finalizeOutcome(err error) string {
	switch {
	case errors.Is(err, database.ErrReservationExpired):
		return "expired"
	case errors.Is(err, database.ErrSlotTaken):
		return "conflict"
	default:
		return "error"
	}
}

// CreateAppointment books directly, without a hold. Used for bookings
// that pay on site.
func (s *BookingService) CreateAppointment(ctx context.Context, req domain.AppointmentRequest) (*models.Appointment, error) {
	pro, svc, err := s.validateBooking(ctx, req.ProfessionalID, req.ServiceID, req.Date, req.StartMin, req.Client)
	if err != nil {
		return nil, err
	}

	appt := &models.Appointment{
		ProfessionalID: pro.ID,
		ServiceID:      svc.ID,
		Date:           req.Date,
		StartMin:       req.StartMin,
		DurationMin:    svc.DurationMin,
		Client:         req.Client,
		PaymentStatus:  req.PaymentStatus,
	}
	if err := s.store.CreateAppointment(ctx, appt, pro.Settings); err != nil {
		return nil, err
	}

	s.publishEvent(events.EventAppointmentCreated, eventPayloadAppt(appt, ""))
	s.fanOutAppointment(pro, appt, svc)
	return appt, nil
}

func (s *BookingService) GetAppointment(ctx context.Context, professionalID, id string) (*models.Appointment, error) {
	return s.store.GetAppointment(ctx, professionalID, id)
}

func (s *BookingService) CancelAppointment(ctx context.Context, professionalID, id string) error {
	appt, err := s.store.GetAppointment(ctx, professionalID, id)
	if err != nil {
		return err
	}
	if err := s.store.CancelAppointment(ctx, professionalID, id); err != nil {
		return err
	}
	appt.Status = models.StatusCanceled

	s.publishEvent(events.EventAppointmentCanceled, eventPayloadAppt(appt, ""))

	if s.notifier != nil && s.worker != nil {
		pro, proErr := s.store.GetProfessional(ctx, professionalID)
		if proErr == nil && pro.NotifyChatID != 0 {
			chatID := pro.NotifyChatID
			s.worker.Enqueue(func(taskCtx context.Context) error {
				return s.notifier.NotifyCancellation(taskCtx, chatID, appt)
			})
		}
	}
	return nil
}

func (s *BookingService) ListAppointments(ctx context.Context, professionalID string, from, to time.Time) ([]*models.Appointment, error) {
	if _, err := s.store.GetProfessional(ctx, professionalID); err != nil {
		return nil, err
	}
	return s.store.ListAppointmentsByRange(ctx, professionalID, from, to)
}

// HandleGatewayNotification processes a payment webhook: dedup by
// notification ID, query the gateway for the payment, correlate to the
// reservation via the external reference and finalize when approved.
// Errors are returned for logging; the HTTP layer always acks. A
// processing failure drops the dedup mark again so the gateway's retry
// of the same notification gets another attempt.
func (s *BookingService) HandleGatewayNotification(ctx context.Context, notificationID, paymentID string) error {
	if s.gateway == nil {
		metrics.IncWebhook("ignored")
		return nil
	}

	marked := false
	if notificationID != "" && s.shared != nil {
		first, err := s.shared.MarkProcessed(ctx, notificationID, webhookDedupTTL)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Webhook dedup unavailable, processing anyway")
		} else if !first {
			metrics.IncWebhook("duplicate")
			return nil
		} else {
			marked = true
		}
	}

	if err := s.processGatewayPayment(ctx, paymentID); err != nil {
		if marked {
			if clearErr := s.shared.ClearProcessed(ctx, notificationID); clearErr != nil {
				s.logger.Warn().Err(clearErr).Str("notification_id", notificationID).
					Msg("Failed to clear webhook dedup mark")
			}
		}
		return err
	}
	return nil
}

func (s *BookingService) processGatewayPayment(ctx context.Context, paymentID string) error {
	info, err := s.gateway.QueryPayment(ctx, paymentID)
	if err != nil {
		metrics.IncWebhook("error")
		return fmt.Errorf("failed to query payment %s: %w", paymentID, err)
	}
	if info.ExternalReference == "" {
		metrics.IncWebhook("ignored")
		return nil
	}

	res, err := s.store.GetReservation(ctx, info.ExternalReference)
	if err != nil {
		metrics.IncWebhook("error")
		return fmt.Errorf("no reservation for payment %s: %w", paymentID, err)
	}

	s.publishEvent(events.EventPaymentReceived, events.BookingEventPayload{
		ProfessionalID: res.ProfessionalID,
		ReservationID:  res.ID,
		Date:           res.Date.Format(models.DateLayout),
		StartMin:       res.StartMin,
		DurationMin:    res.DurationMin,
		PaymentStatus:  info.Status,
		OccurredAt:     time.Now(),
	})

	switch {
	case info.Approved():
		if _, err := s.Finalize(ctx, res.ProfessionalID, res.ID, models.PaymentApproved); err != nil {
			metrics.IncWebhook("error")
			return fmt.Errorf("failed to finalize reservation %s: %w", res.ID, err)
		}
	case info.Status == payment.StatusRejected || info.Status == payment.StatusCancelled:
		if err := s.store.MarkReservationPaymentStatus(ctx, res.ID, models.PaymentFailed); err != nil {
			s.logger.Warn().Err(err).Str("reservation_id", res.ID).
				Msg("Failed to record failed payment")
		}
	default:
		// pending / in_process: nothing to do yet, the gateway will
		// notify again on the terminal state.
	}

	metrics.IncWebhook("processed")
	return nil
}

// RunCleanup purges long-expired holds on an interval until ctx ends.
func (s *BookingService) RunCleanup(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := s.store.PurgeExpiredReservations(ctx, retention)
			if err != nil {
				s.logger.Error().Err(err).Msg("Reservation cleanup failed")
				continue
			}
			if purged > 0 {
				s.logger.Info().Int64("purged", purged).Msg("Purged expired reservations")
			}
		}
	}
}

// fanOutAppointment schedules notification and sheet mirroring for a
// new appointment.
func (s *BookingService) fanOutAppointment(pro *models.Professional, appt *models.Appointment, svc *models.Service) {
	if s.worker == nil {
		return
	}
	if s.notifier != nil && pro.NotifyChatID != 0 {
		chatID := pro.NotifyChatID
		s.worker.Enqueue(func(taskCtx context.Context) error {
			return s.notifier.NotifyAppointment(taskCtx, chatID, appt, svc)
		})
	}
	if s.sheets != nil && pro.SpreadsheetID != "" {
		spreadsheetID := pro.SpreadsheetID
		s.worker.Enqueue(func(taskCtx context.Context) error {
			return s.sheets.AppendAppointment(taskCtx, spreadsheetID, appt, svc)
		})
	}
}

func (s *BookingService) publishEvent(eventType string, payload events.BookingEventPayload) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("Failed to publish event")
	}
}

func eventPayload(res *models.Reservation) events.BookingEventPayload {
	return events.BookingEventPayload{
		ProfessionalID: res.ProfessionalID,
		ServiceID:      res.ServiceID,
		ReservationID:  res.ID,
		ClientName:     res.Client.Name,
		ClientPhone:    res.Client.Phone,
		Date:           res.Date.Format(models.DateLayout),
		StartMin:       res.StartMin,
		DurationMin:    res.DurationMin,
		PaymentStatus:  res.PaymentStatus,
		OccurredAt:     time.Now(),
	}
}

func eventPayloadAppt(appt *models.Appointment, reservationID string) events.BookingEventPayload {
	return events.BookingEventPayload{
		ProfessionalID: appt.ProfessionalID,
		ServiceID:      appt.ServiceID,
		ReservationID:  reservationID,
		AppointmentID:  appt.ID,
		ClientName:     appt.Client.Name,
		ClientPhone:    appt.Client.Phone,
		Date:           appt.Date.Format(models.DateLayout),
		StartMin:       appt.StartMin,
		DurationMin:    appt.DurationMin,
		Status:         appt.Status,
		PaymentStatus:  appt.PaymentStatus,
		OccurredAt:     time.Now(),
	}
}
