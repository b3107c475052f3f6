package domain

import (
	"context"
	"time"

	"agendo/internal/availability"
	"agendo/internal/models"
	"agendo/internal/payment"
)

// Store is the persistence surface the booking service depends on.
type Store interface {
	GetProfessional(ctx context.Context, id string) (*models.Professional, error)
	UpsertProfessional(ctx context.Context, p *models.Professional) error
	GetService(ctx context.Context, professionalID, serviceID string) (*models.Service, error)
	UpsertService(ctx context.Context, s *models.Service) error
	GetWorkingHours(ctx context.Context, professionalID string, weekday time.Weekday) (*models.WorkingHours, error)
	ReplaceWorkingHours(ctx context.Context, professionalID string, week []models.WorkingHours) error
	AddException(ctx context.Context, exc *models.AvailabilityException) error
	GetExceptions(ctx context.Context, professionalID string, date time.Time) ([]models.AvailabilityException, error)

	CreateReservation(ctx context.Context, res *models.Reservation, set models.AdvancedSettings) error
	GetReservation(ctx context.Context, id string) (*models.Reservation, error)
	GetReservationByGatewayRef(ctx context.Context, ref string) (*models.Reservation, error)
	SetReservationGatewayRef(ctx context.Context, id, ref string) error
	MarkReservationPaymentStatus(ctx context.Context, id, paymentStatus string) error
	FinalizeReservation(ctx context.Context, id string, paymentStatus string, set models.AdvancedSettings) (string, error)
	ListActiveReservationsByDay(ctx context.Context, professionalID string, date time.Time, now time.Time) ([]*models.Reservation, error)
	PurgeExpiredReservations(ctx context.Context, retention time.Duration) (int64, error)

	CreateAppointment(ctx context.Context, appt *models.Appointment, set models.AdvancedSettings) error
	GetAppointment(ctx context.Context, professionalID, id string) (*models.Appointment, error)
	CancelAppointment(ctx context.Context, professionalID, id string) error
	ListBlockingAppointmentsByDay(ctx context.Context, professionalID string, date time.Time) ([]*models.Appointment, error)
	ListAppointmentsByRange(ctx context.Context, professionalID string, from, to time.Time) ([]*models.Appointment, error)
}

// SharedState is cross-instance coordination: client rate counters and
// webhook notification dedup.
type SharedState interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error)
	ClearProcessed(ctx context.Context, id string) error
}

// EventPublisher emits domain events for in-process consumers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Notifier delivers booking notifications to the professional.
type Notifier interface {
	NotifyAppointment(ctx context.Context, chatID int64, appt *models.Appointment, svc *models.Service) error
	NotifyCancellation(ctx context.Context, chatID int64, appt *models.Appointment) error
}

// SheetsWriter mirrors appointments into an external spreadsheet.
type SheetsWriter interface {
	AppendAppointment(ctx context.Context, spreadsheetID string, appt *models.Appointment, svc *models.Service) error
}

// TaskWorker accepts async delivery tasks (notifications, sheet sync).
type TaskWorker interface {
	Enqueue(task func(ctx context.Context) error) bool
}

// PaymentGateway mirrors payment.Gateway for dependency wiring.
type PaymentGateway = payment.Gateway

// Booker is the service surface the HTTP API is built on.
type Booker interface {
	GetAvailableSlots(ctx context.Context, professionalID, serviceID string, date time.Time) ([]availability.Slot, error)
	CreateReservation(ctx context.Context, req ReservationRequest) (*ReservationResult, error)
	Finalize(ctx context.Context, professionalID, reservationID, paymentStatus string) (*models.Appointment, error)
	CreateAppointment(ctx context.Context, req AppointmentRequest) (*models.Appointment, error)
	GetAppointment(ctx context.Context, professionalID, id string) (*models.Appointment, error)
	CancelAppointment(ctx context.Context, professionalID, id string) error
	ListAppointments(ctx context.Context, professionalID string, from, to time.Time) ([]*models.Appointment, error)
	HandleGatewayNotification(ctx context.Context, notificationID, paymentID string) error
}

// ReservationRequest carries a hold request through the service layer.
type ReservationRequest struct {
	ProfessionalID string
	ServiceID      string
	Date           time.Time
	StartMin       int
	Client         models.ClientInfo
}

// ReservationResult is a created hold plus its checkout link, when the
// payment gateway is enabled.
type ReservationResult struct {
	Reservation *models.Reservation
	CheckoutURL string
}

// AppointmentRequest carries a direct booking request.
type AppointmentRequest struct {
	ProfessionalID string
	ServiceID      string
	Date           time.Time
	StartMin       int
	Client         models.ClientInfo
	PaymentStatus  string
}
