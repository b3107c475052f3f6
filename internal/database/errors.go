package database

import "errors"

var (
	ErrProfessionalNotFound = errors.New("professional not found")
	ErrServiceNotFound      = errors.New("service not found")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")

	// ErrSlotTaken means the requested window overlaps an existing
	// appointment or active reservation after buffer expansion.
	ErrSlotTaken = errors.New("slot already taken")

	// ErrDayFull means the professional's daily appointment cap is reached.
	ErrDayFull = errors.New("daily appointment limit reached")

	ErrReservationExpired = errors.New("reservation expired")

	// Validation errors raised by the service layer before touching
	// storage.
	ErrPastDate        = errors.New("date is in the past")
	ErrDateTooFar      = errors.New("date is beyond the booking horizon")
	ErrSlotUnavailable = errors.New("requested start is not an available slot")
	ErrInvalidClient   = errors.New("client name and phone are required")
	ErrServiceInactive = errors.New("service is not active")
)
