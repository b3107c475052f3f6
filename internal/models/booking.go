package models

import "time"

// ClientInfo identifies the person holding a slot.
type ClientInfo struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// Reservation is a time-limited provisional claim on a slot pending
// payment or confirmation. It is written once and mutated once at most,
// when the finalizer marks it used; otherwise it passively expires.
type Reservation struct {
	ID             string     `json:"id"`
	ProfessionalID string     `json:"professional_id"`
	ServiceID      string     `json:"service_id"`
	Date           time.Time  `json:"date"`
	StartMin       int        `json:"start_min"`
	DurationMin    int        `json:"duration_min"`
	Client         ClientInfo `json:"client"`
	ExpiresAt      time.Time  `json:"expires_at"`
	Used           bool       `json:"used"`
	PaymentStatus  string     `json:"payment_status"`
	GatewayRef     string     `json:"gateway_ref,omitempty"`
	AppointmentID  string     `json:"appointment_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Active reports whether the reservation still blocks its window.
func (r *Reservation) Active(now time.Time) bool {
	return !r.Used && r.ExpiresAt.After(now)
}

// Window returns the raw booked interval in minutes from midnight.
func (r *Reservation) Window() Interval {
	return Interval{StartMin: r.StartMin, EndMin: r.StartMin + r.DurationMin}
}

// Appointment is a confirmed (or directly scheduled) booking.
type Appointment struct {
	ID             string     `json:"id"`
	ProfessionalID string     `json:"professional_id"`
	ServiceID      string     `json:"service_id"`
	Date           time.Time  `json:"date"`
	StartMin       int        `json:"start_min"`
	DurationMin    int        `json:"duration_min"`
	Client         ClientInfo `json:"client"`
	Status         string     `json:"status"` // scheduled, confirmed, canceled, finished
	PaymentStatus  string     `json:"payment_status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Blocking reports whether the appointment still occupies its window.
func (a *Appointment) Blocking() bool {
	return a.Status != StatusCanceled
}

// Window returns the raw booked interval in minutes from midnight.
func (a *Appointment) Window() Interval {
	return Interval{StartMin: a.StartMin, EndMin: a.StartMin + a.DurationMin}
}

// StartTime anchors the appointment window on its date in loc.
func (a *Appointment) StartTime(loc *time.Location) time.Time {
	d := a.Date
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc).
		Add(time.Duration(a.StartMin) * time.Minute)
}
