package models

import (
	"fmt"
	"time"
)

// Interval is a half-open [StartMin, EndMin) range of minutes from midnight.
type Interval struct {
	StartMin int `json:"start_min" yaml:"start_min"`
	EndMin   int `json:"end_min" yaml:"end_min"`
}

func (i Interval) Valid() bool {
	return i.StartMin >= 0 && i.EndMin <= MinutesPerDay && i.StartMin < i.EndMin
}

// Overlaps reports whether two half-open intervals share any minute.
func (i Interval) Overlaps(other Interval) bool {
	return i.StartMin < other.EndMin && other.StartMin < i.EndMin
}

// AdvancedSettings is professional-scoped booking configuration.
type AdvancedSettings struct {
	BufferBeforeMin        int `json:"buffer_before_min" yaml:"buffer_before_min"`
	BufferAfterMin         int `json:"buffer_after_min" yaml:"buffer_after_min"`
	MinNoticeHours         int `json:"min_notice_hours" yaml:"min_notice_hours"`
	MaxNoticeDays          int `json:"max_notice_days" yaml:"max_notice_days"`
	MaxAppointmentsPerDay  int `json:"max_appointments_per_day" yaml:"max_appointments_per_day"`
	ReservationHoldMinutes int `json:"reservation_hold_minutes" yaml:"reservation_hold_minutes"`
}

// Expand grows a raw interval by the configured buffers. Expanded
// intervals may extend past midnight on either side; overlap checks
// stay correct because bookings never cross a day boundary.
func (s AdvancedSettings) Expand(w Interval) Interval {
	return Interval{
		StartMin: w.StartMin - s.BufferBeforeMin,
		EndMin:   w.EndMin + s.BufferAfterMin,
	}
}

// HoldMinutes returns the configured hold length with the default applied.
func (s AdvancedSettings) HoldMinutes() int {
	if s.ReservationHoldMinutes <= 0 {
		return DefaultHoldMinutes
	}
	return s.ReservationHoldMinutes
}

// WorkingHours describes one weekday of a professional's recurring schedule.
type WorkingHours struct {
	Weekday   time.Weekday `json:"weekday" yaml:"weekday"`
	Enabled   bool         `json:"enabled" yaml:"enabled"`
	Intervals []Interval   `json:"intervals" yaml:"intervals"`
}

// AvailabilityException overrides WorkingHours for a single date.
// Kind is "blocked" or "extra".
type AvailabilityException struct {
	ProfessionalID string    `json:"professional_id"`
	Date           time.Time `json:"date"`
	Interval       Interval  `json:"interval" yaml:"interval"`
	Kind           string    `json:"kind" yaml:"kind"`
}

// Professional owns a calendar, settings and bookable services.
type Professional struct {
	ID            string           `json:"id" yaml:"id"`
	Name          string           `json:"name" yaml:"name"`
	Timezone      string           `json:"timezone" yaml:"timezone"`
	Settings      AdvancedSettings `json:"settings" yaml:"settings"`
	NotifyChatID  int64            `json:"notify_chat_id,omitempty" yaml:"notify_chat_id"`
	SpreadsheetID string           `json:"spreadsheet_id,omitempty" yaml:"spreadsheet_id"`
	CreatedAt     time.Time        `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time        `json:"updated_at" yaml:"-"`
}

// Location resolves the professional's timezone, defaulting to UTC.
func (p *Professional) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Service is a bookable offering with a fixed duration and price.
type Service struct {
	ID             string `json:"id" yaml:"id"`
	ProfessionalID string `json:"professional_id" yaml:"-"`
	Name           string `json:"name" yaml:"name"`
	DurationMin    int    `json:"duration_min" yaml:"duration_min"`
	PriceCents     int64  `json:"price_cents" yaml:"price_cents"`
	Currency       string `json:"currency" yaml:"currency"`
	Active         bool   `json:"active" yaml:"active"`
}

func (s *Service) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("service id is required")
	}
	if s.DurationMin <= 0 || s.DurationMin > MinutesPerDay {
		return fmt.Errorf("service %s has invalid duration %d", s.ID, s.DurationMin)
	}
	return nil
}
