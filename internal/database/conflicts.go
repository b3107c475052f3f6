package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agendo/internal/models"
)

// dayLoad is a snapshot of everything blocking time on one
// professional-day, read inside the calling transaction.
type dayLoad struct {
	appointments []models.Interval
	reservations []models.Interval
}

func (l dayLoad) count() int {
	return len(l.appointments) + len(l.reservations)
}

// loadDay reads the blocking appointment and active reservation windows
// for a professional-day. Must run inside tx so the snapshot and the
// subsequent insert are indivisible.
func loadDay(ctx context.Context, tx *sql.Tx, professionalID, date string, now time.Time) (dayLoad, error) {
	var load dayLoad

	apptRows, err := tx.QueryContext(ctx,
		`SELECT start_min, duration_min FROM appointments
         WHERE professional_id = ? AND date = ? AND status != ?`,
		professionalID, date, models.StatusCanceled)
	if err != nil {
		return load, fmt.Errorf("failed to load day appointments: %w", err)
	}
	defer apptRows.Close()

	for apptRows.Next() {
		var start, duration int
		if err := apptRows.Scan(&start, &duration); err != nil {
			return load, fmt.Errorf("failed to scan appointment window: %w", err)
		}
		load.appointments = append(load.appointments, models.Interval{StartMin: start, EndMin: start + duration})
	}
	if err := apptRows.Err(); err != nil {
		return load, err
	}

	resRows, err := tx.QueryContext(ctx,
		`SELECT start_min, duration_min FROM reservations
         WHERE professional_id = ? AND date = ? AND used = 0 AND expires_at > ?`,
		professionalID, date, now)
	if err != nil {
		return load, fmt.Errorf("failed to load day reservations: %w", err)
	}
	defer resRows.Close()

	for resRows.Next() {
		var start, duration int
		if err := resRows.Scan(&start, &duration); err != nil {
			return load, fmt.Errorf("failed to scan reservation window: %w", err)
		}
		load.reservations = append(load.reservations, models.Interval{StartMin: start, EndMin: start + duration})
	}
	return load, resRows.Err()
}

// checkConflicts enforces the day cap and the buffer-expanded overlap
// rule for a candidate window against a day snapshot.
func checkConflicts(load dayLoad, window models.Interval, set models.AdvancedSettings) error {
	if set.MaxAppointmentsPerDay > 0 && load.count() >= set.MaxAppointmentsPerDay {
		return ErrDayFull
	}

	expanded := set.Expand(window)
	for _, existing := range load.appointments {
		if expanded.Overlaps(set.Expand(existing)) {
			return ErrSlotTaken
		}
	}
	for _, existing := range load.reservations {
		if expanded.Overlaps(set.Expand(existing)) {
			return ErrSlotTaken
		}
	}
	return nil
}
