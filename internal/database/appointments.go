package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agendo/internal/models"

	"github.com/google/uuid"
)

// CreateAppointment books a window directly, without a reservation hold.
// This is the no-online-payment path: the same day-cap and overlap rules
// apply inside one transaction as for CreateReservation.
func (db *DB) CreateAppointment(ctx context.Context, appt *models.Appointment, set models.AdvancedSettings) error {
	if appt.ID == "" {
		appt.ID = uuid.New().String()
	}
	if appt.Status == "" {
		appt.Status = models.StatusScheduled
	}
	if appt.PaymentStatus == "" {
		appt.PaymentStatus = models.PaymentPending
	}

	date := appt.Date.Format(models.DateLayout)
	now := time.Now()

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		load, err := loadDay(ctx, tx, appt.ProfessionalID, date, now)
		if err != nil {
			return err
		}
		if err := checkConflicts(load, appt.Window(), set); err != nil {
			return err
		}
		return insertAppointment(ctx, tx, appt, date, now)
	})
	if err != nil {
		return err
	}

	appt.CreatedAt = now
	appt.UpdatedAt = now
	return nil
}

func insertAppointment(ctx context.Context, tx *sql.Tx, appt *models.Appointment, date string, now time.Time) error {
	query := `INSERT INTO appointments (
                id, professional_id, service_id, date, start_min, duration_min,
                client_name, client_phone, client_email, status, payment_status,
                created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := tx.ExecContext(ctx, query,
		appt.ID,
		appt.ProfessionalID,
		appt.ServiceID,
		date,
		appt.StartMin,
		appt.DurationMin,
		appt.Client.Name,
		appt.Client.Phone,
		appt.Client.Email,
		appt.Status,
		appt.PaymentStatus,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert appointment: %w", err)
	}
	return nil
}

const appointmentColumns = `id, professional_id, service_id, date, start_min, duration_min,
       client_name, client_phone, client_email, status, payment_status,
       created_at, updated_at`

func scanAppointment(scanner interface{ Scan(dest ...any) error }) (*models.Appointment, error) {
	var appt models.Appointment
	var dateStr string
	err := scanner.Scan(
		&appt.ID, &appt.ProfessionalID, &appt.ServiceID, &dateStr,
		&appt.StartMin, &appt.DurationMin,
		&appt.Client.Name, &appt.Client.Phone, &appt.Client.Email,
		&appt.Status, &appt.PaymentStatus,
		&appt.CreatedAt, &appt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	appt.Date, err = time.Parse(models.DateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse appointment date %s: %w", dateStr, err)
	}
	return &appt, nil
}

func (db *DB) GetAppointment(ctx context.Context, professionalID, id string) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE professional_id = ? AND id = ?`
	appt, err := scanAppointment(db.conn.QueryRowContext(ctx, query, professionalID, id))
	if err == sql.ErrNoRows {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return appt, nil
}

// ListBlockingAppointmentsByDay returns non-canceled appointments for
// one professional-day, ordered by start time.
func (db *DB) ListBlockingAppointmentsByDay(ctx context.Context, professionalID string, date time.Time) ([]*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
              WHERE professional_id = ? AND date = ? AND status != ?
              ORDER BY start_min`
	return db.queryAppointments(ctx, query, professionalID, date.Format(models.DateLayout), models.StatusCanceled)
}

// ListAppointmentsByRange returns all appointments (any status) for a
// professional between two dates inclusive.
func (db *DB) ListAppointmentsByRange(ctx context.Context, professionalID string, from, to time.Time) ([]*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
              WHERE professional_id = ? AND date >= ? AND date <= ?
              ORDER BY date, start_min`
	return db.queryAppointments(ctx, query,
		professionalID, from.Format(models.DateLayout), to.Format(models.DateLayout))
}

func (db *DB) queryAppointments(ctx context.Context, query string, args ...any) ([]*models.Appointment, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var appointments []*models.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appointments = append(appointments, appt)
	}
	return appointments, rows.Err()
}

// CancelAppointment releases the appointment's window. Canceling an
// already-canceled appointment is a no-op.
func (db *DB) CancelAppointment(ctx context.Context, professionalID, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE appointments SET status = ?, updated_at = ? WHERE professional_id = ? AND id = ?`,
		models.StatusCanceled, time.Now(), professionalID, id)
	if err != nil {
		return fmt.Errorf("failed to cancel appointment: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}
