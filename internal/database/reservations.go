package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agendo/internal/models"

	"github.com/google/uuid"
)

// CreateReservation places a provisional hold on a window. The day-cap
// check, overlap scan and insert run in one immediate transaction, so
// of several concurrent calls for the same window exactly one succeeds.
func (db *DB) CreateReservation(ctx context.Context, res *models.Reservation, set models.AdvancedSettings) error {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	if res.PaymentStatus == "" {
		res.PaymentStatus = models.PaymentPending
	}

	date := res.Date.Format(models.DateLayout)
	now := time.Now()
	expiresAt := now.Add(time.Duration(set.HoldMinutes()) * time.Minute)

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		load, err := loadDay(ctx, tx, res.ProfessionalID, date, now)
		if err != nil {
			return err
		}
		if err := checkConflicts(load, res.Window(), set); err != nil {
			return err
		}

		query := `INSERT INTO reservations (
                    id, professional_id, service_id, date, start_min, duration_min,
                    client_name, client_phone, client_email,
                    expires_at, used, payment_status, gateway_ref, appointment_id, created_at
                ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, '', '', ?)`

		_, err = tx.ExecContext(ctx, query,
			res.ID,
			res.ProfessionalID,
			res.ServiceID,
			date,
			res.StartMin,
			res.DurationMin,
			res.Client.Name,
			res.Client.Phone,
			res.Client.Email,
			expiresAt,
			res.PaymentStatus,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	res.ExpiresAt = expiresAt
	res.CreatedAt = now
	return nil
}

const reservationColumns = `id, professional_id, service_id, date, start_min, duration_min,
       client_name, client_phone, client_email,
       expires_at, used, payment_status, gateway_ref, appointment_id, created_at`

func scanReservation(scanner interface{ Scan(dest ...any) error }) (*models.Reservation, error) {
	var res models.Reservation
	var dateStr string
	err := scanner.Scan(
		&res.ID, &res.ProfessionalID, &res.ServiceID, &dateStr,
		&res.StartMin, &res.DurationMin,
		&res.Client.Name, &res.Client.Phone, &res.Client.Email,
		&res.ExpiresAt, &res.Used, &res.PaymentStatus,
		&res.GatewayRef, &res.AppointmentID, &res.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.Date, err = time.Parse(models.DateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reservation date %s: %w", dateStr, err)
	}
	return &res, nil
}

func (db *DB) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	res, err := scanReservation(db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return res, nil
}

// GetReservationByGatewayRef resolves a payment gateway reference back
// to its reservation, for webhook correlation.
func (db *DB) GetReservationByGatewayRef(ctx context.Context, ref string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE gateway_ref = ?`
	res, err := scanReservation(db.conn.QueryRowContext(ctx, query, ref))
	if err == sql.ErrNoRows {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation by gateway ref: %w", err)
	}
	return res, nil
}

// ListActiveReservationsByDay returns unexpired, unused holds for one
// professional-day, ordered by start time.
func (db *DB) ListActiveReservationsByDay(ctx context.Context, professionalID string, date time.Time, now time.Time) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
              WHERE professional_id = ? AND date = ? AND used = 0 AND expires_at > ?
              ORDER BY start_min`
	rows, err := db.conn.QueryContext(ctx, query, professionalID, date.Format(models.DateLayout), now)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	var reservations []*models.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, res)
	}
	return reservations, rows.Err()
}

// SetReservationGatewayRef records the checkout reference issued by the
// payment gateway for this hold.
func (db *DB) SetReservationGatewayRef(ctx context.Context, id, ref string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE reservations SET gateway_ref = ? WHERE id = ?`, ref, id)
	if err != nil {
		return fmt.Errorf("failed to set gateway ref: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrReservationNotFound
	}
	return nil
}

// FinalizeReservation converts a hold into an appointment. The call is
// idempotent: repeating it for an already-used reservation returns the
// same appointment ID without touching the schedule again.
//
// An expired hold without an approved payment fails with
// ErrReservationExpired. Every promotion re-checks the window against
// the day's blocking appointments and the other active holds: an
// expired hold stopped protecting its window the moment it lapsed, and
// even a live hold can race a booking created by another flow. A taken
// window fails with ErrSlotTaken; a paid-but-late finalize wins only
// when the window is still free.
func (db *DB) FinalizeReservation(ctx context.Context, id string, paymentStatus string, set models.AdvancedSettings) (appointmentID string, err error) {
	now := time.Now()

	err = db.withTx(ctx, func(tx *sql.Tx) error {
		query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
		res, scanErr := scanReservation(tx.QueryRowContext(ctx, query, id))
		if scanErr == sql.ErrNoRows {
			return ErrReservationNotFound
		}
		if scanErr != nil {
			return fmt.Errorf("failed to load reservation: %w", scanErr)
		}

		if res.Used {
			appointmentID = res.AppointmentID
			return nil
		}

		expired := !res.ExpiresAt.After(now)
		if expired && paymentStatus != models.PaymentApproved {
			return ErrReservationExpired
		}

		taken, checkErr := windowTaken(ctx, tx, res, set, now)
		if checkErr != nil {
			return checkErr
		}
		if taken {
			return ErrSlotTaken
		}

		status := models.StatusScheduled
		if paymentStatus == models.PaymentApproved {
			status = models.StatusConfirmed
		}

		appt := &models.Appointment{
			ID:             uuid.New().String(),
			ProfessionalID: res.ProfessionalID,
			ServiceID:      res.ServiceID,
			Date:           res.Date,
			StartMin:       res.StartMin,
			DurationMin:    res.DurationMin,
			Client:         res.Client,
			Status:         status,
			PaymentStatus:  paymentStatus,
		}
		if insertErr := insertAppointment(ctx, tx, appt, res.Date.Format(models.DateLayout), now); insertErr != nil {
			return insertErr
		}

		_, updErr := tx.ExecContext(ctx,
			`UPDATE reservations SET used = 1, payment_status = ?, appointment_id = ? WHERE id = ?`,
			paymentStatus, appt.ID, id)
		if updErr != nil {
			return fmt.Errorf("failed to mark reservation used: %w", updErr)
		}

		appointmentID = appt.ID
		return nil
	})
	return appointmentID, err
}

// windowTaken reports whether any blocking appointment or any other
// active hold overlaps the reservation's buffer-expanded window. Must
// run inside the finalize transaction.
func windowTaken(ctx context.Context, tx *sql.Tx, res *models.Reservation, set models.AdvancedSettings, now time.Time) (bool, error) {
	candidate := set.Expand(res.Window())
	date := res.Date.Format(models.DateLayout)

	taken, err := anyWindowOverlaps(ctx, tx, candidate, set,
		`SELECT start_min, duration_min FROM appointments
         WHERE professional_id = ? AND date = ? AND status != ?`,
		res.ProfessionalID, date, models.StatusCanceled)
	if err != nil || taken {
		return taken, err
	}

	return anyWindowOverlaps(ctx, tx, candidate, set,
		`SELECT start_min, duration_min FROM reservations
         WHERE professional_id = ? AND date = ? AND used = 0 AND expires_at > ? AND id != ?`,
		res.ProfessionalID, date, now, res.ID)
}

func anyWindowOverlaps(ctx context.Context, tx *sql.Tx, candidate models.Interval, set models.AdvancedSettings, query string, args ...any) (bool, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to scan day windows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var start, duration int
		if err := rows.Scan(&start, &duration); err != nil {
			return false, fmt.Errorf("failed to scan window: %w", err)
		}
		existing := set.Expand(models.Interval{StartMin: start, EndMin: start + duration})
		if candidate.Overlaps(existing) {
			return true, nil
		}
	}
	return false, rows.Err()
}

// MarkReservationPaymentStatus records a payment state change that does
// not finalize the hold (e.g. a failed charge).
func (db *DB) MarkReservationPaymentStatus(ctx context.Context, id, paymentStatus string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE reservations SET payment_status = ? WHERE id = ? AND used = 0`,
		paymentStatus, id)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrReservationNotFound
	}
	return nil
}

// PurgeExpiredReservations deletes unused holds whose expiry is older
// than the retention window. Purging is housekeeping only: expired
// rows already stop blocking slots the moment they expire.
func (db *DB) PurgeExpiredReservations(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM reservations WHERE used = 0 AND expires_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge reservations: %w", err)
	}
	return result.RowsAffected()
}
