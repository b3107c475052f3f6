package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"agendo/internal/models"
)

func (db *DB) UpsertProfessional(ctx context.Context, p *models.Professional) error {
	query := `INSERT INTO professionals (
                id, name, timezone, buffer_before_min, buffer_after_min,
                min_notice_hours, max_notice_days, max_appointments_per_day,
                reservation_hold_minutes, notify_chat_id, spreadsheet_id, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(id) DO UPDATE SET
                name = excluded.name,
                timezone = excluded.timezone,
                buffer_before_min = excluded.buffer_before_min,
                buffer_after_min = excluded.buffer_after_min,
                min_notice_hours = excluded.min_notice_hours,
                max_notice_days = excluded.max_notice_days,
                max_appointments_per_day = excluded.max_appointments_per_day,
                reservation_hold_minutes = excluded.reservation_hold_minutes,
                notify_chat_id = excluded.notify_chat_id,
                spreadsheet_id = excluded.spreadsheet_id,
                updated_at = excluded.updated_at`

	tz := p.Timezone
	if tz == "" {
		tz = "UTC"
	}

	_, err := db.conn.ExecContext(ctx, query,
		p.ID,
		p.Name,
		tz,
		p.Settings.BufferBeforeMin,
		p.Settings.BufferAfterMin,
		p.Settings.MinNoticeHours,
		p.Settings.MaxNoticeDays,
		p.Settings.MaxAppointmentsPerDay,
		p.Settings.HoldMinutes(),
		p.NotifyChatID,
		p.SpreadsheetID,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert professional: %w", err)
	}
	return nil
}

func (db *DB) GetProfessional(ctx context.Context, id string) (*models.Professional, error) {
	query := `SELECT id, name, timezone, buffer_before_min, buffer_after_min,
                     min_notice_hours, max_notice_days, max_appointments_per_day,
                     reservation_hold_minutes, notify_chat_id, spreadsheet_id,
                     created_at, updated_at
              FROM professionals WHERE id = ?`

	var p models.Professional
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Timezone,
		&p.Settings.BufferBeforeMin, &p.Settings.BufferAfterMin,
		&p.Settings.MinNoticeHours, &p.Settings.MaxNoticeDays,
		&p.Settings.MaxAppointmentsPerDay, &p.Settings.ReservationHoldMinutes,
		&p.NotifyChatID, &p.SpreadsheetID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrProfessionalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get professional: %w", err)
	}
	return &p, nil
}

func (db *DB) UpsertService(ctx context.Context, s *models.Service) error {
	if err := s.Validate(); err != nil {
		return err
	}

	query := `INSERT INTO services (id, professional_id, name, duration_min, price_cents, currency, active)
              VALUES (?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(professional_id, id) DO UPDATE SET
                name = excluded.name,
                duration_min = excluded.duration_min,
                price_cents = excluded.price_cents,
                currency = excluded.currency,
                active = excluded.active`

	_, err := db.conn.ExecContext(ctx, query,
		s.ID, s.ProfessionalID, s.Name, s.DurationMin, s.PriceCents, s.Currency, s.Active)
	if err != nil {
		return fmt.Errorf("failed to upsert service: %w", err)
	}
	return nil
}

func (db *DB) GetService(ctx context.Context, professionalID, serviceID string) (*models.Service, error) {
	query := `SELECT id, professional_id, name, duration_min, price_cents, currency, active
              FROM services WHERE professional_id = ? AND id = ?`

	var s models.Service
	err := db.conn.QueryRowContext(ctx, query, professionalID, serviceID).Scan(
		&s.ID, &s.ProfessionalID, &s.Name, &s.DurationMin, &s.PriceCents, &s.Currency, &s.Active,
	)
	if err == sql.ErrNoRows {
		return nil, ErrServiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return &s, nil
}

// ReplaceWorkingHours swaps the full weekly schedule of a professional.
func (db *DB) ReplaceWorkingHours(ctx context.Context, professionalID string, week []models.WorkingHours) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM working_hours WHERE professional_id = ?`, professionalID); err != nil {
			return fmt.Errorf("failed to clear working hours: %w", err)
		}

		insert := `INSERT INTO working_hours (professional_id, weekday, enabled, start_min, end_min)
                   VALUES (?, ?, ?, ?, ?)`
		for _, day := range week {
			for _, iv := range day.Intervals {
				if !iv.Valid() {
					return fmt.Errorf("invalid working interval %d-%d on weekday %d", iv.StartMin, iv.EndMin, day.Weekday)
				}
				if _, err := tx.ExecContext(ctx, insert,
					professionalID, int(day.Weekday), day.Enabled, iv.StartMin, iv.EndMin); err != nil {
					return fmt.Errorf("failed to insert working interval: %w", err)
				}
			}
		}
		return nil
	})
}

// GetWorkingHours returns the schedule for one weekday. A weekday with
// no stored intervals comes back disabled and empty.
func (db *DB) GetWorkingHours(ctx context.Context, professionalID string, weekday time.Weekday) (*models.WorkingHours, error) {
	query := `SELECT enabled, start_min, end_min
              FROM working_hours WHERE professional_id = ? AND weekday = ?
              ORDER BY start_min`

	rows, err := db.conn.QueryContext(ctx, query, professionalID, int(weekday))
	if err != nil {
		return nil, fmt.Errorf("failed to get working hours: %w", err)
	}
	defer rows.Close()

	day := &models.WorkingHours{Weekday: weekday}
	for rows.Next() {
		var enabled bool
		var iv models.Interval
		if err := rows.Scan(&enabled, &iv.StartMin, &iv.EndMin); err != nil {
			return nil, fmt.Errorf("failed to scan working interval: %w", err)
		}
		day.Enabled = day.Enabled || enabled
		day.Intervals = append(day.Intervals, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return day, nil
}

func (db *DB) AddException(ctx context.Context, exc *models.AvailabilityException) error {
	if !exc.Interval.Valid() {
		return fmt.Errorf("invalid exception interval %d-%d", exc.Interval.StartMin, exc.Interval.EndMin)
	}
	if exc.Kind != models.ExceptionBlocked && exc.Kind != models.ExceptionExtra {
		return fmt.Errorf("unknown exception kind %q", exc.Kind)
	}

	query := `INSERT INTO availability_exceptions (professional_id, date, start_min, end_min, kind)
              VALUES (?, ?, ?, ?, ?)`
	_, err := db.conn.ExecContext(ctx, query,
		exc.ProfessionalID, exc.Date.Format(models.DateLayout),
		exc.Interval.StartMin, exc.Interval.EndMin, exc.Kind)
	if err != nil {
		return fmt.Errorf("failed to add exception: %w", err)
	}
	return nil
}

func (db *DB) GetExceptions(ctx context.Context, professionalID string, date time.Time) ([]models.AvailabilityException, error) {
	query := `SELECT date, start_min, end_min, kind
              FROM availability_exceptions WHERE professional_id = ? AND date = ?`

	rows, err := db.conn.QueryContext(ctx, query, professionalID, date.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to get exceptions: %w", err)
	}
	defer rows.Close()

	var exceptions []models.AvailabilityException
	for rows.Next() {
		exc := models.AvailabilityException{ProfessionalID: professionalID}
		var dateStr string
		if err := rows.Scan(&dateStr, &exc.Interval.StartMin, &exc.Interval.EndMin, &exc.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan exception: %w", err)
		}
		exc.Date, err = time.Parse(models.DateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse exception date %s: %w", dateStr, err)
		}
		exceptions = append(exceptions, exc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(exceptions, func(i, j int) bool {
		return exceptions[i].Interval.StartMin < exceptions[j].Interval.StartMin
	})
	return exceptions, nil
}
