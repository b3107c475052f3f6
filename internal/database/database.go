package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB wraps the SQLite connection. All booking correctness comes from
// immediate-mode transactions here; handlers above hold no locks.
type DB struct {
	conn   *sql.DB
	logger zerolog.Logger
}

const (
	txMaxRetries   = 3
	txRetryBackoff = 25 * time.Millisecond
)

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" && !strings.Contains(path, ":memory:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(conn); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	var dbLogger zerolog.Logger
	if logger != nil {
		dbLogger = logger.With().Str("component", "database").Logger()
	}
	dbLogger.Info().Str("path", path).Msg("database initialized")

	return &DB{conn: conn, logger: dbLogger}, nil
}

// dsn enables WAL, a busy timeout and immediate write transactions so
// that conflicting bookings serialize inside SQLite instead of failing
// immediately with SQLITE_BUSY.
func dsn(path string) string {
	if strings.Contains(path, ":memory:") {
		return path
	}
	return path + "?_busy_timeout=5000&_txlock=immediate&_journal_mode=WAL&_foreign_keys=on"
}

func createTables(conn *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS professionals (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            timezone TEXT NOT NULL DEFAULT 'UTC',
            buffer_before_min INTEGER NOT NULL DEFAULT 0,
            buffer_after_min INTEGER NOT NULL DEFAULT 0,
            min_notice_hours INTEGER NOT NULL DEFAULT 0,
            max_notice_days INTEGER NOT NULL DEFAULT 60,
            max_appointments_per_day INTEGER NOT NULL DEFAULT 0,
            reservation_hold_minutes INTEGER NOT NULL DEFAULT 30,
            notify_chat_id INTEGER NOT NULL DEFAULT 0,
            spreadsheet_id TEXT NOT NULL DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS services (
            id TEXT NOT NULL,
            professional_id TEXT NOT NULL,
            name TEXT NOT NULL,
            duration_min INTEGER NOT NULL,
            price_cents INTEGER NOT NULL DEFAULT 0,
            currency TEXT NOT NULL DEFAULT 'BRL',
            active BOOLEAN NOT NULL DEFAULT 1,
            PRIMARY KEY (professional_id, id)
        )`,
		`CREATE TABLE IF NOT EXISTS working_hours (
            professional_id TEXT NOT NULL,
            weekday INTEGER NOT NULL,
            enabled BOOLEAN NOT NULL DEFAULT 1,
            start_min INTEGER NOT NULL,
            end_min INTEGER NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS availability_exceptions (
            professional_id TEXT NOT NULL,
            date TEXT NOT NULL,
            start_min INTEGER NOT NULL,
            end_min INTEGER NOT NULL,
            kind TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS reservations (
            id TEXT PRIMARY KEY,
            professional_id TEXT NOT NULL,
            service_id TEXT NOT NULL,
            date TEXT NOT NULL,
            start_min INTEGER NOT NULL,
            duration_min INTEGER NOT NULL,
            client_name TEXT NOT NULL,
            client_phone TEXT NOT NULL DEFAULT '',
            client_email TEXT NOT NULL DEFAULT '',
            expires_at DATETIME NOT NULL,
            used BOOLEAN NOT NULL DEFAULT 0,
            payment_status TEXT NOT NULL DEFAULT 'pending',
            gateway_ref TEXT NOT NULL DEFAULT '',
            appointment_id TEXT NOT NULL DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS appointments (
            id TEXT PRIMARY KEY,
            professional_id TEXT NOT NULL,
            service_id TEXT NOT NULL,
            date TEXT NOT NULL,
            start_min INTEGER NOT NULL,
            duration_min INTEGER NOT NULL,
            client_name TEXT NOT NULL,
            client_phone TEXT NOT NULL DEFAULT '',
            client_email TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'scheduled',
            payment_status TEXT NOT NULL DEFAULT 'pending',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		// Both booking tables are always read one professional-day at a
		// time, so the composite index is the only access path needed.
		`CREATE INDEX IF NOT EXISTS idx_reservations_prof_date ON reservations(professional_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_gateway_ref ON reservations(gateway_ref)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_prof_date ON appointments(professional_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_working_hours_prof ON working_hours(professional_id, weekday)`,
		`CREATE INDEX IF NOT EXISTS idx_exceptions_prof_date ON availability_exceptions(professional_id, date)`,
	}

	for _, query := range queries {
		if _, err := conn.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// withTx runs fn in an immediate transaction, retrying a bounded number
// of times when SQLite reports a busy/locked conflict. Retries re-run fn
// from scratch, so fn must be safe to repeat.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 0; attempt < txMaxRetries; attempt++ {
		if attempt > 0 {
			db.logger.Debug().Int("attempt", attempt).Msg("retrying busy transaction")
			select {
			case <-time.After(time.Duration(attempt) * txRetryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err = db.runTx(ctx, fn)
		if !isBusy(err) {
			return err
		}
	}
	return err
}

func (db *DB) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func (db *DB) Close() error {
	return db.conn.Close()
}
