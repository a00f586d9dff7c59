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

	"guckelsberg/internal/domain"
)

// DB is the sqlite-backed store for all booking engines.
type DB struct {
	*sql.DB
	*Queries
	path   string
	logger *zerolog.Logger
}

var _ domain.Store = (*DB)(nil)

// NewDB opens the database at path, configures the pool and runs migrations.
// Dates are stored as YYYY-MM-DD and read back in loc.
func NewDB(path string, loc *time.Location, logger *zerolog.Logger) (*DB, error) {
	if loc == nil {
		loc = time.Local
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// BEGIN IMMEDIATE takes the write lock up front, so concurrent booking
	// transactions queue on busy_timeout instead of failing on lock upgrade.
	dsn := "file:" + path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{
		DB:      db,
		Queries: &Queries{conn: db, loc: loc},
		path:    path,
		logger:  logger,
	}, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// RunInTx runs fn inside one transaction; any error rolls everything back.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &Queries{conn: tx, loc: db.loc}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", mapConstraint(err))
	}
	return nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			room_number TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'USER',
			last_booking_activity DATETIME,
			max_washer_minutes_per_week INTEGER,
			max_dryer_minutes_per_week INTEGER,
			telegram_chat_id INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS machines (
			name TEXT PRIMARY KEY,
			type TEXT NOT NULL CHECK (type IN ('WASHER', 'DRYER')),
			slot_duration INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS laundry_bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			machine TEXT NOT NULL,
			booker TEXT NOT NULL,
			date TEXT NOT NULL,
			slot_start INTEGER NOT NULL CHECK (slot_start >= 0 AND slot_start < 1440),
			reminder_sent BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (machine) REFERENCES machines(name) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS laundry_overrides (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			machine TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			start_slot INTEGER,
			end_slot INTEGER,
			status TEXT NOT NULL CHECK (status IN ('BLOCKED', 'EXTENDED')),
			created_by TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (machine) REFERENCES machines(name) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS rooftop_bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			booker TEXT NOT NULL,
			date TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS rooftop_requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			booker TEXT NOT NULL,
			date TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			contact TEXT NOT NULL DEFAULT '',
			time_span TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL CHECK (status IN ('REQUESTED', 'APPROVED', 'REJECTED', 'CANCELLED')),
			reviewed_by TEXT,
			reviewed_at DATETIME,
			decision_reason TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Uniqueness is the last line of defence against racing writers.
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_laundry_slot ON laundry_bookings(date, slot_start, machine)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_rooftop_date ON rooftop_bookings(date)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_rooftop_request_active ON rooftop_requests(booker, date) WHERE status = 'REQUESTED'`,

		`CREATE INDEX IF NOT EXISTS idx_laundry_machine_date ON laundry_bookings(machine, date)`,
		`CREATE INDEX IF NOT EXISTS idx_laundry_booker_date ON laundry_bookings(booker, date)`,
		`CREATE INDEX IF NOT EXISTS idx_overrides_machine_dates ON laundry_overrides(machine, start_date, end_date)`,
		`CREATE INDEX IF NOT EXISTS idx_rooftop_booker ON rooftop_bookings(booker, date)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_status_date ON rooftop_requests(status, date)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// mapConstraint turns unique-index violations into domain.ErrDuplicate.
func mapConstraint(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint &&
		(se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return fmt.Errorf("%w: %v", domain.ErrDuplicate, err)
	}
	return err
}
