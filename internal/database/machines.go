package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"guckelsberg/internal/config"
	"guckelsberg/internal/models"
)

// GetMachine returns the machine with the given name, or nil.
func (q *Queries) GetMachine(ctx context.Context, name string) (*models.Machine, error) {
	var (
		m   models.Machine
		typ string
	)
	err := q.conn.QueryRowContext(ctx,
		`SELECT name, type, slot_duration, created_at FROM machines WHERE name = ?`, name,
	).Scan(&m.Name, &typ, &m.SlotDuration, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get machine: %w", err)
	}
	m.Type = models.MachineType(typ)
	return &m, nil
}

// ListMachines returns all machines ordered by type and name.
func (q *Queries) ListMachines(ctx context.Context) ([]models.Machine, error) {
	rows, err := q.conn.QueryContext(ctx, `SELECT name, type, slot_duration, created_at FROM machines ORDER BY type DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	defer rows.Close()

	var machines []models.Machine
	for rows.Next() {
		var (
			m   models.Machine
			typ string
		)
		if err := rows.Scan(&m.Name, &typ, &m.SlotDuration, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = models.MachineType(typ)
		machines = append(machines, m)
	}
	return machines, rows.Err()
}

// InsertMachine creates a machine. A taken name yields domain.ErrDuplicate.
func (q *Queries) InsertMachine(ctx context.Context, m *models.Machine) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := q.conn.ExecContext(ctx,
		`INSERT INTO machines (name, type, slot_duration, created_at) VALUES (?, ?, ?, ?)`,
		m.Name, string(m.Type), m.SlotDuration, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert machine: %w", mapConstraint(err))
	}
	return nil
}

// DeleteMachine removes a machine together with its bookings and overrides.
func (q *Queries) DeleteMachine(ctx context.Context, name string) error {
	if _, err := q.conn.ExecContext(ctx, `DELETE FROM machines WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete machine: %w", err)
	}
	return nil
}

// SyncMachines applies the machines catalog: declared machines are created or updated,
// machines missing from the catalog are left alone.
func (db *DB) SyncMachines(ctx context.Context, cfg *config.MachinesConfig) error {
	if cfg == nil {
		return fmt.Errorf("machines config is nil")
	}

	now := time.Now()
	for _, m := range cfg.Machines {
		_, err := db.ExecContext(ctx, `
			INSERT INTO machines (name, type, slot_duration, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				type = excluded.type,
				slot_duration = excluded.slot_duration`,
			m.Name, m.Type, m.SlotDurationMinutes, now,
		)
		if err != nil {
			return fmt.Errorf("sync machine %s: %w", m.Name, err)
		}
	}

	db.logger.Info().Int("machines", len(cfg.Machines)).Msg("machines catalog synced")
	return nil
}
