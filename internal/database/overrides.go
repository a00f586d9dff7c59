package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"guckelsberg/internal/domain"
	"guckelsberg/internal/models"
)

const overrideSelect = `
	SELECT id, machine, start_date, end_date, start_slot, end_slot, status, created_by, created_at
	FROM laundry_overrides`

func (q *Queries) scanOverride(r rowScanner) (*models.Override, error) {
	var (
		o                  models.Override
		startDate, endDate string
		startSlot, endSlot sql.NullInt64
		status             string
	)
	if err := r.Scan(&o.ID, &o.Machine, &startDate, &endDate, &startSlot, &endSlot, &status,
		&o.CreatedBy, &o.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if o.StartDate, err = q.parseDate(startDate); err != nil {
		return nil, fmt.Errorf("parse override start %q: %w", startDate, err)
	}
	if o.EndDate, err = q.parseDate(endDate); err != nil {
		return nil, fmt.Errorf("parse override end %q: %w", endDate, err)
	}
	o.StartSlot = intPtr(startSlot)
	o.EndSlot = intPtr(endSlot)
	o.Status = models.OverrideStatus(status)
	return &o, nil
}

// GetOverride returns the override with the given id, or nil.
func (q *Queries) GetOverride(ctx context.Context, id int64) (*models.Override, error) {
	o, err := q.scanOverride(q.conn.QueryRowContext(ctx, overrideSelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get override: %w", err)
	}
	return o, nil
}

// InsertOverride stores o and sets its ID.
func (q *Queries) InsertOverride(ctx context.Context, o *models.Override) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	res, err := q.conn.ExecContext(ctx, `
		INSERT INTO laundry_overrides (machine, start_date, end_date, start_slot, end_slot, status, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.Machine, formatDate(o.StartDate), formatDate(o.EndDate), nullInt(o.StartSlot), nullInt(o.EndSlot),
		string(o.Status), o.CreatedBy, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert override: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last id: %w", err)
	}
	o.ID = id
	return nil
}

// UpdateOverride rewrites every mutable column of o.
func (q *Queries) UpdateOverride(ctx context.Context, o *models.Override) error {
	_, err := q.conn.ExecContext(ctx, `
		UPDATE laundry_overrides
		SET machine = ?, start_date = ?, end_date = ?, start_slot = ?, end_slot = ?, status = ?
		WHERE id = ?`,
		o.Machine, formatDate(o.StartDate), formatDate(o.EndDate), nullInt(o.StartSlot), nullInt(o.EndSlot),
		string(o.Status), o.ID,
	)
	if err != nil {
		return fmt.Errorf("update override: %w", err)
	}
	return nil
}

// DeleteOverride removes an override.
func (q *Queries) DeleteOverride(ctx context.Context, id int64) error {
	if _, err := q.conn.ExecContext(ctx, `DELETE FROM laundry_overrides WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete override: %w", err)
	}
	return nil
}

// ListOverrides returns overrides whose date range intersects [f.From, f.To].
func (q *Queries) ListOverrides(ctx context.Context, f domain.OverrideFilter) ([]models.Override, error) {
	w := &where{}
	if f.Machine != "" {
		w.add("machine = ?", f.Machine)
	}
	if !f.From.IsZero() {
		w.add("end_date >= ?", formatDate(f.From))
	}
	if !f.To.IsZero() {
		w.add("start_date <= ?", formatDate(f.To))
	}

	rows, err := q.conn.QueryContext(ctx, overrideSelect+w.String()+` ORDER BY start_date, id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	defer rows.Close()

	var overrides []models.Override
	for rows.Next() {
		o, err := q.scanOverride(rows)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, *o)
	}
	return overrides, rows.Err()
}
