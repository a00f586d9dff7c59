package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"guckelsberg/internal/domain"
	"guckelsberg/internal/models"
)

const slotBookingSelect = `
	SELECT b.id, b.machine, m.type, m.slot_duration, b.booker, b.date, b.slot_start,
	       b.reminder_sent, b.created_at
	FROM laundry_bookings b
	JOIN machines m ON m.name = b.machine`

func (q *Queries) scanSlotBooking(r rowScanner) (*models.SlotBooking, error) {
	var (
		b    models.SlotBooking
		typ  string
		date string
	)
	if err := r.Scan(&b.ID, &b.Machine, &typ, &b.SlotDuration, &b.Booker, &date, &b.SlotStart,
		&b.ReminderSent, &b.CreatedAt); err != nil {
		return nil, err
	}
	d, err := q.parseDate(date)
	if err != nil {
		return nil, fmt.Errorf("parse booking date %q: %w", date, err)
	}
	b.Date = d
	b.MachineType = models.MachineType(typ)
	return &b, nil
}

// GetSlotBooking returns the laundry booking with the given id, or nil.
func (q *Queries) GetSlotBooking(ctx context.Context, id int64) (*models.SlotBooking, error) {
	b, err := q.scanSlotBooking(q.conn.QueryRowContext(ctx, slotBookingSelect+` WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get slot booking: %w", err)
	}
	return b, nil
}

// InsertSlotBooking stores b and sets its ID. A taken (date, slot, machine) yields domain.ErrDuplicate.
func (q *Queries) InsertSlotBooking(ctx context.Context, b *models.SlotBooking) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	res, err := q.conn.ExecContext(ctx, `
		INSERT INTO laundry_bookings (machine, booker, date, slot_start, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		b.Machine, b.Booker, formatDate(b.Date), b.SlotStart, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert slot booking: %w", mapConstraint(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last id: %w", err)
	}
	b.ID = id
	return nil
}

// DeleteSlotBooking removes a laundry booking.
func (q *Queries) DeleteSlotBooking(ctx context.Context, id int64) error {
	if _, err := q.conn.ExecContext(ctx, `DELETE FROM laundry_bookings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete slot booking: %w", err)
	}
	return nil
}

func slotBookingWhere(f domain.SlotBookingFilter) *where {
	w := &where{}
	if f.Machine != "" {
		w.add("b.machine = ?", f.Machine)
	}
	if f.MachineType != "" {
		w.add("m.type = ?", string(f.MachineType))
	}
	if f.Booker != "" {
		w.add("b.booker = ?", f.Booker)
	}
	if !f.From.IsZero() {
		w.add("b.date >= ?", formatDate(f.From))
	}
	if !f.To.IsZero() {
		w.add("b.date <= ?", formatDate(f.To))
	}
	if f.SlotStart != nil {
		w.add("b.slot_start = ?", *f.SlotStart)
	}
	return w
}

// ListSlotBookings returns laundry bookings matching f.
func (q *Queries) ListSlotBookings(ctx context.Context, f domain.SlotBookingFilter) ([]models.SlotBooking, error) {
	w := slotBookingWhere(f)
	query := slotBookingSelect + w.String()
	if f.Newest {
		query += " ORDER BY b.date DESC, b.slot_start DESC, b.machine"
	} else {
		query += " ORDER BY b.date, b.slot_start, b.machine"
	}
	if f.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(f.Limit) + " OFFSET " + strconv.Itoa(f.Offset)
	}

	rows, err := q.conn.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list slot bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.SlotBooking
	for rows.Next() {
		b, err := q.scanSlotBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// CountSlotBookings counts laundry bookings matching f, ignoring paging.
func (q *Queries) CountSlotBookings(ctx context.Context, f domain.SlotBookingFilter) (int, error) {
	w := slotBookingWhere(f)
	var n int
	err := q.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM laundry_bookings b JOIN machines m ON m.name = b.machine`+w.String(), w.args...,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count slot bookings: %w", err)
	}
	return n, nil
}

// MarkReminderSent flags a booking so it is reminded only once.
func (q *Queries) MarkReminderSent(ctx context.Context, id int64) error {
	if _, err := q.conn.ExecContext(ctx, `UPDATE laundry_bookings SET reminder_sent = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}
