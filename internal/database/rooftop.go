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

const rooftopSelect = `SELECT id, booker, date, reason, created_at FROM rooftop_bookings`

func (q *Queries) scanRooftopBooking(r rowScanner) (*models.RooftopBooking, error) {
	var (
		b    models.RooftopBooking
		date string
	)
	if err := r.Scan(&b.ID, &b.Booker, &date, &b.Reason, &b.CreatedAt); err != nil {
		return nil, err
	}
	d, err := q.parseDate(date)
	if err != nil {
		return nil, fmt.Errorf("parse rooftop date %q: %w", date, err)
	}
	b.Date = d
	return &b, nil
}

func (q *Queries) getRooftopBooking(ctx context.Context, cond string, arg any) (*models.RooftopBooking, error) {
	b, err := q.scanRooftopBooking(q.conn.QueryRowContext(ctx, rooftopSelect+` WHERE `+cond, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rooftop booking: %w", err)
	}
	return b, nil
}

// GetRooftopBooking returns the rooftop booking with the given id, or nil.
func (q *Queries) GetRooftopBooking(ctx context.Context, id int64) (*models.RooftopBooking, error) {
	return q.getRooftopBooking(ctx, "id = ?", id)
}

// GetRooftopBookingByDate returns the booking on date, or nil.
func (q *Queries) GetRooftopBookingByDate(ctx context.Context, date time.Time) (*models.RooftopBooking, error) {
	return q.getRooftopBooking(ctx, "date = ?", formatDate(date))
}

// InsertRooftopBooking stores b and sets its ID. A taken date yields domain.ErrDuplicate.
func (q *Queries) InsertRooftopBooking(ctx context.Context, b *models.RooftopBooking) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	res, err := q.conn.ExecContext(ctx,
		`INSERT INTO rooftop_bookings (booker, date, reason, created_at) VALUES (?, ?, ?, ?)`,
		b.Booker, formatDate(b.Date), b.Reason, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert rooftop booking: %w", mapConstraint(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last id: %w", err)
	}
	b.ID = id
	return nil
}

// DeleteRooftopBooking removes a rooftop booking.
func (q *Queries) DeleteRooftopBooking(ctx context.Context, id int64) error {
	if _, err := q.conn.ExecContext(ctx, `DELETE FROM rooftop_bookings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete rooftop booking: %w", err)
	}
	return nil
}

// ListRooftopBookings returns rooftop bookings matching f.
func (q *Queries) ListRooftopBookings(ctx context.Context, f domain.RooftopFilter) ([]models.RooftopBooking, error) {
	w := &where{}
	if f.Booker != "" {
		w.add("booker = ?", f.Booker)
	}
	if !f.From.IsZero() {
		w.add("date >= ?", formatDate(f.From))
	}
	if !f.To.IsZero() {
		w.add("date <= ?", formatDate(f.To))
	}
	order := " ORDER BY date"
	if f.Newest {
		order = " ORDER BY date DESC"
	}

	rows, err := q.conn.QueryContext(ctx, rooftopSelect+w.String()+order, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list rooftop bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.RooftopBooking
	for rows.Next() {
		b, err := q.scanRooftopBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}
