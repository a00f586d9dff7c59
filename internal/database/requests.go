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

const requestSelect = `
	SELECT id, booker, date, reason, contact, time_span, status,
	       reviewed_by, reviewed_at, decision_reason, created_at
	FROM rooftop_requests`

func (q *Queries) scanRequest(r rowScanner) (*models.RooftopRequest, error) {
	var (
		req                        models.RooftopRequest
		date, status               string
		reviewedBy, decisionReason sql.NullString
		reviewedAt                 sql.NullTime
	)
	if err := r.Scan(&req.ID, &req.Booker, &date, &req.Reason, &req.Contact, &req.TimeSpan, &status,
		&reviewedBy, &reviewedAt, &decisionReason, &req.CreatedAt); err != nil {
		return nil, err
	}
	d, err := q.parseDate(date)
	if err != nil {
		return nil, fmt.Errorf("parse request date %q: %w", date, err)
	}
	req.Date = d
	req.Status = models.RequestStatus(status)
	req.ReviewedBy = reviewedBy.String
	req.ReviewedAt = timePtr(reviewedAt)
	req.DecisionReason = decisionReason.String
	return &req, nil
}

func (q *Queries) getRequest(ctx context.Context, cond string, args ...any) (*models.RooftopRequest, error) {
	req, err := q.scanRequest(q.conn.QueryRowContext(ctx, requestSelect+` WHERE `+cond, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rooftop request: %w", err)
	}
	return req, nil
}

// GetRequest returns the request with the given id, or nil.
func (q *Queries) GetRequest(ctx context.Context, id int64) (*models.RooftopRequest, error) {
	return q.getRequest(ctx, "id = ?", id)
}

// FindActiveRequest returns the pending request of booker for date, or nil.
func (q *Queries) FindActiveRequest(ctx context.Context, booker string, date time.Time) (*models.RooftopRequest, error) {
	return q.getRequest(ctx, "booker = ? AND date = ? AND status = ?", booker, formatDate(date), string(models.RequestRequested))
}

// InsertRequest stores r and sets its ID. A second pending request for the same booker and date yields domain.ErrDuplicate.
func (q *Queries) InsertRequest(ctx context.Context, r *models.RooftopRequest) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	res, err := q.conn.ExecContext(ctx, `
		INSERT INTO rooftop_requests (booker, date, reason, contact, time_span, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Booker, formatDate(r.Date), r.Reason, r.Contact, r.TimeSpan, string(r.Status), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert rooftop request: %w", mapConstraint(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last id: %w", err)
	}
	r.ID = id
	return nil
}

// UpdateRequest persists the review state of r.
func (q *Queries) UpdateRequest(ctx context.Context, r *models.RooftopRequest) error {
	_, err := q.conn.ExecContext(ctx, `
		UPDATE rooftop_requests
		SET status = ?, reviewed_by = ?, reviewed_at = ?, decision_reason = ?
		WHERE id = ?`,
		string(r.Status), nullString(r.ReviewedBy), nullTime(r.ReviewedAt), nullString(r.DecisionReason), r.ID,
	)
	if err != nil {
		return fmt.Errorf("update rooftop request: %w", mapConstraint(err))
	}
	return nil
}

func requestWhere(f domain.RequestFilter) *where {
	w := &where{}
	if f.Booker != "" {
		w.add("booker = ?", f.Booker)
	}
	if f.Status != "" {
		w.add("status = ?", string(f.Status))
	}
	if !f.From.IsZero() {
		w.add("date >= ?", formatDate(f.From))
	}
	if !f.To.IsZero() {
		w.add("date <= ?", formatDate(f.To))
	}
	return w
}

// ListRequests returns requests matching f, newest date first.
func (q *Queries) ListRequests(ctx context.Context, f domain.RequestFilter) ([]models.RooftopRequest, error) {
	w := requestWhere(f)
	rows, err := q.conn.QueryContext(ctx, requestSelect+w.String()+` ORDER BY date DESC, created_at DESC, id DESC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list rooftop requests: %w", err)
	}
	defer rows.Close()

	var requests []models.RooftopRequest
	for rows.Next() {
		req, err := q.scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// CountRequests counts requests matching f.
func (q *Queries) CountRequests(ctx context.Context, f domain.RequestFilter) (int, error) {
	w := requestWhere(f)
	var n int
	if err := q.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooftop_requests`+w.String(), w.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rooftop requests: %w", err)
	}
	return n, nil
}
