package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"guckelsberg/internal/models"
)

const userColumns = `room_number, name, role, last_booking_activity,
	max_washer_minutes_per_week, max_dryer_minutes_per_week, telegram_chat_id, created_at`

func scanUser(r rowScanner) (*models.User, error) {
	var (
		u             models.User
		role          string
		lastActivity  sql.NullTime
		washer, dryer sql.NullInt64
	)
	if err := r.Scan(&u.RoomNumber, &u.Name, &role, &lastActivity, &washer, &dryer, &u.TelegramChatID, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	u.LastBookingActivity = timePtr(lastActivity)
	u.MaxWasherMinutesPerWeek = intPtr(washer)
	u.MaxDryerMinutesPerWeek = intPtr(dryer)
	return &u, nil
}

// GetUser returns the user with the given room number, or nil.
func (q *Queries) GetUser(ctx context.Context, roomNumber string) (*models.User, error) {
	row := q.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE room_number = ?`, roomNumber)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UpsertUser creates the user or refreshes its name. Role, limits and activity are left untouched.
func (q *Queries) UpsertUser(ctx context.Context, u *models.User) error {
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := q.conn.ExecContext(ctx, `
		INSERT INTO users (room_number, name, role, telegram_chat_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(room_number) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE users.name END`,
		u.RoomNumber, u.Name, string(u.Role), u.TelegramChatID, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// ListUsers returns all users ordered by room number.
func (q *Queries) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := q.conn.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY room_number`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// SetUserRole changes the role of an existing user.
func (q *Queries) SetUserRole(ctx context.Context, roomNumber string, role models.Role) error {
	return q.updateUser(ctx, "set role", `UPDATE users SET role = ? WHERE room_number = ?`, string(role), roomNumber)
}

// SetWeeklyLimits sets personal minute caps; nil restores the system default.
func (q *Queries) SetWeeklyLimits(ctx context.Context, roomNumber string, washer, dryer *int) error {
	return q.updateUser(ctx, "set weekly limits",
		`UPDATE users SET max_washer_minutes_per_week = ?, max_dryer_minutes_per_week = ? WHERE room_number = ?`,
		nullInt(washer), nullInt(dryer), roomNumber)
}

// SetTelegramChat links a Telegram chat to the user for notifications.
func (q *Queries) SetTelegramChat(ctx context.Context, roomNumber string, chatID int64) error {
	return q.updateUser(ctx, "set telegram chat", `UPDATE users SET telegram_chat_id = ? WHERE room_number = ?`, chatID, roomNumber)
}

// TouchBookingActivity records the time of the user's latest booking action.
func (q *Queries) TouchBookingActivity(ctx context.Context, roomNumber string, at time.Time) error {
	return q.updateUser(ctx, "touch booking activity", `UPDATE users SET last_booking_activity = ? WHERE room_number = ?`, at, roomNumber)
}

func (q *Queries) updateUser(ctx context.Context, op, query string, args ...any) error {
	res, err := q.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, sql.ErrNoRows)
	}
	return nil
}
