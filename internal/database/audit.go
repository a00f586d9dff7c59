package database

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"
)

// AuditTableNames lists the tables included in audit exports.
var AuditTableNames = []string{
	"users",
	"machines",
	"laundry_bookings",
	"laundry_overrides",
	"rooftop_bookings",
	"rooftop_requests",
}

// GetTableNames returns the tables to export.
func (db *DB) GetTableNames(ctx context.Context) ([]string, error) {
	return AuditTableNames, nil
}

// GetTableData returns all rows of an audited table as maps keyed by column.
func (db *DB) GetTableData(ctx context.Context, tableName string) (data []map[string]any, columns []string, err error) {
	if !slices.Contains(AuditTableNames, tableName) {
		return nil, nil, fmt.Errorf("invalid table name: %s", tableName)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return nil, nil, err
	}
	for rows.Next() {
		var (
			cid            int
			name, typeName string
			notNull, pk    int
			dfltValue      sql.NullString
		)
		if err = rows.Scan(&cid, &name, &typeName, &notNull, &dfltValue, &pk); err != nil {
			rows.Close()
			return nil, nil, err
		}
		columns = append(columns, name)
	}
	rows.Close()

	if len(columns) == 0 {
		return nil, nil, fmt.Errorf("table %s has no columns", tableName)
	}

	dataRows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", tableName))
	if err != nil {
		return nil, nil, err
	}
	defer dataRows.Close()

	for dataRows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err = dataRows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		data = append(data, row)
	}
	return data, columns, dataRows.Err()
}

// DeleteOldBookings removes laundry bookings and decided rooftop requests dated before now-olderThan.
func (db *DB) DeleteOldBookings(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := formatDate(time.Now().In(db.loc).Add(-olderThan))

	var total int64
	res, err := db.ExecContext(ctx, `DELETE FROM laundry_bookings WHERE date < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old laundry bookings: %w", err)
	}
	n, _ := res.RowsAffected()
	total += n

	res, err = db.ExecContext(ctx, `DELETE FROM rooftop_requests WHERE date < ? AND status != 'REQUESTED'`, cutoff)
	if err != nil {
		return total, fmt.Errorf("delete old rooftop requests: %w", err)
	}
	n, _ = res.RowsAffected()
	total += n

	return total, nil
}
