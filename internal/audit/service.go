// Package audit exports the database to a monthly workbook and prunes old bookings.
package audit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"guckelsberg/internal/clock"
)

const runTimeout = 30 * time.Minute

// TableExporter provides the tables included in the export.
type TableExporter interface {
	GetTableNames(ctx context.Context) ([]string, error)
	GetTableData(ctx context.Context, tableName string) ([]map[string]any, []string, error)
}

// DataCleaner removes data past its retention.
type DataCleaner interface {
	DeleteOldBookings(ctx context.Context, olderThan time.Duration) (int64, error)
}

// DocumentSender delivers the exported workbook, e.g. to the admin chat.
type DocumentSender interface {
	SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error
}

// Config holds configuration for the audit service.
type Config struct {
	ExportDir     string
	RetentionDays int
}

// Service runs the monthly export and cleanup.
type Service struct {
	cfg      Config
	exporter TableExporter
	cleaner  DataCleaner
	sender   DocumentSender
	clock    clock.Clock
	logger   zerolog.Logger
}

// NewService creates the audit service. sender may be nil.
func NewService(cfg Config, exporter TableExporter, cleaner DataCleaner, sender DocumentSender, clk clock.Clock, logger zerolog.Logger) *Service {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 62
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = "exports"
	}
	return &Service{
		cfg:      cfg,
		exporter: exporter,
		cleaner:  cleaner,
		sender:   sender,
		clock:    clk,
		logger:   logger.With().Str("component", "audit").Logger(),
	}
}

// Start runs the export and cleanup shortly after the start of every month until ctx is done.
func (s *Service) Start(ctx context.Context) {
	go func() {
		for {
			next := NextRun(s.clock.Now())
			s.logger.Info().Time("at", next).Msg("next audit scheduled")
			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce exports the database and then removes expired data. Failures are logged.
func (s *Service) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	if _, err := s.Export(ctx); err != nil {
		s.logger.Error().Err(err).Msg("audit export failed")
	}
	if _, err := s.Cleanup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("audit cleanup failed")
	}
}

// Export writes every audited table into a workbook named after the previous month
// and returns its path.
func (s *Service) Export(ctx context.Context) (string, error) {
	runID := uuid.NewString()
	tables, err := s.exporter.GetTableNames(ctx)
	if err != nil {
		return "", fmt.Errorf("get table names: %w", err)
	}

	wb := NewWorkbook()
	defer wb.Close()

	for _, table := range tables {
		data, columns, err := s.exporter.GetTableData(ctx, table)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", table, err)
		}
		if err := wb.AddSheet(table); err != nil {
			return "", err
		}
		if err := wb.WriteHeader(columns); err != nil {
			return "", err
		}
		for _, row := range data {
			values := make([]interface{}, len(columns))
			for i, col := range columns {
				values[i] = cellValue(row[col])
			}
			if err := wb.WriteRow(values); err != nil {
				return "", err
			}
		}
		s.logger.Debug().Str("run", runID).Str("table", table).Int("rows", len(data)).Msg("table exported")
	}

	var buf bytes.Buffer
	if err := wb.Save(&buf); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	if err := os.MkdirAll(s.cfg.ExportDir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	name := Filename(s.clock.Now().AddDate(0, -1, 0))
	path := filepath.Join(s.cfg.ExportDir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write workbook: %w", err)
	}

	if s.sender != nil {
		caption := "📊 Monthly report " + name
		if err := s.sender.SendDocument(ctx, name, bytes.NewReader(buf.Bytes()), caption); err != nil {
			return path, fmt.Errorf("send document: %w", err)
		}
	}

	s.logger.Info().Str("run", runID).Str("path", path).Int("tables", len(tables)).Msg("audit exported")
	return path, nil
}

// Cleanup removes bookings older than the retention period.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	retention := time.Duration(s.cfg.RetentionDays) * 24 * time.Hour
	deleted, err := s.cleaner.DeleteOldBookings(ctx, retention)
	if err != nil {
		return 0, fmt.Errorf("delete old bookings: %w", err)
	}
	s.logger.Info().Int64("deleted", deleted).Int("retention_days", s.cfg.RetentionDays).Msg("old data cleaned up")
	return deleted, nil
}

// Filename names the workbook of the month containing t, e.g. "guckelsberg_2024-05.xlsx".
func Filename(t time.Time) string {
	return fmt.Sprintf("guckelsberg_%s.xlsx", t.Format("2006-01"))
}

// NextRun returns 00:05 on the first day of the month after now.
func NextRun(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 5, 0, 0, now.Location())
}

// cellValue converts driver values excelize cannot write as-is.
func cellValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
