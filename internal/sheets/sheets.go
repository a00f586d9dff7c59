// Package sheets mirrors the upcoming rooftop calendar into a Google spreadsheet.
package sheets

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Writer is the part of the Sheets API the mirror uses.
type Writer interface {
	Clear(ctx context.Context, sheetRange string) error
	Update(ctx context.Context, sheetRange string, rows [][]interface{}) error
}

type apiWriter struct {
	srv           *sheets.Service
	spreadsheetID string
}

// NewWriter authenticates with a service-account credentials file.
func NewWriter(ctx context.Context, credentialsFile, spreadsheetID string) (Writer, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	cfg, err := google.JWTConfigFromJSON(data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &apiWriter{srv: srv, spreadsheetID: spreadsheetID}, nil
}

func (w *apiWriter) Clear(ctx context.Context, sheetRange string) error {
	_, err := w.srv.Spreadsheets.Values.Clear(w.spreadsheetID, sheetRange, &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", sheetRange, err)
	}
	return nil
}

func (w *apiWriter) Update(ctx context.Context, sheetRange string, rows [][]interface{}) error {
	_, err := w.srv.Spreadsheets.Values.Update(w.spreadsheetID, sheetRange, &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", sheetRange, err)
	}
	return nil
}
