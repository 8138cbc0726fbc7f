// Package reports exports the admin overview to a Google spreadsheet so the
// ledger owner can share standings outside the app.
package reports

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"campusledger/internal/log"
	"campusledger/internal/services"
)

// Exporter writes overview snapshots to one sheet of a spreadsheet.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// NewExporter creates a Sheets exporter for the given spreadsheet. Service
// account credentials come from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func NewExporter(ctx context.Context, spreadsheetID, sheetName string, logger *log.Logger) (*Exporter, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(sheetName) == "" {
		sheetName = "Overview"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.WithComponent(log.ComponentReports),
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	inlineJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	credsFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inlineJSON == "" && credsFile == "" {
		credsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case inlineJSON != "":
		credentialsJSON = []byte(inlineJSON)
	case credsFile != "":
		data, err := os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	return gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// ExportOverview replaces the sheet contents with the given overview rows,
// one row per student plus a header and a timestamp.
func (e *Exporter) ExportOverview(ctx context.Context, rows []services.OverviewRow) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}

	clearRange := fmt.Sprintf("%s!A:E", e.sheetName)
	_, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear sheet %s: %w", e.sheetName, err)
	}

	values := [][]any{
		{"Rank", "Student", "Records", "Total", "Risk"},
	}
	for _, row := range rows {
		values = append(values, []any{
			row.Rank,
			row.StudentID,
			row.Count,
			float64(row.Total.Cents) / 100.0,
			string(row.Risk),
		})
	}
	values = append(values, []any{"", "", "", "exported", time.Now().UTC().Format(time.RFC3339)})

	writeRange := fmt.Sprintf("%s!A1:E%d", e.sheetName, len(values))
	vr := &gsheet.ValueRange{Values: values}
	_, err = e.svc.Spreadsheets.Values.Update(e.spreadsheetID, writeRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update sheet %s: %w", e.sheetName, err)
	}

	e.logger.InfoContext(ctx, "exported admin overview",
		"spreadsheet_id", e.spreadsheetID,
		"sheet", e.sheetName,
		"rows", len(rows))

	return nil
}
