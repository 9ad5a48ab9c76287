// Package google exports the transaction archive to a Google Sheets tab.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"moneynotes/internal/apperr"
	"moneynotes/internal/core"
)

// Header is the first row written to the sheet.
var Header = []any{"Date", "Time", "Type", "Category", "Amount", "Note", "ID"}

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// NewFromEnv creates an exporter authenticated with a service account.
// Credentials come from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE
// or GOOGLE_APPLICATION_CREDENTIALS, in that order.
func NewFromEnv(ctx context.Context, spreadsheetID, sheetName string) (*Exporter, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	credentialsJSON, err := loadCredentials()
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets exporter ready", "sheet", sheetName)
	return New(svc, spreadsheetID, sheetName), nil
}

// New wraps an existing service.
func New(svc *gsheet.Service, spreadsheetID, sheetName string) *Exporter {
	if sheetName == "" {
		sheetName = "Transactions"
	}
	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}
}

func loadCredentials() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}

	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// Export clears the sheet and rewrites it with txns, oldest first. It
// returns the number of data rows written.
func (e *Exporter) Export(ctx context.Context, txns []core.Transaction) (int, error) {
	if e.svc == nil {
		return 0, apperr.Internal("export sheets", errors.New("sheets service not initialized"))
	}

	start := time.Now()

	clearRange := fmt.Sprintf("%s!A:G", e.sheetName)
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return 0, apperr.Connectivity("export sheets", fmt.Errorf("clear %s: %w", clearRange, err))
	}

	values := append([][]any{Header}, Rows(txns)...)
	writeRange := fmt.Sprintf("%s!A1:G%d", e.sheetName, len(values))
	vr := &gsheet.ValueRange{Values: values}

	if _, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, writeRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return 0, apperr.Connectivity("export sheets", fmt.Errorf("update %s: %w", writeRange, err))
	}

	slog.InfoContext(ctx, "Archive exported to Google Sheets",
		"rows", len(txns),
		"sheet", e.sheetName,
		"duration_ms", time.Since(start).Milliseconds())

	return len(txns), nil
}

// Rows renders txns as sheet rows ordered by date and time, oldest first.
func Rows(txns []core.Transaction) [][]any {
	sorted := append([]core.Transaction(nil), txns...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OccurredAt(time.UTC).Before(sorted[j].OccurredAt(time.UTC))
	})

	rows := make([][]any, 0, len(sorted))
	for _, tx := range sorted {
		clock := ""
		if tx.Time != nil {
			clock = tx.Time.String()
		}
		rows = append(rows, []any{
			tx.Date.String(),
			clock,
			string(tx.Type),
			tx.Category,
			tx.Amount.StringFixed(2),
			tx.Note,
			tx.ID,
		})
	}
	return rows
}
