package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/sheets/v4"

	"chalet-notifier/pkg/vacancy"
)

// SheetsStore persists records in a Google Sheets range with the columns
// recipient, sourceUrl, startDate, endDate under a header row.
type SheetsStore struct {
	service       *sheets.Service
	logger        *slog.Logger
	spreadsheetID string
	readRange     string // e.g. "Notifications!A:D"
}

// NewSheetsStore creates a spreadsheet-backed record store.
func NewSheetsStore(service *sheets.Service, spreadsheetID, readRange string, logger *slog.Logger) *SheetsStore {
	return &SheetsStore{
		service:       service,
		logger:        logger,
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
	}
}

// LoadAll reads the whole range in one page and drops the header row.
func (s *SheetsStore) LoadAll(ctx context.Context) ([]vacancy.Record, error) {
	var resp *sheets.ValueRange

	err := retry.Do(
		func() error {
			var getErr error
			resp, getErr = s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).
				Context(ctx).
				Do()
			return getErr
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying sheet read after error", "attempt", n, "error", retryErr)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", s.readRange, err)
	}

	var records []vacancy.Record
	for i, row := range resp.Values {
		if i == 0 {
			continue // header
		}
		rec, err := RowToRecord(stringRow(row))
		if err != nil {
			return nil, fmt.Errorf("sheet row %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Append adds one row per record below the existing data.
func (s *SheetsStore) Append(ctx context.Context, records []vacancy.Record) error {
	values := make([][]any, 0, len(records))
	for _, rec := range records {
		row := RecordToRow(rec)
		values = append(values, []any{row[0], row[1], row[2], row[3]})
	}

	err := retry.Do(
		func() error {
			_, appendErr := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.readRange, &sheets.ValueRange{
				Values: values,
			}).
				ValueInputOption("RAW").
				InsertDataOption("INSERT_ROWS").
				Context(ctx).
				Do()
			return appendErr
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying sheet append after error", "attempt", n, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", s.readRange, err)
	}
	return nil
}

func stringRow(row []any) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		if s, ok := cell.(string); ok {
			out[i] = s
		} else {
			out[i] = fmt.Sprint(cell)
		}
	}
	return out
}
