package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"

	"chalet-notifier/pkg/vacancy"
)

const recordsObject = "notifications.csv"

var csvHeader = []string{"recipient", "sourceUrl", "startDate", "endDate"}

// RecordStore persists records as a CSV file, either under a local directory
// (development) or as a Cloud Storage object (deployment).
type RecordStore struct {
	client    *storage.Client
	logger    *slog.Logger
	localPath string
	bucket    string
}

// NewRecordStore creates a record store. When localPath is non-empty the
// store writes to the local filesystem and the client may be nil.
func NewRecordStore(client *storage.Client, bucket, localPath string, logger *slog.Logger) *RecordStore {
	return &RecordStore{
		client:    client,
		logger:    logger,
		localPath: localPath,
		bucket:    bucket,
	}
}

// LoadAll reads the full CSV, excluding the header row. A missing file or
// object is an empty ledger, not an error.
func (s *RecordStore) LoadAll(ctx context.Context) ([]vacancy.Record, error) {
	data, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return parseRecords(data)
}

// Append rewrites the CSV with the new rows added. Records are small (one
// row per recipient/offer pair, never deleted) so a full rewrite is cheap,
// and it keeps local and bucket modes on one code path.
func (s *RecordStore) Append(ctx context.Context, records []vacancy.Record) error {
	existing, err := s.read(ctx)
	if err != nil {
		return err
	}

	current, err := parseRecords(existing)
	if err != nil {
		// A corrupt file shouldn't lose new records; start over with a
		// warning rather than failing the append.
		s.logger.Warn("Existing records unparseable, rewriting from scratch", "error", err)
		current = nil
	}

	data, err := marshalRecords(append(current, records...))
	if err != nil {
		return err
	}
	return s.write(ctx, data)
}

func (s *RecordStore) read(ctx context.Context) ([]byte, error) {
	// Local filesystem storage
	if s.localPath != "" {
		data, err := os.ReadFile(filepath.Join(s.localPath, recordsObject))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("read local records: %w", err)
		}
		return data, nil
	}

	// Cloud Storage with retry logic for reliability
	var data []byte
	err := retry.Do(
		func() error {
			r, openErr := s.client.Bucket(s.bucket).Object(recordsObject).NewReader(ctx)
			if openErr != nil {
				if errors.Is(openErr, storage.ErrObjectNotExist) {
					return nil
				}
				return fmt.Errorf("open records reader: %w", openErr)
			}
			defer func() {
				if closeErr := r.Close(); closeErr != nil {
					s.logger.Warn("Failed to close records reader", "error", closeErr)
				}
			}()

			readData, readErr := io.ReadAll(r)
			if readErr != nil {
				return fmt.Errorf("read records: %w", readErr)
			}
			data = readData
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying records read after error", "attempt", n, "error", retryErr)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("read after retries: %w", err)
	}
	return data, nil
}

func (s *RecordStore) write(ctx context.Context, data []byte) error {
	// Local filesystem storage
	if s.localPath != "" {
		path := filepath.Join(s.localPath, recordsObject)
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("write local records: %w", err)
		}
		return nil
	}

	// Cloud Storage with retry logic for reliability
	err := retry.Do(
		func() error {
			w := s.client.Bucket(s.bucket).Object(recordsObject).NewWriter(ctx)
			if _, writeErr := w.Write(data); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					s.logger.Warn("Failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write records: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close records writer: %w", closeErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying records write after error", "attempt", n, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("write after retries: %w", err)
	}
	return nil
}

func parseRecords(data []byte) ([]vacancy.Record, error) {
	if len(data) == 0 {
		return nil, nil
	}

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse records csv: %w", err)
	}

	var records []vacancy.Record
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		rec, err := RowToRecord(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func marshalRecords(records []vacancy.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(RecordToRow(rec)); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// RecordToRow converts a record into the four-column row shape shared by the
// CSV and spreadsheet stores. Non-dated offers leave both date columns empty.
func RecordToRow(rec vacancy.Record) []string {
	start, end := "", ""
	if rec.Offer.DateRange != nil {
		start = rec.Offer.DateRange.Start
		end = rec.Offer.DateRange.End
	}
	return []string{rec.Recipient, rec.Offer.SourceURL, start, end}
}

// RowToRecord converts a stored row back into a record. Both date columns
// must be present together or absent together.
func RowToRecord(row []string) (vacancy.Record, error) {
	if len(row) < 2 {
		return vacancy.Record{}, fmt.Errorf("short row: %v", row)
	}

	rec := vacancy.Record{
		Recipient: row[0],
		Offer:     vacancy.Offer{SourceURL: row[1]},
	}

	start, end := "", ""
	if len(row) > 2 {
		start = row[2]
	}
	if len(row) > 3 {
		end = row[3]
	}
	if (start == "") != (end == "") {
		return vacancy.Record{}, fmt.Errorf("half-filled date range in row: %v", row)
	}
	if start != "" {
		rec.Offer.DateRange = &vacancy.DateRange{Start: start, End: end}
	}
	return rec, nil
}
