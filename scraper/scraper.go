// Package scraper handles fetching and parsing chalet vacancy pages.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/codeGROOVE-dev/retry"

	"chalet-notifier/pkg/vacancy"
)

// FetchError indicates a network or HTTP failure for a specific page.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError checks if an error is a page fetch error.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// Scraper fetches and parses chalet vacancy tables.
type Scraper struct {
	client *http.Client
	logger *slog.Logger
}

// New creates a new scraper.
func New(client *http.Client, logger *slog.Logger) *Scraper {
	return &Scraper{
		client: client,
		logger: logger,
	}
}

// Check fetches the page for one offer and parses its vacancy table starting
// at rowOffset (1-based table row where data begins).
func (s *Scraper) Check(ctx context.Context, offer vacancy.Offer, rowOffset int) (vacancy.Observation, error) {
	body, err := s.fetch(ctx, offer.SourceURL)
	if err != nil {
		return vacancy.Observation{}, err
	}
	defer func() {
		if closeErr := body.Close(); closeErr != nil {
			s.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	slots, err := ParseVacancyTable(body, rowOffset)
	if err != nil {
		return vacancy.Observation{}, &FetchError{URL: offer.SourceURL, Err: err}
	}

	obs := vacancy.Observation{Offer: offer, Slots: slots}
	for _, slot := range slots {
		if !slot.Booked {
			obs.HasVacancy = true
			break
		}
	}

	s.logger.Info("Chalet page checked",
		"url", offer.SourceURL,
		"rows", len(slots),
		"has_vacancy", obs.HasVacancy)

	return obs, nil
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (io.ReadCloser, error) {
	var body io.ReadCloser

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}

			// Browser-identifying headers; these legacy sites sit behind
			// Cloudflare and answer 406 to anonymous clients.
			req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
			req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
			req.Header.Set("Accept-Language", "en-US,en;q=0.9")

			startTime := time.Now()
			resp, err := s.client.Do(req)
			duration := time.Since(startTime)

			if err != nil {
				s.logger.Warn("HTTP request failed, will retry",
					"url", pageURL,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}

			s.logger.Info("HTTP request completed",
				"url", pageURL,
				"status_code", resp.StatusCode,
				"duration_ms", duration.Milliseconds(),
				"content_length", resp.ContentLength)

			if resp.StatusCode != http.StatusOK {
				if closeErr := resp.Body.Close(); closeErr != nil {
					s.logger.Warn("Failed to close response body", "error", closeErr)
				}
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}

			body = resp.Body
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Info("Retrying fetch after error", "url", pageURL, "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}

	return body, nil
}

// ParseVacancyTable extracts availability slots from a chalet vacancy page.
// Data cells start at rowOffset (1-based); empty cells are skipped.
func ParseVacancyTable(body io.Reader, rowOffset int) ([]vacancy.Slot, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, err
	}

	var slots []vacancy.Slot
	selector := fmt.Sprintf("table tr:nth-child(n+%d) td", rowOffset)
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		slots = append(slots, ParseCell(text))
	})

	return slots, nil
}

// ParseCell splits one table cell into a date label and its availability
// value. The first tab- or newline-separated field is the date; the rest is
// the value. A cell is booked when the value is empty or contains "NO".
func ParseCell(text string) vacancy.Slot {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\t' || r == '\n' || r == '\r'
	})

	var label, value string
	if len(fields) > 0 {
		label = strings.TrimSpace(fields[0])
	}
	if len(fields) > 1 {
		rest := make([]string, 0, len(fields)-1)
		for _, f := range fields[1:] {
			if f = strings.TrimSpace(f); f != "" {
				rest = append(rest, f)
			}
		}
		value = strings.Join(rest, " ")
	}

	return vacancy.Slot{
		Label:  label,
		Value:  value,
		Booked: value == "" || strings.Contains(value, "NO"),
	}
}
