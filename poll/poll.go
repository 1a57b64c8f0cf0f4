// Package poll runs the check-and-notify cycle: filter already-notified
// offers, scrape the rest, aggregate vacancies, notify, record.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chalet-notifier/pkg/vacancy"
)

// ChaletSite is one legacy vacancy page to watch.
type ChaletSite struct {
	URL       string
	RowOffset int // 1-based table row where data begins
}

// Config is the external input for the monitor, loaded once at startup and
// immutable for the lifetime of the process.
type Config struct {
	Recipients []string
	Chalets    []ChaletSite
	ParkIDs    []string
	Dates      *vacancy.DateRange // campground search window; nil disables the source
	Interval   time.Duration      // <= 0 means run once and exit
}

// Scraper checks one chalet page.
type Scraper interface {
	Check(ctx context.Context, offer vacancy.Offer, rowOffset int) (vacancy.Observation, error)
}

// Campground checks availability for a set of parks over a date range.
type Campground interface {
	Check(ctx context.Context, parkIDs []string, dates vacancy.DateRange) ([]vacancy.Observation, error)
}

// CampgroundURL builds the offer identity for one park. Matches the
// campground adapter's synthetic URLs so ledger filtering lines up.
type CampgroundURL func(parkID string) string

// Ledger answers and records who has been told about what.
type Ledger interface {
	Hydrate(ctx context.Context)
	FullyNotified(recipients []string, offer vacancy.Offer) bool
	RecordAll(ctx context.Context, recipients []string, offers []vacancy.Offer)
}

// Notifier delivers the consolidated vacancy message.
type Notifier interface {
	SendVacancies(ctx context.Context, recipients []string, offers []vacancy.Offer) error
}

// Monitor orchestrates runs.
type Monitor struct {
	cfg        Config
	scraper    Scraper
	campground Campground
	parkURL    CampgroundURL
	ledger     Ledger
	notifier   Notifier
	logger     *slog.Logger
}

// New creates a monitor.
func New(cfg Config, scraper Scraper, campground Campground, parkURL CampgroundURL, ledger Ledger, notifier Notifier, logger *slog.Logger) *Monitor {
	return &Monitor{
		cfg:        cfg,
		scraper:    scraper,
		campground: campground,
		parkURL:    parkURL,
		ledger:     ledger,
		notifier:   notifier,
		logger:     logger,
	}
}

// Run executes the cycle once when no interval is configured, otherwise
// loops forever. Each delay is armed only after the previous run fully
// completes, so runs never overlap; a run longer than the interval simply
// delays the next one. Run errors are logged and the loop continues with the
// next tick.
func (m *Monitor) Run(ctx context.Context) error {
	if m.cfg.Interval <= 0 {
		m.logger.Info("No interval configured, running once")
		return m.RunOnce(ctx)
	}

	m.logger.Info("Starting scheduler", "interval", m.cfg.Interval.String())
	for {
		if err := m.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Error("Run failed, waiting for next tick", "error", err)
		}

		timer := time.NewTimer(m.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RunOnce executes one full check-and-notify cycle. A chalet fetch error
// aborts the cycle (nothing is sent or recorded); a campground subprocess
// error only skips that source for the run.
func (m *Monitor) RunOnce(ctx context.Context) error {
	start := time.Now()
	m.ledger.Hydrate(ctx)

	if len(m.cfg.Recipients) == 0 {
		m.logger.Info("no emails configured, skipping run")
		return nil
	}

	vacant, err := m.collectVacancies(ctx)
	if err != nil {
		return err
	}

	if len(vacant) == 0 {
		m.logger.Info("No sites with vacancies. Not sending notification.",
			"duration_ms", time.Since(start).Milliseconds())
		return nil
	}

	if err := m.notifier.SendVacancies(ctx, m.cfg.Recipients, vacant); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	// Only after confirmed delivery: record every (recipient, offer) pair so
	// the next run skips these offers entirely.
	m.ledger.RecordAll(ctx, m.cfg.Recipients, vacant)

	m.logger.Info("Run completed",
		"vacant_offers", len(vacant),
		"recipients", len(m.cfg.Recipients),
		"duration_ms", time.Since(start).Milliseconds())

	return nil
}

// collectVacancies checks every offer that at least one recipient has not
// been told about, in configuration order, and returns the vacant ones.
func (m *Monitor) collectVacancies(ctx context.Context) ([]vacancy.Offer, error) {
	var vacant []vacancy.Offer
	seen := make(map[string]bool)
	var checked, skipped int

	for _, site := range m.cfg.Chalets {
		offer := vacancy.Offer{SourceURL: site.URL}
		if m.ledger.FullyNotified(m.cfg.Recipients, offer) {
			m.logger.Debug("Skipping offer (all recipients already notified)", "url", site.URL)
			skipped++
			continue
		}

		obs, err := m.scraper.Check(ctx, offer, site.RowOffset)
		if err != nil {
			m.logger.Error("Chalet check failed, aborting run cycle", "url", site.URL, "error", err)
			return nil, err
		}
		checked++

		if obs.HasVacancy && !seen[offer.Key()] {
			seen[offer.Key()] = true
			vacant = append(vacant, obs.Offer)
		}
	}

	if m.cfg.Dates != nil && len(m.cfg.ParkIDs) > 0 {
		var remaining []string
		for _, parkID := range m.cfg.ParkIDs {
			offer := vacancy.Offer{SourceURL: m.parkURL(parkID), DateRange: m.cfg.Dates}
			if m.ledger.FullyNotified(m.cfg.Recipients, offer) {
				m.logger.Debug("Skipping park (all recipients already notified)", "park_id", parkID)
				skipped++
				continue
			}
			remaining = append(remaining, parkID)
		}

		if len(remaining) > 0 {
			observations, err := m.campground.Check(ctx, remaining, *m.cfg.Dates)
			if err != nil {
				// Degrade rather than abort: one broken source must not
				// suppress notifications derivable from the chalet pages.
				m.logger.Warn("Campground check failed, skipping source for this run", "error", err)
			} else {
				checked += len(remaining)
				for _, obs := range observations {
					if obs.HasVacancy && !seen[obs.Offer.Key()] {
						seen[obs.Offer.Key()] = true
						vacant = append(vacant, obs.Offer)
					}
				}
			}
		}
	}

	m.logger.Info("Offers checked",
		"checked", checked,
		"skipped", skipped,
		"vacant", len(vacant))

	return vacant, nil
}
