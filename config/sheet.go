package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/sheets/v4"

	"chalet-notifier/poll"
)

// Named ranges the configuration spreadsheet must define. Each holds a
// single column (or a single cell for the scalar values).
const (
	rangeRecipients = "Recipients"
	rangeChaletURLs = "ChaletURLs"
	rangeParkIDs    = "ParkIDs"
	rangeStartDate  = "StartDate"
	rangeEndDate    = "EndDate"
	rangeInterval   = "IntervalSeconds"
)

// LoadRunFromSheet builds the run configuration from named ranges of a
// spreadsheet, replacing the env-var lists. All six named ranges must exist;
// an empty range behaves like an unset variable.
func LoadRunFromSheet(ctx context.Context, service *sheets.Service, spreadsheetID string, logger *slog.Logger) (poll.Config, error) {
	resp, err := service.Spreadsheets.Values.BatchGet(spreadsheetID).
		Ranges(rangeRecipients, rangeChaletURLs, rangeParkIDs, rangeStartDate, rangeEndDate, rangeInterval).
		Context(ctx).
		Do()
	if err != nil {
		return poll.Config{}, fmt.Errorf("read config sheet %s: %w", spreadsheetID, err)
	}

	byRange := make(map[string][]string, len(resp.ValueRanges))
	names := []string{rangeRecipients, rangeChaletURLs, rangeParkIDs, rangeStartDate, rangeEndDate, rangeInterval}
	for i, vr := range resp.ValueRanges {
		if i >= len(names) {
			break
		}
		byRange[names[i]] = flattenCells(vr)
	}

	run := poll.Config{
		Recipients: byRange[rangeRecipients],
		ParkIDs:    byRange[rangeParkIDs],
		Interval:   ParseInterval(first(byRange[rangeInterval]), logger),
	}

	urls := byRange[rangeChaletURLs]
	if len(urls) == 0 {
		urls = DefaultChaletURLs
	}
	for _, u := range urls {
		run.Chalets = append(run.Chalets, poll.ChaletSite{URL: u, RowOffset: ChaletRowOffset})
	}

	dates, err := parseDates(first(byRange[rangeStartDate]), first(byRange[rangeEndDate]), len(run.ParkIDs) > 0)
	if err != nil {
		return poll.Config{}, err
	}
	run.Dates = dates

	logger.Info("Configuration loaded from sheet",
		"spreadsheet_id", spreadsheetID,
		"recipients", len(run.Recipients),
		"chalets", len(run.Chalets),
		"parks", len(run.ParkIDs))

	return run, nil
}

func flattenCells(vr *sheets.ValueRange) []string {
	var out []string
	if vr == nil {
		return nil
	}
	for _, row := range vr.Values {
		for _, cell := range row {
			s := strings.TrimSpace(fmt.Sprint(cell))
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
