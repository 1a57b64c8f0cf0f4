// Package config loads run configuration from the environment, or from named
// ranges of a Google Sheet in the spreadsheet-backed deployment.
package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	env "github.com/Netflix/go-env"

	"chalet-notifier/pkg/vacancy"
	"chalet-notifier/poll"
)

// ChaletRowOffset is the 1-based table row where data begins on the legacy
// chalet vacancy pages. Both known sites share the same layout.
const ChaletRowOffset = 3

// DefaultChaletURLs are watched when CHALET_URLS is not set.
var DefaultChaletURLs = []string{
	"http://sperrychalet.com/vacancy_s.html",
	"https://www.graniteparkchalet.com/vacancy_g.html",
}

// Environment is the raw env-var surface.
type Environment struct {
	IntervalSeconds string `env:"INTERVAL_SECONDS"`
	Recipients      string `env:"RECEIVE_EMAIL_ADDRESSES"`
	ChaletURLs      string `env:"CHALET_URLS"`
	ParkIDs         string `env:"PARK_IDS"`
	StartDate       string `env:"START_DATE"`
	EndDate         string `env:"END_DATE"`

	CheckerCommand string `env:"CAMPGROUND_CHECKER"`

	EmailProvider string `env:"EMAIL_PROVIDER,default=smtp"` // smtp, gmail, mock
	EmailUser     string `env:"SEND_EMAIL_USER"`
	EmailPass     string `env:"SEND_EMAIL_PASS"`
	SMTPHost      string `env:"SMTP_HOST,default=smtp.gmail.com"`
	SMTPPort      string `env:"SMTP_PORT,default=587"`

	GoogleCredentialsJSON string `env:"GOOGLE_CREDENTIALS_JSON"`
	GmailClientID         string `env:"GMAIL_CLIENT_ID"`
	GmailClientSecret     string `env:"GMAIL_CLIENT_SECRET"`
	GmailRefreshToken     string `env:"GMAIL_REFRESH_TOKEN"`

	LedgerBackend string `env:"LEDGER_BACKEND,default=memory"` // memory, records, sheets
	StorageBucket string `env:"STORAGE_BUCKET"`
	LocalStorage  string `env:"LOCAL_STORAGE"`
	SheetID       string `env:"SHEET_ID"`
	SheetRange    string `env:"SHEET_RANGE,default=Notifications!A:D"`

	// When set, recipients/sites/parks/dates/interval come from named
	// ranges of this spreadsheet instead of the variables above.
	ConfigSheetID string `env:"CONFIG_SHEET_ID"`
}

// Settings is everything main needs to wire the process.
type Settings struct {
	Env Environment
	Run poll.Config
}

// Load reads and validates the environment. Validation failures here are
// fatal: the process must not start a run with a malformed date or a missing
// mail credential.
func Load(logger *slog.Logger) (*Settings, error) {
	var e Environment
	if _, err := env.UnmarshalFromEnviron(&e); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	run, err := buildRun(e, logger)
	if err != nil {
		return nil, err
	}

	if err := validateEmail(e); err != nil {
		return nil, err
	}

	return &Settings{Env: e, Run: run}, nil
}

func buildRun(e Environment, logger *slog.Logger) (poll.Config, error) {
	run := poll.Config{
		Recipients: SplitList(e.Recipients),
		Interval:   ParseInterval(e.IntervalSeconds, logger),
	}

	urls := SplitList(e.ChaletURLs)
	if len(urls) == 0 {
		urls = DefaultChaletURLs
	}
	for _, u := range urls {
		run.Chalets = append(run.Chalets, poll.ChaletSite{URL: u, RowOffset: ChaletRowOffset})
	}

	run.ParkIDs = SplitList(e.ParkIDs)
	dates, err := parseDates(e.StartDate, e.EndDate, len(run.ParkIDs) > 0)
	if err != nil {
		return poll.Config{}, err
	}
	run.Dates = dates

	return run, nil
}

func parseDates(start, end string, required bool) (*vacancy.DateRange, error) {
	if start == "" && end == "" {
		if required {
			return nil, fmt.Errorf("PARK_IDS set but START_DATE/END_DATE missing")
		}
		return nil, nil
	}

	r := vacancy.DateRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("START_DATE/END_DATE must be YYYY-MM-DD: %w", err)
	}
	return &r, nil
}

func validateEmail(e Environment) error {
	switch e.EmailProvider {
	case "smtp":
		if e.EmailUser == "" {
			return fmt.Errorf("must set SEND_EMAIL_USER")
		}
		if e.EmailPass == "" {
			return fmt.Errorf("must set SEND_EMAIL_PASS")
		}
	case "gmail":
		hasRefreshToken := e.GmailClientID != "" && e.GmailClientSecret != "" && e.GmailRefreshToken != ""
		if e.GoogleCredentialsJSON == "" && !hasRefreshToken {
			return fmt.Errorf("gmail provider needs GOOGLE_CREDENTIALS_JSON or GMAIL_CLIENT_ID/GMAIL_CLIENT_SECRET/GMAIL_REFRESH_TOKEN")
		}
	case "mock":
	default:
		return fmt.Errorf("unknown EMAIL_PROVIDER %q", e.EmailProvider)
	}
	return nil
}

// ParseInterval turns INTERVAL_SECONDS into a duration. Absent or
// non-numeric values mean "run once", matching the historical behavior.
func ParseInterval(raw string, logger *slog.Logger) time.Duration {
	if raw == "" {
		logger.Info("INTERVAL_SECONDS was not set, not setting interval")
		return 0
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		logger.Info("INTERVAL_SECONDS was not a number, not setting interval", "value", raw)
		return 0
	}
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// SplitList parses a comma-separated value, trimming whitespace and dropping
// empty entries.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
