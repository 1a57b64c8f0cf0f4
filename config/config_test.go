package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Duration
	}{
		{"absent means run once", "", 0},
		{"non-numeric means run once", "hourly", 0},
		{"numeric", "300", 5 * time.Minute},
		{"zero", "0", 0},
		{"negative", "-5", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseInterval(tt.raw, testLogger()); got != tt.want {
				t.Errorf("ParseInterval(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"single", "a@x.com", []string{"a@x.com"}},
		{"spaces and empties", " a@x.com, ,b@x.com ,", []string{"a@x.com", "b@x.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitList(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitList(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("SplitList(%q)[%d] = %q, want %q", tt.raw, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLoadDefaultsAndValidation(t *testing.T) {
	setenv := func(t *testing.T, kv map[string]string) {
		t.Helper()
		for _, key := range []string{
			"INTERVAL_SECONDS", "RECEIVE_EMAIL_ADDRESSES", "CHALET_URLS", "PARK_IDS",
			"START_DATE", "END_DATE", "EMAIL_PROVIDER", "SEND_EMAIL_USER", "SEND_EMAIL_PASS",
		} {
			t.Setenv(key, kv[key])
		}
	}

	t.Run("defaults chalet sites", func(t *testing.T) {
		setenv(t, map[string]string{
			"EMAIL_PROVIDER":          "mock",
			"RECEIVE_EMAIL_ADDRESSES": "a@x.com",
		})

		s, err := Load(testLogger())
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if len(s.Run.Chalets) != len(DefaultChaletURLs) {
			t.Fatalf("got %d default chalet sites, want %d", len(s.Run.Chalets), len(DefaultChaletURLs))
		}
		if s.Run.Chalets[0].RowOffset != ChaletRowOffset {
			t.Errorf("row offset = %d, want %d", s.Run.Chalets[0].RowOffset, ChaletRowOffset)
		}
		if s.Run.Interval != 0 {
			t.Errorf("interval = %v, want run-once", s.Run.Interval)
		}
	})

	t.Run("smtp requires credentials", func(t *testing.T) {
		setenv(t, map[string]string{
			"EMAIL_PROVIDER": "smtp",
		})

		if _, err := Load(testLogger()); err == nil {
			t.Error("Load() accepted smtp provider without credentials")
		}
	})

	t.Run("malformed date is fatal", func(t *testing.T) {
		setenv(t, map[string]string{
			"EMAIL_PROVIDER":          "mock",
			"RECEIVE_EMAIL_ADDRESSES": "a@x.com",
			"PARK_IDS":                "111",
			"START_DATE":              "07/10/2021",
			"END_DATE":                "2021-07-17",
		})

		if _, err := Load(testLogger()); err == nil {
			t.Error("Load() accepted malformed START_DATE")
		}
	})

	t.Run("parks require dates", func(t *testing.T) {
		setenv(t, map[string]string{
			"EMAIL_PROVIDER":          "mock",
			"RECEIVE_EMAIL_ADDRESSES": "a@x.com",
			"PARK_IDS":                "111,222",
		})

		if _, err := Load(testLogger()); err == nil {
			t.Error("Load() accepted PARK_IDS without a date range")
		}
	})

	t.Run("full campground config", func(t *testing.T) {
		setenv(t, map[string]string{
			"EMAIL_PROVIDER":          "mock",
			"RECEIVE_EMAIL_ADDRESSES": "a@x.com,b@x.com",
			"PARK_IDS":                "111,222",
			"START_DATE":              "2021-07-10",
			"END_DATE":                "2021-07-17",
			"INTERVAL_SECONDS":        "600",
		})

		s, err := Load(testLogger())
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if len(s.Run.ParkIDs) != 2 || len(s.Run.Recipients) != 2 {
			t.Errorf("parks = %v, recipients = %v", s.Run.ParkIDs, s.Run.Recipients)
		}
		if s.Run.Dates == nil || s.Run.Dates.Start != "2021-07-10" {
			t.Errorf("dates = %+v", s.Run.Dates)
		}
		if s.Run.Interval != 10*time.Minute {
			t.Errorf("interval = %v, want 10m", s.Run.Interval)
		}
	})
}
