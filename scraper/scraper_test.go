package scraper

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"chalet-notifier/pkg/vacancy"
)

func TestParseCell(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantLabel  string
		wantValue  string
		wantBooked bool
	}{
		{
			name:       "booked NO",
			text:       "2021-07-10\tNO",
			wantLabel:  "2021-07-10",
			wantValue:  "NO",
			wantBooked: true,
		},
		{
			name:       "available nights",
			text:       "2021-07-10\t2 nights available",
			wantLabel:  "2021-07-10",
			wantValue:  "2 nights available",
			wantBooked: false,
		},
		{
			name:       "date only is booked",
			text:       "2021-07-10",
			wantLabel:  "2021-07-10",
			wantValue:  "",
			wantBooked: true,
		},
		{
			name:       "newline separated",
			text:       "July 10\n\t\nNO VACANCY",
			wantLabel:  "July 10",
			wantValue:  "NO VACANCY",
			wantBooked: true,
		},
		{
			name:       "multiline value joined",
			text:       "July 12\n2 beds\nsaturday only",
			wantLabel:  "July 12",
			wantValue:  "2 beds saturday only",
			wantBooked: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot := ParseCell(tt.text)
			if slot.Label != tt.wantLabel {
				t.Errorf("label = %q, want %q", slot.Label, tt.wantLabel)
			}
			if slot.Value != tt.wantValue {
				t.Errorf("value = %q, want %q", slot.Value, tt.wantValue)
			}
			if slot.Booked != tt.wantBooked {
				t.Errorf("booked = %v, want %v", slot.Booked, tt.wantBooked)
			}
		})
	}
}

const chaletPage = `<html><body>
<table>
<tr><td>Vacancy Status</td></tr>
<tr><td>Updated daily during the season</td></tr>
<tr><td>2021-07-10` + "\t" + `NO</td></tr>
<tr><td>2021-07-11` + "\t" + `2 nights available</td></tr>
<tr><td></td></tr>
<tr><td>2021-07-12` + "\t" + `NO</td></tr>
</table>
</body></html>`

func TestParseVacancyTable(t *testing.T) {
	slots, err := ParseVacancyTable(strings.NewReader(chaletPage), 3)
	if err != nil {
		t.Fatalf("ParseVacancyTable() error = %v", err)
	}

	if len(slots) != 3 {
		t.Fatalf("got %d slots, want 3 (empty cells skipped, header rows excluded)", len(slots))
	}

	if slots[0].Label != "2021-07-10" || !slots[0].Booked {
		t.Errorf("first slot = %+v, want booked 2021-07-10", slots[0])
	}
	if slots[1].Value != "2 nights available" || slots[1].Booked {
		t.Errorf("second slot = %+v, want vacant", slots[1])
	}
}

func TestParseVacancyTableEmptyPage(t *testing.T) {
	slots, err := ParseVacancyTable(strings.NewReader("<html><body><p>no table here</p></body></html>"), 3)
	if err != nil {
		t.Fatalf("ParseVacancyTable() error = %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("got %d slots from a page with no table, want 0", len(slots))
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestCheckReportsVacancy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "Mozilla") {
			t.Errorf("missing browser User-Agent, got %q", ua)
		}
		if _, err := w.Write([]byte(chaletPage)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer srv.Close()

	s := New(&http.Client{Timeout: 5 * time.Second}, testLogger())
	offer := vacancy.Offer{SourceURL: srv.URL}

	obs, err := s.Check(context.Background(), offer, 3)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !obs.HasVacancy {
		t.Error("HasVacancy = false, want true (one row is unbooked)")
	}
	if !obs.Offer.Equal(offer) {
		t.Errorf("observation offer = %+v, want %+v", obs.Offer, offer)
	}
	if len(obs.Slots) != 3 {
		t.Errorf("got %d slots, want 3", len(obs.Slots))
	}
}

func TestCheckNoVacancyWhenNoRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("<html><body><table></table></body></html>")); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer srv.Close()

	s := New(&http.Client{Timeout: 5 * time.Second}, testLogger())

	obs, err := s.Check(context.Background(), vacancy.Offer{SourceURL: srv.URL}, 3)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if obs.HasVacancy {
		t.Error("HasVacancy = true for a page with no data rows, want false")
	}
}

func TestCheckFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "blocked", http.StatusNotAcceptable)
	}))
	defer srv.Close()

	s := New(&http.Client{Timeout: 5 * time.Second}, testLogger())

	_, err := s.Check(context.Background(), vacancy.Offer{SourceURL: srv.URL}, 3)
	if err == nil {
		t.Fatal("Check() error = nil, want fetch error")
	}
	if !IsFetchError(err) {
		t.Errorf("IsFetchError(%v) = false, want true", err)
	}
	if !strings.Contains(err.Error(), srv.URL) {
		t.Errorf("error %q does not name the offending URL", err)
	}
}
