package campground

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"slices"
	"testing"

	"chalet-notifier/pkg/vacancy"
)

type fakeRunner struct {
	calls   [][]string
	outputs map[string][]byte // keyed by last flag in args
	errs    map[string]error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	call := append([]string{name}, args...)
	f.calls = append(f.calls, call)

	key := "--json-output"
	if slices.Contains(args, "--get-park-names") {
		key = "--get-park-names"
	}
	return f.outputs[key], f.errs[key]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var july = vacancy.DateRange{Start: "2021-07-10", End: "2021-07-17"}

func TestCheckReportsAvailableParks(t *testing.T) {
	runner := &fakeRunner{outputs: map[string][]byte{
		"--json-output":    []byte(`{"111": {"site": 4}}`),
		"--get-park-names": []byte(`{"111": "Many Glacier", "222": "Two Medicine"}`),
	}}
	c := New("camping.py", runner, testLogger())

	observations, err := c.Check(context.Background(), []string{"111", "222"}, july)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	if len(observations) != 2 {
		t.Fatalf("got %d observations, want 2", len(observations))
	}

	var vacant []vacancy.Observation
	for _, obs := range observations {
		if obs.HasVacancy {
			vacant = append(vacant, obs)
		}
	}
	if len(vacant) != 1 {
		t.Fatalf("got %d vacant parks, want 1", len(vacant))
	}

	offer := vacant[0].Offer
	if offer.SourceURL != OfferURL("111") {
		t.Errorf("vacant offer URL = %q, want %q", offer.SourceURL, OfferURL("111"))
	}
	if offer.DateRange == nil || *offer.DateRange != july {
		t.Errorf("vacant offer range = %+v, want %+v", offer.DateRange, july)
	}
	if offer.Name != "Many Glacier" {
		t.Errorf("vacant offer name = %q, want %q", offer.Name, "Many Glacier")
	}
}

func TestCheckEmptyParkListShortCircuits(t *testing.T) {
	runner := &fakeRunner{}
	c := New("camping.py", runner, testLogger())

	observations, err := c.Check(context.Background(), nil, july)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(observations) != 0 {
		t.Errorf("got %d observations for empty park list, want 0", len(observations))
	}
	if len(runner.calls) != 0 {
		t.Errorf("runner invoked %d times for empty park list, want 0", len(runner.calls))
	}
}

func TestCheckNoAvailabilityExitIsNotAnError(t *testing.T) {
	// The checker exits non-zero when nothing is available but still prints
	// an (empty) JSON object.
	runner := &fakeRunner{
		outputs: map[string][]byte{
			"--json-output":    []byte("{}\n"),
			"--get-park-names": []byte(`{"111": "Many Glacier"}`),
		},
		errs: map[string]error{"--json-output": errors.New("exit status 1")},
	}
	c := New("camping.py", runner, testLogger())

	observations, err := c.Check(context.Background(), []string{"111"}, july)
	if err != nil {
		t.Fatalf("Check() error = %v, want nil for no-availability exit", err)
	}
	if len(observations) != 1 || observations[0].HasVacancy {
		t.Errorf("observations = %+v, want one non-vacant park", observations)
	}
}

func TestCheckExecutionFailure(t *testing.T) {
	runner := &fakeRunner{
		outputs: map[string][]byte{"--json-output": []byte("Traceback (most recent call last):")},
		errs:    map[string]error{"--json-output": errors.New("exit status 2")},
	}
	c := New("camping.py", runner, testLogger())

	_, err := c.Check(context.Background(), []string{"111"}, july)
	if err == nil {
		t.Fatal("Check() error = nil, want subprocess error")
	}
	if !IsSubprocessError(err) {
		t.Errorf("IsSubprocessError(%v) = false, want true", err)
	}
}

func TestCheckArgumentShape(t *testing.T) {
	runner := &fakeRunner{outputs: map[string][]byte{
		"--json-output":    []byte(`{}`),
		"--get-park-names": []byte(`{}`),
	}}
	c := New("/opt/checker/camping.py", runner, testLogger())

	if _, err := c.Check(context.Background(), []string{"111", "222"}, july); err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	if len(runner.calls) != 2 {
		t.Fatalf("got %d subprocess calls, want 2 (availability + names)", len(runner.calls))
	}

	first := runner.calls[0]
	want := []string{
		"/opt/checker/camping.py",
		"--start-date", "2021-07-10",
		"--end-date", "2021-07-17",
		"--parks", "111", "222",
		"--nights", "1",
		"--json-output",
	}
	if !slices.Equal(first, want) {
		t.Errorf("availability call = %v, want %v", first, want)
	}
}
