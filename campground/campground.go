// Package campground checks recreation.gov campsite availability by invoking
// the external campsite checker script as a subprocess.
package campground

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"chalet-notifier/pkg/vacancy"
)

// SubprocessError indicates the external checker failed to execute or
// produced unparseable output. A non-zero exit with valid JSON output is not
// an error: the checker exits non-zero when nothing is available.
type SubprocessError struct {
	Command string
	Err     error
}

func (e *SubprocessError) Error() string {
	return fmt.Sprintf("campground checker %s: %v", e.Command, e.Err)
}

func (e *SubprocessError) Unwrap() error { return e.Err }

// IsSubprocessError checks if an error is a checker execution error.
func IsSubprocessError(err error) bool {
	var se *SubprocessError
	return errors.As(err, &se)
}

// Runner executes the external checker command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes the command and returns stdout. A non-zero exit still returns
// whatever was written to stdout alongside the exit error, since the checker
// signals "no availability" that way.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	err := cmd.Run()
	return stdout.Bytes(), err
}

// Checker looks up campsite availability for a set of parks.
type Checker struct {
	runner  Runner
	command string // path to the checker script
	logger  *slog.Logger
}

// New creates a new campground checker around the given script path.
func New(command string, runner Runner, logger *slog.Logger) *Checker {
	return &Checker{
		runner:  runner,
		command: command,
		logger:  logger,
	}
}

// OfferURL builds the synthetic source URL identifying one park on
// recreation.gov. This is the stable identity used in the ledger.
func OfferURL(parkID string) string {
	return "https://www.recreation.gov/camping/campgrounds/" + parkID
}

// Check runs the external checker for the given parks and date range and
// returns one observation per park. Parks absent from the checker output have
// no availability. An empty park list short-circuits without invoking the
// subprocess.
func (c *Checker) Check(ctx context.Context, parkIDs []string, dates vacancy.DateRange) ([]vacancy.Observation, error) {
	if len(parkIDs) == 0 {
		return nil, nil
	}

	available, err := c.availability(ctx, parkIDs, dates)
	if err != nil {
		return nil, err
	}

	names := c.parkNames(ctx, parkIDs, dates)

	observations := make([]vacancy.Observation, 0, len(parkIDs))
	for _, parkID := range parkIDs {
		r := dates
		obs := vacancy.Observation{
			Offer: vacancy.Offer{
				SourceURL: OfferURL(parkID),
				DateRange: &r,
				Name:      names[parkID],
			},
			HasVacancy: available[parkID],
		}
		observations = append(observations, obs)
	}

	c.logger.Info("Campground availability checked",
		"parks", len(parkIDs),
		"available", len(available),
		"start_date", dates.Start,
		"end_date", dates.End)

	return observations, nil
}

// availability returns the set of park IDs with at least one open campsite.
func (c *Checker) availability(ctx context.Context, parkIDs []string, dates vacancy.DateRange) (map[string]bool, error) {
	args := c.baseArgs(parkIDs, dates)
	args = append(args, "--nights", "1", "--json-output")

	out, runErr := c.runner.Run(ctx, c.command, args...)

	// The checker exits non-zero when no sites are available but still emits
	// JSON. Only treat the run as failed when the output doesn't parse.
	var byPark map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(out), &byPark); err != nil {
		if runErr != nil {
			return nil, &SubprocessError{Command: c.command, Err: runErr}
		}
		return nil, &SubprocessError{Command: c.command, Err: fmt.Errorf("parse output: %w", err)}
	}

	if runErr != nil {
		c.logger.Info("Checker exited non-zero with parseable output, treating as no availability",
			"exit_error", runErr.Error(),
			"parks_in_output", len(byPark))
	}

	available := make(map[string]bool, len(byPark))
	for parkID := range byPark {
		available[parkID] = true
	}
	return available, nil
}

// parkNames maps park IDs to display names. Failures degrade to empty names;
// the offer URL alone is enough for a notification.
func (c *Checker) parkNames(ctx context.Context, parkIDs []string, dates vacancy.DateRange) map[string]string {
	args := c.baseArgs(parkIDs, dates)
	args = append(args, "--get-park-names")

	out, err := c.runner.Run(ctx, c.command, args...)
	if err != nil {
		c.logger.Warn("Park name lookup failed, continuing without names", "error", err)
		return nil
	}

	var names map[string]string
	if err := json.Unmarshal(bytes.TrimSpace(out), &names); err != nil {
		c.logger.Warn("Park name output unparseable, continuing without names", "error", err)
		return nil
	}
	return names
}

func (c *Checker) baseArgs(parkIDs []string, dates vacancy.DateRange) []string {
	args := []string{"--start-date", dates.Start, "--end-date", dates.End, "--parks"}
	return append(args, parkIDs...)
}
