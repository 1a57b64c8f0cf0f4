// Package email delivers vacancy notifications via a pluggable mail provider.
package email

import (
	"context"
	"log/slog"
	"strings"

	"chalet-notifier/pkg/vacancy"
)

// Subject is the fixed subject line for vacancy notifications.
const Subject = "Chalet Vacancies Available"

// Provider defines the interface for mail transport implementations.
type Provider interface {
	// Send delivers one plain-text message to the given recipients.
	Send(ctx context.Context, to []string, subject, body string) error
}

// Sender composes the per-run notification and hands it to a provider.
type Sender struct {
	provider Provider
	logger   *slog.Logger
}

// New creates a sender over the given provider.
func New(provider Provider, logger *slog.Logger) *Sender {
	return &Sender{
		provider: provider,
		logger:   logger,
	}
}

// SendVacancies delivers a single consolidated message listing every vacant
// offer to all recipients. Called at most once per run.
func (s *Sender) SendVacancies(ctx context.Context, recipients []string, offers []vacancy.Offer) error {
	if len(offers) == 0 || len(recipients) == 0 {
		return nil
	}

	body := FormatBody(offers)

	s.logger.Info("Sending vacancy notification",
		"recipients", len(recipients),
		"offers", len(offers),
		"subject", Subject)

	return s.provider.Send(ctx, recipients, Subject, body)
}

// FormatBody builds the plain-text body: an intro line followed by one line
// per vacant offer. Dated offers show their range; named offers their name.
func FormatBody(offers []vacancy.Offer) string {
	var b strings.Builder
	b.WriteString("Chalet Vacancies available for \n")
	for i, offer := range offers {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(offer.SourceURL)
		if offer.Name != "" {
			b.WriteString(" (" + offer.Name + ")")
		}
		if offer.DateRange != nil {
			b.WriteString(" " + offer.DateRange.Start + " to " + offer.DateRange.End)
		}
	}
	return b.String()
}

// sanitizeHeader removes newlines and control characters to prevent header
// injection: RFC 5322 headers are newline-delimited, so any newline in a
// header value allows injecting arbitrary headers or body content.
func sanitizeHeader(s string) string {
	var result strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	return result.String()
}
