package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// SMTPProvider sends mail over authenticated SMTP with a username/password
// credential (e.g. a Gmail app password).
type SMTPProvider struct {
	host   string
	addr   string // host:port
	user   string
	pass   string
	logger *slog.Logger

	// sendMail is swappable for tests; defaults to smtp.SendMail.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPProvider creates a new SMTP provider.
func NewSMTPProvider(host, port, user, pass string, logger *slog.Logger) *SMTPProvider {
	return &SMTPProvider{
		host:     host,
		addr:     host + ":" + port,
		user:     user,
		pass:     pass,
		logger:   logger,
		sendMail: smtp.SendMail,
	}
}

// Send sends one message to all recipients.
func (p *SMTPProvider) Send(ctx context.Context, to []string, subject, body string) error {
	toHeader := sanitizeHeader(strings.Join(to, ", "))
	subject = sanitizeHeader(subject)

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", sanitizeHeader(p.user)))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", toHeader))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	auth := smtp.PlainAuth("", p.user, p.pass, p.host)

	return retry.Do(
		func() error {
			p.logger.Info("SMTP send starting",
				"server", p.addr,
				"to", toHeader,
				"subject", subject)

			startTime := time.Now()
			err := p.sendMail(p.addr, auth, p.user, to, []byte(msg.String()))
			duration := time.Since(startTime)

			if err != nil {
				p.logger.Warn("SMTP send failed, will retry",
					"server", p.addr,
					"to", toHeader,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}

			p.logger.Info("SMTP send completed",
				"server", p.addr,
				"to", toHeader,
				"duration_ms", duration.Milliseconds(),
				"status", "success")

			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Info("Retrying SMTP send after error", "attempt", n, "error", err)
		}),
	)
}
