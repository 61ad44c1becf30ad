package alerts

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/salonkit/appointment-notifier/internal/config"
	"github.com/salonkit/appointment-notifier/internal/domain/model"
)

// EmailReporter sends operator alerts via SMTP.
type EmailReporter struct {
	dialer *gomail.Dialer
	from   string
	to     string
	logger zerolog.Logger
}

// NewEmailReporter creates a new instance of EmailReporter.
func NewEmailReporter(cfg config.AlertsEmailConfig, logger *zerolog.Logger) *EmailReporter {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &EmailReporter{
		dialer: d,
		from:   cfg.From,
		to:     cfg.To,
		logger: logger.With().Str("component", "email_reporter").Logger(),
	}
}

// DispatchFailure implements the Reporter interface.
func (r *EmailReporter) DispatchFailure(_ context.Context, rec *model.NotificationRecord, reason string) {
	subject := fmt.Sprintf("Dispatch failed: notification %s", rec.ID)
	body := fmt.Sprintf("Notification %s (appointment %s, type %s) could not be dispatched.\n\nReason: %s\n",
		rec.ID, rec.AppointmentID, rec.Type, reason)
	r.send(subject, body)
}

// IntegrityFault implements the Reporter interface.
func (r *EmailReporter) IntegrityFault(_ context.Context, detail string) {
	r.send("Notification ledger integrity fault", detail)
}

func (r *EmailReporter) send(subject, body string) {
	m := gomail.NewMessage()
	m.SetHeader("From", r.from)
	m.SetHeader("To", r.to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	// DialAndSend opens a connection, sends the email, and closes it.
	if err := r.dialer.DialAndSend(m); err != nil {
		r.logger.Error().Err(err).Msg("failed to send email alert")
	}
}
