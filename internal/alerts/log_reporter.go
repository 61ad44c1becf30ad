package alerts

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/salonkit/appointment-notifier/internal/domain/model"
)

// LogReporter implements the Reporter interface by writing to the
// application log only. It is the default in development and the
// fallback when no real operator channel is configured.
type LogReporter struct {
	logger zerolog.Logger
}

// NewLogReporter creates a new instance of LogReporter.
func NewLogReporter(logger *zerolog.Logger) *LogReporter {
	return &LogReporter{
		logger: logger.With().Str("component", "log_reporter").Logger(),
	}
}

// DispatchFailure implements the Reporter interface.
func (r *LogReporter) DispatchFailure(_ context.Context, rec *model.NotificationRecord, reason string) {
	r.logger.Error().
		Stringer("notification_id", rec.ID).
		Stringer("appointment_id", rec.AppointmentID).
		Str("type", string(rec.Type)).
		Str("reason", reason).
		Msg("dispatch failed, operator attention required")
}

// IntegrityFault implements the Reporter interface.
func (r *LogReporter) IntegrityFault(_ context.Context, detail string) {
	r.logger.Error().Str("detail", detail).Msg("ledger integrity fault")
}
