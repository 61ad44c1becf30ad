package alerts

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/salonkit/appointment-notifier/internal/config"
	"github.com/salonkit/appointment-notifier/internal/domain/model"
)

// multiReporter fans an alert out to every configured channel.
type multiReporter struct {
	reporters []Reporter
}

func (m *multiReporter) DispatchFailure(ctx context.Context, rec *model.NotificationRecord, reason string) {
	for _, r := range m.reporters {
		r.DispatchFailure(ctx, rec, reason)
	}
}

func (m *multiReporter) IntegrityFault(ctx context.Context, detail string) {
	for _, r := range m.reporters {
		r.IntegrityFault(ctx, detail)
	}
}

// NewReporter builds the operator alert reporter based on the
// application's configuration mode. The log reporter is always
// included; in "production" mode the telegram and email channels are
// added when configured.
func NewReporter(cfg *config.Config, logger *zerolog.Logger) (Reporter, error) {
	log := logger.With().Str("component", "alerts").Logger()
	log.Info().Str("mode", cfg.Alerts.Mode).Msg("initializing operator alert channels")

	reporters := []Reporter{NewLogReporter(logger)}

	if cfg.Alerts.Mode == "production" {
		if cfg.Alerts.Telegram.BotToken != "" {
			tg, err := NewTelegramReporter(cfg.Alerts.Telegram, logger)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize telegram reporter: %w", err)
			}
			reporters = append(reporters, tg)
			log.Info().Msg("telegram alerts enabled")
		}
		if cfg.Alerts.Email.Host != "" {
			reporters = append(reporters, NewEmailReporter(cfg.Alerts.Email, logger))
			log.Info().Msg("email alerts enabled")
		}
	}

	return &multiReporter{reporters: reporters}, nil
}
