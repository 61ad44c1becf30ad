package alerts

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/salonkit/appointment-notifier/internal/config"
	"github.com/salonkit/appointment-notifier/internal/domain/model"
)

// TelegramReporter pushes operator alerts to a Telegram chat.
type TelegramReporter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger
}

// NewTelegramReporter creates a new instance of TelegramReporter.
func NewTelegramReporter(cfg config.AlertsTelegramConfig, logger *zerolog.Logger) (*TelegramReporter, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot api: %w", err)
	}
	return &TelegramReporter{
		bot:    bot,
		chatID: cfg.ChatID,
		logger: logger.With().Str("component", "telegram_reporter").Logger(),
	}, nil
}

// DispatchFailure implements the Reporter interface.
func (r *TelegramReporter) DispatchFailure(_ context.Context, rec *model.NotificationRecord, reason string) {
	text := fmt.Sprintf("*Dispatch failed*\n\nNotification: `%s`\nAppointment: `%s`\nType: %s\nReason: %s",
		rec.ID, rec.AppointmentID, rec.Type, reason)
	r.send(text)
}

// IntegrityFault implements the Reporter interface.
func (r *TelegramReporter) IntegrityFault(_ context.Context, detail string) {
	r.send(fmt.Sprintf("*Ledger integrity fault*\n\n%s", detail))
}

func (r *TelegramReporter) send(text string) {
	msg := tgbotapi.NewMessage(r.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := r.bot.Send(msg); err != nil {
		r.logger.Error().Err(err).Msg("failed to send telegram alert")
	}
}
