package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/salonkit/appointment-notifier/internal/config"
	"github.com/salonkit/appointment-notifier/internal/domain/model"
	repo "github.com/salonkit/appointment-notifier/internal/domain/repository"
)

// Scanner is the periodic job that turns notification rules into
// pending ledger rows. It never sends anything itself; it only decides
// what has become due and records it exactly once. Overlapping scans
// (including scans from other replicas) are harmless: the ledger's
// unique key rejects duplicates and the scanner treats that as success.
type Scanner struct {
	rules    repo.RuleRepository
	appts    repo.AppointmentSource
	ledger   repo.LedgerRepository
	logger   zerolog.Logger
	interval time.Duration
	grace    time.Duration
}

// NewScanner creates a new instance of Scanner.
func NewScanner(
	cfg *config.Config,
	rules repo.RuleRepository,
	appts repo.AppointmentSource,
	ledger repo.LedgerRepository,
	logger *zerolog.Logger,
) *Scanner {
	return &Scanner{
		rules:    rules,
		appts:    appts,
		ledger:   ledger,
		logger:   logger.With().Str("component", "scanner").Logger(),
		interval: cfg.Scanner.Interval,
		grace:    cfg.Scanner.Grace,
	}
}

// Run executes scan passes on a fixed interval until the context is
// cancelled.
func (s *Scanner) Run(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("scanner started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scanner stopped")
			return
		case <-ticker.C:
			if err := s.ScanOnce(ctx); err != nil {
				s.logger.Error().Err(err).Msg("scan pass failed")
			}
		}
	}
}

// ScanOnce performs a single scan pass: for every active rule, find the
// appointments whose trigger time has arrived and insert a pending
// ledger row for each. A duplicate-key result means an earlier or
// concurrent pass already scheduled the notification.
func (s *Scanner) ScanOnce(ctx context.Context) error {
	rules, err := s.rules.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("scanner: list active rules: %w", err)
	}

	now := time.Now().UTC()
	triggerAfter := now.Add(-s.grace)
	scheduled := 0

	for _, rule := range rules {
		appts, err := s.appts.DueForRule(ctx, rule, now, triggerAfter)
		if err != nil {
			s.logger.Error().Err(err).Stringer("rule_id", rule.ID).Msg("due query failed, skipping rule")
			continue
		}

		for _, appt := range appts {
			rec := model.NewNotificationRecord(appt, rule)
			if _, err := s.ledger.Insert(ctx, rec); err != nil {
				if errors.Is(err, repo.ErrDuplicateRecord) {
					// Already scheduled by a previous or concurrent scan.
					continue
				}
				s.logger.Error().Err(err).
					Stringer("appointment_id", appt.ID).
					Str("type", string(rule.Type)).
					Msg("failed to schedule notification")
				continue
			}
			scheduled++
			s.logger.Info().
				Stringer("appointment_id", appt.ID).
				Str("type", string(rule.Type)).
				Int("hours_before", rule.HoursBefore).
				Msg("notification scheduled")
		}
	}

	if scheduled > 0 {
		s.logger.Info().Int("scheduled", scheduled).Msg("scan pass complete")
	}
	return nil
}
