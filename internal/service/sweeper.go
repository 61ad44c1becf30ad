package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/salonkit/appointment-notifier/internal/config"
	repo "github.com/salonkit/appointment-notifier/internal/domain/repository"
)

// Sweeper force-expires conversations that have waited too long for a
// reply. This keeps the "at most one open conversation per phone and
// instance" invariant from eroding when customers simply never answer.
type Sweeper struct {
	ledger       repo.LedgerRepository
	logger       zerolog.Logger
	interval     time.Duration
	replyTimeout time.Duration
}

// NewSweeper creates a new instance of Sweeper.
func NewSweeper(cfg *config.Config, ledger repo.LedgerRepository, logger *zerolog.Logger) *Sweeper {
	return &Sweeper{
		ledger:       ledger,
		logger:       logger.With().Str("component", "sweeper").Logger(),
		interval:     cfg.Sweeper.Interval,
		replyTimeout: cfg.Sweeper.ReplyTimeout,
	}
}

// Run executes sweep passes on a fixed interval until the context is
// cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Dur("reply_timeout", s.replyTimeout).Msg("sweeper started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.logger.Error().Err(err).Msg("sweep pass failed")
			}
		}
	}
}

// SweepOnce expires every conversation whose last activity is older
// than the reply timeout.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.replyTimeout)
	expired, err := s.ledger.ExpireStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("sweeper: expire stale: %w", err)
	}
	if expired > 0 {
		s.logger.Info().Int64("expired", expired).Msg("expired stale conversations")
	}
	return nil
}
