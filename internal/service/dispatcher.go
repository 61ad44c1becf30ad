package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/salonkit/appointment-notifier/internal/alerts"
	"github.com/salonkit/appointment-notifier/internal/config"
	"github.com/salonkit/appointment-notifier/internal/domain/model"
	repo "github.com/salonkit/appointment-notifier/internal/domain/repository"
	"github.com/salonkit/appointment-notifier/internal/gateway"
)

// Dispatcher consumes pending ledger rows and sends them through the
// messaging gateway with bounded parallelism. Outcomes are business
// results written back to the row, not errors: a failed send is
// terminal (no auto-retry against a conversational channel) and is
// reported for operator follow-up.
type Dispatcher struct {
	ledger    repo.LedgerRepository
	appts     repo.AppointmentSource
	rules     repo.RuleRepository
	instances repo.ChannelInstanceRepository
	sender    gateway.Sender
	reporter  alerts.Reporter
	logger    zerolog.Logger
	interval  time.Duration
	batchSize int
	workers   int
}

// NewDispatcher creates a new instance of Dispatcher.
func NewDispatcher(
	cfg *config.Config,
	ledger repo.LedgerRepository,
	appts repo.AppointmentSource,
	rules repo.RuleRepository,
	instances repo.ChannelInstanceRepository,
	sender gateway.Sender,
	reporter alerts.Reporter,
	logger *zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		ledger:    ledger,
		appts:     appts,
		rules:     rules,
		instances: instances,
		sender:    sender,
		reporter:  reporter,
		logger:    logger.With().Str("component", "dispatcher").Logger(),
		interval:  cfg.Dispatcher.Interval,
		batchSize: cfg.Dispatcher.BatchSize,
		workers:   cfg.Dispatcher.Workers,
	}
}

// Run executes dispatch passes on a fixed interval until the context
// is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info().Dur("interval", d.interval).Int("workers", d.workers).Msg("dispatcher started")
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("dispatcher stopped")
			return
		case <-ticker.C:
			if err := d.DispatchOnce(ctx); err != nil {
				d.logger.Error().Err(err).Msg("dispatch pass failed")
			}
		}
	}
}

// DispatchOnce processes one batch of due pending records through the
// worker pool.
func (d *Dispatcher) DispatchOnce(ctx context.Context) error {
	records, err := d.ledger.ListDuePending(ctx, time.Now().UTC(), d.batchSize)
	if err != nil {
		return fmt.Errorf("dispatcher: list pending: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	sem := make(chan struct{}, d.workers)
	var wg sync.WaitGroup
	for _, rec := range records {
		wg.Add(1)
		sem <- struct{}{}
		go func(rec *model.NotificationRecord) {
			defer wg.Done()
			defer func() { <-sem }()
			d.process(ctx, rec)
		}(rec)
	}
	wg.Wait()
	return nil
}

// process dispatches a single pending record.
func (d *Dispatcher) process(ctx context.Context, rec *model.NotificationRecord) {
	log := d.logger.With().Stringer("notification_id", rec.ID).Logger()

	appt, err := d.appts.GetByID(ctx, rec.AppointmentID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			d.fail(ctx, rec, model.StatusPending, "appointment no longer exists", nil)
			return
		}
		// Transient read error: leave the row pending for the next pass.
		log.Error().Err(err).Msg("cannot load appointment, leaving pending")
		return
	}

	// Pre-send guard: the appointment may have been cancelled after the
	// scan recorded this row.
	if !appt.IsBookable() {
		if err := d.ledger.UpdateStatus(ctx, rec.ID,
			[]model.Status{model.StatusPending}, model.StatusCancelled, repo.StatusUpdate{}); err != nil && !errors.Is(err, repo.ErrStaleStatus) {
			log.Error().Err(err).Msg("cannot cancel notification for non-bookable appointment")
		}
		log.Info().Str("appointment_status", string(appt.Status)).Msg("appointment not bookable, notification cancelled")
		return
	}

	instance, err := d.instances.ConnectedByOrganization(ctx, rec.OrganizationID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// A disconnected channel needs human action, not retries.
			d.fail(ctx, rec, model.StatusPending, "no connected channel instance for organization", nil)
			return
		}
		log.Error().Err(err).Msg("cannot resolve channel instance, leaving pending")
		return
	}

	var template *string
	rule, err := d.rules.Find(ctx, rec.OrganizationID, rec.Type, rec.HoursBefore)
	switch {
	case err == nil:
		template = rule.Template
	case errors.Is(err, repo.ErrNotFound):
		// No rule row, no custom template; the default text applies.
	default:
		log.Error().Err(err).Msg("cannot load rule template, leaving pending")
		return
	}
	body := RenderMessage(template, rec.Type, appt)

	// Claim the row before any network I/O. Overlapping passes (or
	// replicas) can both list the same pending row; only the worker
	// that wins this compare-and-set talks to the gateway, so the
	// customer can never be messaged twice.
	err = d.ledger.UpdateStatus(ctx, rec.ID,
		[]model.Status{model.StatusPending}, model.StatusDispatching,
		repo.StatusUpdate{InstanceID: &instance.InstanceID})
	if err != nil {
		if errors.Is(err, repo.ErrStaleStatus) {
			log.Debug().Msg("record already claimed by another dispatcher")
			return
		}
		log.Error().Err(err).Msg("cannot claim record, leaving pending")
		return
	}

	externalID, err := d.sender.SendText(ctx, instance.InstanceID, rec.Phone, body)
	if err != nil {
		d.fail(ctx, rec, model.StatusDispatching, fmt.Sprintf("gateway send failed: %v", err), &instance.InstanceID)
		return
	}

	// Confirmation requests open a conversation; everything else is
	// fire-and-forget.
	to := model.StatusSent
	if rec.Type == model.TypeConfirmation {
		to = model.StatusAwaitingReply
	}

	err = d.ledger.UpdateStatus(ctx, rec.ID,
		[]model.Status{model.StatusDispatching}, to,
		repo.StatusUpdate{ExternalID: &externalID})
	if err != nil {
		if errors.Is(err, repo.ErrStaleStatus) {
			log.Warn().Msg("record transitioned concurrently after send")
			return
		}
		// The row stays in dispatching: it is never listed as due
		// again, so the customer is not re-messaged, and it surfaces
		// on the stuck report for operator follow-up.
		log.Error().Err(err).Msg("CRITICAL: message sent but status update failed")
		return
	}

	log.Info().Str("status", string(to)).Str("external_id", externalID).Msg("notification dispatched")
}

// fail records a terminal dispatch failure and reports it to the
// operator. The report is skipped when the row already left the
// expected status (e.g. cancelled concurrently).
func (d *Dispatcher) fail(ctx context.Context, rec *model.NotificationRecord, from model.Status, reason string, instanceID *string) {
	err := d.ledger.UpdateStatus(ctx, rec.ID,
		[]model.Status{from}, model.StatusFailed,
		repo.StatusUpdate{LastError: &reason, InstanceID: instanceID})
	if err != nil {
		if !errors.Is(err, repo.ErrStaleStatus) {
			d.logger.Error().Err(err).Stringer("notification_id", rec.ID).Msg("cannot mark notification failed")
		}
		return
	}

	d.logger.Error().Stringer("notification_id", rec.ID).Str("reason", reason).Msg("dispatch failed")
	d.reporter.DispatchFailure(ctx, rec, reason)
}
