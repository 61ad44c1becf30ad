package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/salonkit/appointment-notifier/internal/alerts"
	"github.com/salonkit/appointment-notifier/internal/booking"
	"github.com/salonkit/appointment-notifier/internal/config"
	"github.com/salonkit/appointment-notifier/internal/domain/model"
	repo "github.com/salonkit/appointment-notifier/internal/domain/repository"
	"github.com/salonkit/appointment-notifier/internal/gateway"
)

// Conversation replies sent back to the customer.
const (
	replyConfirmed = "Perfeito! Seu horário está confirmado. Até logo! ✅"
	replyCancelled = "Tudo bem, seu horário foi cancelado. Esperamos você em outra oportunidade."
	replyAskDate   = "Sem problemas! Para qual data você gostaria de remarcar? (ex: 25/03)"
	replyReprompt  = "Desculpe, não entendi. Responda:\n1 - Confirmar\n2 - Cancelar\n3 - Remarcar"
	replyBadDate   = "Não consegui entender a data. Envie no formato dia/mês, por exemplo 25/03."
	replyNoSlots   = "Não há horários livres nesse dia. Pode sugerir outra data?"
	replySlotAgain = "Não entendi a escolha. Responda com o número de um dos horários da lista."
)

const replyDateWindow = "Essa data está fora do período de agendamento. Escolha uma data entre amanhã e os próximos %d dias."

// Interpreter drives the conversation state machine over inbound
// replies. Every transition with a booking side effect calls the
// booking subsystem synchronously before committing the ledger state,
// so the ledger never claims an outcome that did not take effect.
type Interpreter struct {
	ledger         repo.LedgerRepository
	booking        booking.Client
	sender         gateway.Sender
	reporter       alerts.Reporter
	logger         zerolog.Logger
	maxAdvanceDays int
}

// NewInterpreter creates a new instance of Interpreter.
func NewInterpreter(
	cfg *config.Config,
	ledger repo.LedgerRepository,
	bookingClient booking.Client,
	sender gateway.Sender,
	reporter alerts.Reporter,
	logger *zerolog.Logger,
) *Interpreter {
	return &Interpreter{
		ledger:         ledger,
		booking:        bookingClient,
		sender:         sender,
		reporter:       reporter,
		logger:         logger.With().Str("component", "interpreter").Logger(),
		maxAdvanceDays: cfg.Booking.MaxAdvanceDays,
	}
}

// HandleInbound processes one customer reply delivered by the gateway
// webhook. A message without an open conversation is ignored.
func (i *Interpreter) HandleInbound(ctx context.Context, msg model.InboundMessage) error {
	log := i.logger.With().Str("instance_id", msg.InstanceID).Str("phone", msg.Phone).Logger()

	open, err := i.ledger.OpenConversations(ctx, msg.InstanceID, msg.Phone)
	if err != nil {
		return fmt.Errorf("interpreter: lookup open conversations: %w", err)
	}
	if len(open) == 0 {
		log.Debug().Msg("no open conversation for inbound message")
		return nil
	}

	rec := open[0]
	if len(open) > 1 {
		i.resolveAmbiguity(ctx, open, log)
	}

	switch rec.Status {
	case model.StatusAwaitingReply:
		return i.handleAwaitingReply(ctx, rec, msg, log)
	case model.StatusAwaitingNewDate:
		return i.handleAwaitingNewDate(ctx, rec, msg, log)
	case model.StatusAwaitingTimeSlot:
		return i.handleAwaitingTimeSlot(ctx, rec, msg, log)
	default:
		log.Error().Str("status", string(rec.Status)).Msg("open conversation in unexpected status")
		return nil
	}
}

// resolveAmbiguity enforces the "at most one open conversation per
// (instance, phone)" invariant: the newest record wins and every older
// one is force-expired. This is a data-integrity fault worth operator
// attention, never a silent fixup.
func (i *Interpreter) resolveAmbiguity(ctx context.Context, open []*model.NotificationRecord, log zerolog.Logger) {
	detail := fmt.Sprintf("found %d open conversations for phone %s on instance %s, keeping newest %s",
		len(open), open[0].Phone, deref(open[0].InstanceID), open[0].ID)
	log.Error().Int("open", len(open)).Msg("multiple open conversations, expiring all but the newest")
	i.reporter.IntegrityFault(ctx, detail)

	for _, stale := range open[1:] {
		err := i.ledger.UpdateStatus(ctx, stale.ID,
			model.AwaitingStatuses(), model.StatusExpired, repo.StatusUpdate{})
		if err != nil && !errors.Is(err, repo.ErrStaleStatus) {
			log.Error().Err(err).Stringer("notification_id", stale.ID).Msg("cannot expire ambiguous conversation")
		}
	}
}

func (i *Interpreter) handleAwaitingReply(ctx context.Context, rec *model.NotificationRecord, msg model.InboundMessage, log zerolog.Logger) error {
	switch ClassifyIntent(msg.Body) {
	case IntentConfirm:
		if err := i.booking.Confirm(ctx, rec.AppointmentID); err != nil {
			log.Error().Err(err).Stringer("appointment_id", rec.AppointmentID).Msg("booking confirm failed, conversation stays open")
			return fmt.Errorf("interpreter: confirm appointment: %w", err)
		}
		committed, err := i.transition(ctx, rec, model.StatusAwaitingReply, model.StatusConfirmed, repo.StatusUpdate{})
		if err != nil {
			return err
		}
		if !committed {
			return nil
		}
		log.Info().Stringer("appointment_id", rec.AppointmentID).Msg("appointment confirmed by customer")
		i.reply(ctx, rec, replyConfirmed)
		return nil

	case IntentCancel:
		if err := i.booking.Cancel(ctx, rec.AppointmentID); err != nil {
			log.Error().Err(err).Stringer("appointment_id", rec.AppointmentID).Msg("booking cancel failed, conversation stays open")
			return fmt.Errorf("interpreter: cancel appointment: %w", err)
		}
		committed, err := i.transition(ctx, rec, model.StatusAwaitingReply, model.StatusCancelled, repo.StatusUpdate{})
		if err != nil {
			return err
		}
		if !committed {
			return nil
		}
		log.Info().Stringer("appointment_id", rec.AppointmentID).Msg("appointment cancelled by customer")
		i.reply(ctx, rec, replyCancelled)
		return nil

	case IntentReschedule:
		committed, err := i.transition(ctx, rec, model.StatusAwaitingReply, model.StatusAwaitingNewDate, repo.StatusUpdate{})
		if err != nil {
			return err
		}
		if !committed {
			return nil
		}
		i.reply(ctx, rec, replyAskDate)
		return nil

	default:
		// Unrecognized input: re-prompt, no state change.
		i.reply(ctx, rec, replyReprompt)
		return nil
	}
}

func (i *Interpreter) handleAwaitingNewDate(ctx context.Context, rec *model.NotificationRecord, msg model.InboundMessage, log zerolog.Logger) error {
	date, ok := ParseDate(msg.Body, msg.ReceivedAt)
	if !ok {
		i.reply(ctx, rec, replyBadDate)
		return nil
	}

	if !i.withinBookingWindow(date, msg.ReceivedAt) {
		i.reply(ctx, rec, fmt.Sprintf(replyDateWindow, i.maxAdvanceDays))
		return nil
	}

	slots, err := i.booking.AvailableSlots(ctx, rec.OrganizationID, date)
	if err != nil {
		log.Error().Err(err).Msg("slot lookup failed, conversation stays open")
		return fmt.Errorf("interpreter: available slots: %w", err)
	}
	if len(slots) == 0 {
		i.reply(ctx, rec, replyNoSlots)
		return nil
	}

	committed, err := i.transition(ctx, rec, model.StatusAwaitingNewDate, model.StatusAwaitingTimeSlot,
		repo.StatusUpdate{ProposedDate: &date})
	if err != nil {
		return err
	}
	if !committed {
		return nil
	}
	i.reply(ctx, rec, FormatSlotList(date, slots))
	return nil
}

func (i *Interpreter) handleAwaitingTimeSlot(ctx context.Context, rec *model.NotificationRecord, msg model.InboundMessage, log zerolog.Logger) error {
	if rec.ProposedDate == nil {
		// Should be unreachable: the transition into awaiting_time_slot
		// always sets the proposed date.
		i.reporter.IntegrityFault(ctx, fmt.Sprintf("record %s awaits a time slot without a proposed date", rec.ID))
		i.reply(ctx, rec, replyAskDate)
		return nil
	}

	// Slots are re-fetched rather than stored: the offer may have
	// changed since the list was sent, and a stale pick must not win.
	slots, err := i.booking.AvailableSlots(ctx, rec.OrganizationID, *rec.ProposedDate)
	if err != nil {
		log.Error().Err(err).Msg("slot lookup failed, conversation stays open")
		return fmt.Errorf("interpreter: available slots: %w", err)
	}

	slot, ok := ParseSlotChoice(msg.Body, slots)
	if !ok {
		if len(slots) == 0 {
			i.reply(ctx, rec, replyNoSlots)
		} else {
			i.reply(ctx, rec, replySlotAgain)
		}
		return nil
	}

	if err := i.booking.Reschedule(ctx, rec.AppointmentID, slot); err != nil {
		log.Error().Err(err).Stringer("appointment_id", rec.AppointmentID).Msg("booking reschedule failed, conversation stays open")
		return fmt.Errorf("interpreter: reschedule appointment: %w", err)
	}

	committed, err := i.transition(ctx, rec, model.StatusAwaitingTimeSlot, model.StatusConfirmed, repo.StatusUpdate{})
	if err != nil {
		return err
	}
	if !committed {
		return nil
	}

	log.Info().Stringer("appointment_id", rec.AppointmentID).Time("starts_at", slot).Msg("appointment rescheduled by customer")
	i.reply(ctx, rec, fmt.Sprintf("Prontinho! Seu horário foi remarcado para %s às %s. ✅",
		slot.Format(dateLayout), slot.Format(timeLayout)))
	return nil
}

// transition commits a conversation state change through the ledger's
// compare-and-set update. The returned bool reports whether this call
// won the update: a lost race (another writer already moved the record)
// returns false, and the caller must not message the customer as if the
// transition happened.
func (i *Interpreter) transition(ctx context.Context, rec *model.NotificationRecord, from, to model.Status, upd repo.StatusUpdate) (bool, error) {
	err := i.ledger.UpdateStatus(ctx, rec.ID, []model.Status{from}, to, upd)
	if err != nil {
		if errors.Is(err, repo.ErrStaleStatus) {
			i.logger.Warn().Stringer("notification_id", rec.ID).
				Str("from", string(from)).Str("to", string(to)).
				Msg("conversation transitioned concurrently")
			return false, nil
		}
		return false, fmt.Errorf("interpreter: transition %s -> %s: %w", from, to, err)
	}
	return true, nil
}

// withinBookingWindow checks the organization's rescheduling bounds:
// from tomorrow up to maxAdvanceDays ahead.
func (i *Interpreter) withinBookingWindow(date, now time.Time) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	latest := today.AddDate(0, 0, i.maxAdvanceDays)
	return date.After(today) && !date.After(latest)
}

// reply sends a conversational message back to the customer on the
// record's own channel instance. Best effort: a failed prompt is
// logged, the committed state stands and the customer can always write
// again.
func (i *Interpreter) reply(ctx context.Context, rec *model.NotificationRecord, text string) {
	if rec.InstanceID == nil {
		i.logger.Error().Stringer("notification_id", rec.ID).Msg("cannot reply: record has no channel instance")
		return
	}
	if _, err := i.sender.SendText(ctx, *rec.InstanceID, rec.Phone, text); err != nil {
		i.logger.Error().Err(err).Stringer("notification_id", rec.ID).Msg("failed to send conversation reply")
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
