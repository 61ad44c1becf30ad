package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/salonkit/appointment-notifier/internal/domain/model"
)

// StatusUpdate carries the optional fields a status transition may set
// alongside the new status. Nil fields are left untouched.
type StatusUpdate struct {
	InstanceID   *string
	ExternalID   *string
	LastError    *string
	ProposedDate *time.Time
}

// LedgerRepository defines the contract for the notification ledger,
// the single shared mutable resource of the engine. All of its writers
// (scanner, dispatcher, interpreter, sweeper, event consumer)
// coordinate exclusively through the unique key on insert and the
// compare-and-set semantics of UpdateStatus.
type LedgerRepository interface {
	// Insert persists a new record. A unique violation on
	// (appointment, type, hours_before) yields ErrDuplicateRecord.
	Insert(ctx context.Context, rec *model.NotificationRecord) (*model.NotificationRecord, error)

	// GetByID retrieves a record by its unique ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.NotificationRecord, error)

	// ListDuePending returns up to limit pending records whose trigger
	// time has passed, oldest trigger first.
	ListDuePending(ctx context.Context, now time.Time, limit int) ([]*model.NotificationRecord, error)

	// UpdateStatus transitions a record to a new status if and only if
	// its current status is one of the expected source states. Returns
	// ErrStaleStatus when the row was in none of them.
	UpdateStatus(ctx context.Context, id uuid.UUID, from []model.Status, to model.Status, upd StatusUpdate) error

	// OpenConversations returns the records in an awaiting state for a
	// (instance, phone) pair, newest first. More than one result is an
	// integrity fault the caller must resolve.
	OpenConversations(ctx context.Context, instanceID, phone string) ([]*model.NotificationRecord, error)

	// ExpireStale transitions every awaiting record untouched since
	// before the cutoff to expired, returning how many were closed.
	ExpireStale(ctx context.Context, cutoff time.Time) (int64, error)

	// CancelForAppointment closes every open record for a cancelled
	// appointment, returning how many were closed.
	CancelForAppointment(ctx context.Context, appointmentID uuid.UUID) (int64, error)

	// ListFailed returns failed records updated at or after since,
	// newest first. Feeds the operator report endpoint.
	ListFailed(ctx context.Context, since time.Time) ([]*model.NotificationRecord, error)

	// ListStuck returns awaiting and dispatching records untouched
	// since before the cutoff, oldest first. Feeds the operator
	// report endpoint.
	ListStuck(ctx context.Context, cutoff time.Time) ([]*model.NotificationRecord, error)
}

// AppointmentSource is the read-only view of the booking subsystem's
// appointments the scanner and dispatcher consume.
type AppointmentSource interface {
	// GetByID retrieves one appointment.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error)

	// DueForRule returns the bookable appointments whose trigger time
	// for the rule (start minus hours_before) lies between triggerAfter
	// and now, whose start is still in the future, and which have no
	// ledger record for the rule's (type, hours_before) yet. The
	// existence filter is an optimization only; the ledger's unique key
	// remains the source of truth for idempotency.
	DueForRule(ctx context.Context, rule *model.NotificationRule, now, triggerAfter time.Time) ([]*model.Appointment, error)
}

// ChannelInstanceRepository resolves an organization's messaging endpoint.
type ChannelInstanceRepository interface {
	// ConnectedByOrganization returns the organization's connected
	// channel instance, or ErrNotFound when none is connected.
	ConnectedByOrganization(ctx context.Context, orgID uuid.UUID) (*model.ChannelInstance, error)
}
