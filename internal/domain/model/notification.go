package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType identifies what kind of message a rule fires.
// The set is open: organizations may configure types beyond the
// built-in ones; the engine only gives special treatment to
// confirmation requests (they open a conversation).
type NotificationType string

const (
	TypeReminder     NotificationType = "reminder"
	TypeConfirmation NotificationType = "confirmation"
	TypeFollowUp     NotificationType = "follow_up"
)

// Status represents the lifecycle state of a notification record.
type Status string

const (
	StatusPending     Status = "pending"     // Scheduled by the scanner, not yet dispatched.
	StatusDispatching Status = "dispatching" // Claimed by a dispatch worker, send in flight.
	StatusSent        Status = "sent"        // Accepted by the messaging gateway, no reply expected.

	// Conversation states. Only confirmation-type records enter these.
	StatusAwaitingReply    Status = "awaiting_reply"     // Waiting for yes / no / reschedule.
	StatusAwaitingNewDate  Status = "awaiting_new_date"  // Waiting for the customer to propose a date.
	StatusAwaitingTimeSlot Status = "awaiting_time_slot" // Waiting for the customer to pick a slot.

	// Terminal states.
	StatusDelivered Status = "delivered" // Gateway reported delivery for a non-conversational message.
	StatusConfirmed Status = "confirmed" // Customer confirmed the appointment.
	StatusCancelled Status = "cancelled" // Customer declined, or the appointment was cancelled.
	StatusExpired   Status = "expired"   // Conversation timed out without a reply.
	StatusFailed    Status = "failed"    // Dispatch failed; needs operator attention.
)

// transitions is the authoritative state machine. Every writer goes
// through the repository's compare-and-set update, which takes its
// expected source states from here.
var transitions = map[Status][]Status{
	StatusPending:          {StatusDispatching, StatusFailed, StatusCancelled},
	StatusDispatching:      {StatusSent, StatusAwaitingReply, StatusFailed, StatusCancelled},
	StatusSent:             {StatusDelivered},
	StatusAwaitingReply:    {StatusConfirmed, StatusCancelled, StatusAwaitingNewDate, StatusExpired},
	StatusAwaitingNewDate:  {StatusAwaitingTimeSlot, StatusCancelled, StatusExpired},
	StatusAwaitingTimeSlot: {StatusConfirmed, StatusCancelled, StatusExpired},
}

// AwaitingStatuses are the states in which a record has an open
// conversation with the customer. At most one record per
// (instance, phone) pair may be in any of these at a time.
func AwaitingStatuses() []Status {
	return []Status{StatusAwaitingReply, StatusAwaitingNewDate, StatusAwaitingTimeSlot}
}

// OpenStatuses are all non-terminal states a record can still leave.
// Used when an appointment cancellation has to close everything
// outstanding for it.
func OpenStatuses() []Status {
	return []Status{StatusPending, StatusDispatching, StatusAwaitingReply, StatusAwaitingNewDate, StatusAwaitingTimeSlot}
}

// CanTransition reports whether the state machine allows moving a
// record from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing transitions.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// IsAwaiting reports whether the status represents an open conversation.
func (s Status) IsAwaiting() bool {
	for _, a := range AwaitingStatuses() {
		if s == a {
			return true
		}
	}
	return false
}

// NotificationRecord is the ledger entry for one fired (or scheduled)
// notification. The triple (AppointmentID, Type, HoursBefore) is unique
// in storage and is the engine's idempotency key.
type NotificationRecord struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	AppointmentID  uuid.UUID
	Type           NotificationType
	HoursBefore    int
	Status         Status

	// ScheduledFor is the trigger time: appointment start minus HoursBefore.
	ScheduledFor time.Time

	Phone      string  // Destination phone, captured at scan time.
	InstanceID *string // Channel instance used for dispatch, set by the dispatcher.
	ExternalID *string // Gateway message id, set on successful send.
	LastError  *string // Cause of the last failure, if any.

	// ProposedDate holds the customer's rescheduling date while the
	// conversation is in awaiting_time_slot.
	ProposedDate *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewNotificationRecord builds a pending ledger entry for an
// appointment a rule has become due for.
func NewNotificationRecord(appt *Appointment, rule *NotificationRule) *NotificationRecord {
	now := time.Now().UTC()
	return &NotificationRecord{
		ID:             uuid.New(),
		OrganizationID: appt.OrganizationID,
		AppointmentID:  appt.ID,
		Type:           rule.Type,
		HoursBefore:    rule.HoursBefore,
		Status:         StatusPending,
		ScheduledFor:   appt.StartsAt.Add(-time.Duration(rule.HoursBefore) * time.Hour),
		Phone:          appt.CustomerPhone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
