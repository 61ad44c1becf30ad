package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"pending to dispatching", StatusPending, StatusDispatching, true},
		{"pending to failed", StatusPending, StatusFailed, true},
		{"pending to cancelled", StatusPending, StatusCancelled, true},
		{"pending straight to sent", StatusPending, StatusSent, false},
		{"pending straight to awaiting reply", StatusPending, StatusAwaitingReply, false},
		{"pending straight to confirmed", StatusPending, StatusConfirmed, false},
		{"dispatching to sent", StatusDispatching, StatusSent, true},
		{"dispatching to awaiting reply", StatusDispatching, StatusAwaitingReply, true},
		{"dispatching to failed", StatusDispatching, StatusFailed, true},
		{"dispatching to cancelled", StatusDispatching, StatusCancelled, true},
		{"dispatching back to pending", StatusDispatching, StatusPending, false},
		{"sent to delivered", StatusSent, StatusDelivered, true},
		{"sent back to pending", StatusSent, StatusPending, false},
		{"awaiting reply to confirmed", StatusAwaitingReply, StatusConfirmed, true},
		{"awaiting reply to cancelled", StatusAwaitingReply, StatusCancelled, true},
		{"awaiting reply to new date", StatusAwaitingReply, StatusAwaitingNewDate, true},
		{"awaiting reply to expired", StatusAwaitingReply, StatusExpired, true},
		{"awaiting reply to time slot directly", StatusAwaitingReply, StatusAwaitingTimeSlot, false},
		{"awaiting new date to time slot", StatusAwaitingNewDate, StatusAwaitingTimeSlot, true},
		{"awaiting new date back to reply", StatusAwaitingNewDate, StatusAwaitingReply, false},
		{"awaiting time slot to confirmed", StatusAwaitingTimeSlot, StatusConfirmed, true},
		{"confirmed is final", StatusConfirmed, StatusCancelled, false},
		{"cancelled is final", StatusCancelled, StatusPending, false},
		{"expired is final", StatusExpired, StatusAwaitingReply, false},
		{"failed is final", StatusFailed, StatusPending, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTransition(tc.from, tc.to); got != tc.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := []Status{StatusDelivered, StatusConfirmed, StatusCancelled, StatusExpired, StatusFailed}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	open := []Status{StatusPending, StatusDispatching, StatusSent, StatusAwaitingReply, StatusAwaitingNewDate, StatusAwaitingTimeSlot}
	for _, s := range open {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestStatusIsAwaiting(t *testing.T) {
	for _, s := range AwaitingStatuses() {
		if !s.IsAwaiting() {
			t.Errorf("%s should be awaiting", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusDispatching, StatusSent, StatusConfirmed, StatusFailed} {
		if s.IsAwaiting() {
			t.Errorf("%s should not be awaiting", s)
		}
	}
}

func TestNewNotificationRecord(t *testing.T) {
	appt := &Appointment{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		CustomerName:   "Maria",
		CustomerPhone:  "5511999990000",
		StartsAt:       time.Date(2026, 3, 20, 14, 0, 0, 0, time.UTC),
		Status:         AppointmentScheduled,
	}
	rule := &NotificationRule{
		ID:             uuid.New(),
		OrganizationID: appt.OrganizationID,
		Type:           TypeConfirmation,
		HoursBefore:    24,
		Active:         true,
	}

	rec := NewNotificationRecord(appt, rule)

	if rec.Status != StatusPending {
		t.Errorf("new record status = %s, want %s", rec.Status, StatusPending)
	}
	if rec.AppointmentID != appt.ID {
		t.Errorf("appointment id = %s, want %s", rec.AppointmentID, appt.ID)
	}
	if rec.OrganizationID != appt.OrganizationID {
		t.Errorf("organization id = %s, want %s", rec.OrganizationID, appt.OrganizationID)
	}
	if rec.Type != TypeConfirmation || rec.HoursBefore != 24 {
		t.Errorf("rule fields not carried over: type=%s hours=%d", rec.Type, rec.HoursBefore)
	}
	if rec.Phone != appt.CustomerPhone {
		t.Errorf("phone = %s, want %s", rec.Phone, appt.CustomerPhone)
	}

	wantTrigger := time.Date(2026, 3, 19, 14, 0, 0, 0, time.UTC)
	if !rec.ScheduledFor.Equal(wantTrigger) {
		t.Errorf("scheduled for = %s, want %s", rec.ScheduledFor, wantTrigger)
	}
}
