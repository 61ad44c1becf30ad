package model

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus mirrors the booking subsystem's lifecycle states.
// The engine never writes these directly; status changes go through
// the booking client.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentCompleted AppointmentStatus = "completed"
)

// Appointment is the read-only view of a booking this engine consumes.
type Appointment struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	CustomerName   string
	CustomerPhone  string
	StartsAt       time.Time
	Status         AppointmentStatus
}

// IsBookable reports whether the appointment is still going to happen,
// i.e. notifications about it make sense.
func (a *Appointment) IsBookable() bool {
	return a.Status == AppointmentScheduled || a.Status == AppointmentConfirmed
}
