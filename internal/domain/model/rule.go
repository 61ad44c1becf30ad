package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationRule is an organization's policy for one notification:
// which type fires and how many hours before the appointment. The
// triple (OrganizationID, Type, HoursBefore) is unique.
type NotificationRule struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Type           NotificationType
	HoursBefore    int // 1..48
	Active         bool

	// Template is an opaque message template. The dispatcher only
	// substitutes the {{name}}, {{date}} and {{time}} placeholders;
	// nil means the built-in default text for the type.
	Template *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewNotificationRule builds an active rule for an organization.
func NewNotificationRule(orgID uuid.UUID, typ NotificationType, hoursBefore int, template *string) *NotificationRule {
	now := time.Now().UTC()
	return &NotificationRule{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Type:           typ,
		HoursBefore:    hoursBefore,
		Active:         true,
		Template:       template,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
