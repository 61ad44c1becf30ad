package model

import (
	"time"

	"github.com/google/uuid"
)

// ChannelInstance is an organization's connected outbound messaging
// endpoint (a WhatsApp number registered on the gateway). The
// dispatcher refuses to send when no connected instance exists.
type ChannelInstance struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	InstanceID     string // Gateway-side instance identifier.
	PhoneNumber    string
	Connected      bool
	UpdatedAt      time.Time
}

// InboundMessage is a customer reply delivered by the gateway webhook.
type InboundMessage struct {
	InstanceID string
	Phone      string
	Body       string
	ReceivedAt time.Time
}
