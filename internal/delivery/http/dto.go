package http

import (
	"time"

	"github.com/google/uuid"

	"github.com/salonkit/appointment-notifier/internal/domain/model"
)

// InboundMessageRequest is the payload the messaging gateway posts for
// every customer reply.
type InboundMessageRequest struct {
	InstanceID string    `json:"instance_id" binding:"required"`
	Phone      string    `json:"phone" binding:"required"`
	Message    string    `json:"message" binding:"required"`
	Timestamp  time.Time `json:"timestamp"`
}

// CreateRuleRequest defines the structure for a new notification rule.
// It uses `json` tags for unmarshalling and `binding` for validation with Gin.
type CreateRuleRequest struct {
	Type        string  `json:"type" binding:"required"`
	HoursBefore int     `json:"hours_before" binding:"required,min=1,max=48"`
	Template    *string `json:"template,omitempty"`
}

// UpdateRuleRequest defines the mutable fields of an existing rule.
type UpdateRuleRequest struct {
	Active   *bool   `json:"active,omitempty"`
	Template *string `json:"template,omitempty"`
}

// RuleResponse defines the structure for a notification rule response.
type RuleResponse struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Type           string    `json:"type"`
	HoursBefore    int       `json:"hours_before"`
	Active         bool      `json:"active"`
	Template       *string   `json:"template,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// RecordResponse defines the structure for a ledger entry in the
// operational reports. We don't expose all internal fields.
type RecordResponse struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Type          string    `json:"type"`
	HoursBefore   int       `json:"hours_before"`
	Status        string    `json:"status"`
	Phone         string    `json:"phone"`
	LastError     *string   `json:"last_error,omitempty"`
	ScheduledFor  time.Time `json:"scheduled_for"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ErrorResponse defines a standard structure for API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func toRuleResponse(r *model.NotificationRule) RuleResponse {
	return RuleResponse{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		Type:           string(r.Type),
		HoursBefore:    r.HoursBefore,
		Active:         r.Active,
		Template:       r.Template,
		CreatedAt:      r.CreatedAt,
	}
}

func toRecordResponse(rec *model.NotificationRecord) RecordResponse {
	return RecordResponse{
		ID:            rec.ID,
		AppointmentID: rec.AppointmentID,
		Type:          string(rec.Type),
		HoursBefore:   rec.HoursBefore,
		Status:        string(rec.Status),
		Phone:         rec.Phone,
		LastError:     rec.LastError,
		ScheduledFor:  rec.ScheduledFor,
		UpdatedAt:     rec.UpdatedAt,
	}
}

func toRecordResponses(recs []*model.NotificationRecord) []RecordResponse {
	out := make([]RecordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRecordResponse(rec))
	}
	return out
}
