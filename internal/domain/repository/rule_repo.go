package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/salonkit/appointment-notifier/internal/domain/model"
)

// RuleRepository defines the contract for notification-rule persistence.
type RuleRepository interface {
	// ListActive returns every active rule across all organizations.
	// Read on every scanner tick, so implementations may cache it.
	ListActive(ctx context.Context) ([]*model.NotificationRule, error)

	// ListByOrganization returns all rules of one organization.
	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*model.NotificationRule, error)

	// Find returns the rule matching the identity triple, or ErrNotFound.
	Find(ctx context.Context, orgID uuid.UUID, typ model.NotificationType, hoursBefore int) (*model.NotificationRule, error)

	// Create persists a new rule. A unique violation on
	// (organization, type, hours_before) yields ErrDuplicateRecord.
	Create(ctx context.Context, rule *model.NotificationRule) (*model.NotificationRule, error)

	// Update replaces the mutable fields (active flag, template) of a rule.
	Update(ctx context.Context, rule *model.NotificationRule) error
}

// RuleCache defines the contract for a caching layer over the active
// rule set.
type RuleCache interface {
	// GetActive retrieves the cached active rule set, or ErrNotFound on miss.
	GetActive(ctx context.Context) ([]*model.NotificationRule, error)

	// SetActive stores the active rule set for the given duration.
	SetActive(ctx context.Context, rules []*model.NotificationRule, expiration time.Duration) error

	// Invalidate drops the cached rule set.
	Invalidate(ctx context.Context) error
}
