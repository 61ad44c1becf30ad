package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/salonkit/appointment-notifier/internal/domain/model"
	repo "github.com/salonkit/appointment-notifier/internal/domain/repository"
)

// Ensure CachedRuleRepository implements the interface
var _ repo.RuleRepository = (*CachedRuleRepository)(nil)

// CachedRuleRepository is a decorator for a RuleRepository that caches
// the active rule set in Redis. The scanner reads that set on every
// tick while rules change rarely, so a short TTL removes almost all of
// the per-tick rule queries. Writes invalidate the cache.
type CachedRuleRepository struct {
	primaryRepo repo.RuleRepository
	cache       repo.RuleCache
	logger      zerolog.Logger
	ttl         time.Duration
}

// NewCachedRuleRepository creates a new instance of the cached repository.
func NewCachedRuleRepository(
	primaryRepo repo.RuleRepository,
	cache repo.RuleCache,
	logger *zerolog.Logger,
) *CachedRuleRepository {
	return &CachedRuleRepository{
		primaryRepo: primaryRepo,
		cache:       cache,
		logger:      logger.With().Str("layer", "cached_rule_repository").Logger(),
		ttl:         time.Minute, // Rules tolerate up to a minute of staleness.
	}
}

// ListActive implements the cache-aside pattern over the active rule set.
func (r *CachedRuleRepository) ListActive(ctx context.Context) ([]*model.NotificationRule, error) {
	cached, err := r.cache.GetActive(ctx)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		r.logger.Error().Err(err).Msg("cache get error, falling back to primary repository")
	}

	rules, err := r.primaryRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	if err := r.cache.SetActive(ctx, rules, r.ttl); err != nil {
		r.logger.Error().Err(err).Msg("failed to cache active rules after db fetch")
	}
	return rules, nil
}

// ListByOrganization passes through to the primary repository.
func (r *CachedRuleRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*model.NotificationRule, error) {
	return r.primaryRepo.ListByOrganization(ctx, orgID)
}

// Find passes through to the primary repository.
func (r *CachedRuleRepository) Find(ctx context.Context, orgID uuid.UUID, typ model.NotificationType, hoursBefore int) (*model.NotificationRule, error) {
	return r.primaryRepo.Find(ctx, orgID, typ, hoursBefore)
}

// Create persists through the primary repository and invalidates the
// cached active set.
func (r *CachedRuleRepository) Create(ctx context.Context, rule *model.NotificationRule) (*model.NotificationRule, error) {
	created, err := r.primaryRepo.Create(ctx, rule)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Invalidate(ctx); err != nil {
		r.logger.Error().Err(err).Msg("failed to invalidate rule cache after create")
	}
	return created, nil
}

// Update persists through the primary repository and invalidates the
// cached active set.
func (r *CachedRuleRepository) Update(ctx context.Context, rule *model.NotificationRule) error {
	if err := r.primaryRepo.Update(ctx, rule); err != nil {
		return err
	}
	if err := r.cache.Invalidate(ctx); err != nil {
		r.logger.Error().Err(err).Msg("failed to invalidate rule cache after update")
	}
	return nil
}
