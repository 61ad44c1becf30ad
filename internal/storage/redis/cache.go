package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/salonkit/appointment-notifier/internal/domain/model"
	repo "github.com/salonkit/appointment-notifier/internal/domain/repository"
	"github.com/salonkit/appointment-notifier/pkg/keybuilder"
)

// Ensure RuleCache implements the interface
var _ repo.RuleCache = (*RuleCache)(nil)

// RuleCache implements the domain RuleCache interface using the
// standard go-redis client. It holds the full active rule set under a
// single key, refreshed on a short TTL.
type RuleCache struct {
	redis  *goredis.Client
	logger zerolog.Logger
}

// NewRuleCache creates a new instance of the RuleCache.
func NewRuleCache(logger *zerolog.Logger, redis *goredis.Client) *RuleCache {
	return &RuleCache{
		redis:  redis,
		logger: logger.With().Str("layer", "redis_rule_cache").Logger(),
	}
}

// GetActive retrieves the cached active rule set.
func (c *RuleCache) GetActive(ctx context.Context) ([]*model.NotificationRule, error) {
	key := keybuilder.RedisActiveRulesKeyBuild()
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			c.logger.Debug().Str("key", key).Str("cache", "miss").Msg("active rules not found in cache")
			return nil, repo.ErrNotFound
		}
		c.logger.Error().Err(err).Str("key", key).Msg("failed to get key from redis")
		return nil, err
	}

	var rules []*model.NotificationRule
	if err := json.Unmarshal([]byte(val), &rules); err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("failed to unmarshal rules from cache")
		return nil, fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	c.logger.Debug().Str("key", key).Str("cache", "hit").Msg("active rules found in cache")
	return rules, nil
}

// SetActive stores the active rule set for the given duration.
func (c *RuleCache) SetActive(ctx context.Context, rules []*model.NotificationRule, expiration time.Duration) error {
	key := keybuilder.RedisActiveRulesKeyBuild()
	data, err := json.Marshal(rules)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to marshal rules for cache")
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	if err := c.redis.Set(ctx, key, data, expiration).Err(); err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("failed to set key in redis")
		return err
	}
	return nil
}

// Invalidate drops the cached rule set.
func (c *RuleCache) Invalidate(ctx context.Context) error {
	key := keybuilder.RedisActiveRulesKeyBuild()
	if err := c.redis.Del(ctx, key).Err(); err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("failed to delete key from redis")
		return err
	}
	return nil
}
