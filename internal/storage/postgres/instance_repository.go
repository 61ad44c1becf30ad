package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/salonkit/appointment-notifier/internal/domain/model"
	repo "github.com/salonkit/appointment-notifier/internal/domain/repository"
)

// Ensure ChannelInstanceRepository implements the interface
var _ repo.ChannelInstanceRepository = (*ChannelInstanceRepository)(nil)

// ChannelInstanceRepository reads the registry of per-organization
// messaging endpoints.
type ChannelInstanceRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewChannelInstanceRepository creates a new instance of the repository.
func NewChannelInstanceRepository(pool *pgxpool.Pool, logger *zerolog.Logger) *ChannelInstanceRepository {
	return &ChannelInstanceRepository{
		pool:   pool,
		logger: logger.With().Str("layer", "postgres_instances").Logger(),
	}
}

// ConnectedByOrganization returns the organization's connected channel
// instance. When several are connected the most recently updated wins.
func (r *ChannelInstanceRepository) ConnectedByOrganization(ctx context.Context, orgID uuid.UUID) (*model.ChannelInstance, error) {
	const query = `
		SELECT id, organization_id, instance_id, phone_number, connected, updated_at
		FROM channel_instances
		WHERE organization_id = $1 AND connected
		ORDER BY updated_at DESC
		LIMIT 1`

	var (
		id, org   pgtype.UUID
		instance  string
		phone     string
		connected bool
		updatedAt pgtype.Timestamptz
	)

	err := r.pool.QueryRow(ctx, query, pgUUID(orgID)).
		Scan(&id, &org, &instance, &phone, &connected, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		r.logger.Err(err).Stringer("organization_id", orgID).Msg("cannot get channel instance")
		return nil, fmt.Errorf("postgres: get channel instance failed: %w", err)
	}

	return &model.ChannelInstance{
		ID:             uuid.UUID(id.Bytes),
		OrganizationID: uuid.UUID(org.Bytes),
		InstanceID:     instance,
		PhoneNumber:    phone,
		Connected:      connected,
		UpdatedAt:      updatedAt.Time,
	}, nil
}
