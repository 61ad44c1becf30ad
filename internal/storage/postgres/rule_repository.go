package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/salonkit/appointment-notifier/internal/domain/model"
	repo "github.com/salonkit/appointment-notifier/internal/domain/repository"
)

// Ensure RuleRepository implements the interface
var _ repo.RuleRepository = (*RuleRepository)(nil)

const ruleColumns = `id, organization_id, type, hours_before, active, template, created_at, updated_at`

// RuleRepository implements the domain RuleRepository interface using
// PostgreSQL as a backend.
type RuleRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewRuleRepository creates a new instance of the RuleRepository.
func NewRuleRepository(pool *pgxpool.Pool, logger *zerolog.Logger) *RuleRepository {
	return &RuleRepository{
		pool:   pool,
		logger: logger.With().Str("layer", "postgres_rules").Logger(),
	}
}

// ListActive returns every active rule across all organizations.
func (r *RuleRepository) ListActive(ctx context.Context) ([]*model.NotificationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM notification_rules WHERE active ORDER BY organization_id, hours_before`
	return r.queryRules(ctx, query)
}

// ListByOrganization returns all rules of one organization.
func (r *RuleRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*model.NotificationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM notification_rules WHERE organization_id = $1 ORDER BY hours_before`
	return r.queryRules(ctx, query, pgUUID(orgID))
}

// Find returns the rule matching the identity triple.
func (r *RuleRepository) Find(ctx context.Context, orgID uuid.UUID, typ model.NotificationType, hoursBefore int) (*model.NotificationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM notification_rules WHERE organization_id = $1 AND type = $2 AND hours_before = $3`

	rule, err := scanRule(r.pool.QueryRow(ctx, query, pgUUID(orgID), string(typ), int16(hoursBefore)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		r.logger.Err(err).Str("method", "Find").Msg("cannot get rule")
		return nil, fmt.Errorf("postgres: find rule failed: %w", err)
	}
	return rule, nil
}

// Create persists a new rule.
func (r *RuleRepository) Create(ctx context.Context, rule *model.NotificationRule) (*model.NotificationRule, error) {
	const query = `
		INSERT INTO notification_rules
			(id, organization_id, type, hours_before, active, template, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + ruleColumns

	row := r.pool.QueryRow(ctx, query,
		pgUUID(rule.ID), pgUUID(rule.OrganizationID), string(rule.Type),
		int16(rule.HoursBefore), rule.Active, pgText(rule.Template),
		pgTime(rule.CreatedAt), pgTime(rule.UpdatedAt),
	)

	created, err := scanRule(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, repo.ErrDuplicateRecord
		}
		r.logger.Err(err).Msg("cannot create rule")
		return nil, fmt.Errorf("postgres: create rule failed: %w", err)
	}
	return created, nil
}

// Update replaces the mutable fields of a rule.
func (r *RuleRepository) Update(ctx context.Context, rule *model.NotificationRule) error {
	const query = `
		UPDATE notification_rules
		SET active = $2, template = $3, updated_at = now()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, pgUUID(rule.ID), rule.Active, pgText(rule.Template))
	if err != nil {
		r.logger.Err(err).Stringer("id", rule.ID).Msg("cannot update rule")
		return fmt.Errorf("postgres: update rule failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn().Stringer("id", rule.ID).Msg("tried to update non-existent rule")
		return repo.ErrNotFound
	}
	return nil
}

func (r *RuleRepository) queryRules(ctx context.Context, query string, args ...any) ([]*model.NotificationRule, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Err(err).Msg("cannot query rules")
		return nil, fmt.Errorf("postgres: query rules failed: %w", err)
	}
	defer rows.Close()

	var rules []*model.NotificationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan rule failed: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate rules failed: %w", err)
	}
	return rules, nil
}

// scanRule converts one database row into the domain model.
func scanRule(row pgx.Row) (*model.NotificationRule, error) {
	var (
		id, orgID            pgtype.UUID
		typ                  string
		hoursBefore          int16
		active               bool
		template             pgtype.Text
		createdAt, updatedAt pgtype.Timestamptz
	)

	if err := row.Scan(&id, &orgID, &typ, &hoursBefore, &active, &template, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	rule := &model.NotificationRule{
		ID:             uuid.UUID(id.Bytes),
		OrganizationID: uuid.UUID(orgID.Bytes),
		Type:           model.NotificationType(typ),
		HoursBefore:    int(hoursBefore),
		Active:         active,
		CreatedAt:      createdAt.Time,
		UpdatedAt:      updatedAt.Time,
	}
	if template.Valid {
		rule.Template = &template.String
	}
	return rule, nil
}
