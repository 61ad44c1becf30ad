package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

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

// Ensure LedgerRepository implements the interface
var _ repo.LedgerRepository = (*LedgerRepository)(nil)

const recordColumns = `id, organization_id, appointment_id, type, hours_before, status,
	scheduled_for, phone, instance_id, external_id, last_error, proposed_date,
	created_at, updated_at`

// LedgerRepository implements the domain LedgerRepository interface
// using PostgreSQL as a backend. The unique index on
// (appointment_id, type, hours_before) carries the engine's
// exactly-once guarantee.
type LedgerRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewLedgerRepository creates a new instance of the LedgerRepository.
func NewLedgerRepository(pool *pgxpool.Pool, logger *zerolog.Logger) *LedgerRepository {
	return &LedgerRepository{
		pool:   pool,
		logger: logger.With().Str("layer", "postgres_ledger").Logger(),
	}
}

// Insert persists a new notification record.
func (r *LedgerRepository) Insert(ctx context.Context, rec *model.NotificationRecord) (*model.NotificationRecord, error) {
	const query = `
		INSERT INTO notifications
			(id, organization_id, appointment_id, type, hours_before, status,
			 scheduled_for, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + recordColumns

	row := r.pool.QueryRow(ctx, query,
		pgUUID(rec.ID), pgUUID(rec.OrganizationID), pgUUID(rec.AppointmentID),
		string(rec.Type), int16(rec.HoursBefore), string(rec.Status),
		pgTime(rec.ScheduledFor), rec.Phone, pgTime(rec.CreatedAt), pgTime(rec.UpdatedAt),
	)

	created, err := scanRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, repo.ErrDuplicateRecord
		}
		r.logger.Err(err).Stringer("appointment_id", rec.AppointmentID).Msg("cannot insert notification")
		return nil, fmt.Errorf("postgres: insert notification failed: %w", err)
	}

	return created, nil
}

// GetByID retrieves a record by its unique ID.
func (r *LedgerRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.NotificationRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM notifications WHERE id = $1`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, pgUUID(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn().Stringer("id", id).Msg("notification not found by id")
			return nil, repo.ErrNotFound
		}
		r.logger.Err(err).Str("method", "GetByID").Msg("cannot get notification")
		return nil, fmt.Errorf("postgres: get notification failed: %w", err)
	}

	return rec, nil
}

// ListDuePending returns pending records whose trigger time has passed.
func (r *LedgerRepository) ListDuePending(ctx context.Context, now time.Time, limit int) ([]*model.NotificationRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM notifications
		WHERE status = $1 AND scheduled_for <= $2
		ORDER BY scheduled_for
		LIMIT $3`

	return r.queryRecords(ctx, query, string(model.StatusPending), pgTime(now), limit)
}

// UpdateStatus performs the compare-and-set transition every writer
// relies on: the row is updated only while it is still in one of the
// expected source states.
func (r *LedgerRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from []model.Status, to model.Status, upd repo.StatusUpdate) error {
	const query = `
		UPDATE notifications
		SET status = $3,
			instance_id = COALESCE($4, instance_id),
			external_id = COALESCE($5, external_id),
			last_error = COALESCE($6, last_error),
			proposed_date = COALESCE($7, proposed_date),
			updated_at = now()
		WHERE id = $1 AND status = ANY($2)`

	tag, err := r.pool.Exec(ctx, query,
		pgUUID(id), statusStrings(from), string(to),
		pgText(upd.InstanceID), pgText(upd.ExternalID), pgText(upd.LastError),
		pgTimePtr(upd.ProposedDate),
	)
	if err != nil {
		r.logger.Err(err).Stringer("id", id).Str("to", string(to)).Msg("cannot update notification status")
		return fmt.Errorf("postgres: update notification status failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn().Stringer("id", id).Str("to", string(to)).Msg("stale status on update")
		return repo.ErrStaleStatus
	}
	return nil
}

// OpenConversations returns awaiting records for a (instance, phone)
// pair, newest first.
func (r *LedgerRepository) OpenConversations(ctx context.Context, instanceID, phone string) ([]*model.NotificationRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM notifications
		WHERE instance_id = $1 AND phone = $2 AND status = ANY($3)
		ORDER BY created_at DESC`

	return r.queryRecords(ctx, query, instanceID, phone, statusStrings(model.AwaitingStatuses()))
}

// ExpireStale closes every awaiting conversation untouched since
// before the cutoff.
func (r *LedgerRepository) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
		UPDATE notifications
		SET status = $1, updated_at = now()
		WHERE status = ANY($2) AND updated_at < $3`

	tag, err := r.pool.Exec(ctx, query,
		string(model.StatusExpired), statusStrings(model.AwaitingStatuses()), pgTime(cutoff))
	if err != nil {
		r.logger.Err(err).Msg("cannot expire stale conversations")
		return 0, fmt.Errorf("postgres: expire stale failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CancelForAppointment closes every open record for the appointment.
func (r *LedgerRepository) CancelForAppointment(ctx context.Context, appointmentID uuid.UUID) (int64, error) {
	const query = `
		UPDATE notifications
		SET status = $1, updated_at = now()
		WHERE appointment_id = $2 AND status = ANY($3)`

	tag, err := r.pool.Exec(ctx, query,
		string(model.StatusCancelled), pgUUID(appointmentID), statusStrings(model.OpenStatuses()))
	if err != nil {
		r.logger.Err(err).Stringer("appointment_id", appointmentID).Msg("cannot cancel notifications for appointment")
		return 0, fmt.Errorf("postgres: cancel for appointment failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListFailed returns failed records updated at or after since.
func (r *LedgerRepository) ListFailed(ctx context.Context, since time.Time) ([]*model.NotificationRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM notifications
		WHERE status = $1 AND updated_at >= $2
		ORDER BY updated_at DESC`

	return r.queryRecords(ctx, query, string(model.StatusFailed), pgTime(since))
}

// ListStuck returns records untouched since before the cutoff that are
// awaiting a customer reply, plus dispatching rows whose send never got
// a final status and need operator follow-up.
func (r *LedgerRepository) ListStuck(ctx context.Context, cutoff time.Time) ([]*model.NotificationRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM notifications
		WHERE status = ANY($1) AND updated_at < $2
		ORDER BY updated_at`

	stuck := append(model.AwaitingStatuses(), model.StatusDispatching)
	return r.queryRecords(ctx, query, statusStrings(stuck), pgTime(cutoff))
}

func (r *LedgerRepository) queryRecords(ctx context.Context, query string, args ...any) ([]*model.NotificationRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Err(err).Msg("cannot query notifications")
		return nil, fmt.Errorf("postgres: query notifications failed: %w", err)
	}
	defer rows.Close()

	var records []*model.NotificationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan notification failed: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate notifications failed: %w", err)
	}
	return records, nil
}

// === Mapper Functions ===

// scanRecord converts one database row into the domain model.
func scanRecord(row pgx.Row) (*model.NotificationRecord, error) {
	var (
		id, orgID, apptID                pgtype.UUID
		typ, status, phone               string
		hoursBefore                      int16
		scheduledFor, createdAt, updated pgtype.Timestamptz
		instanceID, externalID, lastErr  pgtype.Text
		proposedDate                     pgtype.Timestamptz
	)

	err := row.Scan(&id, &orgID, &apptID, &typ, &hoursBefore, &status,
		&scheduledFor, &phone, &instanceID, &externalID, &lastErr, &proposedDate,
		&createdAt, &updated)
	if err != nil {
		return nil, err
	}

	rec := &model.NotificationRecord{
		ID:             uuid.UUID(id.Bytes),
		OrganizationID: uuid.UUID(orgID.Bytes),
		AppointmentID:  uuid.UUID(apptID.Bytes),
		Type:           model.NotificationType(typ),
		HoursBefore:    int(hoursBefore),
		Status:         model.Status(status),
		ScheduledFor:   scheduledFor.Time,
		Phone:          phone,
		CreatedAt:      createdAt.Time,
		UpdatedAt:      updated.Time,
	}
	if instanceID.Valid {
		rec.InstanceID = &instanceID.String
	}
	if externalID.Valid {
		rec.ExternalID = &externalID.String
	}
	if lastErr.Valid {
		rec.LastError = &lastErr.String
	}
	if proposedDate.Valid {
		rec.ProposedDate = &proposedDate.Time
	}
	return rec, nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func pgTime(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func pgTimePtr(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func pgText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func statusStrings(statuses []model.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
