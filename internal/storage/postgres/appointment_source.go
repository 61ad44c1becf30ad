package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/salonkit/appointment-notifier/internal/domain/model"
	repo "github.com/salonkit/appointment-notifier/internal/domain/repository"
)

// Ensure AppointmentSource implements the interface
var _ repo.AppointmentSource = (*AppointmentSource)(nil)

// AppointmentSource reads the booking subsystem's appointments table.
// Strictly read-only: status changes go through the booking client.
type AppointmentSource struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewAppointmentSource creates a new instance of the AppointmentSource.
func NewAppointmentSource(pool *pgxpool.Pool, logger *zerolog.Logger) *AppointmentSource {
	return &AppointmentSource{
		pool:   pool,
		logger: logger.With().Str("layer", "postgres_appointments").Logger(),
	}
}

const appointmentColumns = `id, organization_id, customer_name, customer_phone, starts_at, status`

// GetByID retrieves one appointment.
func (s *AppointmentSource) GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	appt, err := scanAppointment(s.pool.QueryRow(ctx, query, pgUUID(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn().Stringer("id", id).Msg("appointment not found by id")
			return nil, repo.ErrNotFound
		}
		s.logger.Err(err).Str("method", "GetByID").Msg("cannot get appointment")
		return nil, fmt.Errorf("postgres: get appointment failed: %w", err)
	}
	return appt, nil
}

// DueForRule returns bookable future appointments whose trigger time
// for the rule has passed but not by more than the caller's grace
// window, and which have no ledger record for the rule yet. The NOT
// EXISTS filter keeps repeated scans cheap; the unique key on insert
// still decides idempotency.
func (s *AppointmentSource) DueForRule(ctx context.Context, rule *model.NotificationRule, now, triggerAfter time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments a
		WHERE a.organization_id = $1
		  AND a.status = ANY($2)
		  AND a.starts_at > $3
		  AND a.starts_at - make_interval(hours => $4) <= $3
		  AND a.starts_at - make_interval(hours => $4) >= $5
		  AND NOT EXISTS (
			SELECT 1 FROM notifications n
			WHERE n.appointment_id = a.id AND n.type = $6 AND n.hours_before = $4
		  )
		ORDER BY a.starts_at`

	bookable := []string{string(model.AppointmentScheduled), string(model.AppointmentConfirmed)}

	rows, err := s.pool.Query(ctx, query,
		pgUUID(rule.OrganizationID), bookable, pgTime(now),
		int32(rule.HoursBefore), pgTime(triggerAfter), string(rule.Type))
	if err != nil {
		s.logger.Err(err).Stringer("rule_id", rule.ID).Msg("cannot query due appointments")
		return nil, fmt.Errorf("postgres: due appointments query failed: %w", err)
	}
	defer rows.Close()

	var appts []*model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan appointment failed: %w", err)
		}
		appts = append(appts, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate appointments failed: %w", err)
	}
	return appts, nil
}

// scanAppointment converts one database row into the domain model.
func scanAppointment(row pgx.Row) (*model.Appointment, error) {
	var (
		id, orgID   pgtype.UUID
		name, phone string
		startsAt    pgtype.Timestamptz
		status      string
	)

	if err := row.Scan(&id, &orgID, &name, &phone, &startsAt, &status); err != nil {
		return nil, err
	}

	return &model.Appointment{
		ID:             uuid.UUID(id.Bytes),
		OrganizationID: uuid.UUID(orgID.Bytes),
		CustomerName:   name,
		CustomerPhone:  phone,
		StartsAt:       startsAt.Time,
		Status:         model.AppointmentStatus(status),
	}, nil
}
