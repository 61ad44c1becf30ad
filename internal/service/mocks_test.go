package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/salonkit/appointment-notifier/internal/config"
	"github.com/salonkit/appointment-notifier/internal/domain/model"
	repo "github.com/salonkit/appointment-notifier/internal/domain/repository"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func testConfig() *config.Config {
	return &config.Config{
		Booking: config.BookingConfig{MaxAdvanceDays: 60},
		Scanner: config.ScannerConfig{
			Interval: time.Minute,
			Grace:    12 * time.Hour,
		},
		Dispatcher: config.DispatcherConfig{
			Interval:  time.Minute,
			BatchSize: 50,
			Workers:   3,
		},
		Sweeper: config.SweeperConfig{
			Interval:     time.Minute,
			ReplyTimeout: 48 * time.Hour,
		},
	}
}

// ── ledger mock ──

type mockLedger struct {
	mu      sync.Mutex
	records map[uuid.UUID]*model.NotificationRecord

	insertErr error
	updateErr error
	// updateErrOn selects which UpdateStatus call (1-based) returns
	// updateErr; zero means every call does.
	updateErrOn int
	updateCalls int
}

func newMockLedger() *mockLedger {
	return &mockLedger{records: make(map[uuid.UUID]*model.NotificationRecord)}
}

func (m *mockLedger) add(rec *model.NotificationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
}

func (m *mockLedger) get(id uuid.UUID) *model.NotificationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id]
}

func (m *mockLedger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *mockLedger) Insert(_ context.Context, rec *model.NotificationRecord) (*model.NotificationRecord, error) {
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.records {
		if existing.AppointmentID == rec.AppointmentID &&
			existing.Type == rec.Type &&
			existing.HoursBefore == rec.HoursBefore {
			return nil, repo.ErrDuplicateRecord
		}
	}
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *mockLedger) GetByID(_ context.Context, id uuid.UUID) (*model.NotificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return rec, nil
}

func (m *mockLedger) ListDuePending(_ context.Context, now time.Time, limit int) ([]*model.NotificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.NotificationRecord
	for _, rec := range m.records {
		if rec.Status == model.StatusPending && !rec.ScheduledFor.After(now) && len(out) < limit {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *mockLedger) UpdateStatus(_ context.Context, id uuid.UUID, from []model.Status, to model.Status, upd repo.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.updateErr != nil && (m.updateErrOn == 0 || m.updateCalls == m.updateErrOn) {
		return m.updateErr
	}
	rec, ok := m.records[id]
	if !ok {
		return repo.ErrStaleStatus
	}
	matched := false
	for _, f := range from {
		if rec.Status == f {
			matched = true
			break
		}
	}
	if !matched {
		return repo.ErrStaleStatus
	}
	rec.Status = to
	if upd.InstanceID != nil {
		rec.InstanceID = upd.InstanceID
	}
	if upd.ExternalID != nil {
		rec.ExternalID = upd.ExternalID
	}
	if upd.LastError != nil {
		rec.LastError = upd.LastError
	}
	if upd.ProposedDate != nil {
		rec.ProposedDate = upd.ProposedDate
	}
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *mockLedger) OpenConversations(_ context.Context, instanceID, phone string) ([]*model.NotificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.NotificationRecord
	for _, rec := range m.records {
		if rec.InstanceID != nil && *rec.InstanceID == instanceID &&
			rec.Phone == phone && rec.Status.IsAwaiting() {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockLedger) ExpireStale(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, rec := range m.records {
		if rec.Status.IsAwaiting() && rec.UpdatedAt.Before(cutoff) {
			rec.Status = model.StatusExpired
			n++
		}
	}
	return n, nil
}

func (m *mockLedger) CancelForAppointment(_ context.Context, appointmentID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, rec := range m.records {
		if rec.AppointmentID == appointmentID && !rec.Status.IsTerminal() && rec.Status != model.StatusSent {
			rec.Status = model.StatusCancelled
			n++
		}
	}
	return n, nil
}

func (m *mockLedger) ListFailed(_ context.Context, since time.Time) ([]*model.NotificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.NotificationRecord
	for _, rec := range m.records {
		if rec.Status == model.StatusFailed && !rec.UpdatedAt.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *mockLedger) ListStuck(_ context.Context, cutoff time.Time) ([]*model.NotificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.NotificationRecord
	for _, rec := range m.records {
		if (rec.Status.IsAwaiting() || rec.Status == model.StatusDispatching) && rec.UpdatedAt.Before(cutoff) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ── rule repository mock ──

type mockRules struct {
	rules   []*model.NotificationRule
	listErr error
	findErr error
}

func (m *mockRules) ListActive(_ context.Context) ([]*model.NotificationRule, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*model.NotificationRule
	for _, r := range m.rules {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRules) ListByOrganization(_ context.Context, orgID uuid.UUID) ([]*model.NotificationRule, error) {
	var out []*model.NotificationRule
	for _, r := range m.rules {
		if r.OrganizationID == orgID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRules) Find(_ context.Context, orgID uuid.UUID, typ model.NotificationType, hoursBefore int) (*model.NotificationRule, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, r := range m.rules {
		if r.OrganizationID == orgID && r.Type == typ && r.HoursBefore == hoursBefore {
			return r, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *mockRules) Create(_ context.Context, rule *model.NotificationRule) (*model.NotificationRule, error) {
	m.rules = append(m.rules, rule)
	return rule, nil
}

func (m *mockRules) Update(_ context.Context, _ *model.NotificationRule) error { return nil }

// ── appointment source mock ──

type mockAppointments struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*model.Appointment
	// due maps rule ID to the appointments DueForRule should return.
	due map[uuid.UUID][]*model.Appointment
}

func newMockAppointments() *mockAppointments {
	return &mockAppointments{
		appts: make(map[uuid.UUID]*model.Appointment),
		due:   make(map[uuid.UUID][]*model.Appointment),
	}
}

func (m *mockAppointments) add(appt *model.Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appts[appt.ID] = appt
}

func (m *mockAppointments) GetByID(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	appt, ok := m.appts[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return appt, nil
}

func (m *mockAppointments) DueForRule(_ context.Context, rule *model.NotificationRule, _, _ time.Time) ([]*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.due[rule.ID], nil
}

// ── channel instance mock ──

type mockInstances struct {
	instance *model.ChannelInstance
}

func (m *mockInstances) ConnectedByOrganization(_ context.Context, _ uuid.UUID) (*model.ChannelInstance, error) {
	if m.instance == nil {
		return nil, repo.ErrNotFound
	}
	return m.instance, nil
}

// ── gateway mock ──

type sentMessage struct {
	InstanceID string
	Phone      string
	Text       string
}

type mockSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	sendErr error
	nextID  int
}

func (m *mockSender) SendText(_ context.Context, instanceID, phone, text string) (string, error) {
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{InstanceID: instanceID, Phone: phone, Text: text})
	m.nextID++
	return fmt.Sprintf("msg-%d", m.nextID), nil
}

func (m *mockSender) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

// ── booking client mock ──

type mockBooking struct {
	confirmed   []uuid.UUID
	cancelled   []uuid.UUID
	rescheduled map[uuid.UUID]time.Time

	slots    []time.Time
	slotsErr error

	confirmErr    error
	cancelErr     error
	rescheduleErr error
}

func newMockBooking() *mockBooking {
	return &mockBooking{rescheduled: make(map[uuid.UUID]time.Time)}
}

func (m *mockBooking) Confirm(_ context.Context, appointmentID uuid.UUID) error {
	if m.confirmErr != nil {
		return m.confirmErr
	}
	m.confirmed = append(m.confirmed, appointmentID)
	return nil
}

func (m *mockBooking) Cancel(_ context.Context, appointmentID uuid.UUID) error {
	if m.cancelErr != nil {
		return m.cancelErr
	}
	m.cancelled = append(m.cancelled, appointmentID)
	return nil
}

func (m *mockBooking) Reschedule(_ context.Context, appointmentID uuid.UUID, startsAt time.Time) error {
	if m.rescheduleErr != nil {
		return m.rescheduleErr
	}
	m.rescheduled[appointmentID] = startsAt
	return nil
}

func (m *mockBooking) AvailableSlots(_ context.Context, _ uuid.UUID, _ time.Time) ([]time.Time, error) {
	if m.slotsErr != nil {
		return nil, m.slotsErr
	}
	return m.slots, nil
}

// ── operator reporter mock ──

type mockReporter struct {
	mu       sync.Mutex
	failures []string
	faults   []string
}

func (m *mockReporter) DispatchFailure(_ context.Context, _ *model.NotificationRecord, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, reason)
}

func (m *mockReporter) IntegrityFault(_ context.Context, detail string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = append(m.faults, detail)
}

func (m *mockReporter) failureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.failures)
}
