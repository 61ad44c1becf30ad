package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/salonkit/appointment-notifier/internal/booking"
	"github.com/salonkit/appointment-notifier/internal/config"
	"github.com/salonkit/appointment-notifier/internal/domain/model"
	repo "github.com/salonkit/appointment-notifier/internal/domain/repository"
	"github.com/salonkit/appointment-notifier/internal/service"
)

type stubRules struct {
	repo.RuleRepository

	rules     []*model.NotificationRule
	createErr error
	updated   *model.NotificationRule
}

func (s *stubRules) ListByOrganization(_ context.Context, orgID uuid.UUID) ([]*model.NotificationRule, error) {
	var out []*model.NotificationRule
	for _, r := range s.rules {
		if r.OrganizationID == orgID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubRules) Create(_ context.Context, rule *model.NotificationRule) (*model.NotificationRule, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.rules = append(s.rules, rule)
	return rule, nil
}

func (s *stubRules) Update(_ context.Context, rule *model.NotificationRule) error {
	s.updated = rule
	return nil
}

type stubLedger struct {
	repo.LedgerRepository

	open    []*model.NotificationRecord
	openErr error
	failed  []*model.NotificationRecord
	stuck   []*model.NotificationRecord
}

func (s *stubLedger) OpenConversations(_ context.Context, _, _ string) ([]*model.NotificationRecord, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.open, nil
}

func (s *stubLedger) ListFailed(_ context.Context, _ time.Time) ([]*model.NotificationRecord, error) {
	return s.failed, nil
}

func (s *stubLedger) ListStuck(_ context.Context, _ time.Time) ([]*model.NotificationRecord, error) {
	return s.stuck, nil
}

type stubBooking struct{ booking.Client }

type stubSender struct{}

func (stubSender) SendText(_ context.Context, _, _, _ string) (string, error) { return "msg-1", nil }

type stubReporter struct{}

func (stubReporter) DispatchFailure(_ context.Context, _ *model.NotificationRecord, _ string) {}
func (stubReporter) IntegrityFault(_ context.Context, _ string)                               {}

func newTestRouter(rules *stubRules, ledger *stubLedger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zerolog.Nop()
	cfg := &config.Config{Booking: config.BookingConfig{MaxAdvanceDays: 60}}

	interpreter := service.NewInterpreter(cfg, ledger, stubBooking{}, stubSender{}, stubReporter{}, &logger)
	h := NewHandlers(interpreter, rules, ledger, &logger)

	router := gin.New()
	h.RegisterRoutes(router)
	return router
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestReceiveMessageWithoutConversation(t *testing.T) {
	router := newTestRouter(&stubRules{}, &stubLedger{})

	w := doJSON(router, http.MethodPost, "/webhook/messages", InboundMessageRequest{
		InstanceID: "inst-1",
		Phone:      "5511999990000",
		Message:    "sim",
	})

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body)
	}
}

func TestReceiveMessageRejectsInvalidBody(t *testing.T) {
	router := newTestRouter(&stubRules{}, &stubLedger{})

	w := doJSON(router, http.MethodPost, "/webhook/messages", map[string]string{"phone": "5511999990000"})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestReceiveMessageSurfacesInterpreterError(t *testing.T) {
	ledger := &stubLedger{openErr: errors.New("database down")}
	router := newTestRouter(&stubRules{}, ledger)

	w := doJSON(router, http.MethodPost, "/webhook/messages", InboundMessageRequest{
		InstanceID: "inst-1",
		Phone:      "5511999990000",
		Message:    "sim",
	})

	// 5xx so the gateway redelivers; the conversation was not advanced.
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestCreateRule(t *testing.T) {
	rules := &stubRules{}
	router := newTestRouter(rules, &stubLedger{})
	orgID := uuid.New()

	w := doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/organizations/%s/rules", orgID), CreateRuleRequest{
		Type:        "confirmation",
		HoursBefore: 24,
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body)
	}

	var resp RuleResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.OrganizationID != orgID || resp.Type != "confirmation" || resp.HoursBefore != 24 || !resp.Active {
		t.Errorf("unexpected rule response: %+v", resp)
	}
	if len(rules.rules) != 1 {
		t.Errorf("repository got %d rules, want 1", len(rules.rules))
	}
}

func TestCreateRuleValidatesHoursBefore(t *testing.T) {
	router := newTestRouter(&stubRules{}, &stubLedger{})
	orgID := uuid.New()

	for _, hours := range []int{0, 72} {
		w := doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/organizations/%s/rules", orgID), CreateRuleRequest{
			Type:        "reminder",
			HoursBefore: hours,
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("hours_before=%d: status = %d, want %d", hours, w.Code, http.StatusBadRequest)
		}
	}
}

func TestCreateRuleConflict(t *testing.T) {
	rules := &stubRules{createErr: repo.ErrDuplicateRecord}
	router := newTestRouter(rules, &stubLedger{})

	w := doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/organizations/%s/rules", uuid.New()), CreateRuleRequest{
		Type:        "confirmation",
		HoursBefore: 24,
	})

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestListRules(t *testing.T) {
	orgID := uuid.New()
	rules := &stubRules{rules: []*model.NotificationRule{
		model.NewNotificationRule(orgID, model.TypeConfirmation, 24, nil),
		model.NewNotificationRule(orgID, model.TypeReminder, 2, nil),
		model.NewNotificationRule(uuid.New(), model.TypeReminder, 2, nil),
	}}
	router := newTestRouter(rules, &stubLedger{})

	w := doJSON(router, http.MethodGet, fmt.Sprintf("/api/v1/organizations/%s/rules", orgID), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp []RuleResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp) != 2 {
		t.Errorf("got %d rules, want the organization's 2", len(resp))
	}
}

func TestListRulesRejectsBadOrgID(t *testing.T) {
	router := newTestRouter(&stubRules{}, &stubLedger{})

	w := doJSON(router, http.MethodGet, "/api/v1/organizations/not-a-uuid/rules", nil)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestUpdateRule(t *testing.T) {
	orgID := uuid.New()
	rule := model.NewNotificationRule(orgID, model.TypeConfirmation, 24, nil)
	rules := &stubRules{rules: []*model.NotificationRule{rule}}
	router := newTestRouter(rules, &stubLedger{})

	active := false
	w := doJSON(router, http.MethodPut,
		fmt.Sprintf("/api/v1/organizations/%s/rules/%s", orgID, rule.ID),
		UpdateRuleRequest{Active: &active})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body)
	}
	if rules.updated == nil || rules.updated.Active {
		t.Error("rule was not deactivated")
	}
}

func TestUpdateRuleNotFound(t *testing.T) {
	router := newTestRouter(&stubRules{}, &stubLedger{})

	active := true
	w := doJSON(router, http.MethodPut,
		fmt.Sprintf("/api/v1/organizations/%s/rules/%s", uuid.New(), uuid.New()),
		UpdateRuleRequest{Active: &active})

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestFailedDispatchesReport(t *testing.T) {
	reason := "gateway send failed"
	ledger := &stubLedger{failed: []*model.NotificationRecord{{
		ID:            uuid.New(),
		AppointmentID: uuid.New(),
		Type:          model.TypeReminder,
		HoursBefore:   2,
		Status:        model.StatusFailed,
		Phone:         "5511999990000",
		LastError:     &reason,
	}}}
	router := newTestRouter(&stubRules{}, ledger)

	w := doJSON(router, http.MethodGet, "/api/v1/reports/failed-dispatches", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp []RecordResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp) != 1 || resp[0].Status != "failed" || resp[0].LastError == nil {
		t.Errorf("unexpected report payload: %+v", resp)
	}
}

func TestFailedDispatchesRejectsBadSince(t *testing.T) {
	router := newTestRouter(&stubRules{}, &stubLedger{})

	w := doJSON(router, http.MethodGet, "/api/v1/reports/failed-dispatches?since=yesterday", nil)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestStuckConversationsReport(t *testing.T) {
	ledger := &stubLedger{stuck: []*model.NotificationRecord{{
		ID:     uuid.New(),
		Type:   model.TypeConfirmation,
		Status: model.StatusAwaitingReply,
		Phone:  "5511999990000",
	}}}
	router := newTestRouter(&stubRules{}, ledger)

	w := doJSON(router, http.MethodGet, "/api/v1/reports/stuck-conversations", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp []RecordResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp) != 1 || resp[0].Status != "awaiting_reply" {
		t.Errorf("unexpected report payload: %+v", resp)
	}
}
