package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/salonkit/appointment-notifier/internal/domain/model"
	repo "github.com/salonkit/appointment-notifier/internal/domain/repository"
	"github.com/salonkit/appointment-notifier/internal/service"
)

// stuckThreshold is how long a conversation may sit untouched before
// it shows up on the stuck-conversations report.
const stuckThreshold = 12 * time.Hour

type Handlers struct {
	interpreter *service.Interpreter
	rules       repo.RuleRepository
	ledger      repo.LedgerRepository
	logger      zerolog.Logger
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(
	interpreter *service.Interpreter,
	rules repo.RuleRepository,
	ledger repo.LedgerRepository,
	logger *zerolog.Logger,
) *Handlers {
	return &Handlers{
		interpreter: interpreter,
		rules:       rules,
		ledger:      ledger,
		logger:      logger.With().Str("layer", "http_handler").Logger(),
	}
}

// RegisterRoutes sets up the routing for the engine API.
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	router.POST("/webhook/messages", h.ReceiveMessage)

	api := router.Group("/api/v1")
	{
		api.GET("/organizations/:org_id/rules", h.ListRules)
		api.POST("/organizations/:org_id/rules", h.CreateRule)
		api.PUT("/organizations/:org_id/rules/:rule_id", h.UpdateRule)

		api.GET("/reports/failed-dispatches", h.FailedDispatches)
		api.GET("/reports/stuck-conversations", h.StuckConversations)
	}
}

// ReceiveMessage handles an inbound customer reply from the gateway.
func (h *Handlers) ReceiveMessage(c *gin.Context) {
	var req InboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn().Err(err).Msg("invalid webhook body")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	receivedAt := req.Timestamp
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	err := h.interpreter.HandleInbound(c.Request.Context(), model.InboundMessage{
		InstanceID: req.InstanceID,
		Phone:      req.Phone,
		Body:       req.Message,
		ReceivedAt: receivedAt,
	})
	if err != nil {
		// Surfaced so the gateway can redeliver; the conversation state
		// was not advanced.
		h.logger.Error().Err(err).Msg("failed to process inbound message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to process message"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListRules returns all notification rules of an organization.
func (h *Handlers) ListRules(c *gin.Context) {
	orgID, ok := h.orgID(c)
	if !ok {
		return
	}

	rules, err := h.rules.ListByOrganization(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error().Err(err).Stringer("organization_id", orgID).Msg("failed to list rules")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list rules"})
		return
	}

	out := make([]RuleResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, toRuleResponse(r))
	}
	c.JSON(http.StatusOK, out)
}

// CreateRule creates a notification rule for an organization.
func (h *Handlers) CreateRule(c *gin.Context) {
	orgID, ok := h.orgID(c)
	if !ok {
		return
	}

	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	rule := model.NewNotificationRule(orgID, model.NotificationType(req.Type), req.HoursBefore, req.Template)
	created, err := h.rules.Create(c.Request.Context(), rule)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateRecord) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "rule already exists for this type and offset"})
			return
		}
		h.logger.Error().Err(err).Msg("failed to create rule")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to create rule"})
		return
	}

	c.JSON(http.StatusCreated, toRuleResponse(created))
}

// UpdateRule updates the active flag and/or template of a rule.
func (h *Handlers) UpdateRule(c *gin.Context) {
	orgID, ok := h.orgID(c)
	if !ok {
		return
	}

	ruleID, err := uuid.Parse(c.Param("rule_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid rule ID format"})
		return
	}

	var req UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	rules, err := h.rules.ListByOrganization(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load rules")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to update rule"})
		return
	}

	var rule *model.NotificationRule
	for _, r := range rules {
		if r.ID == ruleID {
			rule = r
			break
		}
	}
	if rule == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "rule not found"})
		return
	}

	if req.Active != nil {
		rule.Active = *req.Active
	}
	if req.Template != nil {
		rule.Template = req.Template
	}

	if err := h.rules.Update(c.Request.Context(), rule); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "rule not found"})
			return
		}
		h.logger.Error().Err(err).Stringer("rule_id", ruleID).Msg("failed to update rule")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to update rule"})
		return
	}

	c.JSON(http.StatusOK, toRuleResponse(rule))
}

// FailedDispatches lists recent dispatch failures for the operator
// dashboard. Defaults to the last 24 hours.
func (h *Handlers) FailedDispatches(c *gin.Context) {
	since := time.Now().UTC().Add(-24 * time.Hour)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid 'since' timestamp, want RFC3339"})
			return
		}
		since = parsed
	}

	records, err := h.ledger.ListFailed(c.Request.Context(), since)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list failed dispatches")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list failed dispatches"})
		return
	}
	c.JSON(http.StatusOK, toRecordResponses(records))
}

// StuckConversations lists conversations waiting unusually long for a
// customer reply.
func (h *Handlers) StuckConversations(c *gin.Context) {
	cutoff := time.Now().UTC().Add(-stuckThreshold)

	records, err := h.ledger.ListStuck(c.Request.Context(), cutoff)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list stuck conversations")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list stuck conversations"})
		return
	}
	c.JSON(http.StatusOK, toRecordResponses(records))
}

func (h *Handlers) orgID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("org_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid organization ID format"})
		return uuid.Nil, false
	}
	return id, true
}
