package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/salonkit/appointment-notifier/internal/config"
)

// Client defines the calls this engine makes into the booking
// subsystem. All operations are idempotent on the booking side:
// confirming an already-confirmed appointment is a no-op, not an error.
type Client interface {
	// Confirm marks the appointment as confirmed by the customer.
	Confirm(ctx context.Context, appointmentID uuid.UUID) error

	// Cancel marks the appointment as cancelled by the customer.
	Cancel(ctx context.Context, appointmentID uuid.UUID) error

	// Reschedule moves the appointment to a new start time and confirms it.
	Reschedule(ctx context.Context, appointmentID uuid.UUID, startsAt time.Time) error

	// AvailableSlots returns the organization's free start times on a date.
	AvailableSlots(ctx context.Context, orgID uuid.UUID, date time.Time) ([]time.Time, error)
}

// Ensure HTTPClient implements the interface
var _ Client = (*HTTPClient)(nil)

// HTTPClient talks to the booking subsystem's internal API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// NewHTTPClient creates a new booking client with a bounded timeout.
func NewHTTPClient(cfg *config.Config, logger *zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.Booking.BaseURL,
		http:    &http.Client{Timeout: cfg.Booking.Timeout},
		logger:  logger.With().Str("component", "booking_client").Logger(),
	}
}

// Confirm marks the appointment as confirmed.
func (c *HTTPClient) Confirm(ctx context.Context, appointmentID uuid.UUID) error {
	url := fmt.Sprintf("%s/internal/appointments/%s/confirm", c.baseURL, appointmentID)
	return c.post(ctx, url, nil)
}

// Cancel marks the appointment as cancelled.
func (c *HTTPClient) Cancel(ctx context.Context, appointmentID uuid.UUID) error {
	url := fmt.Sprintf("%s/internal/appointments/%s/cancel", c.baseURL, appointmentID)
	return c.post(ctx, url, nil)
}

// Reschedule moves the appointment to a new start time.
func (c *HTTPClient) Reschedule(ctx context.Context, appointmentID uuid.UUID, startsAt time.Time) error {
	url := fmt.Sprintf("%s/internal/appointments/%s/reschedule", c.baseURL, appointmentID)
	payload := map[string]string{"starts_at": startsAt.UTC().Format(time.RFC3339)}
	return c.post(ctx, url, payload)
}

// AvailableSlots returns the free start times for an organization on a date.
func (c *HTTPClient) AvailableSlots(ctx context.Context, orgID uuid.UUID, date time.Time) ([]time.Time, error) {
	url := fmt.Sprintf("%s/internal/organizations/%s/slots?date=%s",
		c.baseURL, orgID, date.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("booking: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Stringer("organization_id", orgID).Msg("booking slots request failed")
		return nil, fmt.Errorf("booking: available slots: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("booking: available slots: status %d", resp.StatusCode)
	}

	var out struct {
		Slots []time.Time `json:"slots"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("booking: decode slots: %w", err)
	}
	return out.Slots, nil
}

func (c *HTTPClient) post(ctx context.Context, url string, payload any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("booking: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("booking: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", url).Msg("booking request failed")
		return fmt.Errorf("booking: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("booking: request to %s: status %d", url, resp.StatusCode)
	}
	return nil
}
