package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/salonkit/appointment-notifier/internal/config"
)

// Sender defines the outbound side of the messaging gateway: sending a
// text message through an organization's channel instance. Returns the
// gateway-assigned message id on success.
type Sender interface {
	SendText(ctx context.Context, instanceID, phone, text string) (string, error)
}

// Ensure Client implements the interface
var _ Sender = (*Client)(nil)

// Client talks to an Evolution-style WhatsApp gateway over HTTP. The
// gateway owns delivery; this client only hands messages over and
// records the id it gets back.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient creates a new gateway client. The HTTP timeout from config
// is mandatory: a stalled gateway must not stall the dispatch workers.
func NewClient(cfg *config.Config, logger *zerolog.Logger) *Client {
	return &Client{
		baseURL: cfg.Gateway.BaseURL,
		apiKey:  cfg.Gateway.APIKey,
		http:    &http.Client{Timeout: cfg.Gateway.Timeout},
		logger:  logger.With().Str("component", "gateway_client").Logger(),
	}
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type sendTextResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
}

// SendText sends a text message through the given channel instance.
func (c *Client) SendText(ctx context.Context, instanceID, phone, text string) (string, error) {
	body, err := json.Marshal(sendTextRequest{Number: phone, Text: text})
	if err != nil {
		return "", fmt.Errorf("gateway: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/message/sendText/%s", c.baseURL, instanceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("instance_id", instanceID).Msg("gateway request failed")
		return "", fmt.Errorf("gateway: send text: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Error().Int("status", resp.StatusCode).Str("instance_id", instanceID).
			Bytes("body", raw).Msg("gateway rejected message")
		return "", fmt.Errorf("gateway: send text: status %d", resp.StatusCode)
	}

	var out sendTextResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("gateway: decode response: %w", err)
	}

	c.logger.Info().Str("instance_id", instanceID).Str("message_id", out.Key.ID).Msg("message accepted by gateway")
	return out.Key.ID, nil
}
