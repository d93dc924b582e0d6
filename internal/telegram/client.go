package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// Client is a minimal Telegram Bot API client covering the two calls the
// service needs: sending messages and registering the webhook.
type Client struct {
	apiBase           string
	token             string
	disableWebPreview bool
	httpClient        *http.Client
}

// Update is the subset of a Telegram webhook update the service consumes.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message carries the inbound chat message.
type Message struct {
	Chat Chat   `json:"chat"`
	Text string `json:"text"`
}

// Chat identifies the conversation on Telegram's side.
type Chat struct {
	ID int64 `json:"id"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// NewClient creates a new Telegram client
func NewClient(token string, disableWebPreview bool) *Client {
	return &Client{
		apiBase:           defaultAPIBase,
		token:             token,
		disableWebPreview: disableWebPreview,
		httpClient:        &http.Client{Timeout: 10 * time.Second},
	}
}

// WithAPIBase overrides the API host, for tests.
func (c *Client) WithAPIBase(base string) *Client {
	c.apiBase = base
	return c
}

// Enabled reports whether a bot token is configured.
func (c *Client) Enabled() bool {
	return c.token != ""
}

// SendMessage sends an HTML-formatted message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": c.disableWebPreview,
	}
	return c.call(ctx, "sendMessage", payload)
}

// SetWebhook registers the public webhook URL with Telegram.
func (c *Client) SetWebhook(ctx context.Context, webhookURL string) error {
	return c.call(ctx, "setWebhook", map[string]any{"url": webhookURL})
}

func (c *Client) call(ctx context.Context, method string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal %s payload: %w", method, err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("telegram: read %s response: %w", method, err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return fmt.Errorf("telegram: decode %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if !apiResp.OK {
		return fmt.Errorf("telegram: %s rejected (status %d): %s", method, resp.StatusCode, apiResp.Description)
	}
	return nil
}
