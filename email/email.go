// Package email sends transactional mail through the Resend HTTP API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client posts to the Resend /emails endpoint.
type Client struct {
	APIKey     string
	BaseURL    string
	From       string
	HTTPClient *http.Client
}

// NewClient builds a client. from defaults to the Resend onboarding sender so
// a fresh deployment can send mail before DNS is set up.
func NewClient(apiKey, baseURL, from string) *Client {
	if baseURL == "" {
		baseURL = "https://api.resend.com"
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}
	if from == "" {
		from = "GameDay <onboarding@resend.dev>"
	}
	return &Client{
		APIKey:     apiKey,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		From:       from,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Send delivers a message and returns the provider's message id. The body is
// plain text and gets wrapped in a simple HTML template.
func (c *Client) Send(ctx context.Context, to, subject, body string) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("email: api key not configured")
	}
	if to == "" || subject == "" || body == "" {
		return "", fmt.Errorf("email: to, subject and body are required")
	}
	payload := map[string]any{
		"from":    c.From,
		"to":      to,
		"subject": subject,
		"html":    renderHTML(body),
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("email: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/emails", bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("email: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("email: request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("email: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		if apiErr.Message != "" {
			return "", fmt.Errorf("email: provider error: %s (status %d)", apiErr.Message, resp.StatusCode)
		}
		return "", fmt.Errorf("email: provider status %d", resp.StatusCode)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("email: decode response: %w", err)
	}
	return out.ID, nil
}

func renderHTML(body string) string {
	escaped := html.EscapeString(body)
	escaped = strings.ReplaceAll(escaped, "\n", "<br>")
	return `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">` +
		`<div style="background-color: #f3f4f6; padding: 20px; border-radius: 8px;">` +
		`<p style="color: #1f2937; font-size: 16px; line-height: 1.6;">` + escaped + `</p>` +
		`</div></div>`
}
