// Package genai wraps the Gemini generateContent REST API for text generation
// and structured JSON output.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Grace-Shao/aiatl2025/backend/telemetry"
)

// Client calls the generateContent endpoint. Zero value is not usable; use
// NewClient.
type Client struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// NewClient builds a client. baseURL may omit the scheme; model defaults to a
// flash model when empty.
func NewClient(apiKey, baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Client{
		APIKey:     apiKey,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Model:      model,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateText sends a single-turn prompt and returns the first text part of
// the first candidate, trimmed.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("genai: api key not configured")
	}
	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}})
	if err != nil {
		return "", fmt.Errorf("genai: marshal request: %w", err)
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.BaseURL, c.Model, c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("genai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp *http.Response
	telemetry.TimeFunc(telemetry.GenAIDuration, func() {
		resp, err = c.HTTPClient.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("genai: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("genai: read response: %w", err)
	}
	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("genai: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("genai: api error: %s", msg)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("genai: empty response")
	}
	text := strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", fmt.Errorf("genai: empty text part")
	}
	return text, nil
}

// GenerateJSON prompts for JSON output and unmarshals it into v. Markdown
// code fences around the payload are stripped, since the model frequently
// wraps JSON in ```json blocks despite instructions.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, v any) error {
	text, err := c.GenerateText(ctx, prompt)
	if err != nil {
		return err
	}
	cleaned := StripFences(text)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("genai: parse json output: %w", err)
	}
	return nil
}

// StripFences removes ```json / ``` markdown fences and trims whitespace.
func StripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
