// Package githubapi is a minimal GitHub REST client for opening draft pull
// requests and attaching review comments.
package githubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PRComment is a review note. Path+Line make it a line comment, otherwise it
// lands as a general PR comment.
type PRComment struct {
	Path string `json:"path,omitempty"`
	Line int    `json:"line,omitempty"`
	Body string `json:"body"`
}

// PRDraft is everything needed to open a pull request.
type PRDraft struct {
	Title    string      `json:"title"`
	Body     string      `json:"body"`
	Base     string      `json:"base"`
	Head     string      `json:"head"`
	Files    []string    `json:"files,omitempty"`
	Comments []PRComment `json:"comments,omitempty"`
}

// CreatedPR identifies the opened pull request.
type CreatedPR struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
}

// Client talks to the GitHub REST API v3.
type Client struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient builds a client against api.github.com unless baseURL overrides it.
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}
	return &Client{
		Token:      token,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if c.Token == "" {
		return fmt.Errorf("github: token not configured")
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("github: marshal body: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return fmt.Errorf("github: build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("github: request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("github: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		if apiErr.Message != "" {
			return fmt.Errorf("github: %s %s: %s (status %d)", method, path, apiErr.Message, resp.StatusCode)
		}
		return fmt.Errorf("github: %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("github: decode response: %w", err)
		}
	}
	return nil
}

// CreateDraftPR opens a draft pull request and attaches any review comments.
// Comment failures do not fail the PR itself.
func (c *Client) CreateDraftPR(ctx context.Context, owner, repo string, pr PRDraft) (CreatedPR, error) {
	payload := map[string]any{
		"title": pr.Title,
		"body":  pr.Body,
		"base":  pr.Base,
		"head":  pr.Head,
		"draft": true,
	}
	var created struct {
		Number  int    `json:"number"`
		HTMLURL string `json:"html_url"`
	}
	path := fmt.Sprintf("/repos/%s/%s/pulls", owner, repo)
	if err := c.do(ctx, http.MethodPost, path, payload, &created); err != nil {
		return CreatedPR{}, err
	}
	for _, comment := range pr.Comments {
		_ = c.AddPRComment(ctx, owner, repo, created.Number, comment)
	}
	return CreatedPR{Number: created.Number, URL: created.HTMLURL}, nil
}

// AddPRComment posts a line review comment when Path and Line are set, or a
// plain issue comment otherwise.
func (c *Client) AddPRComment(ctx context.Context, owner, repo string, prNumber int, comment PRComment) error {
	if comment.Path != "" && comment.Line > 0 {
		path := fmt.Sprintf("/repos/%s/%s/pulls/%d/comments", owner, repo, prNumber)
		return c.do(ctx, http.MethodPost, path, map[string]any{
			"body": comment.Body,
			"path": comment.Path,
			"line": comment.Line,
		}, nil)
	}
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, repo, prNumber)
	return c.do(ctx, http.MethodPost, path, map[string]any{"body": comment.Body}, nil)
}
