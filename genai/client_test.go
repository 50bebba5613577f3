package genai

import (
	"context"
	"net/http"
	"testing"

	"github.com/Grace-Shao/aiatl2025/backend/testutil"
)

func testClient(m *testutil.MockGenAIServer) *Client {
	return NewClient("test-key", m.URL, "gemini-2.0-flash")
}

func TestGenerateText(t *testing.T) {
	m := testutil.NewMockGenAIServer(t)
	m.MockTextResponse("/v1beta/models/gemini-2.0-flash:generateContent", "  hello there \n")

	got, err := testClient(m).GenerateText(context.Background(), "say hello")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if got != "hello there" {
		t.Fatalf("text = %q, want %q", got, "hello there")
	}
}

func TestGenerateTextAPIError(t *testing.T) {
	m := testutil.NewMockGenAIServer(t)
	m.Handlers["/v1beta/models/gemini-2.0-flash:generateContent"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}

	_, err := testClient(m).GenerateText(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGenerateTextMissingKey(t *testing.T) {
	c := NewClient("", "http://localhost:0", "")
	if _, err := c.GenerateText(context.Background(), "x"); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestGenerateJSONStripsFences(t *testing.T) {
	m := testutil.NewMockGenAIServer(t)
	m.MockTextResponse("/v1beta/models/gemini-2.0-flash:generateContent",
		"```json\n{\"subject\":\"Big game\",\"body\":\"What a finish\"}\n```")

	var out struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := testClient(m).GenerateJSON(context.Background(), "compose", &out); err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if out.Subject != "Big game" || out.Body != "What a finish" {
		t.Fatalf("unexpected parse: %+v", out)
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("k", "generativelanguage.googleapis.com", "")
	if c.BaseURL != "https://generativelanguage.googleapis.com" {
		t.Fatalf("base url = %q", c.BaseURL)
	}
	if c.Model != "gemini-2.0-flash" {
		t.Fatalf("model = %q", c.Model)
	}
}
