package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Grace-Shao/aiatl2025/backend/pairing"
	"github.com/Grace-Shao/aiatl2025/backend/testutil"
)

func TestHighlightsEndpoint(t *testing.T) {
	m := testutil.NewMockGenAIServer(t)
	m.MockTextResponse("/v1beta/models/gemini-2.0-flash:generateContent",
		"```json\n[{\"text\":\"Use a hub for push\",\"type\":\"decision\",\"importance\":\"high\",\"timestamp\":12}]\n```")

	t.Setenv("GENAI_API_KEY", "test-key")
	t.Setenv("GENAI_URL", m.URL)
	h := testHandlers(t)

	rec := httptest.NewRecorder()
	h.HandleHighlights(rec, httptest.NewRequest(http.MethodPost, "/highlights",
		strings.NewReader(`{"transcript":"we discussed push transport","code_references":[{"file_name":"server/ws.go","line_number":50}]}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Highlights []struct {
			ID   string `json:"id"`
			Text string `json:"text"`
			Type string `json:"type"`
		} `json:"highlights"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Highlights) != 1 || out.Highlights[0].ID != "highlight-0" || out.Highlights[0].Type != "decision" {
		t.Fatalf("unexpected highlights: %+v", out.Highlights)
	}
}

func TestHighlightsRequiresTranscript(t *testing.T) {
	h := testHandlers(t)
	rec := httptest.NewRecorder()
	h.HandleHighlights(rec, httptest.NewRequest(http.MethodPost, "/highlights", strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestPairSessionEndpoints(t *testing.T) {
	m := testutil.NewMockGenAIServer(t)
	m.MockTextResponse("/v1beta/models/gemini-2.0-flash:generateContent",
		"The pair reworked the timeline stream and agreed on a dedup pass.")

	t.Setenv("GENAI_API_KEY", "test-key")
	t.Setenv("GENAI_URL", m.URL)
	h := dbHandlers(t)

	rec := httptest.NewRecorder()
	h.HandlePairSessions(rec, httptest.NewRequest(http.MethodPost, "/sessions",
		strings.NewReader(`{"title":"Timeline stream review"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Session pairing.Session `json:"session"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.Session.Status != pairing.StatusRecording {
		t.Fatalf("status = %q", created.Session.Status)
	}

	rec = httptest.NewRecorder()
	h.HandlePairSessions(rec, httptest.NewRequest(http.MethodPut, "/sessions",
		strings.NewReader(`{"id":"`+created.Session.ID+`","status":"processing"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.HandlePairSessionsDispatcher(rec, httptest.NewRequest(http.MethodPost,
		"/sessions/"+created.Session.ID+"/summary", strings.NewReader(`{"transcript":"long talk about streams"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: status %d body %s", rec.Code, rec.Body.String())
	}
	var summarized struct {
		Session pairing.Session `json:"session"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&summarized); err != nil {
		t.Fatalf("decode summarized: %v", err)
	}
	if summarized.Session.Summary == "" {
		t.Fatal("summary not stored")
	}

	rec = httptest.NewRecorder()
	h.HandlePairSessions(rec, httptest.NewRequest(http.MethodGet, "/sessions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	var listed struct {
		Sessions []pairing.Session `json:"sessions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Sessions) != 1 || listed.Sessions[0].Summary == "" {
		t.Fatalf("unexpected list: %+v", listed.Sessions)
	}

	rec = httptest.NewRecorder()
	h.HandlePairSessions(rec, httptest.NewRequest(http.MethodPut, "/sessions",
		strings.NewReader(`{"id":"ps-missing","status":"completed"}`)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing session: status %d", rec.Code)
	}
}

func TestPairSessionSummaryMissingSession(t *testing.T) {
	h := dbHandlers(t)
	rec := httptest.NewRecorder()
	h.HandlePairSessionsDispatcher(rec, httptest.NewRequest(http.MethodPost,
		"/sessions/ps-missing/summary", strings.NewReader(`{"transcript":"x"}`)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
}
