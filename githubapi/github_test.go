package githubapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestCreateDraftPR(t *testing.T) {
	var mu sync.Mutex
	var reviewComments, issueComments int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/repos/acme/gameday/pulls":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["draft"] != true {
				t.Errorf("expected draft pr, got %v", body["draft"])
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"number": 7, "html_url": "https://github.com/acme/gameday/pull/7"}`))
		case "/repos/acme/gameday/pulls/7/comments":
			mu.Lock()
			reviewComments++
			mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{}`))
		case "/repos/acme/gameday/issues/7/comments":
			mu.Lock()
			issueComments++
			mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient("tok", srv.URL)
	created, err := c.CreateDraftPR(context.Background(), "acme", "gameday", PRDraft{
		Title: "Add timeline reconciliation",
		Body:  "details",
		Base:  "main",
		Head:  "feature",
		Comments: []PRComment{
			{Path: "timeline/store.go", Line: 12, Body: "consider an index"},
			{Body: "nice work overall"},
		},
	})
	if err != nil {
		t.Fatalf("CreateDraftPR: %v", err)
	}
	if created.Number != 7 || created.URL != "https://github.com/acme/gameday/pull/7" {
		t.Fatalf("unexpected result: %+v", created)
	}
	mu.Lock()
	defer mu.Unlock()
	if reviewComments != 1 || issueComments != 1 {
		t.Fatalf("comments routed wrong: review=%d issue=%d", reviewComments, issueComments)
	}
}

func TestCreateDraftPRAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Validation Failed"}`))
	}))
	defer srv.Close()

	c := NewClient("tok", srv.URL)
	_, err := c.CreateDraftPR(context.Background(), "acme", "gameday", PRDraft{Title: "x", Base: "main", Head: "main"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestCreateDraftPRMissingToken(t *testing.T) {
	c := NewClient("", "http://localhost:0")
	if _, err := c.CreateDraftPR(context.Background(), "a", "b", PRDraft{}); err == nil {
		t.Fatal("expected error for missing token")
	}
}
