package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Grace-Shao/aiatl2025/backend/config"
	"github.com/Grace-Shao/aiatl2025/backend/forum"
	"github.com/Grace-Shao/aiatl2025/backend/testutil"
)

func dbHandlers(t *testing.T) *Handlers {
	t.Helper()
	db := testutil.SetupTestDB(t)
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewHandlers(ctx, cfg, db)
}

func TestForumEndpoints(t *testing.T) {
	h := dbHandlers(t)

	rec := httptest.NewRecorder()
	h.HandleThreads(rec, httptest.NewRequest(http.MethodPost, "/forum/threads",
		strings.NewReader(`{"title":"That interception","author":"sam","excerpt":"Did anyone see that coming?"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create thread: status %d body %s", rec.Code, rec.Body.String())
	}
	var thread forum.Thread
	if err := json.NewDecoder(rec.Body).Decode(&thread); err != nil {
		t.Fatalf("decode thread: %v", err)
	}

	rec = httptest.NewRecorder()
	h.HandleThreadsDispatcher(rec, httptest.NewRequest(http.MethodPost,
		"/forum/threads/"+thread.ID+"/comments", strings.NewReader(`{"author":"pat","body":"called it"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("add comment: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.HandleThreadsDispatcher(rec, httptest.NewRequest(http.MethodPost,
		"/forum/threads/"+thread.ID+"/vote", strings.NewReader(`{"delta":1}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("vote: status %d body %s", rec.Code, rec.Body.String())
	}
	var votes map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&votes); err != nil {
		t.Fatalf("decode votes: %v", err)
	}
	if votes["votes"] != 1 {
		t.Fatalf("votes = %d", votes["votes"])
	}

	rec = httptest.NewRecorder()
	h.HandleThreads(rec, httptest.NewRequest(http.MethodGet, "/forum/threads", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list threads: status %d", rec.Code)
	}
	var threads []forum.Thread
	if err := json.NewDecoder(rec.Body).Decode(&threads); err != nil {
		t.Fatalf("decode threads: %v", err)
	}
	found := false
	for _, th := range threads {
		if th.ID == thread.ID && len(th.Comments) == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("thread with comment not listed")
	}

	rec = httptest.NewRecorder()
	h.HandleThreadsDispatcher(rec, httptest.NewRequest(http.MethodPost,
		"/forum/threads/t-missing/comments", strings.NewReader(`{"body":"hello"}`)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing thread: status %d", rec.Code)
	}
}

func TestFeedEndpoints(t *testing.T) {
	h := dbHandlers(t)

	rec := httptest.NewRecorder()
	h.HandleAdminFeedRecord(rec, httptest.NewRequest(http.MethodPost, "/admin/feed/record",
		strings.NewReader(`{"game_id":"feed-test","author":"fan","body":"lets go","rel_timestamp":12.5}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("record: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.HandleFeed(rec, httptest.NewRequest(http.MethodGet, "/feed?game_id=feed-test", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("feed: status %d", rec.Code)
	}
	var posts []map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&posts); err != nil {
		t.Fatalf("decode posts: %v", err)
	}
	if len(posts) != 1 || posts[0]["author"] != "fan" {
		t.Fatalf("unexpected posts: %+v", posts)
	}
}
