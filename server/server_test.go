package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Grace-Shao/aiatl2025/backend/config"
	"github.com/Grace-Shao/aiatl2025/backend/timeline"
)

func testHandlers(t *testing.T) *Handlers {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewHandlers(ctx, cfg, nil)
}

func TestClockEndpointValidation(t *testing.T) {
	h := testHandlers(t)

	rec := httptest.NewRecorder()
	h.HandleSessionClock(rec, httptest.NewRequest(http.MethodPost, "/session/clock", strings.NewReader("not json")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.HandleSessionClock(rec, httptest.NewRequest(http.MethodPost, "/session/clock", strings.NewReader(`{"current_time":-3}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative time: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.HandleSessionClock(rec, httptest.NewRequest(http.MethodPost, "/session/clock", strings.NewReader(`{"current_time":42.5,"duration":600,"playing":true}`)))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("valid clock: status %d", rec.Code)
	}
	if got := h.session.Clock().State().CurrentTime; got != 42.5 {
		t.Fatalf("clock not applied: %v", got)
	}

	rec = httptest.NewRecorder()
	h.HandleSessionClock(rec, httptest.NewRequest(http.MethodGet, "/session/clock", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET clock: status %d", rec.Code)
	}
}

func TestTimelineViewEndpoint(t *testing.T) {
	h := testHandlers(t)
	h.session.UpdateClock(100, 600, true)
	h.session.Store().Insert(timeline.Moment{ID: "m-1", Time: 95, Title: "Touchdown", AddedAt: time.Now()})

	rec := httptest.NewRecorder()
	h.HandleTimeline(rec, httptest.NewRequest(http.MethodGet, "/session/timeline", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var view timeline.View
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if len(view.Markers) != 1 || view.Markers[0].Moment.ID != "m-1" {
		t.Fatalf("unexpected markers: %+v", view.Markers)
	}
	if view.Clock.CurrentTime != 100 {
		t.Fatalf("clock = %+v", view.Clock)
	}
}

func TestStatusEndpoint(t *testing.T) {
	h := testHandlers(t)
	rec := httptest.NewRecorder()
	h.HandleStatus(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var st struct {
		State  string `json:"state"`
		Active bool   `json:"active"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.State != "idle" || st.Active {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestTimelineStreamEmitsMoments(t *testing.T) {
	h := testHandlers(t)
	h.session.Store().Insert(timeline.Moment{ID: "snap-1", Time: 10, Title: "Earlier", AddedAt: time.Now()})

	srv := httptest.NewServer(http.HandlerFunc(h.HandleTimelineStream))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				lines <- line
			}
		}
		close(lines)
	}()

	expect := func(id string) {
		t.Helper()
		for {
			select {
			case <-ctx.Done():
				t.Fatalf("timed out waiting for %s", id)
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream closed before %s", id)
				}
				if strings.HasPrefix(line, "data: ") && strings.Contains(line, id) {
					return
				}
			}
		}
	}

	// Snapshot replay comes first, then the live broadcast.
	expect("snap-1")
	h.hub.BroadcastMoment(timeline.Moment{ID: "live-2", Time: 20, Title: "Live", AddedAt: time.Now()})
	expect("live-2")
	cancel()
}

func TestTimelineStreamDropsReplayedMoments(t *testing.T) {
	h := testHandlers(t)
	snap := timeline.Moment{ID: "snap-1", Time: 10, Title: "Earlier", AddedAt: time.Now()}
	h.session.Store().Insert(snap)

	srv := httptest.NewServer(http.HandlerFunc(h.HandleTimelineStream))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	defer resp.Body.Close()

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				lines <- line
			}
		}
		close(lines)
	}()

	next := func() string {
		t.Helper()
		for {
			select {
			case <-ctx.Done():
				t.Fatal("timed out waiting for stream data")
			case line, ok := <-lines:
				if !ok {
					t.Fatal("stream closed early")
				}
				if strings.HasPrefix(line, "data: ") {
					return line
				}
			}
		}
	}

	if line := next(); !strings.Contains(line, "snap-1") {
		t.Fatalf("expected snapshot replay first, got %q", line)
	}

	// A moment that was reconciled while the snapshot replayed arrives on the
	// live channel with an ID the replay already delivered; it must not be
	// sent twice.
	h.hub.BroadcastMoment(snap)
	h.hub.BroadcastMoment(timeline.Moment{ID: "live-2", Time: 20, Title: "Live", AddedAt: time.Now()})

	if line := next(); strings.Contains(line, "snap-1") || !strings.Contains(line, "live-2") {
		t.Fatalf("replayed moment delivered twice: %q", line)
	}
	cancel()
}

func TestAdminFeedRecordRequiresAuth(t *testing.T) {
	t.Setenv("ADMIN_TOKEN", "secret")
	t.Setenv("RATE_LIMIT_ENABLED", "0")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mux := NewMux(ctx, cfg, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/feed/record", strings.NewReader("{}")))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", rec.Code)
	}

	// Wrong method with valid token reaches the handler.
	req := httptest.NewRequest(http.MethodGet, "/admin/feed/record", nil)
	req.Header.Set("X-Admin-Token", "secret")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("valid token: status %d", rec.Code)
	}
}

func TestCORSAndCorrelation(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mux := NewMux(ctx, cfg, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/status", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: status %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Fatalf("missing correlation id")
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	mux.ServeHTTP(rec, req)
	if rec.Header().Get("X-Correlation-ID") != "corr-123" {
		t.Fatalf("correlation id not propagated")
	}
}

func TestRateLimiterWindow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := newIPRateLimiter(ctx, &rateLimiterConfig{enabled: true, requestsPerIP: 2, window: time.Minute})

	if !rl.allow("1.2.3.4") || !rl.allow("1.2.3.4") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("1.2.3.4") {
		t.Fatal("third request should be limited")
	}
	if !rl.allow("5.6.7.8") {
		t.Fatal("other IPs are independent")
	}
}
