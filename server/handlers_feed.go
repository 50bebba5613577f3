package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Grace-Shao/aiatl2025/backend/social"
)

// HandleFeed returns recorded fan feed posts for the configured game.
// Params: game_id (defaults to the configured game), from (seconds), limit.
func (h *Handlers) HandleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	gameID := r.URL.Query().Get("game_id")
	if gameID == "" {
		gameID = h.cfg.GameID
	}
	from := parseFloat64Query(r, "from", 0)
	limit := parseIntQuery(r, "limit", 200)
	posts, err := social.ListPosts(r.Context(), h.db, gameID, from, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleFeedStream replays recorded feed posts over SSE at a given playback
// speed, sleeping the game-relative delta between posts.
func (h *Handlers) HandleFeedStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	gameID := r.URL.Query().Get("game_id")
	if gameID == "" {
		gameID = h.cfg.GameID
	}
	from := parseFloat64Query(r, "from", 0)
	speed := parseFloat64Query(r, "speed", 1.0)
	if speed <= 0 {
		speed = 1.0
	}

	ctx := r.Context()
	posts, err := social.ListPosts(ctx, h.db, gameID, from, 1000)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	prev := from
	enc := json.NewEncoder(w)
	for _, p := range posts {
		// sleep for the delta scaled by speed
		if p.RelTimestamp > prev {
			delay := time.Duration(((p.RelTimestamp - prev) / speed) * float64(time.Second))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
		if _, err := w.Write([]byte("data: ")); err != nil {
			return
		}
		_ = enc.Encode(p)
		if _, err := w.Write([]byte("\n")); err != nil {
			return
		}
		flusher.Flush()
		prev = p.RelTimestamp
	}
}

// HandleAdminFeedRecord lets operators inject a feed post manually, mainly for
// demos without a live chat connection.
func (h *Handlers) HandleAdminFeedRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var p social.Post
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid post payload")
		return
	}
	if p.GameID == "" {
		p.GameID = h.cfg.GameID
	}
	if p.AbsTimestamp.IsZero() {
		p.AbsTimestamp = time.Now().UTC()
	}
	if err := social.RecordPost(r.Context(), h.db, p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusCreated)
}
