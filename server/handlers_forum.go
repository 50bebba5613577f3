package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// HandleThreads lists threads (GET) or creates one (POST).
func (h *Handlers) HandleThreads(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		threads, err := h.forum.ListThreads(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, threads)
	case http.MethodPost:
		var body struct {
			Title   string `json:"title"`
			Author  string `json:"author"`
			Excerpt string `json:"excerpt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid thread payload")
			return
		}
		thread, err := h.forum.CreateThread(r.Context(), body.Title, body.Author, body.Excerpt)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, thread)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleThreadsDispatcher routes /forum/threads/{id}/comments and
// /forum/threads/{id}/vote.
func (h *Handlers) HandleThreadsDispatcher(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/forum/threads/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	threadID, action := parts[0], parts[1]
	switch action {
	case "comments":
		h.handleAddComment(w, r, threadID)
	case "vote":
		h.handleVote(w, r, threadID, h.forum.VoteThread)
	default:
		http.NotFound(w, r)
	}
}

// HandleCommentsDispatcher routes /forum/comments/{id}/vote.
func (h *Handlers) HandleCommentsDispatcher(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/forum/comments/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "vote" {
		http.NotFound(w, r)
		return
	}
	h.handleVote(w, r, parts[0], h.forum.VoteComment)
}

func (h *Handlers) handleAddComment(w http.ResponseWriter, r *http.Request, threadID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Author string `json:"author"`
		Body   string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid comment payload")
		return
	}
	if body.Body == "" {
		writeError(w, http.StatusBadRequest, "comment body is required")
		return
	}
	comment, err := h.forum.AddComment(r.Context(), threadID, body.Author, body.Body)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "thread not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (h *Handlers) handleVote(w http.ResponseWriter, r *http.Request, id string, vote func(ctx context.Context, id string, delta int) (int, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid vote payload")
		return
	}
	votes, err := vote(r.Context(), id, body.Delta)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"votes": votes})
}
