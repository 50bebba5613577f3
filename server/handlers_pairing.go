package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Grace-Shao/aiatl2025/backend/genai"
	"github.com/Grace-Shao/aiatl2025/backend/pairing"
)

// HandlePairSessions lists pairing sessions (GET), creates one (POST) or
// applies a partial update (PUT, id in the body).
func (h *Handlers) HandlePairSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sessions, err := h.pairing.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
	case http.MethodPost:
		var body struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid session payload")
			return
		}
		sess, err := h.pairing.Create(r.Context(), body.Title)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"session": sess})
	case http.MethodPut:
		var body struct {
			ID string `json:"id"`
			pairing.SessionUpdate
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == "" {
			writeError(w, http.StatusBadRequest, "session id is required")
			return
		}
		sess, err := h.pairing.Update(r.Context(), body.ID, body.SessionUpdate)
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": sess})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandlePairSessionsDispatcher routes /sessions/{id}/summary.
func (h *Handlers) HandlePairSessionsDispatcher(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/sessions/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "summary" {
		http.NotFound(w, r)
		return
	}
	h.handleSessionSummary(w, r, parts[0])
}

// handleSessionSummary generates a prose summary of the session transcript
// and stores it on the session record.
func (h *Handlers) handleSessionSummary(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Transcript string `json:"transcript"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Transcript == "" {
		writeError(w, http.StatusBadRequest, "transcript is required")
		return
	}
	if _, err := h.pairing.Get(r.Context(), id); errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	summary, err := h.genai.GenerateSessionSummary(r.Context(), body.Transcript)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate summary")
		return
	}
	sess, err := h.pairing.Update(r.Context(), id, pairing.SessionUpdate{Summary: &summary})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess})
}

// HandleHighlights extracts decisions, discussion points and action items
// from a session transcript.
func (h *Handlers) HandleHighlights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Transcript     string                `json:"transcript"`
		CodeReferences []genai.CodeReference `json:"code_references"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Transcript == "" {
		writeError(w, http.StatusBadRequest, "transcript is required")
		return
	}
	highlights, err := h.genai.GenerateHighlights(r.Context(), body.Transcript, body.CodeReferences)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate highlights")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"highlights": highlights})
}
