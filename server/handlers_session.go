package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// HandleSessionStart begins a detection session with the configured detector
// knobs. Restarting an active session drops its state first.
func (h *Handlers) HandleSessionStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// The stream must outlive this request; bound it to the server context.
	h.session.Start(h.ctx)
	writeJSON(w, http.StatusOK, h.session.Status())
}

// HandleSessionStop ends the detection session and discards timeline state.
func (h *Handlers) HandleSessionStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.session.Stop()
	writeJSON(w, http.StatusOK, h.session.Status())
}

// HandleSessionClock accepts playback position updates from the player.
func (h *Handlers) HandleSessionClock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		CurrentTime float64 `json:"current_time"`
		Duration    float64 `json:"duration"`
		Playing     bool    `json:"playing"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid clock payload")
		return
	}
	if body.CurrentTime < 0 {
		writeError(w, http.StatusBadRequest, "current_time must be non-negative")
		return
	}
	h.session.UpdateClock(body.CurrentTime, body.Duration, body.Playing)
	w.WriteHeader(http.StatusNoContent)
}

// HandleTimeline returns the renderable timeline view at this instant.
func (h *Handlers) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.session.View())
}

// HandleTimelineStream pushes moment events over SSE as they are reconciled.
// A heartbeat comment goes out every 15s so proxies keep the connection open.
func (h *Handlers) HandleTimelineStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	ctx := r.Context()
	enc := json.NewEncoder(w)

	// Replay the current snapshot first so late subscribers catch up. With
	// speed > 0 the replay is paced by the moments' playback-time deltas,
	// scaled down by the speed factor; the default delivers it all at once.
	speed := parseFloat64Query(r, "speed", 0)
	from := parseFloat64Query(r, "from", 0)
	prev := from
	// The subscription is opened before the snapshot is taken, so a moment
	// reconciled mid-replay can arrive on both paths. Replayed IDs are
	// remembered and matching live events dropped.
	replayed := make(map[string]struct{})
	for _, m := range h.session.Store().Snapshot() {
		if m.Time < from {
			continue
		}
		if speed > 0 && m.Time > prev {
			delay := time.Duration(((m.Time - prev) / speed) * float64(time.Second))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
		moment := m
		if _, err := w.Write([]byte("data: ")); err != nil {
			return
		}
		_ = enc.Encode(wsEvent{Type: "moment", Moment: &moment})
		if _, err := w.Write([]byte("\n")); err != nil {
			return
		}
		flusher.Flush()
		replayed[m.ID] = struct{}{}
		prev = m.Time
	}
	flusher.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Moment != nil {
				if _, dup := replayed[ev.Moment.ID]; dup {
					continue
				}
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			_ = enc.Encode(ev)
			if _, err := w.Write([]byte("\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
