// Package server exposes the HTTP API handlers.
package server

import (
	"context"
	"database/sql"

	"github.com/Grace-Shao/aiatl2025/backend/config"
	"github.com/Grace-Shao/aiatl2025/backend/detector"
	"github.com/Grace-Shao/aiatl2025/backend/email"
	"github.com/Grace-Shao/aiatl2025/backend/forum"
	"github.com/Grace-Shao/aiatl2025/backend/genai"
	"github.com/Grace-Shao/aiatl2025/backend/githubapi"
	"github.com/Grace-Shao/aiatl2025/backend/pairing"
	"github.com/Grace-Shao/aiatl2025/backend/timeline"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	cfg     *config.Config
	ctx     context.Context // server lifetime, outlives any single request
	db      *sql.DB
	session *detector.Session
	forum   *forum.Store
	pairing *pairing.Store
	genai   *genai.Client
	orch    *genai.Orchestrator
	github  *githubapi.Client
	hub     *Hub
}

// NewHandlers creates a new Handlers instance with the given dependencies.
// The hub is started on the provided context and carries live moment pushes
// to websocket and SSE subscribers.
func NewHandlers(ctx context.Context, cfg *config.Config, db *sql.DB) *Handlers {
	h := &Handlers{
		cfg:     cfg,
		ctx:     ctx,
		db:      db,
		forum:   &forum.Store{DB: db},
		pairing: &pairing.Store{DB: db},
		genai:   genai.NewClient(cfg.GenAIKey, cfg.GenAIURL, cfg.GenAIModel),
		github:  githubapi.NewClient(cfg.GitHubToken, cfg.GitHubURL),
		hub:     newHub(ctx),
	}
	h.session = detector.NewSession(detector.SessionConfig{
		BaseURL: cfg.DetectorURL,
		Params: detector.Params{
			Speed:           cfg.DetectorSpeed,
			AudioWeight:     cfg.AudioWeight,
			PlayWeight:      cfg.PlayWeight,
			Threshold:       cfg.Threshold,
			ContextSegments: cfg.ContextSegments,
		},
		TimeScale:  cfg.TimeScale,
		ClipWindow: cfg.ClipWindow,
		View: timeline.ViewOptions{
			PastWindow:      cfg.PastWindow,
			FutureWindow:    cfg.FutureWindow,
			Freshness:       cfg.Freshness,
			PixelsPerSecond: cfg.PixelsPerSecond,
		},
	}, db)
	h.session.OnNewMoment = func(m timeline.Moment) {
		h.hub.BroadcastMoment(m)
	}
	h.orch = &genai.Orchestrator{
		GenAI:    h.genai,
		Email:    email.NewClient(cfg.EmailAPIKey, cfg.EmailURL, cfg.EmailFrom),
		EmailTo:  cfg.EmailTo,
		GameData: h.gameData,
	}
	return h
}

// Session exposes the detector session, mainly for tests.
func (h *Handlers) Session() *detector.Session { return h.session }

// gameData is the context blob handed to AI agents: current session status
// plus the reconciled moments so far.
func (h *Handlers) gameData(ctx context.Context) (any, error) {
	return map[string]any{
		"status":  h.session.Status(),
		"moments": h.session.Store().Snapshot(),
	}, nil
}
