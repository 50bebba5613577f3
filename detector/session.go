package detector

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/Grace-Shao/aiatl2025/backend/telemetry"
	"github.com/Grace-Shao/aiatl2025/backend/timeline"
)

// SessionConfig carries the detector and reconciliation knobs for one
// session. See config.Load for the env-backed defaults.
type SessionConfig struct {
	BaseURL    string
	Params     Params
	TimeScale  float64
	ClipWindow float64
	View       timeline.ViewOptions
}

// Session wires one detector client to the reconciliation store and clock.
// It is an explicit instance owned by whoever runs the page session; there
// is deliberately no package-level singleton.
type Session struct {
	cfg    SessionConfig
	client *Client
	store  *timeline.Store
	clock  *timeline.Clock
	norm   *timeline.Normalizer
	db     *sql.DB // optional moment archive

	// OnNewMoment fires exactly once per newly reconciled (non-duplicate)
	// moment, on the stream reader goroutine.
	OnNewMoment func(timeline.Moment)

	mu     sync.Mutex
	active bool
}

// NewSession builds a session around a fresh client, store and clock. The
// database handle is optional; when present, accepted moments are archived
// best effort.
func NewSession(cfg SessionConfig, db *sql.DB) *Session {
	s := &Session{
		cfg:    cfg,
		client: NewClient(cfg.BaseURL),
		store:  timeline.NewStore(),
		clock:  timeline.NewClock(),
		norm:   timeline.NewNormalizer(cfg.TimeScale, cfg.ClipWindow),
		db:     db,
	}
	s.client.OnFrame = s.handleFrame
	return s
}

// Client exposes the underlying stream client, mainly for tests.
func (s *Session) Client() *Client { return s.client }

// Clock exposes the playback clock for the HTTP layer to feed.
func (s *Session) Clock() *timeline.Clock { return s.clock }

// Store exposes the reconciliation store.
func (s *Session) Store() *timeline.Store { return s.store }

// Start discards any prior session state and opens the stream. Stale
// moments from a previous run must never leak across sessions, so the
// store, dedup bookkeeping and ID sequence are all reset first.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	s.active = true
	s.mu.Unlock()
	s.store.Reset()
	s.norm.Reset()
	telemetry.Inc(telemetry.DetectorSessionsStarted)
	s.client.Connect(ctx, s.cfg.Params)
	slog.Info("detector session started",
		slog.Float64("speed", s.cfg.Params.Speed),
		slog.Float64("threshold", s.cfg.Params.Threshold))
}

// Stop closes the stream and clears session state. Idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
	s.client.Disconnect()
	s.store.Reset()
	s.norm.Reset()
	slog.Info("detector session stopped")
}

// Active reports whether detection is currently running.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// UpdateClock feeds the external playback position into the session.
func (s *Session) UpdateClock(currentTime, duration float64, playing bool) {
	s.clock.SetCurrentTime(currentTime)
	if duration > 0 {
		s.clock.SetDuration(duration)
	}
	s.clock.SetPlaying(playing)
}

// View computes the renderable timeline state at this instant.
func (s *Session) View() timeline.View {
	latest, ok := s.store.Latest()
	var latestTime float64
	if ok {
		latestTime = latest.Time
	}
	anchor := s.clock.Anchor(latestTime, s.cfg.View.PastWindow)
	windowed := s.store.InWindow(anchor, s.cfg.View.PastWindow, s.cfg.View.FutureWindow)
	return timeline.BuildView(s.clock.State(), windowed, latest, ok, anchor, time.Now(), s.cfg.View)
}

// Status summarizes the session for the /status endpoint.
type Status struct {
	State     string  `json:"state"`
	Connected bool    `json:"connected"`
	Active    bool    `json:"active"`
	Error     string  `json:"error,omitempty"`
	Moments   int     `json:"moments"`
	Stats     Stats   `json:"stats"`
	Clock     any     `json:"clock"`
	Anchor    float64 `json:"anchor"`
}

// Status returns the observable session state.
func (s *Session) Status() Status {
	st := s.client.State()
	latest, ok := s.store.Latest()
	var latestTime float64
	if ok {
		latestTime = latest.Time
	}
	return Status{
		State:     st.String(),
		Connected: st == StateConnected,
		Active:    s.Active(),
		Error:     s.client.Err(),
		Moments:   s.store.Len(),
		Stats:     s.client.FinalStats(),
		Clock:     s.clock.State(),
		Anchor:    s.clock.Anchor(latestTime, s.cfg.View.PastWindow),
	}
}

func (s *Session) handleFrame(f Frame) {
	cf, ok := f.(CandidateFrame)
	if !ok {
		return
	}
	telemetry.Inc(telemetry.CandidatesTotal)
	m := s.norm.Normalize(cf.Candidate, s.clock.State().CurrentTime)
	if !s.store.Insert(m) {
		telemetry.Inc(telemetry.DuplicatesDropped)
		return
	}
	telemetry.Inc(telemetry.MomentsAccepted)
	telemetry.SetGauge(telemetry.TimelineDepth, float64(s.store.Len()))
	s.archive(m)
	if s.OnNewMoment != nil {
		s.OnNewMoment(m)
	}
}

// archive persists an accepted moment for post-game replay. Failures are
// logged, never fatal: the in-memory timeline is the source of truth while
// the session is live.
func (s *Session) archive(m timeline.Moment) {
	if s.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `INSERT INTO moments (id, time_secs, title, description, video_start, video_end, score, category, added_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) ON CONFLICT (id) DO NOTHING`,
		m.ID, m.Time, m.Title, m.Description, m.VideoStart, m.VideoEnd, m.Score, m.Category, m.AddedAt)
	if err != nil {
		slog.Warn("failed to archive moment", slog.String("id", m.ID), slog.Any("err", err))
	}
}
