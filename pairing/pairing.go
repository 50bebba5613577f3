// Package pairing stores pair-programming review sessions: recorded working
// sessions that later get a transcript-driven summary and highlights.
package pairing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session lifecycle states.
const (
	StatusRecording  = "recording"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Session is one recorded pairing session.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	VideoURL  string    `json:"video_url,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionUpdate carries a partial update; nil fields are left unchanged.
type SessionUpdate struct {
	Title    *string `json:"title"`
	Status   *string `json:"status"`
	VideoURL *string `json:"video_url"`
	Summary  *string `json:"summary"`
}

// Store persists sessions in Postgres.
type Store struct {
	DB *sql.DB
}

// Create inserts a new session in the recording state.
func (s *Store) Create(ctx context.Context, title string) (Session, error) {
	now := time.Now()
	if title == "" {
		title = "Session " + now.Format("Jan 2 15:04")
	}
	sess := Session{
		ID:        "ps-" + uuid.NewString(),
		Title:     title,
		Status:    StatusRecording,
		CreatedAt: now,
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO pair_sessions (id, title, status, video_url, summary, created_at) VALUES ($1, $2, $3, '', '', $4)`,
		sess.ID, sess.Title, sess.Status, sess.CreatedAt)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// List returns all sessions, newest first.
func (s *Store) List(ctx context.Context) ([]Session, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, title, status, video_url, summary, created_at FROM pair_sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.Status, &sess.VideoURL, &sess.Summary, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Get returns one session by ID; sql.ErrNoRows when it does not exist.
func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	var sess Session
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, title, status, video_url, summary, created_at FROM pair_sessions WHERE id = $1`, id).
		Scan(&sess.ID, &sess.Title, &sess.Status, &sess.VideoURL, &sess.Summary, &sess.CreatedAt)
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Update applies the non-nil fields of u and returns the updated session.
// Missing sessions surface as sql.ErrNoRows.
func (s *Store) Update(ctx context.Context, id string, u SessionUpdate) (Session, error) {
	if u.Status != nil {
		switch *u.Status {
		case StatusRecording, StatusProcessing, StatusCompleted, StatusFailed:
		default:
			return Session{}, fmt.Errorf("invalid status %q", *u.Status)
		}
	}
	var sess Session
	err := s.DB.QueryRowContext(ctx,
		`UPDATE pair_sessions SET
			title = COALESCE($2, title),
			status = COALESCE($3, status),
			video_url = COALESCE($4, video_url),
			summary = COALESCE($5, summary)
		WHERE id = $1
		RETURNING id, title, status, video_url, summary, created_at`,
		id, u.Title, u.Status, u.VideoURL, u.Summary).
		Scan(&sess.ID, &sess.Title, &sess.Status, &sess.VideoURL, &sess.Summary, &sess.CreatedAt)
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}
