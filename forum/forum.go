// Package forum stores discussion threads, comments and vote counters in Postgres.
package forum

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Thread is a forum topic with its comments attached.
type Thread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Excerpt   string    `json:"excerpt"`
	Votes     int       `json:"votes"`
	CreatedAt time.Time `json:"created_at"`
	Comments  []Comment `json:"comments"`
}

// Comment belongs to one thread.
type Comment struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Votes     int       `json:"votes"`
	CreatedAt time.Time `json:"created_at"`
}

// Store wraps the forum tables.
type Store struct{ DB *sql.DB }

// CreateThread inserts a new thread. Empty fields get the same defaults the
// web app applied.
func (s *Store) CreateThread(ctx context.Context, title, author, excerpt string) (Thread, error) {
	if title == "" {
		title = "Untitled"
	}
	if author == "" {
		author = "Moderator"
	}
	t := Thread{
		ID:        "t-" + uuid.NewString(),
		Title:     title,
		Author:    author,
		Excerpt:   excerpt,
		CreatedAt: time.Now().UTC(),
		Comments:  []Comment{},
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO threads (id, title, author, excerpt, votes, created_at) VALUES ($1,$2,$3,$4,0,$5)`,
		t.ID, t.Title, t.Author, t.Excerpt, t.CreatedAt)
	if err != nil {
		return Thread{}, fmt.Errorf("insert thread: %w", err)
	}
	return t, nil
}

// ListThreads returns all threads newest-first with comments attached.
func (s *Store) ListThreads(ctx context.Context) ([]Thread, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, title, author, COALESCE(excerpt,''), votes, created_at FROM threads ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	threads := make([]Thread, 0)
	index := make(map[string]int)
	for rows.Next() {
		var t Thread
		if err := rows.Scan(&t.ID, &t.Title, &t.Author, &t.Excerpt, &t.Votes, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Comments = []Comment{}
		index[t.ID] = len(threads)
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	crows, err := s.DB.QueryContext(ctx,
		`SELECT id, thread_id, author, body, votes, created_at FROM comments ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		var c Comment
		if err := crows.Scan(&c.ID, &c.ThreadID, &c.Author, &c.Body, &c.Votes, &c.CreatedAt); err != nil {
			return nil, err
		}
		if i, ok := index[c.ThreadID]; ok {
			threads[i].Comments = append(threads[i].Comments, c)
		}
	}
	return threads, crows.Err()
}

// AddComment appends a comment to a thread. Returns sql.ErrNoRows if the
// thread does not exist.
func (s *Store) AddComment(ctx context.Context, threadID, author, body string) (Comment, error) {
	if author == "" {
		author = "Anonymous"
	}
	c := Comment{
		ID:        "c-" + uuid.NewString(),
		ThreadID:  threadID,
		Author:    author,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO comments (id, thread_id, author, body, votes, created_at)
		 SELECT $1, id, $3, $4, 0, $5 FROM threads WHERE id = $2`,
		c.ID, threadID, c.Author, c.Body, c.CreatedAt)
	if err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Comment{}, sql.ErrNoRows
	}
	return c, nil
}

// VoteThread applies a vote delta (+1 or -1) and returns the new count.
func (s *Store) VoteThread(ctx context.Context, threadID string, delta int) (int, error) {
	return s.vote(ctx, "threads", threadID, delta)
}

// VoteComment applies a vote delta (+1 or -1) and returns the new count.
func (s *Store) VoteComment(ctx context.Context, commentID string, delta int) (int, error) {
	return s.vote(ctx, "comments", commentID, delta)
}

func (s *Store) vote(ctx context.Context, table, id string, delta int) (int, error) {
	if delta != 1 && delta != -1 {
		return 0, fmt.Errorf("vote delta must be +1 or -1, got %d", delta)
	}
	var votes int
	err := s.DB.QueryRowContext(ctx,
		`UPDATE `+table+` SET votes = votes + $1 WHERE id = $2 RETURNING votes`, delta, id).Scan(&votes)
	if err == sql.ErrNoRows {
		return 0, err
	}
	if err != nil {
		return 0, fmt.Errorf("vote %s: %w", table, err)
	}
	return votes, nil
}
