// Package social records live chat into the fan feed and serves it back in
// game-relative order.
package social

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/Grace-Shao/aiatl2025/backend/config"
	"github.com/Grace-Shao/aiatl2025/backend/telemetry"
)

// Post is one recorded feed message.
type Post struct {
	ID           int64     `json:"id"`
	GameID       string    `json:"game_id"`
	Author       string    `json:"author"`
	Body         string    `json:"body"`
	AbsTimestamp time.Time `json:"abs_timestamp"`
	RelTimestamp float64   `json:"rel_timestamp"`
	Badges       string    `json:"badges,omitempty"`
	Color        string    `json:"color,omitempty"`
}

// RecordPost stores a single feed post. rel is seconds since game start.
func RecordPost(ctx context.Context, db *sql.DB, p Post) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO feed_posts (game_id, author, body, abs_timestamp, rel_timestamp, badges, color)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.GameID, p.Author, p.Body, p.AbsTimestamp, p.RelTimestamp, p.Badges, p.Color)
	if err != nil {
		return fmt.Errorf("insert feed post: %w", err)
	}
	telemetry.Inc(telemetry.FeedMessagesRecorded)
	return nil
}

// ListPosts returns feed posts for a game ordered by game-relative time, newest
// last, capped at limit (default 200).
func ListPosts(ctx context.Context, db *sql.DB, gameID string, sinceRel float64, limit int) ([]Post, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, game_id, COALESCE(author,''), COALESCE(body,''), abs_timestamp, COALESCE(rel_timestamp,0), COALESCE(badges,''), COALESCE(color,'')
		 FROM feed_posts WHERE game_id = $1 AND rel_timestamp >= $2
		 ORDER BY rel_timestamp ASC, id ASC LIMIT $3`,
		gameID, sinceRel, limit)
	if err != nil {
		return nil, fmt.Errorf("list feed posts: %w", err)
	}
	defer rows.Close()
	posts := make([]Post, 0)
	for rows.Next() {
		var p Post
		var abs sql.NullTime
		if err := rows.Scan(&p.ID, &p.GameID, &p.Author, &p.Body, &abs, &p.RelTimestamp, &p.Badges, &p.Color); err != nil {
			return nil, err
		}
		if abs.Valid {
			p.AbsTimestamp = abs.Time.UTC()
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// StartChatRecorder joins the configured Twitch channel and records every
// message into the feed until ctx is cancelled. Blocks; run in a goroutine.
// Missing credentials make it a no-op so local stacks run without Twitch.
func StartChatRecorder(ctx context.Context, db *sql.DB, cfg *config.Config, gameStart time.Time) {
	if err := cfg.ValidateFeedReady(); err != nil {
		slog.Info("twitch creds not set; skipping chat recorder")
		return
	}
	gameID := cfg.GameID
	client := twitch.NewClient(cfg.TwitchBotUsername, cfg.TwitchOAuthToken)

	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		absTime := time.Now().UTC()
		badges := ""
		for k, v := range msg.User.Badges {
			badges += k + ":" + fmt.Sprintf("%v", v) + ","
		}
		p := Post{
			GameID:       gameID,
			Author:       msg.User.Name,
			Body:         msg.Message,
			AbsTimestamp: absTime,
			RelTimestamp: absTime.Sub(gameStart).Seconds(),
			Badges:       badges,
			Color:        msg.User.Color,
		}
		if err := RecordPost(ctx, db, p); err != nil {
			slog.Error("failed to record feed post", slog.Any("err", err))
		}
	})

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		client.Disconnect()
		close(done)
	}()

	client.Join(cfg.TwitchChannel)
	if err := client.Connect(); err != nil {
		slog.Error("twitch chat connect error", slog.Any("err", err))
	}
	<-done
}
