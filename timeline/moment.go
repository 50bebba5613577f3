// Package timeline holds the key-moment reconciliation engine: normalizing
// raw detector candidates into timeline moments, deduplicating them into a
// stable time-ordered set, and deriving the view the frontend renders.
package timeline

import "time"

// Candidate is one raw key-moment record emitted by the detector stream,
// before it has been mapped onto the playback timeline.
type Candidate struct {
	Timestamp     string  `json:"timestamp"`
	CombinedScore float64 `json:"combined_score"`
	PlayScore     float64 `json:"play_score"`
	AudioScore    float64 `json:"audio_score"`
	Category      string  `json:"play_category"`
	Description   string  `json:"description"`
	PlayType      string  `json:"play_type"`
	Quarter       int     `json:"quarter"`
	Down          int     `json:"down"`
	Distance      int     `json:"distance"`
	YardLine      string  `json:"yard_line"`
	// DetectedAt is seconds since detector-stream start when the candidate fired.
	DetectedAt float64 `json:"detected_at"`
}

// Moment is a reconciled key moment positioned on the playback timeline.
// Moments are immutable after insertion; display flags (latest, is-new) are
// derived, never stored.
type Moment struct {
	ID          string  `json:"id"`
	Time        float64 `json:"time"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	VideoStart  float64 `json:"video_start"`
	VideoEnd    float64 `json:"video_end"`
	Score       float64 `json:"score,omitempty"`
	Category    string  `json:"category,omitempty"`
	// AddedAt is the wall-clock insertion time, used only for the short
	// freshness flag. Never used for ordering.
	AddedAt time.Time `json:"added_at"`
}

// ClockState mirrors the external playback source.
type ClockState struct {
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	Playing     bool    `json:"playing"`
}
