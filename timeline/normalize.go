package timeline

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Defaults for the normalization constants. All of them are overridable via
// config; see config.Load.
const (
	// DefaultTimeScale maps detector-relative seconds onto playback seconds.
	// The detector chews through the feed faster than real time.
	DefaultTimeScale = 3.0
	// DefaultClipWindow bounds the highlight clip around a moment, in seconds.
	DefaultClipWindow = 3.0
)

const (
	fallbackTitle       = "Key Moment"
	fallbackDescription = "No description"
)

// Normalizer converts detector candidates into timeline moments. IDs are
// derived from the detector offset plus a monotonic per-session sequence
// number, assigned once per distinct candidate: redelivery of the same
// detector event (same server timestamp and offset) yields the same ID so
// the store can absorb it, while distinct events that happen to share a
// detected_at offset still get unique IDs. Safe for concurrent use.
type Normalizer struct {
	TimeScale  float64
	ClipWindow float64

	mu   sync.Mutex
	seq  uint64
	seen map[string]string // candidate identity -> assigned moment ID
}

// NewNormalizer returns a Normalizer with the given constants; zero values
// fall back to the defaults.
func NewNormalizer(timeScale, clipWindow float64) *Normalizer {
	if timeScale <= 0 {
		timeScale = DefaultTimeScale
	}
	if clipWindow <= 0 {
		clipWindow = DefaultClipWindow
	}
	return &Normalizer{
		TimeScale:  timeScale,
		ClipWindow: clipWindow,
		seen:       make(map[string]string),
	}
}

// Normalize maps a candidate plus the playback position at arrival onto the
// timeline. Malformed candidates are defaulted, never dropped.
func (n *Normalizer) Normalize(c Candidate, currentTime float64) Moment {
	t := currentTime + c.DetectedAt*n.TimeScale
	if t < 0 {
		t = 0
	}
	title := c.Category
	if title == "" {
		title = fallbackTitle
	}
	desc := c.Description
	if desc == "" {
		desc = fallbackDescription
	}
	return Moment{
		ID:          n.idFor(c),
		Time:        t,
		Title:       title,
		Description: desc,
		VideoStart:  math.Max(0, t-n.ClipWindow),
		VideoEnd:    t + n.ClipWindow,
		Score:       c.CombinedScore,
		Category:    c.Category,
		AddedAt:     time.Now(),
	}
}

// idFor returns the stable ID for a candidate. Wall-clock time is
// deliberately not part of the ID: bursts within one millisecond would
// collide.
func (n *Normalizer) idFor(c Candidate) string {
	key := c.Timestamp + "|" + fmt.Sprintf("%g", c.DetectedAt)
	n.mu.Lock()
	defer n.mu.Unlock()
	if id, ok := n.seen[key]; ok {
		return id
	}
	n.seq++
	id := fmt.Sprintf("moment-%g-%d", c.DetectedAt, n.seq)
	n.seen[key] = id
	return id
}

// Reset rewinds the ID counter and forgets seen candidates. Call together
// with Store.Reset when a new detector session starts.
func (n *Normalizer) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq = 0
	n.seen = make(map[string]string)
}
