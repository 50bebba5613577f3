package timeline

import "sync"

// AnchorEpsilon keeps the anchor strictly inside the past view window.
const AnchorEpsilon = 0.001

// Clock is the single source of truth for playback position, independent of
// whichever video backend drives it. Updates arrive at roughly 10 Hz while
// playing, plus discontinuous jumps on seek.
type Clock struct {
	mu      sync.Mutex
	current float64
	// duration stays 0 until media metadata loads; 0 means unknown.
	duration float64
	playing  bool
}

// NewClock returns a stopped clock at position zero.
func NewClock() *Clock { return &Clock{} }

// SetCurrentTime records the playback position. Backward jumps are accepted
// and treated as seeks.
func (c *Clock) SetCurrentTime(t float64) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// SetDuration records the media duration once metadata is known.
func (c *Clock) SetDuration(d float64) {
	c.mu.Lock()
	c.duration = d
	c.mu.Unlock()
}

// SetPlaying toggles the play/pause flag.
func (c *Clock) SetPlaying(p bool) {
	c.mu.Lock()
	c.playing = p
	c.mu.Unlock()
}

// State returns a copy of the current clock state.
func (c *Clock) State() ClockState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ClockState{CurrentTime: c.current, Duration: c.duration, Playing: c.playing}
}

// Anchor computes the reference time for windowing: the later of the
// playback position and the latest known moment, clamped so a single
// far-future moment cannot drag the view window past pastWindow seconds
// ahead of actual playback.
func (c *Clock) Anchor(latestMomentTime, pastWindow float64) float64 {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()
	anchor := current
	if latestMomentTime > anchor {
		anchor = latestMomentTime
	}
	if limit := current + pastWindow - AnchorEpsilon; anchor > limit {
		anchor = limit
	}
	return anchor
}
