package timeline

import "time"

// View constants; overridable via config.
const (
	// DefaultPastWindow / DefaultFutureWindow bound the moments kept in view
	// around the anchor, in seconds.
	DefaultPastWindow   = 60.0
	DefaultFutureWindow = 20.0
	// DefaultFreshness is how long a moment keeps its "new" badge.
	DefaultFreshness = 3 * time.Second
	// DefaultPixelsPerSecond scales timeline offsets to track positions.
	DefaultPixelsPerSecond = 10.0
)

// ViewOptions configures BuildView. Zero values fall back to the defaults.
type ViewOptions struct {
	PastWindow      float64
	FutureWindow    float64
	Freshness       time.Duration
	PixelsPerSecond float64
}

func (o ViewOptions) withDefaults() ViewOptions {
	if o.PastWindow <= 0 {
		o.PastWindow = DefaultPastWindow
	}
	if o.FutureWindow <= 0 {
		o.FutureWindow = DefaultFutureWindow
	}
	if o.Freshness <= 0 {
		o.Freshness = DefaultFreshness
	}
	if o.PixelsPerSecond <= 0 {
		o.PixelsPerSecond = DefaultPixelsPerSecond
	}
	return o
}

// Marker is one renderable timeline marker.
type Marker struct {
	Moment
	// OffsetPx is the horizontal distance from the playhead: positive for
	// moments behind the anchor, negative for upcoming ones.
	OffsetPx float64 `json:"offset_px"`
	Latest   bool    `json:"latest"`
	// New flags the single most recent moment while its freshness window
	// is open.
	New bool `json:"new"`
}

// Stats is the summary row under the timeline.
type Stats struct {
	Moments         int     `json:"moments"`
	PercentComplete float64 `json:"percent_complete"`
	RemainingSecs   float64 `json:"remaining_secs"`
}

// View is the full renderable state handed to the frontend.
type View struct {
	Clock   ClockState `json:"clock"`
	Anchor  float64    `json:"anchor"`
	Markers []Marker   `json:"markers"`
	Stats   Stats      `json:"stats"`
}

// BuildView maps clock state plus the reconciled moment set into renderable
// markers and summary stats. Pure: it only reads its inputs.
func BuildView(clock ClockState, windowed []Moment, latest Moment, haveLatest bool, anchor float64, now time.Time, opts ViewOptions) View {
	opts = opts.withDefaults()

	markers := make([]Marker, 0, len(windowed))
	for _, m := range windowed {
		mk := Marker{
			Moment:   m,
			OffsetPx: (anchor - m.Time) * opts.PixelsPerSecond,
		}
		if haveLatest && m.ID == latest.ID {
			mk.Latest = true
			mk.New = now.Sub(m.AddedAt) < opts.Freshness
		}
		markers = append(markers, mk)
	}

	st := Stats{Moments: len(windowed)}
	if clock.Duration > 0 {
		st.PercentComplete = clock.CurrentTime / clock.Duration * 100
		if st.PercentComplete > 100 {
			st.PercentComplete = 100
		}
	}
	if rem := clock.Duration - clock.CurrentTime; rem > 0 {
		st.RemainingSecs = rem
	}

	return View{Clock: clock, Anchor: anchor, Markers: markers, Stats: st}
}
