package timeline

import (
	"math"
	"testing"
)

func TestNormalizeMapsDetectorOffsetToPlaybackTime(t *testing.T) {
	n := NewNormalizer(3, 3)
	m := n.Normalize(Candidate{Timestamp: "12:04", DetectedAt: 4, Category: "Touchdown", Description: "QB sneak", CombinedScore: 87.5}, 10)
	if m.Time != 22 { // 10 + 4*3
		t.Fatalf("expected time 22, got %v", m.Time)
	}
	if m.VideoStart != 19 || m.VideoEnd != 25 {
		t.Errorf("expected clip window [19,25], got [%v,%v]", m.VideoStart, m.VideoEnd)
	}
	if m.Title != "Touchdown" || m.Description != "QB sneak" {
		t.Errorf("unexpected title/description: %q %q", m.Title, m.Description)
	}
	if m.Score != 87.5 {
		t.Errorf("score not carried through: %v", m.Score)
	}
}

func TestNormalizeClampsNegativeTime(t *testing.T) {
	n := NewNormalizer(3, 3)
	m := n.Normalize(Candidate{Timestamp: "0:01", DetectedAt: -10}, 5)
	if m.Time != 0 {
		t.Fatalf("expected time clamped to 0, got %v", m.Time)
	}
	if m.VideoStart != 0 {
		t.Errorf("expected videoStart clamped to 0, got %v", m.VideoStart)
	}
	if m.VideoEnd != 3 {
		t.Errorf("expected videoEnd 3, got %v", m.VideoEnd)
	}
}

func TestNormalizeDefaultsMalformedFields(t *testing.T) {
	n := NewNormalizer(0, 0)
	m := n.Normalize(Candidate{Timestamp: "1:00", DetectedAt: 1}, 0)
	if m.Title != "Key Moment" {
		t.Errorf("expected placeholder title, got %q", m.Title)
	}
	if m.Description != "No description" {
		t.Errorf("expected placeholder description, got %q", m.Description)
	}
	if n.TimeScale != DefaultTimeScale || n.ClipWindow != DefaultClipWindow {
		t.Errorf("zero constants should fall back to defaults")
	}
}

func TestNormalizeIDStableForRedelivery(t *testing.T) {
	n := NewNormalizer(3, 3)
	c := Candidate{Timestamp: "12:04", DetectedAt: 4.5}
	a := n.Normalize(c, 10)
	b := n.Normalize(c, 10.2) // redelivered moments arrive a hair later
	if a.ID != b.ID {
		t.Fatalf("redelivered candidate should keep its ID: %s vs %s", a.ID, b.ID)
	}
}

func TestNormalizeIDUniqueAcrossDistinctEvents(t *testing.T) {
	n := NewNormalizer(3, 3)
	// Same detector offset, different server timestamps: distinct events.
	a := n.Normalize(Candidate{Timestamp: "12:04", DetectedAt: 4.5}, 10)
	b := n.Normalize(Candidate{Timestamp: "12:05", DetectedAt: 4.5}, 10)
	if a.ID == b.ID {
		t.Fatalf("distinct events sharing detected_at must not collide: %s", a.ID)
	}
}

func TestNormalizeResetRewindsSequence(t *testing.T) {
	n := NewNormalizer(3, 3)
	a := n.Normalize(Candidate{Timestamp: "1", DetectedAt: 1}, 0)
	n.Reset()
	b := n.Normalize(Candidate{Timestamp: "1", DetectedAt: 1}, 0)
	if a.ID != b.ID {
		t.Fatalf("sequence should rewind on reset: %s vs %s", a.ID, b.ID)
	}
}

func TestNormalizeTimeInvariants(t *testing.T) {
	n := NewNormalizer(DefaultTimeScale, DefaultClipWindow)
	for _, c := range []Candidate{
		{Timestamp: "a", DetectedAt: 0},
		{Timestamp: "b", DetectedAt: 0.5},
		{Timestamp: "c", DetectedAt: 123.4},
		{Timestamp: "d", DetectedAt: -3},
	} {
		m := n.Normalize(c, 7)
		if m.Time < 0 {
			t.Errorf("time must be >= 0, got %v", m.Time)
		}
		if !(m.VideoStart <= m.Time && m.Time <= m.VideoEnd) {
			t.Errorf("clip window must bracket the moment: [%v, %v] around %v", m.VideoStart, m.VideoEnd, m.Time)
		}
		if m.VideoStart < 0 {
			t.Errorf("videoStart must be >= 0, got %v", m.VideoStart)
		}
		if math.IsNaN(m.Time) {
			t.Errorf("time is NaN for %+v", c)
		}
	}
}
