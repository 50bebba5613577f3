package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DetectorURL != "http://localhost:3001" {
		t.Errorf("detector url default: %q", cfg.DetectorURL)
	}
	if cfg.TimeScale != 3 || cfg.ClipWindow != 3 {
		t.Errorf("timeline constants: scale=%v clip=%v", cfg.TimeScale, cfg.ClipWindow)
	}
	if cfg.PastWindow != 60 || cfg.FutureWindow != 20 {
		t.Errorf("view windows: past=%v future=%v", cfg.PastWindow, cfg.FutureWindow)
	}
	if cfg.Freshness != 3*time.Second {
		t.Errorf("freshness default: %v", cfg.Freshness)
	}
	if cfg.PixelsPerSecond != 10 {
		t.Errorf("pixels per second default: %v", cfg.PixelsPerSecond)
	}
	if cfg.DetectorSpeed != 20 || cfg.Threshold != 50 || cfg.ContextSegments != 2 {
		t.Errorf("detector params: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TIMELINE_TIME_SCALE", "1.5")
	t.Setenv("DETECTOR_THRESHOLD", "75")
	t.Setenv("TIMELINE_FRESHNESS", "5s")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TimeScale != 1.5 {
		t.Errorf("expected scale 1.5, got %v", cfg.TimeScale)
	}
	if cfg.Threshold != 75 {
		t.Errorf("expected threshold 75, got %v", cfg.Threshold)
	}
	if cfg.Freshness != 5*time.Second {
		t.Errorf("expected 5s freshness, got %v", cfg.Freshness)
	}
}

func TestLoadRejectsBadScale(t *testing.T) {
	t.Setenv("TIMELINE_TIME_SCALE", "-2")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative time scale")
	}
}

func TestValidateFeedReady(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateFeedReady(); err == nil {
		t.Fatal("expected error with missing twitch env")
	}
	cfg.TwitchChannel = "ch"
	cfg.TwitchBotUsername = "bot"
	cfg.TwitchOAuthToken = "oauth:x"
	if err := cfg.ValidateFeedReady(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
