// Package detector maintains the long-lived connection to the key-moment
// detector service and turns its server-push stream into reconciled timeline
// moments.
package detector

import (
	"encoding/json"

	"github.com/Grace-Shao/aiatl2025/backend/timeline"
)

// Frame is one decoded message from the detector stream. The wire format
// discriminates on a "status" field; frames without a status but carrying a
// "timestamp" are candidate moments. Decoding happens exactly once at the
// stream boundary.
type Frame interface{ frame() }

// ConnectedFrame acknowledges the stream is live. Carries no data.
type ConnectedFrame struct {
	Message string
}

// HeartbeatFrame is a keep-alive. It does not reset freshness timers.
type HeartbeatFrame struct{}

// CompletedFrame terminates the session with final summary counts. The
// connection may still be explicitly closed by the caller afterward.
type CompletedFrame struct {
	Message       string
	TotalAnalyzed int
	TotalDetected int
}

// ErrorFrame reports a detector-side failure. The caller decides whether to
// reconnect; the client never retries on its own.
type ErrorFrame struct {
	Message string
}

// CandidateFrame carries one raw key-moment candidate.
type CandidateFrame struct {
	Candidate timeline.Candidate
}

func (ConnectedFrame) frame() {}
func (HeartbeatFrame) frame() {}
func (CompletedFrame) frame() {}
func (ErrorFrame) frame()     {}
func (CandidateFrame) frame() {}

// DecodeFrame parses one JSON frame. A nil Frame with nil error means the
// frame is recognized JSON but carries nothing we act on (unknown status, or
// no timestamp); a non-nil error means the payload was not valid JSON.
func DecodeFrame(data []byte) (Frame, error) {
	var probe struct {
		Status        string `json:"status"`
		Message       string `json:"message"`
		Timestamp     string `json:"timestamp"`
		TotalAnalyzed int    `json:"total_moments_analyzed"`
		TotalDetected int    `json:"key_moments_detected"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	switch probe.Status {
	case "connected":
		return ConnectedFrame{Message: probe.Message}, nil
	case "heartbeat":
		return HeartbeatFrame{}, nil
	case "completed":
		return CompletedFrame{Message: probe.Message, TotalAnalyzed: probe.TotalAnalyzed, TotalDetected: probe.TotalDetected}, nil
	case "error":
		return ErrorFrame{Message: probe.Message}, nil
	case "":
		if probe.Timestamp == "" {
			return nil, nil
		}
		var c timeline.Candidate
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return CandidateFrame{Candidate: c}, nil
	default:
		return nil, nil
	}
}
