package detector

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/Grace-Shao/aiatl2025/backend/telemetry"
)

// State is the connection lifecycle: Idle -> Connecting -> Connected ->
// {Completed | Error}, back to Idle on Disconnect.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateCompleted
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateCompleted:
		return "completed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Params configures a detector run, passed as query parameters.
type Params struct {
	Speed           float64
	AudioWeight     float64
	PlayWeight      float64
	Threshold       float64
	ContextSegments int
}

func (p Params) query() url.Values {
	q := url.Values{}
	q.Set("speed", fmt.Sprintf("%g", p.Speed))
	q.Set("audio_weight", fmt.Sprintf("%g", p.AudioWeight))
	q.Set("play_weight", fmt.Sprintf("%g", p.PlayWeight))
	q.Set("key_moment_threshold", fmt.Sprintf("%g", p.Threshold))
	q.Set("context_segments", fmt.Sprintf("%d", p.ContextSegments))
	return q
}

// Stats are the final summary counts from a completed frame.
type Stats struct {
	TotalAnalyzed int `json:"total_analyzed"`
	TotalDetected int `json:"total_detected"`
}

// Client owns at most one live connection to the detector's SSE endpoint.
// Connect never returns an error for an unreachable endpoint: failures are
// observable only through State/Err. There is no automatic reconnect; the
// caller re-invokes Connect.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// OnFrame receives every decoded frame on the reader goroutine. Set it
	// before Connect; Disconnect guarantees no calls after it returns.
	OnFrame func(Frame)

	mu     sync.Mutex
	state  State
	errMsg string
	stats  Stats
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient returns an idle client for the given detector base URL.
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, state: StateIdle}
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the last surfaced error message, empty when none.
func (c *Client) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// FinalStats returns the summary counts captured from the completed frame.
func (c *Client) FinalStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Connect opens the stream. Any prior connection is closed first, so at most
// one connection is live at a time. The call returns once the reader
// goroutine is started; the connected acknowledgment arrives asynchronously.
func (c *Client) Connect(ctx context.Context, p Params) {
	c.Disconnect()

	rctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	c.state = StateConnecting
	c.errMsg = ""
	c.stats = Stats{}
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go c.run(rctx, p, done)
}

// Disconnect closes the active connection, if any. Idempotent, safe to call
// mid-message: it waits for the reader goroutine to exit, so no frame is
// delivered after it returns.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) setError(msg string) {
	c.mu.Lock()
	c.state = StateError
	c.errMsg = msg
	c.mu.Unlock()
}

func (c *Client) run(ctx context.Context, p Params, done chan struct{}) {
	defer close(done)

	u := strings.TrimRight(c.BaseURL, "/") + "/getkeymoments?" + p.query().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		c.setError(err.Error())
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.http().Do(req)
	if err != nil {
		// Endpoint unreachable: fail silently into the error state.
		c.setError("connection failed")
		slog.Warn("detector connect failed", slog.Any("err", err))
		return
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close detector stream", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		c.setError(fmt.Sprintf("detector returned HTTP %d", resp.StatusCode))
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		telemetry.Inc(telemetry.DetectorFramesTotal)
		frame, err := DecodeFrame([]byte(payload))
		if err != nil {
			// One bad frame does not terminate the session.
			telemetry.Inc(telemetry.DetectorFramesMalformed)
			c.setError("failed to parse stream data")
			slog.Warn("malformed detector frame", slog.Any("err", err))
			continue
		}
		if frame == nil {
			continue
		}
		switch f := frame.(type) {
		case ConnectedFrame:
			c.setState(StateConnected)
			slog.Info("detector stream connected", slog.String("message", f.Message))
		case HeartbeatFrame:
			// keep-alive only
		case CompletedFrame:
			c.mu.Lock()
			c.state = StateCompleted
			c.stats = Stats{TotalAnalyzed: f.TotalAnalyzed, TotalDetected: f.TotalDetected}
			c.mu.Unlock()
			slog.Info("detector stream completed",
				slog.Int("analyzed", f.TotalAnalyzed), slog.Int("detected", f.TotalDetected))
		case ErrorFrame:
			telemetry.Inc(telemetry.DetectorStreamErrors)
			c.setError(f.Message)
			slog.Warn("detector stream error", slog.String("message", f.Message))
		}
		if c.OnFrame != nil {
			c.OnFrame(frame)
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		c.setError("connection failed")
		slog.Warn("detector stream read error", slog.Any("err", err))
	}
}
