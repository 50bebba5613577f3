package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockDetectorServer emulates the key-moment detector's SSE endpoint. Frames
// pushed via Push are written as `data: {...}` lines and flushed; the handler
// exits when the client goes away or End is called.
type MockDetectorServer struct {
	*httptest.Server
	frames  chan string
	endOnce sync.Once
}

// NewMockDetectorServer starts a mock detector. Callers push raw JSON frames;
// Close is registered as test cleanup.
func NewMockDetectorServer(t *testing.T) *MockDetectorServer {
	t.Helper()
	m := &MockDetectorServer{frames: make(chan string, 64)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/getkeymoments" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()
		for {
			select {
			case <-r.Context().Done():
				return
			case frame, ok := <-m.frames:
				if !ok {
					return
				}
				fmt.Fprintf(w, "data: %s\n", frame)
				flusher.Flush()
			}
		}
	}))
	t.Cleanup(func() {
		m.Server.CloseClientConnections()
		m.Server.Close()
	})
	return m
}

// Push queues one raw JSON frame for delivery.
func (m *MockDetectorServer) Push(frame string) { m.frames <- frame }

// PushJSON marshals v and queues it as a frame.
func (m *MockDetectorServer) PushJSON(t *testing.T, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	m.Push(string(b))
}

// End closes the frame channel, letting the handler finish the stream.
// Idempotent.
func (m *MockDetectorServer) End() {
	m.endOnce.Do(func() { close(m.frames) })
}

// MockGenAIServer mocks the generative-language completion API.
type MockGenAIServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockGenAIServer creates a mock completion API keyed by URL path.
func NewMockGenAIServer(t *testing.T) *MockGenAIServer {
	t.Helper()
	m := &MockGenAIServer{Handlers: make(map[string]http.HandlerFunc)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for path, handler := range m.Handlers {
			if path == r.URL.Path {
				handler(w, r)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockTextResponse wires a path to return a single-candidate completion.
func (m *MockGenAIServer) MockTextResponse(path, text string) {
	m.Handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}
