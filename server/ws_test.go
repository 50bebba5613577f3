package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Grace-Shao/aiatl2025/backend/timeline"
)

func TestWSReceivesMoments(t *testing.T) {
	h := testHandlers(t)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Registration races with the broadcast; retry until delivered.
	deadline := time.Now().Add(2 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	received := make(chan wsEvent, 1)
	go func() {
		var ev wsEvent
		for {
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			received <- ev
			return
		}
	}()

	var got wsEvent
	for {
		h.hub.BroadcastMoment(timeline.Moment{ID: "ws-1", Time: 33, Title: "Pick six"})
		select {
		case got = <-received:
		case <-time.After(50 * time.Millisecond):
			if time.Now().After(deadline) {
				t.Fatal("timed out waiting for websocket event")
			}
			continue
		}
		break
	}
	if got.Type != "moment" || got.Moment == nil || got.Moment.ID != "ws-1" {
		t.Fatalf("unexpected event: %+v", got)
	}
}
