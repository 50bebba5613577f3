package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Grace-Shao/aiatl2025/backend/telemetry"
	"github.com/Grace-Shao/aiatl2025/backend/timeline"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is consumed by browser frontends on other origins; CORS policy
	// is handled at the HTTP layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsEvent is the JSON envelope pushed to subscribers.
type wsEvent struct {
	Type   string           `json:"type"`
	Moment *timeline.Moment `json:"moment,omitempty"`
}

// Hub fans live moment events out to websocket and SSE subscribers.
type Hub struct {
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan wsEvent
	subscribe  chan chan wsEvent
	cancel     chan chan wsEvent
}

type wsClient struct {
	conn *websocket.Conn
	send chan wsEvent
}

func newHub(ctx context.Context) *Hub {
	h := &Hub{
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan wsEvent, 64),
		subscribe:  make(chan chan wsEvent),
		cancel:     make(chan chan wsEvent),
	}
	go h.run(ctx)
	return h
}

func (h *Hub) run(ctx context.Context) {
	clients := make(map[*wsClient]struct{})
	subs := make(map[chan wsEvent]struct{})
	for {
		select {
		case <-ctx.Done():
			for c := range clients {
				close(c.send)
			}
			return
		case c := <-h.register:
			clients[c] = struct{}{}
			telemetry.SetGauge(telemetry.WSClients, float64(len(clients)))
		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.send)
			}
			telemetry.SetGauge(telemetry.WSClients, float64(len(clients)))
		case ch := <-h.subscribe:
			subs[ch] = struct{}{}
		case ch := <-h.cancel:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
		case ev := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- ev:
				default:
					// Slow consumer; drop it rather than stall the hub
					delete(clients, c)
					close(c.send)
				}
			}
			for ch := range subs {
				select {
				case ch <- ev:
				default:
				}
			}
		}
	}
}

// BroadcastMoment pushes a newly reconciled moment to every subscriber.
func (h *Hub) BroadcastMoment(m timeline.Moment) {
	select {
	case h.broadcast <- wsEvent{Type: "moment", Moment: &m}:
	default:
		slog.Warn("moment broadcast dropped, hub backlog full", slog.String("id", m.ID))
	}
}

// Subscribe returns a channel of events for SSE consumers. Call the returned
// cancel func when done.
func (h *Hub) Subscribe() (<-chan wsEvent, func()) {
	ch := make(chan wsEvent, 16)
	h.subscribe <- ch
	return ch, func() { h.cancel <- ch }
}

// HandleWS upgrades the connection and streams moment events as JSON frames.
func (h *Handlers) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.Any("err", err))
		return
	}
	client := &wsClient{conn: conn, send: make(chan wsEvent, 32)}
	h.hub.register <- client

	go client.writePump()
	client.readPump(h.hub)
}

// readPump drains client frames to keep the connection alive and detects close.
func (c *wsClient) readPump(hub *Hub) {
	defer func() {
		hub.unregister <- c
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
