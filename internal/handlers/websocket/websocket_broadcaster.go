package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Namanahuja82/koinx-backend-assignment/internal/app/dto"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/model"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/useCases"
)

const (
	writeWait = 5 * time.Second
	// sendBuffer is how many frames a client may fall behind before it is dropped.
	sendBuffer = 16
)

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

// WebSocketBroadcaster pushes every newly stored PriceStat to connected clients.
// Each client has its own writer goroutine, so BroadcastStat never blocks on
// the network.
type WebSocketBroadcaster struct {
	clients  map[*client]struct{}
	mu       sync.Mutex
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewWebSocketBroadcaster(log *slog.Logger) *WebSocketBroadcaster {
	return &WebSocketBroadcaster{
		clients:  make(map[*client]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		log:      log.With(slog.String("component", "websocket")),
	}
}

var _ useCases.Broadcaster = (*WebSocketBroadcaster)(nil)

func (b *WebSocketBroadcaster) BroadcastStat(stat *model.PriceStat) {
	msg, err := json.Marshal(dto.PriceStatFromModel(stat))
	if err != nil {
		b.log.Error("failed to marshal price stat", slog.Any("error", err))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		select {
		case c.send <- msg:
		default:
			b.log.Warn("websocket client too slow, dropping client")
			b.removeLocked(c)
		}
	}
}

// removeLocked unregisters c and stops its writer. b.mu must be held.
func (b *WebSocketBroadcaster) removeLocked(c *client) {
	delete(b.clients, c)
	c.closeOnce.Do(func() { close(c.send) })
}

func (b *WebSocketBroadcaster) remove(c *client) {
	b.mu.Lock()
	b.removeLocked(c)
	b.mu.Unlock()
}

// writeLoop is the only writer of data frames on c.conn.
func (b *WebSocketBroadcaster) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			b.log.Warn("websocket write error, dropping client", slog.Any("error", err))
			b.remove(c)
			return
		}
	}
}

// Clients returns the number of connected subscribers.
func (b *WebSocketBroadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Handler returns an http.HandlerFunc to accept websocket connections.
func (b *WebSocketBroadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.log.Warn("websocket upgrade error", slog.Any("error", err))
			return
		}
		c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
		b.mu.Lock()
		b.clients[c] = struct{}{}
		b.mu.Unlock()

		go b.writeLoop(c)

		// Clients never send anything useful; reading detects disconnects.
		go func() {
			defer b.remove(c)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

// Close disconnects every client.
func (b *WebSocketBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		b.removeLocked(c)
	}
}
