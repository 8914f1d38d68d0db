package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kapu/kokoro-diary-go/internal/domain"
	"github.com/kapu/kokoro-diary-go/internal/pipeline"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// StateSource streams lifecycle states: the current one first, then every transition.
type StateSource interface {
	Subscribe(fn pipeline.Observer) func()
}

// Hub pushes lifecycle states to WebSocket clients. Clients are read-only; anything they
// send is discarded.
type Hub struct {
	source   StateSource
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *wsClient) stop() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func NewHub(source StateSource, logger *zap.Logger) *Hub {
	return &Hub{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	h.mu.Unlock()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	if !h.add(client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	unsubscribe := h.source.Subscribe(func(state domain.RequestState) {
		h.enqueue(client, state)
	})

	h.logger.Info("WebSocket client connected", zap.String("remote", r.RemoteAddr))

	go h.writePump(client)
	h.readPump(client)

	unsubscribe()
	h.remove(client)
	h.logger.Info("WebSocket client disconnected", zap.String("remote", r.RemoteAddr))
}

// enqueue runs under the lifecycle lock and must not block. A client whose buffer is full is
// dropped.
func (h *Hub) enqueue(client *wsClient, state domain.RequestState) {
	payload, err := json.Marshal(state)
	if err != nil {
		h.logger.Error("Failed to encode state", zap.Error(err))
		return
	}

	select {
	case <-client.done:
	case client.send <- payload:
	default:
		h.logger.Warn("WebSocket client too slow, dropping")
		client.stop()
	}
}

func (h *Hub) readPump(client *wsClient) {
	defer client.stop()

	client.conn.SetReadLimit(maxMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(client *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()

	for {
		select {
		case <-client.done:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = client.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case payload := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Debug("WebSocket write failed", zap.Error(err))
				client.stop()
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.stop()
				return
			}
		}
	}
}

// add registers a client unless Close already ran. A refused client is stopped.
func (h *Hub) add(client *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		client.stop()
		return false
	}
	h.clients[client] = struct{}{}
	return true
}

func (h *Hub) remove(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for client := range h.clients {
		client.stop()
	}
}
