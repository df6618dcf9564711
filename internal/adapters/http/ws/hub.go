// Package ws streams published animation frames to browsers over websockets.
package ws

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/pkg/logger"
	"github.com/okian/epidash/pkg/metrics"
)

// Message types.
const (
	MessageTypeFrame    = "frame"
	MessageTypeSnapshot = "snapshot"
	MessageTypePing     = "ping"
	MessageTypePong     = "pong"
)

// ErrClosed is returned by Broadcast after Close.
var ErrClosed = errors.New("websocket hub closed")

// Message is the envelope of every websocket message.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Option configures a Hub.
type Option func(*Hub)

// WithSnapshot sends the value returned by fn to every new client.
func WithSnapshot(fn func() any) Option {
	return func(h *Hub) { h.snapshot = fn }
}

// WithLogger sets the hub logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// Hub tracks connected clients and fans messages out to them. A client
// whose buffer is full is disconnected rather than slowing the sender.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	closed   bool
	snapshot func() any
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// NewHub creates a Hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[*Client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  4096,
			HandshakeTimeout: 10 * time.Second,
		},
		logger: logger.Get().Named("ws-hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register attaches the websocket endpoint to mux at /ws.
func (h *Hub) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("/ws", h)
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		metrics.RecordErrorByComponent("websocket", "upgrade")
		return
	}
	c := newClient(h, conn)
	// The snapshot is queued before registration so it precedes any frame.
	if h.snapshot != nil {
		if b, err := encode(MessageTypeSnapshot, h.snapshot()); err == nil {
			c.send <- b
		}
	}
	if !h.register(c) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}
	c.start()
}

// OnFrame broadcasts a published frame. It never fails because of slow or
// missing clients.
func (h *Hub) OnFrame(_ context.Context, frame model.AnimationFrame) error {
	err := h.Broadcast(MessageTypeFrame, frame)
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// Broadcast encodes one message and queues it for every client.
func (h *Hub) Broadcast(msgType string, data any) error {
	b, err := encode(msgType, data)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}

	var slow []*Client
	for _, c := range h.sortedLocked() {
		select {
		case c.send <- b:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		h.dropLocked(c)
		h.logger.Warn(context.Background(), "dropped slow websocket client",
			logger.Int64("client", int64(c.id)),
		)
	}
	return nil
}

// reply queues b for c alone. It is a no-op once c was dropped.
func (h *Hub) reply(c *Client, b []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, c := range h.sortedLocked() {
		h.dropLocked(c)
	}
	h.logger.Info(context.Background(), "websocket hub closed")
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	metrics.UpdateWebsocketClients(len(h.clients))
	h.logger.Debug(context.Background(), "websocket client connected",
		logger.Int64("client", int64(c.id)),
		logger.Int("total_clients", len(h.clients)),
	)
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.dropLocked(c)
		h.logger.Debug(context.Background(), "websocket client disconnected",
			logger.Int64("client", int64(c.id)),
			logger.Int("total_clients", len(h.clients)),
		)
	}
}

// dropLocked closes the client's send channel; its writePump then closes
// the connection.
func (h *Hub) dropLocked(c *Client) {
	delete(h.clients, c)
	close(c.send)
	metrics.UpdateWebsocketClients(len(h.clients))
}

// sortedLocked returns the clients in connection order.
func (h *Hub) sortedLocked() []*Client {
	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func encode(msgType string, data any) ([]byte, error) {
	return json.Marshal(Message{Type: msgType, Data: data})
}
