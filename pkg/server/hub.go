package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/territory/pkg/observability"
	"github.com/matzehuels/territory/pkg/store"
)

const (
	clientBuffer = 64
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

// Hub fans notification batches out to websocket clients. It is a
// [store.Sink]: register it with the store and mount [Hub.ServeHTTP].
//
// Each client has a bounded send queue. A client that falls behind is
// disconnected rather than allowed to delay ingestion.
type Hub struct {
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

type client struct {
	conn        *websocket.Conn
	send        chan []byte
	visibleOnly bool
	once        sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates a hub. A nil logger discards output.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 16384,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Notify sends batch to every client as one JSON [store.Batch] message.
// Clients connected with ?visible=true receive only visible notifications
// and nothing when none remain.
func (h *Hub) Notify(ctx context.Context, batch []store.Notification) {
	if len(batch) == 0 {
		return
	}
	all, err := json.Marshal(store.NewBatch(batch))
	if err != nil {
		h.logger.Error("encode batch", "err", err)
		return
	}
	var visible []byte
	if v := store.Visible(batch); len(v) > 0 {
		visible, err = json.Marshal(store.NewBatch(v))
		if err != nil {
			h.logger.Error("encode batch", "err", err)
			return
		}
	}

	h.mu.Lock()
	var slow []*client
	for c := range h.clients {
		msg := all
		if c.visibleOnly {
			msg = visible
		}
		if msg == nil {
			continue
		}
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(h.clients, c)
		c.close()
	}
	n := len(h.clients)
	h.mu.Unlock()

	if len(slow) > 0 {
		h.logger.Warn("dropped slow websocket clients", "count", len(slow))
		observability.HTTP().OnStreamClients(ctx, n)
	}
}

// ServeHTTP upgrades the request and streams batches until the client goes
// away or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "err", err)
		return
	}
	c := &client{
		conn:        conn,
		send:        make(chan []byte, clientBuffer),
		visibleOnly: r.URL.Query().Get("visible") == "true",
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.wg.Add(1)
	h.mu.Unlock()

	observability.HTTP().OnStreamClients(r.Context(), n)
	h.logger.Debug("websocket client connected", "remote", r.RemoteAddr, "visible_only", c.visibleOnly)

	go h.readLoop(c)
	h.writeLoop(c)
}

// readLoop discards client messages and detects disconnects.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

func (h *Hub) writeLoop(c *client) {
	defer h.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		h.remove(c)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.close()
	if ok {
		observability.HTTP().OnStreamClients(context.Background(), n)
	}
}

// Close disconnects every client and waits for their writers to finish.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
	h.wg.Wait()
	observability.HTTP().OnStreamClients(context.Background(), 0)
}
