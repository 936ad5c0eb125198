// Package stream fans completed verdicts out to websocket subscribers.
package stream

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"TokenScope/internal/domain/models"
	"TokenScope/internal/domain/repository"
	"TokenScope/pkg/logger"
)

type client struct {
	conn  *websocket.Conn
	token string
	send  chan []byte
	once  sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub tracks websocket subscribers. A slow subscriber whose buffer is full
// misses verdicts rather than stalling the broadcaster.
type Hub struct {
	mu           sync.RWMutex
	clients      map[*client]struct{}
	upgrader     websocket.Upgrader
	bufferSize   int
	pingInterval time.Duration
	writeTimeout time.Duration
	log          *logger.Logger
	dropped      uint64
}

// NewHub creates a hub that accepts websocket upgrades from the given browser
// origins. "*" accepts any origin; requests without an Origin header come from
// non-browser clients and are always accepted.
func NewHub(bufferSize int, pingInterval, writeTimeout time.Duration, origins []string, log *logger.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = 32
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(origins),
		},
		bufferSize:   bufferSize,
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		log:          log,
	}
}

func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[strings.TrimSuffix(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

// Broadcast sends r to every subscriber whose token filter matches.
func (h *Hub) Broadcast(r *models.AnalysisResult) {
	if r == nil {
		return
	}
	b, err := json.Marshal(r)
	if err != nil {
		h.log.Error("stream marshal verdict", logger.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.token != "" && c.token != r.TokenID {
			continue
		}
		select {
		case c.send <- b:
		default:
			atomic.AddUint64(&h.dropped, 1)
		}
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many deliveries were skipped for full buffers.
func (h *Hub) Dropped() uint64 { return atomic.LoadUint64(&h.dropped) }

// ServeWS upgrades the request and streams verdicts for token, or for every
// token when token is empty, until the peer disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, token string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{conn: conn, token: token, send: make(chan []byte, h.bufferSize)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Info("stream subscriber connected", logger.String("token", token), logger.String("remote", r.RemoteAddr))

	go h.writeLoop(c)
	h.readLoop(c)
	return nil
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// readLoop only watches for the peer closing; inbound frames are ignored.
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
		h.log.Info("stream subscriber disconnected", logger.String("token", c.token))
	}()
	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case b, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

var _ repository.VerdictBroadcaster = (*Hub)(nil)
