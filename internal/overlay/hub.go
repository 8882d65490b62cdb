// Package overlay streams emote batches to browser overlays over websockets.
package overlay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/john/emoterain/internal/emote"
	"github.com/john/emoterain/internal/metrics"
)

const writeTimeout = 5 * time.Second

// Options configures a Hub.
type Options struct {
	// MaxBatchesPerSecond caps how many batches are forwarded; 0 forwards all.
	MaxBatchesPerSecond float64
	Burst               int
	// ClientBuffer is how many frames may queue per client before frames are dropped.
	ClientBuffer int
}

type client struct {
	conn    *websocket.Conn
	channel string // empty receives every channel
	sendCh  chan []byte
	done    chan struct{}
	once    sync.Once
}

func (c *client) run() {
	for {
		select {
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.stop()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) stop() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Hub tracks overlay clients and fans batches out to them.
type Hub struct {
	limiter  *rate.Limiter
	buffer   int
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub(opts Options, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ClientBuffer <= 0 {
		opts.ClientBuffer = 16
	}

	h := &Hub{
		buffer:  opts.ClientBuffer,
		logger:  logger,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			// Overlays are loaded from OBS browser sources with arbitrary origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	if opts.MaxBatchesPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(opts.MaxBatchesPerSecond), burst)
	}
	return h
}

// ServeHTTP upgrades the request and streams batches until the client leaves.
// The optional "channel" query parameter restricts the stream to one channel.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("overlay upgrade failed", "error", err)
		return
	}

	c := &client{
		conn:    conn,
		channel: strings.ToLower(strings.TrimPrefix(r.URL.Query().Get("channel"), "#")),
		sendCh:  make(chan []byte, h.buffer),
		done:    make(chan struct{}),
	}
	h.register(c)
	go c.run()

	defer h.unregister(c)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.OverlayClients.Set(float64(n))
	h.logger.Info("overlay client connected", "channel", c.channel, "clients", n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.stop()
	metrics.OverlayClients.Set(float64(n))
	h.logger.Info("overlay client disconnected", "clients", n)
}

// Clients returns the number of connected overlays.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish is a dispatch listener. Frames for clients whose queue is full are dropped.
func (h *Hub) Publish(batch emote.Batch) error {
	if h.limiter != nil && !h.limiter.Allow() {
		metrics.OverlayDropped.WithLabelValues("rate_limited").Inc()
		return nil
	}

	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	channel := strings.ToLower(batch.Channel)
	for c := range h.clients {
		if c.channel != "" && c.channel != channel {
			continue
		}
		select {
		case c.sendCh <- data:
		default:
			metrics.OverlayDropped.WithLabelValues("slow_client").Inc()
		}
	}
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.stop()
	}
}
