package wsserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeDeadline bounds a single frame write. A client that cannot take a
// small JSON frame in this time is treated as dead.
const writeDeadline = 5 * time.Second

// readDeadline allows ~3 missed pings before the connection is dropped.
const readDeadline = 90 * time.Second

const pingInterval = 30 * time.Second

// maxReadMessageSize caps incoming frames; clients have nothing to send.
const maxReadMessageSize = 4 * 1024

// clientSendBuffer is the per-client backlog. A client that falls this far
// behind is disconnected instead of stalling the publisher.
const clientSendBuffer = 64

var wsUpgrader = websocket.Upgrader{
	// The feed is meant for local tools (status bars, scripts) that do not
	// send a browser Origin; binding to loopback is the access control.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 4 * 1024,
}

// HubOptions configures the feed server.
type HubOptions struct {
	// Addr is the listen address. Empty means "127.0.0.1:0".
	Addr string
}

// client is one connected subscriber. send is never closed; done signals
// the write loop to exit.
type client struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if err := c.conn.Close(); err != nil {
			slog.Debug("[DEBUG-WS] connection close", "error", err)
		}
	})
}

// Hub fans daemon events out to every connected client.
//
// Publish never blocks on the network: frames go to per-client buffered
// channels drained by one write goroutine per client, which is also the
// only goroutine that writes data frames on that connection.
type Hub struct {
	opts HubOptions

	mu      sync.RWMutex
	clients map[*client]struct{}

	listener net.Listener
	server   *http.Server
	url      string

	closeOnce sync.Once
}

// NewHub creates a hub. It does not listen until Start.
func NewHub(opts HubOptions) *Hub {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	return &Hub{
		opts:    opts,
		clients: make(map[*client]struct{}),
	}
}

// Handler returns the HTTP handler serving /ws.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	return mux
}

// Start listens on the configured address and serves in the background.
// Start must be called at most once.
func (h *Hub) Start(ctx context.Context) error {
	if h.server != nil {
		return errors.New("wsserver: already started")
	}
	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return fmt.Errorf("wsserver: listen: %w", err)
	}
	h.listener = ln
	h.url = fmt.Sprintf("ws://%s/ws", ln.Addr().String())

	h.server = &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if serveErr := h.server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("[DEBUG-WS] server error", "error", serveErr)
		}
	}()

	slog.Info("[DEBUG-WS] event feed listening", "url", h.url)
	return nil
}

// Stop shuts the server down and disconnects all clients. Idempotent.
func (h *Hub) Stop() error {
	var stopErr error
	h.closeOnce.Do(func() {
		if h.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.server.Shutdown(shutdownCtx); err != nil {
				stopErr = fmt.Errorf("wsserver: shutdown: %w", err)
			}
		}

		// Hijacked connections are not tracked by http.Server.Shutdown.
		h.mu.Lock()
		clients := h.clients
		h.clients = make(map[*client]struct{})
		h.mu.Unlock()
		for c := range clients {
			c.close()
		}
		slog.Info("[DEBUG-WS] event feed stopped")
	})
	return stopErr
}

// URL returns the feed URL, or "" before Start.
func (h *Hub) URL() string {
	return h.url
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues ev for every client. Clients whose backlog is full are
// disconnected.
func (h *Hub) Publish(ev Event) {
	frame, err := EncodeEvent(ev)
	if err != nil {
		slog.Debug("[DEBUG-WS] failed to encode event", "type", ev.Type, "error", err)
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Debug("[DEBUG-WS] client backlog full, disconnecting", "remote", c.conn.RemoteAddr())
		h.remove(c)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		slog.Debug("[DEBUG-WS] upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxReadMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		slog.Debug("[DEBUG-WS] SetReadDeadline failed on new connection", "error", err)
		conn.Close()
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	c := &client{
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	slog.Debug("[DEBUG-WS] client connected", "remote", r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards client frames until the connection fails.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			slog.Debug("[DEBUG-WS] client disconnected", "remote", c.conn.RemoteAddr(), "error", err)
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				h.remove(c)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				slog.Debug("[DEBUG-WS] write failed, disconnecting", "error", err)
				h.remove(c)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				h.remove(c)
				return
			}
		}
	}
}
