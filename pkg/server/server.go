// Package server exposes a broadcast hub to browsers.
//
// Routes:
//   - <topic>   WebSocket stream of change events (default /wsdevtools/filesync)
//   - /events   Server-Sent Events stream, ?topic= selects the topic
//   - /health   JSON health and hub counters
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/0xmhha/browsersync/pkg/broadcast"
	"github.com/0xmhha/browsersync/pkg/logger"
	"github.com/0xmhha/browsersync/pkg/watcher"
)

const (
	defaultWriteTimeout    = 10 * time.Second
	defaultPingInterval    = 30 * time.Second
	defaultShutdownTimeout = 5 * time.Second
	wsBufferSize           = 1024
)

// Config contains server configuration.
type Config struct {
	// Addr is the listen address, e.g. "127.0.0.1:3001".
	Addr string

	// Topic is the hub topic served on the WebSocket route. Its value is
	// also the route path. Default: watcher.DefaultTopic.
	Topic string

	// AllowedOrigins restricts WebSocket origins by full origin or host.
	// Empty allows every origin; "*" does the same explicitly.
	AllowedOrigins []string

	// WriteTimeout bounds each frame write. Default: 10s.
	WriteTimeout time.Duration

	// PingInterval is the keepalive period for both streams. Default: 30s.
	PingInterval time.Duration
}

// Server serves hub subscriptions over HTTP.
type Server struct {
	config Config
	hub    *broadcast.Hub
	logger logger.Logger
	mux    *http.ServeMux
}

// New creates a server for hub.
func New(cfg Config, hub *broadcast.Hub, log logger.Logger) *Server {
	if cfg.Topic == "" {
		cfg.Topic = watcher.DefaultTopic
	}
	if !strings.HasPrefix(cfg.Topic, "/") {
		cfg.Topic = "/" + cfg.Topic
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if log == nil {
		log = logger.Noop()
	}

	s := &Server{
		config: cfg,
		hub:    hub,
		logger: log.With("component", "server"),
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc(cfg.Topic, s.handleWebSocket)
	s.mux.HandleFunc("/events", s.handleSSE)
	s.mux.HandleFunc("/health", s.handleHealth)

	return s
}

// Handler returns the HTTP handler with every route registered.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("server listening",
		"addr", ln.Addr().String(),
		"websocket", s.config.Topic)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	// Streams never end on their own; closing the hub ends them.
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  wsBufferSize,
		WriteBufferSize: wsBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return isOriginAllowed(r, s.config.AllowedOrigins)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed",
			"remote_addr", r.RemoteAddr,
			"error", err)
		return
	}
	defer conn.Close()

	sub, err := s.hub.Subscribe(s.config.Topic)
	if err != nil {
		s.closeWS(conn, websocket.CloseTryAgainLater, err.Error())
		return
	}
	defer sub.Close()

	s.logger.Debug("websocket client connected", "remote_addr", r.RemoteAddr)

	// Reads only detect the peer going away; clients send nothing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(s.config.PingInterval)
	defer ping.Stop()

	for {
		select {
		case msg, ok := <-sub.C():
			if !ok {
				s.closeWS(conn, websocket.CloseGoingAway, "server shutting down")
				return
			}
			data, err := encodeEvent(msg.Event)
			if err != nil {
				continue
			}
			if err := conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(s.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-gone:
			s.logger.Debug("websocket client disconnected", "remote_addr", r.RemoteAddr)
			return
		}
	}
}

func (s *Server) closeWS(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(s.config.WriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline) // nolint:errcheck
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = s.config.Topic
	}

	sub, err := s.hub.Subscribe(topic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ping := time.NewTicker(s.config.PingInterval)
	defer ping.Stop()

	for {
		select {
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			data, err := encodeEvent(msg.Event)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

type healthResponse struct {
	Status string `json:"status"`
	broadcast.Stats
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(healthResponse{
		Status: "ok",
		Stats:  s.hub.Stats(),
	}); err != nil {
		s.logger.Debug("failed to write health response", "error", err)
	}
}

// encodeEvent renders the payload without HTML escaping or a trailing
// newline, so filenames reach clients byte for byte.
func encodeEvent(ev watcher.ChangeEvent) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(ev); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func isOriginAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(allowed) == 0 {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := parsed.Hostname()

	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) || strings.EqualFold(a, host) {
			return true
		}
	}
	return false
}
