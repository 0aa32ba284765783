// Package livereload notifies connected browsers over websocket when
// build outputs change. It speaks the LiveReload protocol (version 7).
package livereload

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pboueri/assetc/src/logger"
)

const (
	// DefaultPort is the port LiveReload browser extensions connect to.
	DefaultPort = 35729

	protocolV7 = "http://livereload.com/protocols/official-7"
	serverName = "assetc"

	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type inbound struct {
	Command   string   `json:"command"`
	Protocols []string `json:"protocols,omitempty"`
	URL       string   `json:"url,omitempty"`
}

type outbound struct {
	Command    string   `json:"command"`
	Protocols  []string `json:"protocols,omitempty"`
	ServerName string   `json:"serverName,omitempty"`
	Path       string   `json:"path,omitempty"`
	LiveCSS    bool     `json:"liveCSS,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan outbound
}

// Server accepts LiveReload connections and broadcasts reload commands.
type Server struct {
	addr string

	mu       sync.Mutex
	clients  map[*client]struct{}
	listener net.Listener
	http     *http.Server
}

// New creates a server for addr (host:port). Nothing listens until Start.
func New(addr string) *Server {
	return &Server{
		addr:    addr,
		clients: make(map[*client]struct{}),
	}
}

// NewForPort listens on all interfaces at port, DefaultPort when 0.
func NewForPort(port int) *Server {
	if port == 0 {
		port = DefaultPort
	}
	return New(fmt.Sprintf(":%d", port))
}

// Start begins listening in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start livereload on %s: %w", s.addr, err)
	}
	srv := &http.Server{Handler: s, ReadHeaderTimeout: wsWriteWait}
	s.listener = ln
	s.http = srv
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("livereload server stopped: %v", err)
		}
	}()
	logger.Info("livereload listening on %s", logger.Strong(ln.Addr().String()))
	return nil
}

// Addr returns the listening address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Clients returns the number of connected browsers.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Refresh tells every browser to reload. An empty path reloads the page; a
// stylesheet path is swapped in place.
func (s *Server) Refresh(file string) {
	msg := outbound{Command: "reload", Path: "/"}
	if file != "" {
		msg.Path = file
		msg.LiveCSS = strings.EqualFold(path.Ext(file), ".css")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	logger.Debug("livereload: %s to %d clients", msg.Path, len(s.clients))
	for c := range s.clients {
		push(c.send, msg)
	}
}

// ServeHTTP upgrades a browser connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	c := &client{conn: conn, send: make(chan outbound, 16)}
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-c.send:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	s.add(c)
	defer s.remove(c)

	for {
		var in inbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		switch in.Command {
		case "hello":
			push(c.send, outbound{
				Command:    "hello",
				Protocols:  []string{protocolV7},
				ServerName: serverName,
			})
		case "info":
			logger.Debug("livereload client: %s", in.URL)
		}
	}
}

func (s *Server) add(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
}

// Close stops listening and disconnects every browser.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.http
	s.http = nil
	s.listener = nil
	for c := range s.clients {
		c.conn.Close()
	}
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return srv.Close()
	}
	return nil
}

// push drops the oldest queued message when the client falls behind.
func push(ch chan outbound, out outbound) {
	select {
	case ch <- out:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- out:
	default:
	}
}
