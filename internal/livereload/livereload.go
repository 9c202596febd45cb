// Package livereload serves a directory over HTTP and pushes refresh
// notifications to connected browsers over a websocket.
package livereload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	socketPath = "/__livereload"
	scriptPath = "/__livereload.js"

	sendBuffer   = 16
	writeTimeout = 5 * time.Second
)

// Notifier is handed to tasks that must announce fresh output. Path is the
// output file relative to the served root.
type Notifier interface {
	Reload(path string)
}

type nop struct{}

func (nop) Reload(string) {}

// Nop is a Notifier that discards notifications.
var Nop Notifier = nop{}

// Message is the JSON frame exchanged with browser clients.
type Message struct {
	Command    string `json:"command"`
	Path       string `json:"path,omitempty"`
	LiveCSS    bool   `json:"liveCSS,omitempty"`
	ServerName string `json:"serverName,omitempty"`
}

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan Message
}

// Server serves Root as static content and implements Notifier by
// broadcasting reload messages to every connected client.
type Server struct {
	root     string
	addr     string
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewServer creates a server for root listening on addr once started.
func NewServer(root, addr string) *Server {
	return &Server{
		root: root,
		addr: addr,
		upgrader: websocket.Upgrader{
			// The dev server is reached from whatever host name the browser used.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the HTTP handler serving files, the client script and the
// reload socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(socketPath, s.handleSocket)
	mux.HandleFunc(scriptPath, handleScript)
	mux.Handle("/", s.staticHandler())
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
// and returns nil.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("serving", "url", "http://"+ln.Addr().String(), "root", s.root)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.closeClients()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		slog.Info("server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	}
}

// Reload broadcasts a reload for path. Stylesheets are swapped in place by
// the client; anything else reloads the page.
func (s *Server) Reload(p string) {
	p = strings.TrimPrefix(filepath.ToSlash(p), "/")
	msg := Message{
		Command: "reload",
		Path:    p,
		LiveCSS: strings.EqualFold(path.Ext(p), ".css"),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slog.Debug("broadcasting reload", "path", p, "clients", len(s.clients))
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			slog.Warn("dropping slow livereload client", "client", c.id)
			s.removeLocked(c)
		}
	}
}

// Clients returns the number of connected browsers.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("livereload upgrade failed", "error", err)
		return
	}

	c := &client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan Message, sendBuffer),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	c.send <- Message{Command: "hello", ServerName: "assetflow"}
	s.mu.Unlock()

	slog.Debug("livereload client connected", "client", c.id)

	go s.writePump(c)
	s.readPump(c)
}

// readPump discards client frames until the connection closes.
func (s *Server) readPump(c *client) {
	defer func() {
		s.remove(c)
		c.conn.Close()
		slog.Debug("livereload client disconnected", "client", c.id)
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			s.remove(c)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(c)
}

func (s *Server) removeLocked(c *client) {
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		s.removeLocked(c)
	}
}

// staticHandler serves files from root. HTML documents get the client
// script injected; everything else goes through http.FileServer.
func (s *Server) staticHandler() http.Handler {
	files := http.FileServer(http.Dir(s.root))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		name := filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		info, err := os.Stat(name)
		if err == nil && info.IsDir() {
			if !strings.HasSuffix(r.URL.Path, "/") {
				files.ServeHTTP(w, r) // redirects to the slash form
				return
			}
			name = filepath.Join(name, "index.html")
			info, err = os.Stat(name)
		}
		if err != nil || !isHTML(name) {
			files.ServeHTTP(w, r)
			return
		}

		data, err := os.ReadFile(name)
		if err != nil {
			http.Error(w, "reading file", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		http.ServeContent(w, r, filepath.Base(name), info.ModTime(), bytes.NewReader(InjectScript(data)))
	})
}

func isHTML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".html" || ext == ".htm"
}

// InjectScript inserts the client script tag before the closing body tag,
// or appends it when the document has none.
func InjectScript(doc []byte) []byte {
	tag := []byte(`<script src="` + scriptPath + `"></script>`)

	idx := bytes.LastIndex(bytes.ToLower(doc), []byte("</body>"))
	if idx < 0 {
		return append(append(doc[:len(doc):len(doc)], '\n'), tag...)
	}

	out := make([]byte, 0, len(doc)+len(tag))
	out = append(out, doc[:idx]...)
	out = append(out, tag...)
	out = append(out, doc[idx:]...)
	return out
}

func handleScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write([]byte(clientScript))
}

const clientScript = `(function () {
  var scheme = location.protocol === "https:" ? "wss://" : "ws://";

  function swapStylesheets(path) {
    var name = path.split("/").pop();
    var links = document.querySelectorAll('link[rel="stylesheet"]');
    var swapped = false;
    for (var i = 0; i < links.length; i++) {
      var href = links[i].getAttribute("href") || "";
      var bare = href.split("?")[0];
      if (bare.split("/").pop() !== name) continue;
      links[i].setAttribute("href", bare + "?livereload=" + Date.now());
      swapped = true;
    }
    return swapped;
  }

  function connect() {
    var ws = new WebSocket(scheme + location.host + "` + socketPath + `");
    ws.onmessage = function (ev) {
      var msg = JSON.parse(ev.data);
      if (msg.command !== "reload") return;
      if (msg.liveCSS && swapStylesheets(msg.path)) return;
      location.reload();
    };
    ws.onclose = function () {
      setTimeout(connect, 1000);
    };
  }

  connect();
})();
`
