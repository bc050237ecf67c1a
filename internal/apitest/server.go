// Package apitest provides a scriptable fake of the bot control API and its
// push channel for use in tests.
package apitest

import (
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Endpoints served by the fake under {basePath}:
//   POST /start /stop /post /engage   -> scripted command result
//   GET  /stats                       -> scripted stats snapshot
// and the push channel on GET /ws (websocket, JSON {"event","data"} frames).

// Response is a scripted reply. Raw, when set, is written verbatim instead of Body.
type Response struct {
	Status int
	Body   any
	Raw    string
	// Delay holds the reply back, to keep a command in flight.
	Delay time.Duration
}

// Server is a fake bot API backed by gin and an httptest server.
type Server struct {
	*httptest.Server

	basePath string

	mu        sync.Mutex
	responses map[string]Response
	calls     map[string]int

	connMu  sync.Mutex
	conns   map[*websocket.Conn]struct{}
	connCnd *sync.Cond
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// New starts a fake bot API with default successful responses. It is closed
// when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	return start(t, httptest.NewServer)
}

// NewTLS is New served over HTTPS with a self-signed certificate; see CACertFile.
func NewTLS(t testing.TB) *Server {
	t.Helper()
	return start(t, httptest.NewTLSServer)
}

func start(t testing.TB, serve func(http.Handler) *httptest.Server) *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		basePath:  "/api",
		responses: defaultResponses(),
		calls:     make(map[string]int),
		conns:     make(map[*websocket.Conn]struct{}),
	}
	s.connCnd = sync.NewCond(&s.connMu)

	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(s.basePath)
	for _, cmd := range []string{"/start", "/stop", "/post", "/engage"} {
		group.POST(cmd, s.handleScripted)
	}
	group.GET("/stats", s.handleScripted)
	g.GET("/ws", s.handlePush)

	s.Server = serve(g)
	t.Cleanup(func() {
		s.DropClients()
		s.Close()
	})
	return s
}

func defaultResponses() map[string]Response {
	return map[string]Response{
		"/start":  {Status: http.StatusOK, Body: gin.H{"success": true, "message": "Bot started successfully"}},
		"/stop":   {Status: http.StatusOK, Body: gin.H{"success": true, "message": "Bot stopped successfully"}},
		"/post":   {Status: http.StatusOK, Body: gin.H{"success": true, "message": "Post created"}},
		"/engage": {Status: http.StatusOK, Body: gin.H{"success": true, "message": "Engaged with community"}},
		"/stats": {Status: http.StatusOK, Body: gin.H{
			"status":            "stopped",
			"last_post":         nil,
			"posts_today":       0,
			"engagements_today": 0,
		}},
	}
}

// APIURL is the base URL clients should be configured with.
func (s *Server) APIURL() string { return s.URL + s.basePath }

// PushURL is the websocket URL of the push channel.
func (s *Server) PushURL() string { return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws" }

// CACertFile writes the server certificate as PEM into a temp dir and returns
// its path, for use as a client CA file. Only meaningful for NewTLS servers.
func (s *Server) CACertFile(t testing.TB) string {
	t.Helper()
	cert := s.Certificate()
	if cert == nil {
		t.Fatalf("apitest: server has no TLS certificate")
	}
	path := filepath.Join(t.TempDir(), "ca.pem")
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("apitest: write CA: %v", err)
	}
	return path
}

// Handle scripts the reply for an endpoint path such as "/start" or "/stats".
func (s *Server) Handle(path string, r Response) {
	if r.Status == 0 {
		r.Status = http.StatusOK
	}
	s.mu.Lock()
	s.responses[path] = r
	s.mu.Unlock()
}

// Calls returns how many times an endpoint path was hit.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

func (s *Server) handleScripted(c *gin.Context) {
	path := strings.TrimPrefix(c.FullPath(), s.basePath)
	s.mu.Lock()
	s.calls[path]++
	r, ok := s.responses[path]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no response scripted"})
		return
	}
	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-c.Request.Context().Done():
			return
		}
	}
	if r.Raw != "" {
		c.Data(r.Status, "application/json", []byte(r.Raw))
		return
	}
	c.JSON(r.Status, r.Body)
}

func (s *Server) handlePush(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	s.connMu.Lock()
	s.conns[conn] = struct{}{}
	s.connCnd.Broadcast()
	s.connMu.Unlock()

	// drain until the client goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.connMu.Lock()
	delete(s.conns, conn)
	s.connCnd.Broadcast()
	s.connMu.Unlock()
	_ = conn.Close()
}

// Emit broadcasts a push event to every connected client.
func (s *Server) Emit(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}{Event: event, Data: payload})
	if err != nil {
		return err
	}
	return s.EmitRaw(string(frame))
}

// EmitRaw broadcasts a text frame verbatim.
func (s *Server) EmitRaw(frame string) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	for conn := range s.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			return err
		}
	}
	return nil
}

// Clients returns the number of connected push clients.
func (s *Server) Clients() int {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return len(s.conns)
}

// WaitForClients blocks until exactly n push clients are connected or the timeout passes.
func (s *Server) WaitForClients(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		s.connMu.Lock()
		s.connCnd.Broadcast()
		s.connMu.Unlock()
	})
	defer timer.Stop()

	s.connMu.Lock()
	defer s.connMu.Unlock()
	for len(s.conns) != n {
		if !time.Now().Before(deadline) {
			return false
		}
		s.connCnd.Wait()
	}
	return true
}

// DropClients closes every push connection from the server side.
func (s *Server) DropClients() {
	s.connMu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.connMu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}
}
