// Package nebulatest provides an in-process fake of the Quantum-N3BULA
// backend for integration tests: the REST read endpoints, a token-gated
// execute endpoint, and a push-stream socket with broadcast support.
package nebulatest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/quantum-n3bula/console/internal/model"
)

const clientSendBuffer = 64

// Server is a fake backend. Fixture setters and Broadcast may be called
// concurrently with live connections.
type Server struct {
	httpServer *httptest.Server
	upgrader   websocket.Upgrader

	mu      sync.RWMutex
	status  model.SystemStatus
	tasks   []model.Task
	logs    []model.LogEntry
	agents  []model.Agent
	token   string
	failAll bool

	clientsMu sync.Mutex
	clients   map[string]*client

	inbound chan json.RawMessage
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
}

// NewServer starts a fake backend. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		status:  model.SystemStatus{Status: "healthy", DatabaseConnected: true},
		clients: make(map[string]*client),
		inbound: make(chan json.RawMessage, 64),
	}

	r := chi.NewRouter()
	r.Get("/ping", s.handlePing)
	r.Get("/status", s.handleStatus)
	r.Get("/tasks", s.handleTasks)
	r.Get("/logs", s.handleLogs)
	r.Get("/agents", s.handleAgents)
	r.Post("/execute", s.handleExecute)
	r.Post("/auth/token", s.handleLogin)
	r.Get("/ws", s.handleWS)

	s.httpServer = httptest.NewServer(r)
	return s
}

// URL returns the REST base URL.
func (s *Server) URL() string {
	return s.httpServer.URL
}

// WSURL returns the push-stream endpoint URL.
func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.httpServer.URL, "http") + "/ws"
}

// Close shuts the server down and disconnects all stream clients.
func (s *Server) Close() {
	s.DisconnectClients()
	s.httpServer.Close()
}

// ═══════════════════════════════════════════════════════════════════════════
// FIXTURES
// ═══════════════════════════════════════════════════════════════════════════

// SetStatus installs the /status fixture.
func (s *Server) SetStatus(status model.SystemStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// SetTasks installs the /tasks fixture.
func (s *Server) SetTasks(tasks []model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = tasks
}

// SetLogs installs the /logs fixture.
func (s *Server) SetLogs(logs []model.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = logs
}

// SetAgents installs the /agents fixture.
func (s *Server) SetAgents(agents []model.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents = agents
}

// SetToken sets the bearer token /execute accepts. Empty disables auth.
func (s *Server) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// FailAll makes every REST endpoint answer 500 until called with false.
func (s *Server) FailAll(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAll = fail
}

// ═══════════════════════════════════════════════════════════════════════════
// REST HANDLERS
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) failing(w http.ResponseWriter) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.failAll {
		return false
	}
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": "simulated backend failure"})
	return true
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	if s.failing(w) {
		return
	}
	writeJSON(w, map[string]any{"message": "pong", "timestamp": time.Now().UTC()})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.failing(w) {
		return
	}
	s.mu.RLock()
	status := s.status
	s.mu.RUnlock()
	writeJSON(w, status)
}

func (s *Server) handleTasks(w http.ResponseWriter, _ *http.Request) {
	if s.failing(w) {
		return
	}
	s.mu.RLock()
	tasks := append([]model.Task(nil), s.tasks...)
	s.mu.RUnlock()
	writeJSON(w, tasks)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.failing(w) {
		return
	}
	s.mu.RLock()
	logs := append([]model.LogEntry(nil), s.logs...)
	s.mu.RUnlock()

	if level := r.URL.Query().Get("level"); level != "" {
		filtered := logs[:0]
		for _, l := range logs {
			if string(l.Level) == level {
				filtered = append(filtered, l)
			}
		}
		logs = filtered
	}
	writeJSON(w, logs)
}

func (s *Server) handleAgents(w http.ResponseWriter, _ *http.Request) {
	if s.failing(w) {
		return
	}
	s.mu.RLock()
	agents := append([]model.Agent(nil), s.agents...)
	s.mu.RUnlock()
	writeJSON(w, agents)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if s.failing(w) {
		return
	}
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Could not validate credentials"})
		return
	}

	var body struct {
		Command string `json:"command"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	now := time.Now().UTC()
	task := model.Task{
		ID:        now.UnixNano(),
		Name:      "task-" + now.Format("20060102150405"),
		Command:   body.Command,
		Status:    model.TaskRunning,
		CreatedAt: now,
		StartedAt: &now,
	}
	writeJSON(w, task)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.failing(w) {
		return
	}
	if err := r.ParseForm(); err != nil || r.PostFormValue("username") == "" {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Incorrect username or password"})
		return
	}
	writeJSON(w, map[string]string{"access_token": "test-token", "token_type": "bearer"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// ═══════════════════════════════════════════════════════════════════════════
// PUSH STREAM
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}

	s.clientsMu.Lock()
	s.clients[c.id] = c
	s.clientsMu.Unlock()

	go c.writePump()
	go s.readPump(c)
}

func (s *Server) readPump(c *client) {
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c.id)
		s.clientsMu.Unlock()
		c.close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case s.inbound <- append(json.RawMessage(nil), data...):
		default:
		}
	}
}

func (c *client) writePump() {
	defer func() { _ = c.conn.Close() }()
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Broadcast marshals payload and pushes it to every connected client. Raw
// string payloads are sent verbatim, which lets tests push malformed frames.
func (s *Server) Broadcast(payload any) {
	var data []byte
	switch p := payload.(type) {
	case string:
		data = []byte(p)
	case []byte:
		data = p
	default:
		data, _ = json.Marshal(p)
	}

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for _, c := range s.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// DisconnectClients force-closes every stream connection, simulating a
// server-side drop.
func (s *Server) DisconnectClients() {
	s.clientsMu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clients = make(map[string]*client)
	s.clientsMu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// ClientCount returns the number of connected stream clients.
func (s *Server) ClientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

// Inbound returns frames received from clients, for asserting on Send.
func (s *Server) Inbound() <-chan json.RawMessage {
	return s.inbound
}

// WaitForClient blocks until at least one stream client is connected or the
// timeout elapses; it reports whether a client arrived.
func (s *Server) WaitForClient(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.ClientCount() > 0 {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
