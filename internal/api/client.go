// Package api is the REST boundary client for the Quantum-N3BULA backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/quantum-n3bula/console/internal/model"
)

// TokenSource supplies the current bearer token, or "" when no session is
// held. Mutating endpoints are disabled without a token (read-only mode).
type TokenSource func() string

// ErrReadOnly is returned for mutating calls attempted without a session
// token; the request is refused locally, before touching the network.
var ErrReadOnly = errors.New("no session token: read-only mode")

// Error is a non-2xx REST response. Detail carries the server-provided
// human-readable failure reason when available.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// Client defines the REST operations consumed by the console. The interface
// allows mocking in tests.
type Client interface {
	Ping(ctx context.Context) error
	Status(ctx context.Context) (model.SystemStatus, error)
	Tasks(ctx context.Context) ([]model.Task, error)
	Task(ctx context.Context, id int64) (model.Task, error)
	Logs(ctx context.Context, q LogQuery) ([]model.LogEntry, error)
	Agents(ctx context.Context) ([]model.Agent, error)

	Execute(ctx context.Context, command string, agentID *int64) (model.Task, error)
	CreateTask(ctx context.Context, name, command string, agentID *int64) (model.Task, error)
	CreateAgent(ctx context.Context, name string, description *string) (model.Agent, error)
	DeleteAgent(ctx context.Context, id int64) error
	DeleteLog(ctx context.Context, id int64) error

	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, username, email, password string) (model.User, error)
	Me(ctx context.Context) (model.User, error)
}

// LogQuery filters GET /logs.
type LogQuery struct {
	Level  string
	Source string
	Limit  int
}

// HTTPClient is the real REST client.
type HTTPClient struct {
	baseURL    string
	token      TokenSource
	httpClient *http.Client
}

// ClientConfig holds settings for the REST client.
type ClientConfig struct {
	BaseURL string
	Token   TokenSource
	Timeout time.Duration
}

// NewClient creates a REST client for the given base URL.
func NewClient(cfg ClientConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	token := cfg.Token
	if token == nil {
		token = func() string { return "" }
	}
	return &HTTPClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Ping checks backend reachability via GET /ping.
func (c *HTTPClient) Ping(ctx context.Context) error {
	if err := c.get(ctx, "/ping", nil); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Status returns the singleton system status snapshot.
func (c *HTTPClient) Status(ctx context.Context) (model.SystemStatus, error) {
	var status model.SystemStatus
	if err := c.get(ctx, "/status", &status); err != nil {
		return model.SystemStatus{}, fmt.Errorf("fetch status: %w", err)
	}
	return status, nil
}

// Tasks returns the server's full task list.
func (c *HTTPClient) Tasks(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := c.get(ctx, "/tasks", &tasks); err != nil {
		return nil, fmt.Errorf("fetch tasks: %w", err)
	}
	return tasks, nil
}

// Task returns one task by ID.
func (c *HTTPClient) Task(ctx context.Context, id int64) (model.Task, error) {
	var task model.Task
	if err := c.get(ctx, "/tasks/"+strconv.FormatInt(id, 10), &task); err != nil {
		return model.Task{}, fmt.Errorf("fetch task %d: %w", id, err)
	}
	return task, nil
}

// Logs returns recent log entries, optionally filtered.
func (c *HTTPClient) Logs(ctx context.Context, q LogQuery) ([]model.LogEntry, error) {
	params := url.Values{}
	if q.Level != "" {
		params.Set("level", q.Level)
	}
	if q.Source != "" {
		params.Set("source", q.Source)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	path := "/logs"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var logs []model.LogEntry
	if err := c.get(ctx, path, &logs); err != nil {
		return nil, fmt.Errorf("fetch logs: %w", err)
	}
	return logs, nil
}

// Agents returns the server's full agent list.
func (c *HTTPClient) Agents(ctx context.Context) ([]model.Agent, error) {
	var agents []model.Agent
	if err := c.get(ctx, "/agents", &agents); err != nil {
		return nil, fmt.Errorf("fetch agents: %w", err)
	}
	return agents, nil
}

// Execute submits a command for execution and returns the created task.
func (c *HTTPClient) Execute(ctx context.Context, command string, agentID *int64) (model.Task, error) {
	body := map[string]any{"command": command}
	if agentID != nil {
		body["agent_id"] = *agentID
	}

	var task model.Task
	if err := c.post(ctx, "/execute", body, &task, true); err != nil {
		return model.Task{}, fmt.Errorf("execute command: %w", err)
	}
	return task, nil
}

// CreateTask creates a task without executing it.
func (c *HTTPClient) CreateTask(ctx context.Context, name, command string, agentID *int64) (model.Task, error) {
	body := map[string]any{"name": name, "command": command}
	if agentID != nil {
		body["agent_id"] = *agentID
	}

	var task model.Task
	if err := c.post(ctx, "/tasks", body, &task, true); err != nil {
		return model.Task{}, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// CreateAgent registers a new agent.
func (c *HTTPClient) CreateAgent(ctx context.Context, name string, description *string) (model.Agent, error) {
	body := map[string]any{"name": name}
	if description != nil {
		body["description"] = *description
	}

	var agent model.Agent
	if err := c.post(ctx, "/agents", body, &agent, true); err != nil {
		return model.Agent{}, fmt.Errorf("create agent: %w", err)
	}
	return agent, nil
}

// DeleteAgent removes an agent.
func (c *HTTPClient) DeleteAgent(ctx context.Context, id int64) error {
	if err := c.delete(ctx, "/agents/"+strconv.FormatInt(id, 10)); err != nil {
		return fmt.Errorf("delete agent %d: %w", id, err)
	}
	return nil
}

// DeleteLog removes a log entry (admin only on the server side).
func (c *HTTPClient) DeleteLog(ctx context.Context, id int64) error {
	if err := c.delete(ctx, "/logs/"+strconv.FormatInt(id, 10)); err != nil {
		return fmt.Errorf("delete log %d: %w", id, err)
	}
	return nil
}

// Login exchanges credentials for a bearer token. The endpoint speaks
// form-encoded OAuth2 password flow, not JSON.
func (c *HTTPClient) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var result struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := c.do(req, &result); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	return result.AccessToken, nil
}

// Register creates a new user account.
func (c *HTTPClient) Register(ctx context.Context, username, email, password string) (model.User, error) {
	body := map[string]any{"username": username, "email": email, "password": password}

	var user model.User
	if err := c.post(ctx, "/auth/register", body, &user, false); err != nil {
		return model.User{}, fmt.Errorf("register: %w", err)
	}
	return user, nil
}

// Me returns the authenticated user for the current token.
func (c *HTTPClient) Me(ctx context.Context) (model.User, error) {
	if c.token() == "" {
		return model.User{}, ErrReadOnly
	}
	var user model.User
	if err := c.get(ctx, "/auth/me", &user); err != nil {
		return model.User{}, fmt.Errorf("fetch current user: %w", err)
	}
	return user, nil
}

// get performs a GET request and unmarshals the response.
func (c *HTTPClient) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, result)
}

// post performs a JSON POST request. Authenticated endpoints are refused
// locally when no token is held.
func (c *HTTPClient) post(ctx context.Context, path string, body any, result any, authed bool) error {
	if authed && c.token() == "" {
		return ErrReadOnly
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, result)
}

// delete performs an authenticated DELETE request.
func (c *HTTPClient) delete(ctx context.Context, path string) error {
	if c.token() == "" {
		return ErrReadOnly
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// do executes a request with bearer auth and decodes the response. Non-2xx
// responses become *Error carrying the server's detail text.
func (c *HTTPClient) do(req *http.Request, result any) error {
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response from %s: %w", req.URL.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{StatusCode: resp.StatusCode, Detail: errorDetail(body)}
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("parse response from %s: %w", req.URL.Path, err)
		}
	}
	return nil
}

// errorDetail extracts the failure reason from an error body: the JSON
// "detail" field when present, else the raw text.
func errorDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(body))
}

// Ensure HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
