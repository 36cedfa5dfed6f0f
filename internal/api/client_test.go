package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantum-n3bula/console/internal/model"
)

func newTestClient(t *testing.T, token string, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		BaseURL: srv.URL,
		Token:   func() string { return token },
	})
}

func TestTasksSendsBearerHeader(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, "secret-token", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/tasks", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]model.Task{{ID: 1, Name: "a"}})
	})

	tasks, err := c.Tasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, int64(1), tasks[0].ID)
	assert.Equal(t, "Bearer secret-token", gotAuth)
}

func TestTasksOmitsAuthorizationWithoutToken(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]model.Task{})
	})

	_, err := c.Tasks(context.Background())
	require.NoError(t, err)
}

func TestLogsQueryParameters(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "error", q.Get("level"))
		assert.Equal(t, "agent", q.Get("source"))
		assert.Equal(t, "20", q.Get("limit"))
		_ = json.NewEncoder(w).Encode([]model.LogEntry{})
	})

	_, err := c.Logs(context.Background(), LogQuery{Level: "error", Source: "agent", Limit: 20})
	require.NoError(t, err)
}

func TestErrorDetailFromJSONBody(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Task not found"}`))
	})

	_, err := c.Task(context.Background(), 42)
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Task not found", apiErr.Detail)
	assert.Contains(t, err.Error(), "Task not found")
}

func TestErrorDetailFallsBackToRawBody(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable\n"))
	})

	err := c.Ping(context.Background())
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream unavailable", apiErr.Detail)
}

func TestErrorWithoutDetailUsesStatusCode(t *testing.T) {
	e := &Error{StatusCode: http.StatusInternalServerError}
	assert.Equal(t, "request failed with status 500", e.Error())
}

func TestMutatingCallsRefusedWithoutToken(t *testing.T) {
	c := newTestClient(t, "", func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("request must not reach the network in read-only mode")
	})

	_, err := c.Execute(context.Background(), "ls", nil)
	assert.True(t, errors.Is(err, ErrReadOnly))

	_, err = c.CreateAgent(context.Background(), "alpha", nil)
	assert.True(t, errors.Is(err, ErrReadOnly))

	err = c.DeleteAgent(context.Background(), 1)
	assert.True(t, errors.Is(err, ErrReadOnly))

	err = c.DeleteLog(context.Background(), 1)
	assert.True(t, errors.Is(err, ErrReadOnly))

	_, err = c.Me(context.Background())
	assert.True(t, errors.Is(err, ErrReadOnly))
}

func TestExecutePostsCommand(t *testing.T) {
	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/execute", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "uptime", body["command"])
		assert.Equal(t, float64(3), body["agent_id"])

		_ = json.NewEncoder(w).Encode(model.Task{ID: 10, Command: "uptime", Status: model.TaskRunning})
	})

	agentID := int64(3)
	task, err := c.Execute(context.Background(), "uptime", &agentID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), task.ID)
	assert.Equal(t, model.TaskRunning, task.Status)
}

func TestCreateTaskPostsNameAndCommand(t *testing.T) {
	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tasks", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "nightly-backup", body["name"])
		assert.Equal(t, "pg_dump nebula", body["command"])
		_, hasAgent := body["agent_id"]
		assert.False(t, hasAgent, "omitted agent must not be sent")

		_ = json.NewEncoder(w).Encode(model.Task{ID: 21, Name: "nightly-backup", Status: model.TaskPending})
	})

	task, err := c.CreateTask(context.Background(), "nightly-backup", "pg_dump nebula", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(21), task.ID)
	assert.Equal(t, model.TaskPending, task.Status)
}

func TestRegisterCreatesUserWithoutToken(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/register", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "newuser", body["username"])
		assert.Equal(t, "new@example.com", body["email"])
		assert.Equal(t, "hunter2", body["password"])

		_ = json.NewEncoder(w).Encode(model.User{ID: 3, Username: "newuser", Email: "new@example.com"})
	})

	user, err := c.Register(context.Background(), "newuser", "new@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, int64(3), user.ID)
	assert.Equal(t, "newuser", user.Username)
}

func TestMeReturnsAuthenticatedUser(t *testing.T) {
	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/me", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(model.User{ID: 1, Username: "admin", IsAdmin: true})
	})

	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)
	assert.True(t, user.IsAdmin)
}

func TestLoginIsFormEncoded(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/token", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "admin", r.PostFormValue("username"))
		assert.Equal(t, "hunter2", r.PostFormValue("password"))

		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok123", "token_type": "bearer"})
	})

	token, err := c.Login(context.Background(), "admin", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "tok123", token)
}

func TestLoginRejectedCredentials(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Incorrect username or password"}`))
	})

	_, err := c.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Incorrect username or password")
}

func TestStatusDecodesCounters(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy","uptime_seconds":12.5,"database_connected":true,"active_agents":2,"pending_tasks":4,"total_logs":77}`))
	})

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", status.Status)
	assert.InDelta(t, 12.5, status.UptimeSeconds, 0.001)
	assert.True(t, status.DatabaseConnected)
	assert.Equal(t, 2, status.ActiveAgents)
	assert.Equal(t, 4, status.PendingTasks)
	assert.Equal(t, 77, status.TotalLogs)
}
