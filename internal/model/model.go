// Package model defines the entity shapes mirrored from the Quantum-N3BULA
// backend. Field names and JSON tags follow the server's REST responses.
package model

import "time"

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether no further lifecycle progression is expected.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	}
	return false
}

// Task mirrors a server-side task. AgentID is a weak reference: it is used
// for lookups only, the task does not own the agent.
type Task struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Command     string     `json:"command"`
	Status      TaskStatus `json:"status"`
	Result      *string    `json:"result"`
	Error       *string    `json:"error"`
	AgentID     *int64     `json:"agent_id"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// TaskPatch carries a partial field set for a task. Nil fields are left
// untouched by the patch; a delta must only ever add or replace the fields
// it carries.
type TaskPatch struct {
	Status      *TaskStatus
	Result      *string
	Error       *string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// LogLevel is the severity of a log entry.
type LogLevel string

const (
	LevelDebug    LogLevel = "debug"
	LevelInfo     LogLevel = "info"
	LevelWarning  LogLevel = "warning"
	LevelError    LogLevel = "error"
	LevelCritical LogLevel = "critical"
)

// LogEntry mirrors a server-side log record. TaskID and AgentID are weak
// references to the originating task/agent, if any.
type LogEntry struct {
	ID        int64     `json:"id"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Source    *string   `json:"source"`
	TaskID    *int64    `json:"task_id"`
	AgentID   *int64    `json:"agent_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Agent mirrors a server-side agent. Status is a free-form server-defined
// label (active, inactive, busy, error, ...).
type Agent struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Description   *string    `json:"description"`
	Status        string     `json:"status"`
	IsActive      bool       `json:"is_active"`
	LastHeartbeat *time.Time `json:"last_heartbeat"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// SystemStatus is the singleton health snapshot from GET /status. It is
// fully replaced on every fetch, never partially merged.
type SystemStatus struct {
	Status            string  `json:"status"`
	Version           string  `json:"version,omitempty"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
	DatabaseConnected bool    `json:"database_connected"`
	ActiveAgents      int     `json:"active_agents"`
	PendingTasks      int     `json:"pending_tasks"`
	TotalLogs         int     `json:"total_logs"`
}

// User mirrors the authenticated user from /auth/me.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
}
