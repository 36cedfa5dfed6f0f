// Package stream implements the push-stream client: connection lifecycle,
// reconnection, and frame decoding into typed events.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quantum-n3bula/console/internal/model"
)

// Event names on the wire. Every inbound frame carries a mandatory "event"
// string field; event-specific fields are flat on the same object.
const (
	EventTaskStarted   = "task_started"
	EventTaskCompleted = "task_completed"
	EventTaskFailed    = "task_failed"
	EventLog           = "log"
)

// Event is a decoded stream frame. The concrete type is one of TaskEvent,
// LogEvent, or UnknownEvent.
type Event interface {
	EventName() string
}

// TaskEvent is a partial, single-task update (task_started, task_completed,
// task_failed). Pointer fields are nil when the frame omitted them; a merge
// must only touch the fields the event carries.
type TaskEvent struct {
	Name    string
	TaskID  int64
	Status  *model.TaskStatus
	Result  *string
	Error   *string
	Command *string
}

// EventName returns the wire event name.
func (e TaskEvent) EventName() string { return e.Name }

// EffectiveStatus returns the status carried by the frame, falling back to
// the status implied by the event name when the frame omitted one.
func (e TaskEvent) EffectiveStatus() model.TaskStatus {
	if e.Status != nil {
		return *e.Status
	}
	switch e.Name {
	case EventTaskCompleted:
		return model.TaskCompleted
	case EventTaskFailed:
		return model.TaskFailed
	default:
		return model.TaskRunning
	}
}

// LogEvent is a pushed log entry. Unlike tasks, logs may be fabricated from
// a delta with missing optional fields; defaulting happens at merge time.
type LogEvent struct {
	ID        *int64
	Level     *model.LogLevel
	Message   string
	Source    *string
	TaskID    *int64
	AgentID   *int64
	CreatedAt *time.Time
}

// EventName returns the wire event name.
func (e LogEvent) EventName() string { return EventLog }

// UnknownEvent is any well-formed frame whose event label is not part of the
// merge taxonomy. It is recorded in the diagnostic last-event slot only.
type UnknownEvent struct {
	Name string
	Raw  json.RawMessage
}

// EventName returns the wire event name.
func (e UnknownEvent) EventName() string { return e.Name }

var errMissingEvent = errors.New("frame has no event field")

type taskFrame struct {
	TaskID  *int64            `json:"task_id"`
	Status  *model.TaskStatus `json:"status"`
	Result  *string           `json:"result"`
	Error   *string           `json:"error"`
	Command *string           `json:"command"`
}

type logFrame struct {
	ID        *int64          `json:"id"`
	Level     *model.LogLevel `json:"level"`
	Message   string          `json:"message"`
	Source    *string         `json:"source"`
	TaskID    *int64          `json:"task_id"`
	AgentID   *int64          `json:"agent_id"`
	CreatedAt *time.Time      `json:"created_at"`
}

// Decode parses a raw frame into a typed event. Malformed frames (invalid
// JSON, missing event label, task events without a task identity) return an
// error; the caller drops the frame and keeps the connection open.
func Decode(data []byte) (Event, error) {
	var envelope struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("parse frame: %w", err)
	}
	if envelope.Event == "" {
		return nil, errMissingEvent
	}

	switch envelope.Event {
	case EventTaskStarted, EventTaskCompleted, EventTaskFailed:
		var frame taskFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("parse %s frame: %w", envelope.Event, err)
		}
		if frame.TaskID == nil {
			return nil, fmt.Errorf("%s frame has no task_id", envelope.Event)
		}
		return TaskEvent{
			Name:    envelope.Event,
			TaskID:  *frame.TaskID,
			Status:  frame.Status,
			Result:  frame.Result,
			Error:   frame.Error,
			Command: frame.Command,
		}, nil

	case EventLog:
		var frame logFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("parse log frame: %w", err)
		}
		return LogEvent{
			ID:        frame.ID,
			Level:     frame.Level,
			Message:   frame.Message,
			Source:    frame.Source,
			TaskID:    frame.TaskID,
			AgentID:   frame.AgentID,
			CreatedAt: frame.CreatedAt,
		}, nil
	}

	return UnknownEvent{Name: envelope.Event, Raw: append(json.RawMessage(nil), data...)}, nil
}
