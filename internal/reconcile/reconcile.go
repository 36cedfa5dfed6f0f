// Package reconcile folds REST snapshots and stream deltas into the entity
// store. Both producers go through the same engine so merge semantics are
// identical regardless of origin.
package reconcile

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/quantum-n3bula/console/internal/model"
	"github.com/quantum-n3bula/console/internal/store"
	"github.com/quantum-n3bula/console/internal/stream"
)

// Engine merges incoming change descriptors into the store. It keeps no
// state of its own between calls; the store's current value is the
// authoritative prior state for every merge.
type Engine struct {
	store *store.Store
	log   zerolog.Logger

	// now is swapped in tests to pin fabricated timestamps.
	now func() time.Time
}

// New creates an engine writing into the given store.
func New(s *store.Store, log zerolog.Logger) *Engine {
	return &Engine{
		store: s,
		log:   log.With().Str("component", "reconcile").Logger(),
		now:   time.Now,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// SNAPSHOTS (authority reset: replace wholesale, drop stale local state)
// ═══════════════════════════════════════════════════════════════════════════

// TasksSnapshot replaces the task collection with the server's full view.
func (e *Engine) TasksSnapshot(tasks []model.Task) {
	e.store.ReplaceTasks(tasks)
	e.log.Debug().Int("count", len(tasks)).Msg("applied task snapshot")
}

// LogsSnapshot replaces the log collection with the server's recent window.
func (e *Engine) LogsSnapshot(logs []model.LogEntry) {
	e.store.ReplaceLogs(logs)
	e.log.Debug().Int("count", len(logs)).Msg("applied log snapshot")
}

// AgentsSnapshot replaces the agent collection with the server's full view.
func (e *Engine) AgentsSnapshot(agents []model.Agent) {
	e.store.ReplaceAgents(agents)
	e.log.Debug().Int("count", len(agents)).Msg("applied agent snapshot")
}

// SystemSnapshot replaces the singleton system status.
func (e *Engine) SystemSnapshot(status model.SystemStatus) {
	e.store.SetSystemStatus(status)
}

// ═══════════════════════════════════════════════════════════════════════════
// DELTAS (stream events, applied in receipt order, last write wins)
// ═══════════════════════════════════════════════════════════════════════════

// ApplyEvent merges one decoded stream event. The raw payload is always
// recorded in the diagnostic last-event slot, including for event labels
// outside the merge taxonomy.
func (e *Engine) ApplyEvent(ev stream.Event, raw []byte) {
	e.store.SetLastEvent(raw)

	switch ev := ev.(type) {
	case stream.TaskEvent:
		e.applyTaskEvent(ev)
	case stream.LogEvent:
		e.store.InsertLog(e.logEntryFromEvent(ev))
	case stream.UnknownEvent:
		e.log.Debug().Str("event", ev.Name).Msg("unrecognized event recorded only")
	}
}

// applyTaskEvent patches the referenced task with the fields the event
// carries. A delta for an unknown task is a no-op: tasks are never
// fabricated from a partial delta, they appear on the next snapshot.
func (e *Engine) applyTaskEvent(ev stream.TaskEvent) {
	patch := taskPatchFrom(ev)
	if !e.store.PatchTask(ev.TaskID, patch) {
		e.log.Debug().
			Int64("task_id", ev.TaskID).
			Str("event", ev.Name).
			Msg("delta for unknown task ignored")
		return
	}
	e.log.Debug().
		Int64("task_id", ev.TaskID).
		Str("status", string(ev.EffectiveStatus())).
		Msg("applied task delta")
}

// taskPatchFrom builds the partial field set a task event carries. A status
// is always carried (explicit, or implied by the event name) and always
// overwrites, last write wins; result and error only when present on the
// frame. No delta ever clears a field it omits, so a stale event may regress
// the status but cannot erase terminal result/error text.
func taskPatchFrom(ev stream.TaskEvent) model.TaskPatch {
	status := ev.EffectiveStatus()
	return model.TaskPatch{
		Status: &status,
		Result: ev.Result,
		Error:  ev.Error,
	}
}

// logEntryFromEvent fabricates a full log entry from a (possibly sparse)
// log event: missing identity gets a synthesized unique value, missing
// timestamp the current time, missing references stay nil.
func (e *Engine) logEntryFromEvent(ev stream.LogEvent) model.LogEntry {
	entry := model.LogEntry{
		Message: ev.Message,
		Level:   model.LevelInfo,
		Source:  ev.Source,
		TaskID:  ev.TaskID,
		AgentID: ev.AgentID,
	}
	if ev.Level != nil {
		entry.Level = *ev.Level
	}
	if ev.ID != nil {
		entry.ID = *ev.ID
	} else {
		entry.ID = e.now().UnixNano()
	}
	if ev.CreatedAt != nil {
		entry.CreatedAt = *ev.CreatedAt
	} else {
		entry.CreatedAt = e.now()
	}
	return entry
}
