// Package store implements the in-memory entity store backing the console.
//
// The store is the single source of truth read by presentation code. Both
// producers (REST snapshots and stream deltas) mutate it exclusively through
// the operations below; every operation commits atomically under one mutex,
// so a reader never observes a partially-applied multi-item write.
package store

import (
	"encoding/json"
	"sync"

	"github.com/quantum-n3bula/console/internal/model"
)

// DefaultLogRetention is the bounded window of most-recent log entries kept
// in memory.
const DefaultLogRetention = 100

// Store holds the mirrored collections and scalar slots. Collections keep
// insertion order (newest first for tasks and logs); each is indexed by
// entity ID for patch/remove lookups.
type Store struct {
	mu sync.RWMutex

	tasks     []model.Task
	taskIdx   map[int64]int
	logs      []model.LogEntry
	agents    []model.Agent
	agentIdx  map[int64]int
	retention int

	systemStatus    *model.SystemStatus
	streamConnected bool
	lastEvent       json.RawMessage

	subs   []chan struct{}
	closed bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogRetention overrides the log retention window.
func WithLogRetention(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.retention = n
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		taskIdx:   make(map[int64]int),
		agentIdx:  make(map[int64]int),
		retention: DefaultLogRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe returns a channel that receives a coalesced signal after each
// committed mutation. The channel has capacity one; a slow reader misses
// intermediate signals, never mutations.
func (s *Store) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

// Close marks the store inert: every subsequent mutation becomes a no-op.
// Late store writes from in-flight fetches resolve harmlessly against a
// closed store. Safe to call more than once.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// notify signals all subscribers. Callers must hold s.mu.
func (s *Store) notify() {
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// TASKS
// ═══════════════════════════════════════════════════════════════════════════

// ReplaceTasks discards the current task collection and installs the given
// snapshot in its order.
func (s *Store) ReplaceTasks(tasks []model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.tasks = append([]model.Task(nil), tasks...)
	s.taskIdx = make(map[int64]int, len(s.tasks))
	for i, t := range s.tasks {
		s.taskIdx[t.ID] = i
	}
	s.notify()
}

// UpsertTask replaces the task with the same ID, or inserts it newest-first.
func (s *Store) UpsertTask(task model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if i, ok := s.taskIdx[task.ID]; ok {
		s.tasks[i] = task
	} else {
		s.tasks = append([]model.Task{task}, s.tasks...)
		s.reindexTasks()
	}
	s.notify()
}

// PatchTask applies only the fields the patch carries to the task with the
// given ID. An unknown ID is a no-op; the return value reports whether the
// patch landed.
func (s *Store) PatchTask(id int64, patch model.TaskPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	i, ok := s.taskIdx[id]
	if !ok {
		return false
	}
	t := &s.tasks[i]
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Result != nil {
		t.Result = patch.Result
	}
	if patch.Error != nil {
		t.Error = patch.Error
	}
	if patch.StartedAt != nil {
		t.StartedAt = patch.StartedAt
	}
	if patch.CompletedAt != nil {
		t.CompletedAt = patch.CompletedAt
	}
	s.notify()
	return true
}

// RemoveTask deletes the task with the given ID; unknown IDs are a no-op.
func (s *Store) RemoveTask(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	i, ok := s.taskIdx[id]
	if !ok {
		return
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	s.reindexTasks()
	s.notify()
}

func (s *Store) reindexTasks() {
	s.taskIdx = make(map[int64]int, len(s.tasks))
	for i, t := range s.tasks {
		s.taskIdx[t.ID] = i
	}
}

// Tasks returns a copy of the task collection in store order.
func (s *Store) Tasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Task(nil), s.tasks...)
}

// Task returns the task with the given ID, if present.
func (s *Store) Task(id int64) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.taskIdx[id]; ok {
		return s.tasks[i], true
	}
	return model.Task{}, false
}

// ═══════════════════════════════════════════════════════════════════════════
// LOGS
// ═══════════════════════════════════════════════════════════════════════════

// ReplaceLogs discards the current log collection and installs the snapshot,
// truncated to the retention window.
func (s *Store) ReplaceLogs(logs []model.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.logs = append([]model.LogEntry(nil), logs...)
	if len(s.logs) > s.retention {
		s.logs = s.logs[:s.retention]
	}
	s.notify()
}

// InsertLog prepends an entry at the newest-first position and evicts the
// oldest entries beyond the retention window (oldest = lowest insertion
// rank, not lowest timestamp).
func (s *Store) InsertLog(entry model.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.logs = append([]model.LogEntry{entry}, s.logs...)
	if len(s.logs) > s.retention {
		s.logs = s.logs[:s.retention]
	}
	s.notify()
}

// Logs returns a copy of the log collection, newest first.
func (s *Store) Logs() []model.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.LogEntry(nil), s.logs...)
}

// LogRetention returns the configured retention window.
func (s *Store) LogRetention() int {
	return s.retention
}

// ═══════════════════════════════════════════════════════════════════════════
// AGENTS
// ═══════════════════════════════════════════════════════════════════════════

// ReplaceAgents discards the current agent collection and installs the
// snapshot in its order.
func (s *Store) ReplaceAgents(agents []model.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.agents = append([]model.Agent(nil), agents...)
	s.agentIdx = make(map[int64]int, len(s.agents))
	for i, a := range s.agents {
		s.agentIdx[a.ID] = i
	}
	s.notify()
}

// UpsertAgent replaces the agent with the same ID, or appends it.
func (s *Store) UpsertAgent(agent model.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if i, ok := s.agentIdx[agent.ID]; ok {
		s.agents[i] = agent
	} else {
		s.agents = append(s.agents, agent)
		s.agentIdx[agent.ID] = len(s.agents) - 1
	}
	s.notify()
}

// RemoveAgent deletes the agent with the given ID; unknown IDs are a no-op.
func (s *Store) RemoveAgent(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	i, ok := s.agentIdx[id]
	if !ok {
		return
	}
	s.agents = append(s.agents[:i], s.agents[i+1:]...)
	s.agentIdx = make(map[int64]int, len(s.agents))
	for j, a := range s.agents {
		s.agentIdx[a.ID] = j
	}
	s.notify()
}

// Agents returns a copy of the agent collection in store order.
func (s *Store) Agents() []model.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Agent(nil), s.agents...)
}

// ═══════════════════════════════════════════════════════════════════════════
// SCALAR SLOTS
// ═══════════════════════════════════════════════════════════════════════════

// SetSystemStatus replaces the singleton system status snapshot.
func (s *Store) SetSystemStatus(status model.SystemStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.systemStatus = &status
	s.notify()
}

// SystemStatus returns the latest system status snapshot, if any.
func (s *Store) SystemStatus() (model.SystemStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.systemStatus == nil {
		return model.SystemStatus{}, false
	}
	return *s.systemStatus, true
}

// SetStreamConnected records the stream connection state.
func (s *Store) SetStreamConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.streamConnected = connected
	s.notify()
}

// StreamConnected reports whether the push stream is currently connected.
func (s *Store) StreamConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamConnected
}

// SetLastEvent records the most recently received raw stream payload. The
// slot is diagnostic only and never feeds business logic.
func (s *Store) SetLastEvent(raw json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.lastEvent = append(json.RawMessage(nil), raw...)
	s.notify()
}

// LastEvent returns a copy of the most recently received raw stream payload.
func (s *Store) LastEvent() json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(json.RawMessage(nil), s.lastEvent...)
}
