package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantum-n3bula/console/internal/api"
	"github.com/quantum-n3bula/console/internal/model"
	"github.com/quantum-n3bula/console/internal/reconcile"
	"github.com/quantum-n3bula/console/internal/store"
)

// stubClient programs the four read endpoints; mutating endpoints are never
// reached by the orchestrator.
type stubClient struct {
	mu     sync.Mutex
	status model.SystemStatus
	tasks  []model.Task
	logs   []model.LogEntry
	agents []model.Agent
	fail   bool

	statusCalls int
	lastLogQ    api.LogQuery
}

func (s *stubClient) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *stubClient) Ping(context.Context) error { return nil }

func (s *stubClient) Status(context.Context) (model.SystemStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCalls++
	if s.fail {
		return model.SystemStatus{}, errors.New("backend down")
	}
	return s.status, nil
}

func (s *stubClient) Tasks(context.Context) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("backend down")
	}
	return s.tasks, nil
}

func (s *stubClient) Task(context.Context, int64) (model.Task, error) {
	return model.Task{}, errors.New("not implemented")
}

func (s *stubClient) Logs(_ context.Context, q api.LogQuery) ([]model.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLogQ = q
	if s.fail {
		return nil, errors.New("backend down")
	}
	return s.logs, nil
}

func (s *stubClient) Agents(context.Context) ([]model.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("backend down")
	}
	return s.agents, nil
}

func (s *stubClient) Execute(context.Context, string, *int64) (model.Task, error) {
	return model.Task{}, errors.New("not implemented")
}

func (s *stubClient) CreateTask(context.Context, string, string, *int64) (model.Task, error) {
	return model.Task{}, errors.New("not implemented")
}

func (s *stubClient) CreateAgent(context.Context, string, *string) (model.Agent, error) {
	return model.Agent{}, errors.New("not implemented")
}

func (s *stubClient) DeleteAgent(context.Context, int64) error { return errors.New("not implemented") }
func (s *stubClient) DeleteLog(context.Context, int64) error   { return errors.New("not implemented") }

func (s *stubClient) Login(context.Context, string, string) (string, error) {
	return "", errors.New("not implemented")
}

func (s *stubClient) Register(context.Context, string, string, string) (model.User, error) {
	return model.User{}, errors.New("not implemented")
}

func (s *stubClient) Me(context.Context) (model.User, error) {
	return model.User{}, errors.New("not implemented")
}

var _ api.Client = (*stubClient)(nil)

func newFixture(client *stubClient, cfg Config) (*Orchestrator, *store.Store) {
	st := store.New()
	engine := reconcile.New(st, zerolog.Nop())
	return New(client, engine, zerolog.Nop(), cfg), st
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartLoadsAllSnapshots(t *testing.T) {
	client := &stubClient{
		status: model.SystemStatus{Status: "healthy"},
		tasks:  []model.Task{{ID: 1}, {ID: 2}},
		logs:   []model.LogEntry{{ID: 10}},
		agents: []model.Agent{{ID: 5}},
	}
	o, st := newFixture(client, Config{StatusInterval: time.Hour})
	defer o.Stop()

	o.Start(context.Background())

	waitFor(t, func() bool {
		_, ok := st.SystemStatus()
		return ok && len(st.Tasks()) == 2 && len(st.Logs()) == 1 && len(st.Agents()) == 1
	}, "initial snapshots")

	client.mu.Lock()
	defer client.mu.Unlock()
	if client.lastLogQ.Limit != DefaultLogLimit {
		t.Errorf("expected default log limit %d, got %d", DefaultLogLimit, client.lastLogQ.Limit)
	}
}

func TestStatusTickerRefreshes(t *testing.T) {
	client := &stubClient{status: model.SystemStatus{Status: "healthy"}}
	o, st := newFixture(client, Config{StatusInterval: 20 * time.Millisecond})
	defer o.Stop()

	o.Start(context.Background())

	waitFor(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.statusCalls >= 3
	}, "periodic status refreshes")

	client.mu.Lock()
	client.status = model.SystemStatus{Status: "degraded"}
	client.mu.Unlock()

	waitFor(t, func() bool {
		status, ok := st.SystemStatus()
		return ok && status.Status == "degraded"
	}, "updated status snapshot")
}

func TestFetchFailureKeepsStaleState(t *testing.T) {
	client := &stubClient{
		status: model.SystemStatus{Status: "healthy"},
		tasks:  []model.Task{{ID: 1, Status: model.TaskRunning}},
	}
	o, st := newFixture(client, Config{StatusInterval: time.Hour})
	defer o.Stop()

	o.Refresh(context.Background())
	if len(st.Tasks()) != 1 {
		t.Fatalf("expected initial task, got %d", len(st.Tasks()))
	}

	client.setFail(true)
	o.Refresh(context.Background())

	got := st.Tasks()
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("expected stale tasks preserved through failed fetch, got %+v", got)
	}
	if status, ok := st.SystemStatus(); !ok || status.Status != "healthy" {
		t.Errorf("expected stale status preserved, got %+v ok=%v", status, ok)
	}
}

func TestRecoveryAfterFailure(t *testing.T) {
	client := &stubClient{fail: true}
	o, st := newFixture(client, Config{StatusInterval: time.Hour})
	defer o.Stop()

	o.Refresh(context.Background())
	if len(st.Tasks()) != 0 {
		t.Fatal("expected empty store while backend is down")
	}

	client.mu.Lock()
	client.fail = false
	client.tasks = []model.Task{{ID: 9}}
	client.mu.Unlock()

	o.Refresh(context.Background())
	if len(st.Tasks()) != 1 {
		t.Errorf("expected snapshot applied after recovery, got %d tasks", len(st.Tasks()))
	}
}

func TestStopIsIdempotent(t *testing.T) {
	client := &stubClient{}
	o, _ := newFixture(client, Config{StatusInterval: 20 * time.Millisecond})

	o.Start(context.Background())
	o.Stop()
	o.Stop()

	client.mu.Lock()
	calls := client.statusCalls
	client.mu.Unlock()

	time.Sleep(60 * time.Millisecond)

	client.mu.Lock()
	defer client.mu.Unlock()
	if client.statusCalls != calls {
		t.Errorf("expected no fetches after Stop, got %d new calls", client.statusCalls-calls)
	}
}
