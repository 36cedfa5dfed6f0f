// Package fetch schedules REST snapshot fetches: a parallel initial load on
// start and a fixed-interval status refresh, feeding every result through
// the reconciliation engine.
package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantum-n3bula/console/internal/api"
	"github.com/quantum-n3bula/console/internal/reconcile"
)

// Defaults.
const (
	DefaultStatusInterval = 30 * time.Second
	DefaultLogLimit       = 20
)

// Config holds orchestrator settings.
type Config struct {
	// StatusInterval is the fixed refresh period for the status snapshot.
	StatusInterval time.Duration
	// LogLimit bounds the recent-log snapshot request.
	LogLimit int
}

// Orchestrator issues REST calls on start and on a fixed interval. Fetch
// failures are logged and leave existing store state untouched: stale data
// is preferred over a blank view.
type Orchestrator struct {
	client api.Client
	engine *reconcile.Engine
	log    zerolog.Logger
	cfg    Config

	cancel   context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates an orchestrator feeding snapshots into the given engine.
func New(client api.Client, engine *reconcile.Engine, log zerolog.Logger, cfg Config) *Orchestrator {
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = DefaultStatusInterval
	}
	if cfg.LogLimit <= 0 {
		cfg.LogLimit = DefaultLogLimit
	}
	return &Orchestrator{
		client: client,
		engine: engine,
		log:    log.With().Str("component", "fetch").Logger(),
		cfg:    cfg,
	}
}

// Start issues the initial snapshot fetches and begins the periodic status
// refresh. It returns immediately; fetches complete in the background.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.Refresh(ctx)
	}()

	o.wg.Add(1)
	go o.statusLoop(ctx)
}

// Refresh fetches all snapshots in parallel and applies each as it
// resolves. Callers use it to resynchronize after a stream reconnect.
func (o *Orchestrator) Refresh(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); o.refreshStatus(ctx) }()
	go func() { defer wg.Done(); o.refreshTasks(ctx) }()
	go func() { defer wg.Done(); o.refreshLogs(ctx) }()
	go func() { defer wg.Done(); o.refreshAgents(ctx) }()
	wg.Wait()
}

// statusLoop refreshes the status snapshot on a fixed ticker, independent of
// the stream.
func (o *Orchestrator) statusLoop(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.refreshStatus(ctx)
		}
	}
}

func (o *Orchestrator) refreshStatus(ctx context.Context) {
	status, err := o.client.Status(ctx)
	if err != nil {
		o.log.Warn().Err(err).Msg("status fetch failed, keeping stale snapshot")
		return
	}
	o.engine.SystemSnapshot(status)
}

func (o *Orchestrator) refreshTasks(ctx context.Context) {
	tasks, err := o.client.Tasks(ctx)
	if err != nil {
		o.log.Warn().Err(err).Msg("task fetch failed, keeping stale collection")
		return
	}
	o.engine.TasksSnapshot(tasks)
}

func (o *Orchestrator) refreshLogs(ctx context.Context) {
	logs, err := o.client.Logs(ctx, api.LogQuery{Limit: o.cfg.LogLimit})
	if err != nil {
		o.log.Warn().Err(err).Msg("log fetch failed, keeping stale collection")
		return
	}
	o.engine.LogsSnapshot(logs)
}

func (o *Orchestrator) refreshAgents(ctx context.Context) {
	agents, err := o.client.Agents(ctx)
	if err != nil {
		o.log.Warn().Err(err).Msg("agent fetch failed, keeping stale collection")
		return
	}
	o.engine.AgentsSnapshot(agents)
}

// Stop cancels the refresh timer. Idempotent; a fetch already in flight
// still resolves and writes into the (by then inert) store harmlessly.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		if o.cancel != nil {
			o.cancel()
		}
		o.wg.Wait()
	})
}
