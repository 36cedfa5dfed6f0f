// Package console wires the sync subsystem together: it constructs the
// entity store, reconciliation engine, REST client, stream client, and
// fetch orchestrator for one session, and owns their teardown.
package console

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quantum-n3bula/console/internal/api"
	"github.com/quantum-n3bula/console/internal/config"
	"github.com/quantum-n3bula/console/internal/fetch"
	"github.com/quantum-n3bula/console/internal/reconcile"
	"github.com/quantum-n3bula/console/internal/session"
	"github.com/quantum-n3bula/console/internal/store"
	"github.com/quantum-n3bula/console/internal/stream"
)

// Console is the top-level session context. The store is constructed here
// and injected into the producers; nothing reaches for globals.
type Console struct {
	cfg *config.Config
	log zerolog.Logger

	store   *store.Store
	engine  *reconcile.Engine
	client  *api.HTTPClient
	session *session.Store
	stream  *stream.Client
	fetcher *fetch.Orchestrator

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New builds a console for the given configuration. Start must be called to
// begin syncing.
func New(cfg *config.Config, log zerolog.Logger) (*Console, error) {
	sess, err := session.Open(cfg.SessionPath, log)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	st := store.New(store.WithLogRetention(cfg.LogRetention))
	engine := reconcile.New(st, log)
	client := api.NewClient(api.ClientConfig{
		BaseURL: cfg.APIURL,
		Token:   sess.Token,
	})

	c := &Console{
		cfg:     cfg,
		log:     log.With().Str("component", "console").Logger(),
		store:   st,
		engine:  engine,
		client:  client,
		session: sess,
	}

	c.fetcher = fetch.New(client, engine, log, fetch.Config{
		StatusInterval: cfg.StatusInterval,
	})
	c.stream = stream.NewClient(stream.Config{
		URL:            cfg.WSURL,
		Token:          sess.Token(),
		ReconnectDelay: cfg.ReconnectDelay,
	}, log, &streamHandler{c: c})

	return c, nil
}

// Start begins the initial snapshot load, the periodic status refresh, and
// the push-stream connection. It returns immediately.
func (c *Console) Start(ctx context.Context) {
	c.runCtx, c.runCancel = context.WithCancel(ctx)

	c.fetcher.Start(c.runCtx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.stream.Run(c.runCtx)
	}()
}

// Close tears the session down: the refresh timers and the reconnect timer
// are cancelled, the transport is closed, and the store is marked inert so
// late-resolving fetches write into the void. Idempotent.
func (c *Console) Close() {
	c.closeOnce.Do(func() {
		if c.runCancel != nil {
			c.runCancel()
		}
		c.stream.Close()
		c.fetcher.Stop()
		c.wg.Wait()
		c.store.Close()
		if err := c.session.Close(); err != nil {
			c.log.Warn().Err(err).Msg("failed to close session store")
		}
	})
}

// Store returns the entity store for readers.
func (c *Console) Store() *store.Store {
	return c.store
}

// API returns the REST client.
func (c *Console) API() api.Client {
	return c.client
}

// Stream returns the push-stream client, for best-effort outbound sends.
func (c *Console) Stream() *stream.Client {
	return c.stream
}

// ReadOnly reports whether the console holds no session token.
func (c *Console) ReadOnly() bool {
	return !c.session.HasToken()
}

// Login exchanges credentials for a bearer token and persists it.
func (c *Console) Login(ctx context.Context, username, password string) error {
	token, err := c.client.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if err := c.session.SetToken(token); err != nil {
		return err
	}
	c.log.Info().Str("username", username).Msg("logged in")
	return nil
}

// Logout clears the persisted token. Mirrored collections survive; the
// console drops to read-only browsing.
func (c *Console) Logout() error {
	if err := c.session.Clear(); err != nil {
		return err
	}
	c.log.Info().Msg("logged out")
	return nil
}

// streamHandler bridges stream callbacks into the store and engine.
type streamHandler struct {
	c *Console
}

// OnConnected flips the connectivity slot and re-fetches all snapshots so
// deltas arriving on the fresh connection merge against current state.
func (h *streamHandler) OnConnected() {
	h.c.store.SetStreamConnected(true)
	if h.c.runCtx != nil {
		h.c.fetcher.Refresh(h.c.runCtx)
	}
}

func (h *streamHandler) OnDisconnected() {
	h.c.store.SetStreamConnected(false)
}

func (h *streamHandler) OnEvent(ev stream.Event, raw []byte) {
	h.c.engine.ApplyEvent(ev, raw)
}
