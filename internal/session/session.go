// Package session persists the bearer token, the console's only durable
// artifact. Storage is a small SQLite database; the token lives under a
// fixed key name carried over from the browser client's storage slot.
package session

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// StorageKey is the fixed name the token is stored under.
const StorageKey = "quantum-nebula-storage"

// Store holds the session token in memory with SQLite durability behind it.
type Store struct {
	log zerolog.Logger
	db  *sql.DB

	mu    sync.RWMutex
	token string
}

// Open opens (creating if needed) the session database at path and loads
// any persisted token.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run session migrations: %w", err)
	}

	s := &Store{
		log: log.With().Str("component", "session").Logger(),
		db:  db,
	}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func runMigrations(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS session (
		name       TEXT PRIMARY KEY,
		token      TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// load reads the persisted token into memory.
func (s *Store) load() error {
	var token string
	err := s.db.QueryRow(`SELECT token FROM session WHERE name = ?`, StorageKey).Scan(&token)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("load session token: %w", err)
	}
	s.token = token
	return nil
}

// Token returns the current bearer token, or "" when none is held.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// HasToken reports whether a session token is held.
func (s *Store) HasToken() bool {
	return s.Token() != ""
}

// SetToken stores the token in memory and persists it.
func (s *Store) SetToken(token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO session (name, token, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at
	`, StorageKey, token, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("persist session token: %w", err)
	}
	return nil
}

// Clear drops the token from memory and storage. Mirrored collections are
// deliberately left alone: logging out returns the console to read-only
// browsing, it does not blank the view.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM session WHERE name = ?`, StorageKey)
	if err != nil {
		return fmt.Errorf("clear session token: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
