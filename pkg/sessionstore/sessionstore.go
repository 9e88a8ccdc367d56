// Package sessionstore persists the small amount of client state that
// outlives a process: the stable session id, the call-active marker, the
// single pending chat message, and the last session's role for reconnect
// prompts. It is passive storage; live coordination happens over the
// bridge's event channel, never through store writes.
package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed key/value session store.
type Store struct {
	db *sql.DB
}

// Open creates or opens the store at dbPath.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

const (
	keySessionID   = "voxa_session_id"
	keyCallActive  = "voxa_call_active"
	keyPendingText = "voxa_pending_text"
	keyLastRole    = "voxa_last_role"
	keyLastBiz     = "voxa_last_business"
)

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// SessionID returns the stable session id, generating and persisting one on
// first use.
func (s *Store) SessionID(ctx context.Context) (string, error) {
	if id, ok, err := s.get(ctx, keySessionID); err != nil || ok {
		return id, err
	}
	id := uuid.NewString()
	if err := s.set(ctx, keySessionID, id); err != nil {
		return "", err
	}
	return id, nil
}

// SetCallActive records whether a call is currently up.
func (s *Store) SetCallActive(ctx context.Context, active bool) error {
	if !active {
		return s.delete(ctx, keyCallActive)
	}
	return s.set(ctx, keyCallActive, "true")
}

// CallActive reports the persisted call marker.
func (s *Store) CallActive(ctx context.Context) (bool, error) {
	value, ok, err := s.get(ctx, keyCallActive)
	return ok && value == "true", err
}

// SetPendingMessage stores the single pending chat message, replacing any
// previous one.
func (s *Store) SetPendingMessage(ctx context.Context, text string) error {
	return s.set(ctx, keyPendingText, text)
}

// PendingMessage returns the pending message, if one is stored.
func (s *Store) PendingMessage(ctx context.Context) (string, bool, error) {
	return s.get(ctx, keyPendingText)
}

// ClearPendingMessage drops the pending message.
func (s *Store) ClearPendingMessage(ctx context.Context) error {
	return s.delete(ctx, keyPendingText)
}

// SetLastSession records the role and business of the most recent call so a
// client can offer to reconnect.
func (s *Store) SetLastSession(ctx context.Context, role, businessID string) error {
	if err := s.set(ctx, keyLastRole, role); err != nil {
		return err
	}
	return s.set(ctx, keyLastBiz, businessID)
}

// LastSession returns the most recent call's role and business, or ok=false
// when none was recorded.
func (s *Store) LastSession(ctx context.Context) (role, businessID string, ok bool, err error) {
	role, ok, err = s.get(ctx, keyLastRole)
	if err != nil || !ok {
		return "", "", false, err
	}
	businessID, _, err = s.get(ctx, keyLastBiz)
	if err != nil {
		return "", "", false, err
	}
	return role, businessID, true, nil
}

// Reset clears everything, including the session id.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv`); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}
