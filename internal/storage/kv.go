package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Store is a JSON key-value store with change notification.
//
// Every write bumps a monotonically increasing revision. Poll reports the
// keys whose revision moved since the last poll, so writes made by another
// process on the same file are noticed as well as local ones. Deleted keys
// keep a tombstone row so their deletion has a revision too.
type Store struct {
	db   *sql.DB
	path string

	pollMu  sync.Mutex
	lastRev int64

	mu        sync.Mutex
	listeners map[int]func(keys []string)
	nextID    int
}

// Open opens the database at path and returns a Store over it.
func Open(path string) (*Store, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, path: path, listeners: make(map[int]func([]string))}
	if err := db.QueryRow("SELECT COALESCE(MAX(rev), 0) FROM kv").Scan(&s.lastRev); err != nil {
		db.Close()
		return nil, fmt.Errorf("read revision: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the database handle for callers that need raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Get decodes the value of key into v. It reports false if the key is unset.
func (s *Store) Get(ctx context.Context, key string, v any) (bool, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !raw.Valid) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw.String), v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores v as the JSON value of key and notifies listeners.
func (s *Store) Set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.write(ctx, func(tx *sql.Tx, rev int64) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO kv (key, value, rev) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, rev = excluded.rev, updated_at = CURRENT_TIMESTAMP`,
			key, string(data), rev)
		return err
	}); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return s.Poll(ctx)
}

// Delete unsets key and notifies listeners.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.write(ctx, func(tx *sql.Tx, rev int64) error {
		return tombstone(ctx, tx, key, rev)
	}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return s.Poll(ctx)
}

func tombstone(ctx context.Context, tx *sql.Tx, key string, rev int64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO kv (key, value, rev) VALUES (?, NULL, ?)
		 ON CONFLICT(key) DO UPDATE SET value = NULL, rev = excluded.rev, updated_at = CURRENT_TIMESTAMP`,
		key, rev)
	return err
}

// write runs fn in a transaction with the next revision number.
func (s *Store) write(ctx context.Context, fn func(tx *sql.Tx, rev int64) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var rev int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(rev), 0) + 1 FROM kv").Scan(&rev); err != nil {
		return fmt.Errorf("compute next rev: %w", err)
	}
	if err := fn(tx, rev); err != nil {
		return err
	}
	return tx.Commit()
}

// OnChanged registers fn to be called with the keys that changed. The
// returned function unregisters it.
func (s *Store) OnChanged(fn func(keys []string)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Poll reports every key written since the previous poll to the listeners.
// Each revision is reported exactly once per Store.
func (s *Store) Poll(ctx context.Context) error {
	s.pollMu.Lock()
	rows, err := s.db.QueryContext(ctx, "SELECT key, rev FROM kv WHERE rev > ? ORDER BY rev", s.lastRev)
	if err != nil {
		s.pollMu.Unlock()
		return fmt.Errorf("poll changes: %w", err)
	}
	var keys []string
	seen := make(map[string]bool)
	for rows.Next() {
		var key string
		var rev int64
		if err := rows.Scan(&key, &rev); err != nil {
			rows.Close()
			s.pollMu.Unlock()
			return fmt.Errorf("scan change: %w", err)
		}
		if rev > s.lastRev {
			s.lastRev = rev
		}
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	err = rows.Err()
	rows.Close()
	s.pollMu.Unlock()
	if err != nil {
		return fmt.Errorf("iterate changes: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}
	s.mu.Lock()
	fns := make([]func([]string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(keys)
	}
	return nil
}
