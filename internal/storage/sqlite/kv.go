package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dyagdi/PriceLess/pkg/database"
	apperrors "github.com/dyagdi/PriceLess/pkg/errors"
)

const dbSystem = "sqlite"

// ErrClosed is returned by operations on a closed KV.
var ErrClosed = errors.New("sqlite kv is closed")

// KV implements storage.KV on a local SQLite file.
type KV struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// New opens (or creates) the SQLite database at path.
func New(path string) (*KV, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	return newKV(db)
}

// NewInMemory creates an in-memory KV, mostly for tests.
func NewInMemory() (*KV, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}
	// Each connection to :memory: gets its own database.
	db.SetMaxOpenConns(1)
	return newKV(db)
}

func newKV(db *sql.DB) (*KV, error) {
	kv := &KV{db: db}
	if err := kv.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize sqlite database: %w", err)
	}
	return kv, nil
}

func (s *KV) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS storefront_kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`)
	return err
}

// Get returns the value stored at key.
func (s *KV) Get(ctx context.Context, key string) (value string, found bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", false, ErrClosed
	}

	const query = "SELECT value FROM storefront_kv WHERE key = ?"
	ctx, end := database.TraceQuery(ctx, dbSystem, "GetKV", query)
	defer func() { end(err) }()

	err = s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.Wrap(err, "sqlite get "+key)
	}
	return value, true, nil
}

// Set stores value at key, replacing any previous value.
func (s *KV) Set(ctx context.Context, key, value string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	const query = "INSERT OR REPLACE INTO storefront_kv (key, value, updated_at) VALUES (?, ?, ?)"
	ctx, end := database.TraceQuery(ctx, dbSystem, "SetKV", query)
	defer func() { end(err) }()

	if _, err = s.db.ExecContext(ctx, query, key, value, time.Now().Unix()); err != nil {
		return apperrors.Wrap(err, "sqlite set "+key)
	}
	return nil
}

// Delete removes key.
func (s *KV) Delete(ctx context.Context, key string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	const query = "DELETE FROM storefront_kv WHERE key = ?"
	ctx, end := database.TraceQuery(ctx, dbSystem, "DeleteKV", query)
	defer func() { end(err) }()

	if _, err = s.db.ExecContext(ctx, query, key); err != nil {
		return apperrors.Wrap(err, "sqlite delete "+key)
	}
	return nil
}

// Ping checks the database handle.
func (s *KV) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

// Close closes the database. It is safe to call more than once.
func (s *KV) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
