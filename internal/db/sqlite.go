package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// FileName is the store file created inside the data directory
const FileName = "pos.sqlite"

//go:embed schema.sql
var schemaSQL string

// indexes reference migrated columns, so they run after addedColumns
//
//go:embed indexes.sql
var indexSQL string

// Every connection gets the same pragmas; write transactions take the
// write lock up front so two writers never deadlock on a lock upgrade.
const dsnOptions = "?_pragma=busy_timeout(5000)" +
	"&_pragma=journal_mode(WAL)" +
	"&_pragma=synchronous(NORMAL)" +
	"&_txlock=immediate"

// Store is the local durable store: booking snapshot, sync queue, metadata
// and dead letters in one WAL-mode SQLite file
type Store struct {
	db           *sql.DB
	path         string
	newlyCreated bool
	logger       *slog.Logger
	now          func() time.Time
}

// Open creates or opens the store under dataDir. It is idempotent: a missing
// file is created with all tables, an existing one keeps its data and only
// gains the tables, indexes and columns it lacks
func Open(dataDir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	path := filepath.Join(dataDir, FileName)
	_, statErr := os.Stat(path)
	newlyCreated := errors.Is(statErr, os.ErrNotExist)

	db, err := sql.Open("sqlite", path+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}

	// WAL lets readers run next to the single writer
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping failed: %w", err)
	}

	if err := verifyWAL(pingCtx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := applySchema(pingCtx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Info("Local store ready", "path", path, "newly_created", newlyCreated)

	return &Store{
		db:           db,
		path:         path,
		newlyCreated: newlyCreated,
		logger:       logger,
		now:          time.Now,
	}, nil
}

// Path returns the location of the store file
func (s *Store) Path() string { return s.path }

// NewlyCreated reports whether Open had to create the file
func (s *Store) NewlyCreated() bool { return s.newlyCreated }

// SetClock replaces the time source used for created_at/updated_at stamps
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Close gracefully shuts down the connection pool
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.logger.Info("Closing local store", "path", s.path)
	return s.db.Close()
}

func verifyWAL(ctx context.Context, db *sql.DB) error {
	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("failed to read journal mode: %w", err)
	}
	if mode != "wal" {
		return fmt.Errorf("write-ahead logging not enabled (journal_mode=%s)", mode)
	}
	return nil
}

// column is an additive migration for files written by older layouts
type column struct {
	table, name, ddl string
}

var addedColumns = []column{
	{"bookings", "server_id", "TEXT"},
	{"bookings", "room_id", "TEXT"},
	{"bookings", "players", "INTEGER NOT NULL DEFAULT 1"},
	{"bookings", "price", "REAL"},
	{"sync_queue", "last_error", "TEXT"},
	{"dead_letters", "acknowledged", "INTEGER NOT NULL DEFAULT 0"},
}

func applySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	for _, c := range addedColumns {
		exists, err := hasColumn(ctx, db, c.table, c.name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.table, c.name, c.ddl)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to add column %s.%s: %w", c.table, c.name, err)
		}
	}

	if _, err := db.ExecContext(ctx, indexSQL); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func hasColumn(ctx context.Context, db *sql.DB, table, name string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s columns: %w", table, err)
	}
	return count > 0, nil
}

// withTx runs fn inside a single write transaction
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	// Rollback is a no-op after Commit
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}
