// Package cache stores compiled programs and run history in SQLite, keyed
// by the content hash of the network they were compiled from.
package cache

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/ndbx/pkg/bytecode"
	"github.com/chazu/ndbx/pkg/value"

	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("ndbx.cache")

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Cache is a SQLite-backed program cache.
type Cache struct {
	db *sql.DB
}

// Run is one recorded execution of a cached program.
type Run struct {
	ID        uuid.UUID
	Hash      [32]byte
	Stack     []value.Value
	Error     string // Empty on success
	CreatedAt time.Time
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == MemoryPath {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	c := &Cache{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Debugf("opened cache %s", path)
	return c, nil
}

func (c *Cache) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS programs (
		hash TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		version INTEGER NOT NULL,
		program BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		stack BLOB NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_hash ON runs(hash, created_at);
	`

	_, err := c.db.Exec(schema)
	return err
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func hashKey(hash [32]byte) string {
	return hex.EncodeToString(hash[:])
}

// Put stores program under hash, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, hash [32]byte, name string, program *bytecode.CompiledNetwork) error {
	blob, err := bytecode.MarshalProgram(program)
	if err != nil {
		return fmt.Errorf("failed to encode program: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO programs (hash, name, version, program, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			program = excluded.program,
			created_at = excluded.created_at
	`, hashKey(hash), name, program.Version, blob, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to store program: %w", err)
	}

	log.Debugf("stored program %s (%s, %d bytes)", hashKey(hash)[:12], name, len(blob))
	return nil
}

// Get returns the program stored under hash. found is false if there is
// none, or if the stored program was written by an incompatible version.
func (c *Cache) Get(ctx context.Context, hash [32]byte) (program *bytecode.CompiledNetwork, found bool, err error) {
	var (
		version uint16
		blob    []byte
	)
	err = c.db.QueryRowContext(ctx,
		`SELECT version, program FROM programs WHERE hash = ?`, hashKey(hash),
	).Scan(&version, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query program: %w", err)
	}

	if version != bytecode.BytecodeVersion {
		log.Infof("ignoring cached program %s with bytecode version %d", hashKey(hash)[:12], version)
		return nil, false, nil
	}

	program, err = bytecode.UnmarshalProgram(blob)
	if err != nil {
		return nil, false, err
	}
	return program, true, nil
}

// RecordRun stores the outcome of running the program under hash. runErr
// is the VM error, or nil on success.
func (c *Cache) RecordRun(ctx context.Context, hash [32]byte, stack []value.Value, runErr error) (*Run, error) {
	if stack == nil {
		stack = []value.Value{}
	}
	blob, err := cbor.Marshal(stack)
	if err != nil {
		return nil, fmt.Errorf("failed to encode stack: %w", err)
	}

	run := &Run{
		ID:        uuid.New(),
		Hash:      hash,
		Stack:     stack,
		CreatedAt: time.Now(),
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO runs (id, hash, stack, error, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID.String(), hashKey(hash), blob, run.Error, run.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	return run, nil
}

// Runs returns up to limit runs of the program under hash, newest first.
// A limit of zero or less returns every run.
func (c *Cache) Runs(ctx context.Context, hash [32]byte, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, stack, error, created_at
		FROM runs
		WHERE hash = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, hashKey(hash), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			id, runErr string
			blob       []byte
			created    int64
		)
		if err := rows.Scan(&id, &blob, &runErr, &created); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run := Run{Hash: hash, Error: runErr, CreatedAt: time.Unix(0, created)}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid run id %q: %w", id, err)
		}
		if err := cbor.Unmarshal(blob, &run.Stack); err != nil {
			return nil, fmt.Errorf("failed to decode stack of run %s: %w", id, err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// Prune deletes programs and runs older than cutoff. It returns the number
// of programs removed.
func (c *Cache) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM programs WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune programs: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff.UnixNano()); err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}

	n, _ := res.RowsAffected()
	return n, nil
}
