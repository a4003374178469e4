// Package db is the storage engine adapter: an embedded SQLite store with a
// bounded connection pool, WAL durability, task-scoped reentrant transactions,
// schema introspection and a declarative schema manager.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/sync/semaphore"
)

// DriverName is the database/sql driver registered with the connection pragmas.
const DriverName = "sqlite3_ccmem"

const (
	DefaultPoolSize    = 5
	DefaultBusyTimeout = 30 * time.Second
)

// connectionPragmas run on every new physical connection: a 64 MiB page
// cache, in-memory temp storage and a 256 MiB memory map. journal_mode,
// synchronous and busy_timeout travel in the DSN.
var connectionPragmas = []string{
	"PRAGMA cache_size = -65536",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA mmap_size = 268435456",
}

var registerOnce sync.Once

func registerDriver() {
	registerOnce.Do(func() {
		sql.Register(DriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				for _, pragma := range connectionPragmas {
					if _, err := conn.Exec(pragma, nil); err != nil {
						return fmt.Errorf("failed to apply %q: %w", pragma, err)
					}
				}
				return nil
			},
		})
	})
}

// Options configures an Engine.
type Options struct {
	Path        string
	PoolSize    int
	BusyTimeout time.Duration
}

// Engine is the handle over one database file. It is safe for concurrent use;
// create one per process and pass it to the components that need it.
type Engine struct {
	opts Options

	mu  sync.Mutex
	db  *sqlx.DB
	sem *semaphore.Weighted
}

// New returns an unconnected Engine. Zero option values take the defaults.
func New(opts Options) *Engine {
	if opts.PoolSize <= 0 {
		opts.PoolSize = DefaultPoolSize
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = DefaultBusyTimeout
	}
	return &Engine{opts: opts}
}

// Open is New followed by Connect.
func Open(ctx context.Context, opts Options) (*Engine, error) {
	e := New(opts)
	if err := e.Connect(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Path returns the database file path.
func (e *Engine) Path() string {
	return e.opts.Path
}

// PoolSize returns the maximum number of concurrently held connections.
func (e *Engine) PoolSize() int {
	return e.opts.PoolSize
}

func (e *Engine) dsn() string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_busy_timeout", strconv.FormatInt(e.opts.BusyTimeout.Milliseconds(), 10))
	params.Set("_txlock", "immediate")
	return e.opts.Path + "?" + params.Encode()
}

// Connect opens the pool. Calling it on a connected engine is a no-op.
func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db != nil {
		return nil
	}
	if e.opts.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(e.opts.Path), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	registerDriver()

	database, err := sqlx.Open(DriverName, e.dsn())
	if err != nil {
		return &StorageError{Op: "open", Err: err}
	}
	database.SetMaxOpenConns(e.opts.PoolSize)
	database.SetMaxIdleConns(e.opts.PoolSize)

	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return &StorageError{Op: "ping", Err: err}
	}

	e.db = database
	e.sem = semaphore.NewWeighted(int64(e.opts.PoolSize))
	slog.Debug("database connected", "path", e.opts.Path, "pool_size", e.opts.PoolSize)
	return nil
}

// Close closes the pool. Calling it on a closed engine is a no-op.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	e.sem = nil
	if err != nil {
		return &StorageError{Op: "close", Err: err}
	}
	return nil
}

// Connected reports whether Connect has succeeded and Close has not been called.
func (e *Engine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db != nil
}

func (e *Engine) handle() (*sqlx.DB, *semaphore.Weighted, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		return nil, nil, ErrNotConnected
	}
	return e.db, e.sem, nil
}
