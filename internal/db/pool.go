package db

import (
	"context"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Acquire checks a connection out of the pool. At most PoolSize connections
// are held at once; callers block (honouring ctx) until one is free. The
// returned release func is idempotent and must be called on every path.
func (e *Engine) Acquire(ctx context.Context) (*sqlx.Conn, func(), error) {
	database, sem, err := e.handle()
	if err != nil {
		return nil, nil, err
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, nil, err
	}

	conn, err := database.Connx(ctx)
	if err != nil {
		sem.Release(1)
		return nil, nil, &StorageError{Op: "acquire", Err: err}
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			conn.Close()
			sem.Release(1)
		})
	}
	return conn, release, nil
}

// WithConn runs fn with a pooled connection and releases it afterwards,
// including when fn panics.
func (e *Engine) WithConn(ctx context.Context, fn func(conn *sqlx.Conn) error) error {
	conn, release, err := e.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(conn)
}
