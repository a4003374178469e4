package db

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// txState is one open transaction bracket. It lives in the context of the
// task that opened it, so nesting is per task rather than per engine.
type txState struct {
	mu         sync.Mutex
	tx         *sqlx.Tx
	depth      int
	done       bool
	rolledBack bool
	release    func()
	stop       func() bool
}

func txFromContext(ctx context.Context) *txState {
	st, _ := ctx.Value(txKey{}).(*txState)
	return st
}

func (st *txState) active() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return !st.done
}

// Begin opens a transaction bracket and returns the context that carries it.
// Calling Begin again with that context only increments the depth counter;
// no nested SQL transaction is issued.
func (e *Engine) Begin(ctx context.Context) (context.Context, error) {
	if st := txFromContext(ctx); st != nil {
		st.mu.Lock()
		if !st.done {
			st.depth++
			st.mu.Unlock()
			return ctx, nil
		}
		st.mu.Unlock()
	}

	conn, release, err := e.Acquire(ctx)
	if err != nil {
		return ctx, err
	}
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		release()
		return ctx, &StorageError{Op: "begin", Err: err}
	}

	st := &txState{tx: tx, depth: 1, release: release}
	txCtx := context.WithValue(ctx, txKey{}, st)
	// A cancelled task rolls back and gives its connection back to the pool.
	st.stop = context.AfterFunc(ctx, func() {
		_ = e.Rollback(txCtx)
	})
	return txCtx, nil
}

// Commit closes one level of the bracket carried by ctx. Only the outermost
// Commit issues the SQL COMMIT. Without an open bracket it is a no-op.
func (e *Engine) Commit(ctx context.Context) error {
	st := txFromContext(ctx)
	if st == nil {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.done {
		if st.rolledBack {
			return ErrTxRolledBack
		}
		return nil
	}

	st.depth--
	if st.depth > 0 {
		return nil
	}

	st.done = true
	st.stop()
	defer st.release()
	if err := st.tx.Commit(); err != nil {
		return &StorageError{Op: "commit", Err: err}
	}
	return nil
}

// Rollback unwinds the whole bracket carried by ctx, whatever its depth, and
// issues a SQL ROLLBACK. Without an open bracket it is a no-op.
func (e *Engine) Rollback(ctx context.Context) error {
	st := txFromContext(ctx)
	if st == nil {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.done {
		return nil
	}

	st.depth = 0
	st.done = true
	st.rolledBack = true
	st.stop()
	defer st.release()
	if err := st.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return &StorageError{Op: "rollback", Err: err}
	}
	return nil
}

// WithTx runs fn inside a transaction bracket. Any error or panic from fn
// rolls the whole transaction back; otherwise this level is committed.
func (e *Engine) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	txCtx, err := e.Begin(ctx)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			_ = e.Rollback(txCtx)
		}
	}()

	if err := fn(txCtx); err != nil {
		return err
	}

	committed = true
	return e.Commit(txCtx)
}

// TxDepth returns the nesting depth of the bracket carried by ctx, or 0.
func TxDepth(ctx context.Context) int {
	st := txFromContext(ctx)
	if st == nil {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.done {
		return 0
	}
	return st.depth
}
