package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Result is the side effect of an Execute call.
type Result struct {
	RowsAffected int64
	LastInsertID int64
}

// Row is one result row keyed by column name.
type Row map[string]any

// Int64 returns the column as an int64, or 0 when it is NULL or not numeric.
func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

// String returns the column as a string, or "" when it is NULL.
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
}

// run hands fn the transaction carried by ctx, or a pooled connection when
// there is none. Outside a bracket every statement autocommits.
func (e *Engine) run(ctx context.Context, fn func(ex executor) error) error {
	if st := txFromContext(ctx); st != nil && st.active() {
		return fn(st.tx)
	}
	return e.WithConn(ctx, func(conn *sqlx.Conn) error {
		return fn(conn)
	})
}

// Execute runs a statement that returns no rows.
func (e *Engine) Execute(ctx context.Context, query string, args ...any) (Result, error) {
	var out Result
	err := e.run(ctx, func(ex executor) error {
		res, err := ex.ExecContext(ctx, query, args...)
		if err != nil {
			return &StorageError{Op: "execute", Err: err}
		}
		out.RowsAffected, _ = res.RowsAffected()
		out.LastInsertID, _ = res.LastInsertId()
		return nil
	})
	return out, err
}

// FetchAll returns every row of the query as a Row.
func (e *Engine) FetchAll(ctx context.Context, query string, args ...any) ([]Row, error) {
	var out []Row
	err := e.run(ctx, func(ex executor) error {
		rows, err := ex.QueryxContext(ctx, query, args...)
		if err != nil {
			return &StorageError{Op: "query", Err: err}
		}
		defer rows.Close()

		for rows.Next() {
			row := make(map[string]any)
			if err := rows.MapScan(row); err != nil {
				return &StorageError{Op: "scan", Err: err}
			}
			for k, v := range row {
				if b, ok := v.([]byte); ok {
					row[k] = string(b)
				}
			}
			out = append(out, Row(row))
		}
		if err := rows.Err(); err != nil {
			return &StorageError{Op: "query", Err: err}
		}
		return nil
	})
	return out, err
}

// FetchOne returns the first row of the query, or nil when there is none.
func (e *Engine) FetchOne(ctx context.Context, query string, args ...any) (Row, error) {
	rows, err := e.FetchAll(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Select scans every row into dest, which must be a pointer to a slice of
// structs tagged with `db` column names.
func (e *Engine) Select(ctx context.Context, dest any, query string, args ...any) error {
	return e.run(ctx, func(ex executor) error {
		rows, err := ex.QueryxContext(ctx, query, args...)
		if err != nil {
			return &StorageError{Op: "query", Err: err}
		}
		defer rows.Close()
		if err := sqlx.StructScan(rows, dest); err != nil {
			return &StorageError{Op: "scan", Err: err}
		}
		return nil
	})
}

// Placeholder is the bind parameter marker of the SQLite dialect.
func (e *Engine) Placeholder() string {
	return "?"
}
