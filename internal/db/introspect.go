package db

import (
	"context"
	"fmt"
	"strings"
)

// Column describes a live table column.
type Column struct {
	Name       string
	Type       string
	NotNull    bool
	Default    string
	PrimaryKey bool
}

// Index describes a live index.
type Index struct {
	Name    string
	Unique  bool
	Columns []string
}

// QuoteIdentifier quotes a table, column or index name for the SQLite dialect.
func (e *Engine) QuoteIdentifier(name string) string {
	return QuoteIdentifier(name)
}

// QuoteIdentifier quotes a table, column or index name for the SQLite dialect.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// TableExists reports whether a table with the given name exists.
func (e *Engine) TableExists(ctx context.Context, name string) (bool, error) {
	row, err := e.FetchOne(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", name)
	if err != nil {
		return false, err
	}
	return row != nil, nil
}

// TableColumns returns the columns of a table in declaration order.
func (e *Engine) TableColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := e.FetchAll(ctx, fmt.Sprintf("PRAGMA table_info(%s)", QuoteIdentifier(table)))
	if err != nil {
		return nil, err
	}

	cols := make([]Column, 0, len(rows))
	for _, r := range rows {
		cols = append(cols, Column{
			Name:       r.String("name"),
			Type:       strings.ToUpper(r.String("type")),
			NotNull:    r.Int64("notnull") == 1,
			Default:    r.String("dflt_value"),
			PrimaryKey: r.Int64("pk") > 0,
		})
	}
	return cols, nil
}

// TableIndexes returns the indexes of a table, including automatic ones.
func (e *Engine) TableIndexes(ctx context.Context, table string) ([]Index, error) {
	rows, err := e.FetchAll(ctx, fmt.Sprintf("PRAGMA index_list(%s)", QuoteIdentifier(table)))
	if err != nil {
		return nil, err
	}

	indexes := make([]Index, 0, len(rows))
	for _, r := range rows {
		idx := Index{
			Name:   r.String("name"),
			Unique: r.Int64("unique") == 1,
		}
		info, err := e.FetchAll(ctx, fmt.Sprintf("PRAGMA index_info(%s)", QuoteIdentifier(idx.Name)))
		if err != nil {
			return nil, err
		}
		for _, c := range info {
			idx.Columns = append(idx.Columns, c.String("name"))
		}
		indexes = append(indexes, idx)
	}
	return indexes, nil
}

// IntegrityCheck runs PRAGMA integrity_check and returns its first line,
// "ok" for a healthy database.
func (e *Engine) IntegrityCheck(ctx context.Context) (string, error) {
	row, err := e.FetchOne(ctx, "PRAGMA integrity_check")
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", nil
	}
	return row.String("integrity_check"), nil
}
