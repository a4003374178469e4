// Package orm maps entity structs onto tables declared with db.Table. Struct
// fields carry `db` tags naming their columns; queries are composed from a
// Query value and bound with sqlx.
package orm

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"

	"github.com/lazygophers/ccmem/internal/db"
)

// Entity is implemented by pointers to entity structs with an integer key.
type Entity interface {
	PrimaryKey() int64
	SetPrimaryKey(id int64)
}

// Query selects rows. Where is a SQL predicate with ? placeholders bound to
// Args; Joins is appended verbatim after the table name.
type Query struct {
	Where   string
	Args    []any
	Joins   string
	GroupBy string
	Having  string
	OrderBy string
	Limit   int
	Offset  int
}

// Where builds a Query with a predicate.
func Where(cond string, args ...any) Query {
	return Query{Where: cond, Args: args}
}

// Order returns a copy of q ordered by the given clause.
func (q Query) Order(by string) Query {
	q.OrderBy = by
	return q
}

// Page returns a copy of q with a limit and offset.
func (q Query) Page(limit, offset int) Query {
	q.Limit = limit
	q.Offset = offset
	return q
}

func (q Query) tail() string {
	var b strings.Builder
	if q.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(q.Where)
	}
	if q.GroupBy != "" {
		b.WriteString(" GROUP BY ")
		b.WriteString(q.GroupBy)
	}
	if q.Having != "" {
		b.WriteString(" HAVING ")
		b.WriteString(q.Having)
	}
	if q.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(q.OrderBy)
	}
	switch {
	case q.Limit > 0:
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	case q.Offset > 0:
		b.WriteString(" LIMIT -1")
	}
	if q.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", q.Offset)
	}
	return b.String()
}

var mapper = reflectx.NewMapperFunc("db", strings.ToLower)

// Model is the table gateway for entity type T.
type Model[T any, PT interface {
	*T
	Entity
}] struct {
	engine *db.Engine
	table  *db.Table
}

// NewModel binds entity type T to a declared table.
func NewModel[T any, PT interface {
	*T
	Entity
}](engine *db.Engine, table *db.Table) *Model[T, PT] {
	return &Model[T, PT]{engine: engine, table: table}
}

// Table returns the table declaration.
func (m *Model[T, PT]) Table() *db.Table {
	return m.table
}

// Engine returns the storage engine the model runs on.
func (m *Model[T, PT]) Engine() *db.Engine {
	return m.engine
}

func (m *Model[T, PT]) quotedTable() string {
	return db.QuoteIdentifier(m.table.Name)
}

func (m *Model[T, PT]) selectList() string {
	cols := m.table.Columns()
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s.%s AS %s", m.quotedTable(), db.QuoteIdentifier(c), db.QuoteIdentifier(c))
	}
	return strings.Join(parts, ", ")
}

func (m *Model[T, PT]) from(q Query) string {
	from := m.quotedTable()
	if q.Joins != "" {
		from += " " + q.Joins
	}
	return from
}

// Create inserts the entity and stores the generated key back into it.
func (m *Model[T, PT]) Create(ctx context.Context, ent PT) error {
	cols := m.table.InsertColumns()
	quoted := make([]string, len(cols))
	named := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = db.QuoteIdentifier(c)
		named[i] = ":" + c
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		m.quotedTable(), strings.Join(quoted, ", "), strings.Join(named, ", "))

	bound, args, err := sqlx.Named(query, ent)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", m.table.Name, err)
	}
	res, err := m.engine.Execute(ctx, bound, args...)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", m.table.Name, err)
	}
	ent.SetPrimaryKey(res.LastInsertID)
	return nil
}

// batchRows bounds the rows of one multi-row INSERT so that the bound
// parameters stay under the SQLite variable limit.
const batchRows = 500

// BatchCreate inserts the entities with multi-row INSERT statements, one per
// batchRows entities, inside one transaction. Generated keys are stored back
// into the entities.
func (m *Model[T, PT]) BatchCreate(ctx context.Context, ents []PT) error {
	if len(ents) == 0 {
		return nil
	}

	cols := m.table.InsertColumns()
	quoted := make([]string, len(cols))
	named := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = db.QuoteIdentifier(c)
		named[i] = ":" + c
	}
	row := "(" + strings.Join(named, ", ") + ")"
	group := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	head := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", m.quotedTable(), strings.Join(quoted, ", "))

	return m.engine.WithTx(ctx, func(ctx context.Context) error {
		for start := 0; start < len(ents); start += batchRows {
			chunk := ents[start:min(start+batchRows, len(ents))]

			groups := make([]string, len(chunk))
			args := make([]any, 0, len(chunk)*len(cols))
			for i, ent := range chunk {
				_, rowArgs, err := sqlx.Named(row, ent)
				if err != nil {
					return fmt.Errorf("failed to bind %s: %w", m.table.Name, err)
				}
				groups[i] = group
				args = append(args, rowArgs...)
			}

			res, err := m.engine.Execute(ctx, head+strings.Join(groups, ", "), args...)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", m.table.Name, err)
			}
			// One statement on a locked table assigns consecutive rowids.
			first := res.LastInsertID - int64(len(chunk)) + 1
			for i, ent := range chunk {
				ent.SetPrimaryKey(first + int64(i))
			}
		}
		return nil
	})
}

// Save inserts an entity without a key and rewrites every column of one
// that has a key.
func (m *Model[T, PT]) Save(ctx context.Context, ent PT) error {
	if ent.PrimaryKey() == 0 {
		return m.Create(ctx, ent)
	}

	pk := m.table.PrimaryKey()
	cols := m.table.InsertColumns()
	sets := make([]string, 0, len(cols))
	for _, c := range cols {
		if c == pk {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = :%s", db.QuoteIdentifier(c), c))
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = :%s",
		m.quotedTable(), strings.Join(sets, ", "), db.QuoteIdentifier(pk), pk)

	bound, args, err := sqlx.Named(query, ent)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", m.table.Name, err)
	}
	if _, err := m.engine.Execute(ctx, bound, args...); err != nil {
		return fmt.Errorf("failed to save %s: %w", m.table.Name, err)
	}
	return nil
}

// Find returns every entity matching q.
func (m *Model[T, PT]) Find(ctx context.Context, q Query) ([]PT, error) {
	query := fmt.Sprintf("SELECT %s FROM %s%s", m.selectList(), m.from(q), q.tail())

	var rows []T
	if err := m.engine.Select(ctx, &rows, query, q.Args...); err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", m.table.Name, err)
	}
	out := make([]PT, len(rows))
	for i := range rows {
		out[i] = PT(&rows[i])
	}
	return out, nil
}

// First returns the first entity matching q, or nil when there is none.
func (m *Model[T, PT]) First(ctx context.Context, q Query) (PT, error) {
	q.Limit = 1
	rows, err := m.Find(ctx, q)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Aggregate runs SELECT <selection> over the table with q's clauses and
// returns the raw rows, for GROUP BY summaries.
func (m *Model[T, PT]) Aggregate(ctx context.Context, selection string, q Query) ([]db.Row, error) {
	query := fmt.Sprintf("SELECT %s FROM %s%s", selection, m.from(q), q.tail())
	rows, err := m.engine.FetchAll(ctx, query, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate %s: %w", m.table.Name, err)
	}
	return rows, nil
}

// Count returns the number of rows matching q.
func (m *Model[T, PT]) Count(ctx context.Context, q Query) (int64, error) {
	q.OrderBy, q.Limit, q.Offset = "", 0, 0
	row, err := m.engine.FetchOne(ctx,
		fmt.Sprintf("SELECT COUNT(*) AS n FROM %s%s", m.from(q), q.tail()), q.Args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", m.table.Name, err)
	}
	return row.Int64("n"), nil
}

// Exists reports whether any row matches q.
func (m *Model[T, PT]) Exists(ctx context.Context, q Query) (bool, error) {
	q.OrderBy, q.Limit, q.Offset = "", 0, 0
	row, err := m.engine.FetchOne(ctx,
		fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s%s) AS found", m.from(q), q.tail()), q.Args...)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", m.table.Name, err)
	}
	return row.Int64("found") == 1, nil
}

// Update sets the given columns on every row matching q and returns the
// number of rows changed. Unknown columns are rejected.
func (m *Model[T, PT]) Update(ctx context.Context, q Query, values map[string]any) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}

	cols := make([]string, 0, len(values))
	for c := range values {
		if _, ok := m.table.Field(c); !ok {
			return 0, fmt.Errorf("unknown column %s.%s", m.table.Name, c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(q.Args))
	for i, c := range cols {
		sets[i] = db.QuoteIdentifier(c) + " = ?"
		args = append(args, values[c])
	}
	args = append(args, q.Args...)

	query := fmt.Sprintf("UPDATE %s SET %s", m.quotedTable(), strings.Join(sets, ", "))
	if q.Where != "" {
		query += " WHERE " + q.Where
	}
	res, err := m.engine.Execute(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update %s: %w", m.table.Name, err)
	}
	return res.RowsAffected, nil
}

// Delete removes every row matching q and returns how many were removed.
func (m *Model[T, PT]) Delete(ctx context.Context, q Query) (int64, error) {
	query := "DELETE FROM " + m.quotedTable()
	if q.Where != "" {
		query += " WHERE " + q.Where
	}
	res, err := m.engine.Execute(ctx, query, q.Args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s: %w", m.table.Name, err)
	}
	return res.RowsAffected, nil
}

// FirstOrCreate returns the first entity matching q, creating ent when there
// is none. The bool reports whether ent was created.
func (m *Model[T, PT]) FirstOrCreate(ctx context.Context, q Query, ent PT) (PT, bool, error) {
	var out PT
	created := false
	err := m.engine.WithTx(ctx, func(ctx context.Context) error {
		found, err := m.First(ctx, q)
		if err != nil {
			return err
		}
		if found != nil {
			out = found
			return nil
		}
		if err := m.Create(ctx, ent); err != nil {
			return err
		}
		out, created = ent, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

// CreateIfNotExists creates ent unless a row matches q. It returns the
// matching row or ent, and whether ent was created.
func (m *Model[T, PT]) CreateIfNotExists(ctx context.Context, q Query, ent PT) (PT, bool, error) {
	return m.FirstOrCreate(ctx, q, ent)
}

// CreateOrUpdate applies values to the rows matching q, or creates ent when
// none match. It returns the first updated row or ent, and whether ent was
// created.
func (m *Model[T, PT]) CreateOrUpdate(ctx context.Context, q Query, ent PT, values map[string]any) (PT, bool, error) {
	var out PT
	created := false
	err := m.engine.WithTx(ctx, func(ctx context.Context) error {
		ok, err := m.Exists(ctx, q)
		if err != nil {
			return err
		}
		if !ok {
			if err := m.Create(ctx, ent); err != nil {
				return err
			}
			out, created = ent, true
			return nil
		}
		if _, err := m.Update(ctx, q, values); err != nil {
			return err
		}
		out, err = m.First(ctx, q)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

// ToMap returns the entity's column values keyed by column name.
func (m *Model[T, PT]) ToMap(ent PT) map[string]any {
	fields := mapper.FieldMap(reflect.ValueOf(ent))
	out := make(map[string]any, len(m.table.Fields))
	for _, c := range m.table.Columns() {
		if v, ok := fields[c]; ok {
			out[c] = v.Interface()
		}
	}
	return out
}
