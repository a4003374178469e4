package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// FieldType is the declared SQL type of a column.
type FieldType string

const (
	TypeInteger  FieldType = "INTEGER"
	TypeReal     FieldType = "REAL"
	TypeText     FieldType = "TEXT"
	TypeDateTime FieldType = "DATETIME"
)

// Field declares one column. Default is a SQL literal ("0", "'active'").
type Field struct {
	Name          string
	Type          FieldType
	PrimaryKey    bool
	AutoIncrement bool
	Unique        bool
	Nullable      bool
	Index         bool
	Default       string
}

// Table declares an entity table. UniqueTogether lists column groups that
// are unique as a whole; each becomes a unique index uq_<table>_<cols>.
type Table struct {
	Name           string
	Fields         []Field
	UniqueTogether [][]string
}

// Columns returns every column name in declaration order.
func (t *Table) Columns() []string {
	cols := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		cols[i] = f.Name
	}
	return cols
}

// InsertColumns returns the columns written on insert: all but an
// auto-increment primary key.
func (t *Table) InsertColumns() []string {
	cols := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		if f.PrimaryKey && f.AutoIncrement {
			continue
		}
		cols = append(cols, f.Name)
	}
	return cols
}

// PrimaryKey returns the primary key column name.
func (t *Table) PrimaryKey() string {
	for _, f := range t.Fields {
		if f.PrimaryKey {
			return f.Name
		}
	}
	return ""
}

// Field looks up a declared field by name.
func (t *Table) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// IndexName is the managed secondary index name for a field.
func (t *Table) IndexName(field string) string {
	return "idx_" + t.Name + "_" + field
}

// UniqueIndexName is the managed unique index name for a column group.
func (t *Table) UniqueIndexName(cols []string) string {
	return "uq_" + t.Name + "_" + strings.Join(cols, "_")
}

func (f Field) definition() string {
	var b strings.Builder
	b.WriteString(QuoteIdentifier(f.Name))
	b.WriteString(" ")
	b.WriteString(string(f.Type))
	if f.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
		if f.AutoIncrement {
			b.WriteString(" AUTOINCREMENT")
		}
	}
	if !f.Nullable && !f.PrimaryKey {
		b.WriteString(" NOT NULL")
	}
	if f.Unique && !f.PrimaryKey {
		b.WriteString(" UNIQUE")
	}
	if f.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(f.Default)
	}
	return b.String()
}

// addDefinition is the column definition for ALTER TABLE ADD COLUMN, which
// cannot add UNIQUE or PRIMARY KEY columns nor NOT NULL without a default.
func (f Field) addDefinition() string {
	var b strings.Builder
	b.WriteString(QuoteIdentifier(f.Name))
	b.WriteString(" ")
	b.WriteString(string(f.Type))
	if !f.Nullable && f.Default != "" {
		b.WriteString(" NOT NULL")
	}
	if f.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(f.Default)
	}
	return b.String()
}

func (t *Table) createSQL(ifNotExists bool) []string {
	defs := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		defs[i] = "\t" + f.definition()
	}

	exists := ""
	if ifNotExists {
		exists = "IF NOT EXISTS "
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE %s%s (\n%s\n)",
		exists, QuoteIdentifier(t.Name), strings.Join(defs, ",\n"))}
	for _, f := range t.Fields {
		if f.Index {
			stmts = append(stmts, t.indexSQL(f.Name))
		}
	}
	for _, cols := range t.UniqueTogether {
		stmts = append(stmts, t.uniqueSQL(cols))
	}
	return stmts
}

func (t *Table) indexSQL(field string) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		QuoteIdentifier(t.IndexName(field)), QuoteIdentifier(t.Name), QuoteIdentifier(field))
}

func (t *Table) uniqueSQL(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdentifier(c)
	}
	return fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)",
		QuoteIdentifier(t.UniqueIndexName(cols)), QuoteIdentifier(t.Name), strings.Join(quoted, ", "))
}

// SchemaSQL renders the complete DDL for the given tables. It is the single
// source of truth for the schema; tests and `doctor` print it.
func SchemaSQL(tables ...*Table) string {
	var b strings.Builder
	for _, t := range tables {
		for _, stmt := range t.createSQL(true) {
			b.WriteString(stmt)
			b.WriteString(";\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// CreateTable creates the table and its managed indexes.
func (e *Engine) CreateTable(ctx context.Context, t *Table, ifNotExists bool) error {
	for _, stmt := range t.createSQL(ifNotExists) {
		if _, err := e.Execute(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.Name, err)
		}
	}
	return nil
}

// MigrateTable brings a live table in line with its declaration: missing
// columns are added, missing managed indexes are created and orphaned
// idx_<table>_* indexes are dropped. SQLite cannot retype a column in place,
// so type differences are logged and skipped. A missing table is created.
func (e *Engine) MigrateTable(ctx context.Context, t *Table) error {
	exists, err := e.TableExists(ctx, t.Name)
	if err != nil {
		return err
	}
	if !exists {
		return e.CreateTable(ctx, t, true)
	}

	live, err := e.TableColumns(ctx, t.Name)
	if err != nil {
		return err
	}
	liveCols := make(map[string]Column, len(live))
	for _, c := range live {
		liveCols[c.Name] = c
	}

	for _, f := range t.Fields {
		col, ok := liveCols[f.Name]
		if !ok {
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", QuoteIdentifier(t.Name), f.addDefinition())
			if _, err := e.Execute(ctx, stmt); err != nil {
				return fmt.Errorf("failed to add column %s.%s: %w", t.Name, f.Name, err)
			}
			slog.Info("column added", "table", t.Name, "column", f.Name)
			if f.Unique {
				if _, err := e.Execute(ctx, t.uniqueSQL([]string{f.Name})); err != nil {
					return fmt.Errorf("failed to add unique index on %s.%s: %w", t.Name, f.Name, err)
				}
			}
			continue
		}
		if col.Type != string(f.Type) {
			slog.Debug("column type differs, skipped", "table", t.Name, "column", f.Name,
				"live", col.Type, "declared", f.Type)
		}
	}

	indexes, err := e.TableIndexes(ctx, t.Name)
	if err != nil {
		return err
	}
	liveIdx := make(map[string]bool, len(indexes))
	for _, idx := range indexes {
		liveIdx[idx.Name] = true
	}

	wanted := make(map[string]bool)
	for _, f := range t.Fields {
		if !f.Index {
			continue
		}
		name := t.IndexName(f.Name)
		wanted[name] = true
		if !liveIdx[name] {
			if _, err := e.Execute(ctx, t.indexSQL(f.Name)); err != nil {
				return fmt.Errorf("failed to create index %s: %w", name, err)
			}
			slog.Info("index created", "table", t.Name, "index", name)
		}
	}
	for _, cols := range t.UniqueTogether {
		if !liveIdx[t.UniqueIndexName(cols)] {
			if _, err := e.Execute(ctx, t.uniqueSQL(cols)); err != nil {
				return fmt.Errorf("failed to create unique index on %s: %w", t.Name, err)
			}
		}
	}

	prefix := "idx_" + t.Name + "_"
	for _, idx := range indexes {
		if strings.HasPrefix(idx.Name, prefix) && !wanted[idx.Name] {
			if _, err := e.Execute(ctx, "DROP INDEX IF EXISTS "+QuoteIdentifier(idx.Name)); err != nil {
				return fmt.Errorf("failed to drop index %s: %w", idx.Name, err)
			}
			slog.Info("orphaned index dropped", "table", t.Name, "index", idx.Name)
		}
	}

	return nil
}

// Init creates or migrates every table. It is idempotent and safe to call on
// every start.
func (e *Engine) Init(ctx context.Context, tables ...*Table) error {
	if err := e.Connect(ctx); err != nil {
		return err
	}
	for _, t := range tables {
		if err := e.MigrateTable(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
