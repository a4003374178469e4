package models

import (
	"context"

	"github.com/lazygophers/ccmem/internal/db"
)

// MemoriesTable declares the memories table.
var MemoriesTable = &db.Table{
	Name: "memories",
	Fields: []db.Field{
		{Name: "id", Type: db.TypeInteger, PrimaryKey: true, AutoIncrement: true},
		{Name: "uri", Type: db.TypeText, Unique: true, Index: true},
		{Name: "content", Type: db.TypeText, Default: "''"},
		{Name: "content_hash", Type: db.TypeText, Default: "''"},
		{Name: "priority", Type: db.TypeInteger, Index: true, Default: "5"},
		{Name: "disclosure", Type: db.TypeText, Default: "''"},
		{Name: "status", Type: db.TypeText, Index: true, Default: "'active'"},
		{Name: "access_count", Type: db.TypeInteger, Default: "0"},
		{Name: "last_accessed_at", Type: db.TypeDateTime, Nullable: true},
		{Name: "created_at", Type: db.TypeDateTime},
		{Name: "updated_at", Type: db.TypeDateTime, Index: true},
		{Name: "deprecated_at", Type: db.TypeDateTime, Nullable: true},
		{Name: "metadata", Type: db.TypeText, Default: "'{}'"},
	},
}

// MemoryPathsTable declares the memory_paths table.
var MemoryPathsTable = &db.Table{
	Name: "memory_paths",
	Fields: []db.Field{
		{Name: "id", Type: db.TypeInteger, PrimaryKey: true, AutoIncrement: true},
		{Name: "memory_id", Type: db.TypeInteger, Index: true},
		{Name: "path", Type: db.TypeText, Index: true},
		{Name: "created_at", Type: db.TypeDateTime},
	},
	UniqueTogether: [][]string{{"memory_id", "path"}},
}

// MemoryVersionsTable declares the memory_versions table.
var MemoryVersionsTable = &db.Table{
	Name: "memory_versions",
	Fields: []db.Field{
		{Name: "id", Type: db.TypeInteger, PrimaryKey: true, AutoIncrement: true},
		{Name: "memory_id", Type: db.TypeInteger, Index: true},
		{Name: "version", Type: db.TypeInteger},
		{Name: "content", Type: db.TypeText, Default: "''"},
		{Name: "changed_at", Type: db.TypeDateTime},
		{Name: "change_reason", Type: db.TypeText, Default: "''"},
		{Name: "changed_by", Type: db.TypeText, Default: "'user'"},
	},
	UniqueTogether: [][]string{{"memory_id", "version"}},
}

// MemoryRelationsTable declares the memory_relations table.
var MemoryRelationsTable = &db.Table{
	Name: "memory_relations",
	Fields: []db.Field{
		{Name: "id", Type: db.TypeInteger, PrimaryKey: true, AutoIncrement: true},
		{Name: "source_memory_id", Type: db.TypeInteger, Index: true},
		{Name: "target_memory_id", Type: db.TypeInteger, Index: true},
		{Name: "relation_type", Type: db.TypeText, Default: "'relates_to'"},
		{Name: "strength", Type: db.TypeReal, Default: "0.5"},
		{Name: "created_at", Type: db.TypeDateTime},
	},
	UniqueTogether: [][]string{{"source_memory_id", "target_memory_id", "relation_type"}},
}

// SessionsTable declares the sessions table.
var SessionsTable = &db.Table{
	Name: "sessions",
	Fields: []db.Field{
		{Name: "id", Type: db.TypeInteger, PrimaryKey: true, AutoIncrement: true},
		{Name: "session_id", Type: db.TypeText, Unique: true},
		{Name: "project_dir", Type: db.TypeText, Default: "''"},
		{Name: "project_name", Type: db.TypeText, Default: "''"},
		{Name: "started_at", Type: db.TypeDateTime},
		{Name: "ended_at", Type: db.TypeDateTime, Nullable: true},
		{Name: "summary", Type: db.TypeText, Default: "''"},
		{Name: "memories_created", Type: db.TypeInteger, Default: "0"},
		{Name: "memories_accessed", Type: db.TypeInteger, Default: "0"},
		{Name: "operations_count", Type: db.TypeInteger, Default: "0"},
	},
}

// ErrorSolutionsTable declares the error_solutions table.
var ErrorSolutionsTable = &db.Table{
	Name: "error_solutions",
	Fields: []db.Field{
		{Name: "id", Type: db.TypeInteger, PrimaryKey: true, AutoIncrement: true},
		{Name: "error_pattern", Type: db.TypeText, Unique: true},
		{Name: "solution", Type: db.TypeText, Default: "''"},
		{Name: "error_type", Type: db.TypeText, Index: true, Default: "''"},
		{Name: "source", Type: db.TypeText, Default: "'learned'"},
		{Name: "success_count", Type: db.TypeInteger, Default: "0"},
		{Name: "failure_count", Type: db.TypeInteger, Default: "0"},
		{Name: "created_at", Type: db.TypeDateTime},
		{Name: "updated_at", Type: db.TypeDateTime},
	},
}

// Tables returns every table of the store in creation order.
func Tables() []*db.Table {
	return []*db.Table{
		MemoriesTable,
		MemoryPathsTable,
		MemoryVersionsTable,
		MemoryRelationsTable,
		SessionsTable,
		ErrorSolutionsTable,
	}
}

// Migrations returns the data migrations applied after the schema.
func Migrations() []db.Migration {
	return []db.Migration{
		{
			Version: 1,
			Name:    "backfill_content_hash",
			Up:      backfillContentHash,
		},
	}
}

func backfillContentHash(ctx context.Context, e *db.Engine) error {
	rows, err := e.FetchAll(ctx, "SELECT id, content FROM memories WHERE content_hash = '' OR content_hash IS NULL")
	if err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := e.Execute(ctx, "UPDATE memories SET content_hash = ? WHERE id = ?",
			ContentHash(r.String("content")), r.Int64("id")); err != nil {
			return err
		}
	}
	return nil
}

// InitSchema creates or migrates every table and runs pending data
// migrations. It is idempotent.
func InitSchema(ctx context.Context, e *db.Engine) error {
	if err := e.Init(ctx, Tables()...); err != nil {
		return err
	}
	return e.RunMigrations(ctx, Migrations())
}
