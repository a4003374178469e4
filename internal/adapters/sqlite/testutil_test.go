// Package sqlite_test contains integration tests for SQLite repositories.
//
// Every test runs against a fresh on-disk database in t.TempDir() built by
// models.InitSchema, the same bootstrap the binary uses.
package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lazygophers/ccmem/internal/db"
	"github.com/lazygophers/ccmem/internal/models"
)

// setupTestDB opens an engine over a temporary database with the full schema.
func setupTestDB(t *testing.T) *db.Engine {
	t.Helper()
	ctx := context.Background()

	engine, err := db.Open(ctx, db.Options{Path: filepath.Join(t.TempDir(), "memory.db")})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := models.InitSchema(ctx, engine); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
	})

	return engine
}

// seedMemory inserts a memory with explicit priority and updated_at.
func seedMemory(t *testing.T, engine *db.Engine, uri, content string, priority int, updated time.Time) int64 {
	t.Helper()
	res, err := engine.Execute(context.Background(), `
		INSERT INTO memories (uri, content, content_hash, priority, status, created_at, updated_at, metadata)
		VALUES (?, ?, ?, ?, 'active', ?, ?, '{}')`,
		uri, content, models.ContentHash(content), priority, updated, updated)
	if err != nil {
		t.Fatalf("failed to seed memory: %v", err)
	}
	return res.LastInsertID
}
