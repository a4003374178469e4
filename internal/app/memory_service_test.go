package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazygophers/ccmem/internal/core/memory"
	"github.com/lazygophers/ccmem/internal/ctxutil"
	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/ports/primary"
)

func TestCreateMemory_Versioning(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const uri = "project://structure"

	first := env.create(t, uri, "monorepo", 1)
	assert.Equal(t, models.StatusActive, first.Status)
	assert.Equal(t, int64(0), first.AccessCount)
	assert.Equal(t, int64(0), env.versionCount(t, uri))

	second := env.create(t, uri, "monorepo with uv", 5)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1), env.versionCount(t, uri))

	v1, err := env.memories.GetVersion(ctx, uri, 1)
	require.NoError(t, err)
	require.NotNil(t, v1)
	assert.Equal(t, "monorepo", v1.Content)
	assert.True(t, first.UpdatedAt.Equal(v1.ChangedAt), "snapshot is dated by the write it replaces")
	assert.Equal(t, ReasonUpdate, v1.ChangeReason)
	assert.Equal(t, ctxutil.DefaultActor, v1.ChangedBy)

	third := env.create(t, uri, "monorepo with uv", 2)
	assert.Equal(t, 2, third.Priority)
	assert.Equal(t, int64(1), env.versionCount(t, uri), "identical content writes no version")
	assert.Equal(t, int64(1), env.count(t, "SELECT COUNT(*) AS n FROM memories WHERE uri = ?", uri))
}

func TestCreateMemory_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  primary.CreateMemoryRequest
	}{
		{"malformed uri", primary.CreateMemoryRequest{URI: "no-scheme", Content: "x"}},
		{"priority too high", primary.CreateMemoryRequest{URI: "task://a", Content: "x", Priority: intPtr(11)}},
		{"priority negative", primary.CreateMemoryRequest{URI: "task://a", Content: "x", Priority: intPtr(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.memories.CreateMemory(ctx, tt.req)
			assert.ErrorIs(t, err, memory.ErrInvalidArgument)
		})
	}
	assert.Equal(t, int64(0), env.count(t, "SELECT COUNT(*) AS n FROM memories"))
}

func TestCreateMemory_RevivesDeleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.create(t, "task://t1", "draft", 5)
	ok, err := env.memories.DeleteMemory(ctx, "task://t1", true)
	require.NoError(t, err)
	require.True(t, ok)

	m := env.create(t, "task://t1", "final", 4)
	assert.Equal(t, models.StatusActive, m.Status)
	assert.Equal(t, "final", m.Content)
	assert.Equal(t, int64(1), env.versionCount(t, "task://t1"))
}

func TestCreateMemory_ChangedByFromContext(t *testing.T) {
	env := newTestEnv(t)
	ctx := ctxutil.WithActor(context.Background(), "import")

	env.create(t, "user://name", "a", 5)
	_, err := env.memories.CreateMemory(ctx, primary.CreateMemoryRequest{URI: "user://name", Content: "b"})
	require.NoError(t, err)

	v, err := env.memories.GetVersion(ctx, "user://name", 1)
	require.NoError(t, err)
	assert.Equal(t, "import", v.ChangedBy)
}

func TestGetMemory_IncrementAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "system://os", "linux", 5)

	m, err := env.memories.GetMemory(ctx, "system://os", true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.AccessCount)
	require.NotNil(t, m.LastAccessedAt)

	m, err = env.memories.GetMemory(ctx, "system://os", false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.AccessCount)

	missing, err := env.memories.GetMemory(ctx, "system://none", true)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateMemory_ContentResolution(t *testing.T) {
	tests := []struct {
		name     string
		req      primary.UpdateMemoryRequest
		want     string
		versions int64
	}{
		{"replace", primary.UpdateMemoryRequest{Content: strPtr("new")}, "new", 1},
		{"append", primary.UpdateMemoryRequest{Content: strPtr("more"), Append: true}, "use go go\nmore", 1},
		{"substring all occurrences", primary.UpdateMemoryRequest{OldText: strPtr("go"), NewText: strPtr("rust")}, "use rust rust", 1},
		{"substring wins over content", primary.UpdateMemoryRequest{Content: strPtr("ignored"), OldText: strPtr("use"), NewText: strPtr("try")}, "try go go", 1},
		{"same content is a no-op", primary.UpdateMemoryRequest{Content: strPtr("use go go")}, "use go go", 0},
		{"missing substring is a no-op", primary.UpdateMemoryRequest{OldText: strPtr("zig"), NewText: strPtr("c")}, "use go go", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.create(t, "workflow://lang", "use go go", 5)

			tt.req.URI = "workflow://lang"
			m, err := env.memories.UpdateMemory(context.Background(), tt.req)
			require.NoError(t, err)
			require.NotNil(t, m)
			assert.Equal(t, tt.want, m.Content)
			assert.Equal(t, models.ContentHash(tt.want), m.ContentHash)
			assert.Equal(t, tt.versions, env.versionCount(t, "workflow://lang"))
		})
	}
}

func TestUpdateMemory_MetadataMergeAndFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.memories.CreateMemory(ctx, primary.CreateMemoryRequest{
		URI:      "user://prefs",
		Content:  "tabs",
		Metadata: map[string]any{"a": "1", "b": "2"},
	})
	require.NoError(t, err)

	m, err := env.memories.UpdateMemory(ctx, primary.UpdateMemoryRequest{
		URI:        "user://prefs",
		Priority:   intPtr(1),
		Disclosure: strPtr("on editor setup"),
		Metadata:   map[string]any{"b": "two", "c": "3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Priority)
	assert.Equal(t, "on editor setup", m.Disclosure)

	reloaded, err := env.memories.GetMemory(ctx, "user://prefs", false)
	require.NoError(t, err)
	assert.Equal(t, models.JSONMap{"a": "1", "b": "two", "c": "3"}, reloaded.Metadata)
	assert.Equal(t, int64(0), env.versionCount(t, "user://prefs"))
}

func TestUpdateMemory_DeletedIsInvisible(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "task://gone", "x", 5)
	_, err := env.memories.DeleteMemory(ctx, "task://gone", true)
	require.NoError(t, err)

	m, err := env.memories.UpdateMemory(ctx, primary.UpdateMemoryRequest{URI: "task://gone", Content: strPtr("y")})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestSetPriority_Range(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "project://p", "x", 5)

	for p := memory.PriorityMin; p <= memory.PriorityMax; p++ {
		m, err := env.memories.SetPriority(ctx, "project://p", p)
		require.NoError(t, err)
		assert.Equal(t, p, m.Priority)
	}
	for _, p := range []int{-1, 11, 100} {
		_, err := env.memories.SetPriority(ctx, "project://p", p)
		assert.ErrorIs(t, err, memory.ErrInvalidPriority)
	}

	m, err := env.memories.GetMemory(ctx, "project://p", false)
	require.NoError(t, err)
	assert.Equal(t, memory.PriorityMax, m.Priority, "rejected priorities do not mutate")
}

func TestDeleteMemory_SoftAndRestore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "task://t1", "todo", 5)

	ok, err := env.memories.DeleteMemory(ctx, "task://t1", true)
	require.NoError(t, err)
	assert.True(t, ok)

	m, err := env.memories.GetMemory(ctx, "task://t1", true)
	require.NoError(t, err)
	assert.Nil(t, m)

	deleted, err := env.memories.ListMemories(ctx, primary.ListRequest{Status: models.StatusDeleted})
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, "task://t1", deleted[0].URI)

	again, err := env.memories.DeleteMemory(ctx, "task://t1", true)
	require.NoError(t, err)
	assert.False(t, again)

	restored, err := env.memories.RestoreMemory(ctx, "task://t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, restored.Status)
	assert.Nil(t, restored.DeprecatedAt)
}

func TestDeleteMemory_HardCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.create(t, "project://a", "one", 5)
	env.create(t, "project://a", "two", 5)
	env.create(t, "project://b", "other", 5)

	_, err := env.memories.AddMemoryPath(ctx, a.ID, "/src/a.go")
	require.NoError(t, err)
	_, err = env.relations.AddRelation(ctx, "project://a", "project://b", models.RelationDependsOn, 0.9)
	require.NoError(t, err)
	_, err = env.relations.AddRelation(ctx, "project://b", "project://a", models.RelationRelatesTo, 0.4)
	require.NoError(t, err)

	ok, err := env.memories.DeleteMemory(ctx, "project://a", false)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, int64(0), env.count(t, "SELECT COUNT(*) AS n FROM memories WHERE id = ?", a.ID))
	assert.Equal(t, int64(0), env.count(t, "SELECT COUNT(*) AS n FROM memory_paths WHERE memory_id = ?", a.ID))
	assert.Equal(t, int64(0), env.count(t, "SELECT COUNT(*) AS n FROM memory_versions WHERE memory_id = ?", a.ID))
	assert.Equal(t, int64(0), env.count(t,
		"SELECT COUNT(*) AS n FROM memory_relations WHERE source_memory_id = ? OR target_memory_id = ?", a.ID, a.ID))

	missing, err := env.memories.DeleteMemory(ctx, "project://a", false)
	require.NoError(t, err)
	assert.False(t, missing)
}

func TestMemoryPaths(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.create(t, "file:///repo/main.go", "entry point", 5)
	env.create(t, "file:///repo/old.go", "legacy", 5)

	added, err := env.memories.AddMemoryPath(ctx, m.ID, "/repo/main.go")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = env.memories.AddMemoryPath(ctx, m.ID, "/repo/main.go")
	require.NoError(t, err)
	assert.False(t, added, "association is idempotent")

	paths, err := env.memories.GetMemoryPaths(ctx, "file:///repo/main.go")
	require.NoError(t, err)
	assert.Equal(t, []string{"/repo/main.go"}, paths)

	found, err := env.memories.FindMemoriesByPath(ctx, "main")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, m.ID, found[0].ID)

	_, err = env.memories.ArchiveMemory(ctx, "file:///repo/main.go")
	require.NoError(t, err)
	found, err = env.memories.FindMemoriesByPath(ctx, "main")
	require.NoError(t, err)
	assert.Empty(t, found, "only active memories are found by path")

	_, err = env.memories.AddMemoryPath(ctx, m.ID, "  ")
	assert.ErrorIs(t, err, memory.ErrInvalidArgument)
}

func TestMemoryService_StorageFailureIsWrapped(t *testing.T) {
	env := newTestEnv(t)
	tx := &mockTransactor{err: errTxFailed}
	env.memories.tx = tx

	_, err := env.memories.CreateMemory(context.Background(), primary.CreateMemoryRequest{URI: "task://x", Content: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errTxFailed)
	assert.Contains(t, err.Error(), "failed to create memory task://x")
	assert.Equal(t, 1, tx.calls)
}
