package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazygophers/ccmem/internal/adapters/sqlite"
	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/ports/secondary"
)

func uris(memories []*models.Memory) []string {
	out := make([]string, len(memories))
	for i, m := range memories {
		out[i] = m.URI
	}
	return out
}

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	engine := setupTestDB(t)
	repo := sqlite.NewMemoryRepository(engine)
	ctx := context.Background()

	now := models.Now()
	m := &models.Memory{
		URI:         "project://structure",
		Content:     "monorepo",
		ContentHash: models.ContentHash("monorepo"),
		Priority:    1,
		Status:      models.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
		Metadata:    models.JSONMap{"team": "core"},
	}
	require.NoError(t, repo.Create(ctx, m))
	require.NotZero(t, m.ID)

	got, err := repo.GetByURI(ctx, "project://structure")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "monorepo", got.Content)
	assert.Equal(t, 1, got.Priority)
	assert.Equal(t, "core", got.Metadata["team"])
	assert.True(t, got.CreatedAt.Equal(now), "created_at round-trips at millisecond precision")
	assert.Nil(t, got.LastAccessedAt)
	assert.Nil(t, got.DeprecatedAt)

	missing, err := repo.GetByURI(ctx, "project://missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.TouchAccess(ctx, m.ID, now))
	got, err = repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.AccessCount)
	require.NotNil(t, got.LastAccessedAt)
	assert.True(t, got.LastAccessedAt.Equal(now))
}

func TestMemoryRepository_DuplicateURIRejected(t *testing.T) {
	engine := setupTestDB(t)
	repo := sqlite.NewMemoryRepository(engine)
	ctx := context.Background()

	now := models.Now()
	require.NoError(t, repo.Create(ctx, &models.Memory{URI: "x://1", Status: models.StatusActive, CreatedAt: now, UpdatedAt: now}))
	err := repo.Create(ctx, &models.Memory{URI: "x://1", Status: models.StatusActive, CreatedAt: now, UpdatedAt: now})
	assert.Error(t, err)
}

func TestMemoryRepository_ListOrdering(t *testing.T) {
	engine := setupTestDB(t)
	repo := sqlite.NewMemoryRepository(engine)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seedMemory(t, engine, "a://A", "auth login", 2, base.Add(10*time.Hour))
	seedMemory(t, engine, "b://B", "login flow", 5, base.Add(11*time.Hour))
	seedMemory(t, engine, "c://C", "login cache", 2, base.Add(9*time.Hour))
	seedMemory(t, engine, "d://D", "Login upper", 1, base)

	got, err := repo.List(ctx, secondary.MemoryFilters{Query: "login", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"a://A", "c://C", "b://B"}, uris(got))

	maxP := 2
	got, err = repo.List(ctx, secondary.MemoryFilters{PriorityMax: &maxP})
	require.NoError(t, err)
	assert.Equal(t, []string{"d://D", "a://A", "c://C"}, uris(got))

	got, err = repo.List(ctx, secondary.MemoryFilters{URIPrefix: "b://"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b://B"}, uris(got))

	got, err = repo.List(ctx, secondary.MemoryFilters{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"a://A", "c://C"}, uris(got))
}

func TestMemoryRepository_ListExcludesDeletedByDefault(t *testing.T) {
	engine := setupTestDB(t)
	repo := sqlite.NewMemoryRepository(engine)
	ctx := context.Background()

	id := seedMemory(t, engine, "task://t1", "todo", 5, models.Now())
	seedMemory(t, engine, "task://t2", "todo", 5, models.Now())
	_, err := engine.Execute(ctx, "UPDATE memories SET status = 'deleted' WHERE id = ?", id)
	require.NoError(t, err)

	got, err := repo.List(ctx, secondary.MemoryFilters{})
	require.NoError(t, err)
	assert.Equal(t, []string{"task://t2"}, uris(got))

	got, err = repo.List(ctx, secondary.MemoryFilters{Status: models.StatusDeleted})
	require.NoError(t, err)
	assert.Equal(t, []string{"task://t1"}, uris(got))
}

func TestMemoryRepository_Counts(t *testing.T) {
	engine := setupTestDB(t)
	repo := sqlite.NewMemoryRepository(engine)
	ctx := context.Background()

	seedMemory(t, engine, "project://a", "a", 1, models.Now())
	seedMemory(t, engine, "project://b", "b", 1, models.Now())
	id := seedMemory(t, engine, "task://c", "c", 5, models.Now())
	_, err := engine.Execute(ctx, "UPDATE memories SET status = 'deleted' WHERE id = ?", id)
	require.NoError(t, err)

	byStatus, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, byStatus[models.StatusActive])
	assert.EqualValues(t, 1, byStatus[models.StatusDeleted])

	byPriority, err := repo.CountByPriority(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]int64{1: 2}, byPriority)

	n, err := repo.CountByPrefix(ctx, "project://")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestMemoryRepository_FindByPath(t *testing.T) {
	engine := setupTestDB(t)
	memories := sqlite.NewMemoryRepository(engine)
	paths := sqlite.NewPathRepository(engine)
	ctx := context.Background()

	id := seedMemory(t, engine, "file://main.go", "entrypoint", 4, models.Now())
	added, err := paths.Add(ctx, id, "/repo/cmd/main.go")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = paths.Add(ctx, id, "/repo/cmd/main.go")
	require.NoError(t, err)
	assert.False(t, added, "adding the same path twice is a no-op")

	got, err := memories.FindByPath(ctx, "cmd/main", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"file://main.go"}, uris(got))

	list, err := paths.ListByMemory(ctx, id)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMemoryRepository_CleanupQueries(t *testing.T) {
	engine := setupTestDB(t)
	repo := sqlite.NewMemoryRepository(engine)
	ctx := context.Background()

	old := models.Now().Add(-40 * 24 * time.Hour)
	seedMemory(t, engine, "task://old", "old", 5, old)
	seedMemory(t, engine, "task://new", "new", 5, models.Now())
	id := seedMemory(t, engine, "task://dep", "dep", 5, old)
	_, err := engine.Execute(ctx, "UPDATE memories SET status = 'deprecated', deprecated_at = ? WHERE id = ?", old, id)
	require.NoError(t, err)

	cutoff := models.Now().Add(-30 * 24 * time.Hour)
	unused, err := repo.ListUnusedBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, []string{"task://old"}, uris(unused))

	deprecated, err := repo.ListDeprecatedBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, []string{"task://dep"}, uris(deprecated))
}
