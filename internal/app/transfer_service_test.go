package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazygophers/ccmem/internal/core/memory"
	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/ports/primary"
)

func exportJSON(t *testing.T, env *testEnv, req primary.ExportRequest) json.RawMessage {
	t.Helper()
	doc, err := env.transfer.ExportMemories(context.Background(), req)
	require.NoError(t, err)
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return raw
}

func TestImportMemories_Merge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "x://1", "alpha", 5)

	res, err := env.transfer.ImportMemories(ctx, primary.ImportRequest{
		Data:     json.RawMessage(`{"version":"1.0","memories":[{"uri":"x://1","content":"beta"}]}`),
		Strategy: primary.StrategyMerge,
	})
	require.NoError(t, err)
	assert.Equal(t, primary.ImportResult{Updated: 1}, *res)

	m, err := env.memories.GetMemory(ctx, "x://1", false)
	require.NoError(t, err)
	assert.Equal(t, "alpha\nbeta", m.Content)

	v1, err := env.memories.GetVersion(ctx, "x://1", 1)
	require.NoError(t, err)
	assert.Equal(t, "alpha", v1.Content)
	assert.Equal(t, "import", v1.ChangedBy)
}

func TestImportMemories_Strategies(t *testing.T) {
	doc := json.RawMessage(`{"version":"1.0","memories":[
		{"uri":"task://old","content":"imported","priority":2},
		{"uri":"task://new","content":"fresh"}
	]}`)

	tests := []struct {
		strategy string
		want     primary.ImportResult
		content  string
		versions int64
	}{
		{primary.StrategySkip, primary.ImportResult{Created: 1, Skipped: 1}, "local", 0},
		{primary.StrategyOverwrite, primary.ImportResult{Created: 1, Updated: 1}, "imported", 1},
		{primary.StrategyMerge, primary.ImportResult{Created: 1, Updated: 1}, "local\nimported", 1},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			env.create(t, "task://old", "local", 5)

			res, err := env.transfer.ImportMemories(ctx, primary.ImportRequest{Data: doc, Strategy: tt.strategy})
			require.NoError(t, err)
			assert.Equal(t, tt.want, *res)

			m, err := env.memories.GetMemory(ctx, "task://old", false)
			require.NoError(t, err)
			assert.Equal(t, tt.content, m.Content)
			assert.Equal(t, tt.versions, env.versionCount(t, "task://old"))

			created, err := env.memories.GetMemory(ctx, "task://new", false)
			require.NoError(t, err)
			require.NotNil(t, created)
			assert.Equal(t, memory.PriorityDefault, created.Priority)
		})
	}
}

func TestImportMemories_MalformedEntries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.transfer.ImportMemories(ctx, primary.ImportRequest{
		Data: json.RawMessage(`{"memories":[
			{"uri":"task://ok","content":"fine"},
			"not an object",
			{"uri":"no scheme","content":"x"},
			{"uri":"task://bad-priority","content":"x","priority":42},
			{"uri":"task://bad-status","content":"x","status":"lost"},
			{"uri":"task://bad-time","content":"x","created_at":"yesterday"}
		]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, primary.ImportResult{Created: 1, Errors: 5}, *res)
	assert.Equal(t, int64(1), env.count(t, "SELECT COUNT(*) AS n FROM memories"))

	_, err = env.transfer.ImportMemories(ctx, primary.ImportRequest{Data: json.RawMessage(`[`)})
	assert.ErrorIs(t, err, memory.ErrInvalidArgument)

	_, err = env.transfer.ImportMemories(ctx, primary.ImportRequest{Data: json.RawMessage(`{}`), Strategy: "replace"})
	assert.ErrorIs(t, err, memory.ErrInvalidArgument)
}

func TestExportMemories_Document(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "project://a", "one", 1)
	env.create(t, "project://a", "two", 1)
	env.create(t, "user://b", "pref", 3)
	_, err := env.relations.AddRelation(ctx, "project://a", "user://b", models.RelationRelatesTo, 0.6)
	require.NoError(t, err)

	doc, err := env.transfer.ExportMemories(ctx, primary.ExportRequest{URIPrefix: "project://", IncludeVersions: true, IncludeRelations: true})
	require.NoError(t, err)
	assert.Equal(t, primary.ExportFormatVersion, doc.Version)
	_, err = time.Parse(time.RFC3339, doc.ExportedAt)
	require.NoError(t, err)

	require.Len(t, doc.Memories, 1)
	entry := doc.Memories[0]
	assert.Equal(t, "project://a", entry.URI)
	assert.Equal(t, "two", entry.Content)
	require.NotNil(t, entry.Priority)
	assert.Equal(t, 1, *entry.Priority)
	require.Len(t, entry.Versions, 1)
	assert.Equal(t, "one", entry.Versions[0].Content)
	require.Len(t, entry.Relations, 1)
	assert.Equal(t, "user://b", entry.Relations[0].TargetURI)

	plain, err := env.transfer.ExportMemories(ctx, primary.ExportRequest{})
	require.NoError(t, err)
	require.Len(t, plain.Memories, 2)
	assert.Empty(t, plain.Memories[0].Versions)
	assert.Empty(t, plain.Memories[0].Relations)
}

type memoryRow struct {
	URI, Content, Disclosure, Status, Metadata string
	Priority                                   int64
	CreatedAt, UpdatedAt, DeprecatedAt         string
}

func memoryProjection(t *testing.T, env *testEnv) []memoryRow {
	t.Helper()
	rows, err := env.engine.FetchAll(context.Background(), `
		SELECT uri, content, disclosure, status, metadata, priority, created_at, updated_at, deprecated_at
		FROM memories ORDER BY uri`)
	require.NoError(t, err)
	out := make([]memoryRow, len(rows))
	for i, r := range rows {
		out[i] = memoryRow{
			URI: r.String("uri"), Content: r.String("content"), Disclosure: r.String("disclosure"),
			Status: r.String("status"), Metadata: r.String("metadata"), Priority: r.Int64("priority"),
			CreatedAt: r.String("created_at"), UpdatedAt: r.String("updated_at"), DeprecatedAt: r.String("deprecated_at"),
		}
	}
	return out
}

func projection(t *testing.T, env *testEnv, query string) []string {
	t.Helper()
	rows, err := env.engine.FetchAll(context.Background(), query)
	require.NoError(t, err)
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.String("p")
	}
	return out
}

func TestExportImport_RoundTrip(t *testing.T) {
	src := newTestEnv(t)
	ctx := context.Background()
	src.create(t, "project://a", "one", 1)
	src.create(t, "project://a", "two", 1)
	_, err := src.memories.RollbackToVersion(ctx, "project://a", 1, "")
	require.NoError(t, err)
	src.create(t, "user://b", "pref", 3)
	src.create(t, "task://c", "todo", 7)
	_, err = src.memories.DeprecateMemory(ctx, "user://b", "stale")
	require.NoError(t, err)
	_, err = src.memories.DeleteMemory(ctx, "task://c", true)
	require.NoError(t, err)
	_, err = src.relations.AddRelation(ctx, "project://a", "user://b", models.RelationDependsOn, 0.8)
	require.NoError(t, err)
	_, err = src.relations.AddRelation(ctx, "user://b", "project://a", models.RelationContradicts, 0.1)
	require.NoError(t, err)
	src.create(t, "task://d", "done", 5)
	_, err = src.relations.AddRelation(ctx, "project://a", "task://d", models.RelationRelatesTo, 0.4)
	require.NoError(t, err)
	_, err = src.memories.DeleteMemory(ctx, "task://d", true)
	require.NoError(t, err)

	raw := exportJSON(t, src, primary.ExportRequest{IncludeVersions: true, IncludeRelations: true})

	dst := newTestEnv(t)
	res, err := dst.transfer.ImportMemories(ctx, primary.ImportRequest{Data: raw, Strategy: primary.StrategyOverwrite})
	require.NoError(t, err)
	assert.Equal(t, primary.ImportResult{Created: 4}, *res)

	assert.Equal(t, memoryProjection(t, src), memoryProjection(t, dst))

	const versions = `SELECT m.uri || '|' || v.version || '|' || v.content || '|' || v.changed_at || '|' || v.change_reason AS p
		FROM memory_versions v JOIN memories m ON m.id = v.memory_id ORDER BY m.uri, v.version`
	assert.Equal(t, projection(t, src, versions), projection(t, dst, versions))

	const relations = `SELECT s.uri || '>' || d.uri || '|' || r.relation_type || '|' || r.strength AS p
		FROM memory_relations r
		JOIN memories s ON s.id = r.source_memory_id
		JOIN memories d ON d.id = r.target_memory_id ORDER BY p`
	assert.Equal(t, projection(t, src, relations), projection(t, dst, relations))
	assert.Len(t, projection(t, dst, relations), 3)
}

func TestImportMemories_RelationToMissingMemoryIsError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	raw := []byte(`{"version":"1.0","memories":[{"uri":"project://a","content":"x",
		"relations":[{"relation_type":"depends_on","strength":0.5,"direction":"out","target_uri":"project://gone"}]}]}`)
	res, err := env.transfer.ImportMemories(ctx, primary.ImportRequest{Data: raw})
	require.NoError(t, err)
	assert.Equal(t, primary.ImportResult{Created: 1, Errors: 1}, *res)

	count, err := env.engine.FetchOne(ctx, "SELECT COUNT(*) AS n FROM memory_relations")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count.Int64("n"))
}

func TestGetStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "project://a", "1", 1)
	env.create(t, "project://a", "2", 1)
	env.create(t, "project://b", "x", 5)
	env.create(t, "user://c", "x", 5)
	env.create(t, "custom://d", "x", 9)
	env.create(t, "task://e", "x", 5)
	_, err := env.memories.DeprecateMemory(ctx, "user://c", "")
	require.NoError(t, err)
	_, err = env.memories.ArchiveMemory(ctx, "custom://d")
	require.NoError(t, err)
	_, err = env.memories.DeleteMemory(ctx, "task://e", true)
	require.NoError(t, err)
	_, err = env.relations.AddRelation(ctx, "project://a", "project://b", models.RelationRelatesTo, 0.5)
	require.NoError(t, err)

	stats, err := env.transfer.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(2), stats.Active)
	assert.Equal(t, int64(1), stats.Deprecated)
	assert.Equal(t, int64(1), stats.Archived)
	assert.Equal(t, map[int]int64{1: 1, 5: 2, 9: 1}, stats.ByPriority)
	assert.Equal(t, int64(2), stats.ByURIPrefix["project"])
	assert.Equal(t, int64(1), stats.ByURIPrefix["user"])
	assert.Equal(t, int64(0), stats.ByURIPrefix["task"])
	assert.NotContains(t, stats.ByURIPrefix, "custom")
	assert.Len(t, stats.ByURIPrefix, len(memory.KnownSchemes))
	assert.Equal(t, int64(1), stats.VersionsCount)
	assert.Equal(t, int64(1), stats.RelationsCount)
}

func TestCleanMemories(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "task://unused", "x", 5)
	env.create(t, "task://used", "x", 5)
	env.create(t, "task://stale", "x", 5)
	_, err := env.memories.DeprecateMemory(ctx, "task://stale", "old")
	require.NoError(t, err)

	// Forty days later only task://used is read.
	env.clock.t = env.clock.t.AddDate(0, 0, 40)
	_, err = env.memories.GetMemory(ctx, "task://used", true)
	require.NoError(t, err)
	// Never read: created_at stands in for last_accessed_at.
	env.create(t, "task://fresh", "x", 5)

	never, err := env.memories.GetMemory(ctx, "task://unused", false)
	require.NoError(t, err)
	require.Nil(t, never.LastAccessedAt)

	req := primary.CleanRequest{UnusedDays: intPtr(30), DeprecatedDays: intPtr(30), DryRun: true}
	res, err := env.transfer.CleanMemories(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, primary.CleanResult{Archived: 1, Cleaned: 1, DryRun: true}, *res)

	m, err := env.memories.GetMemory(ctx, "task://unused", false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, m.Status, "dry run does not mutate")

	req.DryRun = false
	res, err = env.transfer.CleanMemories(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, primary.CleanResult{Archived: 1, Cleaned: 1}, *res)

	m, err = env.memories.GetMemory(ctx, "task://unused", false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusArchived, m.Status)
	m, err = env.memories.GetMemory(ctx, "task://stale", false)
	require.NoError(t, err)
	assert.Nil(t, m, "stale deprecated memory is soft-deleted")
	m, err = env.memories.GetMemory(ctx, "task://used", false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, m.Status)
	m, err = env.memories.GetMemory(ctx, "task://fresh", false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, m.Status, "recently created memory is kept")

	res, err = env.transfer.CleanMemories(ctx, primary.CleanRequest{})
	require.NoError(t, err)
	assert.Equal(t, primary.CleanResult{}, *res)

	_, err = env.transfer.CleanMemories(ctx, primary.CleanRequest{UnusedDays: intPtr(-1)})
	assert.ErrorIs(t, err, memory.ErrInvalidArgument)
}
