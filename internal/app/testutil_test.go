package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lazygophers/ccmem/internal/adapters/sqlite"
	"github.com/lazygophers/ccmem/internal/db"
	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/ports/primary"
	"github.com/lazygophers/ccmem/internal/ports/secondary"
)

// fakeClock advances one second on every reading so successive writes get
// distinct, ordered timestamps.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

// testEnv wires every service over a fresh on-disk database.
type testEnv struct {
	engine    *db.Engine
	clock     *fakeClock
	memories  *MemoryServiceImpl
	relations *RelationServiceImpl
	transfer  *TransferServiceImpl
	sessions  *SessionServiceImpl
	solutions *ErrorSolutionServiceImpl
	hooks     *HookServiceImpl
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	engine, err := db.Open(ctx, db.Options{Path: filepath.Join(t.TempDir(), "memory.db")})
	require.NoError(t, err)
	require.NoError(t, models.InitSchema(ctx, engine))
	t.Cleanup(func() { engine.Close() })

	memoryRepo := sqlite.NewMemoryRepository(engine)
	versionRepo := sqlite.NewVersionRepository(engine)
	relationRepo := sqlite.NewRelationRepository(engine)
	pathRepo := sqlite.NewPathRepository(engine)

	clock := newFakeClock()
	memories := NewMemoryService(engine, memoryRepo, versionRepo, relationRepo, pathRepo)
	memories.now = clock.Now
	relations := NewRelationService(engine, memoryRepo, relationRepo)
	transfer := NewTransferService(engine, memories, relations, memoryRepo, versionRepo, relationRepo)
	transfer.now = clock.Now
	sessions := NewSessionService(sqlite.NewSessionRepository(engine))
	solutions := NewErrorSolutionService(sqlite.NewErrorSolutionRepository(engine))
	hooks := NewHookService(engine, memories, sessions, solutions, HookSettings{})
	hooks.now = clock.Now
	hooks.newID = func() string { return "generated-id" }

	return &testEnv{
		engine:    engine,
		clock:     clock,
		memories:  memories,
		relations: relations,
		transfer:  transfer,
		sessions:  sessions,
		solutions: solutions,
		hooks:     hooks,
	}
}

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

// create writes a memory through the service and fails the test on error.
func (e *testEnv) create(t *testing.T, uri, content string, priority int) *models.Memory {
	t.Helper()
	m, err := e.memories.CreateMemory(context.Background(), primary.CreateMemoryRequest{
		URI:      uri,
		Content:  content,
		Priority: intPtr(priority),
	})
	require.NoError(t, err)
	require.NotNil(t, m)
	return m
}

// count runs a COUNT(*) query.
func (e *testEnv) count(t *testing.T, query string, args ...any) int64 {
	t.Helper()
	row, err := e.engine.FetchOne(context.Background(), query, args...)
	require.NoError(t, err)
	return row.Int64("n")
}

func (e *testEnv) versionCount(t *testing.T, uri string) int64 {
	t.Helper()
	return e.count(t, `SELECT COUNT(*) AS n FROM memory_versions v
		JOIN memories m ON m.id = v.memory_id WHERE m.uri = ?`, uri)
}

var errTxFailed = errors.New("database is locked")

// mockTransactor fails every transaction without calling fn.
type mockTransactor struct {
	err   error
	calls int
}

func (m *mockTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	return fn(ctx)
}

var _ secondary.Transactor = (*mockTransactor)(nil)
