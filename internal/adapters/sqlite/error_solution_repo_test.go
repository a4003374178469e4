package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazygophers/ccmem/internal/adapters/sqlite"
	"github.com/lazygophers/ccmem/internal/models"
)

func TestErrorSolutionRepository(t *testing.T) {
	engine := setupTestDB(t)
	repo := sqlite.NewErrorSolutionRepository(engine)
	ctx := context.Background()

	now := models.Now()
	first, err := repo.Upsert(ctx, &models.ErrorSolution{
		ErrorPattern: "timeout", Solution: "retry", Source: models.SourceManual, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	require.NotNil(t, first)

	ok, err := repo.Mark(ctx, first.ID, true, now)
	require.NoError(t, err)
	assert.True(t, ok)

	updated, err := repo.Upsert(ctx, &models.ErrorSolution{
		ErrorPattern: "timeout", Solution: "raise the deadline", Source: models.SourceLearned, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, updated.ID)
	assert.Equal(t, "raise the deadline", updated.Solution)
	assert.EqualValues(t, 1, updated.SuccessCount, "upsert keeps counters")

	second, err := repo.Upsert(ctx, &models.ErrorSolution{ErrorPattern: "refused", Solution: "start server", CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	_, err = repo.Mark(ctx, second.ID, true, now)
	require.NoError(t, err)
	_, err = repo.Mark(ctx, second.ID, true, now)
	require.NoError(t, err)

	ranked, err := repo.ListRanked(ctx)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "refused", ranked[0].ErrorPattern)

	ok, err = repo.Mark(ctx, 999, false, now)
	require.NoError(t, err)
	assert.False(t, ok)
}
