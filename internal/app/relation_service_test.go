package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazygophers/ccmem/internal/core/memory"
	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/ports/primary"
)

func TestAddRelation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "project://api", "rest api", 5)
	env.create(t, "project://db", "sqlite", 5)

	rel, err := env.relations.AddRelation(ctx, "project://api", "project://db", models.RelationDependsOn, 0.7)
	require.NoError(t, err)
	require.NotNil(t, rel)

	again, err := env.relations.AddRelation(ctx, "project://api", "project://db", models.RelationDependsOn, 0.9)
	require.NoError(t, err)
	assert.Equal(t, rel.ID, again.ID, "same triple updates strength")
	assert.Equal(t, int64(1), env.count(t, "SELECT COUNT(*) AS n FROM memory_relations"))

	out, err := env.relations.GetRelations(ctx, "project://api", primary.DirectionOut)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, primary.RelationInfo{
		RelationType: models.RelationDependsOn,
		Strength:     0.9,
		Direction:    primary.DirectionOut,
		TargetURI:    "project://db",
	}, out[0])
}

func TestAddRelation_MissingEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "project://api", "rest api", 5)
	env.create(t, "project://gone", "x", 5)
	_, err := env.memories.DeleteMemory(ctx, "project://gone", true)
	require.NoError(t, err)

	for _, dst := range []string{"project://none", "project://gone"} {
		rel, err := env.relations.AddRelation(ctx, "project://api", dst, models.RelationRelatesTo, 0.5)
		require.NoError(t, err)
		assert.Nil(t, rel)
	}
	assert.Equal(t, int64(0), env.count(t, "SELECT COUNT(*) AS n FROM memory_relations"))
}

func TestAddRelation_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		relType  string
		strength float64
	}{
		{"unknown type", "likes", 0.5},
		{"strength above one", models.RelationRelatesTo, 1.5},
		{"negative strength", models.RelationRelatesTo, -0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.relations.AddRelation(ctx, "a://1", "a://2", tt.relType, tt.strength)
			assert.ErrorIs(t, err, memory.ErrInvalidArgument)
		})
	}
}

func TestGetRelations_Directions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "task://a", "a", 5)
	env.create(t, "task://b", "b", 5)
	env.create(t, "task://c", "c", 5)
	_, err := env.relations.AddRelation(ctx, "task://a", "task://b", models.RelationEvolvesFrom, 0.5)
	require.NoError(t, err)
	_, err = env.relations.AddRelation(ctx, "task://c", "task://a", models.RelationContradicts, 0.2)
	require.NoError(t, err)

	both, err := env.relations.GetRelations(ctx, "task://a", primary.DirectionBoth)
	require.NoError(t, err)
	require.Len(t, both, 2)
	assert.Equal(t, primary.DirectionOut, both[0].Direction)
	assert.Equal(t, "task://b", both[0].TargetURI)
	assert.Equal(t, primary.DirectionIn, both[1].Direction)
	assert.Equal(t, "task://c", both[1].SourceURI)

	in, err := env.relations.GetRelations(ctx, "task://a", primary.DirectionIn)
	require.NoError(t, err)
	assert.Len(t, in, 1)

	none, err := env.relations.GetRelations(ctx, "task://missing", "")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = env.relations.GetRelations(ctx, "task://a", "sideways")
	assert.ErrorIs(t, err, memory.ErrInvalidArgument)
}

func TestRemoveRelation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "task://a", "a", 5)
	env.create(t, "task://b", "b", 5)
	for _, rt := range []string{models.RelationRelatesTo, models.RelationDependsOn} {
		_, err := env.relations.AddRelation(ctx, "task://a", "task://b", rt, 0.5)
		require.NoError(t, err)
	}

	ok, err := env.relations.RemoveRelation(ctx, "task://a", "task://b", models.RelationDependsOn)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), env.count(t, "SELECT COUNT(*) AS n FROM memory_relations"))

	ok, err = env.relations.RemoveRelation(ctx, "task://a", "task://b", "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.relations.RemoveRelation(ctx, "task://a", "task://b", "")
	require.NoError(t, err)
	assert.False(t, ok)
}
