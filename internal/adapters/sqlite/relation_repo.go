package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/lazygophers/ccmem/internal/db"
	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/orm"
	"github.com/lazygophers/ccmem/internal/ports/secondary"
)

// RelationRepository implements secondary.RelationRepository with SQLite.
type RelationRepository struct {
	model *orm.Model[models.MemoryRelation, *models.MemoryRelation]
}

// NewRelationRepository creates a new SQLite relation repository.
func NewRelationRepository(engine *db.Engine) *RelationRepository {
	return &RelationRepository{model: orm.NewModel[models.MemoryRelation](engine, models.MemoryRelationsTable)}
}

// Upsert inserts the edge or updates the strength of the existing triple.
func (r *RelationRepository) Upsert(ctx context.Context, relation *models.MemoryRelation) error {
	q := orm.Where("source_memory_id = ? AND target_memory_id = ? AND relation_type = ?",
		relation.SourceMemoryID, relation.TargetMemoryID, relation.RelationType)

	return r.model.Engine().WithTx(ctx, func(ctx context.Context) error {
		existing, err := r.model.First(ctx, q)
		if err != nil {
			return err
		}
		if existing == nil {
			if err := r.model.Create(ctx, relation); err != nil {
				return fmt.Errorf("failed to create relation: %w", err)
			}
			return nil
		}
		if _, err := r.model.Update(ctx, orm.Where("id = ?", existing.ID),
			map[string]any{"strength": relation.Strength}); err != nil {
			return fmt.Errorf("failed to update relation: %w", err)
		}
		relation.ID = existing.ID
		relation.CreatedAt = existing.CreatedAt
		return nil
	})
}

type relationEdgeRow struct {
	RelationType string    `db:"relation_type"`
	Strength     float64   `db:"strength"`
	OtherURI     string    `db:"other_uri"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r *RelationRepository) edges(ctx context.Context, query string, memoryID int64) ([]*secondary.RelationEdge, error) {
	var rows []relationEdgeRow
	if err := r.model.Engine().Select(ctx, &rows, query, memoryID); err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	out := make([]*secondary.RelationEdge, len(rows))
	for i, row := range rows {
		out[i] = &secondary.RelationEdge{
			RelationType: row.RelationType,
			Strength:     row.Strength,
			OtherURI:     row.OtherURI,
			CreatedAt:    row.CreatedAt,
		}
	}
	return out, nil
}

// ListOutgoing returns edges leaving a memory.
func (r *RelationRepository) ListOutgoing(ctx context.Context, memoryID int64) ([]*secondary.RelationEdge, error) {
	return r.edges(ctx, `
		SELECT r.relation_type, r.strength, m.uri AS other_uri, r.created_at
		FROM memory_relations r JOIN memories m ON m.id = r.target_memory_id
		WHERE r.source_memory_id = ?
		ORDER BY r.strength DESC, r.id ASC`, memoryID)
}

// ListIncoming returns edges entering a memory.
func (r *RelationRepository) ListIncoming(ctx context.Context, memoryID int64) ([]*secondary.RelationEdge, error) {
	return r.edges(ctx, `
		SELECT r.relation_type, r.strength, m.uri AS other_uri, r.created_at
		FROM memory_relations r JOIN memories m ON m.id = r.source_memory_id
		WHERE r.target_memory_id = ?
		ORDER BY r.strength DESC, r.id ASC`, memoryID)
}

// Delete removes edges from source to target.
func (r *RelationRepository) Delete(ctx context.Context, sourceID, targetID int64, relationType string) (int64, error) {
	q := orm.Where("source_memory_id = ? AND target_memory_id = ?", sourceID, targetID)
	if relationType != "" {
		q = orm.Where("source_memory_id = ? AND target_memory_id = ? AND relation_type = ?", sourceID, targetID, relationType)
	}
	return r.model.Delete(ctx, q)
}

// DeleteByMemory removes every edge touching a memory.
func (r *RelationRepository) DeleteByMemory(ctx context.Context, memoryID int64) error {
	_, err := r.model.Delete(ctx, orm.Where("source_memory_id = ? OR target_memory_id = ?", memoryID, memoryID))
	return err
}

// Count counts every edge.
func (r *RelationRepository) Count(ctx context.Context) (int64, error) {
	return r.model.Count(ctx, orm.Query{})
}

var _ secondary.RelationRepository = (*RelationRepository)(nil)
