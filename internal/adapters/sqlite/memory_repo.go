// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lazygophers/ccmem/internal/db"
	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/orm"
	"github.com/lazygophers/ccmem/internal/ports/secondary"
)

// MemoryRepository implements secondary.MemoryRepository with SQLite.
type MemoryRepository struct {
	model *orm.Model[models.Memory, *models.Memory]
}

// NewMemoryRepository creates a new SQLite memory repository.
func NewMemoryRepository(engine *db.Engine) *MemoryRepository {
	return &MemoryRepository{model: orm.NewModel[models.Memory](engine, models.MemoriesTable)}
}

// GetByURI retrieves a memory by URI in any status.
func (r *MemoryRepository) GetByURI(ctx context.Context, uri string) (*models.Memory, error) {
	m, err := r.model.First(ctx, orm.Where("uri = ?", uri))
	if err != nil {
		return nil, fmt.Errorf("failed to get memory %s: %w", uri, err)
	}
	return m, nil
}

// GetByID retrieves a memory by ID in any status.
func (r *MemoryRepository) GetByID(ctx context.Context, id int64) (*models.Memory, error) {
	m, err := r.model.First(ctx, orm.Where("id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("failed to get memory %d: %w", id, err)
	}
	return m, nil
}

// Create inserts a memory.
func (r *MemoryRepository) Create(ctx context.Context, memory *models.Memory) error {
	if memory.Metadata == nil {
		memory.Metadata = models.JSONMap{}
	}
	return r.model.Create(ctx, memory)
}

// Save rewrites an existing memory.
func (r *MemoryRepository) Save(ctx context.Context, memory *models.Memory) error {
	return r.model.Save(ctx, memory)
}

// Delete physically removes a memory row.
func (r *MemoryRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.model.Delete(ctx, orm.Where("id = ?", id)); err != nil {
		return err
	}
	return nil
}

// List returns memories matching the filters, most important first.
func (r *MemoryRepository) List(ctx context.Context, filters secondary.MemoryFilters) ([]*models.Memory, error) {
	var conds []string
	var args []any

	if filters.Query != "" {
		conds = append(conds, "instr(content, ?) > 0")
		args = append(args, filters.Query)
	}
	if filters.URIPrefix != "" {
		conds = append(conds, "substr(uri, 1, ?) = ?")
		args = append(args, utf8.RuneCountInString(filters.URIPrefix), filters.URIPrefix)
	}
	if filters.PriorityMin != nil {
		conds = append(conds, "priority >= ?")
		args = append(args, *filters.PriorityMin)
	}
	if filters.PriorityMax != nil {
		conds = append(conds, "priority <= ?")
		args = append(args, *filters.PriorityMax)
	}
	if filters.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filters.Status)
	} else if !filters.IncludeDeleted {
		conds = append(conds, "status != ?")
		args = append(args, models.StatusDeleted)
	}

	q := orm.Query{
		Where:   strings.Join(conds, " AND "),
		Args:    args,
		OrderBy: "priority ASC, updated_at DESC, id DESC",
		Limit:   filters.Limit,
		Offset:  filters.Offset,
	}
	memories, err := r.model.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	return memories, nil
}

// TouchAccess bumps the access counter of a memory.
func (r *MemoryRepository) TouchAccess(ctx context.Context, id int64, at time.Time) error {
	_, err := r.model.Engine().Execute(ctx,
		"UPDATE memories SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?", at, id)
	if err != nil {
		return fmt.Errorf("failed to record access: %w", err)
	}
	return nil
}

// FindByPath returns active memories with an associated path containing substr.
func (r *MemoryRepository) FindByPath(ctx context.Context, substr string, limit int) ([]*models.Memory, error) {
	q := orm.Query{
		Where:   "memories.status = ? AND EXISTS (SELECT 1 FROM memory_paths p WHERE p.memory_id = memories.id AND instr(p.path, ?) > 0)",
		Args:    []any{models.StatusActive, substr},
		OrderBy: "memories.priority ASC, memories.updated_at DESC",
		Limit:   limit,
	}
	memories, err := r.model.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to find memories by path: %w", err)
	}
	return memories, nil
}

// ListUnusedBefore returns active memories not accessed since before.
func (r *MemoryRepository) ListUnusedBefore(ctx context.Context, before time.Time) ([]*models.Memory, error) {
	return r.model.Find(ctx, orm.Where(
		"status = ? AND COALESCE(last_accessed_at, created_at) < ?", models.StatusActive, before))
}

// ListDeprecatedBefore returns memories deprecated before before.
func (r *MemoryRepository) ListDeprecatedBefore(ctx context.Context, before time.Time) ([]*models.Memory, error) {
	return r.model.Find(ctx, orm.Where(
		"status = ? AND deprecated_at IS NOT NULL AND deprecated_at < ?", models.StatusDeprecated, before))
}

// CountByStatus counts memories per status.
func (r *MemoryRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.model.Aggregate(ctx, "status, COUNT(*) AS n", orm.Query{GroupBy: "status"})
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.String("status")] = row.Int64("n")
	}
	return out, nil
}

// CountByPriority counts non-deleted memories per priority.
func (r *MemoryRepository) CountByPriority(ctx context.Context) (map[int]int64, error) {
	rows, err := r.model.Aggregate(ctx, "priority, COUNT(*) AS n", orm.Query{
		Where:   "status != ?",
		Args:    []any{models.StatusDeleted},
		GroupBy: "priority",
	})
	if err != nil {
		return nil, err
	}
	out := make(map[int]int64, len(rows))
	for _, row := range rows {
		out[int(row.Int64("priority"))] = row.Int64("n")
	}
	return out, nil
}

// CountByPrefix counts non-deleted memories under a URI prefix.
func (r *MemoryRepository) CountByPrefix(ctx context.Context, prefix string) (int64, error) {
	return r.model.Count(ctx, orm.Where("status != ? AND substr(uri, 1, ?) = ?",
		models.StatusDeleted, utf8.RuneCountInString(prefix), prefix))
}

var _ secondary.MemoryRepository = (*MemoryRepository)(nil)
