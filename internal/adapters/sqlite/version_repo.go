package sqlite

import (
	"context"
	"fmt"

	"github.com/lazygophers/ccmem/internal/db"
	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/orm"
	"github.com/lazygophers/ccmem/internal/ports/secondary"
)

// VersionRepository implements secondary.VersionRepository with SQLite.
type VersionRepository struct {
	model *orm.Model[models.MemoryVersion, *models.MemoryVersion]
}

// NewVersionRepository creates a new SQLite version repository.
func NewVersionRepository(engine *db.Engine) *VersionRepository {
	return &VersionRepository{model: orm.NewModel[models.MemoryVersion](engine, models.MemoryVersionsTable)}
}

// Create inserts a version snapshot.
func (r *VersionRepository) Create(ctx context.Context, version *models.MemoryVersion) error {
	if err := r.model.Create(ctx, version); err != nil {
		return fmt.Errorf("failed to create version: %w", err)
	}
	return nil
}

// NextVersion returns MAX(version)+1 for a memory. Call it inside the
// transaction that inserts the version.
func (r *VersionRepository) NextVersion(ctx context.Context, memoryID int64) (int, error) {
	rows, err := r.model.Aggregate(ctx, "COALESCE(MAX(version), 0) AS v", orm.Where("memory_id = ?", memoryID))
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 1, nil
	}
	return int(rows[0].Int64("v")) + 1, nil
}

// Get returns version n of a memory.
func (r *VersionRepository) Get(ctx context.Context, memoryID int64, n int) (*models.MemoryVersion, error) {
	return r.model.First(ctx, orm.Where("memory_id = ? AND version = ?", memoryID, n))
}

// List returns the versions of a memory newest first.
func (r *VersionRepository) List(ctx context.Context, memoryID int64, limit int) ([]*models.MemoryVersion, error) {
	q := orm.Where("memory_id = ?", memoryID).Order("version DESC")
	q.Limit = limit
	return r.model.Find(ctx, q)
}

// Count counts version rows.
func (r *VersionRepository) Count(ctx context.Context, memoryID int64) (int64, error) {
	if memoryID > 0 {
		return r.model.Count(ctx, orm.Where("memory_id = ?", memoryID))
	}
	return r.model.Count(ctx, orm.Query{})
}

// DeleteByMemory removes every version of a memory.
func (r *VersionRepository) DeleteByMemory(ctx context.Context, memoryID int64) error {
	_, err := r.model.Delete(ctx, orm.Where("memory_id = ?", memoryID))
	return err
}

var _ secondary.VersionRepository = (*VersionRepository)(nil)
