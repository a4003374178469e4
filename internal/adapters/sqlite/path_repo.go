package sqlite

import (
	"context"

	"github.com/lazygophers/ccmem/internal/db"
	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/orm"
	"github.com/lazygophers/ccmem/internal/ports/secondary"
)

// PathRepository implements secondary.PathRepository with SQLite.
type PathRepository struct {
	model *orm.Model[models.MemoryPath, *models.MemoryPath]
}

// NewPathRepository creates a new SQLite path repository.
func NewPathRepository(engine *db.Engine) *PathRepository {
	return &PathRepository{model: orm.NewModel[models.MemoryPath](engine, models.MemoryPathsTable)}
}

// Add associates a path with a memory unless it already is.
func (r *PathRepository) Add(ctx context.Context, memoryID int64, path string) (bool, error) {
	_, created, err := r.model.CreateIfNotExists(ctx,
		orm.Where("memory_id = ? AND path = ?", memoryID, path),
		&models.MemoryPath{MemoryID: memoryID, Path: path, CreatedAt: models.Now()})
	return created, err
}

// ListByMemory returns the paths of a memory in insertion order.
func (r *PathRepository) ListByMemory(ctx context.Context, memoryID int64) ([]*models.MemoryPath, error) {
	return r.model.Find(ctx, orm.Where("memory_id = ?", memoryID).Order("id ASC"))
}

// DeleteByMemory removes every path of a memory.
func (r *PathRepository) DeleteByMemory(ctx context.Context, memoryID int64) error {
	_, err := r.model.Delete(ctx, orm.Where("memory_id = ?", memoryID))
	return err
}

var _ secondary.PathRepository = (*PathRepository)(nil)
