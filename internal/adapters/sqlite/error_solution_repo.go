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

// ErrorSolutionRepository implements secondary.ErrorSolutionRepository with SQLite.
type ErrorSolutionRepository struct {
	model *orm.Model[models.ErrorSolution, *models.ErrorSolution]
}

// NewErrorSolutionRepository creates a new SQLite error solution repository.
func NewErrorSolutionRepository(engine *db.Engine) *ErrorSolutionRepository {
	return &ErrorSolutionRepository{model: orm.NewModel[models.ErrorSolution](engine, models.ErrorSolutionsTable)}
}

// Upsert inserts a solution or updates the one with the same pattern. The
// counters of an existing solution are kept.
func (r *ErrorSolutionRepository) Upsert(ctx context.Context, solution *models.ErrorSolution) (*models.ErrorSolution, error) {
	q := orm.Where("error_pattern = ?", solution.ErrorPattern)
	out, _, err := r.model.CreateOrUpdate(ctx, q, solution, map[string]any{
		"solution":   solution.Solution,
		"error_type": solution.ErrorType,
		"source":     solution.Source,
		"updated_at": solution.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record error solution: %w", err)
	}
	return out, nil
}

// GetByID retrieves a solution.
func (r *ErrorSolutionRepository) GetByID(ctx context.Context, id int64) (*models.ErrorSolution, error) {
	return r.model.First(ctx, orm.Where("id = ?", id))
}

// ListRanked returns every solution, most successful first.
func (r *ErrorSolutionRepository) ListRanked(ctx context.Context) ([]*models.ErrorSolution, error) {
	return r.model.Find(ctx, orm.Query{OrderBy: "success_count DESC, failure_count ASC, id ASC"})
}

// Mark bumps the success or failure counter.
func (r *ErrorSolutionRepository) Mark(ctx context.Context, id int64, success bool, at time.Time) (bool, error) {
	column := "failure_count"
	if success {
		column = "success_count"
	}
	res, err := r.model.Engine().Execute(ctx,
		fmt.Sprintf("UPDATE error_solutions SET %s = %s + 1, updated_at = ? WHERE id = ?", column, column), at, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark solution: %w", err)
	}
	return res.RowsAffected > 0, nil
}

var _ secondary.ErrorSolutionRepository = (*ErrorSolutionRepository)(nil)
