package primary

import (
	"context"

	"github.com/lazygophers/ccmem/internal/models"
)

// ErrorSolutionService defines the primary port for error-pattern solutions.
type ErrorSolutionService interface {
	// RecordErrorSolution upserts a solution by pattern.
	RecordErrorSolution(ctx context.Context, req RecordSolutionRequest) (*models.ErrorSolution, error)

	// FindErrorSolution returns the best ranked solution whose pattern
	// matches message, or nil.
	FindErrorSolution(ctx context.Context, message string) (*models.ErrorSolution, error)

	// MarkSolutionSuccess records whether applying a solution worked.
	MarkSolutionSuccess(ctx context.Context, id int64, success bool) (bool, error)
}

// RecordSolutionRequest contains parameters for recording a solution.
type RecordSolutionRequest struct {
	Pattern   string
	Solution  string
	ErrorType string
	Source    string
}
