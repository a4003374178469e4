package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/lazygophers/ccmem/internal/core/memory"
	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/ports/primary"
	"github.com/lazygophers/ccmem/internal/ports/secondary"
)

// ErrorSolutionServiceImpl implements the ErrorSolutionService interface.
type ErrorSolutionServiceImpl struct {
	solutions secondary.ErrorSolutionRepository
}

// NewErrorSolutionService creates a new ErrorSolutionService with injected dependencies.
func NewErrorSolutionService(solutions secondary.ErrorSolutionRepository) *ErrorSolutionServiceImpl {
	return &ErrorSolutionServiceImpl{solutions: solutions}
}

// RecordErrorSolution upserts a solution by pattern.
func (s *ErrorSolutionServiceImpl) RecordErrorSolution(ctx context.Context, req primary.RecordSolutionRequest) (*models.ErrorSolution, error) {
	if strings.TrimSpace(req.Pattern) == "" {
		return nil, fmt.Errorf("%w: error pattern is required", memory.ErrInvalidArgument)
	}
	source := req.Source
	if source == "" {
		source = models.SourceLearned
	}
	switch source {
	case models.SourceLearned, models.SourceManual, models.SourceImported:
	default:
		return nil, fmt.Errorf("%w: unknown source %q", memory.ErrInvalidArgument, source)
	}

	now := models.Now()
	solution, err := s.solutions.Upsert(ctx, &models.ErrorSolution{
		ErrorPattern: req.Pattern,
		Solution:     req.Solution,
		ErrorType:    req.ErrorType,
		Source:       source,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record error solution: %w", err)
	}
	return solution, nil
}

// FindErrorSolution returns the best ranked solution whose pattern matches
// message, or nil.
func (s *ErrorSolutionServiceImpl) FindErrorSolution(ctx context.Context, message string) (*models.ErrorSolution, error) {
	if message == "" {
		return nil, nil
	}
	candidates, err := s.solutions.ListRanked(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load error solutions: %w", err)
	}
	for _, c := range candidates {
		if memory.MatchErrorPattern(c.ErrorPattern, message) {
			return c, nil
		}
	}
	return nil, nil
}

// MarkSolutionSuccess records whether applying a solution worked.
func (s *ErrorSolutionServiceImpl) MarkSolutionSuccess(ctx context.Context, id int64, success bool) (bool, error) {
	ok, err := s.solutions.Mark(ctx, id, success, models.Now())
	if err != nil {
		return false, fmt.Errorf("failed to mark solution %d: %w", id, err)
	}
	return ok, nil
}

var _ primary.ErrorSolutionService = (*ErrorSolutionServiceImpl)(nil)
