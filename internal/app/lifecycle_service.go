package app

import (
	"context"
	"fmt"

	"github.com/lazygophers/ccmem/internal/core/memory"
	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/ports/primary"
	"github.com/lazygophers/ccmem/internal/ports/secondary"
)

func validateRange(min, max *int) error {
	for _, p := range []*int{min, max} {
		if p != nil {
			if err := memory.ValidatePriority(*p); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateStatus(status string) error {
	if status != "" && !memory.ValidStatus(status) {
		return fmt.Errorf("%w: unknown status %q", memory.ErrInvalidArgument, status)
	}
	return nil
}

// SearchMemories returns memories whose content contains the query,
// case-sensitively, ordered by priority then recency.
func (s *MemoryServiceImpl) SearchMemories(ctx context.Context, req primary.SearchRequest) ([]*models.Memory, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("%w: query is required", memory.ErrInvalidArgument)
	}
	if err := validateRange(req.PriorityMin, req.PriorityMax); err != nil {
		return nil, err
	}
	if err := validateStatus(req.Status); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = primary.DefaultSearchLimit
	}

	results, err := s.memories.List(ctx, secondary.MemoryFilters{
		Query:       req.Query,
		URIPrefix:   req.URIPrefix,
		PriorityMin: req.PriorityMin,
		PriorityMax: req.PriorityMax,
		Status:      req.Status,
		Limit:       limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search memories: %w", err)
	}
	return results, nil
}

// ListMemories returns a page of memories.
func (s *MemoryServiceImpl) ListMemories(ctx context.Context, req primary.ListRequest) ([]*models.Memory, error) {
	if err := validateRange(req.PriorityMin, req.PriorityMax); err != nil {
		return nil, err
	}
	if err := validateStatus(req.Status); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = primary.DefaultListLimit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	results, err := s.memories.List(ctx, secondary.MemoryFilters{
		URIPrefix:   req.URIPrefix,
		PriorityMin: req.PriorityMin,
		PriorityMax: req.PriorityMax,
		Status:      req.Status,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	return results, nil
}

// GetMemoriesByPriority returns active memories with priority <= maxPriority.
func (s *MemoryServiceImpl) GetMemoriesByPriority(ctx context.Context, maxPriority int) ([]*models.Memory, error) {
	if err := memory.ValidatePriority(maxPriority); err != nil {
		return nil, err
	}
	results, err := s.memories.List(ctx, secondary.MemoryFilters{
		PriorityMax: &maxPriority,
		Status:      models.StatusActive,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load memories by priority: %w", err)
	}
	return results, nil
}

// SetPriority changes the priority of a non-deleted memory.
func (s *MemoryServiceImpl) SetPriority(ctx context.Context, uri string, priority int) (*models.Memory, error) {
	if err := memory.ValidatePriority(priority); err != nil {
		return nil, err
	}
	return s.UpdateMemory(ctx, primary.UpdateMemoryRequest{URI: uri, Priority: &priority})
}

// DeprecateMemory moves an active memory to deprecated and records why.
func (s *MemoryServiceImpl) DeprecateMemory(ctx context.Context, uri, reason string) (*models.Memory, error) {
	return s.transition(ctx, uri, models.StatusDeprecated, memory.CanDeprecate, func(m *models.Memory) {
		if reason != "" {
			m.Metadata = m.Metadata.Merge(map[string]any{"deprecation_reason": reason})
		}
	})
}

// ArchiveMemory moves an active or deprecated memory to archived.
func (s *MemoryServiceImpl) ArchiveMemory(ctx context.Context, uri string) (*models.Memory, error) {
	return s.transition(ctx, uri, models.StatusArchived, memory.CanArchive, nil)
}

// RestoreMemory moves a memory in any other status back to active.
func (s *MemoryServiceImpl) RestoreMemory(ctx context.Context, uri string) (*models.Memory, error) {
	return s.transition(ctx, uri, models.StatusActive, memory.CanRestore, nil)
}

// transition loads the memory in any status, checks the guard and stores
// the new status with its side effects. A missing memory yields nil.
func (s *MemoryServiceImpl) transition(
	ctx context.Context,
	uri, to string,
	guard func(memory.TransitionContext) memory.GuardResult,
	mutate func(m *models.Memory),
) (*models.Memory, error) {
	var out *models.Memory
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		m, err := s.memories.GetByURI(ctx, uri)
		if err != nil || m == nil {
			return err
		}
		if err := guard(memory.TransitionContext{URI: uri, Status: m.Status}).Error(); err != nil {
			return err
		}

		now := s.now()
		result := memory.ApplyTransition(to, m.DeprecatedAt, now)
		m.Status = result.Status
		m.DeprecatedAt = result.DeprecatedAt
		if mutate != nil {
			mutate(m)
		}
		m.UpdatedAt = now
		if err := s.memories.Save(ctx, m); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to move %s to %s: %w", uri, to, err)
	}
	return out, nil
}
