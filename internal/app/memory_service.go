package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lazygophers/ccmem/internal/core/memory"
	"github.com/lazygophers/ccmem/internal/ctxutil"
	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/ports/primary"
	"github.com/lazygophers/ccmem/internal/ports/secondary"
)

// ReasonUpdate is the change reason of snapshots written by ordinary writes.
const ReasonUpdate = "update"

// MemoryServiceImpl implements the MemoryService interface.
type MemoryServiceImpl struct {
	tx        secondary.Transactor
	memories  secondary.MemoryRepository
	versions  secondary.VersionRepository
	relations secondary.RelationRepository
	paths     secondary.PathRepository
	now       func() time.Time
}

// NewMemoryService creates a new MemoryService with injected dependencies.
func NewMemoryService(
	tx secondary.Transactor,
	memories secondary.MemoryRepository,
	versions secondary.VersionRepository,
	relations secondary.RelationRepository,
	paths secondary.PathRepository,
) *MemoryServiceImpl {
	return &MemoryServiceImpl{
		tx:        tx,
		memories:  memories,
		versions:  versions,
		relations: relations,
		paths:     paths,
		now:       models.Now,
	}
}

// visible returns the memory unless it is missing or soft-deleted.
func (s *MemoryServiceImpl) visible(ctx context.Context, uri string) (*models.Memory, error) {
	m, err := s.memories.GetByURI(ctx, uri)
	if err != nil || m == nil || m.Status == models.StatusDeleted {
		return nil, err
	}
	return m, nil
}

// snapshot writes the current content of m as its next version. The
// snapshot's changed_at is the instant that content was last written.
func (s *MemoryServiceImpl) snapshot(ctx context.Context, m *models.Memory, reason, changedBy string) error {
	n, err := s.versions.NextVersion(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("failed to number version: %w", err)
	}
	return s.versions.Create(ctx, &models.MemoryVersion{
		MemoryID:     m.ID,
		Version:      n,
		Content:      m.Content,
		ChangedAt:    m.UpdatedAt,
		ChangeReason: reason,
		ChangedBy:    changedBy,
	})
}

// CreateMemory inserts a memory or updates the one with the same URI.
func (s *MemoryServiceImpl) CreateMemory(ctx context.Context, req primary.CreateMemoryRequest) (*models.Memory, error) {
	if _, _, err := memory.ParseURI(req.URI); err != nil {
		return nil, err
	}
	priority := memory.PriorityDefault
	if req.Priority != nil {
		priority = *req.Priority
	}
	if err := memory.ValidatePriority(priority); err != nil {
		return nil, err
	}
	changedBy := ctxutil.ResolveActor(ctx, req.ChangedBy)

	var out *models.Memory
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		now := s.now()
		existing, err := s.memories.GetByURI(ctx, req.URI)
		if err != nil {
			return err
		}

		if existing == nil {
			m := &models.Memory{
				URI:         req.URI,
				Content:     req.Content,
				ContentHash: models.ContentHash(req.Content),
				Priority:    priority,
				Disclosure:  req.Disclosure,
				Status:      models.StatusActive,
				CreatedAt:   now,
				UpdatedAt:   now,
				Metadata:    models.JSONMap{}.Merge(req.Metadata),
			}
			if err := s.memories.Create(ctx, m); err != nil {
				return err
			}
			out = m
			return nil
		}

		if existing.Content != req.Content {
			if err := s.snapshot(ctx, existing, ReasonUpdate, changedBy); err != nil {
				return err
			}
			existing.Content = req.Content
			existing.ContentHash = models.ContentHash(req.Content)
		}
		existing.Priority = priority
		existing.Disclosure = req.Disclosure
		if req.Metadata != nil {
			existing.Metadata = models.JSONMap{}.Merge(req.Metadata)
		}
		if existing.Status == models.StatusDeleted {
			existing.Status = models.StatusActive
			existing.DeprecatedAt = nil
		}
		existing.UpdatedAt = now
		if err := s.memories.Save(ctx, existing); err != nil {
			return err
		}
		out = existing
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory %s: %w", req.URI, err)
	}

	slog.Debug("memory written", "uri", out.URI, "id", out.ID, "changed_by", changedBy)
	return out, nil
}

// GetMemory reads a non-deleted memory.
func (s *MemoryServiceImpl) GetMemory(ctx context.Context, uri string, incrementAccess bool) (*models.Memory, error) {
	m, err := s.visible(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to get memory %s: %w", uri, err)
	}
	if m == nil || !incrementAccess {
		return m, nil
	}

	now := s.now()
	if err := s.memories.TouchAccess(ctx, m.ID, now); err != nil {
		return nil, err
	}
	m.AccessCount++
	m.LastAccessedAt = &now
	return m, nil
}

// UpdateMemory mutates a non-deleted memory.
func (s *MemoryServiceImpl) UpdateMemory(ctx context.Context, req primary.UpdateMemoryRequest) (*models.Memory, error) {
	if req.Priority != nil {
		if err := memory.ValidatePriority(*req.Priority); err != nil {
			return nil, err
		}
	}
	changedBy := ctxutil.ResolveActor(ctx, req.ChangedBy)

	var out *models.Memory
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		m, err := s.visible(ctx, req.URI)
		if err != nil || m == nil {
			return err
		}

		next, changed := memory.ResolveContent(m.Content, memory.ContentChange{
			Content: req.Content,
			Append:  req.Append,
			OldText: req.OldText,
			NewText: req.NewText,
		})
		if changed {
			if err := s.snapshot(ctx, m, ReasonUpdate, changedBy); err != nil {
				return err
			}
			m.Content = next
			m.ContentHash = models.ContentHash(next)
		}
		if req.Priority != nil {
			m.Priority = *req.Priority
		}
		if req.Disclosure != nil {
			m.Disclosure = *req.Disclosure
		}
		if req.Metadata != nil {
			m.Metadata = m.Metadata.Merge(req.Metadata)
		}
		m.UpdatedAt = s.now()
		if err := s.memories.Save(ctx, m); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update memory %s: %w", req.URI, err)
	}
	return out, nil
}

// DeleteMemory soft-deletes or removes a memory.
func (s *MemoryServiceImpl) DeleteMemory(ctx context.Context, uri string, soft bool) (bool, error) {
	deleted := false
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		m, err := s.memories.GetByURI(ctx, uri)
		if err != nil || m == nil {
			return err
		}

		if soft {
			if !memory.CanSoftDelete(memory.TransitionContext{URI: uri, Status: m.Status}).Allowed {
				return nil
			}
			m.Status = models.StatusDeleted
			m.UpdatedAt = s.now()
			if err := s.memories.Save(ctx, m); err != nil {
				return err
			}
			deleted = true
			return nil
		}

		if err := s.paths.DeleteByMemory(ctx, m.ID); err != nil {
			return err
		}
		if err := s.versions.DeleteByMemory(ctx, m.ID); err != nil {
			return err
		}
		if err := s.relations.DeleteByMemory(ctx, m.ID); err != nil {
			return err
		}
		if err := s.memories.Delete(ctx, m.ID); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete memory %s: %w", uri, err)
	}
	return deleted, nil
}

// AddMemoryPath associates a path with a memory.
func (s *MemoryServiceImpl) AddMemoryPath(ctx context.Context, memoryID int64, path string) (bool, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return false, fmt.Errorf("%w: path is required", memory.ErrInvalidArgument)
	}
	m, err := s.memories.GetByID(ctx, memoryID)
	if err != nil || m == nil {
		return false, err
	}
	added, err := s.paths.Add(ctx, memoryID, path)
	if err != nil {
		return false, fmt.Errorf("failed to add path: %w", err)
	}
	return added, nil
}

// GetMemoryPaths returns the paths of a memory.
func (s *MemoryServiceImpl) GetMemoryPaths(ctx context.Context, uri string) ([]string, error) {
	m, err := s.memories.GetByURI(ctx, uri)
	if err != nil || m == nil {
		return nil, err
	}
	records, err := s.paths.ListByMemory(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list paths: %w", err)
	}
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Path
	}
	return out, nil
}

// FindMemoriesByPath returns active memories with a path containing substr.
func (s *MemoryServiceImpl) FindMemoriesByPath(ctx context.Context, substr string) ([]*models.Memory, error) {
	if substr == "" {
		return nil, fmt.Errorf("%w: path is required", memory.ErrInvalidArgument)
	}
	return s.memories.FindByPath(ctx, substr, 0)
}

var _ primary.MemoryService = (*MemoryServiceImpl)(nil)
