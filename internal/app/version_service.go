package app

import (
	"context"
	"fmt"

	"github.com/lazygophers/ccmem/internal/core/memory"
	"github.com/lazygophers/ccmem/internal/ctxutil"
	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/ports/primary"
)

// RollbackReason is the change reason of the snapshot written by a rollback
// to version n.
func RollbackReason(n int) string {
	return fmt.Sprintf("rollback_to_v%d", n)
}

// GetVersions returns the versions of a memory in any status, newest first.
func (s *MemoryServiceImpl) GetVersions(ctx context.Context, uri string, limit int) ([]*models.MemoryVersion, error) {
	if limit <= 0 {
		limit = primary.DefaultVersionsLimit
	}
	m, err := s.memories.GetByURI(ctx, uri)
	if err != nil || m == nil {
		return nil, err
	}
	versions, err := s.versions.List(ctx, m.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions of %s: %w", uri, err)
	}
	return versions, nil
}

// GetVersion returns version n of a memory, or nil.
func (s *MemoryServiceImpl) GetVersion(ctx context.Context, uri string, n int) (*models.MemoryVersion, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: version must be >= 1 (got %d)", memory.ErrInvalidArgument, n)
	}
	m, err := s.memories.GetByURI(ctx, uri)
	if err != nil || m == nil {
		return nil, err
	}
	return s.versions.Get(ctx, m.ID, n)
}

// RollbackToVersion snapshots the live content and restores version n. It
// returns nil when the memory or the version does not exist.
func (s *MemoryServiceImpl) RollbackToVersion(ctx context.Context, uri string, n int, changedBy string) (*models.Memory, error) {
	changedBy = ctxutil.ResolveActor(ctx, changedBy)

	var out *models.Memory
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		m, err := s.visible(ctx, uri)
		if err != nil || m == nil {
			return err
		}
		target, err := s.versions.Get(ctx, m.ID, n)
		if err != nil || target == nil {
			return err
		}

		if err := s.snapshot(ctx, m, RollbackReason(n), changedBy); err != nil {
			return err
		}
		m.Content = target.Content
		m.ContentHash = models.ContentHash(target.Content)
		m.UpdatedAt = s.now()
		if err := s.memories.Save(ctx, m); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to roll back %s to v%d: %w", uri, n, err)
	}
	return out, nil
}

// DiffVersions returns the contents of two versions, or nil if either is
// missing.
func (s *MemoryServiceImpl) DiffVersions(ctx context.Context, uri string, v1, v2 int) (*primary.VersionDiff, error) {
	a, err := s.GetVersion(ctx, uri, v1)
	if err != nil || a == nil {
		return nil, err
	}
	b, err := s.GetVersion(ctx, uri, v2)
	if err != nil || b == nil {
		return nil, err
	}
	return &primary.VersionDiff{
		URI:      uri,
		Version1: v1,
		Version2: v2,
		Content1: a.Content,
		Content2: b.Content,
	}, nil
}
