package app

import (
	"context"
	"fmt"
	"slices"

	"github.com/lazygophers/ccmem/internal/core/memory"
	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/ports/primary"
	"github.com/lazygophers/ccmem/internal/ports/secondary"
)

// RelationServiceImpl implements the RelationService interface.
type RelationServiceImpl struct {
	tx        secondary.Transactor
	memories  secondary.MemoryRepository
	relations secondary.RelationRepository
}

// NewRelationService creates a new RelationService with injected dependencies.
func NewRelationService(
	tx secondary.Transactor,
	memories secondary.MemoryRepository,
	relations secondary.RelationRepository,
) *RelationServiceImpl {
	return &RelationServiceImpl{tx: tx, memories: memories, relations: relations}
}

func validateRelation(relationType string, strength float64) error {
	if !slices.Contains(models.RelationTypes, relationType) {
		return fmt.Errorf("%w: unknown relation type %q", memory.ErrInvalidArgument, relationType)
	}
	if strength < 0 || strength > 1 {
		return fmt.Errorf("%w: strength must be in [0, 1] (got %g)", memory.ErrInvalidArgument, strength)
	}
	return nil
}

// endpoint returns a non-deleted memory, or nil.
func (s *RelationServiceImpl) endpoint(ctx context.Context, uri string) (*models.Memory, error) {
	m, err := s.memories.GetByURI(ctx, uri)
	if err != nil || m == nil || m.Status == models.StatusDeleted {
		return nil, err
	}
	return m, nil
}

// AddRelation inserts or updates the edge src -> dst. Both endpoints are
// resolved in the same transaction as the write.
func (s *RelationServiceImpl) AddRelation(ctx context.Context, srcURI, dstURI, relationType string, strength float64) (*models.MemoryRelation, error) {
	if err := validateRelation(relationType, strength); err != nil {
		return nil, err
	}

	var out *models.MemoryRelation
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		src, err := s.endpoint(ctx, srcURI)
		if err != nil || src == nil {
			return err
		}
		dst, err := s.endpoint(ctx, dstURI)
		if err != nil || dst == nil {
			return err
		}

		rel := &models.MemoryRelation{
			SourceMemoryID: src.ID,
			TargetMemoryID: dst.ID,
			RelationType:   relationType,
			Strength:       strength,
			CreatedAt:      models.Now(),
		}
		if err := s.relations.Upsert(ctx, rel); err != nil {
			return err
		}
		out = rel
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to relate %s to %s: %w", srcURI, dstURI, err)
	}
	return out, nil
}

// GetRelations returns the edges of a memory. An unknown memory has none.
func (s *RelationServiceImpl) GetRelations(ctx context.Context, uri, direction string) ([]primary.RelationInfo, error) {
	if direction == "" {
		direction = primary.DirectionBoth
	}
	if direction != primary.DirectionIn && direction != primary.DirectionOut && direction != primary.DirectionBoth {
		return nil, fmt.Errorf("%w: direction must be in, out or both (got %q)", memory.ErrInvalidArgument, direction)
	}

	m, err := s.memories.GetByURI(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to get relations of %s: %w", uri, err)
	}
	out := []primary.RelationInfo{}
	if m == nil {
		return out, nil
	}

	if direction != primary.DirectionIn {
		edges, err := s.relations.ListOutgoing(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			out = append(out, primary.RelationInfo{
				RelationType: e.RelationType,
				Strength:     e.Strength,
				Direction:    primary.DirectionOut,
				TargetURI:    e.OtherURI,
			})
		}
	}
	if direction != primary.DirectionOut {
		edges, err := s.relations.ListIncoming(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			out = append(out, primary.RelationInfo{
				RelationType: e.RelationType,
				Strength:     e.Strength,
				Direction:    primary.DirectionIn,
				SourceURI:    e.OtherURI,
			})
		}
	}
	return out, nil
}

// RemoveRelation deletes edges src -> dst. It reports whether any was removed.
func (s *RelationServiceImpl) RemoveRelation(ctx context.Context, srcURI, dstURI, relationType string) (bool, error) {
	if relationType != "" && !slices.Contains(models.RelationTypes, relationType) {
		return false, fmt.Errorf("%w: unknown relation type %q", memory.ErrInvalidArgument, relationType)
	}

	removed := int64(0)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		src, err := s.memories.GetByURI(ctx, srcURI)
		if err != nil || src == nil {
			return err
		}
		dst, err := s.memories.GetByURI(ctx, dstURI)
		if err != nil || dst == nil {
			return err
		}
		removed, err = s.relations.Delete(ctx, src.ID, dst.ID, relationType)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to remove relation %s -> %s: %w", srcURI, dstURI, err)
	}
	return removed > 0, nil
}

var _ primary.RelationService = (*RelationServiceImpl)(nil)
