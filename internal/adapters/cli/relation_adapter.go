package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/lazygophers/ccmem/internal/ports/primary"
)

// RelationAdapter translates CLI operations to RelationService calls.
type RelationAdapter struct {
	service primary.RelationService
	out     io.Writer
}

// NewRelationAdapter creates a new RelationAdapter with the given service.
func NewRelationAdapter(service primary.RelationService, out io.Writer) *RelationAdapter {
	return &RelationAdapter{
		service: service,
		out:     out,
	}
}

// Relate adds or reweights the edge src -> dst.
func (a *RelationAdapter) Relate(ctx context.Context, src, dst, relationType string, strength float64) error {
	rel, err := a.service.AddRelation(ctx, src, dst, relationType, strength)
	if err != nil {
		return fmt.Errorf("failed to add relation: %w", err)
	}
	if rel == nil {
		return notFound(fmt.Sprintf("memory %s or %s", src, dst))
	}

	success(a.out, "%s -[%s %.2f]-> %s", src, rel.RelationType, rel.Strength, dst)
	return nil
}

// Relations lists the edges of a memory.
func (a *RelationAdapter) Relations(ctx context.Context, uri, direction string) ([]primary.RelationInfo, error) {
	rels, err := a.service.GetRelations(ctx, uri, direction)
	if err != nil {
		return nil, fmt.Errorf("failed to get relations: %w", err)
	}

	if len(rels) == 0 {
		fmt.Fprintf(a.out, "No relations for %s\n", uri)
		return rels, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "DIR\tTYPE\tSTRENGTH\tMEMORY")
	fmt.Fprintln(w, "---\t----\t--------\t------")
	for _, r := range rels {
		other := r.TargetURI
		arrow := "->"
		if r.Direction == primary.DirectionIn {
			other = r.SourceURI
			arrow = "<-"
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", arrow, r.RelationType, r.Strength, other)
	}
	w.Flush()
	return rels, nil
}

// Unrelate removes edges src -> dst; an empty type removes every type.
func (a *RelationAdapter) Unrelate(ctx context.Context, src, dst, relationType string) error {
	removed, err := a.service.RemoveRelation(ctx, src, dst, relationType)
	if err != nil {
		return fmt.Errorf("failed to remove relation: %w", err)
	}
	if !removed {
		return notFound(fmt.Sprintf("relation %s -> %s", src, dst))
	}

	success(a.out, "Removed relation %s -> %s", src, dst)
	return nil
}
