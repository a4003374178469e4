package primary

import (
	"context"

	"github.com/lazygophers/ccmem/internal/models"
)

// Relation directions.
const (
	DirectionIn   = "in"
	DirectionOut  = "out"
	DirectionBoth = "both"
)

// RelationService defines the primary port for the relation graph.
type RelationService interface {
	// AddRelation inserts or updates the edge src -> dst of the given type.
	// It returns nil when either endpoint does not exist.
	AddRelation(ctx context.Context, srcURI, dstURI, relationType string, strength float64) (*models.MemoryRelation, error)

	// GetRelations returns the edges of a memory; both lists out then in.
	GetRelations(ctx context.Context, uri, direction string) ([]RelationInfo, error)

	// RemoveRelation deletes edges src -> dst; an empty type removes all.
	RemoveRelation(ctx context.Context, srcURI, dstURI, relationType string) (bool, error)
}

// RelationInfo is an edge as seen from one of its endpoints.
type RelationInfo struct {
	RelationType string  `json:"relation_type"`
	Strength     float64 `json:"strength"`
	Direction    string  `json:"direction"`
	TargetURI    string  `json:"target_uri,omitempty"`
	SourceURI    string  `json:"source_uri,omitempty"`
}
