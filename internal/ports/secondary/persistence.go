// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"time"

	"github.com/lazygophers/ccmem/internal/models"
)

// Transactor brackets a unit of work. Repositories called with the context
// handed to fn take part in the same transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// MemoryRepository defines the secondary port for memory persistence.
type MemoryRepository interface {
	// GetByURI retrieves a memory by URI in any status, or nil.
	GetByURI(ctx context.Context, uri string) (*models.Memory, error)

	// GetByID retrieves a memory by ID in any status, or nil.
	GetByID(ctx context.Context, id int64) (*models.Memory, error)

	// Create inserts a memory and sets its ID.
	Create(ctx context.Context, memory *models.Memory) error

	// Save rewrites every column of an existing memory.
	Save(ctx context.Context, memory *models.Memory) error

	// Delete physically removes a memory row.
	Delete(ctx context.Context, id int64) error

	// List returns memories matching the filters, ordered by priority
	// ascending then updated_at descending.
	List(ctx context.Context, filters MemoryFilters) ([]*models.Memory, error)

	// TouchAccess bumps access_count and sets last_accessed_at.
	TouchAccess(ctx context.Context, id int64, at time.Time) error

	// FindByPath returns active memories with an associated path containing substr.
	FindByPath(ctx context.Context, substr string, limit int) ([]*models.Memory, error)

	// ListUnusedBefore returns active memories whose last access (or creation
	// when never accessed) is older than before.
	ListUnusedBefore(ctx context.Context, before time.Time) ([]*models.Memory, error)

	// ListDeprecatedBefore returns deprecated memories deprecated before before.
	ListDeprecatedBefore(ctx context.Context, before time.Time) ([]*models.Memory, error)

	// CountByStatus counts memories per status.
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// CountByPriority counts non-deleted memories per priority.
	CountByPriority(ctx context.Context) (map[int]int64, error)

	// CountByPrefix counts non-deleted memories whose URI starts with prefix.
	CountByPrefix(ctx context.Context, prefix string) (int64, error)
}

// MemoryFilters contains filter options for listing and searching memories.
type MemoryFilters struct {
	Query          string // case-sensitive content substring
	URIPrefix      string
	PriorityMin    *int
	PriorityMax    *int
	Status         string // empty means every status but deleted
	IncludeDeleted bool   // with an empty Status, list every status
	Limit          int
	Offset         int
}

// VersionRepository defines the secondary port for version snapshots.
type VersionRepository interface {
	// Create inserts a version snapshot.
	Create(ctx context.Context, version *models.MemoryVersion) error

	// NextVersion returns the next version number for a memory.
	NextVersion(ctx context.Context, memoryID int64) (int, error)

	// Get returns version n of a memory, or nil.
	Get(ctx context.Context, memoryID int64, n int) (*models.MemoryVersion, error)

	// List returns versions of a memory newest first. limit <= 0 means all.
	List(ctx context.Context, memoryID int64, limit int) ([]*models.MemoryVersion, error)

	// Count counts version rows, for one memory when memoryID > 0.
	Count(ctx context.Context, memoryID int64) (int64, error)

	// DeleteByMemory removes every version of a memory.
	DeleteByMemory(ctx context.Context, memoryID int64) error
}

// RelationRepository defines the secondary port for the relation graph.
type RelationRepository interface {
	// Upsert inserts the edge or updates the strength of an existing one.
	Upsert(ctx context.Context, relation *models.MemoryRelation) error

	// ListOutgoing returns edges leaving a memory, with target URIs.
	ListOutgoing(ctx context.Context, memoryID int64) ([]*RelationEdge, error)

	// ListIncoming returns edges entering a memory, with source URIs.
	ListIncoming(ctx context.Context, memoryID int64) ([]*RelationEdge, error)

	// Delete removes edges from source to target; an empty relationType
	// matches every type. It returns the number removed.
	Delete(ctx context.Context, sourceID, targetID int64, relationType string) (int64, error)

	// DeleteByMemory removes every edge touching a memory.
	DeleteByMemory(ctx context.Context, memoryID int64) error

	// Count counts every edge.
	Count(ctx context.Context) (int64, error)
}

// RelationEdge is a relation seen from one endpoint.
type RelationEdge struct {
	RelationType string
	Strength     float64
	OtherURI     string
	CreatedAt    time.Time
}

// PathRepository defines the secondary port for memory paths.
type PathRepository interface {
	// Add associates a path with a memory. It reports whether a row was added.
	Add(ctx context.Context, memoryID int64, path string) (bool, error)

	// ListByMemory returns the paths of a memory.
	ListByMemory(ctx context.Context, memoryID int64) ([]*models.MemoryPath, error)

	// DeleteByMemory removes every path of a memory.
	DeleteByMemory(ctx context.Context, memoryID int64) error
}

// SessionRepository defines the secondary port for host sessions.
type SessionRepository interface {
	// Create inserts a session, or returns the existing one for the same
	// session_id. The bool reports whether it was created.
	Create(ctx context.Context, session *models.Session) (*models.Session, bool, error)

	// GetBySessionID retrieves a session, or nil.
	GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error)

	// End stamps ended_at and the summary. It reports whether a row matched.
	End(ctx context.Context, sessionID, summary string, at time.Time) (bool, error)

	// Increment adds deltas to the session counters.
	Increment(ctx context.Context, sessionID string, delta SessionCounters) error

	// List returns sessions newest first.
	List(ctx context.Context, limit int) ([]*models.Session, error)
}

// SessionCounters are increments applied to a session.
type SessionCounters struct {
	MemoriesCreated  int64
	MemoriesAccessed int64
	Operations       int64
}

// ErrorSolutionRepository defines the secondary port for error solutions.
type ErrorSolutionRepository interface {
	// Upsert inserts a solution or updates the one with the same pattern.
	Upsert(ctx context.Context, solution *models.ErrorSolution) (*models.ErrorSolution, error)

	// GetByID retrieves a solution, or nil.
	GetByID(ctx context.Context, id int64) (*models.ErrorSolution, error)

	// ListRanked returns every solution ordered by success_count descending.
	ListRanked(ctx context.Context) ([]*models.ErrorSolution, error)

	// Mark bumps success_count or failure_count. It reports whether a row matched.
	Mark(ctx context.Context, id int64, success bool, at time.Time) (bool, error)
}
