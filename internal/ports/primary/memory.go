package primary

import (
	"context"

	"github.com/lazygophers/ccmem/internal/models"
)

// MemoryService defines the primary port for memory operations: CRUD with
// version snapshots, search, lifecycle transitions, version history and
// path associations. Lookups of a missing memory return nil without error.
type MemoryService interface {
	// CreateMemory inserts a memory or updates the one with the same URI,
	// snapshotting the previous content when it changes.
	CreateMemory(ctx context.Context, req CreateMemoryRequest) (*models.Memory, error)

	// GetMemory reads a non-deleted memory, optionally counting the access.
	GetMemory(ctx context.Context, uri string, incrementAccess bool) (*models.Memory, error)

	// UpdateMemory mutates content and other fields of a non-deleted memory.
	UpdateMemory(ctx context.Context, req UpdateMemoryRequest) (*models.Memory, error)

	// DeleteMemory soft-deletes or, when soft is false, removes a memory and
	// its paths, versions and relations.
	DeleteMemory(ctx context.Context, uri string, soft bool) (bool, error)

	// SearchMemories returns memories whose content contains the query.
	SearchMemories(ctx context.Context, req SearchRequest) ([]*models.Memory, error)

	// ListMemories returns a page of memories.
	ListMemories(ctx context.Context, req ListRequest) ([]*models.Memory, error)

	// GetMemoriesByPriority returns active memories with priority <= maxPriority.
	GetMemoriesByPriority(ctx context.Context, maxPriority int) ([]*models.Memory, error)

	// SetPriority changes the priority of a memory.
	SetPriority(ctx context.Context, uri string, priority int) (*models.Memory, error)

	// DeprecateMemory moves an active memory to deprecated.
	DeprecateMemory(ctx context.Context, uri, reason string) (*models.Memory, error)

	// ArchiveMemory moves an active or deprecated memory to archived.
	ArchiveMemory(ctx context.Context, uri string) (*models.Memory, error)

	// RestoreMemory moves a deprecated, archived or deleted memory back to active.
	RestoreMemory(ctx context.Context, uri string) (*models.Memory, error)

	// GetVersions returns the versions of a memory, newest first.
	GetVersions(ctx context.Context, uri string, limit int) ([]*models.MemoryVersion, error)

	// GetVersion returns version n of a memory.
	GetVersion(ctx context.Context, uri string, n int) (*models.MemoryVersion, error)

	// RollbackToVersion restores the content of version n.
	RollbackToVersion(ctx context.Context, uri string, n int, changedBy string) (*models.Memory, error)

	// DiffVersions returns the contents of two versions side by side.
	DiffVersions(ctx context.Context, uri string, v1, v2 int) (*VersionDiff, error)

	// AddMemoryPath associates a path with a memory.
	AddMemoryPath(ctx context.Context, memoryID int64, path string) (bool, error)

	// GetMemoryPaths returns the paths associated with a memory.
	GetMemoryPaths(ctx context.Context, uri string) ([]string, error)

	// FindMemoriesByPath returns active memories with a path containing substr.
	FindMemoriesByPath(ctx context.Context, substr string) ([]*models.Memory, error)
}

// CreateMemoryRequest contains parameters for creating a memory.
// A nil Priority means the default.
type CreateMemoryRequest struct {
	URI        string
	Content    string
	Priority   *int
	Disclosure string
	Metadata   map[string]any
	ChangedBy  string
}

// UpdateMemoryRequest contains parameters for updating a memory. Nil
// fields are left untouched; Metadata is shallow-merged.
type UpdateMemoryRequest struct {
	URI        string
	Content    *string
	Priority   *int
	Disclosure *string
	Metadata   map[string]any
	Append     bool
	OldText    *string
	NewText    *string
	ChangedBy  string
}

// SearchRequest contains parameters for searching memories.
type SearchRequest struct {
	Query       string
	URIPrefix   string
	PriorityMin *int
	PriorityMax *int
	Status      string
	Limit       int
}

// ListRequest contains parameters for listing memories.
type ListRequest struct {
	URIPrefix   string
	PriorityMin *int
	PriorityMax *int
	Status      string
	Limit       int
	Offset      int
}

// VersionDiff holds the contents of two versions of a memory.
type VersionDiff struct {
	URI      string `json:"uri"`
	Version1 int    `json:"version1"`
	Version2 int    `json:"version2"`
	Content1 string `json:"content1"`
	Content2 string `json:"content2"`
}

// Defaults of the listing operations.
const (
	DefaultSearchLimit   = 10
	DefaultListLimit     = 50
	DefaultVersionsLimit = 10
)
