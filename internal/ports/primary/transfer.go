package primary

import (
	"context"
	"encoding/json"
)

// Import strategies.
const (
	StrategySkip      = "skip"
	StrategyOverwrite = "overwrite"
	StrategyMerge     = "merge"
)

// ExportFormatVersion is written into every export document.
const ExportFormatVersion = "1.0"

// TransferService defines the primary port for bulk transfer, statistics
// and cleanup.
type TransferService interface {
	// ExportMemories builds an export document.
	ExportMemories(ctx context.Context, req ExportRequest) (*ExportDocument, error)

	// ImportMemories applies an encoded export document.
	ImportMemories(ctx context.Context, req ImportRequest) (*ImportResult, error)

	// GetStats aggregates counters over the store.
	GetStats(ctx context.Context) (*Stats, error)

	// CleanMemories archives unused memories and soft-deletes stale
	// deprecated ones.
	CleanMemories(ctx context.Context, req CleanRequest) (*CleanResult, error)
}

// ExportRequest contains parameters for exporting memories.
type ExportRequest struct {
	URIPrefix        string
	IncludeVersions  bool
	IncludeRelations bool
}

// ExportDocument is the interchange format of export and import.
type ExportDocument struct {
	ExportedAt string           `json:"exported_at"`
	Version    string           `json:"version"`
	Memories   []ExportedMemory `json:"memories"`
}

// ExportedMemory is one memory of an export document. Timestamps are
// RFC 3339 strings.
type ExportedMemory struct {
	URI          string            `json:"uri"`
	Content      string            `json:"content"`
	Priority     *int              `json:"priority"`
	Disclosure   string            `json:"disclosure"`
	Status       string            `json:"status"`
	Metadata     map[string]any    `json:"metadata"`
	CreatedAt    string            `json:"created_at"`
	UpdatedAt    string            `json:"updated_at"`
	DeprecatedAt string            `json:"deprecated_at,omitempty"`
	Versions     []ExportedVersion `json:"versions,omitempty"`
	Relations    []RelationInfo    `json:"relations,omitempty"`
}

// ExportedVersion is one version snapshot of an exported memory.
type ExportedVersion struct {
	Version      int    `json:"version"`
	Content      string `json:"content"`
	ChangedAt    string `json:"changed_at"`
	ChangeReason string `json:"change_reason"`
	ChangedBy    string `json:"changed_by"`
}

// ImportRequest contains an encoded export document and how to apply it.
type ImportRequest struct {
	Data      json.RawMessage
	Strategy  string
	ChangedBy string
}

// ImportResult counts the outcome of an import.
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Stats aggregates the store. Total excludes deleted memories.
type Stats struct {
	Total          int64            `json:"total"`
	Active         int64            `json:"active"`
	Deprecated     int64            `json:"deprecated"`
	Archived       int64            `json:"archived"`
	ByPriority     map[int]int64    `json:"by_priority"`
	ByURIPrefix    map[string]int64 `json:"by_uri_prefix"`
	VersionsCount  int64            `json:"versions_count"`
	RelationsCount int64            `json:"relations_count"`
}

// CleanRequest contains the cleanup thresholds. A nil threshold skips
// that pass.
type CleanRequest struct {
	UnusedDays     *int `json:"unused_days"`
	DeprecatedDays *int `json:"deprecated_days"`
	DryRun         bool `json:"dry_run"`
}

// CleanResult counts soft-deleted (Cleaned) and archived memories.
type CleanResult struct {
	Cleaned  int  `json:"cleaned"`
	Archived int  `json:"archived"`
	DryRun   bool `json:"dry_run"`
}
