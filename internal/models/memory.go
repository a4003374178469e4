// Package models holds the persisted entities of the memory store and the
// table declarations they map onto.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/lazygophers/ccmem/internal/core/memory"
)

// Memory statuses.
const (
	StatusActive     = memory.StatusActive
	StatusDeprecated = memory.StatusDeprecated
	StatusArchived   = memory.StatusArchived
	StatusDeleted    = memory.StatusDeleted
)

// Memory is the addressable unit of knowledge.
type Memory struct {
	ID             int64      `db:"id" json:"id"`
	URI            string     `db:"uri" json:"uri"`
	Content        string     `db:"content" json:"content"`
	ContentHash    string     `db:"content_hash" json:"content_hash"`
	Priority       int        `db:"priority" json:"priority"`
	Disclosure     string     `db:"disclosure" json:"disclosure"`
	Status         string     `db:"status" json:"status"`
	AccessCount    int64      `db:"access_count" json:"access_count"`
	LastAccessedAt *time.Time `db:"last_accessed_at" json:"last_accessed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
	DeprecatedAt   *time.Time `db:"deprecated_at" json:"deprecated_at,omitempty"`
	Metadata       JSONMap    `db:"metadata" json:"metadata"`
}

func (m *Memory) PrimaryKey() int64      { return m.ID }
func (m *Memory) SetPrimaryKey(id int64) { m.ID = id }

// MemoryPath associates a memory with a file-system path.
type MemoryPath struct {
	ID        int64     `db:"id" json:"id"`
	MemoryID  int64     `db:"memory_id" json:"memory_id"`
	Path      string    `db:"path" json:"path"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (p *MemoryPath) PrimaryKey() int64      { return p.ID }
func (p *MemoryPath) SetPrimaryKey(id int64) { p.ID = id }

// MemoryVersion is an immutable snapshot of a memory's previous content.
type MemoryVersion struct {
	ID           int64     `db:"id" json:"-"`
	MemoryID     int64     `db:"memory_id" json:"-"`
	Version      int       `db:"version" json:"version"`
	Content      string    `db:"content" json:"content"`
	ChangedAt    time.Time `db:"changed_at" json:"changed_at"`
	ChangeReason string    `db:"change_reason" json:"change_reason"`
	ChangedBy    string    `db:"changed_by" json:"changed_by"`
}

func (v *MemoryVersion) PrimaryKey() int64      { return v.ID }
func (v *MemoryVersion) SetPrimaryKey(id int64) { v.ID = id }

// Relation types.
const (
	RelationRelatesTo   = "relates_to"
	RelationDependsOn   = "depends_on"
	RelationContradicts = "contradicts"
	RelationEvolvesFrom = "evolves_from"
)

// RelationTypes lists the accepted relation types.
var RelationTypes = []string{RelationRelatesTo, RelationDependsOn, RelationContradicts, RelationEvolvesFrom}

// DefaultStrength is the strength of a relation added without one.
const DefaultStrength = 0.5

// MemoryRelation is a directed typed edge between two memories.
type MemoryRelation struct {
	ID             int64     `db:"id"`
	SourceMemoryID int64     `db:"source_memory_id"`
	TargetMemoryID int64     `db:"target_memory_id"`
	RelationType   string    `db:"relation_type"`
	Strength       float64   `db:"strength"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r *MemoryRelation) PrimaryKey() int64      { return r.ID }
func (r *MemoryRelation) SetPrimaryKey(id int64) { r.ID = id }

// Session is one host session.
type Session struct {
	ID               int64      `db:"id" json:"id"`
	SessionID        string     `db:"session_id" json:"session_id"`
	ProjectDir       string     `db:"project_dir" json:"project_dir"`
	ProjectName      string     `db:"project_name" json:"project_name"`
	StartedAt        time.Time  `db:"started_at" json:"started_at"`
	EndedAt          *time.Time `db:"ended_at" json:"ended_at,omitempty"`
	Summary          string     `db:"summary" json:"summary"`
	MemoriesCreated  int64      `db:"memories_created" json:"memories_created"`
	MemoriesAccessed int64      `db:"memories_accessed" json:"memories_accessed"`
	OperationsCount  int64      `db:"operations_count" json:"operations_count"`
}

func (s *Session) PrimaryKey() int64      { return s.ID }
func (s *Session) SetPrimaryKey(id int64) { s.ID = id }

// Error-solution sources.
const (
	SourceLearned  = "learned"
	SourceManual   = "manual"
	SourceImported = "imported"
)

// ErrorSolution maps an error pattern to a known fix.
type ErrorSolution struct {
	ID           int64     `db:"id" json:"id"`
	ErrorPattern string    `db:"error_pattern" json:"error_pattern"`
	Solution     string    `db:"solution" json:"solution"`
	ErrorType    string    `db:"error_type" json:"error_type"`
	Source       string    `db:"source" json:"source"`
	SuccessCount int64     `db:"success_count" json:"success_count"`
	FailureCount int64     `db:"failure_count" json:"failure_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (e *ErrorSolution) PrimaryKey() int64      { return e.ID }
func (e *ErrorSolution) SetPrimaryKey(id int64) { e.ID = id }

// ContentHash is the hex SHA-256 digest of content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Now is the current instant in UTC at millisecond precision.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
