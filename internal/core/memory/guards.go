// Package memory contains the pure business logic of the memory store:
// priority bands, status transitions, content mutation and the text
// matching used by search helpers. No I/O happens here.
package memory

import (
	"fmt"
	"time"
)

// Statuses of a memory.
const (
	StatusActive     = "active"
	StatusDeprecated = "deprecated"
	StatusArchived   = "archived"
	StatusDeleted    = "deleted"
)

// Priority bands. Lower is more important.
const (
	PriorityMin     = 0
	PriorityMax     = 10
	PriorityDefault = 5

	// CoreMax is the highest priority of the core set copied into subagents.
	CoreMax = 2
	// PreloadMax is the highest priority eager-loaded on session start.
	PreloadMax = 3
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidArgument, r.Reason)
}

// ValidatePriority returns ErrInvalidPriority unless p is in [0, 10].
func ValidatePriority(p int) error {
	if p < PriorityMin || p > PriorityMax {
		return fmt.Errorf("%w (got %d)", ErrInvalidPriority, p)
	}
	return nil
}

// Band names the priority band of p.
func Band(p int) string {
	switch {
	case p <= CoreMax:
		return "core"
	case p <= 4:
		return "elevated"
	case p == PriorityDefault:
		return "default"
	default:
		return "background"
	}
}

// ValidStatus reports whether s is a known status.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusDeprecated, StatusArchived, StatusDeleted:
		return true
	}
	return false
}

// TransitionContext is the input of the status transition guards.
type TransitionContext struct {
	URI    string
	Status string
}

// CanDeprecate allows active memories only.
func CanDeprecate(ctx TransitionContext) GuardResult {
	if ctx.Status != StatusActive {
		return GuardResult{Reason: fmt.Sprintf("cannot deprecate %s: status is %s, expected active", ctx.URI, ctx.Status)}
	}
	return GuardResult{Allowed: true}
}

// CanArchive allows active and deprecated memories.
func CanArchive(ctx TransitionContext) GuardResult {
	if ctx.Status != StatusActive && ctx.Status != StatusDeprecated {
		return GuardResult{Reason: fmt.Sprintf("cannot archive %s: status is %s", ctx.URI, ctx.Status)}
	}
	return GuardResult{Allowed: true}
}

// CanRestore allows deprecated, archived and deleted memories.
func CanRestore(ctx TransitionContext) GuardResult {
	if ctx.Status == StatusActive {
		return GuardResult{Reason: fmt.Sprintf("cannot restore %s: already active", ctx.URI)}
	}
	if !ValidStatus(ctx.Status) {
		return GuardResult{Reason: fmt.Sprintf("cannot restore %s: unknown status %s", ctx.URI, ctx.Status)}
	}
	return GuardResult{Allowed: true}
}

// CanSoftDelete allows any status but deleted. Cleanup soft-deletes
// deprecated memories, so this is wider than active only.
func CanSoftDelete(ctx TransitionContext) GuardResult {
	if ctx.Status == StatusDeleted {
		return GuardResult{Reason: fmt.Sprintf("cannot delete %s: already deleted", ctx.URI)}
	}
	return GuardResult{Allowed: true}
}

// TransitionResult is the new status and the deprecated_at to store with it.
type TransitionResult struct {
	Status       string
	DeprecatedAt *time.Time
}

// ApplyTransition computes the side effects of moving to status. Moving to
// deprecated stamps deprecated_at; restoring to active clears it; archive and
// soft delete keep the current value.
func ApplyTransition(to string, current *time.Time, now time.Time) TransitionResult {
	switch to {
	case StatusDeprecated:
		return TransitionResult{Status: to, DeprecatedAt: &now}
	case StatusActive:
		return TransitionResult{Status: to}
	default:
		return TransitionResult{Status: to, DeprecatedAt: current}
	}
}
