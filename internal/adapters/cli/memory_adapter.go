package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/lazygophers/ccmem/internal/core/memory"
	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/ports/primary"
)

// MemoryAdapter is a thin adapter that translates CLI operations to MemoryService calls.
// It depends only on the MemoryService interface, enabling easy testing with mocks.
type MemoryAdapter struct {
	service primary.MemoryService
	out     io.Writer
}

// NewMemoryAdapter creates a new MemoryAdapter with the given service.
func NewMemoryAdapter(service primary.MemoryService, out io.Writer) *MemoryAdapter {
	return &MemoryAdapter{
		service: service,
		out:     out,
	}
}

// Create creates or updates the memory at req.URI.
func (a *MemoryAdapter) Create(ctx context.Context, req primary.CreateMemoryRequest) (*models.Memory, error) {
	m, err := a.service.CreateMemory(ctx, req)
	if err != nil {
		return nil, err
	}

	success(a.out, "Saved %s (priority %d, %s)", m.URI, m.Priority, memory.Band(m.Priority))
	return m, nil
}

// Read displays a single memory and counts the access.
func (a *MemoryAdapter) Read(ctx context.Context, uri string) (*models.Memory, error) {
	m, err := a.service.GetMemory(ctx, uri, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}
	if m == nil {
		return nil, notFound("memory " + uri)
	}

	fmt.Fprintf(a.out, "URI:      %s\n", m.URI)
	fmt.Fprintf(a.out, "Priority: %d (%s)\n", m.Priority, memory.Band(m.Priority))
	fmt.Fprintf(a.out, "Status:   %s\n", statusLabel(m.Status))
	fmt.Fprintf(a.out, "Accessed: %d\n", m.AccessCount)
	if m.Disclosure != "" {
		fmt.Fprintf(a.out, "Disclosure: %s\n", m.Disclosure)
	}
	fmt.Fprintln(a.out, rule)
	fmt.Fprintln(a.out, m.Content)

	return m, nil
}

// Update mutates a memory.
func (a *MemoryAdapter) Update(ctx context.Context, req primary.UpdateMemoryRequest) (*models.Memory, error) {
	m, err := a.service.UpdateMemory(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update memory: %w", err)
	}
	if m == nil {
		return nil, notFound("memory " + req.URI)
	}

	success(a.out, "Updated %s", m.URI)
	return m, nil
}

// Delete soft-deletes a memory, or removes it when force is set.
func (a *MemoryAdapter) Delete(ctx context.Context, uri string, force bool) error {
	ok, err := a.service.DeleteMemory(ctx, uri, !force)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	if !ok {
		return notFound("memory " + uri)
	}

	if force {
		success(a.out, "Removed %s with its versions, paths and relations", uri)
	} else {
		success(a.out, "Deleted %s (restore with: ccmem restore %s)", uri, uri)
	}
	return nil
}

// Search lists memories whose content contains the query.
func (a *MemoryAdapter) Search(ctx context.Context, req primary.SearchRequest) ([]*models.Memory, error) {
	memories, err := a.service.SearchMemories(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search memories: %w", err)
	}

	if len(memories) == 0 {
		fmt.Fprintf(a.out, "No memories match %q\n", req.Query)
		return memories, nil
	}
	a.table(memories)
	return memories, nil
}

// List lists a page of memories.
func (a *MemoryAdapter) List(ctx context.Context, req primary.ListRequest) ([]*models.Memory, error) {
	memories, err := a.service.ListMemories(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}

	if len(memories) == 0 {
		fmt.Fprintln(a.out, "No memories found.")
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "Create your first memory:")
		fmt.Fprintln(a.out, `  ccmem create project://structure "monorepo" --priority 1`)
		return memories, nil
	}
	a.table(memories)
	return memories, nil
}

func (a *MemoryAdapter) table(memories []*models.Memory) {
	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "PRI\tSTATUS\tURI\tCONTENT")
	fmt.Fprintln(w, "---\t------\t---\t-------")
	for _, m := range memories {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", m.Priority, m.Status, m.URI, preview(m.Content, 60))
	}
	w.Flush()
}

// SetPriority changes the priority of a memory.
func (a *MemoryAdapter) SetPriority(ctx context.Context, uri string, priority int) error {
	m, err := a.service.SetPriority(ctx, uri, priority)
	if err != nil {
		return fmt.Errorf("failed to set priority: %w", err)
	}
	if m == nil {
		return notFound("memory " + uri)
	}

	success(a.out, "%s priority set to %d (%s)", uri, m.Priority, memory.Band(m.Priority))
	return nil
}

// Deprecate marks a memory deprecated.
func (a *MemoryAdapter) Deprecate(ctx context.Context, uri, reason string) error {
	m, err := a.service.DeprecateMemory(ctx, uri, reason)
	if err != nil {
		return fmt.Errorf("failed to deprecate memory: %w", err)
	}
	if m == nil {
		return notFound("memory " + uri)
	}

	success(a.out, "%s deprecated", uri)
	return nil
}

// Archive archives a memory.
func (a *MemoryAdapter) Archive(ctx context.Context, uri string) error {
	m, err := a.service.ArchiveMemory(ctx, uri)
	if err != nil {
		return fmt.Errorf("failed to archive memory: %w", err)
	}
	if m == nil {
		return notFound("memory " + uri)
	}

	success(a.out, "%s archived", uri)
	return nil
}

// Restore brings a memory back to active.
func (a *MemoryAdapter) Restore(ctx context.Context, uri string) error {
	m, err := a.service.RestoreMemory(ctx, uri)
	if err != nil {
		return fmt.Errorf("failed to restore memory: %w", err)
	}
	if m == nil {
		return notFound("memory " + uri)
	}

	success(a.out, "%s restored", uri)
	return nil
}

// Versions lists the version history of a memory, newest first.
func (a *MemoryAdapter) Versions(ctx context.Context, uri string, limit int) ([]*models.MemoryVersion, error) {
	versions, err := a.service.GetVersions(ctx, uri, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get versions: %w", err)
	}

	if len(versions) == 0 {
		fmt.Fprintf(a.out, "No versions of %s\n", uri)
		return versions, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "VERSION\tCHANGED\tREASON\tBY\tCONTENT")
	fmt.Fprintln(w, "-------\t-------\t------\t--\t-------")
	for _, v := range versions {
		fmt.Fprintf(w, "v%d\t%s\t%s\t%s\t%s\n",
			v.Version,
			formatTime(v.ChangedAt),
			v.ChangeReason,
			v.ChangedBy,
			preview(v.Content, 50),
		)
	}
	w.Flush()
	return versions, nil
}

// Rollback restores the content of version n.
func (a *MemoryAdapter) Rollback(ctx context.Context, uri string, n int) error {
	m, err := a.service.RollbackToVersion(ctx, uri, n, "")
	if err != nil {
		return fmt.Errorf("failed to roll back: %w", err)
	}
	if m == nil {
		return notFound(fmt.Sprintf("version %d of %s", n, uri))
	}

	success(a.out, "%s rolled back to v%d", uri, n)
	return nil
}

// Diff prints two versions of a memory one after the other.
func (a *MemoryAdapter) Diff(ctx context.Context, uri string, v1, v2 int) (*primary.VersionDiff, error) {
	diff, err := a.service.DiffVersions(ctx, uri, v1, v2)
	if err != nil {
		return nil, fmt.Errorf("failed to diff versions: %w", err)
	}
	if diff == nil {
		return nil, notFound(fmt.Sprintf("versions %d and %d of %s", v1, v2, uri))
	}

	fmt.Fprintf(a.out, "--- v%d\n%s\n", diff.Version1, diff.Content1)
	fmt.Fprintf(a.out, "+++ v%d\n%s\n", diff.Version2, diff.Content2)
	return diff, nil
}

// AddPath associates a file-system path with a memory.
func (a *MemoryAdapter) AddPath(ctx context.Context, uri, path string) error {
	m, err := a.service.GetMemory(ctx, uri, false)
	if err != nil {
		return fmt.Errorf("failed to get memory: %w", err)
	}
	if m == nil {
		return notFound("memory " + uri)
	}

	added, err := a.service.AddMemoryPath(ctx, m.ID, path)
	if err != nil {
		return fmt.Errorf("failed to add path: %w", err)
	}
	if !added {
		warn(a.out, "%s already linked to %s", path, uri)
		return nil
	}
	success(a.out, "Linked %s to %s", path, uri)
	return nil
}

// FindByPath lists active memories linked to a path containing substr.
func (a *MemoryAdapter) FindByPath(ctx context.Context, substr string) ([]*models.Memory, error) {
	memories, err := a.service.FindMemoriesByPath(ctx, substr)
	if err != nil {
		return nil, fmt.Errorf("failed to find memories: %w", err)
	}

	if len(memories) == 0 {
		fmt.Fprintf(a.out, "No memories linked to a path containing %q\n", substr)
		return memories, nil
	}
	a.table(memories)
	return memories, nil
}
