package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/lazygophers/ccmem/internal/ports/primary"
)

// TransferAdapter translates CLI operations to TransferService calls.
type TransferAdapter struct {
	service primary.TransferService
	out     io.Writer
}

// NewTransferAdapter creates a new TransferAdapter with the given service.
func NewTransferAdapter(service primary.TransferService, out io.Writer) *TransferAdapter {
	return &TransferAdapter{
		service: service,
		out:     out,
	}
}

// Export writes an export document to path, or to the output when path is "-".
func (a *TransferAdapter) Export(ctx context.Context, path string, req primary.ExportRequest) (*primary.ExportDocument, error) {
	doc, err := a.service.ExportMemories(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to export memories: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	data = append(data, '\n')

	if path == "-" {
		_, err := a.out.Write(data)
		return doc, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write export: %w", err)
	}

	success(a.out, "Exported %d memories to %s", len(doc.Memories), path)
	return doc, nil
}

// Import applies the export document at path.
func (a *TransferAdapter) Import(ctx context.Context, path, strategy string) (*primary.ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read import: %w", err)
	}

	res, err := a.service.ImportMemories(ctx, primary.ImportRequest{
		Data:     data,
		Strategy: strategy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import memories: %w", err)
	}

	success(a.out, "Imported: %d created, %d updated, %d skipped", res.Created, res.Updated, res.Skipped)
	if res.Errors > 0 {
		warn(a.out, "%d malformed entries ignored", res.Errors)
	}
	return res, nil
}

// Stats prints the store statistics.
func (a *TransferAdapter) Stats(ctx context.Context) (*primary.Stats, error) {
	stats, err := a.service.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	fmt.Fprintf(a.out, "Total:      %d\n", stats.Total)
	fmt.Fprintf(a.out, "Active:     %d\n", stats.Active)
	fmt.Fprintf(a.out, "Deprecated: %d\n", stats.Deprecated)
	fmt.Fprintf(a.out, "Archived:   %d\n", stats.Archived)
	fmt.Fprintf(a.out, "Versions:   %d\n", stats.VersionsCount)
	fmt.Fprintf(a.out, "Relations:  %d\n", stats.RelationsCount)

	if len(stats.ByPriority) > 0 {
		fmt.Fprintln(a.out)
		w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "PRIORITY\tCOUNT")
		priorities := make([]int, 0, len(stats.ByPriority))
		for p := range stats.ByPriority {
			priorities = append(priorities, p)
		}
		sort.Ints(priorities)
		for _, p := range priorities {
			fmt.Fprintf(w, "%d\t%d\n", p, stats.ByPriority[p])
		}
		w.Flush()
	}

	prefixes := make([]string, 0, len(stats.ByURIPrefix))
	for prefix, n := range stats.ByURIPrefix {
		if n > 0 {
			prefixes = append(prefixes, prefix)
		}
	}
	if len(prefixes) > 0 {
		sort.Strings(prefixes)
		fmt.Fprintln(a.out)
		w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "PREFIX\tCOUNT")
		for _, prefix := range prefixes {
			fmt.Fprintf(w, "%s\t%d\n", prefix, stats.ByURIPrefix[prefix])
		}
		w.Flush()
	}
	return stats, nil
}

// Clean archives unused and soft-deletes stale deprecated memories.
func (a *TransferAdapter) Clean(ctx context.Context, req primary.CleanRequest) (*primary.CleanResult, error) {
	res, err := a.service.CleanMemories(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to clean memories: %w", err)
	}

	if res.DryRun {
		warn(a.out, "Dry run: would archive %d and delete %d memories", res.Archived, res.Cleaned)
		return res, nil
	}
	success(a.out, "Archived %d, deleted %d memories", res.Archived, res.Cleaned)
	return res, nil
}
