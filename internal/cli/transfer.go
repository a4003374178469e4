package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lazygophers/ccmem/internal/core/memory"
	"github.com/lazygophers/ccmem/internal/ports/primary"
	"github.com/lazygophers/ccmem/internal/wire"
)

// ExportCmd returns the export command
func ExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Export memories to a JSON document (- for stdout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, _ := cmd.Flags().GetString("domain")
			versions, _ := cmd.Flags().GetBool("include-versions")
			relations, _ := cmd.Flags().GetBool("include-relations")
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				_, err := a.TransferAdapter(cmd.OutOrStdout()).Export(ctx, args[0], primary.ExportRequest{
					URIPrefix:        memory.DomainPrefix(domain),
					IncludeVersions:  versions,
					IncludeRelations: relations,
				})
				return err
			})
		},
	}
	cmd.Flags().String("domain", "", "Only URIs in this scheme")
	cmd.Flags().Bool("include-versions", false, "Embed version history")
	cmd.Flags().Bool("include-relations", false, "Embed relations")
	return cmd
}

// ImportCmd returns the import command
func ImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Import an export document",
		Long: `Import an export document. Existing URIs are handled by --strategy:
  skip       leave the existing memory alone (default)
  overwrite  replace its content, writing a version
  merge      append the imported content on a new line`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, _ := cmd.Flags().GetString("strategy")
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				_, err := a.TransferAdapter(cmd.OutOrStdout()).Import(ctx, args[0], strategy)
				return err
			})
		},
	}
	cmd.Flags().String("strategy", primary.StrategySkip, "skip, overwrite or merge")
	return cmd
}

// CleanCmd returns the clean command
func CleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Archive unused and delete stale deprecated memories",
		Long: `Archive active memories not accessed for --unused-days and soft-delete
deprecated memories older than --deprecated-days. Without flags the
thresholds of the cleanup section of config.yaml apply.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				req := primary.CleanRequest{
					UnusedDays:     optionalInt(cmd, "unused-days"),
					DeprecatedDays: optionalInt(cmd, "deprecated-days"),
					DryRun:         dryRun,
				}
				if req.UnusedDays == nil && req.DeprecatedDays == nil {
					req.UnusedDays = a.Config.Cleanup.UnusedDays
					req.DeprecatedDays = a.Config.Cleanup.DeprecatedDays
				}
				_, err := a.TransferAdapter(cmd.OutOrStdout()).Clean(ctx, req)
				return err
			})
		},
	}
	cmd.Flags().Int("unused-days", 0, "Archive active memories unused for this many days")
	cmd.Flags().Int("deprecated-days", 0, "Delete memories deprecated this many days ago")
	cmd.Flags().Bool("dry-run", false, "Count without changing anything")
	return cmd
}

// StatsCmd returns the stats command
func StatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				_, err := a.TransferAdapter(cmd.OutOrStdout()).Stats(ctx)
				return err
			})
		},
	}
}
