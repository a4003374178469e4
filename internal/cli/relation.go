package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/ports/primary"
	"github.com/lazygophers/ccmem/internal/wire"
)

// RelateCmd returns the relate command
func RelateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relate <src> <dst> <type>",
		Short: "Add a directed relation between two memories",
		Long: fmt.Sprintf(`Add or reweight the edge src -> dst.

Types: %s

Example:
  ccmem relate task://login project://auth depends_on --strength 0.8`, strings.Join(models.RelationTypes, ", ")),
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			strength, _ := cmd.Flags().GetFloat64("strength")
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				return a.RelationAdapter(cmd.OutOrStdout()).Relate(ctx, args[0], args[1], args[2], strength)
			})
		},
	}
	cmd.Flags().Float64("strength", models.DefaultStrength, "Edge weight in [0, 1]")
	return cmd
}

// RelationsCmd returns the relations command
func RelationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relations <uri>",
		Short: "List the relations of a memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			direction, _ := cmd.Flags().GetString("direction")
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				_, err := a.RelationAdapter(cmd.OutOrStdout()).Relations(ctx, args[0], direction)
				return err
			})
		},
	}
	cmd.Flags().String("direction", primary.DirectionBoth, "in, out or both")
	return cmd
}

// UnrelateCmd returns the unrelate command
func UnrelateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unrelate <src> <dst>",
		Short: "Remove relations src -> dst",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			relationType, _ := cmd.Flags().GetString("type")
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				return a.RelationAdapter(cmd.OutOrStdout()).Unrelate(ctx, args[0], args[1], relationType)
			})
		},
	}
	cmd.Flags().String("type", "", "Only this relation type (default: every type)")
	return cmd
}

// PathCmd returns the path command - parent for path associations
func PathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Associate memories with file-system paths",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <uri> <path>",
		Short: "Link a path to a memory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				return a.MemoryAdapter(cmd.OutOrStdout()).AddPath(ctx, args[0], args[1])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "find <substring>",
		Short: "Find active memories linked to a path containing substring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				_, err := a.MemoryAdapter(cmd.OutOrStdout()).FindByPath(ctx, args[0])
				return err
			})
		},
	})

	return cmd
}
