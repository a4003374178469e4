package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lazygophers/ccmem/internal/ports/primary"
	"github.com/lazygophers/ccmem/internal/wire"
)

// VersionsCmd returns the versions command
func VersionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions <uri>",
		Short: "Show the version history of a memory, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				_, err := a.MemoryAdapter(cmd.OutOrStdout()).Versions(ctx, args[0], limit)
				return err
			})
		},
	}
	cmd.Flags().Int("limit", primary.DefaultVersionsLimit, "Maximum number of versions")
	return cmd
}

// RollbackCmd returns the rollback command
func RollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <uri> <N>",
		Short: "Restore the content of version N",
		Long: `Restore the content of version N. The current content is first saved
as a new version, so a rollback can itself be rolled back.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseVersion(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				return a.MemoryAdapter(cmd.OutOrStdout()).Rollback(ctx, args[0], n)
			})
		},
	}
}

// DiffCmd returns the diff command
func DiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <uri> <V1> <V2>",
		Short: "Show two versions of a memory",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			v1, err := parseVersion(args[1])
			if err != nil {
				return err
			}
			v2, err := parseVersion(args[2])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				_, err := a.MemoryAdapter(cmd.OutOrStdout()).Diff(ctx, args[0], v1, v2)
				return err
			})
		},
	}
}
