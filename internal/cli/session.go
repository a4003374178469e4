package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lazygophers/ccmem/internal/app"
	"github.com/lazygophers/ccmem/internal/core/memory"
	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/ports/primary"
	"github.com/lazygophers/ccmem/internal/wire"
)

// SessionsCmd returns the sessions command
func SessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recent host sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				_, err := a.SessionAdapter(cmd.OutOrStdout()).Sessions(ctx, limit)
				return err
			})
		},
	}
	cmd.Flags().Int("limit", app.DefaultSessionsLimit, "Maximum number of sessions")
	return cmd
}

// SolutionCmd returns the solution command - parent for error solutions
func SolutionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solution",
		Short: "Record and look up fixes for error messages",
	}
	cmd.AddCommand(solutionAddCmd())
	cmd.AddCommand(solutionFindCmd())
	cmd.AddCommand(solutionMarkCmd())
	return cmd
}

func solutionAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <pattern> <solution>",
		Short: "Record a solution for an error pattern",
		Long: `Record a solution for an error pattern. The pattern is matched as a
case-insensitive regular expression, or as a plain substring when it does
not compile.

Example:
  ccmem solution add "No module named '(.+)'" "pip install \1" --type ImportError`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			errorType, _ := cmd.Flags().GetString("type")
			source, _ := cmd.Flags().GetString("source")
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				_, err := a.SessionAdapter(cmd.OutOrStdout()).AddSolution(ctx, primary.RecordSolutionRequest{
					Pattern:   args[0],
					Solution:  args[1],
					ErrorType: errorType,
					Source:    source,
				})
				return err
			})
		},
	}
	cmd.Flags().String("type", "", "Error type (e.g. ImportError)")
	cmd.Flags().String("source", models.SourceManual, "learned, manual or imported")
	return cmd
}

func solutionFindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find <message>",
		Short: "Find the best known solution for an error message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				_, err := a.SessionAdapter(cmd.OutOrStdout()).FindSolution(ctx, args[0])
				return err
			})
		},
	}
}

func solutionMarkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mark <id>",
		Short: "Record whether applying a solution worked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: solution id must be an integer, got %q", memory.ErrInvalidArgument, args[0])
			}
			failed, _ := cmd.Flags().GetBool("failed")
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				return a.SessionAdapter(cmd.OutOrStdout()).MarkSolution(ctx, id, !failed)
			})
		},
	}
	cmd.Flags().Bool("failed", false, "The solution did not work")
	return cmd
}
