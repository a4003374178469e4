// Package cli holds the cobra commands of the ccmem binary.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lazygophers/ccmem/internal/config"
	"github.com/lazygophers/ccmem/internal/core/memory"
	"github.com/lazygophers/ccmem/internal/logging"
	"github.com/lazygophers/ccmem/internal/version"
	"github.com/lazygophers/ccmem/internal/wire"
)

type runtimeKey struct{}

// runtime is what PersistentPreRunE resolves for every command.
type runtime struct {
	cfg    *config.Config
	cfgErr error
	logs   io.Closer
}

func runtimeFrom(cmd *cobra.Command) *runtime {
	if rt, ok := cmd.Context().Value(runtimeKey{}).(*runtime); ok {
		return rt
	}
	return &runtime{cfgErr: fmt.Errorf("configuration not loaded")}
}

// NewRootCmd builds the ccmem command tree.
func NewRootCmd() *cobra.Command {
	var project string

	root := &cobra.Command{
		Use:     "ccmem",
		Short:   "ccmem - durable, versioned project memory",
		Version: version.String(),
		Long: `ccmem stores URI-addressed memories for an AI coding assistant:
versioned content, priorities, lifecycle states, a typed relation graph,
import/export and hook-driven capture of host events.

The store lives in <project-root>/.lazygophers/ccplugin/memory/memory.db.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			dir := project
			if dir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("failed to get working directory: %w", err)
				}
				dir = wd
			}

			rt := &runtime{}
			rt.cfg, rt.cfgErr = config.Load(dir)
			if rt.cfgErr == nil {
				// A log file that cannot be opened must not fail the command.
				rt.logs, _ = logging.Setup(rt.cfg)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), runtimeKey{}, rt))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt := runtimeFrom(cmd); rt.logs != nil {
				rt.logs.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&project, "project", "", "Project directory (default: current directory)")

	// Memory commands
	root.AddCommand(CreateCmd())
	root.AddCommand(ReadCmd())
	root.AddCommand(UpdateCmd())
	root.AddCommand(DeleteCmd())
	root.AddCommand(SearchCmd())
	root.AddCommand(ListCmd())
	root.AddCommand(PriorityCmd())
	root.AddCommand(DeprecateCmd())
	root.AddCommand(ArchiveCmd())
	root.AddCommand(RestoreCmd())

	// History and graph
	root.AddCommand(VersionsCmd())
	root.AddCommand(RollbackCmd())
	root.AddCommand(DiffCmd())
	root.AddCommand(RelateCmd())
	root.AddCommand(RelationsCmd())
	root.AddCommand(UnrelateCmd())
	root.AddCommand(PathCmd())

	// Bulk operations
	root.AddCommand(ExportCmd())
	root.AddCommand(ImportCmd())
	root.AddCommand(CleanCmd())
	root.AddCommand(StatsCmd())

	// Sessions and error solutions
	root.AddCommand(SessionsCmd())
	root.AddCommand(SolutionCmd())

	// Integration
	root.AddCommand(HooksCmd())
	root.AddCommand(ServeCmd())
	root.AddCommand(DoctorCmd())

	return root
}

// withApp opens the store for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *wire.App) error) error {
	rt := runtimeFrom(cmd)
	if rt.cfgErr != nil {
		return rt.cfgErr
	}

	ctx := cmd.Context()
	a, err := wire.Open(ctx, rt.cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		slog.Error("command failed", "command", cmd.CommandPath(), "error", err)
		return err
	}
	return nil
}

// optionalInt returns the flag value when it was set on the command line.
func optionalInt(cmd *cobra.Command, name string) *int {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	n, _ := cmd.Flags().GetInt(name)
	return &n
}

func optionalString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	s, _ := cmd.Flags().GetString(name)
	return &s
}

func parsePriority(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: got %q", memory.ErrInvalidPriority, raw)
	}
	return n, nil
}

func parseVersion(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: version must be an integer, got %q", memory.ErrInvalidArgument, raw)
	}
	return n, nil
}

// metadataFlag converts --meta key=value pairs into a metadata map.
func metadataFlag(cmd *cobra.Command) map[string]any {
	pairs, _ := cmd.Flags().GetStringToString("meta")
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]any, len(pairs))
	for k, v := range pairs {
		out[k] = v
	}
	return out
}
