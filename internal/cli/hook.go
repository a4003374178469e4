package cli

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lazygophers/ccmem/internal/ports/primary"
	"github.com/lazygophers/ccmem/internal/wire"
)

// HooksCmd returns the hooks command - the bridge for host hook events
func HooksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hooks",
		Short: "Handle one host hook event read from stdin",
		Long: `Process a host hook event.

Reads one JSON event from stdin, dispatches on hook_event_name and writes a
JSON response to stdout. The command always exits 0: failures are logged
and the host is told to continue. Only a failing stop gate answers with a
block decision.

Example:
  echo '{"hook_event_name":"SessionStart","session_id":"abc"}' | ccmem hooks`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := runHook(cmd)
			data, err := json.Marshal(out)
			if err != nil {
				return nil //nolint:nilerr // intentional fail-open design
			}
			cmd.OutOrStdout().Write(append(data, '\n'))
			return nil
		},
	}
}

func runHook(cmd *cobra.Command) primary.HookOutput {
	// 1. Read stdin JSON
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		slog.Warn("hook stdin unreadable", "error", err)
		return primary.DefaultHookOutput()
	}

	// 2. Parse hook event
	var in primary.HookInput
	if err := json.Unmarshal(data, &in); err != nil {
		slog.Warn("hook payload is not JSON", "error", err)
		return primary.DefaultHookOutput()
	}

	// 3. Open the store for this one event and dispatch
	out := primary.DefaultHookOutput()
	err = withApp(cmd, func(ctx context.Context, a *wire.App) error {
		out = a.Hooks.Handle(ctx, in)
		return nil
	})
	if err != nil {
		slog.Error("hook store unavailable", "event", in.HookEventName, "error", err)
		return primary.DefaultHookOutput()
	}
	return out
}
