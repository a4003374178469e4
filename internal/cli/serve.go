package cli

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fatih/color"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	apihttp "github.com/lazygophers/ccmem/internal/adapters/http"
	"github.com/lazygophers/ccmem/internal/config"
	"github.com/lazygophers/ccmem/internal/ports/primary"
	"github.com/lazygophers/ccmem/internal/wire"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web API with scheduled cleanup",
		Long: `Serve the JSON web API until interrupted.

While serving, config.yaml is watched: hook priorities, the stop gate,
the request rate limit and the cleanup schedule apply without a restart.
Cleanup runs on the cron schedule of cleanup.schedule (five fields, e.g.
"0 3 * * *") with the cleanup.unused_days and cleanup.deprecated_days
thresholds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			listen, _ := cmd.Flags().GetString("listen")
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				return serve(ctx, cmd, a, listen)
			})
		},
	}
	cmd.Flags().String("listen", "", "Listen address (default: web.listen of config.yaml)")
	return cmd
}

func serve(ctx context.Context, cmd *cobra.Command, a *wire.App, listen string) error {
	cfg := a.Config
	if listen == "" {
		listen = cfg.Web.Listen
	}

	server := apihttp.NewServer(apihttp.Services{
		Memories:  a.Memories,
		Relations: a.Relations,
		Transfer:  a.Transfer,
		Hooks:     a.Hooks,
	}, cfg.Web.RateLimit, cfg.Web.Burst)

	cleanup := newCleanupScheduler(ctx, a.Transfer)
	if err := cleanup.Apply(cfg.Cleanup); err != nil {
		return err
	}
	cleanup.Start()
	defer cleanup.Stop()

	watcher, err := config.NewWatcher(cfg)
	if err != nil {
		return fmt.Errorf("failed to watch config: %w", err)
	}
	watcher.OnChange(func(next *config.Config) {
		a.Hooks.SetSettings(wire.HookSettings(next))
		server.SetRateLimit(next.Web.RateLimit, next.Web.Burst)
		if err := cleanup.Apply(next.Cleanup); err != nil {
			slog.Error("cleanup schedule not applied", "error", err)
		}
	})
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to watch config: %w", err)
	}
	defer watcher.Stop()

	fmt.Fprintf(cmd.OutOrStdout(), "%s Serving %s on http://%s\n", color.GreenString("✓"), cfg.DBPath, listen)
	return server.ListenAndServe(ctx, listen)
}

// cleanupScheduler runs CleanMemories on a cron schedule that can be
// replaced while running.
type cleanupScheduler struct {
	ctx      context.Context
	transfer primary.TransferService
	cron     *cron.Cron

	mu      sync.Mutex
	entry   cron.EntryID
	current config.CleanupConfig
}

func newCleanupScheduler(ctx context.Context, transfer primary.TransferService) *cleanupScheduler {
	return &cleanupScheduler{
		ctx:      ctx,
		transfer: transfer,
		cron:     cron.New(),
	}
}

// Apply replaces the schedule and thresholds. An empty schedule disables
// the job; an invalid one is rejected and the previous job is kept.
func (s *cleanupScheduler) Apply(policy config.CleanupConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if policy.Schedule != "" {
		if _, err := cron.ParseStandard(policy.Schedule); err != nil {
			return fmt.Errorf("invalid cleanup schedule %q: %w", policy.Schedule, err)
		}
	}

	if s.entry != 0 {
		s.cron.Remove(s.entry)
		s.entry = 0
	}
	s.current = policy
	if policy.Schedule == "" {
		return nil
	}

	id, err := s.cron.AddFunc(policy.Schedule, s.run)
	if err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", policy.Schedule, err)
	}
	s.entry = id
	slog.Info("cleanup scheduled", "schedule", policy.Schedule)
	return nil
}

func (s *cleanupScheduler) run() {
	s.mu.Lock()
	policy := s.current
	s.mu.Unlock()

	if policy.UnusedDays == nil && policy.DeprecatedDays == nil {
		return
	}
	res, err := s.transfer.CleanMemories(s.ctx, primary.CleanRequest{
		UnusedDays:     policy.UnusedDays,
		DeprecatedDays: policy.DeprecatedDays,
	})
	if err != nil {
		slog.Error("scheduled cleanup failed", "error", err)
		return
	}
	slog.Info("scheduled cleanup done", "archived", res.Archived, "cleaned", res.Cleaned)
}

// Entries reports how many jobs are scheduled.
func (s *cleanupScheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *cleanupScheduler) Start() { s.cron.Start() }

func (s *cleanupScheduler) Stop() {
	<-s.cron.Stop().Done()
}
