package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/version"
	"github.com/lazygophers/ccmem/internal/wire"
)

// CheckResult represents the outcome of a single check
type CheckResult struct {
	Name    string
	Status  string // "✓", "⚠", "✗"
	Details string
}

// DoctorCmd returns the doctor command for store validation
func DoctorCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the memory store",
		Long: `Health check for the memory store of this project.

Validates:
- Project root and database location
- Schema migrations
- SQLite integrity check

Examples:
  ccmem doctor            # Run full health check
  ccmem doctor --quiet    # Exit code only (0=healthy, 1=issues)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var results []CheckResult
			err := withApp(cmd, func(ctx context.Context, a *wire.App) error {
				results = runChecks(ctx, a)
				return nil
			})
			if err != nil {
				return err
			}

			hasErrors := false
			for _, r := range results {
				if r.Status == "✗" {
					hasErrors = true
				}
			}
			if !quiet {
				printResults(cmd, results)
			}
			if hasErrors {
				return fmt.Errorf("memory store has problems")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Exit code only")
	return cmd
}

func runChecks(ctx context.Context, a *wire.App) []CheckResult {
	results := []CheckResult{
		{Name: "Version", Status: "✓", Details: version.String()},
		{Name: "Project root", Status: "✓", Details: a.Config.ProjectRoot},
	}

	dbCheck := CheckResult{Name: "Database", Status: "✓", Details: a.Config.DBPath}
	if info, err := os.Stat(a.Config.DBPath); err != nil {
		dbCheck.Status = "✗"
		dbCheck.Details = err.Error()
	} else {
		dbCheck.Details = fmt.Sprintf("%s (%d bytes)", a.Config.DBPath, info.Size())
	}
	results = append(results, dbCheck)

	schema := CheckResult{Name: "Schema", Status: "✓"}
	if v, err := a.Engine.SchemaVersion(ctx); err != nil {
		schema.Status = "✗"
		schema.Details = err.Error()
	} else if latest := latestMigration(); v < latest {
		schema.Status = "⚠"
		schema.Details = fmt.Sprintf("migration %d of %d applied", v, latest)
	} else {
		schema.Details = fmt.Sprintf("migration %d", v)
	}
	results = append(results, schema)

	integrity := CheckResult{Name: "Integrity", Status: "✓"}
	if res, err := a.Engine.IntegrityCheck(ctx); err != nil {
		integrity.Status = "✗"
		integrity.Details = err.Error()
	} else if res != "ok" {
		integrity.Status = "✗"
		integrity.Details = res
	} else {
		integrity.Details = res
	}
	results = append(results, integrity)

	return results
}

func latestMigration() int {
	latest := 0
	for _, m := range models.Migrations() {
		latest = max(latest, m.Version)
	}
	return latest
}

func printResults(cmd *cobra.Command, results []CheckResult) {
	out := cmd.OutOrStdout()
	for _, r := range results {
		mark := r.Status
		switch r.Status {
		case "✓":
			mark = color.New(color.FgGreen).Sprint(r.Status)
		case "⚠":
			mark = color.New(color.FgYellow).Sprint(r.Status)
		case "✗":
			mark = color.New(color.FgRed).Sprint(r.Status)
		}
		fmt.Fprintf(out, "%s %-13s %s\n", mark, r.Name, r.Details)
	}
}
