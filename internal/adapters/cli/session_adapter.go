package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/ports/primary"
)

// SessionAdapter translates CLI operations to the session and
// error-solution services.
type SessionAdapter struct {
	sessions  primary.SessionService
	solutions primary.ErrorSolutionService
	out       io.Writer
}

// NewSessionAdapter creates a new SessionAdapter with the given services.
func NewSessionAdapter(sessions primary.SessionService, solutions primary.ErrorSolutionService, out io.Writer) *SessionAdapter {
	return &SessionAdapter{
		sessions:  sessions,
		solutions: solutions,
		out:       out,
	}
}

// Sessions lists recent sessions.
func (a *SessionAdapter) Sessions(ctx context.Context, limit int) ([]*models.Session, error) {
	sessions, err := a.sessions.ListSessions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(a.out, "No sessions recorded")
		return sessions, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "SESSION\tPROJECT\tSTARTED\tENDED\tCREATED\tACCESSED\tOPS")
	fmt.Fprintln(w, "-------\t-------\t-------\t-----\t-------\t--------\t---")
	for _, s := range sessions {
		ended := "-"
		if s.EndedAt != nil {
			ended = formatTime(*s.EndedAt)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			s.SessionID,
			s.ProjectName,
			formatTime(s.StartedAt),
			ended,
			s.MemoriesCreated,
			s.MemoriesAccessed,
			s.OperationsCount,
		)
	}
	w.Flush()
	return sessions, nil
}

// AddSolution records a solution for an error pattern.
func (a *SessionAdapter) AddSolution(ctx context.Context, req primary.RecordSolutionRequest) (*models.ErrorSolution, error) {
	sol, err := a.solutions.RecordErrorSolution(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to record solution: %w", err)
	}

	success(a.out, "Recorded solution #%d for %q", sol.ID, sol.ErrorPattern)
	return sol, nil
}

// FindSolution prints the best known solution for message.
func (a *SessionAdapter) FindSolution(ctx context.Context, message string) (*models.ErrorSolution, error) {
	sol, err := a.solutions.FindErrorSolution(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to find solution: %w", err)
	}
	if sol == nil {
		return nil, notFound("solution")
	}

	fmt.Fprintf(a.out, "Solution #%d (%s, %s)\n", sol.ID, sol.ErrorType, sol.Source)
	fmt.Fprintf(a.out, "Pattern:  %s\n", sol.ErrorPattern)
	fmt.Fprintf(a.out, "Score:    %d ok / %d failed\n", sol.SuccessCount, sol.FailureCount)
	fmt.Fprintln(a.out, rule)
	fmt.Fprintln(a.out, sol.Solution)
	return sol, nil
}

// MarkSolution records whether applying solution id worked.
func (a *SessionAdapter) MarkSolution(ctx context.Context, id int64, worked bool) error {
	ok, err := a.solutions.MarkSolutionSuccess(ctx, id, worked)
	if err != nil {
		return fmt.Errorf("failed to mark solution: %w", err)
	}
	if !ok {
		return notFound(fmt.Sprintf("solution #%d", id))
	}

	outcome := "success"
	if !worked {
		outcome = "failure"
	}
	success(a.out, "Recorded %s for solution #%d", outcome, id)
	return nil
}
