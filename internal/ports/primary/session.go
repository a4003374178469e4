package primary

import (
	"context"

	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/ports/secondary"
)

// SessionService defines the primary port for host session records.
type SessionService interface {
	// CreateSession records a session start. Repeated starts of the same
	// session return the existing record.
	CreateSession(ctx context.Context, sessionID, projectDir, projectName string) (*models.Session, error)

	// EndSession stamps the end and summary of a session, or returns nil.
	EndSession(ctx context.Context, sessionID, summary string) (*models.Session, error)

	// GetSession retrieves a session, or nil.
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)

	// ListSessions returns recent sessions, newest first.
	ListSessions(ctx context.Context, limit int) ([]*models.Session, error)

	// RecordActivity bumps the counters of a session.
	RecordActivity(ctx context.Context, sessionID string, delta secondary.SessionCounters) error
}
