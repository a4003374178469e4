package app

import (
	"context"
	"fmt"

	"github.com/lazygophers/ccmem/internal/core/memory"
	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/ports/primary"
	"github.com/lazygophers/ccmem/internal/ports/secondary"
)

// DefaultSessionsLimit is the page size of ListSessions.
const DefaultSessionsLimit = 20

// SessionServiceImpl implements the SessionService interface.
type SessionServiceImpl struct {
	sessions secondary.SessionRepository
}

// NewSessionService creates a new SessionService with injected dependencies.
func NewSessionService(sessions secondary.SessionRepository) *SessionServiceImpl {
	return &SessionServiceImpl{sessions: sessions}
}

// CreateSession records a session start.
func (s *SessionServiceImpl) CreateSession(ctx context.Context, sessionID, projectDir, projectName string) (*models.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", memory.ErrInvalidArgument)
	}
	session, _, err := s.sessions.Create(ctx, &models.Session{
		SessionID:   sessionID,
		ProjectDir:  projectDir,
		ProjectName: projectName,
		StartedAt:   models.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session %s: %w", sessionID, err)
	}
	return session, nil
}

// EndSession stamps the end and summary of a session.
func (s *SessionServiceImpl) EndSession(ctx context.Context, sessionID, summary string) (*models.Session, error) {
	ok, err := s.sessions.End(ctx, sessionID, summary, models.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to end session %s: %w", sessionID, err)
	}
	if !ok {
		return nil, nil
	}
	return s.sessions.GetBySessionID(ctx, sessionID)
}

// GetSession retrieves a session.
func (s *SessionServiceImpl) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.sessions.GetBySessionID(ctx, sessionID)
}

// ListSessions returns recent sessions, newest first.
func (s *SessionServiceImpl) ListSessions(ctx context.Context, limit int) ([]*models.Session, error) {
	if limit <= 0 {
		limit = DefaultSessionsLimit
	}
	return s.sessions.List(ctx, limit)
}

// RecordActivity bumps the counters of a session. Unknown sessions are
// ignored.
func (s *SessionServiceImpl) RecordActivity(ctx context.Context, sessionID string, delta secondary.SessionCounters) error {
	if sessionID == "" || delta == (secondary.SessionCounters{}) {
		return nil
	}
	if err := s.sessions.Increment(ctx, sessionID, delta); err != nil {
		return fmt.Errorf("failed to record session activity: %w", err)
	}
	return nil
}

var _ primary.SessionService = (*SessionServiceImpl)(nil)
