package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/lazygophers/ccmem/internal/db"
	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/orm"
	"github.com/lazygophers/ccmem/internal/ports/secondary"
)

// SessionRepository implements secondary.SessionRepository with SQLite.
type SessionRepository struct {
	model *orm.Model[models.Session, *models.Session]
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(engine *db.Engine) *SessionRepository {
	return &SessionRepository{model: orm.NewModel[models.Session](engine, models.SessionsTable)}
}

// Create inserts a session or returns the existing one.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) (*models.Session, bool, error) {
	out, created, err := r.model.FirstOrCreate(ctx, orm.Where("session_id = ?", session.SessionID), session)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create session: %w", err)
	}
	return out, created, nil
}

// GetBySessionID retrieves a session.
func (r *SessionRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error) {
	return r.model.First(ctx, orm.Where("session_id = ?", sessionID))
}

// End stamps ended_at and the summary.
func (r *SessionRepository) End(ctx context.Context, sessionID, summary string, at time.Time) (bool, error) {
	n, err := r.model.Update(ctx, orm.Where("session_id = ?", sessionID), map[string]any{
		"ended_at": at,
		"summary":  summary,
	})
	if err != nil {
		return false, fmt.Errorf("failed to end session: %w", err)
	}
	return n > 0, nil
}

// Increment adds deltas to the session counters.
func (r *SessionRepository) Increment(ctx context.Context, sessionID string, delta secondary.SessionCounters) error {
	_, err := r.model.Engine().Execute(ctx, `
		UPDATE sessions SET
			memories_created = memories_created + ?,
			memories_accessed = memories_accessed + ?,
			operations_count = operations_count + ?
		WHERE session_id = ?`,
		delta.MemoriesCreated, delta.MemoriesAccessed, delta.Operations, sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session counters: %w", err)
	}
	return nil
}

// List returns sessions newest first.
func (r *SessionRepository) List(ctx context.Context, limit int) ([]*models.Session, error) {
	q := orm.Query{OrderBy: "started_at DESC, id DESC", Limit: limit}
	return r.model.Find(ctx, q)
}

var _ secondary.SessionRepository = (*SessionRepository)(nil)
