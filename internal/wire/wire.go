// Package wire provides dependency injection for the ccmem application.
// Open builds the whole object graph over one database handle; callers
// close it when the command finishes.
package wire

import (
	"context"
	"fmt"
	"io"

	cliadapter "github.com/lazygophers/ccmem/internal/adapters/cli"
	"github.com/lazygophers/ccmem/internal/adapters/sqlite"
	"github.com/lazygophers/ccmem/internal/app"
	"github.com/lazygophers/ccmem/internal/config"
	"github.com/lazygophers/ccmem/internal/db"
	"github.com/lazygophers/ccmem/internal/models"
)

// App holds the services of one opened memory store.
type App struct {
	Config *config.Config
	Engine *db.Engine

	Memories  *app.MemoryServiceImpl
	Relations *app.RelationServiceImpl
	Transfer  *app.TransferServiceImpl
	Sessions  *app.SessionServiceImpl
	Solutions *app.ErrorSolutionServiceImpl
	Hooks     *app.HookServiceImpl
}

// Open lays out the memory directory, connects to the database, brings the
// schema up to date and wires every service.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.EnsureLayout(); err != nil {
		return nil, err
	}

	engine, err := db.Open(ctx, db.Options{
		Path:        cfg.DBPath,
		PoolSize:    cfg.Database.PoolSize,
		BusyTimeout: cfg.Database.BusyTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := models.InitSchema(ctx, engine); err != nil {
		engine.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return newApp(cfg, engine), nil
}

func newApp(cfg *config.Config, engine *db.Engine) *App {
	// Create repository adapters (secondary ports)
	memoryRepo := sqlite.NewMemoryRepository(engine)
	versionRepo := sqlite.NewVersionRepository(engine)
	relationRepo := sqlite.NewRelationRepository(engine)
	pathRepo := sqlite.NewPathRepository(engine)
	sessionRepo := sqlite.NewSessionRepository(engine)
	solutionRepo := sqlite.NewErrorSolutionRepository(engine)

	// Create services (primary ports implementation)
	memories := app.NewMemoryService(engine, memoryRepo, versionRepo, relationRepo, pathRepo)
	relations := app.NewRelationService(engine, memoryRepo, relationRepo)
	sessions := app.NewSessionService(sessionRepo)
	solutions := app.NewErrorSolutionService(solutionRepo)

	return &App{
		Config:    cfg,
		Engine:    engine,
		Memories:  memories,
		Relations: relations,
		Transfer:  app.NewTransferService(engine, memories, relations, memoryRepo, versionRepo, relationRepo),
		Sessions:  sessions,
		Solutions: solutions,
		Hooks:     app.NewHookService(engine, memories, sessions, solutions, HookSettings(cfg)),
	}
}

// HookSettings derives the bridge settings from cfg.
func HookSettings(cfg *config.Config) app.HookSettings {
	return app.HookSettings{
		Priorities:      cfg.Hooks.Priorities,
		StopGateCommand: cfg.Hooks.StopGateCommand,
		StopGateTimeout: cfg.Hooks.StopGateTimeout(),
	}
}

// Close releases the database handle.
func (a *App) Close() error {
	return a.Engine.Close()
}

// MemoryAdapter returns a new MemoryAdapter writing to out.
// Each call creates a new adapter (adapters are stateless translators).
func (a *App) MemoryAdapter(out io.Writer) *cliadapter.MemoryAdapter {
	return cliadapter.NewMemoryAdapter(a.Memories, out)
}

// RelationAdapter returns a new RelationAdapter writing to out.
func (a *App) RelationAdapter(out io.Writer) *cliadapter.RelationAdapter {
	return cliadapter.NewRelationAdapter(a.Relations, out)
}

// TransferAdapter returns a new TransferAdapter writing to out.
func (a *App) TransferAdapter(out io.Writer) *cliadapter.TransferAdapter {
	return cliadapter.NewTransferAdapter(a.Transfer, out)
}

// SessionAdapter returns a new SessionAdapter writing to out.
func (a *App) SessionAdapter(out io.Writer) *cliadapter.SessionAdapter {
	return cliadapter.NewSessionAdapter(a.Sessions, a.Solutions, out)
}
