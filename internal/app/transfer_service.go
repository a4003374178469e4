package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lazygophers/ccmem/internal/core/memory"
	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/ports/primary"
	"github.com/lazygophers/ccmem/internal/ports/secondary"
)

// TimestampFormat is the ISO-8601 layout of exported timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// TransferServiceImpl implements the TransferService interface.
type TransferServiceImpl struct {
	tx          secondary.Transactor
	memorySvc   primary.MemoryService
	relationSvc primary.RelationService
	memories    secondary.MemoryRepository
	versions    secondary.VersionRepository
	relations   secondary.RelationRepository
	now         func() time.Time
}

// NewTransferService creates a new TransferService with injected dependencies.
func NewTransferService(
	tx secondary.Transactor,
	memorySvc primary.MemoryService,
	relationSvc primary.RelationService,
	memories secondary.MemoryRepository,
	versions secondary.VersionRepository,
	relations secondary.RelationRepository,
) *TransferServiceImpl {
	return &TransferServiceImpl{
		tx:          tx,
		memorySvc:   memorySvc,
		relationSvc: relationSvc,
		memories:    memories,
		versions:    versions,
		relations:   relations,
		now:         models.Now,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

func parseTime(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q", memory.ErrInvalidArgument, s)
	}
	return t.UTC().Truncate(time.Millisecond), nil
}

// ExportMemories builds an export document of every memory under the
// prefix, deleted ones included so that an import restores them.
func (s *TransferServiceImpl) ExportMemories(ctx context.Context, req primary.ExportRequest) (*primary.ExportDocument, error) {
	all, err := s.memories.List(ctx, secondary.MemoryFilters{
		URIPrefix:      req.URIPrefix,
		IncludeDeleted: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export memories: %w", err)
	}

	doc := &primary.ExportDocument{
		ExportedAt: formatTime(s.now()),
		Version:    primary.ExportFormatVersion,
		Memories:   make([]primary.ExportedMemory, 0, len(all)),
	}
	for _, m := range all {
		priority := m.Priority
		entry := primary.ExportedMemory{
			URI:        m.URI,
			Content:    m.Content,
			Priority:   &priority,
			Disclosure: m.Disclosure,
			Status:     m.Status,
			Metadata:   map[string]any(m.Metadata),
			CreatedAt:  formatTime(m.CreatedAt),
			UpdatedAt:  formatTime(m.UpdatedAt),
		}
		if entry.Metadata == nil {
			entry.Metadata = map[string]any{}
		}
		if m.DeprecatedAt != nil {
			entry.DeprecatedAt = formatTime(*m.DeprecatedAt)
		}

		if req.IncludeVersions {
			versions, err := s.versions.List(ctx, m.ID, 0)
			if err != nil {
				return nil, fmt.Errorf("failed to export versions of %s: %w", m.URI, err)
			}
			// Oldest first so an import replays them in order.
			for i := len(versions) - 1; i >= 0; i-- {
				v := versions[i]
				entry.Versions = append(entry.Versions, primary.ExportedVersion{
					Version:      v.Version,
					Content:      v.Content,
					ChangedAt:    formatTime(v.ChangedAt),
					ChangeReason: v.ChangeReason,
					ChangedBy:    v.ChangedBy,
				})
			}
		}

		if req.IncludeRelations {
			rels, err := s.relationSvc.GetRelations(ctx, m.URI, primary.DirectionBoth)
			if err != nil {
				return nil, fmt.Errorf("failed to export relations of %s: %w", m.URI, err)
			}
			entry.Relations = rels
		}

		doc.Memories = append(doc.Memories, entry)
	}
	return doc, nil
}

type importDocument struct {
	Version  string            `json:"version"`
	Memories []json.RawMessage `json:"memories"`
}

// ImportMemories applies an export document entry by entry. A malformed or
// failing entry is counted and the batch goes on. Outgoing relations are
// applied once every memory exists.
func (s *TransferServiceImpl) ImportMemories(ctx context.Context, req primary.ImportRequest) (*primary.ImportResult, error) {
	strategy := req.Strategy
	if strategy == "" {
		strategy = primary.StrategySkip
	}
	switch strategy {
	case primary.StrategySkip, primary.StrategyOverwrite, primary.StrategyMerge:
	default:
		return nil, fmt.Errorf("%w: unknown import strategy %q", memory.ErrInvalidArgument, strategy)
	}

	var doc importDocument
	if err := json.Unmarshal(req.Data, &doc); err != nil {
		return nil, fmt.Errorf("%w: malformed export document: %v", memory.ErrInvalidArgument, err)
	}
	changedBy := req.ChangedBy
	if changedBy == "" {
		changedBy = "import"
	}

	result := &primary.ImportResult{}
	var linked []primary.ExportedMemory
	for i, raw := range doc.Memories {
		var entry primary.ExportedMemory
		if err := json.Unmarshal(raw, &entry); err != nil {
			slog.Warn("import entry malformed", "index", i, "error", err)
			result.Errors++
			continue
		}

		outcome, err := s.importEntry(ctx, entry, strategy, changedBy)
		if err != nil {
			slog.Warn("import entry failed", "index", i, "uri", entry.URI, "error", err)
			result.Errors++
			continue
		}
		switch outcome {
		case importCreated:
			result.Created++
		case importUpdated:
			result.Updated++
		default:
			result.Skipped++
		}
		if len(entry.Relations) > 0 {
			linked = append(linked, entry)
		}
	}

	for _, entry := range linked {
		for _, rel := range entry.Relations {
			if rel.Direction != primary.DirectionOut || rel.TargetURI == "" {
				continue
			}
			if err := s.importRelation(ctx, entry.URI, rel); err != nil {
				slog.Warn("import relation failed", "source", entry.URI, "target", rel.TargetURI, "error", err)
				result.Errors++
			}
		}
	}

	slog.Info("import finished", "strategy", strategy, "created", result.Created,
		"updated", result.Updated, "skipped", result.Skipped, "errors", result.Errors)
	return result, nil
}

// importRelation replays an exported edge. Endpoints are resolved in any
// status: a soft-deleted memory still exists and keeps its edges.
func (s *TransferServiceImpl) importRelation(ctx context.Context, srcURI string, rel primary.RelationInfo) error {
	if err := validateRelation(rel.RelationType, rel.Strength); err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		src, err := s.memories.GetByURI(ctx, srcURI)
		if err != nil {
			return err
		}
		dst, err := s.memories.GetByURI(ctx, rel.TargetURI)
		if err != nil {
			return err
		}
		if src == nil || dst == nil {
			return fmt.Errorf("%w: relation endpoint %s -> %s", memory.ErrNotFound, srcURI, rel.TargetURI)
		}
		return s.relations.Upsert(ctx, &models.MemoryRelation{
			SourceMemoryID: src.ID,
			TargetMemoryID: dst.ID,
			RelationType:   rel.RelationType,
			Strength:       rel.Strength,
			CreatedAt:      s.now(),
		})
	})
}

type importOutcome int

const (
	importSkipped importOutcome = iota
	importCreated
	importUpdated
)

func (s *TransferServiceImpl) importEntry(ctx context.Context, entry primary.ExportedMemory, strategy, changedBy string) (importOutcome, error) {
	if _, _, err := memory.ParseURI(entry.URI); err != nil {
		return importSkipped, err
	}
	priority := memory.PriorityDefault
	if entry.Priority != nil {
		priority = *entry.Priority
	}
	if err := memory.ValidatePriority(priority); err != nil {
		return importSkipped, err
	}
	if entry.Status != "" && !memory.ValidStatus(entry.Status) {
		return importSkipped, fmt.Errorf("%w: unknown status %q", memory.ErrInvalidArgument, entry.Status)
	}

	outcome := importSkipped
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		existing, err := s.memories.GetByURI(ctx, entry.URI)
		if err != nil {
			return err
		}
		if existing == nil {
			outcome = importCreated
			return s.restore(ctx, entry, priority)
		}

		switch strategy {
		case primary.StrategyOverwrite:
			if _, err := s.memorySvc.CreateMemory(ctx, primary.CreateMemoryRequest{
				URI:        entry.URI,
				Content:    entry.Content,
				Priority:   &priority,
				Disclosure: entry.Disclosure,
				Metadata:   entry.Metadata,
				ChangedBy:  changedBy,
			}); err != nil {
				return err
			}
			outcome = importUpdated
		case primary.StrategyMerge:
			if existing.Content == entry.Content {
				return nil
			}
			p := existing.Priority
			if _, err := s.memorySvc.CreateMemory(ctx, primary.CreateMemoryRequest{
				URI:        entry.URI,
				Content:    memory.AppendContent(existing.Content, entry.Content),
				Priority:   &p,
				Disclosure: existing.Disclosure,
				Metadata:   existing.Metadata.Merge(entry.Metadata),
				ChangedBy:  changedBy,
			}); err != nil {
				return err
			}
			outcome = importUpdated
		}
		return nil
	})
	if err != nil {
		return importSkipped, err
	}
	return outcome, nil
}

// restore inserts an exported memory as it was, with its timestamps, status
// and version history.
func (s *TransferServiceImpl) restore(ctx context.Context, entry primary.ExportedMemory, priority int) error {
	now := s.now()
	created, err := parseTime(entry.CreatedAt, now)
	if err != nil {
		return err
	}
	updated, err := parseTime(entry.UpdatedAt, created)
	if err != nil {
		return err
	}
	status := entry.Status
	if status == "" {
		status = models.StatusActive
	}

	m := &models.Memory{
		URI:         entry.URI,
		Content:     entry.Content,
		ContentHash: models.ContentHash(entry.Content),
		Priority:    priority,
		Disclosure:  entry.Disclosure,
		Status:      status,
		CreatedAt:   created,
		UpdatedAt:   updated,
		Metadata:    models.JSONMap{}.Merge(entry.Metadata),
	}
	if entry.DeprecatedAt != "" {
		at, err := parseTime(entry.DeprecatedAt, now)
		if err != nil {
			return err
		}
		m.DeprecatedAt = &at
	}
	if err := s.memories.Create(ctx, m); err != nil {
		return err
	}

	for _, v := range entry.Versions {
		changed, err := parseTime(v.ChangedAt, updated)
		if err != nil {
			return err
		}
		if err := s.versions.Create(ctx, &models.MemoryVersion{
			MemoryID:     m.ID,
			Version:      v.Version,
			Content:      v.Content,
			ChangedAt:    changed,
			ChangeReason: v.ChangeReason,
			ChangedBy:    v.ChangedBy,
		}); err != nil {
			return err
		}
	}
	return nil
}

// GetStats aggregates counters over the store.
func (s *TransferServiceImpl) GetStats(ctx context.Context) (*primary.Stats, error) {
	byStatus, err := s.memories.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count memories: %w", err)
	}
	byPriority, err := s.memories.CountByPriority(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count priorities: %w", err)
	}

	stats := &primary.Stats{
		Active:      byStatus[models.StatusActive],
		Deprecated:  byStatus[models.StatusDeprecated],
		Archived:    byStatus[models.StatusArchived],
		ByPriority:  byPriority,
		ByURIPrefix: make(map[string]int64, len(memory.KnownSchemes)),
	}
	for status, n := range byStatus {
		if status != models.StatusDeleted {
			stats.Total += n
		}
	}
	for _, scheme := range memory.KnownSchemes {
		n, err := s.memories.CountByPrefix(ctx, memory.DomainPrefix(scheme))
		if err != nil {
			return nil, fmt.Errorf("failed to count %s memories: %w", scheme, err)
		}
		stats.ByURIPrefix[scheme] = n
	}
	if stats.VersionsCount, err = s.versions.Count(ctx, 0); err != nil {
		return nil, fmt.Errorf("failed to count versions: %w", err)
	}
	if stats.RelationsCount, err = s.relations.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count relations: %w", err)
	}
	return stats, nil
}

// CleanMemories archives active memories unused for UnusedDays and
// soft-deletes memories deprecated for DeprecatedDays.
func (s *TransferServiceImpl) CleanMemories(ctx context.Context, req primary.CleanRequest) (*primary.CleanResult, error) {
	for _, days := range []*int{req.UnusedDays, req.DeprecatedDays} {
		if days != nil && *days < 0 {
			return nil, fmt.Errorf("%w: days must be >= 0 (got %d)", memory.ErrInvalidArgument, *days)
		}
	}

	result := &primary.CleanResult{DryRun: req.DryRun}
	now := s.now()
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if req.UnusedDays != nil {
			unused, err := s.memories.ListUnusedBefore(ctx, now.AddDate(0, 0, -*req.UnusedDays))
			if err != nil {
				return err
			}
			for _, m := range unused {
				if !req.DryRun {
					if _, err := s.memorySvc.ArchiveMemory(ctx, m.URI); err != nil {
						return err
					}
				}
				result.Archived++
			}
		}
		if req.DeprecatedDays != nil {
			stale, err := s.memories.ListDeprecatedBefore(ctx, now.AddDate(0, 0, -*req.DeprecatedDays))
			if err != nil {
				return err
			}
			for _, m := range stale {
				if !req.DryRun {
					if _, err := s.memorySvc.DeleteMemory(ctx, m.URI, true); err != nil {
						return err
					}
				}
				result.Cleaned++
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clean memories: %w", err)
	}

	slog.Info("cleanup finished", "archived", result.Archived, "cleaned", result.Cleaned, "dry_run", req.DryRun)
	return result, nil
}

var _ primary.TransferService = (*TransferServiceImpl)(nil)
