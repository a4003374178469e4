package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lazygophers/ccmem/internal/core/memory"
	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/ports/primary"
)

func TestTransferAdapter_ExportImport(t *testing.T) {
	var imported primary.ImportRequest
	mock := &mockTransferService{
		exportFn: func(ctx context.Context, req primary.ExportRequest) (*primary.ExportDocument, error) {
			return &primary.ExportDocument{
				ExportedAt: "2026-01-01T09:00:00.000Z",
				Version:    primary.ExportFormatVersion,
				Memories:   []primary.ExportedMemory{{URI: "x://1", Content: "alpha"}},
			}, nil
		},
		importFn: func(ctx context.Context, req primary.ImportRequest) (*primary.ImportResult, error) {
			imported = req
			return &primary.ImportResult{Created: 1, Errors: 2}, nil
		},
	}
	var out bytes.Buffer
	adapter := NewTransferAdapter(mock, &out)
	path := filepath.Join(t.TempDir(), "export.json")
	ctx := context.Background()

	if _, err := adapter.Export(ctx, path, primary.ExportRequest{}); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var doc primary.ExportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if doc.Version != "1.0" || len(doc.Memories) != 1 {
		t.Errorf("unexpected document: %+v", doc)
	}

	res, err := adapter.Import(ctx, path, primary.StrategyMerge)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Created != 1 {
		t.Errorf("expected 1 created, got %d", res.Created)
	}
	if imported.Strategy != primary.StrategyMerge || !bytes.Equal(imported.Data, data) {
		t.Errorf("import request not forwarded: %+v", imported.Strategy)
	}
	if !strings.Contains(out.String(), "2 malformed entries ignored") {
		t.Errorf("expected error count warning, got %q", out.String())
	}
}

func TestTransferAdapter_ExportStdout(t *testing.T) {
	mock := &mockTransferService{
		exportFn: func(ctx context.Context, req primary.ExportRequest) (*primary.ExportDocument, error) {
			return &primary.ExportDocument{Version: "1.0", Memories: []primary.ExportedMemory{}}, nil
		},
	}
	var out bytes.Buffer
	if _, err := NewTransferAdapter(mock, &out).Export(context.Background(), "-", primary.ExportRequest{}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(out.String(), "{") || !strings.Contains(out.String(), `"version": "1.0"`) {
		t.Errorf("expected JSON document on output, got %q", out.String())
	}
}

func TestTransferAdapter_ImportMissingFile(t *testing.T) {
	adapter := NewTransferAdapter(&mockTransferService{}, &bytes.Buffer{})
	if _, err := adapter.Import(context.Background(), filepath.Join(t.TempDir(), "nope.json"), ""); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestTransferAdapter_Stats(t *testing.T) {
	mock := &mockTransferService{
		statsFn: func(ctx context.Context) (*primary.Stats, error) {
			return &primary.Stats{
				Total:       3,
				Active:      2,
				Archived:    1,
				ByPriority:  map[int]int64{5: 2, 1: 1},
				ByURIPrefix: map[string]int64{"project://": 3, "user://": 0},
			}, nil
		},
	}
	var out bytes.Buffer
	if _, err := NewTransferAdapter(mock, &out).Stats(context.Background()); err != nil {
		t.Fatalf("stats: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Total:      3") {
		t.Errorf("missing total: %q", got)
	}
	if strings.Index(got, "1   ") > strings.Index(got, "5   ") {
		t.Errorf("priorities not sorted: %q", got)
	}
	if !strings.Contains(got, "project://") || strings.Contains(got, "user://") {
		t.Errorf("expected only non-empty prefixes: %q", got)
	}
}

func TestTransferAdapter_CleanDryRun(t *testing.T) {
	mock := &mockTransferService{
		cleanFn: func(ctx context.Context, req primary.CleanRequest) (*primary.CleanResult, error) {
			return &primary.CleanResult{Archived: 2, Cleaned: 1, DryRun: req.DryRun}, nil
		},
	}
	var out bytes.Buffer
	days := 30
	if _, err := NewTransferAdapter(mock, &out).Clean(context.Background(), primary.CleanRequest{UnusedDays: &days, DryRun: true}); err != nil {
		t.Fatalf("clean: %v", err)
	}
	if !strings.Contains(out.String(), "would archive 2 and delete 1") {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func TestRelationAdapter(t *testing.T) {
	mock := &mockRelationService{
		getFn: func(ctx context.Context, uri, direction string) ([]primary.RelationInfo, error) {
			return []primary.RelationInfo{
				{RelationType: "depends_on", Strength: 0.5, Direction: "out", TargetURI: "b://1"},
				{RelationType: "relates_to", Strength: 0.9, Direction: "in", SourceURI: "c://1"},
			}, nil
		},
	}
	var out bytes.Buffer
	adapter := NewRelationAdapter(mock, &out)
	ctx := context.Background()

	if err := adapter.Relate(ctx, "a://1", "b://1", "depends_on", 0.5); err != nil {
		t.Fatalf("relate: %v", err)
	}
	if _, err := adapter.Relations(ctx, "a://1", ""); err != nil {
		t.Fatalf("relations: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "a://1 -[depends_on 0.50]-> b://1") {
		t.Errorf("missing relate line: %q", got)
	}
	if !strings.Contains(got, "<-") || !strings.Contains(got, "c://1") {
		t.Errorf("missing incoming edge: %q", got)
	}

	err := adapter.Unrelate(ctx, "a://1", "b://1", "")
	if !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRelationAdapter_MissingEndpoint(t *testing.T) {
	mock := &mockRelationService{
		addFn: func(ctx context.Context, src, dst, relationType string, strength float64) (*models.MemoryRelation, error) {
			return nil, nil
		},
	}
	err := NewRelationAdapter(mock, &bytes.Buffer{}).Relate(context.Background(), "a://1", "z://9", "relates_to", 0.5)
	if !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionAdapter(t *testing.T) {
	solutions := &mockSolutionService{solution: &models.ErrorSolution{
		ID:           7,
		ErrorPattern: "No module named '(.+)'",
		Solution:     "install it",
		ErrorType:    "ImportError",
		Source:       "manual",
	}}
	sessions := &mockSessionService{sessions: []*models.Session{{SessionID: "s1", ProjectName: "ccmem"}}}
	var out bytes.Buffer
	adapter := NewSessionAdapter(sessions, solutions, &out)
	ctx := context.Background()

	if _, err := adapter.Sessions(ctx, 20); err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if _, err := adapter.FindSolution(ctx, "No module named 'requests'"); err != nil {
		t.Fatalf("find: %v", err)
	}
	if err := adapter.MarkSolution(ctx, 7, true); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if !solutions.marked[7] {
		t.Error("expected solution 7 marked as success")
	}
	if err := adapter.MarkSolution(ctx, 8, false); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown solution, got %v", err)
	}

	got := out.String()
	for _, want := range []string{"s1", "ccmem", "Solution #7 (ImportError, manual)", "install it", "Recorded success for solution #7"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}
