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

	"github.com/fatih/color"

	"github.com/lazygophers/ccmem/internal/config"
	"github.com/lazygophers/ccmem/internal/core/memory"
	"github.com/lazygophers/ccmem/internal/ports/primary"
)

func newProject(t *testing.T) string {
	t.Helper()
	color.NoColor = true
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0755); err != nil {
		t.Fatalf("mkdir .git: %v", err)
	}
	return dir
}

func execute(t *testing.T, project, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--project", project}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCreateThenRead(t *testing.T) {
	project := newProject(t)

	if _, err := execute(t, project, "", "create", "project://structure", "monorepo", "--priority", "1"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	out, err := execute(t, project, "", "read", "project://structure")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(out, "monorepo") {
		t.Errorf("read output missing content:\n%s", out)
	}
	if !strings.Contains(out, "Priority: 1") {
		t.Errorf("read output missing priority:\n%s", out)
	}

	if _, err := os.Stat(filepath.Join(project, filepath.FromSlash(config.MemoryDirRel), config.DBFileName)); err != nil {
		t.Errorf("database not created under the project: %v", err)
	}
}

func TestReadMissingIsNotFound(t *testing.T) {
	project := newProject(t)

	_, err := execute(t, project, "", "read", "project://missing")
	if !errors.Is(err, memory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateRejectsInvalidURI(t *testing.T) {
	project := newProject(t)

	_, err := execute(t, project, "", "create", "no-scheme", "x")
	if !errors.Is(err, memory.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestHooksMalformedInputFailsOpen(t *testing.T) {
	project := newProject(t)

	out, err := execute(t, project, "not json", "hooks")
	if err != nil {
		t.Fatalf("hooks must not fail: %v", err)
	}

	var got primary.HookOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("hooks output is not JSON: %v\n%s", err, out)
	}
	if !got.Continue {
		t.Error("expected continue=true")
	}
}

func TestHooksSessionStartInjectsMemories(t *testing.T) {
	project := newProject(t)

	if _, err := execute(t, project, "", "create", "project://rules", "always run make lint", "--priority", "0"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	event := `{"hook_event_name":"SessionStart","session_id":"abc123","cwd":"` + filepath.ToSlash(project) + `"}`
	out, err := execute(t, project, event, "hooks")
	if err != nil {
		t.Fatalf("hooks failed: %v", err)
	}

	var got primary.HookOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("hooks output is not JSON: %v\n%s", err, out)
	}
	if !got.Continue {
		t.Error("expected continue=true")
	}
	if got.HookSpecificOutput == nil || !strings.Contains(got.HookSpecificOutput.AdditionalContext, "always run make lint") {
		t.Errorf("expected the priority 0 memory in additional context, got %s", out)
	}

	sessions, err := execute(t, project, "", "sessions")
	if err != nil {
		t.Fatalf("sessions failed: %v", err)
	}
	if !strings.Contains(sessions, "abc123") {
		t.Errorf("session not recorded:\n%s", sessions)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newProject(t)
	dst := newProject(t)
	file := filepath.Join(t.TempDir(), "memories.json")

	if _, err := execute(t, src, "", "create", "user://editor", "vim"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := execute(t, src, "", "export", file); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if _, err := execute(t, dst, "", "import", file); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	out, err := execute(t, dst, "", "read", "user://editor")
	if err != nil {
		t.Fatalf("read after import failed: %v", err)
	}
	if !strings.Contains(out, "vim") {
		t.Errorf("imported content missing:\n%s", out)
	}
}

func TestCleanupSchedulerApply(t *testing.T) {
	s := newCleanupScheduler(context.Background(), nil)
	days := 30

	if err := s.Apply(config.CleanupConfig{Schedule: "0 3 * * *", UnusedDays: &days}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := s.Entries(); got != 1 {
		t.Fatalf("expected 1 entry, got %d", got)
	}

	// Replacing keeps a single job.
	if err := s.Apply(config.CleanupConfig{Schedule: "*/5 * * * *", UnusedDays: &days}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := s.Entries(); got != 1 {
		t.Errorf("expected 1 entry after replace, got %d", got)
	}

	// An invalid schedule keeps the previous job.
	if err := s.Apply(config.CleanupConfig{Schedule: "every day"}); err == nil {
		t.Error("expected error for invalid schedule")
	}
	if got := s.Entries(); got != 1 {
		t.Errorf("expected previous job kept, got %d entries", got)
	}

	if err := s.Apply(config.CleanupConfig{}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := s.Entries(); got != 0 {
		t.Errorf("expected empty schedule to disable the job, got %d entries", got)
	}
}
