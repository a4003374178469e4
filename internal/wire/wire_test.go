package wire

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazygophers/ccmem/internal/config"
	"github.com/lazygophers/ccmem/internal/ports/primary"
)

func TestOpen(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default(root)
	cfg.Hooks.StopGateCommand = "true"

	ctx := context.Background()
	a, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.FileExists(t, cfg.DBPath)
	gitignore, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(gitignore), config.GitignoreRule)

	m, err := a.Memories.CreateMemory(ctx, primary.CreateMemoryRequest{URI: "project://structure", Content: "monorepo"})
	require.NoError(t, err)
	require.NotNil(t, m)

	var buf bytes.Buffer
	got, err := a.MemoryAdapter(&buf).Read(ctx, "project://structure")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.True(t, strings.Contains(buf.String(), "monorepo"))

	settings := HookSettings(cfg)
	assert.Equal(t, "true", settings.StopGateCommand)
	assert.Equal(t, cfg.Hooks.StopGateTimeout(), settings.StopGateTimeout)
	assert.Equal(t, 3, settings.Priorities["SessionEnd"])
}

func TestOpen_Reopen(t *testing.T) {
	cfg := config.Default(t.TempDir())
	ctx := context.Background()

	a, err := Open(ctx, cfg)
	require.NoError(t, err)
	_, err = a.Memories.CreateMemory(ctx, primary.CreateMemoryRequest{URI: "user://name", Content: "gopher"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer b.Close()

	m, err := b.Memories.GetMemory(ctx, "user://name", false)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "gopher", m.Content)
}
