// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle output formatting, but delegate
// business logic to services.
package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/lazygophers/ccmem/internal/core/memory"
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	warnMark = color.New(color.FgYellow).Sprint("!")
)

const rule = "────────────────────────────────────────────────────────────────"

// notFound is the error returned when a lookup comes back empty.
func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, memory.ErrNotFound)
}

func success(out io.Writer, format string, args ...any) {
	fmt.Fprintf(out, "%s %s\n", okMark, fmt.Sprintf(format, args...))
}

func warn(out io.Writer, format string, args ...any) {
	fmt.Fprintf(out, "%s %s\n", warnMark, fmt.Sprintf(format, args...))
}

// statusLabel colours a memory status.
func statusLabel(status string) string {
	switch status {
	case memory.StatusActive:
		return color.New(color.FgGreen).Sprint(status)
	case memory.StatusDeprecated:
		return color.New(color.FgYellow).Sprint(status)
	case memory.StatusDeleted:
		return color.New(color.FgRed).Sprint(status)
	default:
		return color.New(color.FgBlue).Sprint(status)
	}
}

// preview shortens content to one line of at most n runes.
func preview(content string, n int) string {
	line := strings.ReplaceAll(content, "\n", " ")
	r := []rune(line)
	if len(r) <= n {
		return line
	}
	return string(r[:n-1]) + "…"
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}
