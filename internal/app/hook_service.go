package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lazygophers/ccmem/internal/core/memory"
	"github.com/lazygophers/ccmem/internal/ctxutil"
	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/ports/primary"
	"github.com/lazygophers/ccmem/internal/ports/secondary"
)

// HookActor is the changed_by of every write made by the bridge.
const HookActor = "hook"

// HookURITimeFormat names timestamped hook memories, e.g.
// stop://20260101-120000.000.
const HookURITimeFormat = "20060102-150405.000"

// Result sizes of the read paths of the bridge.
const (
	preToolUseLimit     = 3
	promptMatchesPerKey = 2
	compactPerKeyword   = 5
	subagentSummaryMax  = 5
	contextSnippetLen   = 200
)

// DefaultStopGateTimeout bounds the stop gate command.
const DefaultStopGateTimeout = 60 * time.Second

// HookSettings are the live-reloadable settings of the bridge.
type HookSettings struct {
	Priorities      map[string]int
	StopGateCommand string
	StopGateTimeout time.Duration
}

// GateRunner runs the stop gate command in dir. A non-nil error whose
// chain holds an *exec.ExitError means the gate failed.
type GateRunner func(ctx context.Context, command, dir string) (string, error)

// ShellGateRunner runs command through sh -c.
func ShellGateRunner(ctx context.Context, command, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// HookServiceImpl implements the HookService interface.
type HookServiceImpl struct {
	tx          secondary.Transactor
	memorySvc   primary.MemoryService
	sessionSvc  primary.SessionService
	solutionSvc primary.ErrorSolutionService
	runGate     GateRunner
	now         func() time.Time
	newID       func() string

	mu       sync.RWMutex
	settings HookSettings
}

// NewHookService creates a new HookService with injected dependencies.
func NewHookService(
	tx secondary.Transactor,
	memorySvc primary.MemoryService,
	sessionSvc primary.SessionService,
	solutionSvc primary.ErrorSolutionService,
	settings HookSettings,
) *HookServiceImpl {
	return &HookServiceImpl{
		tx:          tx,
		memorySvc:   memorySvc,
		sessionSvc:  sessionSvc,
		solutionSvc: solutionSvc,
		runGate:     ShellGateRunner,
		now:         models.Now,
		newID:       uuid.NewString,
		settings:    settings,
	}
}

// SetSettings swaps the settings used by subsequent events.
func (h *HookServiceImpl) SetSettings(settings HookSettings) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.settings = settings
}

// SetGateRunner replaces the stop gate runner.
func (h *HookServiceImpl) SetGateRunner(run GateRunner) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runGate = run
}

func (h *HookServiceImpl) snapshot() (HookSettings, GateRunner) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.settings, h.runGate
}

// Priority returns the configured priority for a hook write.
func (h *HookServiceImpl) Priority(key string) int {
	settings, _ := h.snapshot()
	if p, ok := settings.Priorities[key]; ok && memory.ValidatePriority(p) == nil {
		return p
	}
	if p, ok := memory.DefaultHookPriorities()[key]; ok {
		return p
	}
	return memory.PriorityDefault
}

// hookResult is what a handler hands back to Handle.
type hookResult struct {
	context  string
	created  int64
	accessed int64
}

type hookHandler func(ctx context.Context, in primary.HookInput) (hookResult, error)

func (h *HookServiceImpl) handler(event string) hookHandler {
	switch event {
	case primary.EventSessionStart:
		return h.onSessionStart
	case primary.EventSessionEnd:
		return h.onSessionEnd
	case primary.EventStop:
		return h.onStop
	case primary.EventPreToolUse:
		return h.onPreToolUse
	case primary.EventPostToolUse:
		return h.onPostToolUse
	case primary.EventPostToolUseFailure:
		return h.onPostToolUseFailure
	case primary.EventPreCompact:
		return h.onPreCompact
	case primary.EventUserPromptSubmit:
		return h.onUserPromptSubmit
	case primary.EventPermissionRequest:
		return h.onPermissionRequest
	case primary.EventNotification:
		return h.onNotification
	case primary.EventSubagentStart:
		return h.onSubagentStart
	case primary.EventSubagentStop:
		return h.onSubagentStop
	}
	return nil
}

// Handle processes one host event inside a single transaction. Failures
// are logged and the default output is returned.
func (h *HookServiceImpl) Handle(ctx context.Context, in primary.HookInput) primary.HookOutput {
	out := primary.DefaultHookOutput()
	ctx = ctxutil.WithActor(ctx, HookActor)
	logger := slog.With("event", in.HookEventName, "session_id", in.SessionID)

	handle := h.handler(in.HookEventName)
	if handle == nil {
		logger.Debug("hook event ignored")
		return out
	}

	var res hookResult
	err := h.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if res, err = handle(ctx, in); err != nil {
			return err
		}
		if in.SessionID == "" {
			return nil
		}
		return h.sessionSvc.RecordActivity(ctx, in.SessionID, secondary.SessionCounters{
			MemoriesCreated:  res.created,
			MemoriesAccessed: res.accessed,
			Operations:       1,
		})
	})
	if err != nil {
		logger.Error("hook handler failed", "error", err)
	} else {
		logger.Debug("hook handled", "created", res.created, "accessed", res.accessed)
		if res.context != "" {
			out.HookSpecificOutput = &primary.HookSpecificOutput{
				HookEventName:     in.HookEventName,
				AdditionalContext: res.context,
			}
		}
	}

	if in.HookEventName == primary.EventStop {
		if reason, blocked := h.checkStopGate(ctx, in); blocked {
			return primary.BlockHookOutput(reason)
		}
	}
	return out
}

// checkStopGate runs the configured gate. Only a non-zero exit blocks; a
// gate that cannot be run is logged and ignored.
func (h *HookServiceImpl) checkStopGate(ctx context.Context, in primary.HookInput) (string, bool) {
	settings, run := h.snapshot()
	if settings.StopGateCommand == "" || in.StopHookActive || run == nil {
		return "", false
	}
	timeout := settings.StopGateTimeout
	if timeout <= 0 {
		timeout = DefaultStopGateTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output, err := run(ctx, settings.StopGateCommand, in.Cwd)
	if err == nil {
		return "", false
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || ctx.Err() != nil {
		slog.Warn("stop gate could not run", "command", settings.StopGateCommand, "error", err)
		return "", false
	}

	reason := fmt.Sprintf("%v: %s: %v", memory.ErrPolicyDenied, settings.StopGateCommand, err)
	if tail := strings.TrimSpace(output); tail != "" {
		reason += "\n" + tail
	}
	slog.Info("stop blocked by gate", "command", settings.StopGateCommand, "exit_code", exitErr.ExitCode())
	return reason, true
}

// stamp is the timestamp path of a hook memory URI.
func (h *HookServiceImpl) stamp() string {
	return h.now().UTC().Format(HookURITimeFormat)
}

func (h *HookServiceImpl) write(ctx context.Context, uri, content, priorityKey string, metadata map[string]any) (*models.Memory, error) {
	p := h.Priority(priorityKey)
	return h.memorySvc.CreateMemory(ctx, primary.CreateMemoryRequest{
		URI:      uri,
		Content:  content,
		Priority: &p,
		Metadata: metadata,
	})
}

func sessionMeta(in primary.HookInput, extra map[string]any) map[string]any {
	meta := map[string]any{"hook_event": in.HookEventName}
	if in.SessionID != "" {
		meta["session_id"] = in.SessionID
	}
	for k, v := range extra {
		meta[k] = v
	}
	return meta
}

func snippet(content string) string {
	content = strings.TrimSpace(content)
	if r := []rune(content); len(r) > contextSnippetLen {
		return string(r[:contextSnippetLen]) + "..."
	}
	return content
}

// renderMemories formats memories for additionalContext.
func renderMemories(title string, memories []*models.Memory) string {
	if len(memories) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## ")
	b.WriteString(title)
	b.WriteString("\n")
	for _, m := range memories {
		fmt.Fprintf(&b, "- [P%d] %s: %s\n", m.Priority, m.URI, snippet(m.Content))
	}
	return strings.TrimRight(b.String(), "\n")
}

// collect appends memories not yet seen.
func collect(dst []*models.Memory, seen map[string]bool, src []*models.Memory) []*models.Memory {
	for _, m := range src {
		if !seen[m.URI] {
			seen[m.URI] = true
			dst = append(dst, m)
		}
	}
	return dst
}

func (h *HookServiceImpl) onSessionStart(ctx context.Context, in primary.HookInput) (hookResult, error) {
	if in.SessionID != "" {
		name := ""
		if in.Cwd != "" {
			name = filepath.Base(in.Cwd)
		}
		if _, err := h.sessionSvc.CreateSession(ctx, in.SessionID, in.Cwd, name); err != nil {
			return hookResult{}, err
		}
	}
	core, err := h.memorySvc.GetMemoriesByPriority(ctx, memory.PreloadMax)
	if err != nil {
		return hookResult{}, err
	}
	return hookResult{
		context:  renderMemories("Project memories", core),
		accessed: int64(len(core)),
	}, nil
}

func (h *HookServiceImpl) onSessionEnd(ctx context.Context, in primary.HookInput) (hookResult, error) {
	content := fmt.Sprintf("Session %s ended", in.SessionID)
	if in.Reason != "" {
		content += " (reason: " + in.Reason + ")"
	}
	if in.Message != "" {
		content += "\n" + in.Message
	}
	if _, err := h.write(ctx, memory.BuildURI("session", h.stamp()), content, memory.HookSessionEnd,
		sessionMeta(in, map[string]any{"reason": in.Reason})); err != nil {
		return hookResult{}, err
	}
	if in.SessionID != "" {
		if _, err := h.sessionSvc.EndSession(ctx, in.SessionID, content); err != nil {
			return hookResult{}, err
		}
	}
	return hookResult{created: 1}, nil
}

func (h *HookServiceImpl) onStop(ctx context.Context, in primary.HookInput) (hookResult, error) {
	reason := in.Reason
	if reason == "" {
		reason = "completed"
	}
	if _, err := h.write(ctx, memory.BuildURI("stop", h.stamp()), "Stopped: "+reason, memory.HookStop,
		sessionMeta(in, map[string]any{"stop_hook_active": in.StopHookActive})); err != nil {
		return hookResult{}, err
	}
	return hookResult{created: 1}, nil
}

func (h *HookServiceImpl) onPreToolUse(ctx context.Context, in primary.HookInput) (hookResult, error) {
	path := in.FilePath()
	if !memory.IsFileTool(in.ToolName) || path == "" {
		return hookResult{}, nil
	}
	found, err := h.memorySvc.SearchMemories(ctx, primary.SearchRequest{
		Query:  path,
		Status: models.StatusActive,
		Limit:  preToolUseLimit,
	})
	if err != nil {
		return hookResult{}, err
	}
	return hookResult{
		context:  renderMemories("Memories for "+path, found),
		accessed: int64(len(found)),
	}, nil
}

func (h *HookServiceImpl) onPostToolUse(ctx context.Context, in primary.HookInput) (hookResult, error) {
	path := in.FilePath()
	if !memory.IsWriteTool(in.ToolName) || path == "" {
		return hookResult{}, nil
	}
	m, err := h.write(ctx, memory.BuildURI("file", path),
		fmt.Sprintf("%s modified with %s", path, in.ToolName), memory.HookPostToolUse,
		sessionMeta(in, map[string]any{"tool": in.ToolName, "modified_at": h.stamp()}))
	if err != nil {
		return hookResult{}, err
	}
	if _, err := h.memorySvc.AddMemoryPath(ctx, m.ID, path); err != nil {
		return hookResult{}, err
	}
	return hookResult{created: 1}, nil
}

func (h *HookServiceImpl) onPostToolUseFailure(ctx context.Context, in primary.HookInput) (hookResult, error) {
	msg := in.Error
	if msg == "" {
		msg = strings.TrimSpace(string(in.ToolResponse))
	}
	content := fmt.Sprintf("Tool %s failed: %s", in.ToolName, msg)
	if _, err := h.write(ctx, memory.BuildURI("error", h.stamp()), content, memory.HookPostToolUseFailure,
		sessionMeta(in, map[string]any{"tool": in.ToolName})); err != nil {
		return hookResult{}, err
	}

	res := hookResult{created: 1}
	solution, err := h.solutionSvc.FindErrorSolution(ctx, msg)
	if err != nil {
		return hookResult{}, err
	}
	if solution != nil {
		res.context = fmt.Sprintf("## Known solution (#%d, %d successes)\n%s",
			solution.ID, solution.SuccessCount, solution.Solution)
	}
	return res, nil
}

func (h *HookServiceImpl) onPreCompact(ctx context.Context, in primary.HookInput) (hookResult, error) {
	seen := make(map[string]bool)
	var matched []*models.Memory
	for _, kw := range memory.CompactKeywords {
		found, err := h.memorySvc.SearchMemories(ctx, primary.SearchRequest{
			Query:  kw,
			Status: models.StatusActive,
			Limit:  compactPerKeyword,
		})
		if err != nil {
			return hookResult{}, err
		}
		matched = collect(matched, seen, found)
	}

	var b strings.Builder
	trigger := in.Trigger
	if trigger == "" {
		trigger = "auto"
	}
	fmt.Fprintf(&b, "Context compaction (%s): %d key memories", trigger, len(matched))
	for _, m := range matched {
		fmt.Fprintf(&b, "\n- %s: %s", m.URI, snippet(m.Content))
	}
	if in.CustomInstructions != "" {
		b.WriteString("\nInstructions: " + in.CustomInstructions)
	}
	if _, err := h.write(ctx, memory.BuildURI("compact", h.stamp()), b.String(), memory.HookPreCompact,
		sessionMeta(in, map[string]any{"trigger": trigger, "memories": len(matched)})); err != nil {
		return hookResult{}, err
	}
	return hookResult{created: 1, accessed: int64(len(matched))}, nil
}

func (h *HookServiceImpl) onUserPromptSubmit(ctx context.Context, in primary.HookInput) (hookResult, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		return hookResult{}, nil
	}
	keywords := memory.ExtractKeywords(in.Prompt)
	seen := make(map[string]bool)
	var matched []*models.Memory
	for _, kw := range keywords {
		found, err := h.memorySvc.SearchMemories(ctx, primary.SearchRequest{
			Query:  kw,
			Status: models.StatusActive,
			Limit:  promptMatchesPerKey,
		})
		if err != nil {
			return hookResult{}, err
		}
		matched = collect(matched, seen, found)
	}

	if _, err := h.write(ctx, memory.BuildURI("prompt", h.stamp()), in.Prompt, memory.HookUserPromptSubmit,
		sessionMeta(in, map[string]any{"keywords": keywords})); err != nil {
		return hookResult{}, err
	}
	return hookResult{
		context:  renderMemories("Related memories", matched),
		created:  1,
		accessed: int64(len(matched)),
	}, nil
}

func (h *HookServiceImpl) onPermissionRequest(ctx context.Context, in primary.HookInput) (hookResult, error) {
	tool := in.ToolName
	if tool == "" {
		tool = "unknown"
	}
	decision := in.Decision
	if decision == "" {
		decision = "ask"
	}
	content := fmt.Sprintf("Permission %s for %s", decision, tool)
	if _, err := h.write(ctx, memory.BuildURI("permission", tool+"/"+h.stamp()), content, memory.HookPermissionRequest,
		sessionMeta(in, map[string]any{"tool": tool, "decision": decision})); err != nil {
		return hookResult{}, err
	}
	res := hookResult{created: 1}

	if decision != "allow" {
		return res, nil
	}
	prefURI := memory.BuildURI("preference", "permission/"+tool)
	existing, err := h.memorySvc.GetMemory(ctx, prefURI, false)
	if err != nil {
		return hookResult{}, err
	}
	if existing == nil {
		if _, err := h.write(ctx, prefURI, fmt.Sprintf("User allows %s", tool), memory.HookPermissionPreference,
			sessionMeta(in, map[string]any{"tool": tool})); err != nil {
			return hookResult{}, err
		}
		res.created++
	}
	return res, nil
}

func (h *HookServiceImpl) onNotification(ctx context.Context, in primary.HookInput) (hookResult, error) {
	if in.Message == "" && in.Title == "" {
		return hookResult{}, nil
	}
	content := in.Message
	if in.Title != "" {
		content = in.Title + ": " + in.Message
	}
	key := memory.NotificationPriorityKey(in.NotificationType, in.Message)
	if _, err := h.write(ctx, memory.BuildURI("notification", h.stamp()), content, key,
		sessionMeta(in, map[string]any{"notification_type": in.NotificationType})); err != nil {
		return hookResult{}, err
	}
	return hookResult{created: 1}, nil
}

func (h *HookServiceImpl) subagentID(in primary.HookInput) string {
	if in.AgentID != "" {
		return in.AgentID
	}
	return h.newID()
}

func (h *HookServiceImpl) onSubagentStart(ctx context.Context, in primary.HookInput) (hookResult, error) {
	id := h.subagentID(in)
	core, err := h.memorySvc.GetMemoriesByPriority(ctx, memory.CoreMax)
	if err != nil {
		return hookResult{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Core context for subagent %s (%d memories)", id, len(core))
	for _, m := range core {
		fmt.Fprintf(&b, "\n- [P%d] %s: %s", m.Priority, m.URI, snippet(m.Content))
	}
	meta := sessionMeta(in, map[string]any{"agent_id": id, "agent_type": in.AgentType})
	if _, err := h.write(ctx, memory.BuildURI("subagent", id+"/context"), b.String(), memory.HookSubagentContext, meta); err != nil {
		return hookResult{}, err
	}

	started := fmt.Sprintf("Subagent %s started", id)
	if in.AgentType != "" {
		started += " (" + in.AgentType + ")"
	}
	if _, err := h.write(ctx, memory.BuildURI("subagent", id+"/start"), started, memory.HookSubagentStart, meta); err != nil {
		return hookResult{}, err
	}
	return hookResult{
		context:  renderMemories("Core memories", core),
		created:  2,
		accessed: int64(len(core)),
	}, nil
}

func (h *HookServiceImpl) onSubagentStop(ctx context.Context, in primary.HookInput) (hookResult, error) {
	if in.AgentID == "" || (in.Success != nil && !*in.Success) {
		return hookResult{}, nil
	}
	summaryURI := memory.BuildURI("subagent", in.AgentID+"/summary")
	own, err := h.memorySvc.ListMemories(ctx, primary.ListRequest{
		URIPrefix: memory.BuildURI("subagent", in.AgentID+"/"),
		Limit:     subagentSummaryMax + 1,
	})
	if err != nil {
		return hookResult{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Subagent %s finished", in.AgentID)
	n := 0
	for _, m := range own {
		if m.URI == summaryURI || n == subagentSummaryMax {
			continue
		}
		fmt.Fprintf(&b, "\n- %s: %s", m.URI, snippet(m.Content))
		n++
	}
	if _, err := h.write(ctx, summaryURI, b.String(), memory.HookSubagentStop,
		sessionMeta(in, map[string]any{"agent_id": in.AgentID, "memories": n})); err != nil {
		return hookResult{}, err
	}
	return hookResult{created: 1, accessed: int64(n)}, nil
}

var _ primary.HookService = (*HookServiceImpl)(nil)
