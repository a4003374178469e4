package primary

import (
	"context"
	"encoding/json"
)

// Hook event names dispatched by the bridge.
const (
	EventSessionStart       = "SessionStart"
	EventSessionEnd         = "SessionEnd"
	EventStop               = "Stop"
	EventPreToolUse         = "PreToolUse"
	EventPostToolUse        = "PostToolUse"
	EventPostToolUseFailure = "PostToolUseFailure"
	EventPreCompact         = "PreCompact"
	EventUserPromptSubmit   = "UserPromptSubmit"
	EventPermissionRequest  = "PermissionRequest"
	EventNotification       = "Notification"
	EventSubagentStart      = "SubagentStart"
	EventSubagentStop       = "SubagentStop"
)

// HookService defines the primary port of the hook ingestion bridge.
type HookService interface {
	// Handle processes one host event. It never fails: handler errors are
	// logged and the default output is returned. Only a failing stop gate
	// produces a blocking output.
	Handle(ctx context.Context, input HookInput) HookOutput
}

// HookInput is the JSON payload the host writes to stdin. Only
// hook_event_name is always present; the rest depends on the event.
type HookInput struct {
	HookEventName      string          `json:"hook_event_name"`
	SessionID          string          `json:"session_id"`
	TranscriptPath     string          `json:"transcript_path"`
	Cwd                string          `json:"cwd"`
	Source             string          `json:"source"`
	Reason             string          `json:"reason"`
	Message            string          `json:"message"`
	Title              string          `json:"title"`
	NotificationType   string          `json:"notification_type"`
	ToolName           string          `json:"tool_name"`
	ToolInput          map[string]any  `json:"tool_input"`
	ToolResponse       json.RawMessage `json:"tool_response"`
	Error              string          `json:"error"`
	Prompt             string          `json:"prompt"`
	Trigger            string          `json:"trigger"`
	CustomInstructions string          `json:"custom_instructions"`
	StopHookActive     bool            `json:"stop_hook_active"`
	Decision           string          `json:"decision"`
	AgentID            string          `json:"agent_id"`
	AgentType          string          `json:"agent_type"`
	Success            *bool           `json:"success"`
}

// FilePath returns the file path the tool call targets, if any.
func (in HookInput) FilePath() string {
	for _, key := range []string{"file_path", "notebook_path", "path"} {
		if v, ok := in.ToolInput[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// HookOutput is the JSON response written to stdout.
type HookOutput struct {
	Continue           bool                `json:"continue"`
	SuppressOutput     *bool               `json:"suppressOutput,omitempty"`
	Decision           string              `json:"decision,omitempty"`
	Reason             string              `json:"reason,omitempty"`
	HookSpecificOutput *HookSpecificOutput `json:"hookSpecificOutput,omitempty"`
}

// HookSpecificOutput carries context injected back into the host.
type HookSpecificOutput struct {
	HookEventName     string `json:"hookEventName"`
	AdditionalContext string `json:"additionalContext,omitempty"`
}

// DefaultHookOutput lets the host continue.
func DefaultHookOutput() HookOutput {
	suppress := false
	return HookOutput{Continue: true, SuppressOutput: &suppress}
}

// BlockHookOutput stops the host with a reason.
func BlockHookOutput(reason string) HookOutput {
	return HookOutput{Continue: false, Decision: "block", Reason: reason}
}

// Blocking reports whether the output blocks the host.
func (o HookOutput) Blocking() bool {
	return o.Decision == "block"
}
