package memory

import "strings"

// Priority keys of the hook bridge. Event names are used as keys where an
// event writes a single kind of memory.
const (
	HookSessionEnd           = "SessionEnd"
	HookStop                 = "Stop"
	HookPostToolUse          = "PostToolUse"
	HookPostToolUseFailure   = "PostToolUseFailure"
	HookPreCompact           = "PreCompact"
	HookUserPromptSubmit     = "UserPromptSubmit"
	HookPermissionRequest    = "PermissionRequest"
	HookPermissionPreference = "PermissionPreference"
	HookNotification         = "Notification"
	HookNotificationError    = "NotificationError"
	HookNotificationWarning  = "NotificationWarning"
	HookNotificationIdle     = "NotificationIdle"
	HookSubagentContext      = "SubagentContext"
	HookSubagentStart        = "SubagentStart"
	HookSubagentStop         = "SubagentStop"
)

// DefaultHookPriorities returns the priority each hook write uses unless
// configuration overrides it.
func DefaultHookPriorities() map[string]int {
	return map[string]int{
		HookSessionEnd:           3,
		HookStop:                 2,
		HookPostToolUse:          4,
		HookPostToolUseFailure:   7,
		HookPreCompact:           3,
		HookUserPromptSubmit:     4,
		HookPermissionRequest:    5,
		HookPermissionPreference: 6,
		HookNotification:         5,
		HookNotificationError:    3,
		HookNotificationWarning:  4,
		HookNotificationIdle:     6,
		HookSubagentContext:      2,
		HookSubagentStart:        3,
		HookSubagentStop:         3,
	}
}

// NotificationPriorityKey classifies a notification: errors and warnings
// are upgraded, idle prompts downgraded.
func NotificationPriorityKey(notificationType, message string) string {
	text := strings.ToLower(notificationType + " " + message)
	switch {
	case strings.Contains(text, "error") || strings.Contains(text, "fail"):
		return HookNotificationError
	case strings.Contains(text, "warn"):
		return HookNotificationWarning
	case strings.Contains(notificationType, "idle"):
		return HookNotificationIdle
	default:
		return HookNotification
	}
}

// readTools and writeTools are the host tools whose file targets the
// bridge follows.
var (
	readTools  = map[string]bool{"Read": true, "Edit": true, "MultiEdit": true, "Write": true, "NotebookEdit": true}
	writeTools = map[string]bool{"Edit": true, "MultiEdit": true, "Write": true, "NotebookEdit": true}
)

// IsFileTool reports whether PreToolUse should look up memories for tool.
func IsFileTool(tool string) bool {
	return readTools[tool]
}

// IsWriteTool reports whether PostToolUse should record tool.
func IsWriteTool(tool string) bool {
	return writeTools[tool]
}
