package memory

import "strings"

// ContentChange describes a requested content mutation. Nil fields are
// absent.
type ContentChange struct {
	Content *string
	Append  bool
	OldText *string
	NewText *string
}

// ResolveContent applies a change to current content. Substring
// replacement wins when both OldText and NewText are set; otherwise Content
// is appended with a newline separator when Append is set, or replaces the
// current content. The bool reports whether the result differs.
func ResolveContent(current string, change ContentChange) (string, bool) {
	next := current
	switch {
	case change.OldText != nil && change.NewText != nil:
		if *change.OldText != "" {
			next = strings.ReplaceAll(current, *change.OldText, *change.NewText)
		}
	case change.Content != nil && change.Append:
		next = AppendContent(current, *change.Content)
	case change.Content != nil:
		next = *change.Content
	}
	return next, next != current
}

// AppendContent joins two contents with a single newline.
func AppendContent(current, extra string) string {
	return current + "\n" + extra
}

// MergeMetadata shallow-merges patch over base into a new map.
func MergeMetadata(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
