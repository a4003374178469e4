package memory

import (
	"regexp"
	"strings"
)

// MatchErrorPattern reports whether message matches pattern. The pattern is
// compiled as a case-insensitive regular expression; when it does not
// compile, a case-insensitive substring test is used instead.
func MatchErrorPattern(pattern, message string) bool {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return strings.Contains(strings.ToLower(message), strings.ToLower(pattern))
	}
	return re.MatchString(message)
}
