package memory

import (
	"fmt"
	"strings"
)

// KnownSchemes are the built-in URI schemes. Other schemes are accepted.
var KnownSchemes = []string{
	"project", "workflow", "user", "task", "system", "session", "file", "error",
	"preference", "notification", "prompt", "compact", "stop", "subagent", "permission",
}

const schemeSep = "://"

// ParseURI splits a memory URI into scheme and path. The scheme must be
// non-empty and the path may be empty.
func ParseURI(uri string) (scheme, path string, err error) {
	i := strings.Index(uri, schemeSep)
	if i <= 0 {
		return "", "", fmt.Errorf("%w: malformed uri %q, expected scheme://path", ErrInvalidArgument, uri)
	}
	scheme = uri[:i]
	for _, r := range scheme {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-' || r == '.') {
			return "", "", fmt.Errorf("%w: malformed uri scheme %q", ErrInvalidArgument, scheme)
		}
	}
	return scheme, uri[i+len(schemeSep):], nil
}

// Scheme returns the scheme of uri, or "" when it is malformed.
func Scheme(uri string) string {
	scheme, _, err := ParseURI(uri)
	if err != nil {
		return ""
	}
	return scheme
}

// BuildURI joins a scheme and a path.
func BuildURI(scheme, path string) string {
	return scheme + schemeSep + path
}

// DomainPrefix turns a --domain value into a URI prefix: a bare scheme
// becomes "scheme://", anything containing "://" is used as is.
func DomainPrefix(domain string) string {
	if domain == "" || strings.Contains(domain, schemeSep) {
		return domain
	}
	return domain + schemeSep
}
