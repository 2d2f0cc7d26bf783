package utils

import (
	"path/filepath"
	"strings"
)

// PathResolver validates scan roots against a set of allowed base paths,
// preventing traversal outside the configured library locations.
type PathResolver struct {
	allowedBases []string
}

// NewPathResolver creates a resolver for the given base paths. An empty list
// means every path is allowed.
func NewPathResolver(allowedBases []string) *PathResolver {
	cleaned := make([]string, 0, len(allowedBases))
	for _, base := range allowedBases {
		if base == "" {
			continue
		}
		cleaned = append(cleaned, filepath.Clean(base))
	}
	return &PathResolver{allowedBases: cleaned}
}

// IsAllowed reports whether path is equal to or nested under one of the
// allowed base paths. Relative components are resolved before comparison so
// "/media/../etc" does not pass as "/media".
func (r *PathResolver) IsAllowed(path string) bool {
	if len(r.allowedBases) == 0 {
		return true
	}

	clean := filepath.Clean(path)
	for _, base := range r.allowedBases {
		if clean == base {
			return true
		}
		if strings.HasPrefix(clean, base+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
