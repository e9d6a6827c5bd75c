package watcher

import "github.com/bmatcuk/doublestar/v4"

// ExcludeSet matches absolute paths (and bare directory names during
// traversal pruning) against a set of glob patterns. Exclusions apply
// uniformly to the initial scan and to live events, per spec.md §4.4.
// Uses doublestar for `**`-aware glob matching, adopted from
// cuemby-warren's go.mod (listed there for ignore-pattern matching) since
// the stdlib's path/filepath.Match cannot express `**`.
type ExcludeSet struct {
	patterns []string
}

// NewExcludeSet builds an ExcludeSet from raw glob patterns.
func NewExcludeSet(patterns []string) *ExcludeSet {
	return &ExcludeSet{patterns: patterns}
}

// Matches reports whether path matches any configured exclude pattern.
func (e *ExcludeSet) Matches(path string) bool {
	for _, p := range e.patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
		// also try matching the bare basename for simple non-path patterns
		if ok, _ := doublestar.Match(p, base(path)); ok {
			return true
		}
	}
	return false
}

func base(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
