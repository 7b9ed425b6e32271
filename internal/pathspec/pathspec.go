// Package pathspec matches slash-separated paths against glob patterns
// supporting '*', '?', and bracket character classes. Bulk index
// operations union the matches of every pattern; an empty pattern set
// matches nothing, which is not an error.
package pathspec

import (
	"fmt"
	"path"
	"strings"
)

// Matcher is a compiled, reusable pattern set.
type Matcher struct {
	patterns []string
}

// New validates each pattern's syntax up front so Match never errors.
func New(patterns []string) (*Matcher, error) {
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	return &Matcher{patterns: patterns}, nil
}

// Match reports whether p matches any pattern. A pattern without a slash
// also matches against the path's basename, so "*.txt" selects text files
// at any depth.
func (m *Matcher) Match(p string) bool {
	for _, pat := range m.patterns {
		if ok, _ := path.Match(pat, p); ok {
			return true
		}
		if !strings.Contains(pat, "/") {
			if ok, _ := path.Match(pat, path.Base(p)); ok {
				return true
			}
		}
	}
	return false
}

// Empty reports whether the matcher has no patterns.
func (m *Matcher) Empty() bool {
	return len(m.patterns) == 0
}
