// Package ignore decides which paths under the source tree are noise:
// VCS metadata, OS clutter and the temporary files editors write while saving.
package ignore

import (
	"path"
	"path/filepath"
	"strings"
)

// DefaultPatterns are always ignored. They are matched against every path component.
var DefaultPatterns = []string{
	".git",
	".hg",
	".svn",
	".DS_Store",
	"Thumbs.db",
	"*.swp",
	"*.swx",
	"*~",
	".#*",
	"#*#",
	"4913", // vim's write-permission probe
	"*.tmp",
}

// Matcher matches slash or OS separated relative paths against glob patterns.
type Matcher struct {
	patterns []string
}

// New returns a Matcher for DefaultPatterns plus extra. Patterns use
// filepath.Match syntax; a pattern without a slash matches any path component,
// one with a slash matches the whole relative path, and a trailing slash
// matches a directory and everything below it.
func New(extra []string) *Matcher {
	patterns := make([]string, 0, len(DefaultPatterns)+len(extra))
	patterns = append(patterns, DefaultPatterns...)
	for _, p := range extra {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, filepath.ToSlash(p))
		}
	}
	return &Matcher{patterns: patterns}
}

// Ignored reports whether rel, a path relative to some root, should be skipped.
func (m *Matcher) Ignored(rel string) bool {
	rel = filepath.ToSlash(filepath.Clean(rel))
	if rel == "." || rel == "" {
		return false
	}
	parts := strings.Split(rel, "/")

	for _, pattern := range m.patterns {
		if dir, ok := strings.CutSuffix(pattern, "/"); ok {
			if rel == dir || strings.HasPrefix(rel, dir+"/") {
				return true
			}
			continue
		}
		if strings.Contains(pattern, "/") {
			if ok, _ := path.Match(pattern, rel); ok {
				return true
			}
			continue
		}
		for _, part := range parts {
			if ok, _ := path.Match(pattern, part); ok {
				return true
			}
		}
	}
	return false
}
