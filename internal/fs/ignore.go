package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is read from the root of every collected directory.
const IgnoreFileName = ".caprevignore"

// defaultIgnorePatterns skip hidden entries, which covers the ignore file
// itself and the ._* sidecars macOS leaves on shared drives.
var defaultIgnorePatterns = []string{".*"}

type ignorePattern struct {
	pattern   string
	matchPath bool // match the relative path instead of the basename
}

// IgnoreMatcher checks paths relative to a collected directory against glob
// patterns. Patterns without '/' match any basename; patterns with '/' match
// the whole relative path.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern lines.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(lines []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m.patterns = append(m.patterns, ignorePattern{pattern: line, matchPath: strings.Contains(line, "/")})
	}
	return m
}

// Match reports whether relativePath should be skipped.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	if relativePath == "" {
		return false
	}
	slashed := filepath.ToSlash(relativePath)
	base := filepath.Base(relativePath)

	for _, p := range m.patterns {
		subject := base
		if p.matchPath {
			subject = slashed
		}
		// filepath.Match only fails on malformed patterns, which never match.
		if ok, err := filepath.Match(p.pattern, subject); err == nil && ok {
			return true
		}
	}
	return false
}

// loadIgnoreMatcher combines the default patterns with the ignore file in
// dir, if there is one.
func loadIgnoreMatcher(dir string) (*IgnoreMatcher, error) {
	lines := append([]string(nil), defaultIgnorePatterns...)

	f, err := os.Open(filepath.Join(dir, IgnoreFileName))
	if os.IsNotExist(err) {
		return NewIgnoreMatcher(lines), nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return NewIgnoreMatcher(lines), nil
}
