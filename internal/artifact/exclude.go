package artifact

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Excluder decides which staged paths stay out of the archive.
type Excluder struct {
	patterns []string
	globs    []glob.Glob
}

// NewExcluder compiles glob patterns. Patterns are matched against every
// segment of a path, so "__pycache__" excludes that directory at any depth.
func NewExcluder(patterns []string) (*Excluder, error) {
	e := &Excluder{patterns: append([]string(nil), patterns...)}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		e.globs = append(e.globs, g)
	}
	return e, nil
}

// Match reports whether any segment of rel matches an exclusion pattern.
func (e *Excluder) Match(rel string) bool {
	for _, segment := range strings.Split(filepath.ToSlash(rel), "/") {
		if segment == "" {
			continue
		}
		for _, g := range e.globs {
			if g.Match(segment) {
				return true
			}
		}
	}
	return false
}

// Patterns returns the configured patterns.
func (e *Excluder) Patterns() []string {
	return append([]string(nil), e.patterns...)
}
