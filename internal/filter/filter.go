// Package filter selects databases by shell-style glob patterns.
//
// Includes are additive: with no include patterns every discovered name is
// selected, otherwise a name is selected when it matches any include.
// Excludes are applied afterwards and always win.
//
// Patterns have no separator: `*` and `?` match any character, including
// `/`, which PostgreSQL allows in database names.
package filter

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Validate reports the first malformed pattern. It is meant to run before
// any collection starts.
func Validate(patterns []string) error {
	for _, p := range patterns {
		if p == "" {
			return fmt.Errorf("empty glob pattern")
		}
		if _, err := glob.Compile(p); err != nil {
			return fmt.Errorf("invalid glob pattern %q: %w", p, err)
		}
	}
	return nil
}

// Apply returns the names from discovered selected by include and exclude,
// preserving discovery order. Patterns are assumed valid; a pattern that
// fails to compile matches nothing.
func Apply(discovered, include, exclude []string) []string {
	inc, exc := compile(include), compile(exclude)
	out := make([]string, 0, len(discovered))
	for _, name := range discovered {
		if len(include) > 0 && !matchAny(inc, name) {
			continue
		}
		if matchAny(exc, name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// ParseList splits a comma-separated flag value into trimmed, non-empty
// patterns.
func ParseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func compile(patterns []string) []glob.Glob {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		if g, err := glob.Compile(p); err == nil {
			out = append(out, g)
		}
	}
	return out
}

func matchAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}
