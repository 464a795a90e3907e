package orchestrator

import (
	"fmt"
	"strings"
)

// SanitizeName turns a database name into a portable file stem: anything
// outside [A-Za-z0-9._-] becomes '_', and leading dots are dropped.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := strings.TrimLeft(b.String(), ".")
	if s == "" {
		s = "_"
	}
	return s
}

// fileStems assigns each name a unique sanitized stem. Collisions, and the
// reserved manifest stem, get -2, -3, … in input order.
func fileStems(names []string) []string {
	used := map[string]bool{ManifestFile: true}
	out := make([]string, len(names))
	for i, n := range names {
		base := SanitizeName(n)
		stem := base
		for k := 2; used[strings.ToLower(stem)]; k++ {
			stem = fmt.Sprintf("%s-%d", base, k)
		}
		used[strings.ToLower(stem)] = true
		out[i] = stem
	}
	return out
}
