package activity

import (
	"strings"
	"unicode"
)

// NormalizeName lowercases a person's name and strips '.', '-', '_' and whitespace.
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r == '.' || r == '-' || r == '_' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// NamesMatch reports whether two names refer to the same person, so that
// "shruti.dhasmana" matches "Shruti Dhasmana". Empty names never match.
func NamesMatch(a, b string) bool {
	na, nb := NormalizeName(a), NormalizeName(b)
	return na != "" && na == nb
}

// MatchesAny reports whether filter matches any of names.
func MatchesAny(filter string, names []string) bool {
	for _, n := range names {
		if NamesMatch(filter, n) {
			return true
		}
	}
	return false
}

// containsAny reports whether name contains any of the substrings, case-insensitively.
func containsAny(name string, substrings []string) bool {
	lower := strings.ToLower(name)
	for _, s := range substrings {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
