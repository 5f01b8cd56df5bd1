// Package pattern compiles and matches the identifier patterns used by
// the source table (`source.{name}.identifier_pattern`) to decide which
// backend resolves a decoded identifier.
//
// Pattern Matching Behavior:
//
//   - Exact (no prefix): case-sensitive exact match, since an identifier
//     is an opaque byte string and "cat.jpg" and "CAT.JPG" may name
//     different sources.
//     Example: "islandora:123" matches only "islandora:123"
//
//   - Wildcard (*): case-sensitive, * matches any sequence of characters
//     Example: "islandora:*" matches "islandora:123", "islandora:abc/page1"
//
//   - Regexp (~): case-sensitive regular expression
//     Example: "~^nyt:[0-9]+$" matches "nyt:42" but not "NYT:42"
//
//   - Regexp (~*): case-insensitive regular expression, for the rare
//     source table entry that deliberately wants to fold identifier case
//     Example: "~*^(nyt|loc):" matches "nyt:42", "LOC:99"
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// Type is the kind of matching a compiled Pattern performs.
type Type int

const (
	TypeExact Type = iota
	TypeWildcard
	TypeRegexp
)

// Pattern is a compiled identifier pattern ready for repeated matching.
type Pattern struct {
	original       string
	kind           Type
	clean          string // prefix stripped, for regexp/wildcard/exact
	caseFold       bool   // true only for the ~* regexp prefix
	compiledRegexp *regexp.Regexp
}

// detectType inspects pattern's prefix and returns its Type, the pattern
// with any prefix removed, and whether regexp matching should fold case.
func detectType(pattern string) (Type, string, bool) {
	if rest, ok := strings.CutPrefix(pattern, "~*"); ok {
		return TypeRegexp, rest, true
	}
	if rest, ok := strings.CutPrefix(pattern, "~"); ok {
		return TypeRegexp, rest, false
	}
	if strings.Contains(pattern, "*") {
		return TypeWildcard, pattern, false
	}
	return TypeExact, pattern, false
}

// Compile compiles pattern once, at configuration-load time; Match then
// runs with no further allocation or regexp-prefix parsing.
func Compile(pattern string) (*Pattern, error) {
	if pattern == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}

	kind, clean, caseFold := detectType(pattern)
	p := &Pattern{original: pattern, kind: kind, clean: clean, caseFold: caseFold}

	if kind == TypeRegexp {
		expr := clean
		if caseFold {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid regexp pattern %q: %w", pattern, err)
		}
		p.compiledRegexp = re
	}

	return p, nil
}

// Match reports whether identifier matches the compiled pattern.
func (p *Pattern) Match(identifier string) bool {
	if p == nil {
		return false
	}

	switch p.kind {
	case TypeRegexp:
		return p.compiledRegexp != nil && p.compiledRegexp.MatchString(identifier)
	case TypeWildcard:
		return MatchWildcard(identifier, p.clean)
	case TypeExact:
		return identifier == p.clean
	default:
		return false
	}
}

// MatchWildcard matches text against a glob-style pattern whose only
// metacharacter is *, matching any sequence of characters (including
// none). It is exported for callers that need a one-off wildcard test
// without compiling a Pattern; Compile+Match is preferred for anything
// evaluated against more than one identifier.
func MatchWildcard(text, pattern string) bool {
	if !strings.Contains(pattern, "*") {
		return text == pattern
	}

	parts := strings.Split(pattern, "*")

	if !strings.HasPrefix(text, parts[0]) {
		return false
	}
	text = text[len(parts[0]):]

	if !strings.HasSuffix(text, parts[len(parts)-1]) {
		return false
	}
	text = text[:len(text)-len(parts[len(parts)-1])]

	for _, mid := range parts[1 : len(parts)-1] {
		if mid == "" {
			continue
		}
		idx := strings.Index(text, mid)
		if idx == -1 {
			return false
		}
		text = text[idx+len(mid):]
	}

	return true
}
