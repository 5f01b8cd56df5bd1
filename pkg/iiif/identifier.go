// Package iiif implements the URI-to-operation-list translation layer of
// the image server core: identifiers, per-version request parameters,
// operation lists, and the info document model. It has no dependency on
// any concrete HTTP framework, cache backend, or codec — those are wired
// in by internal/handler, internal/cache and internal/imagecodec.
package iiif

import (
	"fmt"
	"strconv"
	"strings"
)

// Identifier is the opaque, backend-facing key for a source image. It may
// contain '/'; callers are responsible for percent-decoding the wire form
// before constructing one.
type Identifier string

// ScaleConstraint is a reduced fraction n:d with 0 < n <= d, limiting the
// maximum resolution a client may request for a given Meta-Identifier.
type ScaleConstraint struct {
	Numerator   int
	Denominator int
}

// IsIdentity reports whether the constraint is equivalent to "no constraint"
// (n == d, including 1:1, 2:2, ...).
func (s ScaleConstraint) IsIdentity() bool {
	return s.Numerator == s.Denominator
}

// Rational returns the constraint as a float64 in (0, 1].
func (s ScaleConstraint) Rational() float64 {
	if s.Denominator == 0 {
		return 1
	}
	return float64(s.Numerator) / float64(s.Denominator)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		return -a
	}
	return a
}

// Normalize reduces the fraction by its GCD and reports whether the
// normalized form differs from the input (triggering a 301 redirect at
// the router).
func (s ScaleConstraint) Normalize() (ScaleConstraint, bool) {
	if s.Numerator <= 0 || s.Denominator <= 0 {
		return s, false
	}
	g := gcd(s.Numerator, s.Denominator)
	reduced := ScaleConstraint{Numerator: s.Numerator / g, Denominator: s.Denominator / g}
	return reduced, reduced != s
}

// MetaIdentifier is (identifier, page?, scale-constraint?), serialized as
// identifier[;page][;n:d].
type MetaIdentifier struct {
	Identifier Identifier
	Page       int // 0 means "not present"
	HasPage    bool
	Scale      ScaleConstraint
	HasScale   bool
}

// Normalize applies the reduction/identity rules from the data model: a
// scale constraint with n==d is dropped entirely; a non-reduced fraction
// is reduced. It reports whether anything changed.
func (m MetaIdentifier) Normalize() (MetaIdentifier, bool) {
	out := m
	changed := false
	if out.HasScale {
		if out.Scale.IsIdentity() {
			out.HasScale = false
			out.Scale = ScaleConstraint{}
			changed = true
		} else if reduced, diff := out.Scale.Normalize(); diff {
			out.Scale = reduced
			changed = true
		}
	}
	return out, changed
}

// Serialize renders the canonical identifier[;page][;n:d] form. When
// urlSafe is true, the identifier component is percent-encoded the way it
// would appear on the wire (slashes preserved per the slash-substitute
// policy is the caller's responsibility via ForURI).
func (m MetaIdentifier) Serialize(urlSafe bool) string {
	var b strings.Builder
	id := string(m.Identifier)
	if urlSafe {
		id = percentEncodePathSegment(id)
	}
	b.WriteString(id)
	if m.HasPage {
		b.WriteString(";")
		b.WriteString(strconv.Itoa(m.Page))
	}
	if m.HasScale {
		b.WriteString(";")
		b.WriteString(strconv.Itoa(m.Scale.Numerator))
		b.WriteString(":")
		b.WriteString(strconv.Itoa(m.Scale.Denominator))
	}
	return b.String()
}

// ForURI defers identifier-side slash substitution to the supplied
// function (typically the deployment's configured slash_substitute),
// then serializes the remaining meta-identifier components.
func (m MetaIdentifier) ForURI(substitute func(Identifier) string) string {
	id := string(m.Identifier)
	if substitute != nil {
		id = substitute(m.Identifier)
	}
	var b strings.Builder
	b.WriteString(id)
	if m.HasPage {
		b.WriteString(";")
		b.WriteString(strconv.Itoa(m.Page))
	}
	if m.HasScale {
		b.WriteString(";")
		b.WriteString(strconv.Itoa(m.Scale.Numerator))
		b.WriteString(":")
		b.WriteString(strconv.Itoa(m.Scale.Denominator))
	}
	return b.String()
}

// ParseMetaIdentifier decomposes identifier[;page][;n:d]. The identifier
// segment is everything up to the first ';' that yields a parseable page
// or scale-constraint suffix; since raw identifiers may themselves contain
// ';', only the last one or two ';'-delimited segments are interpreted,
// from the right, as long as they parse as page/scale tokens.
func ParseMetaIdentifier(s string) (MetaIdentifier, error) {
	if s == "" {
		return MetaIdentifier{}, &Error{Kind: KindIllegalArgument, Message: "empty meta-identifier"}
	}

	parts := strings.Split(s, ";")
	m := MetaIdentifier{Identifier: Identifier(parts[0])}
	rest := parts[1:]

	start := len(rest)
	for start > 0 && len(rest)-start < 2 {
		tok := rest[start-1]
		_, _, isScale := parseScaleToken(tok)
		if page, err := strconv.Atoi(tok); !isScale && (err != nil || page < 0) {
			break
		}
		start--
	}

	for i, tok := range rest {
		if i < start {
			m.Identifier = Identifier(string(m.Identifier) + ";" + tok)
			continue
		}
		if n, d, ok := parseScaleToken(tok); ok {
			if m.HasScale {
				return MetaIdentifier{}, IllegalArgument("multiple scale constraints in %q", s)
			}
			m.Scale = ScaleConstraint{Numerator: n, Denominator: d}
			m.HasScale = true
			continue
		}
		if page, err := strconv.Atoi(tok); err == nil && page >= 0 {
			if m.HasPage {
				return MetaIdentifier{}, IllegalArgument("multiple page numbers in %q", s)
			}
			m.Page = page
			m.HasPage = true
			continue
		}
		// Unrecognized segment: treat it as part of the identifier (the
		// identifier itself legitimately contains ';').
		m.Identifier = Identifier(string(m.Identifier) + ";" + tok)
	}

	return m, nil
}

func parseScaleToken(tok string) (int, int, bool) {
	idx := strings.IndexByte(tok, ':')
	if idx < 0 {
		return 0, 0, false
	}
	n, err1 := strconv.Atoi(tok[:idx])
	d, err2 := strconv.Atoi(tok[idx+1:])
	if err1 != nil || err2 != nil || n <= 0 || d <= 0 || n > d {
		return 0, 0, false
	}
	return n, d, true
}

func percentEncodePathSegment(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// EffectiveScale folds a scale constraint into a plain scale factor (1 when
// no constraint is present).
func (m MetaIdentifier) EffectiveScale() float64 {
	if !m.HasScale {
		return 1
	}
	return m.Scale.Rational()
}
