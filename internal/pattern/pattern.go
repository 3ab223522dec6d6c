// Package pattern implements the name patterns used for catalog lookups.
//
// A pattern is matched against the whole name. '%' matches zero or more
// characters, '_' matches exactly one character and '\' makes the next
// character literal. Matching is case-sensitive. A pattern without wildcards
// matches only the identical string.
package pattern

import (
	"errors"
	"strings"
)

// ErrTrailingEscape is returned when a pattern ends in an unescaped '\'.
var ErrTrailingEscape = errors.New("pattern ends with escape character")

type tokenKind int

const (
	tokLiteral tokenKind = iota
	tokOne
	tokMany
)

type token struct {
	kind tokenKind
	r    rune
}

// Pattern is a compiled name pattern. The zero value matches nothing.
type Pattern struct {
	source  string
	tokens  []token
	literal bool
	valid   bool
}

// Any matches every name.
var Any = MustCompile("%")

// Compile parses a pattern.
func Compile(s string) (Pattern, error) {
	p := Pattern{source: s, literal: true, valid: true}
	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		switch rs[i] {
		case '\\':
			if i+1 >= len(rs) {
				return Pattern{}, ErrTrailingEscape
			}
			i++
			p.tokens = append(p.tokens, token{kind: tokLiteral, r: rs[i]})
		case '%':
			p.literal = false
			// Collapse runs of '%'.
			if n := len(p.tokens); n > 0 && p.tokens[n-1].kind == tokMany {
				continue
			}
			p.tokens = append(p.tokens, token{kind: tokMany})
		case '_':
			p.literal = false
			p.tokens = append(p.tokens, token{kind: tokOne})
		default:
			p.tokens = append(p.tokens, token{kind: tokLiteral, r: rs[i]})
		}
	}
	return p, nil
}

// MustCompile is like Compile but panics on a malformed pattern.
func MustCompile(s string) Pattern {
	p, err := Compile(s)
	if err != nil {
		panic("pattern: " + err.Error() + ": " + s)
	}
	return p
}

// Exact returns a pattern matching only name, with wildcards escaped.
func Exact(name string) Pattern {
	var b strings.Builder
	for _, r := range name {
		if r == '%' || r == '_' || r == '\\' {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return MustCompile(b.String())
}

// String returns the source text of the pattern.
func (p Pattern) String() string {
	return p.source
}

// IsLiteral reports whether the pattern contains no wildcards.
func (p Pattern) IsLiteral() bool {
	return p.valid && p.literal
}

// Literal returns the unescaped text of a literal pattern.
func (p Pattern) Literal() (string, bool) {
	if !p.IsLiteral() {
		return "", false
	}
	rs := make([]rune, len(p.tokens))
	for i, t := range p.tokens {
		rs[i] = t.r
	}
	return string(rs), true
}

// Match reports whether name matches the pattern.
func (p Pattern) Match(name string) bool {
	if !p.valid {
		return false
	}
	if lit, ok := p.Literal(); ok {
		return lit == name
	}
	return match(p.tokens, []rune(name))
}

// match is the iterative wildcard matcher with single-star backtracking.
func match(toks []token, s []rune) bool {
	ti, si := 0, 0
	starT, starS := -1, 0
	for si < len(s) {
		if ti < len(toks) {
			switch t := toks[ti]; t.kind {
			case tokMany:
				starT, starS = ti, si
				ti++
				continue
			case tokOne:
				ti++
				si++
				continue
			case tokLiteral:
				if t.r == s[si] {
					ti++
					si++
					continue
				}
			}
		}
		if starT < 0 {
			return false
		}
		starS++
		si = starS
		ti = starT + 1
	}
	for ti < len(toks) && toks[ti].kind == tokMany {
		ti++
	}
	return ti == len(toks)
}
