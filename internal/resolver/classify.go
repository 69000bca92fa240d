// Package resolver turns free-text start page input into a navigable URL.
//
// Input is classified into exactly one of three shapes, first match wins:
//
//  1. already absolute (generic scheme://...)  -> passed through
//  2. bare domain (example.com, example.com/x) -> https:// + input
//  3. anything else                            -> search engine query
//
// Empty input resolves to the engine home page. Every result is validated
// with net/url before it is returned.
package resolver

import (
	"regexp"
	"strings"
	"unicode"
)

// Kind identifies the branch an input was classified into.
type Kind string

const (
	KindEmpty    Kind = "empty"
	KindAbsolute Kind = "absolute"
	KindDomain   Kind = "domain"
	KindSearch   Kind = "search"
)

var (
	// scheme = ALPHA *( ALPHA / DIGIT / "+" / "-" / "." )
	absolutePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

	// one or more dot-terminated labels, a final label of at least two
	// letters, and an optional path.
	domainPattern = regexp.MustCompile(`(?i)^([a-z0-9-]+\.)+[a-z]{2,}(/.*)?$`)
)

// Classify preprocesses raw (trim, best-effort percent-decode) and reports
// which shape it has. The returned string is the preprocessed input.
func Classify(raw string) (Kind, string) {
	v := trim(raw)
	if v == "" {
		return KindEmpty, ""
	}

	if decoded, ok := decodeURIComponent(v); ok {
		v = decoded
	}

	switch {
	case IsAbsolute(v):
		return KindAbsolute, v
	case LooksLikeDomain(v):
		return KindDomain, v
	default:
		return KindSearch, v
	}
}

// IsAbsolute reports whether s starts with a generic URI scheme followed by "://".
func IsAbsolute(s string) bool {
	return absolutePattern.MatchString(s)
}

// LooksLikeDomain reports whether s is shaped like a bare domain with an
// optional path. Inputs containing whitespace or "@" never qualify.
func LooksLikeDomain(s string) bool {
	if s == "" {
		return false
	}
	if strings.IndexFunc(s, isSpace) >= 0 || strings.ContainsRune(s, '@') {
		return false
	}
	return domainPattern.MatchString(s)
}

func trim(s string) string {
	return strings.TrimFunc(s, isSpace)
}

// isSpace matches what browsers treat as whitespace when trimming input,
// which includes the byte order mark.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}
