package resolver

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

const upperhex = "0123456789ABCDEF"

// encodeURIComponent escapes every byte outside the unreserved set
// A-Z a-z 0-9 - _ . ! ~ * ' ( ), matching the browser function of the same name.
func encodeURIComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

// EncodeComponent exposes the search-term encoding for collaborators that
// build URLs the same way (proxy codecs).
func EncodeComponent(s string) string {
	return encodeURIComponent(s)
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

// decodeURIComponent decodes every %XX sequence. A malformed escape or a
// result that is not valid UTF-8 fails the whole decode. "+" stays literal.
func decodeURIComponent(s string) (string, bool) {
	if !strings.ContainsRune(s, '%') {
		return s, true
	}
	out, err := url.PathUnescape(s)
	if err != nil || !utf8.ValidString(out) {
		return s, false
	}
	return out, true
}

// DecodeComponent is the inverse of EncodeComponent. ok is false when s holds
// a malformed escape or decodes to invalid UTF-8; s is then returned as is.
func DecodeComponent(s string) (string, bool) {
	return decodeURIComponent(s)
}
