package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		in       string
		wantKind Kind
		wantText string
	}{
		{"", KindEmpty, ""},
		{"   ", KindEmpty, ""},
		{"https://example.com", KindAbsolute, "https://example.com"},
		{"HTTP://EXAMPLE.COM", KindAbsolute, "HTTP://EXAMPLE.COM"},
		{"1http://x.com", KindSearch, "1http://x.com"},
		{"example.com", KindDomain, "example.com"},
		{"Example.COM/Path?x=1", KindDomain, "Example.COM/Path?x=1"},
		{"example.c0m", KindSearch, "example.c0m"},
		{"localhost", KindSearch, "localhost"},
		{"a@b.com", KindSearch, "a@b.com"},
		{"%68ttps://x.io", KindAbsolute, "https://x.io"},
		{"%E0%A4%A", KindSearch, "%E0%A4%A"},
		{"%C3%28", KindSearch, "%C3%28"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			kind, text := Classify(tt.in)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantText, text)
		})
	}
}

func TestLooksLikeDomain(t *testing.T) {
	assert.True(t, LooksLikeDomain("news.ycombinator.com"))
	assert.True(t, LooksLikeDomain("x.io/"))
	assert.False(t, LooksLikeDomain(""))
	assert.False(t, LooksLikeDomain("foo bar.com"))
	assert.False(t, LooksLikeDomain("foo\u00a0bar.com"))
	assert.False(t, LooksLikeDomain("foo\tbar.com"))
	assert.False(t, LooksLikeDomain("foo\nbar.com"))
	assert.False(t, LooksLikeDomain("me@mail.com"))
	assert.False(t, LooksLikeDomain("foo.c"))
	assert.False(t, LooksLikeDomain("foo.123"))
}

func TestEncodeURIComponent(t *testing.T) {
	assert.Equal(t, "a%20b%2Fc%3Fd%26e%3Df%23g", encodeURIComponent("a b/c?d&e=f#g"))
	assert.Equal(t, "-_.!~*'()", encodeURIComponent("-_.!~*'()"))
	assert.Equal(t, "%E2%82%AC", encodeURIComponent("€"))
}

func TestDecodeURIComponent(t *testing.T) {
	got, ok := decodeURIComponent("a%2Fb%20c")
	assert.True(t, ok)
	assert.Equal(t, "a/b c", got)

	got, ok = decodeURIComponent("a+b")
	assert.True(t, ok)
	assert.Equal(t, "a+b", got)

	got, ok = decodeURIComponent("bad%zz")
	assert.False(t, ok)
	assert.Equal(t, "bad%zz", got)
}
