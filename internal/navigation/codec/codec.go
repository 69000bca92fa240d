// Package codec implements the URL encodings understood by the in-page
// proxy service worker. A destination is encoded and appended to the proxy
// prefix; Decode reverses it.
package codec

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/lk2023060901/startpage-backend/internal/resolver"
)

// Codec converts a destination URL to and from its proxied path form.
type Codec interface {
	Name() string
	Encode(dest string) (string, error)
	Decode(encoded string) (string, error)
}

const (
	None   = "none"
	Plain  = "plain"
	XOR    = "xor"
	Base64 = "base64"
)

var registry = map[string]Codec{
	None:   noneCodec{},
	Plain:  plainCodec{},
	XOR:    xorCodec{},
	Base64: base64Codec{},
}

// Lookup returns the codec registered under name.
func Lookup(name string) (Codec, error) {
	c, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown proxy codec %q", name)
	}
	return c, nil
}

// Names lists the registered codecs.
func Names() []string {
	return []string{None, Plain, XOR, Base64}
}

// splitQuery separates a trailing "?..." that the proxy appends unencoded.
func splitQuery(s string) (string, string) {
	if i := strings.IndexByte(s, '?'); i != -1 {
		return s[:i], s[i:]
	}
	return s, ""
}

func unescape(s string) (string, error) {
	out, ok := resolver.DecodeComponent(s)
	if !ok {
		return "", fmt.Errorf("malformed escape in %q", s)
	}
	return out, nil
}

type noneCodec struct{}

func (noneCodec) Name() string                      { return None }
func (noneCodec) Encode(dest string) (string, error) { return dest, nil }
func (noneCodec) Decode(s string) (string, error)    { return s, nil }

type plainCodec struct{}

func (plainCodec) Name() string { return Plain }

func (plainCodec) Encode(dest string) (string, error) {
	return resolver.EncodeComponent(dest), nil
}

func (plainCodec) Decode(s string) (string, error) {
	path, query := splitQuery(s)
	out, err := unescape(path)
	if err != nil {
		return "", err
	}
	return out + query, nil
}

// xorCodec flips bit 1 of every odd UTF-16 code unit, then percent-encodes.
type xorCodec struct{}

func (xorCodec) Name() string { return XOR }

func xor(s string) string {
	units := utf16.Encode([]rune(s))
	for i := 1; i < len(units); i += 2 {
		units[i] ^= 2
	}
	return string(utf16.Decode(units))
}

func (xorCodec) Encode(dest string) (string, error) {
	return resolver.EncodeComponent(xor(dest)), nil
}

func (xorCodec) Decode(s string) (string, error) {
	path, query := splitQuery(s)
	out, err := unescape(path)
	if err != nil {
		return "", err
	}
	return xor(out) + query, nil
}

type base64Codec struct{}

func (base64Codec) Name() string { return Base64 }

func (base64Codec) Encode(dest string) (string, error) {
	return resolver.EncodeComponent(base64.StdEncoding.EncodeToString([]byte(dest))), nil
}

func (base64Codec) Decode(s string) (string, error) {
	path, query := splitQuery(s)
	raw, err := unescape(path)
	if err != nil {
		return "", err
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}
	return string(b) + query, nil
}
