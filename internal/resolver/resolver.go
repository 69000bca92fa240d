package resolver

import (
	"net/url"
	"strings"
)

// EngineProvider returns the currently preferred engine base URL, or "" when
// none is set. It is called on every resolution and must be cheap.
type EngineProvider func() string

// Static returns a provider that always yields engine.
func Static(engine string) EngineProvider {
	return func() string { return engine }
}

// Result describes one resolution.
type Result struct {
	URL   string `json:"url"`
	Kind  Kind   `json:"kind"`
	Input string `json:"input"`
	// FellBack is set when the built URL failed validation and the default
	// engine was substituted.
	FellBack bool `json:"fell_back,omitempty"`
}

// Resolve converts raw user input into a destination URL. It never returns
// an empty string.
func Resolve(raw string, engine EngineProvider) string {
	return ResolveDetailed(raw, engine).URL
}

// ResolveDetailed is Resolve with the branch taken and fallback state.
func ResolveDetailed(raw string, engine EngineProvider) Result {
	kind, v := Classify(raw)

	var dest string
	switch kind {
	case KindEmpty:
		dest = EngineHome(read(engine))
	case KindAbsolute:
		dest = v
	case KindDomain:
		dest = "https://" + v
	default:
		dest = Fill(BuildTemplate(read(engine)), v)
	}

	res := Result{URL: dest, Kind: kind, Input: v}
	if !valid(dest, kind == KindAbsolute) {
		res.URL = DefaultEngine
		res.FellBack = true
	}
	return res
}

func read(p EngineProvider) string {
	if p == nil {
		return ""
	}
	return p()
}

// valid checks the postcondition: dest parses and carries a scheme, and an
// http(s) URL has a host. Built URLs must additionally be http(s).
// A stray % is tolerated the way browsers tolerate it.
func valid(dest string, anyScheme bool) bool {
	if dest == "" {
		return false
	}
	u, err := url.Parse(escapeStrayPercent(dest))
	if err != nil || u.Scheme == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	web := scheme == "http" || scheme == "https"
	if web && u.Hostname() == "" {
		return false
	}
	return web || anyScheme
}

// escapeStrayPercent rewrites every % that does not start a %XX escape as %25.
func escapeStrayPercent(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && (i+2 >= len(s) || !isHex(s[i+1]) || !isHex(s[i+2])) {
			b.WriteString("%25")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}
