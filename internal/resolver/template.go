package resolver

import "strings"

const (
	// DefaultEngine is used whenever no usable engine is configured.
	DefaultEngine = "https://duckduckgo.com"

	// Placeholder marks where the encoded query goes in a search template.
	Placeholder = "%s"

	searchSuffix = "/?q=" + Placeholder
)

// EngineHome returns the canonical engine base URL: trimmed, defaulted when
// empty, with a single trailing slash removed.
func EngineHome(engine string) string {
	engine = trim(engine)
	if engine == "" {
		engine = DefaultEngine
	}
	return strings.TrimSuffix(engine, "/")
}

// BuildTemplate turns an engine base URL into a search template containing
// exactly one placeholder. It is deterministic for a given input.
func BuildTemplate(engine string) string {
	return EngineHome(engine) + searchSuffix
}

// Fill substitutes the encoded query for the first placeholder in tpl.
func Fill(tpl, query string) string {
	return strings.Replace(tpl, Placeholder, encodeURIComponent(query), 1)
}
