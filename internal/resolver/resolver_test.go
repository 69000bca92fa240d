package resolver

import (
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Scenarios(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		engine string
		want   string
	}{
		{
			name:  "bare domain with engine unset",
			input: "github.com",
			want:  "https://github.com",
		},
		{
			name:  "absolute url keeps case and is trimmed",
			input: "  HTTPS://Example.com/Path  ",
			want:  "HTTPS://Example.com/Path",
		},
		{
			name:   "search with configured engine",
			input:  "cats and dogs",
			engine: "https://www.bing.com",
			want:   "https://www.bing.com/?q=cats%20and%20dogs",
		},
		{
			name:  "empty input goes to engine home, not a search",
			input: "",
			want:  "https://duckduckgo.com",
		},
		{
			name:  "email address is searched, not navigated",
			input: "user@example.com",
			want:  "https://duckduckgo.com/?q=user%40example.com",
		},
		{
			name:  "single letter tld falls through to search",
			input: "foo.c",
			want:  "https://duckduckgo.com/?q=foo.c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.input, Static(tt.engine))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_Branches(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		engine   string
		want     string
		wantKind Kind
	}{
		{"whitespace only is empty", " \t\n ", "", "https://duckduckgo.com", KindEmpty},
		{"empty uses configured engine home", "", "https://www.bing.com/", "https://www.bing.com", KindEmpty},
		{"domain with path", "example.com/docs/intro", "", "https://example.com/docs/intro", KindDomain},
		{"uppercase domain", "EXAMPLE.ORG", "", "https://EXAMPLE.ORG", KindDomain},
		{"subdomain with hyphen", "my-site.co.uk", "", "https://my-site.co.uk", KindDomain},
		{"domain preceded by space inside", "foo bar.com", "", "https://duckduckgo.com/?q=foo%20bar.com", KindSearch},
		{"credentials in url shape", "user@host.com/path", "", "https://duckduckgo.com/?q=user%40host.com%2Fpath", KindSearch},
		{"domain with port is a search", "example.com:8080", "", "https://duckduckgo.com/?q=example.com%3A8080", KindSearch},
		{"non-http scheme passes through", "ftp://files.example.com/a", "", "ftp://files.example.com/a", KindAbsolute},
		{"custom scheme with plus and dot", "git+ssh://host/repo", "", "git+ssh://host/repo", KindAbsolute},
		{"percent encoded absolute url is decoded", "https%3A%2F%2Fexample.com%2Fa%20b", "", "https://example.com/a b", KindAbsolute},
		{"percent encoded search is decoded once", "hello%20world", "", "https://duckduckgo.com/?q=hello%20world", KindSearch},
		{"malformed escape keeps original", "100%", "", "https://duckduckgo.com/?q=100%25", KindSearch},
		{"plus is not a space", "a+b", "", "https://duckduckgo.com/?q=a%2Bb", KindSearch},
		{"unicode query is utf-8 encoded", "café", "", "https://duckduckgo.com/?q=caf%C3%A9", KindSearch},
		{"engine trailing slash stripped once", "go", "https://search.example.com/", "https://search.example.com/?q=go", KindSearch},
		{"engine is trimmed", "go", "  https://search.example.com  ", "https://search.example.com/?q=go", KindSearch},
		{"unreserved marks stay literal", "it's (really) *fine*!~", "", "https://duckduckgo.com/?q=it's%20(really)%20*fine*!~", KindSearch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ResolveDetailed(tt.input, Static(tt.engine))
			assert.Equal(t, tt.want, res.URL)
			assert.Equal(t, tt.wantKind, res.Kind)
			assert.False(t, res.FellBack)
		})
	}
}

func TestResolve_FallsBackOnInvalidResult(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		engine string
	}{
		{"engine without scheme", "query", "bing"},
		{"engine with broken host", "query", "https://bad host"},
		{"empty input with unusable engine", "", "not a url"},
		{"absolute url with space in host", "http://bad host/", ""},
		{"scheme without host", "https://", ""},
		{"port without host", "https://:443", ""},
		{"uppercase scheme without host", "HTTP://", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ResolveDetailed(tt.input, Static(tt.engine))
			assert.Equal(t, DefaultEngine, res.URL)
			assert.True(t, res.FellBack)
		})
	}
}

func TestResolve_StrayPercentPassesThrough(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"absolute url ending in percent", "https://en.wikipedia.org/wiki/100%", "https://en.wikipedia.org/wiki/100%"},
		{"domain ending in percent", "example.com/100%", "https://example.com/100%"},
		{"domain with invalid escape in path", "example.com/%zz", "https://example.com/%zz"},
		{"percent before letters", "https://example.com/50%off", "https://example.com/50%off"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ResolveDetailed(tt.input, Static("https://www.bing.com"))
			assert.Equal(t, tt.want, res.URL)
			assert.False(t, res.FellBack)
		})
	}
}

func TestResolve_NilProviderMeansUnset(t *testing.T) {
	assert.Equal(t, "https://duckduckgo.com/?q=x%20y", Resolve("x y", nil))
	assert.Equal(t, DefaultEngine, Resolve("", nil))
}

func TestResolve_ReadsProviderEveryCall(t *testing.T) {
	engine := "https://a.example"
	calls := 0
	provider := func() string {
		calls++
		return engine
	}

	assert.Equal(t, "https://a.example/?q=q", Resolve("q", provider))
	engine = "https://b.example"
	assert.Equal(t, "https://b.example/?q=q", Resolve("q", provider))
	assert.Equal(t, 2, calls)

	// Branches that do not need the engine leave it unread.
	Resolve("example.com", provider)
	Resolve("https://example.com", provider)
	assert.Equal(t, 2, calls)
}

func TestResolve_ResultAlwaysParses(t *testing.T) {
	inputs := []string{
		"", " ", "a", "a b c", "%", "%%%", "%E0%A4%A", "\x00", " x ",
		"https://", "https://:443", "http://[::1", "javascript:alert(1)", "mailto:a@b.c",
		"..", ".com", "a..b.com", "-.io", "example.com/" + strings.Repeat("x", 2048),
		"日本語", "🙂 emoji", "tab\tinside", "new\nline", "<script>", "a&b=c#frag",
	}
	engines := []string{"", "https://www.bing.com", "https://x.example/", "garbage"}

	for _, engine := range engines {
		for _, in := range inputs {
			got := Resolve(in, Static(engine))
			require.NotEmpty(t, got, "input %q", in)

			u, err := url.Parse(got)
			require.NoError(t, err, "input %q -> %q", in, got)
			require.NotEmpty(t, u.Scheme, "input %q -> %q", in, got)

			scheme := strings.ToLower(u.Scheme)
			web := scheme == "http" || scheme == "https"
			if web {
				assert.NotEmpty(t, u.Hostname(), "input %q -> %q", in, got)
			}
			kind, _ := Classify(in)
			if kind != KindAbsolute {
				assert.True(t, web, "input %q -> %q", in, got)
			}
		}
	}
}

func TestResolve_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, "https://github.com", Resolve("github.com", nil))
				assert.Equal(t, "https://duckduckgo.com/?q=a%20b", Resolve("a b", nil))
			}
		}()
	}
	wg.Wait()
}
