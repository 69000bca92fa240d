package biz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
	"github.com/lk2023060901/startpage-backend/internal/pkg/metrics"
	"github.com/lk2023060901/startpage-backend/internal/pkg/redis/redistest"
	"github.com/lk2023060901/startpage-backend/internal/resolver"
	settingsbiz "github.com/lk2023060901/startpage-backend/internal/settings/biz"
	settingsdata "github.com/lk2023060901/startpage-backend/internal/settings/data"
)

type memLast struct {
	mu   sync.Mutex
	last map[string]*Destination
	err  error
}

func (m *memLast) SaveLast(_ context.Context, vid string, d *Destination) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.last == nil {
		m.last = map[string]*Destination{}
	}
	m.last[vid] = d
	return nil
}

func (m *memLast) GetLast(_ context.Context, vid string) (*Destination, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.last[vid]
	if !ok {
		return nil, ErrNoLastURL
	}
	return d, nil
}

type fixture struct {
	nav      *Navigator
	settings *settingsbiz.SettingsUseCase
	last     *memLast
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T, proxy ProxyConfig) *fixture {
	t.Helper()
	client, _ := redistest.New(t)
	settings := settingsbiz.NewSettingsUseCase(settingsdata.NewSettingsRepo(client), "", logger.NewNop())
	last := &memLast{}
	m := metrics.New()
	nav := NewNavigator(settings, last, proxy, m, logger.NewNop())
	nav.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return &fixture{nav: nav, settings: settings, last: last, metrics: m}
}

func TestNavigateDirect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ProxyConfig{})

	tests := []struct {
		raw  string
		kind resolver.Kind
		url  string
	}{
		{"github.com", resolver.KindDomain, "https://github.com"},
		{"https://example.com/a?b=c", resolver.KindAbsolute, "https://example.com/a?b=c"},
		{"cats and dogs", resolver.KindSearch, "https://duckduckgo.com/?q=cats%20and%20dogs"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			d, err := f.nav.Navigate(ctx, "v1", tt.raw, TriggerEnter)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, d.Kind)
			assert.Equal(t, tt.url, d.URL)
			assert.Equal(t, tt.url, d.Target)
			assert.False(t, d.Proxied)
			assert.Equal(t, TriggerEnter, d.Trigger)

			last, err := f.nav.Last(ctx, "v1")
			require.NoError(t, err)
			assert.Equal(t, d, last)
		})
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Resolutions.WithLabelValues("search")))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.ProxiedNavigations))
}

func TestNavigateEmptyInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ProxyConfig{})

	for _, trig := range []Trigger{TriggerEnter, TriggerSubmit} {
		_, err := f.nav.Navigate(ctx, "v1", "   ", trig)
		assert.ErrorIs(t, err, ErrEmptyInput)
	}

	d, err := f.nav.Navigate(ctx, "v1", "", TriggerURLParam)
	require.NoError(t, err)
	assert.Equal(t, resolver.KindEmpty, d.Kind)
	assert.Equal(t, "https://duckduckgo.com", d.URL)

	_, err = f.nav.Last(ctx, "v1")
	assert.ErrorIs(t, err, ErrNoLastURL, "an empty navigation is not remembered")
}

func TestNavigateInvalidTrigger(t *testing.T) {
	f := newFixture(t, ProxyConfig{})
	_, err := f.nav.Navigate(context.Background(), "v1", "x", Trigger("click"))
	assert.ErrorIs(t, err, ErrInvalidTrigger)
}

func TestNavigateUsesFreshEngine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ProxyConfig{})

	d, err := f.nav.Navigate(ctx, "v1", "weather", TriggerSubmit)
	require.NoError(t, err)
	assert.Equal(t, "https://duckduckgo.com/?q=weather", d.URL)

	engine := "https://www.google.com/"
	_, err = f.settings.Update(ctx, "v1", settingsbiz.Patch{DefaultEngine: &engine})
	require.NoError(t, err)

	d, err = f.nav.Navigate(ctx, "v1", "weather", TriggerSubmit)
	require.NoError(t, err)
	assert.Equal(t, "https://www.google.com/?q=weather", d.URL)

	d, err = f.nav.Navigate(ctx, "v2", "weather", TriggerSubmit)
	require.NoError(t, err)
	assert.Equal(t, "https://duckduckgo.com/?q=weather", d.URL, "other visitors keep the default")
}

func TestNavigateProxied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ProxyConfig{Enabled: true, Prefix: "/active/go/", Bare: "/bare/", Codec: "xor"})

	d, err := f.nav.Navigate(ctx, "v1", "github.com", TriggerEnter)
	require.NoError(t, err)
	assert.True(t, d.Proxied)
	assert.Equal(t, "https://github.com", d.URL)
	assert.Equal(t, "/active/go/hvtrs8%2F-gktju%60.aoo", d.Target)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ProxiedNavigations))

	dest, err := f.nav.Decode(ctx, "v1", d.Target)
	require.NoError(t, err)
	assert.Equal(t, "https://github.com", dest)

	prefix := "/p/"
	_, err = f.settings.Update(ctx, "v1", settingsbiz.Patch{ProxyPrefix: &prefix})
	require.NoError(t, err)

	d, err = f.nav.Navigate(ctx, "v1", "github.com", TriggerEnter)
	require.NoError(t, err)
	assert.Equal(t, "/p/hvtrs8%2F-gktju%60.aoo", d.Target)

	cfg := f.nav.ProxyFor(ctx, "v1")
	assert.Equal(t, "/p/", cfg.Prefix)
	assert.Equal(t, "/bare/", cfg.Bare)
	assert.Equal(t, "/active/go/", f.nav.proxy.Prefix, "server config is never mutated")
}

func TestNavigateBadCodecFallsBackToDirect(t *testing.T) {
	f := newFixture(t, ProxyConfig{Enabled: true, Prefix: "/active/go/", Codec: "rot13"})

	d, err := f.nav.Navigate(context.Background(), "v1", "github.com", TriggerEnter)
	require.NoError(t, err)
	assert.False(t, d.Proxied)
	assert.Equal(t, "https://github.com", d.Target)
}

func TestNavigateSurvivesStorageFailure(t *testing.T) {
	f := newFixture(t, ProxyConfig{})
	f.last.err = errors.New("down")

	d, err := f.nav.Navigate(context.Background(), "v1", "github.com", TriggerEnter)
	require.NoError(t, err)
	assert.Equal(t, "https://github.com", d.Target)
}

func TestNavigateFallbackIsCounted(t *testing.T) {
	f := newFixture(t, ProxyConfig{})

	d, err := f.nav.Navigate(context.Background(), "v1", "https://:443", TriggerEnter)
	require.NoError(t, err)
	assert.True(t, d.FellBack)
	assert.Equal(t, resolver.DefaultEngine, d.URL)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ResolverFallbacks))
}
