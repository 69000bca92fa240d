package biz

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
	"github.com/lk2023060901/startpage-backend/internal/pkg/metrics"
	"github.com/lk2023060901/startpage-backend/internal/resolver"
	settingsbiz "github.com/lk2023060901/startpage-backend/internal/settings/biz"
)

// Trigger names the browser event that asked for a navigation.
type Trigger string

const (
	TriggerEnter    Trigger = "enter"
	TriggerSubmit   Trigger = "submit"
	TriggerURLParam Trigger = "url_param"
)

// Valid reports whether t is a known trigger.
func (t Trigger) Valid() bool {
	switch t {
	case TriggerEnter, TriggerSubmit, TriggerURLParam:
		return true
	}
	return false
}

// LastURLTTL is how long a visitor's last destination is remembered.
const LastURLTTL = 30 * 24 * time.Hour

// Destination is the outcome of one navigation.
type Destination struct {
	Input   string        `json:"input"`
	URL     string        `json:"url"`
	Kind    resolver.Kind `json:"kind"`
	Target  string        `json:"target"`
	Proxied bool          `json:"proxied"`
	Trigger Trigger       `json:"trigger"`
	// FellBack is set when the resolved URL was unusable and the default
	// engine was used instead.
	FellBack bool      `json:"fell_back,omitempty"`
	At       time.Time `json:"at"`
}

// LastURLRepo remembers the most recent destination per visitor.
type LastURLRepo interface {
	SaveLast(ctx context.Context, visitorID string, d *Destination) error
	// GetLast returns ErrNoLastURL when nothing is stored.
	GetLast(ctx context.Context, visitorID string) (*Destination, error)
}

// Navigator funnels every navigation trigger through the resolver.
type Navigator struct {
	settings *settingsbiz.SettingsUseCase
	repo     LastURLRepo
	proxy    ProxyConfig
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time
}

// NewNavigator 创建导航用例. m may be nil.
func NewNavigator(settings *settingsbiz.SettingsUseCase, repo LastURLRepo, proxy ProxyConfig, m *metrics.Metrics, log *logger.Logger) *Navigator {
	return &Navigator{
		settings: settings,
		repo:     repo,
		proxy:    proxy,
		metrics:  m,
		logger:   log.Named("navigation"),
		now:      time.Now,
	}
}

// Navigate resolves raw for the visitor and picks where the browser should
// go. Empty input from the search box is a no-op (ErrEmptyInput); an empty
// url parameter opens the engine home.
func (n *Navigator) Navigate(ctx context.Context, visitorID, raw string, trigger Trigger) (*Destination, error) {
	if !trigger.Valid() {
		return nil, ErrInvalidTrigger
	}
	kind, _ := resolver.Classify(raw)
	if kind == resolver.KindEmpty && trigger != TriggerURLParam {
		return nil, ErrEmptyInput
	}

	res := resolver.ResolveDetailed(raw, n.settings.EngineProvider(ctx, visitorID))
	if res.FellBack {
		n.logger.Warn("resolved url failed validation, using default engine",
			zap.String("visitor_id", visitorID),
			zap.String("kind", string(res.Kind)),
			zap.String("input", res.Input))
	}

	cfg := n.ProxyFor(ctx, visitorID)
	target, proxied, err := cfg.Route(res.URL)
	if err != nil {
		n.logger.Warn("proxy encode failed, navigating directly",
			zap.String("codec", cfg.Codec), zap.Error(err))
	}

	d := &Destination{
		Input:    res.Input,
		URL:      res.URL,
		Kind:     res.Kind,
		Target:   target,
		Proxied:  proxied,
		Trigger:  trigger,
		FellBack: res.FellBack,
		At:       n.now().UTC(),
	}
	n.metrics.RecordResolution(string(d.Kind), d.FellBack, d.Proxied)

	if kind != resolver.KindEmpty {
		if err := n.repo.SaveLast(ctx, visitorID, d); err != nil {
			n.logger.Warn("remember last url failed",
				zap.String("visitor_id", visitorID), zap.Error(err))
		}
	}
	return d, nil
}

// Last returns the visitor's most recent destination.
func (n *Navigator) Last(ctx context.Context, visitorID string) (*Destination, error) {
	return n.repo.GetLast(ctx, visitorID)
}

// ProxyFor returns the server proxy config with the visitor's overrides.
// Settings that cannot be read leave the server config in effect.
func (n *Navigator) ProxyFor(ctx context.Context, visitorID string) ProxyConfig {
	s, err := n.settings.Get(ctx, visitorID)
	if err != nil {
		n.logger.Warn("read proxy settings failed, using server config",
			zap.String("visitor_id", visitorID), zap.Error(err))
		return n.proxy
	}
	return n.proxy.Overlay(s)
}

// Decode inverts the proxy encoding of target for the visitor.
func (n *Navigator) Decode(ctx context.Context, visitorID, target string) (string, error) {
	return n.ProxyFor(ctx, visitorID).Decode(target)
}
