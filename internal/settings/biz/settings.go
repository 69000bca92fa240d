package biz

import (
	"context"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
	"github.com/lk2023060901/startpage-backend/internal/resolver"
)

const MaxPanicKeyLen = 32

// Settings are one visitor's start page preferences. Zero values mean
// "not set" and fall back to server defaults.
type Settings struct {
	DefaultEngine      string
	ProxyPrefix        string
	ProxyBare          string
	PanicKey           string
	HideNavbarOnSearch bool
	UpdatedAt          time.Time
}

// Patch is a partial update; nil fields are left alone and "" clears.
type Patch struct {
	DefaultEngine      *string
	ProxyPrefix        *string
	ProxyBare          *string
	PanicKey           *string
	HideNavbarOnSearch *bool
}

// SettingsRepo persists settings per visitor.
type SettingsRepo interface {
	// Get returns zero Settings, not an error, for an unknown visitor.
	Get(ctx context.Context, visitorID string) (*Settings, error)
	Save(ctx context.Context, visitorID string, s *Settings) error
	Delete(ctx context.Context, visitorID string) error
}

type SettingsUseCase struct {
	repo          SettingsRepo
	defaultEngine string
	logger        *logger.Logger
	now           func() time.Time
}

// NewSettingsUseCase 创建设置用例. defaultEngine is the server-wide engine
// for visitors that never picked one ("" for the built-in default).
func NewSettingsUseCase(repo SettingsRepo, defaultEngine string, log *logger.Logger) *SettingsUseCase {
	return &SettingsUseCase{
		repo:          repo,
		defaultEngine: strings.TrimSpace(defaultEngine),
		logger:        log.Named("settings"),
		now:           time.Now,
	}
}

func (uc *SettingsUseCase) Get(ctx context.Context, visitorID string) (*Settings, error) {
	return uc.repo.Get(ctx, visitorID)
}

// Update validates p, merges it into the stored settings and saves them.
// Nothing is written when any field is invalid.
func (uc *SettingsUseCase) Update(ctx context.Context, visitorID string, p Patch) (*Settings, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	s, err := uc.repo.Get(ctx, visitorID)
	if err != nil {
		return nil, err
	}

	if p.DefaultEngine != nil {
		s.DefaultEngine = strings.TrimSpace(*p.DefaultEngine)
	}
	if p.ProxyPrefix != nil {
		s.ProxyPrefix = strings.TrimSpace(*p.ProxyPrefix)
	}
	if p.ProxyBare != nil {
		s.ProxyBare = strings.TrimSpace(*p.ProxyBare)
	}
	if p.PanicKey != nil {
		s.PanicKey = *p.PanicKey
	}
	if p.HideNavbarOnSearch != nil {
		s.HideNavbarOnSearch = *p.HideNavbarOnSearch
	}
	s.UpdatedAt = uc.now().UTC()

	if err := uc.repo.Save(ctx, visitorID, s); err != nil {
		return nil, err
	}
	uc.logger.Debug("settings updated", zap.String("visitor_id", visitorID))
	return s, nil
}

// Reset forgets everything stored for the visitor.
func (uc *SettingsUseCase) Reset(ctx context.Context, visitorID string) error {
	return uc.repo.Delete(ctx, visitorID)
}

// EngineProvider returns a provider that reads the visitor's engine from the
// repo on every call, so a change made in another tab applies to the next
// resolution. Read failures count as "not set".
func (uc *SettingsUseCase) EngineProvider(ctx context.Context, visitorID string) resolver.EngineProvider {
	return func() string {
		s, err := uc.repo.Get(ctx, visitorID)
		if err != nil {
			uc.logger.Warn("read engine preference failed, using default",
				zap.String("visitor_id", visitorID), zap.Error(err))
			return uc.defaultEngine
		}
		if s.DefaultEngine != "" {
			return s.DefaultEngine
		}
		return uc.defaultEngine
	}
}

func (p Patch) validate() error {
	if p.DefaultEngine != nil && !validEngine(strings.TrimSpace(*p.DefaultEngine)) {
		return ErrInvalidEngine
	}
	if p.PanicKey != nil && utf8.RuneCountInString(*p.PanicKey) > MaxPanicKeyLen {
		return ErrInvalidPanicKey
	}
	if p.ProxyPrefix != nil && !validPrefix(strings.TrimSpace(*p.ProxyPrefix)) {
		return ErrInvalidPrefix
	}
	if p.ProxyBare != nil && !validBare(strings.TrimSpace(*p.ProxyBare)) {
		return ErrInvalidBare
	}
	return nil
}

func validEngine(e string) bool {
	if e == "" {
		return true
	}
	u, err := url.Parse(e)
	if err != nil || u.Host == "" || u.RawQuery != "" || u.Fragment != "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func validPrefix(p string) bool {
	return p == "" || (len(p) > 1 && strings.HasPrefix(p, "/") && strings.HasSuffix(p, "/"))
}

func validBare(b string) bool {
	if b == "" || (strings.HasPrefix(b, "/") && !strings.HasPrefix(b, "//")) {
		return true
	}
	u, err := url.Parse(b)
	if err != nil || u.Host == "" {
		return false
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
		return true
	}
	return false
}
