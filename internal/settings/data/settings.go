package data

import (
	"context"
	"strconv"
	"time"

	apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"
	"github.com/lk2023060901/startpage-backend/internal/pkg/redis"
	"github.com/lk2023060901/startpage-backend/internal/settings/biz"
)

const (
	fieldEngine     = "default_engine"
	fieldPrefix     = "proxy_prefix"
	fieldBare       = "proxy_bare"
	fieldPanicKey   = "panic_key"
	fieldHideNavbar = "hide_navbar_on_search"
	fieldUpdatedAt  = "updated_at"
)

type settingsRepo struct {
	rdb *redis.Client
}

// NewSettingsRepo stores each visitor's settings in the hash settings:{visitor}.
func NewSettingsRepo(rdb *redis.Client) biz.SettingsRepo {
	return &settingsRepo{rdb: rdb}
}

func key(visitorID string) string {
	return "settings:" + visitorID
}

func (r *settingsRepo) Get(ctx context.Context, visitorID string) (*biz.Settings, error) {
	h, err := r.rdb.HGetAll(ctx, key(visitorID))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStorage, "load settings")
	}

	s := &biz.Settings{
		DefaultEngine: h[fieldEngine],
		ProxyPrefix:   h[fieldPrefix],
		ProxyBare:     h[fieldBare],
		PanicKey:      h[fieldPanicKey],
	}
	s.HideNavbarOnSearch, _ = strconv.ParseBool(h[fieldHideNavbar])
	if ts := h[fieldUpdatedAt]; ts != "" {
		s.UpdatedAt, _ = time.Parse(time.RFC3339Nano, ts)
	}
	return s, nil
}

// Save replaces the whole hash in one transaction.
func (r *settingsRepo) Save(ctx context.Context, visitorID string, s *biz.Settings) error {
	k := key(visitorID)
	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, k)
	pipe.HSet(ctx, k,
		fieldEngine, s.DefaultEngine,
		fieldPrefix, s.ProxyPrefix,
		fieldBare, s.ProxyBare,
		fieldPanicKey, s.PanicKey,
		fieldHideNavbar, strconv.FormatBool(s.HideNavbarOnSearch),
		fieldUpdatedAt, s.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.ErrStorage, "save settings")
	}
	return nil
}

func (r *settingsRepo) Delete(ctx context.Context, visitorID string) error {
	if _, err := r.rdb.Del(ctx, key(visitorID)); err != nil {
		return apperrors.Wrap(err, apperrors.ErrStorage, "delete settings")
	}
	return nil
}
