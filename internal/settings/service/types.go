package service

import (
	"time"

	"github.com/lk2023060901/startpage-backend/internal/settings/biz"
)

// UpdateSettingsRequest 更新设置请求；省略的字段保持不变
type UpdateSettingsRequest struct {
	DefaultEngine      *string `json:"default_engine"`
	ProxyPrefix        *string `json:"proxy_prefix"`
	ProxyBare          *string `json:"proxy_bare"`
	PanicKey           *string `json:"panic_key"`
	HideNavbarOnSearch *bool   `json:"hide_navbar_on_search"`
}

func (r UpdateSettingsRequest) toPatch() biz.Patch {
	return biz.Patch{
		DefaultEngine:      r.DefaultEngine,
		ProxyPrefix:        r.ProxyPrefix,
		ProxyBare:          r.ProxyBare,
		PanicKey:           r.PanicKey,
		HideNavbarOnSearch: r.HideNavbarOnSearch,
	}
}

// SettingsResponse 设置响应
type SettingsResponse struct {
	DefaultEngine      string     `json:"default_engine"`
	ProxyPrefix        string     `json:"proxy_prefix"`
	ProxyBare          string     `json:"proxy_bare"`
	PanicKey           string     `json:"panic_key"`
	HideNavbarOnSearch bool       `json:"hide_navbar_on_search"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty"`

	// EffectiveEngine is the engine home searches will actually use.
	EffectiveEngine string `json:"effective_engine"`
	// SearchTemplate is the URL pattern with %s where the query goes.
	SearchTemplate string `json:"search_template"`
}
