package biz

import (
	"strings"

	"github.com/lk2023060901/startpage-backend/internal/navigation/codec"
	apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"
	settingsbiz "github.com/lk2023060901/startpage-backend/internal/settings/biz"
)

// ProxyConfig describes the in-page proxy a destination may be routed
// through. It is a value type; every method works on a copy.
type ProxyConfig struct {
	Enabled bool   `json:"enabled"`
	Prefix  string `json:"prefix"`
	Bare    string `json:"bare"`
	Codec   string `json:"codec"`
}

// Overlay returns c with the visitor's own prefix and bare server applied.
// Unset visitor values keep the server's.
func (c ProxyConfig) Overlay(s *settingsbiz.Settings) ProxyConfig {
	if s == nil {
		return c
	}
	if s.ProxyPrefix != "" {
		c.Prefix = s.ProxyPrefix
	}
	if s.ProxyBare != "" {
		c.Bare = s.ProxyBare
	}
	return c
}

// Route picks the navigation sink for dest. When the proxy is disabled or
// its codec cannot encode dest, dest itself is returned.
func (c ProxyConfig) Route(dest string) (target string, proxied bool, err error) {
	if !c.Enabled || c.Prefix == "" {
		return dest, false, nil
	}
	cd, err := codec.Lookup(c.Codec)
	if err != nil {
		return dest, false, err
	}
	encoded, err := cd.Encode(dest)
	if err != nil {
		return dest, false, err
	}
	return c.Prefix + encoded, true, nil
}

// Decode recovers the destination from a proxied path such as
// "/active/go/hvtrs8%2F-gktju%60.aoo".
func (c ProxyConfig) Decode(target string) (string, error) {
	encoded, ok := strings.CutPrefix(target, c.Prefix)
	if !ok || c.Prefix == "" || encoded == "" {
		return "", apperrors.Wrap(ErrDecodeFailed, apperrors.ErrNavDecodeFailed, "path is not under the proxy prefix")
	}
	cd, err := codec.Lookup(c.Codec)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrNavDecodeFailed, err.Error())
	}
	dest, err := cd.Decode(encoded)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrNavDecodeFailed, err.Error())
	}
	return dest, nil
}
