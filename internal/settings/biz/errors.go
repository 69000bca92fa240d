package biz

import apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"

var (
	// ErrInvalidEngine 搜索引擎必须是不带查询串的 http(s) 地址
	ErrInvalidEngine = apperrors.New(apperrors.ErrSettingsInvalidEngine)

	// ErrInvalidPanicKey panic key 过长
	ErrInvalidPanicKey = apperrors.New(apperrors.ErrSettingsInvalidPanicKey)

	// ErrInvalidPrefix 代理前缀必须以 / 开头和结尾
	ErrInvalidPrefix = apperrors.New(apperrors.ErrSettingsInvalidPrefix)

	// ErrInvalidBare bare 服务器地址无效
	ErrInvalidBare = apperrors.New(apperrors.ErrSettingsInvalidBare)
)
