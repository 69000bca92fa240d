package biz

import apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"

var (
	// ErrInvalidPayload 请求体或事件类型无效
	ErrInvalidPayload = apperrors.New(apperrors.ErrAnalyticsInvalidPayload)

	// ErrDisabled 统计功能已关闭
	ErrDisabled = apperrors.New(apperrors.ErrAnalyticsDisabled)
)
