package biz

import apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"

var (
	// ErrEmptyInput 回车或提交时输入为空，不做任何跳转
	ErrEmptyInput = apperrors.New(apperrors.ErrNavEmptyInput)

	// ErrInvalidTrigger 未知的触发方式
	ErrInvalidTrigger = apperrors.New(apperrors.ErrNavInvalidTrigger)

	// ErrNoLastURL 访客还没有访问记录
	ErrNoLastURL = apperrors.New(apperrors.ErrNavNoLastURL)

	// ErrDecodeFailed 代理路径无法解码
	ErrDecodeFailed = apperrors.New(apperrors.ErrNavDecodeFailed)
)
