package chat

import "errors"

// 核心错误分类。鉴权/授权失败会直接关闭通道；内容类错误通过
// 原通道回告错误提示，会话继续存活。
var (
	ErrNotAMember        = errors.New("not a room member")
	ErrAccessDenied      = errors.New("access denied")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPersistence       = errors.New("persistence failure")
)
