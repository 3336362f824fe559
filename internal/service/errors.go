package service

import "errors"

// 业务层通用错误，handler 按错误类型映射到合适的 HTTP 状态码。
var (
	ErrUsernameTaken      = errors.New("username taken")
	ErrEmailTaken         = errors.New("email taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRoomNotFound       = errors.New("room not found")
	ErrNotAMember         = errors.New("not a room member")
	ErrWrongPassword      = errors.New("wrong password")
)
