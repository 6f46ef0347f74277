package util

import "errors"

var (
	ErrUserNotFound      = errors.New("用户不存在")
	ErrEmailRegistered   = errors.New("该邮箱已被注册")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrQuizNotFound      = errors.New("quiz not found")
	ErrQuizInactive      = errors.New("quiz is not active")
	ErrQuestionNotFound  = errors.New("question not found")
	ErrOptionNotFound    = errors.New("option not found")
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrResultNotFound    = errors.New("result not found")
	ErrMaxAttempts       = errors.New("maximum attempts reached")
	ErrAttemptSubmitted  = errors.New("attempt already submitted")
	ErrAttemptClosed     = errors.New("time is up, attempt auto-submitted")
	ErrTxContention      = errors.New("transaction contention, please retry")
	ErrInvalidRefresh    = errors.New("invalid or expired refresh token")
	ErrInvalidCredential = errors.New("invalid credentials")
)
