package services

import (
	"errors"
	"fmt"
)

// 业务错误，授权与状态校验失败都以返回值形式传递，不作为致命错误
var (
	ErrUnauthenticated = errors.New("未登录或登录已失效")
	ErrDenied          = errors.New("权限不足")
	ErrNotFound        = errors.New("资源不存在")
	ErrConflict        = errors.New("资源冲突")
)

// ValidationError 入参结构性错误
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidationError 判断是否为参数校验错误
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
