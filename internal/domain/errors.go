package domain

import (
	"errors"
	"fmt"
)

// ErrUnauthorized 凭证缺失或不匹配
var ErrUnauthorized = errors.New("unauthorized")

// ValidationError payload 缺少必填字段或字段非法
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload: %s %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation 判断是否为校验错误（handler 据此映射 HTTP 400）
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
