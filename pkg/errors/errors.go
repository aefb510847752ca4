package errors

import (
	"errors"
	"fmt"
)

// ========== 错误码常量定义 ==========

// CodeSuccess 成功码
const (
	CodeSuccess = 200
)

// HTTP层错误码 (400-599)
const (
	CodeInvalidParam = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeConflict     = 409
	CodeServerError  = 500
)

// ========== 业务错误类型 ==========

// 通用哨兵错误，service层返回，handler层统一转换为响应
var (
	ErrNotFound     = errors.New("资源不存在")
	ErrForbidden    = errors.New("权限不足")
	ErrUnauthorized = errors.New("未认证")
	ErrConflict     = errors.New("数据版本冲突")
)

// ValidationError 字段校验错误，携带字段级明细
type ValidationError struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"` // 字段名 -> 错误原因
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError 创建校验错误
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message, Fields: make(map[string]string)}
}

// AddField 追加字段错误
func (e *ValidationError) AddField(field, reason string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = reason
	return e
}

// HasFields 是否存在字段级错误
func (e *ValidationError) HasFields() bool {
	return len(e.Fields) > 0
}

// InvalidTransitionError 非法的审批状态流转
type InvalidTransitionError struct {
	From   string
	To     string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("非法的状态流转: %s -> %s (%s)", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("非法的状态流转: %s -> %s", e.From, e.To)
}

// NewInvalidTransition 创建状态流转错误
func NewInvalidTransition(from, to, reason string) *InvalidTransitionError {
	return &InvalidTransitionError{From: from, To: to, Reason: reason}
}

// CodeOf 根据错误类型映射错误码
func CodeOf(err error) int {
	var ve *ValidationError
	var te *InvalidTransitionError
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.As(err, &ve), errors.As(err, &te):
		return CodeInvalidParam
	default:
		return CodeServerError
	}
}
