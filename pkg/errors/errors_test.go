package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"未找到", ErrNotFound, CodeNotFound},
		{"权限不足", ErrForbidden, CodeForbidden},
		{"未认证", ErrUnauthorized, CodeUnauthorized},
		{"版本冲突", ErrConflict, CodeConflict},
		{"包装后的哨兵错误", fmt.Errorf("查询记录: %w", ErrNotFound), CodeNotFound},
		{"校验错误", NewValidationError("字段非法"), CodeInvalidParam},
		{"状态流转错误", NewInvalidTransition("draft", "approved", ""), CodeInvalidParam},
		{"未知错误按服务端错误", fmt.Errorf("boom"), CodeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestValidationError_Fields(t *testing.T) {
	verr := NewValidationError("字段校验失败")
	assert.False(t, verr.HasFields())

	verr.AddField("amount", "不能小于0").AddField("title", "必填字段缺失")

	assert.True(t, verr.HasFields())
	assert.Len(t, verr.Fields, 2)
	assert.Equal(t, "字段校验失败", verr.Error())
}

func TestInvalidTransitionError_Message(t *testing.T) {
	err := NewInvalidTransition("draft", "approved", "")
	assert.Contains(t, err.Error(), "draft")
	assert.Contains(t, err.Error(), "approved")

	withReason := NewInvalidTransition("bogus", "submitted", "未知的当前状态")
	assert.Contains(t, withReason.Error(), "未知的当前状态")
}
