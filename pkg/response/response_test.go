package response

import (
	"encoding/json"
	stderrors "errors"
	"net/http/httptest"
	"testing"

	"fintrack/pkg/errors"
	"fintrack/pkg/pagination"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(fn func(c *gin.Context)) (*httptest.ResponseRecorder, map[string]interface{}) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	fn(c)

	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestSuccess(t *testing.T) {
	w, body := record(func(c *gin.Context) {
		Success(c, gin.H{"id": 1})
	})

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, float64(errors.CodeSuccess), body["code"])
	assert.Equal(t, "success", body["message"])
	assert.NotNil(t, body["data"])
}

func TestSuccessWithPage(t *testing.T) {
	_, body := record(func(c *gin.Context) {
		SuccessWithPage(c, []int{1, 2}, pagination.NewPageInfo(1, 20, 2))
	})

	require.Contains(t, body, "page_info")
	pageInfo := body["page_info"].(map[string]interface{})
	assert.Equal(t, float64(2), pageInfo["total"])
}

func TestError_StatusMatchesCode(t *testing.T) {
	w, body := record(func(c *gin.Context) {
		NotFound(c, "记录不存在")
	})

	assert.Equal(t, 404, w.Code)
	assert.Equal(t, float64(404), body["code"])
	assert.Equal(t, "记录不存在", body["message"])
}

func TestFromError(t *testing.T) {
	t.Run("哨兵错误映射状态码", func(t *testing.T) {
		w, _ := record(func(c *gin.Context) {
			FromError(c, errors.ErrConflict)
		})
		assert.Equal(t, 409, w.Code)

		w, _ = record(func(c *gin.Context) {
			FromError(c, errors.ErrForbidden)
		})
		assert.Equal(t, 403, w.Code)
	})

	t.Run("校验错误携带字段明细", func(t *testing.T) {
		verr := errors.NewValidationError("字段校验失败")
		verr.AddField("amount", "不能小于0")

		w, body := record(func(c *gin.Context) {
			FromError(c, verr)
		})

		assert.Equal(t, 400, w.Code)
		data := body["data"].(map[string]interface{})
		fields := data["fields"].(map[string]interface{})
		assert.Equal(t, "不能小于0", fields["amount"])
	})

	t.Run("状态流转错误映射400", func(t *testing.T) {
		w, _ := record(func(c *gin.Context) {
			FromError(c, errors.NewInvalidTransition("draft", "approved", ""))
		})
		assert.Equal(t, 400, w.Code)
	})

	t.Run("未知错误映射500", func(t *testing.T) {
		w, _ := record(func(c *gin.Context) {
			FromError(c, stderrors.New("boom"))
		})
		assert.Equal(t, 500, w.Code)
	})
}
