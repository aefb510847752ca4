package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func testContext(query string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?"+query, nil)
	return c
}

func TestParsePageParams(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		page     int
		pageSize int
	}{
		{"默认值", "", 1, 20},
		{"正常参数", "page=3&page_size=50", 3, 50},
		{"非法页码回退默认", "page=abc&page_size=10", 1, 10},
		{"负数回退默认", "page=-1&page_size=-5", 1, 20},
		{"超出上限被截断", "page=1&page_size=9999", 1, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := ParsePageParams(testContext(tt.query))
			assert.Equal(t, tt.page, params.Page)
			assert.Equal(t, tt.pageSize, params.PageSize)
		})
	}
}

func TestParseSort(t *testing.T) {
	allowed := map[string]bool{"created_at": true, "status": true}

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"缺省用默认排序", "", "created_at desc"},
		{"白名单内升序", "sort=status", "status asc"},
		{"白名单内降序", "sort=status+desc", "status desc"},
		{"白名单外回退默认", "sort=password+desc", "created_at desc"},
		{"非法方向按升序", "sort=status+sideways", "status asc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSort(testContext(tt.query), allowed, "created_at desc")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewPageInfo(t *testing.T) {
	info := NewPageInfo(2, 20, 45)

	assert.Equal(t, 2, info.Page)
	assert.Equal(t, int64(45), info.Total)
	assert.Equal(t, 3, info.TotalPages)
	assert.True(t, info.HasNext)
	assert.True(t, info.HasPrev)

	last := NewPageInfo(3, 20, 45)
	assert.False(t, last.HasNext)

	first := NewPageInfo(1, 20, 45)
	assert.False(t, first.HasPrev)
}

func TestPageParamsOffsetLimit(t *testing.T) {
	params := &PageParams{Page: 3, PageSize: 25}

	assert.Equal(t, 50, params.GetOffset())
	assert.Equal(t, 25, params.GetLimit())
}
