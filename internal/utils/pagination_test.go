package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query string
		want  Pagination
	}{
		{"", Pagination{Page: 1, Limit: DefaultPageSize}},
		{"?page=3&limit=25", Pagination{Page: 3, Limit: 25}},
		{"?page=0&limit=-5", Pagination{Page: 1, Limit: DefaultPageSize}},
		{"?page=abc&limit=xyz", Pagination{Page: 1, Limit: DefaultPageSize}},
		{"?limit=1000", Pagination{Page: 1, Limit: MaxPageSize}},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/items"+tt.query, nil)
		assert.Equal(t, tt.want, ParsePagination(c), tt.query)
	}
}

func TestPaginationMath(t *testing.T) {
	p := Pagination{Page: 3, Limit: 10}
	assert.Equal(t, 20, p.Offset())
	assert.Equal(t, 3, p.Pages(21))
	assert.Equal(t, 2, p.Pages(20))
	assert.Equal(t, 0, p.Pages(0))
}
