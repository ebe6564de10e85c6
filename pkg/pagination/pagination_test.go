package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func parseQuery(query string) Params {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/items?"+query, nil)
	return Parse(c)
}

func TestParse(t *testing.T) {
	assert.Equal(t, Params{Page: 1, Limit: DefaultLimit}, parseQuery(""))
	assert.Equal(t, Params{Page: 3, Limit: 50}, parseQuery("page=3&limit=50"))
	assert.Equal(t, Params{Page: 1, Limit: MaxLimit}, parseQuery("page=-2&limit=1000"))
	assert.Equal(t, Params{Page: 1, Limit: DefaultLimit}, parseQuery("page=abc&limit=0"))
}

func TestNewMeta(t *testing.T) {
	assert.Equal(t, Meta{Page: 1, Limit: 20, Total: 0, TotalPages: 0}, NewMeta(Params{Page: 1, Limit: 20}, 0))
	assert.Equal(t, Meta{Page: 2, Limit: 20, Total: 41, TotalPages: 3}, NewMeta(Params{Page: 2, Limit: 20}, 41))
}
