package common

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDPassthrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/", nil)
	c.Request.Header.Set("X-Request-ID", "upstream-id")

	assert.Equal(t, "upstream-id", RequestID(c))
}

func TestRequestIDGeneratedWhenMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/", nil)

	id := RequestID(c)
	require.NotEmpty(t, id)

	// 補上的 ID 回寫到回應標頭
	assert.Equal(t, id, w.Header().Get("X-Request-ID"))
}

func TestWriteErrorResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	WriteErrorResponse(c, ErrOracleUnavailable)

	assert.Equal(t, ErrOracleUnavailable.Status, w.Code)
	assert.JSONEq(t,
		`{"error":"分類服務無法連線","code":"ORACLE_UNAVAILABLE"}`,
		w.Body.String(),
	)
}
