package common

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GenerateUUID 生成 UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// RequestID 取出請求的 X-Request-ID，缺少時補一個並回寫到回應標頭
func RequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = GenerateUUID()
		c.Header("X-Request-ID", requestID)
	}
	return requestID
}

// WriteErrorResponse 以統一格式寫入錯誤響應
func WriteErrorResponse(c *gin.Context, customErr *CustomError) {
	c.JSON(customErr.Status, gin.H{
		"error": customErr.Message,
		"code":  customErr.Code,
	})
}
