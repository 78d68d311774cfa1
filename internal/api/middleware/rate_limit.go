package middleware

import (
	"fmt"
	"net/http"
	"time"

	"budget-cart/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimit 限流中間件
// 全域令牌桶：window 期間最多 requests 個請求，桶容量即 requests
func RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(float64(requests)/window.Seconds()), requests)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			common.LogInfo("Rate limit exceeded",
				zap.String("ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path),
			)

			c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests",
				"retry_after": window.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
