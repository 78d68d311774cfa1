package catalog

import (
	"context"
	"math/rand"
	"net/http"
	"time"

	"budget-cart/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	retryBaseDelay = 250 * time.Millisecond
	retryMaxDelay  = 2 * time.Second
)

// isTransientStatus 判斷狀態碼是否屬於可重試的暫時性錯誤
// 4xx（429 除外）一律不重試
func isTransientStatus(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500
}

// doWithRetry 以有上限的指數退避（含抖動）執行一次外部呼叫。
// 只對傳輸錯誤與 429/5xx 重試；用戶端錯誤直接回傳。
func doWithRetry(ctx context.Context, attempts int, fn func() (*resty.Response, error)) (*resty.Response, error) {
	if attempts < 1 {
		attempts = 1
	}

	var resp *resty.Response
	var err error

	delay := retryBaseDelay
	for i := 0; i < attempts; i++ {
		resp, err = fn()
		if err == nil && !isTransientStatus(resp.StatusCode()) {
			return resp, nil
		}

		// 最後一次失敗就放棄，讓該項目自行降級
		if i == attempts-1 {
			break
		}

		jittered := delay + time.Duration(rand.Int63n(int64(delay)))
		common.LogWarn("外部呼叫暫時性失敗，準備重試",
			zap.Int("attempt", i+1),
			zap.Duration("delay", jittered),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return resp, ctx.Err()
		case <-time.After(jittered):
		}

		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}

	return resp, err
}
