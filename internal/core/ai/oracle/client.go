package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"budget-cart/internal/infrastructure/config"
	"budget-cart/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Turn 對話回合
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer 分類服務介面
type Completer interface {
	Complete(ctx context.Context, turns []Turn, schemaName string, schema map[string]interface{}) (string, error)
}

// Client 分類服務客戶端
type Client struct {
	config *config.OracleConfig
	client *resty.Client
}

// NewClient 創建分類服務客戶端
func NewClient(cfg *config.OracleConfig) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey)).
		SetHeader("HTTP-Referer", "https://budget-cart.app").
		SetHeader("X-Title", "Budget Cart")

	return &Client{
		config: cfg,
		client: client,
	}
}

// Complete 送出對話回合與嚴格輸出 schema，回傳模型的原始文字內容。
// 傳輸層錯誤與非 200 回應是唯一會往上傳的錯誤；內容解析交給 Decode。
func (c *Client) Complete(ctx context.Context, turns []Turn, schemaName string, schema map[string]interface{}) (string, error) {
	start := time.Now()

	// 構建請求
	req := map[string]interface{}{
		"model":      c.config.Model,
		"messages":   turns,
		"max_tokens": c.config.MaxTokens,
	}
	if schema != nil {
		req["response_format"] = map[string]interface{}{
			"type": "json_schema",
			"json_schema": map[string]interface{}{
				"name":   schemaName,
				"strict": true,
				"schema": schema,
			},
		}
	}

	// 發送請求
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/chat/completions")

	common.LogOracleCall(time.Since(start), err, "")

	if err != nil {
		return "", fmt.Errorf("failed to send request to oracle: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("oracle API returned error (status %d): %s", resp.StatusCode(), resp.String())
	}

	// 解析回應
	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", fmt.Errorf("failed to parse oracle response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in oracle response")
	}

	content := result.Choices[0].Message.Content
	common.LogDebug("Oracle response received",
		zap.Int("content_length", len(content)),
	)

	return content, nil
}

// Decode 盡力解析模型輸出的 JSON：先去除程式碼圍欄、直接解析，
// 再退回括號子字串擷取。解析失敗回傳 false，呼叫端必須自備預設值；
// JSON 解析錯誤永遠不會越過這個邊界。
func Decode(content string, v interface{}) bool {
	content = common.StripCodeFence(strings.TrimSpace(content))
	if content == "" {
		return false
	}

	if err := common.ParseJSON(content, v); err == nil {
		return true
	}

	if obj := common.ExtractJSONObject(content); obj != "" {
		if err := common.ParseJSON(obj, v); err == nil {
			return true
		}
	}

	if arr := common.ExtractJSONArray(content); arr != "" {
		if err := common.ParseJSON(arr, v); err == nil {
			return true
		}
	}

	common.LogWarn("Oracle content unparsable, falling back to default",
		zap.Int("content_length", len(content)),
	)
	return false
}
