package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"budget-cart/internal/infrastructure/config"
	"budget-cart/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// statusError 保留零售商回應的狀態碼，引擎據此分流：
// 401/403 走刷新重試，其他非 2xx 只跳過該項目
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("kroger cart request failed with status %d: %s", e.StatusCode, e.Body)
}

// isAuthStatus 是否為授權失效類的狀態碼
func isAuthStatus(err error) bool {
	se, ok := err.(*statusError)
	return ok && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden)
}

// CartClient 以使用者 token 操作零售商購物車的介面
type CartClient interface {
	AddItem(ctx context.Context, accessToken, productID string, quantity int) error
	RefreshToken(ctx context.Context, refreshToken string) (*Credential, error)
}

// KrogerCartClient Kroger 購物車客戶端
// 與目錄客戶端不同，這裡所有呼叫都帶使用者自己的 token
type KrogerCartClient struct {
	config *config.KrogerConfig
	client *resty.Client
}

// NewKrogerCartClient 創建 Kroger 購物車客戶端
func NewKrogerCartClient(cfg *config.KrogerConfig) *KrogerCartClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)

	return &KrogerCartClient{
		config: cfg,
		client: client,
	}
}

// refreshResponse token 刷新回應
type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// RefreshToken 以 refresh token 換發新的使用者憑證。
// 回傳的 refresh token 可能也換新了，呼叫端必須整份覆寫存檔。
func (c *KrogerCartClient) RefreshToken(ctx context.Context, refreshToken string) (*Credential, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBasicAuth(c.config.ClientID, c.config.ClientSecret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
		}).
		Post("/connect/oauth2/token")

	if err != nil {
		return nil, fmt.Errorf("failed to execute refresh request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &statusError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var result refreshResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to decode refresh response: %w", err)
	}

	cred := &Credential{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(result.ExpiresIn) * time.Second),
	}
	if cred.RefreshToken == "" {
		cred.RefreshToken = refreshToken
	}

	common.LogDebug("使用者 token 已刷新",
		zap.Time("expires_at", cred.ExpiresAt),
	)

	return cred, nil
}

// addItemRequest 加入購物車的請求本體
type addItemRequest struct {
	Items []addItem `json:"items"`
}

type addItem struct {
	UPC      string `json:"upc"`
	Quantity int    `json:"quantity"`
}

// AddItem 將單一商品加入使用者購物車；非 2xx 回傳帶狀態碼的錯誤
func (c *KrogerCartClient) AddItem(ctx context.Context, accessToken, productID string, quantity int) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetHeader("Content-Type", "application/json").
		SetBody(addItemRequest{Items: []addItem{{UPC: productID, Quantity: quantity}}}).
		Put("/cart/add")

	if err != nil {
		return fmt.Errorf("failed to execute cart request: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return &statusError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	return nil
}
