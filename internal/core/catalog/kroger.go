package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"budget-cart/internal/core/cache"
	"budget-cart/internal/infrastructure/config"
	"budget-cart/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// tokenExpiryMargin 在到期前提早視為失效，避免請求在途中過期
const tokenExpiryMargin = 60 * time.Second

// KrogerClient Kroger 目錄客戶端
// 服務端 token 走 client credentials，快取到接近到期為止
type KrogerClient struct {
	config      *config.KrogerConfig
	client      *resty.Client
	store       cache.Store
	locationTTL time.Duration
	maxRetries  int

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewKrogerClient 創建 Kroger 目錄客戶端
func NewKrogerClient(cfg *config.KrogerConfig, cacheCfg *config.CacheConfig, store cache.Store, maxRetries int) *KrogerClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)

	return &KrogerClient{
		config:      cfg,
		client:      client,
		store:       store,
		locationTTL: cacheCfg.LocationTTL,
		maxRetries:  maxRetries,
	}
}

// tokenResponse token 端點回應
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// getAccessToken 以 client credentials 取得服務端 token，快取到接近到期為止
func (k *KrogerClient) getAccessToken(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.accessToken != "" && time.Now().Add(tokenExpiryMargin).Before(k.tokenExpiry) {
		return k.accessToken, nil
	}

	resp, err := k.client.R().
		SetContext(ctx).
		SetBasicAuth(k.config.ClientID, k.config.ClientSecret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
			"scope":      "product.compact",
		}).
		Post("/connect/oauth2/token")

	if err != nil {
		return "", fmt.Errorf("failed to execute token request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("kroger token request failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	var token tokenResponse
	if err := json.Unmarshal(resp.Body(), &token); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	k.accessToken = token.AccessToken
	k.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)

	common.LogDebug("Kroger service token refreshed",
		zap.Time("expiry", k.tokenExpiry),
	)

	return k.accessToken, nil
}

// krogerLocationResponse 門市查詢回應
type krogerLocationResponse struct {
	Data []struct {
		LocationID string `json:"locationId"`
		Name       string `json:"name"`
	} `json:"data"`
}

// LocationByZip 以郵遞區號查詢最近門市，結果快取約 7 天
func (k *KrogerClient) LocationByZip(ctx context.Context, zip string) (string, error) {
	key := cache.LocationKey(zip)
	if data, err := k.store.Get(ctx, key); err == nil {
		common.LogCacheHit("location", key)
		return string(data), nil
	}
	common.LogCacheMiss("location", key)

	token, err := k.getAccessToken(ctx)
	if err != nil {
		return "", err
	}

	resp, err := doWithRetry(ctx, k.maxRetries, func() (*resty.Response, error) {
		return k.client.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetQueryParams(map[string]string{
				"filter.zipCode.near": zip,
				"filter.limit":        "1",
			}).
			Get("/locations")
	})
	if err != nil {
		return "", fmt.Errorf("failed to look up location: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("kroger location lookup failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	var result krogerLocationResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", fmt.Errorf("failed to decode location response: %w", err)
	}
	if len(result.Data) == 0 {
		return "", fmt.Errorf("no location found for zip %s", zip)
	}

	locationID := result.Data[0].LocationID
	_ = k.store.Set(ctx, key, []byte(locationID), k.locationTTL)

	return locationID, nil
}

// krogerProduct 商品原始紀錄
type krogerProduct struct {
	ProductID   string `json:"productId"`
	Description string `json:"description"`
	Items       []struct {
		Size  string `json:"size"`
		Price struct {
			Regular float64 `json:"regular"`
			Promo   float64 `json:"promo"`
		} `json:"price"`
	} `json:"items"`
	Images []struct {
		Perspective string `json:"perspective"`
		Sizes       []struct {
			Size string `json:"size"`
			URL  string `json:"url"`
		} `json:"sizes"`
	} `json:"images"`
}

// krogerSearchResponse 搜尋回應；保留原始紀錄供 RawRecord 使用
type krogerSearchResponse struct {
	Data []json.RawMessage `json:"data"`
}

// Search 搜尋商品
// 帶門市的呼叫若以 429/5xx 類錯誤收場，改用無門市搜尋重試一次（每個詞最多一次）
func (k *KrogerClient) Search(ctx context.Context, term string, locationID string, limit int) ([]Product, error) {
	token, err := k.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := k.search(ctx, token, term, locationID, limit)
	if locationID != "" && k.shouldFallback(resp, err) {
		common.LogWarn("門市範圍搜尋失敗，改用無門市搜尋",
			zap.String("term", term),
			zap.String("location_id", locationID),
		)
		resp, err = k.search(ctx, token, term, "", limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("kroger search failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	var result krogerSearchResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	products := make([]Product, 0, len(result.Data))
	for _, raw := range result.Data {
		var rec krogerProduct
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		products = append(products, k.normalize(rec, raw))
	}

	return products, nil
}

// shouldFallback 判斷是否應改用無門市搜尋
func (k *KrogerClient) shouldFallback(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	return isTransientStatus(resp.StatusCode())
}

func (k *KrogerClient) search(ctx context.Context, token, term, locationID string, limit int) (*resty.Response, error) {
	return doWithRetry(ctx, k.maxRetries, func() (*resty.Response, error) {
		req := k.client.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetQueryParam("filter.term", term).
			SetQueryParam("filter.limit", strconv.Itoa(limit))
		if locationID != "" {
			req.SetQueryParam("filter.locationId", locationID)
		}
		return req.Get("/products")
	})
}

// normalize 轉換為零售商中立結構；有促銷價取促銷價
func (k *KrogerClient) normalize(rec krogerProduct, raw json.RawMessage) Product {
	p := Product{
		ID:        rec.ProductID,
		Title:     rec.Description,
		Retailer:  RetailerKroger,
		RawRecord: raw,
	}

	if len(rec.Items) > 0 {
		item := rec.Items[0]
		p.SizeText = item.Size
		price := item.Price.Regular
		if item.Price.Promo > 0 && item.Price.Promo < item.Price.Regular {
			price = item.Price.Promo
		}
		p.Price = decimal.NewFromFloat(price)
	}

	for _, img := range rec.Images {
		if img.Perspective == "front" && len(img.Sizes) > 0 {
			p.ImageURL = img.Sizes[0].URL
			break
		}
	}
	if p.ImageURL == "" && len(rec.Images) > 0 && len(rec.Images[0].Sizes) > 0 {
		p.ImageURL = rec.Images[0].Sizes[0].URL
	}

	return p
}
