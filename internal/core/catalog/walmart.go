package catalog

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"budget-cart/internal/infrastructure/config"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// WalmartClient Walmart 目錄客戶端
// 每個請求都要附上簽章標頭，沒有門市概念
type WalmartClient struct {
	config     *config.WalmartConfig
	client     *resty.Client
	privateKey *rsa.PrivateKey
	maxRetries int
}

// NewWalmartClient 創建 Walmart 目錄客戶端
func NewWalmartClient(cfg *config.WalmartConfig, maxRetries int) (*WalmartClient, error) {
	key, err := parsePrivateKey(cfg.PrivateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse walmart private key: %w", err)
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)

	return &WalmartClient{
		config:     cfg,
		client:     client,
		privateKey: key,
		maxRetries: maxRetries,
	}, nil
}

// parsePrivateKey 解析 PEM 編碼的 RSA 私鑰（支援 PKCS1 與 PKCS8）
func parsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("PEM block is not an RSA private key")
	}
	return key, nil
}

// signedHeaders 產生每請求簽章標頭
// 簽章內容固定為 consumerId\ntimestamp\nkeyVersion\n
func (w *WalmartClient) signedHeaders() (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	payload := w.config.ConsumerID + "\n" + timestamp + "\n" + w.config.KeyVersion + "\n"

	digest := sha256.Sum256([]byte(payload))
	signature, err := rsa.SignPKCS1v15(rand.Reader, w.privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}

	return map[string]string{
		"WM_CONSUMER.ID":          w.config.ConsumerID,
		"WM_CONSUMER.INTIMESTAMP": timestamp,
		"WM_SEC.KEY_VERSION":      w.config.KeyVersion,
		"WM_SEC.AUTH_SIGNATURE":   base64.StdEncoding.EncodeToString(signature),
	}, nil
}

// walmartItem 商品原始紀錄
type walmartItem struct {
	ItemID     int64   `json:"itemId"`
	Name       string  `json:"name"`
	SalePrice  float64 `json:"salePrice"`
	Size       string  `json:"size"`
	LargeImage string  `json:"largeImage"`
}

// walmartSearchResponse 搜尋回應
type walmartSearchResponse struct {
	Items []json.RawMessage `json:"items"`
}

// Search 搜尋商品；locationID 參數在此零售商沒有意義，直接忽略
func (w *WalmartClient) Search(ctx context.Context, term string, locationID string, limit int) ([]Product, error) {
	resp, err := doWithRetry(ctx, w.maxRetries, func() (*resty.Response, error) {
		headers, err := w.signedHeaders()
		if err != nil {
			return nil, err
		}
		return w.client.R().
			SetContext(ctx).
			SetHeaders(headers).
			SetQueryParam("query", term).
			SetQueryParam("numItems", strconv.Itoa(limit)).
			Get("/search")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("walmart search failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	var result walmartSearchResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	products := make([]Product, 0, len(result.Items))
	for _, raw := range result.Items {
		var rec walmartItem
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		products = append(products, Product{
			ID:        strconv.FormatInt(rec.ItemID, 10),
			Title:     rec.Name,
			ImageURL:  rec.LargeImage,
			Price:     decimal.NewFromFloat(rec.SalePrice),
			Retailer:  RetailerWalmart,
			SizeText:  rec.Size,
			RawRecord: raw,
		})
	}

	return products, nil
}
