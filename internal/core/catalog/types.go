package catalog

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Retailer 零售商代號
type Retailer string

const (
	RetailerKroger  Retailer = "kroger"
	RetailerWalmart Retailer = "walmart"
)

// Product 零售商中立的商品結構
// RawRecord 保留零售商原始紀錄，供後續單位解析的備援欄位使用
type Product struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	ImageURL  string          `json:"image_url"`
	Price     decimal.Decimal `json:"price"`
	Retailer  Retailer        `json:"retailer"`
	SizeText  string          `json:"size_text"`
	RawRecord json.RawMessage `json:"-"`
}

// Searcher 目錄搜尋介面
// locationID 對不支援門市概念的零售商可為空字串
type Searcher interface {
	Search(ctx context.Context, term string, locationID string, limit int) ([]Product, error)
}
