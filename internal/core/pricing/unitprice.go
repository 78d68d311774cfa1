package pricing

import (
	"encoding/json"
	"regexp"
	"strings"

	"budget-cart/internal/core/catalog"

	"github.com/shopspring/decimal"
)

// UnitKind 單位種類；重量與容量是不同種類，彼此永不比較
type UnitKind string

const (
	UnitNone   UnitKind = "none"
	UnitCount  UnitKind = "count"
	UnitWeight UnitKind = "weight" // 一律換算為 oz
	UnitVolume UnitKind = "volume" // 一律換算為 fl oz
)

// UnitOffer 單一商品的可比較報價
// UnitPrice 只在 Kind != none 且 Qty > 0 時有效；否則只能比絕對價格
type UnitOffer struct {
	Product   catalog.Product
	Price     decimal.Decimal
	Kind      UnitKind
	Qty       decimal.Decimal
	UnitPrice decimal.Decimal
}

// HasUnitPrice 是否有有效的單位價格
func (o *UnitOffer) HasUnitPrice() bool {
	return o.Kind != UnitNone && o.Qty.IsPositive()
}

// 單位換算常數
var (
	mlPerFlOz = decimal.NewFromFloat(29.5735)
	flOzPerL  = decimal.NewFromFloat(33.814)
	ozPerLb   = decimal.NewFromInt(16)
	gPerOz    = decimal.NewFromFloat(28.3495)
	ozPerKg   = decimal.NewFromFloat(35.274)
)

// 數量樣式，依優先序比對：多件裝 → 明確件數 → 容量 → 重量
var (
	multipackPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*x\s*(\d+(?:\.\d+)?)\s*(fl\.?\s?oz|floz|ml|l\b|oz|lbs?|g\b|kg|ct|pk|count|pack)`)
	countPattern     = regexp.MustCompile(`(?:(\d+)\s*(?:ct|pk|count)\b|pack\s+of\s+(\d+)|(\d+)[\s-]pack\b)`)
	volumePattern    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(fl\.?\s?oz|floz|ml|l)\b`)
	weightPattern    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(oz|lbs?|g|kg)\b`)
)

// ParseOffer 從商品的尺寸文字解析出可比較的單位報價。
// 來源依序為尺寸欄位、原始紀錄的包裝欄位、商品標題；第一個解析成功的樣式獲勝。
// 全部失敗時 Kind 為 none，只能以絕對價格競爭。
func ParseOffer(p catalog.Product) UnitOffer {
	offer := UnitOffer{
		Product: p,
		Price:   p.Price,
		Kind:    UnitNone,
	}

	for _, source := range sizeSources(p) {
		if source == "" {
			continue
		}
		if kind, qty, ok := parseQuantity(source); ok {
			offer.Kind = kind
			offer.Qty = qty
			if qty.IsPositive() {
				offer.UnitPrice = p.Price.Div(qty)
			}
			return offer
		}
	}

	return offer
}

// sizeSources 依優先序列出可供解析的文字來源
func sizeSources(p catalog.Product) []string {
	sources := []string{p.SizeText}

	// 原始紀錄的包裝欄位作為備援
	if len(p.RawRecord) > 0 {
		var raw map[string]interface{}
		if err := json.Unmarshal(p.RawRecord, &raw); err == nil {
			for _, field := range []string{"size", "customerFacingSize", "packageSize"} {
				if v, ok := raw[field].(string); ok && v != p.SizeText {
					sources = append(sources, v)
				}
			}
		}
	}

	return append(sources, p.Title)
}

// parseQuantity 依樣式優先序解析一段文字
func parseQuantity(text string) (UnitKind, decimal.Decimal, bool) {
	text = strings.ToLower(text)

	// 多件裝：N x QTY unit，乘開為總量
	if m := multipackPattern.FindStringSubmatch(text); m != nil {
		count, err1 := decimal.NewFromString(m[1])
		qty, err2 := decimal.NewFromString(m[2])
		if err1 == nil && err2 == nil {
			kind, normalized := normalizeUnit(m[3], count.Mul(qty))
			return kind, normalized, true
		}
	}

	// 明確件數
	if m := countPattern.FindStringSubmatch(text); m != nil {
		for _, g := range m[1:] {
			if g == "" {
				continue
			}
			if n, err := decimal.NewFromString(g); err == nil {
				return UnitCount, n, true
			}
		}
	}

	// 容量（ml 與 l 換算為 fl oz）
	if m := volumePattern.FindStringSubmatch(text); m != nil {
		if qty, err := decimal.NewFromString(m[1]); err == nil {
			kind, normalized := normalizeUnit(m[2], qty)
			return kind, normalized, true
		}
	}

	// 重量（lb、g、kg 換算為 oz）
	if m := weightPattern.FindStringSubmatch(text); m != nil {
		if qty, err := decimal.NewFromString(m[1]); err == nil {
			kind, normalized := normalizeUnit(m[2], qty)
			return kind, normalized, true
		}
	}

	return UnitNone, decimal.Zero, false
}

// normalizeUnit 將單位標記換算為標準數量
func normalizeUnit(unit string, qty decimal.Decimal) (UnitKind, decimal.Decimal) {
	unit = strings.TrimSpace(unit)
	switch unit {
	case "ct", "pk", "count", "pack":
		return UnitCount, qty
	case "fl oz", "fl. oz", "fl.oz", "floz":
		return UnitVolume, qty
	case "ml":
		return UnitVolume, qty.Div(mlPerFlOz)
	case "l":
		return UnitVolume, qty.Mul(flOzPerL)
	case "oz":
		return UnitWeight, qty
	case "lb", "lbs":
		return UnitWeight, qty.Mul(ozPerLb)
	case "g":
		return UnitWeight, qty.Div(gPerOz)
	case "kg":
		return UnitWeight, qty.Mul(ozPerKg)
	default:
		return UnitNone, qty
	}
}
