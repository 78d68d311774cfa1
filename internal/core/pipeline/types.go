package pipeline

import (
	"budget-cart/internal/core/catalog"
)

// Warning 管線警告代碼（封閉集合）
// 警告是資料而不是錯誤：單一食材或單一項目的失敗只會降級，不會中斷整條管線
type Warning string

const (
	WarnNoIngredients       Warning = "no_ingredients"
	WarnNoCandidates        Warning = "no_candidates"
	WarnProductSearchFailed Warning = "product_search_failed"
	WarnNoConfidentTitle    Warning = "no_confident_title"
	WarnNoValidIndices      Warning = "no_valid_indices"
	WarnNoConfidentMatch    Warning = "no_confident_match"
	WarnTitleNotInPool      Warning = "title_not_in_pool"
)

// Request 管線輸入
type Request struct {
	Query      string `json:"query" binding:"required"`
	PostalCode string `json:"postal_code,omitempty"`
	BudgetMode bool   `json:"budget_mode"`
	PickCap    int    `json:"pick_cap"`
}

// IngredientSet 擷取階段的輸出；同一次執行中不再變動
// Ingredients 依位置去重，但不做大小寫或變音符號正規化
type IngredientSet struct {
	DishName    string   `json:"dish_name"`
	Ingredients []string `json:"ingredients"`
	Fingerprint string   `json:"fingerprint"`
}

// CandidatePool 單一食材在單一零售商的候選池
// Titles 與 Records 平行對齊，索引位置就是對外的契約：
// 配對階段回傳的是進入這個陣列的位置，不是內容
type CandidatePool struct {
	Term    string
	Titles  []string
	Records []catalog.Product
}

// MatchDecision 單一食材的配對結果
// 零筆商品是合法的終態（沒有可信的配對），以警告記錄而非錯誤
type MatchDecision struct {
	Ingredient    string
	ChosenIndices []int
	Products      []catalog.Product
}

// RetailerProducts 依零售商分組的商品
type RetailerProducts struct {
	Kroger  []catalog.Product `json:"kroger"`
	Walmart []catalog.Product `json:"walmart"`
}

// RetailerIngredients 依零售商分組的已配對食材
type RetailerIngredients struct {
	Kroger  []string `json:"kroger"`
	Walmart []string `json:"walmart"`
}

// Response 管線輸出
type Response struct {
	DishName             string              `json:"dish_name"`
	Ingredients          []string            `json:"ingredients"`
	ProductsByRetailer   RetailerProducts    `json:"products_by_retailer"`
	MatchedByRetailer    RetailerIngredients `json:"matched_ingredients_by_retailer"`
	UnmatchedIngredients []string            `json:"unmatched_ingredients"`
	Warnings             []Warning           `json:"warnings"`
}

// dedupeByPosition 依位置去重，保留先出現者的順序
func dedupeByPosition(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}

// clampPickCap 將每食材的選取上限限制在 [1,2]
func clampPickCap(n int) int {
	if n < 1 {
		return 1
	}
	if n > 2 {
		return 2
	}
	return n
}
