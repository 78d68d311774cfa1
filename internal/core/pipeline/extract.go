package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"budget-cart/internal/core/ai/oracle"
	"budget-cart/internal/core/cache"
	"budget-cart/internal/pkg/common"

	"go.uber.org/zap"
)

// extractSchema 擷取階段的嚴格輸出 schema：字串陣列
var extractSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"ingredients": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
	"required":             []string{"ingredients"},
	"additionalProperties": false,
}

// extractResult 擷取階段的解析目標
type extractResult struct {
	Ingredients []string `json:"ingredients"`
}

// extractIngredients 將查詢分類為單一食材或一道菜。
// 回傳一個詞 → 當作單純食材；多個詞 → 第一個是菜名、其餘是食材；
// 零個詞或無法解析 → 空集合，管線以 no_ingredients 提前結束（documented 終態，不是錯誤）。
func (p *Pipeline) extractIngredients(ctx context.Context, query string) (IngredientSet, error) {
	set := IngredientSet{Fingerprint: cache.OracleKey(query)}

	// 先查 oracle 快取，命中就完全跳過外部呼叫
	var terms []string
	cached := false
	if data, err := p.store.Get(ctx, set.Fingerprint); err == nil {
		if json.Unmarshal(data, &terms) == nil {
			cached = true
			common.LogCacheHit("oracle", set.Fingerprint)
		}
	}

	if !cached {
		common.LogCacheMiss("oracle", set.Fingerprint)

		turns := []oracle.Turn{
			{Role: "system", Content: "You classify grocery queries. If the query names a single grocery item, return exactly that item. If it names a dish, return the dish name first followed by its main purchasable ingredients. If the query is not food related, return an empty list."},
			{Role: "user", Content: fmt.Sprintf("Query: %q", query)},
		}

		content, err := p.oracle.Complete(ctx, turns, "ingredient_extraction", extractSchema)
		if err != nil {
			// 分類服務完全無法連線是整個請求唯一的硬失敗路徑
			return set, fmt.Errorf("ingredient extraction failed: %w", err)
		}

		var result extractResult
		if !oracle.Decode(content, &result) {
			// 無法解析視同零個詞，呼叫端會以 no_ingredients 提前結束
			result = extractResult{}
		}
		terms = result.Ingredients

		if data, err := json.Marshal(terms); err == nil {
			_ = p.store.Set(ctx, set.Fingerprint, data, p.oracleTTL)
		}
	}

	switch len(terms) {
	case 0:
		// 空集合：終態由呼叫端處理
	case 1:
		set.Ingredients = dedupeByPosition(terms)
	default:
		set.DishName = terms[0]
		set.Ingredients = dedupeByPosition(terms[1:])
	}

	common.LogInfo("食材擷取完成",
		zap.String("dish_name", set.DishName),
		zap.Int("ingredient_count", len(set.Ingredients)),
		zap.Bool("cache_hit", cached),
	)

	return set, nil
}
