package pipeline

import (
	"context"

	"budget-cart/internal/core/catalog"
	"budget-cart/internal/pkg/common"

	"go.uber.org/zap"
)

// fetchCandidates 為每個食材詞查詢零售商目錄。
// 單一詞的搜尋失敗只影響該詞：記 product_search_failed 警告、給空池，
// 其餘詞照常進行。回傳的池與輸入詞一一對應（含空池）。
func (p *Pipeline) fetchCandidates(ctx context.Context, searcher catalog.Searcher, terms []string, locationID string) ([]CandidatePool, []Warning) {
	pools := make([]CandidatePool, 0, len(terms))
	var warnings []Warning

	for _, term := range terms {
		pool := CandidatePool{Term: term}

		products, err := searcher.Search(ctx, term, locationID, p.searchLimit)
		if err != nil {
			common.LogWarn("商品搜尋失敗",
				zap.String("term", term),
				zap.Error(err),
			)
			warnings = append(warnings, WarnProductSearchFailed)
			pools = append(pools, pool)
			continue
		}

		pool.Titles = make([]string, len(products))
		pool.Records = products
		for i, prod := range products {
			pool.Titles[i] = prod.Title
		}

		pools = append(pools, pool)
	}

	return pools, warnings
}

// eligiblePools 過濾掉空池；池是空的就沒有東西可選，不進配對階段
func eligiblePools(pools []CandidatePool) []CandidatePool {
	out := make([]CandidatePool, 0, len(pools))
	for _, pool := range pools {
		if len(pool.Records) > 0 {
			out = append(out, pool)
		}
	}
	return out
}
