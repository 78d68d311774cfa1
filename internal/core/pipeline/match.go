package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"budget-cart/internal/core/ai/oracle"
	"budget-cart/internal/core/cache"
	"budget-cart/internal/core/catalog"
	"budget-cart/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// matchSchema 配對階段的嚴格輸出 schema：
// 每個輸入食材必須恰好一筆，indices 可為空（不強迫猜測）
var matchSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"matches": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"ingredient": map[string]interface{}{"type": "string"},
					"indices": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "integer"},
					},
				},
				"required":             []string{"ingredient", "indices"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"matches"},
	"additionalProperties": false,
}

// matchResult 配對階段的解析目標
type matchResult struct {
	Matches []struct {
		Ingredient string `json:"ingredient"`
		Indices    []int  `json:"indices"`
	} `json:"matches"`
}

// matchCandidates 請分類服務為每個食材從列舉的候選標題中選出至多 pickCap 個索引。
// 指紋快取只存索引選擇，不存商品：命中時選擇原樣重用，
// 商品一律對照本次抓取的池重新解析，池的順序略有變動時快取的決策仍然有效。
func (p *Pipeline) matchCandidates(ctx context.Context, pools []CandidatePool, pickCap int) ([]MatchDecision, []Warning) {
	if len(pools) == 0 {
		return nil, nil
	}

	terms := make([]string, len(pools))
	var allTitles []string
	for i, pool := range pools {
		terms[i] = pool.Term
		allTitles = append(allTitles, pool.Titles...)
	}

	fingerprint := cache.MatchFingerprint(terms, allTitles, pickCap)

	// 先查指紋快取
	picks, cached := p.cachedPicks(ctx, fingerprint)
	if !cached {
		picks = p.oraclePicks(ctx, pools, pickCap)
		if data, err := json.Marshal(picks); err == nil {
			_ = p.store.Set(ctx, fingerprint, data, p.matchTTL)
		}
	}

	// 索引一律對照本次執行抓到的池快照解析，絕不使用其他執行的池
	decisions := make([]MatchDecision, 0, len(pools))
	var warnings []Warning
	for _, pool := range pools {
		decision, w := resolvePicks(pool, picks[pool.Term])
		decisions = append(decisions, decision)
		warnings = append(warnings, w...)
	}

	return decisions, warnings
}

// cachedPicks 讀取指紋快取的索引選擇
func (p *Pipeline) cachedPicks(ctx context.Context, fingerprint string) (map[string][]int, bool) {
	data, err := p.store.Get(ctx, fingerprint)
	if err != nil {
		common.LogCacheMiss("match", fingerprint)
		return nil, false
	}

	var picks map[string][]int
	if err := json.Unmarshal(data, &picks); err != nil {
		return nil, false
	}

	common.LogCacheHit("match", fingerprint)
	return picks, true
}

// oraclePicks 呼叫分類服務取得每個食材的索引選擇。
// 回應無法解析或漏掉某個食材時，該食材視為零個索引，不猜測。
func (p *Pipeline) oraclePicks(ctx context.Context, pools []CandidatePool, pickCap int) map[string][]int {
	var sb strings.Builder
	for _, pool := range pools {
		fmt.Fprintf(&sb, "Ingredient: %s\n", pool.Term)
		for i, title := range pool.Titles {
			fmt.Fprintf(&sb, "  %d. %s\n", i, title)
		}
	}

	turns := []oracle.Turn{
		{Role: "system", Content: fmt.Sprintf("You match grocery ingredients to retailer products. For every ingredient below, pick up to %d candidate indices that are genuinely that ingredient. Return one entry per ingredient, in order. If no candidate is a confident match, return an empty indices list for that ingredient. Never guess.", pickCap)},
		{Role: "user", Content: sb.String()},
	}

	picks := make(map[string][]int, len(pools))

	content, err := p.oracle.Complete(ctx, turns, "candidate_match", matchSchema)
	if err != nil {
		common.LogError("候選配對呼叫失敗", zap.Error(err))
		return picks
	}

	var result matchResult
	if !oracle.Decode(content, &result) {
		return picks
	}

	for _, m := range result.Matches {
		picks[m.Ingredient] = m.Indices
	}

	return picks
}

// resolvePicks 將索引選擇解析回商品紀錄。
// 去重 → 丟棄越界索引（全部丟棄記 no_valid_indices）→
// 索引換標題 → 標題先精確、再正規化比對回完整紀錄（失敗記 title_not_in_pool）。
// 解析後零筆商品記 no_confident_match，不退回「最接近的猜測」。
func resolvePicks(pool CandidatePool, indices []int) (MatchDecision, []Warning) {
	decision := MatchDecision{Ingredient: pool.Term}
	var warnings []Warning

	if len(indices) == 0 {
		warnings = append(warnings, WarnNoConfidentTitle)
		return decision, warnings
	}

	// 去重後丟棄越界索引；越界不是錯誤，靜默丟棄
	seen := make(map[int]bool, len(indices))
	valid := make([]int, 0, len(indices))
	for _, idx := range indices {
		if seen[idx] {
			continue
		}
		seen[idx] = true
		if idx < 0 || idx >= len(pool.Titles) {
			continue
		}
		valid = append(valid, idx)
	}

	if len(valid) == 0 {
		warnings = append(warnings, WarnNoValidIndices)
		return decision, warnings
	}

	decision.ChosenIndices = valid
	for _, idx := range valid {
		title := pool.Titles[idx]
		record, ok := resolveTitle(pool.Records, title)
		if !ok {
			common.LogWarn("標題不在候選池中",
				zap.String("ingredient", pool.Term),
				zap.String("title", title),
			)
			warnings = append(warnings, WarnTitleNotInPool)
			continue
		}
		decision.Products = append(decision.Products, record)
	}

	if len(decision.Products) == 0 {
		warnings = append(warnings, WarnNoConfidentMatch)
	}

	return decision, warnings
}

// resolveTitle 先精確比對標題，再退回正規化比對
func resolveTitle(records []catalog.Product, title string) (catalog.Product, bool) {
	for _, rec := range records {
		if rec.Title == title {
			return rec, true
		}
	}

	normalized := normalizeTitle(title)
	for _, rec := range records {
		if normalizeTitle(rec.Title) == normalized {
			return rec, true
		}
	}

	return catalog.Product{}, false
}

// diacriticStripper 去除組合用變音符號
var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeTitle 小寫、去變音符號、去標點、壓縮空白
func normalizeTitle(title string) string {
	stripped, _, err := transform.String(diacriticStripper, title)
	if err != nil {
		stripped = title
	}

	var sb strings.Builder
	for _, r := range strings.ToLower(stripped) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		} else {
			// 標點一律換成空白，"64-oz" 與 "64 oz" 才會對上
			sb.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(sb.String()), " ")
}
