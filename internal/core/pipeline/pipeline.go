package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"budget-cart/internal/core/ai/oracle"
	"budget-cart/internal/core/cache"
	"budget-cart/internal/core/catalog"
	"budget-cart/internal/core/pricing"
	"budget-cart/internal/infrastructure/config"
	"budget-cart/internal/pkg/common"

	"go.uber.org/zap"
)

// pipelineVersion 版本化最終結果快取的鍵。
// 任何會改變 Response 形狀或配對語意的變更都要調升這個值，
// 舊版快取不清除、只是再也不會被讀到。
const pipelineVersion = "v1"

// stage 管線階段（依序執行，不並行）
type stage int

const (
	stageDishCache stage = iota
	stageExtract
	stageFetch
	stageMatch
	stageAssemble
)

// Locator 郵遞區號換門市
type Locator interface {
	LocationByZip(ctx context.Context, zip string) (string, error)
}

// Pipeline 購物清單產生管線：擷取食材、查目錄、配對、選勝出者
type Pipeline struct {
	oracle      oracle.Completer
	kroger      catalog.Searcher
	walmart     catalog.Searcher
	locator     Locator
	store       cache.Store
	oracleTTL   time.Duration
	matchTTL    time.Duration
	searchLimit int
}

// NewPipeline 建立管線
func NewPipeline(cfg *config.Config, completer oracle.Completer, kroger catalog.Searcher, walmart catalog.Searcher, locator Locator, store cache.Store) *Pipeline {
	return &Pipeline{
		oracle:      completer,
		kroger:      kroger,
		walmart:     walmart,
		locator:     locator,
		store:       store,
		oracleTTL:   cfg.Cache.OracleTTL,
		matchTTL:    cfg.Cache.MatchTTL,
		searchLimit: cfg.Search.Limit,
	}
}

// Run 執行完整管線。
// 唯一的硬失敗是擷取階段連分類服務都叫不到；
// 之後的任何單點失敗都以警告降級，照樣回傳結果。
func (p *Pipeline) Run(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	pickCap := clampPickCap(req.PickCap)

	// 門市先解析：最終結果快取鍵含門市，不同門市價格不同
	locationID := ""
	if req.PostalCode != "" && p.locator != nil {
		id, err := p.locator.LocationByZip(ctx, req.PostalCode)
		if err != nil {
			common.LogWarn("門市查詢失敗，改用無門市搜尋",
				zap.String("postal_code", req.PostalCode),
				zap.Error(err),
			)
		} else {
			locationID = id
		}
	}

	dishKey := cache.DishKey(pipelineVersion, req.Query, locationID, pickCap, req.BudgetMode)
	if resp := p.cachedResponse(ctx, dishKey); resp != nil {
		return resp, nil
	}

	resp, err := p.run(ctx, req, pickCap, locationID)
	if err != nil {
		return nil, err
	}

	// 最終結果不設 TTL，靠 pipelineVersion 換代
	if data, err := json.Marshal(resp); err == nil {
		_ = p.store.SetForever(ctx, dishKey, data)
	}

	common.LogInfo("管線執行完成",
		zap.String("dish_name", resp.DishName),
		zap.Int("ingredient_count", len(resp.Ingredients)),
		zap.Int("unmatched_count", len(resp.UnmatchedIngredients)),
		zap.Bool("budget_mode", req.BudgetMode),
		zap.Duration("duration", time.Since(start)),
	)

	return resp, nil
}

// run 依階段推進；每個階段只消費前一階段的輸出
func (p *Pipeline) run(ctx context.Context, req Request, pickCap int, locationID string) (*Response, error) {
	resp := &Response{Warnings: []Warning{}}

	current := stageExtract
	var set IngredientSet
	for {
		switch current {
		case stageExtract:
			s, err := p.extractIngredients(ctx, req.Query)
			if err != nil {
				return nil, err
			}
			set = s
			resp.DishName = set.DishName
			resp.Ingredients = set.Ingredients
			if len(set.Ingredients) == 0 {
				resp.Warnings = append(resp.Warnings, WarnNoIngredients)
				resp.UnmatchedIngredients = []string{}
				return resp, nil
			}
			current = stageFetch

		case stageFetch, stageMatch, stageAssemble:
			// 抓取、配對與組裝依模式分流，細節在各自函式
			if req.BudgetMode {
				p.runBudget(ctx, resp, set, pickCap, locationID)
			} else {
				p.runNormal(ctx, resp, set, pickCap, locationID)
			}
			return resp, nil
		}
	}
}

// runNormal 一般模式：Kroger 為主、Walmart 補缺。
// 先對全部食材跑 Kroger，沒配到的再拿去 Walmart 試一次，
// 兩邊都沒配到的列入 unmatched。
func (p *Pipeline) runNormal(ctx context.Context, resp *Response, set IngredientSet, pickCap int, locationID string) {
	krogerDecisions := p.searchAndMatch(ctx, resp, p.kroger, set.Ingredients, locationID, pickCap)

	var unmatched []string
	for _, d := range krogerDecisions {
		if len(d.Products) > 0 {
			resp.MatchedByRetailer.Kroger = append(resp.MatchedByRetailer.Kroger, d.Ingredient)
			resp.ProductsByRetailer.Kroger = append(resp.ProductsByRetailer.Kroger, d.Products...)
		} else {
			unmatched = append(unmatched, d.Ingredient)
		}
	}
	for _, term := range set.Ingredients {
		if !decided(krogerDecisions, term) {
			unmatched = append(unmatched, term)
		}
	}

	resp.UnmatchedIngredients = []string{}
	if len(unmatched) == 0 {
		return
	}

	walmartDecisions := p.searchAndMatch(ctx, resp, p.walmart, unmatched, "", pickCap)
	for _, term := range unmatched {
		d, ok := findDecision(walmartDecisions, term)
		if ok && len(d.Products) > 0 {
			resp.MatchedByRetailer.Walmart = append(resp.MatchedByRetailer.Walmart, term)
			resp.ProductsByRetailer.Walmart = append(resp.ProductsByRetailer.Walmart, d.Products...)
		} else {
			resp.UnmatchedIngredients = append(resp.UnmatchedIngredients, term)
		}
	}
}

// runBudget 省錢模式：兩家零售商都對完整食材集合各跑一次配對，
// 再對每個食材比單位價格，勝出者的商品才進回應。
func (p *Pipeline) runBudget(ctx context.Context, resp *Response, set IngredientSet, pickCap int, locationID string) {
	krogerDecisions := p.searchAndMatch(ctx, resp, p.kroger, set.Ingredients, locationID, pickCap)
	walmartDecisions := p.searchAndMatch(ctx, resp, p.walmart, set.Ingredients, "", pickCap)

	resp.UnmatchedIngredients = []string{}
	for _, term := range set.Ingredients {
		krogerBest := bestOfferFor(krogerDecisions, term)
		walmartBest := bestOfferFor(walmartDecisions, term)

		decision := pricing.PickWinner(term, krogerBest, walmartBest)
		switch decision.Winner {
		case catalog.RetailerKroger:
			resp.MatchedByRetailer.Kroger = append(resp.MatchedByRetailer.Kroger, term)
			resp.ProductsByRetailer.Kroger = append(resp.ProductsByRetailer.Kroger, decision.Offer.Product)
		case catalog.RetailerWalmart:
			resp.MatchedByRetailer.Walmart = append(resp.MatchedByRetailer.Walmart, term)
			resp.ProductsByRetailer.Walmart = append(resp.ProductsByRetailer.Walmart, decision.Offer.Product)
		default:
			resp.UnmatchedIngredients = append(resp.UnmatchedIngredients, term)
		}

		common.LogDebug("省錢模式勝出判定",
			zap.String("ingredient", term),
			zap.String("winner", string(decision.Winner)),
			zap.String("reason", string(decision.Reason)),
		)
	}
}

// searchAndMatch 單一零售商的抓取加配對；警告統一累積到回應上
func (p *Pipeline) searchAndMatch(ctx context.Context, resp *Response, searcher catalog.Searcher, terms []string, locationID string, pickCap int) []MatchDecision {
	pools, fetchWarnings := p.fetchCandidates(ctx, searcher, terms, locationID)
	resp.Warnings = append(resp.Warnings, fetchWarnings...)

	eligible := eligiblePools(pools)
	if len(eligible) == 0 {
		resp.Warnings = append(resp.Warnings, WarnNoCandidates)
		return nil
	}

	decisions, matchWarnings := p.matchCandidates(ctx, eligible, pickCap)
	resp.Warnings = append(resp.Warnings, matchWarnings...)
	return decisions
}

// cachedResponse 讀最終結果快取
func (p *Pipeline) cachedResponse(ctx context.Context, key string) *Response {
	data, err := p.store.Get(ctx, key)
	if err != nil {
		common.LogCacheMiss("dish", key)
		return nil
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil
	}

	common.LogCacheHit("dish", key)
	return &resp
}

// bestOfferFor 取單一食材在單一零售商的最佳報價；沒配到回 nil
func bestOfferFor(decisions []MatchDecision, term string) *pricing.UnitOffer {
	d, ok := findDecision(decisions, term)
	if !ok || len(d.Products) == 0 {
		return nil
	}

	offers := make([]pricing.UnitOffer, 0, len(d.Products))
	for _, prod := range d.Products {
		offers = append(offers, pricing.ParseOffer(prod))
	}
	return pricing.BestOffer(offers)
}

func findDecision(decisions []MatchDecision, term string) (MatchDecision, bool) {
	for _, d := range decisions {
		if d.Ingredient == term {
			return d, true
		}
	}
	return MatchDecision{}, false
}

func decided(decisions []MatchDecision, term string) bool {
	_, ok := findDecision(decisions, term)
	return ok
}
