package pricing

import (
	"budget-cart/internal/core/catalog"
)

// WinnerReason 勝出原因
type WinnerReason string

const (
	ReasonOnlyKroger    WinnerReason = "only_kroger"
	ReasonOnlyWalmart   WinnerReason = "only_walmart"
	ReasonNone          WinnerReason = "none"
	ReasonUnitPrice     WinnerReason = "unit_price"
	ReasonPriceFallback WinnerReason = "price_fallback"
)

// WinnerDecision 單一食材的勝出判定
// 相同輸入必得相同結果：沒有隨機性，平手固定偏向先檢查的零售商
type WinnerDecision struct {
	Ingredient string
	Winner     catalog.Retailer // 空字串表示無勝出者
	Reason     WinnerReason
	Offer      *UnitOffer
}

// BestOffer 在同一零售商的候選中挑出最佳報價。
// 線性掃描、保留目前最佳：兩者同單位種類且都有單位價時比單位價，
// 否則比絕對價格；平手保留先出現者。
func BestOffer(offers []UnitOffer) *UnitOffer {
	var best *UnitOffer
	for i := range offers {
		cand := &offers[i]
		if best == nil {
			best = cand
			continue
		}

		if best.Kind == cand.Kind && best.HasUnitPrice() && cand.HasUnitPrice() {
			if cand.UnitPrice.LessThan(best.UnitPrice) {
				best = cand
			}
			continue
		}

		if cand.Price.LessThan(best.Price) {
			best = cand
		}
	}
	return best
}

// PickWinner 跨零售商挑出勝出者，判定順序固定：
// 只有一方有報價 → 該方直接勝出；雙方都沒有 → 無勝出者；
// 雙方單位種類相同且都有單位價 → 單位價低者勝；
// 其餘情況一律退回絕對價格比較（單位種類不一致不視為錯誤）。
func PickWinner(ingredient string, kroger, walmart *UnitOffer) WinnerDecision {
	decision := WinnerDecision{Ingredient: ingredient}

	switch {
	case kroger == nil && walmart == nil:
		decision.Reason = ReasonNone
		return decision
	case walmart == nil:
		decision.Winner = catalog.RetailerKroger
		decision.Reason = ReasonOnlyKroger
		decision.Offer = kroger
		return decision
	case kroger == nil:
		decision.Winner = catalog.RetailerWalmart
		decision.Reason = ReasonOnlyWalmart
		decision.Offer = walmart
		return decision
	}

	if kroger.Kind == walmart.Kind && kroger.HasUnitPrice() && walmart.HasUnitPrice() {
		decision.Reason = ReasonUnitPrice
		if walmart.UnitPrice.LessThan(kroger.UnitPrice) {
			decision.Winner = catalog.RetailerWalmart
			decision.Offer = walmart
		} else {
			decision.Winner = catalog.RetailerKroger
			decision.Offer = kroger
		}
		return decision
	}

	decision.Reason = ReasonPriceFallback
	if walmart.Price.LessThan(kroger.Price) {
		decision.Winner = catalog.RetailerWalmart
		decision.Offer = walmart
	} else {
		decision.Winner = catalog.RetailerKroger
		decision.Offer = kroger
	}
	return decision
}
