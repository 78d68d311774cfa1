package cart

import (
	"context"
	"sort"
	"time"

	"budget-cart/internal/infrastructure/config"
	"budget-cart/internal/pkg/common"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// tokenExpiryMargin 在到期前提早視為失效，避免項目迴圈跑到一半過期
const tokenExpiryMargin = 60 * time.Second

// Engine 購物車同步引擎。
// 對零售商的寫入循序進行並以速率限制節流，
// 授權失效時不丟棄進度：剩餘項目包進簽章描述符交還呼叫端。
type Engine struct {
	store        *Store
	client       CartClient
	limiter      *rate.Limiter
	resumeSecret string
	resumeTTL    time.Duration
}

// NewEngine 建立同步引擎
func NewEngine(cfg *config.CartConfig, store *Store, client CartClient) *Engine {
	interval := cfg.ItemDelay
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &Engine{
		store:        store,
		client:       client,
		limiter:      rate.NewLimiter(rate.Every(interval), 1),
		resumeSecret: cfg.ResumeSecret,
		resumeTTL:    cfg.ResumeTTL,
	}
}

// Sync 將期望的購物清單同步到使用者的零售商購物車。
// desired 是商品 ID 對數量的期望值；實際加入的是期望值扣掉快照的差額。
// reset 為真時先清空快照，整份清單視為全新加入。
func (e *Engine) Sync(ctx context.Context, userID string, desired map[string]int, reset bool) (*Outcome, error) {
	state := StatePending
	var cred *Credential
	var deltas []ItemDelta

	for {
		switch state {
		case StatePending:
			if reset {
				if err := e.store.ResetSnapshot(ctx, userID); err != nil {
					return nil, err
				}
			}
			d, err := e.computeDeltas(ctx, userID, desired)
			if err != nil {
				return nil, err
			}
			deltas = d
			state = StateTokenCheck

		case StateTokenCheck:
			c, err := e.store.Credential(ctx, userID)
			if err != nil {
				return nil, err
			}
			if c == nil {
				state = StateNeedsAuth
				continue
			}
			cred = c
			if time.Now().Add(tokenExpiryMargin).After(cred.ExpiresAt) {
				state = StateTokenRefresh
			} else {
				state = StateTokenValid
			}

		case StateTokenRefresh:
			refreshed, err := e.refresh(ctx, userID, cred)
			if err != nil {
				state = StateNeedsAuth
				continue
			}
			cred = refreshed
			state = StateTokenValid

		case StateTokenValid:
			state = StateItemLoop

		case StateItemLoop:
			return e.runItems(ctx, userID, cred, deltas)

		case StateNeedsAuth:
			return e.suspend(userID, deltas)
		}
	}
}

// Resume 驗證回復描述符後續跑剩餘項目。
// 描述符裡只有待加項目；憑證必須已經由授權流程重新存入。
func (e *Engine) Resume(ctx context.Context, userID, token string) (*Outcome, error) {
	desc, err := verifyResume(token, e.resumeSecret, e.resumeTTL)
	if err != nil {
		return nil, err
	}
	if desc.UserID != userID {
		return nil, common.ErrInvalidResume
	}

	cred, err := e.store.Credential(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return e.suspend(userID, desc.Deltas)
	}

	common.LogInfo("回復購物車同步",
		zap.String("resume_id", desc.ID),
		zap.Int("pending_count", len(desc.Deltas)),
	)

	return e.runItems(ctx, userID, cred, desc.Deltas)
}

// computeDeltas 期望值扣掉快照的差額；差額非正的商品不動作。
// 輸出依商品 ID 排序，同一份輸入永遠產生同一份順序。
func (e *Engine) computeDeltas(ctx context.Context, userID string, desired map[string]int) ([]ItemDelta, error) {
	snap, err := e.store.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(desired))
	for id := range desired {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	deltas := make([]ItemDelta, 0, len(ids))
	for _, id := range ids {
		diff := desired[id] - snap[id]
		if diff > 0 {
			deltas = append(deltas, ItemDelta{ProductID: id, Quantity: diff})
		}
	}
	return deltas, nil
}

// runItems 循序處理待加項目。
// 每個項目：授權類錯誤 → 刷新一次再重試一次，仍失敗就帶著剩餘項目中止；
// 其他錯誤 → 只跳過該項目；成功 → 立刻更新快照再進下一項，
// 中途中止也不會重加已成功的項目。
func (e *Engine) runItems(ctx context.Context, userID string, cred *Credential, deltas []ItemDelta) (*Outcome, error) {
	outcome := &Outcome{State: StateDone, TotalCount: len(deltas), Items: []ItemOutcome{}}

	snap, err := e.store.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	for i, delta := range deltas {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		err := e.client.AddItem(ctx, cred.AccessToken, delta.ProductID, delta.Quantity)
		if isAuthStatus(err) {
			refreshed, refreshErr := e.refresh(ctx, userID, cred)
			if refreshErr != nil {
				return e.suspendPartial(userID, outcome, deltas[i:])
			}
			cred = refreshed
			err = e.client.AddItem(ctx, cred.AccessToken, delta.ProductID, delta.Quantity)
			if isAuthStatus(err) {
				return e.suspendPartial(userID, outcome, deltas[i:])
			}
		}

		if err != nil {
			common.LogWarn("加入購物車失敗，該項目記為失敗後繼續",
				zap.String("product_id", delta.ProductID),
				zap.Error(err),
			)
			outcome.FailedCount++
			outcome.Items = append(outcome.Items, ItemOutcome{
				ProductID: delta.ProductID,
				Quantity:  delta.Quantity,
				Status:    ItemFailed,
				Detail:    err.Error(),
			})
			continue
		}

		snap[delta.ProductID] += delta.Quantity
		if err := e.store.SaveSnapshot(ctx, userID, snap); err != nil {
			return nil, err
		}

		outcome.AddedCount++
		outcome.Items = append(outcome.Items, ItemOutcome{
			ProductID: delta.ProductID,
			Quantity:  delta.Quantity,
			Status:    ItemAdded,
		})
	}

	common.LogInfo("購物車同步完成",
		zap.Int("added", outcome.AddedCount),
		zap.Int("failed", outcome.FailedCount),
		zap.Int("total", outcome.TotalCount),
	)

	return outcome, nil
}

// refresh 刷新使用者憑證並整份覆寫存檔
func (e *Engine) refresh(ctx context.Context, userID string, cred *Credential) (*Credential, error) {
	refreshed, err := e.client.RefreshToken(ctx, cred.RefreshToken)
	if err != nil {
		common.LogWarn("使用者 token 刷新失敗",
			zap.Error(err),
		)
		return nil, err
	}
	refreshed.LocationID = cred.LocationID

	if err := e.store.SaveCredential(ctx, userID, refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

// suspend 在任何項目動工之前就需要重新授權；全部項目都算未嘗試
func (e *Engine) suspend(userID string, deltas []ItemDelta) (*Outcome, error) {
	outcome := &Outcome{
		State:        StateNeedsAuth,
		SkippedCount: len(deltas),
		TotalCount:   len(deltas),
		Items:        []ItemOutcome{},
	}
	return e.attachResume(userID, outcome, deltas)
}

// suspendPartial 項目迴圈中途失去授權；已完成的進度保留在 outcome 裡，
// 未嘗試的項目計入 SkippedCount 並交給回復描述符
func (e *Engine) suspendPartial(userID string, outcome *Outcome, remaining []ItemDelta) (*Outcome, error) {
	outcome.State = StateNeedsAuth
	outcome.SkippedCount = len(remaining)
	return e.attachResume(userID, outcome, remaining)
}

// attachResume 將剩餘項目簽進回復描述符
func (e *Engine) attachResume(userID string, outcome *Outcome, remaining []ItemDelta) (*Outcome, error) {
	token, err := signResume(resumeDescriptor{
		ID:       uuid.NewString(),
		UserID:   userID,
		Deltas:   remaining,
		IssuedAt: time.Now().Unix(),
	}, e.resumeSecret)
	if err != nil {
		return nil, err
	}

	outcome.Resume = token
	common.LogInfo("同步暫停，等待重新授權",
		zap.Int("pending_count", len(remaining)),
	)
	return outcome, nil
}
