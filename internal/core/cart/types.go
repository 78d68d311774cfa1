package cart

import (
	"time"
)

// SyncState 同步引擎狀態（封閉集合，依序推進）
type SyncState string

const (
	StatePending      SyncState = "pending"
	StateTokenCheck   SyncState = "token_check"
	StateTokenValid   SyncState = "token_valid"
	StateTokenRefresh SyncState = "token_refresh"
	StateNeedsAuth    SyncState = "needs_auth"
	StateItemLoop     SyncState = "item_loop"
	StateDone         SyncState = "done"
)

// Credential 使用者的零售商 OAuth 憑證
// 永遠整份讀寫，不做欄位級更新
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	LocationID   string    `json:"location_id,omitempty"`
}

// Snapshot 本服務對使用者購物車的認知：商品 ID 對數量。
// 只反映本服務加入的項目，使用者在零售商端自行加的不在其中。
type Snapshot map[string]int

// ItemDelta 單一商品的待加數量
type ItemDelta struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// ItemStatus 單一項目的處理結果
type ItemStatus string

const (
	ItemAdded  ItemStatus = "added"
	ItemFailed ItemStatus = "failed"
)

// ItemOutcome 單一項目的結果紀錄
type ItemOutcome struct {
	ProductID string     `json:"product_id"`
	Quantity  int        `json:"quantity"`
	Status    ItemStatus `json:"status"`
	Detail    string     `json:"detail,omitempty"`
}

// Outcome 一次同步執行的總結。
// FailedCount 是嘗試過但零售商拒絕的項目（逐項列在 Items）；
// SkippedCount 只算完全沒嘗試的項目，即授權中斷時留給回復描述符的那些。
// State 是 done 或 needs_auth 其中之一；needs_auth 時 Resume 帶有
// 簽章過的回復描述符，授權完成後可原樣送回以續跑剩餘項目。
type Outcome struct {
	State        SyncState     `json:"state"`
	AddedCount   int           `json:"added_count"`
	FailedCount  int           `json:"failed_count"`
	SkippedCount int           `json:"skipped_count"`
	TotalCount   int           `json:"total_count"`
	Items        []ItemOutcome `json:"items"`
	Resume       string        `json:"resume,omitempty"`
}
