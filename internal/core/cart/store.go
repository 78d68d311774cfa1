package cart

import (
	"context"
	"encoding/json"
	"fmt"

	"budget-cart/internal/core/cache"
)

// Store 憑證與快照的持久層，建立在共用快取之上。
// 兩者都不設 TTL：憑證由零售商端的到期時間管理，
// 快照要活得比任何單一憑證久。
type Store struct {
	cache cache.Store
}

// NewStore 建立購物車持久層
func NewStore(c cache.Store) *Store {
	return &Store{cache: c}
}

// Credential 讀取使用者憑證；不存在回傳 (nil, nil)
func (s *Store) Credential(ctx context.Context, userID string) (*Credential, error) {
	data, err := s.cache.Get(ctx, cache.CredentialKey(userID))
	if err != nil {
		return nil, nil
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("failed to decode credential: %w", err)
	}
	return &cred, nil
}

// SaveCredential 整份覆寫使用者憑證
func (s *Store) SaveCredential(ctx context.Context, userID string, cred *Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}
	return s.cache.SetForever(ctx, cache.CredentialKey(userID), data)
}

// DeleteCredential 刪除使用者憑證
func (s *Store) DeleteCredential(ctx context.Context, userID string) error {
	return s.cache.Delete(ctx, cache.CredentialKey(userID))
}

// Snapshot 讀取使用者的購物車快照；不存在回傳空快照
func (s *Store) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	data, err := s.cache.Get(ctx, cache.SnapshotKey(userID))
	if err != nil {
		return Snapshot{}, nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap == nil {
		snap = Snapshot{}
	}
	return snap, nil
}

// SaveSnapshot 整份覆寫使用者的購物車快照
func (s *Store) SaveSnapshot(ctx context.Context, userID string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return s.cache.SetForever(ctx, cache.SnapshotKey(userID), data)
}

// ResetSnapshot 清空使用者的購物車快照
func (s *Store) ResetSnapshot(ctx context.Context, userID string) error {
	return s.cache.Delete(ctx, cache.SnapshotKey(userID))
}
