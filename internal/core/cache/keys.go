package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// 三種鍵族各自有獨立的生命週期：
// oracle 與 match 各 30 天，dish 不過期、靠版本標籤整批失效。
const (
	oracleKeyPrefix = "oracle:q"
	matchKeyPrefix  = "match:fp"
	dishKeyPrefix   = "dish"

	credentialKeyPrefix = "cart:cred"
	snapshotKeyPrefix   = "cart:snap"
	locationKeyPrefix   = "loc:zip"
)

// hashParts 對多段輸入做長度前綴後再雜湊，避免串接碰撞
func hashParts(parts ...string) string {
	h := sha256.New()
	var lenBuf [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(p)))
		h.Write(lenBuf[:])
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeQuery 將查詢正規化為快取鍵的基底
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// OracleKey 產生分類結果的快取鍵（以正規化查詢為基底）
func OracleKey(query string) string {
	return fmt.Sprintf("%s:%s", oracleKeyPrefix, hashParts(NormalizeQuery(query)))
}

// MatchFingerprint 產生候選配對的內容指紋：
// 食材清單 + 列舉後的候選標題 + 要求的選取數量
func MatchFingerprint(ingredients []string, titles []string, pickCap int) string {
	parts := make([]string, 0, len(ingredients)+len(titles)+1)
	parts = append(parts, ingredients...)
	parts = append(parts, titles...)
	parts = append(parts, fmt.Sprintf("n=%d", pickCap))
	return fmt.Sprintf("%s:%s", matchKeyPrefix, hashParts(parts...))
}

// DishKey 產生整條管線結果的快取鍵，帶版本標籤以便部署時整批失效
func DishKey(version, query, locationID string, pickCap int, budgetMode bool) string {
	return fmt.Sprintf("%s:%s:%s", dishKeyPrefix, version,
		hashParts(NormalizeQuery(query), locationID, fmt.Sprintf("n=%d", pickCap), fmt.Sprintf("budget=%t", budgetMode)))
}

// CredentialKey 使用者 OAuth 憑證的快取鍵
func CredentialKey(userID string) string {
	return fmt.Sprintf("%s:%s", credentialKeyPrefix, userID)
}

// SnapshotKey 使用者購物車快照的快取鍵
func SnapshotKey(userID string) string {
	return fmt.Sprintf("%s:%s", snapshotKeyPrefix, userID)
}

// LocationKey 郵遞區號對應門市的快取鍵
func LocationKey(zip string) string {
	return fmt.Sprintf("%s:%s", locationKeyPrefix, zip)
}
