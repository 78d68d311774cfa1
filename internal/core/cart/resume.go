package cart

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"budget-cart/internal/pkg/common"
)

// resumeDescriptor 授權中斷時的回復描述符。
// 內容只含待加項目與時間戳，不含任何 token；
// HMAC 簽章保證使用者拿回來的描述符未被竄改。
type resumeDescriptor struct {
	ID       string      `json:"id"`
	UserID   string      `json:"user_id"`
	Deltas   []ItemDelta `json:"deltas"`
	IssuedAt int64       `json:"issued_at"`
}

// signResume 將描述符編碼為 base64url(payload).base64url(簽章)
func signResume(desc resumeDescriptor, secret string) (string, error) {
	payload, err := json.Marshal(desc)
	if err != nil {
		return "", fmt.Errorf("failed to encode resume descriptor: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(encoded))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	return encoded + "." + sig, nil
}

// verifyResume 驗證簽章與時效後解出描述符
func verifyResume(token, secret string, ttl time.Duration) (*resumeDescriptor, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return nil, common.ErrInvalidResume
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(parts[0]))
	expected := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(parts[1])) {
		return nil, common.ErrInvalidResume
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, common.ErrInvalidResume
	}

	var desc resumeDescriptor
	if err := json.Unmarshal(payload, &desc); err != nil {
		return nil, common.ErrInvalidResume
	}

	if time.Since(time.Unix(desc.IssuedAt, 0)) > ttl {
		return nil, common.ErrInvalidResume
	}

	return &desc, nil
}
