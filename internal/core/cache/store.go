package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budget-cart/internal/infrastructure/config"
	"budget-cart/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrMiss 表示快取未命中
var ErrMiss = errors.New("cache miss")

// Store 鍵值快取介面，值一律為序列化後的位元組
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetForever(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Service 快取服務
type Service struct {
	client *redis.Client
	config *config.CacheConfig
}

// NewService 創建快取服務
func NewService(cfg *config.CacheConfig) (*Service, error) {
	if !cfg.Enabled {
		return &Service{config: cfg}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})

	// 測試連接
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Service{
		client: client,
		config: cfg,
	}, nil
}

// NewServiceWithClient 以既有 redis client 建立快取服務（測試用）
func NewServiceWithClient(cfg *config.CacheConfig, client *redis.Client) *Service {
	return &Service{client: client, config: cfg}
}

// Get 獲取快取
// 快取不可用時回傳 ErrMiss，管線照常執行；快取永遠只是最佳化，不是正確性的依賴
func (s *Service) Get(ctx context.Context, key string) ([]byte, error) {
	if !s.config.Enabled || s.client == nil {
		return nil, ErrMiss
	}

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrMiss
		}
		common.LogWarn("快取讀取失敗，視為未命中",
			zap.Error(err),
			zap.String("鍵", key),
		)
		return nil, ErrMiss
	}

	return data, nil
}

// Set 設置快取（附帶 TTL）
func (s *Service) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !s.config.Enabled || s.client == nil {
		return nil
	}

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		common.LogWarn("快取寫入失敗",
			zap.Error(err),
			zap.String("鍵", key),
		)
		return fmt.Errorf("failed to set cache: %w", err)
	}

	return nil
}

// SetForever 設置永久快取（無 TTL）
func (s *Service) SetForever(ctx context.Context, key string, value []byte) error {
	return s.Set(ctx, key, value, 0)
}

// Delete 刪除快取
func (s *Service) Delete(ctx context.Context, key string) error {
	if !s.config.Enabled || s.client == nil {
		return nil
	}
	return s.client.Del(ctx, key).Err()
}

// Close 關閉快取服務
func (s *Service) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
