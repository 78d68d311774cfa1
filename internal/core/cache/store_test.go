package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"budget-cart/internal/infrastructure/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"budget-cart/internal/pkg/common"
)

func TestMain(m *testing.M) {
	common.Logger = zap.NewNop()
	os.Exit(m.Run())
}

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := NewServiceWithClient(&config.CacheConfig{Enabled: true, RedisAddr: mr.Addr()}, client)
	return svc, mr
}

func TestServiceSetGet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "k", []byte("v"), time.Minute))

	data, err := svc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), data)
}

func TestServiceMiss(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestServiceTTL(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "expiring", []byte("v"), time.Minute))
	require.NoError(t, svc.SetForever(ctx, "forever", []byte("v")))

	// TTL 過後只有帶 TTL 的鍵消失
	mr.FastForward(2 * time.Minute)

	_, err := svc.Get(ctx, "expiring")
	assert.ErrorIs(t, err, ErrMiss)

	data, err := svc.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), data)
}

func TestServiceDisabled(t *testing.T) {
	svc := &Service{config: &config.CacheConfig{Enabled: false}}
	ctx := context.Background()

	// 停用時所有操作降級為 no-op，不回傳錯誤
	assert.NoError(t, svc.Set(ctx, "k", []byte("v"), time.Minute))
	_, err := svc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestServiceDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, svc.Delete(ctx, "k"))

	_, err := svc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}
