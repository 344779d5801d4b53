package redis

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

// 需要Redis，未设置PHARMATECH_TEST_REDIS_ADDR时跳过
func testClient(t *testing.T) *redis.Client {
	addr := os.Getenv("PHARMATECH_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("未设置PHARMATECH_TEST_REDIS_ADDR，跳过Redis测试")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { client.Close() })
	return client
}

func testKey(prefix string) string {
	return "pharmatech:test:" + prefix + ":" + uuid.NewString()
}

func TestLocker(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	l := NewLocker(client)
	key := testKey("lock")
	defer client.Del(ctx, key)

	token, ok, err := l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "已被持有")

	require.NoError(t, l.Unlock(ctx, key, "someone-else"))
	assert.Equal(t, int64(1), client.Exists(ctx, key).Val(), "他人的token不能释放")

	require.NoError(t, l.Unlock(ctx, key, token))
	_, ok, err = l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocker_Concurrent(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	l := NewLocker(client)
	key := testKey("lock")
	defer client.Del(ctx, key)

	var (
		wg      sync.WaitGroup
		winners int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, err := l.TryLock(ctx, key, time.Minute); err == nil && ok {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners)
}

func TestIdempotencyStore(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	s := NewIdempotencyStore(client)
	key := testKey("idem")
	defer client.Del(ctx, key)

	cached, err := s.Begin(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, cached, "首次请求")

	_, err = s.Begin(ctx, key, time.Minute)
	assert.ErrorIs(t, err, apperrors.ErrRequestInFlight)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	require.NoError(t, s.Complete(ctx, key, []byte(`{"order_code":"ORDER-1"}`), time.Minute))
	cached, err = s.Begin(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.JSONEq(t, `{"order_code":"ORDER-1"}`, string(cached))

	other := testKey("idem")
	defer client.Del(ctx, other)
	_, err = s.Begin(ctx, other, time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, other))
	cached, err = s.Begin(ctx, other, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, cached, "释放后可以重试")
}

func TestPendingTracker(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	tracker := &PendingTracker{client: client, key: testKey("pending")}
	defer client.Del(ctx, tracker.key)

	now := time.Now()
	require.NoError(t, tracker.Track(ctx, 3, now.Add(-time.Minute)))
	require.NoError(t, tracker.Track(ctx, 1, now.Add(-2*time.Minute)))
	require.NoError(t, tracker.Track(ctx, 2, now.Add(time.Hour)))

	ids, err := tracker.Due(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 3}, ids, "按到期时间升序，未到期的不返回")

	ids, err = tracker.Due(ctx, now, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, ids)

	require.NoError(t, tracker.Untrack(ctx, 1))
	require.NoError(t, tracker.Track(ctx, 3, now.Add(time.Hour)))
	ids, err = tracker.Due(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
