package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

// 处理中的占位值；完成后的结果是JSON，不会与之冲突
const inFlightMarker = "in_flight"

// 键存在返回其值；不存在则写入占位并返回nil
var beginScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if v then
	return v
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return false
`)

// IdempotencyStore 幂等键存储
//
//	首次请求:   Begin → 写入in_flight → 执行 → Complete写入结果
//	并发重复:   Begin → 读到in_flight → ErrRequestInFlight
//	完成后重放: Begin → 读到结果 → 直接返回
type IdempotencyStore struct {
	client *redis.Client
}

// NewIdempotencyStore 创建幂等键存储
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

// Begin 抢占幂等键
func (s *IdempotencyStore) Begin(ctx context.Context, key string, ttl time.Duration) ([]byte, error) {
	v, err := beginScript.Run(ctx, s.client, []string{key}, inFlightMarker, ttl.Milliseconds()).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "读取幂等键失败")
	}
	if v == inFlightMarker {
		return nil, apperrors.ErrRequestInFlight
	}
	return []byte(v), nil
}

// Complete 保存结果，覆盖占位
func (s *IdempotencyStore) Complete(ctx context.Context, key string, result []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, result, ttl).Err(); err != nil {
		return apperrors.Wrap(err, "保存幂等结果失败")
	}
	return nil
}

// Release 失败时删除占位，允许同一个键重试
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return apperrors.Wrap(err, "释放幂等键失败")
	}
	return nil
}
