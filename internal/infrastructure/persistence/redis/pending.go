package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

const pendingKey = "payment:pending"

// PendingTracker 待对账支付队列
// 有序集合，member为支付ID，score为下次对账时间（毫秒）
type PendingTracker struct {
	client *redis.Client
	key    string
}

// NewPendingTracker 创建对账队列
func NewPendingTracker(client *redis.Client) *PendingTracker {
	return &PendingTracker{client: client, key: pendingKey}
}

// Track 加入队列，已存在时更新到期时间
func (t *PendingTracker) Track(ctx context.Context, paymentID uint, due time.Time) error {
	err := t.client.ZAdd(ctx, t.key, redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: strconv.FormatUint(uint64(paymentID), 10),
	}).Err()
	if err != nil {
		return apperrors.Wrap(err, "加入对账队列失败")
	}
	return nil
}

func (t *PendingTracker) Untrack(ctx context.Context, paymentID uint) error {
	if err := t.client.ZRem(ctx, t.key, strconv.FormatUint(uint64(paymentID), 10)).Err(); err != nil {
		return apperrors.Wrap(err, "移出对账队列失败")
	}
	return nil
}

// Due ZRANGEBYSCORE key -inf now LIMIT 0 limit
func (t *PendingTracker) Due(ctx context.Context, now time.Time, limit int) ([]uint, error) {
	members, err := t.client.ZRangeByScore(ctx, t.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, apperrors.Wrap(err, "读取对账队列失败")
	}

	ids := make([]uint, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			// 脏数据直接移除
			t.client.ZRem(ctx, t.key, m)
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}
