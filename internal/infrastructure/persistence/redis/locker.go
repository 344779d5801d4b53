package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

// 只删除自己持有的锁，比较和删除必须原子
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker 分布式锁
// SET key token NX PX ttl，token用于释放时校验持有者
type Locker struct {
	client *redis.Client
}

// NewLocker 创建分布式锁
func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client}
}

// TryLock 抢锁，已被持有返回ok=false，不阻塞等待
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, apperrors.Wrap(err, "获取锁失败")
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Unlock 释放锁；锁已过期或被他人持有时什么都不做
func (l *Locker) Unlock(ctx context.Context, key, token string) error {
	if err := unlockScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		return apperrors.Wrap(err, "释放锁失败")
	}
	return nil
}
