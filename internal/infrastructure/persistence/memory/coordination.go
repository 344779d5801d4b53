package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

// 与persistence/redis中的实现语义一致，单进程使用

// Locker 进程内互斥锁，带过期时间
type Locker struct {
	mu    sync.Mutex
	locks map[string]lockEntry
}

type lockEntry struct {
	token  string
	expiry time.Time
}

// NewLocker 创建进程内锁
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]lockEntry)}
}

// TryLock 抢锁，已被持有返回ok=false
func (l *Locker) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if e, ok := l.locks[key]; ok && now.Before(e.expiry) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.locks[key] = lockEntry{token: token, expiry: now.Add(ttl)}
	return token, true, nil
}

// Unlock 只释放自己持有的锁
func (l *Locker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.locks[key]; ok && e.token == token {
		delete(l.locks, key)
	}
	return nil
}

// IdempotencyStore 幂等键存储
type IdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]idemEntry
}

type idemEntry struct {
	done   bool
	result []byte
	expiry time.Time
}

// NewIdempotencyStore 创建幂等键存储
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{entries: make(map[string]idemEntry)}
}

// Begin 抢占幂等键
// 返回(nil, nil)表示首次请求；已完成返回之前的结果；处理中返回ErrRequestInFlight
func (s *IdempotencyStore) Begin(_ context.Context, key string, ttl time.Duration) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiry) {
		if !e.done {
			return nil, apperrors.ErrRequestInFlight
		}
		return e.result, nil
	}
	s.entries[key] = idemEntry{expiry: now.Add(ttl)}
	return nil, nil
}

// Complete 保存结果
func (s *IdempotencyStore) Complete(_ context.Context, key string, result []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = idemEntry{done: true, result: append([]byte(nil), result...), expiry: time.Now().Add(ttl)}
	return nil
}

// Release 失败时释放，允许同一个键重试
func (s *IdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// PendingTracker 待对账支付队列
type PendingTracker struct {
	mu  sync.Mutex
	due map[uint]time.Time
}

// NewPendingTracker 创建对账队列
func NewPendingTracker() *PendingTracker {
	return &PendingTracker{due: make(map[uint]time.Time)}
}

func (t *PendingTracker) Track(_ context.Context, paymentID uint, due time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.due[paymentID] = due
	return nil
}

func (t *PendingTracker) Untrack(_ context.Context, paymentID uint) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.due, paymentID)
	return nil
}

// Due 按到期时间升序
func (t *PendingTracker) Due(_ context.Context, now time.Time, limit int) ([]uint, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]uint, 0)
	for id, due := range t.due {
		if !due.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		if t.due[ids[i]].Equal(t.due[ids[j]]) {
			return ids[i] < ids[j]
		}
		return t.due[ids[i]].Before(t.due[ids[j]])
	})
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}
