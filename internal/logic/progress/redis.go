package progress

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	slotKeyPrefix  = "progress:lending:slot"
	defaultSlotTTL = 7 * 24 * time.Hour
)

// RedisProgressStore 管理 Redis 中的 slot 状态记录（幂等控制）
type RedisProgressStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRedisProgressStore 创建 Redis 判重管理器，ttl <= 0 时使用默认 7 天
func NewRedisProgressStore(rdb redis.Cmdable, ttl time.Duration) *RedisProgressStore {
	if ttl <= 0 {
		ttl = defaultSlotTTL
	}
	return &RedisProgressStore{rdb: rdb, ttl: ttl}
}

func slotKey(slot uint64) string {
	return slotKeyPrefix + ":" + strconv.FormatUint(slot, 10)
}

// GetSlotStatus 获取 slot 的状态，未知取值按 SlotUnknown 处理
func (r *RedisProgressStore) GetSlotStatus(ctx context.Context, slot uint64) (SlotStatus, error) {
	val, err := r.rdb.Get(ctx, slotKey(slot)).Int()
	if errors.Is(err, redis.Nil) {
		return SlotUnknown, nil
	}
	if err != nil {
		return SlotUnknown, fmt.Errorf("redis get slot %d: %w", slot, err)
	}
	switch status := SlotStatus(val); status {
	case SlotProcessed, SlotInvalid, SlotPending:
		return status, nil
	default:
		return SlotUnknown, nil
	}
}

// MarkSlotStatus 设置 slot 的状态
func (r *RedisProgressStore) MarkSlotStatus(ctx context.Context, slot uint64, status SlotStatus) error {
	if err := r.rdb.Set(ctx, slotKey(slot), int(status), r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set slot %d: %w", slot, err)
	}
	return nil
}
