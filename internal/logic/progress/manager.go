package progress

import (
	"context"
	"time"

	"lending-indexer-sol/pkg/logger"
)

// slotsPerDay 按每秒约 2.5 个 slot 估算
const slotsPerDay = 24 * 3600 * 5 / 2

// ProgressManager 统一封装 Redis + DB + 缓存，控制进度判重与写入
type ProgressManager struct {
	status          StatusStore
	db              SlotStore
	buffer          *slotBuffer
	recentThreshold time.Duration // 新 block 的判断阈值
	now             func() time.Time
}

func NewProgressManager(status StatusStore, db SlotStore, recentThresholdSec int) *ProgressManager {
	return &ProgressManager{
		status:          status,
		db:              db,
		buffer:          newSlotBuffer(),
		recentThreshold: time.Duration(recentThresholdSec) * time.Second,
		now:             time.Now,
	}
}

// ShouldProcessSlot 判断是否需要处理该 slot：
//   - 近期 block 直接处理
//   - 旧 block（重连后的重放）先查 Redis，再 fallback 到 DB；已处理或已判定无效的跳过
func (pm *ProgressManager) ShouldProcessSlot(ctx context.Context, slot uint64, blockTime int64) (bool, error) {
	if pm.now().Sub(time.Unix(blockTime, 0)) <= pm.recentThreshold {
		return true, nil
	}

	status, err := pm.status.GetSlotStatus(ctx, slot)
	if err != nil {
		return false, err
	}
	if status == SlotProcessed || status == SlotInvalid {
		return false, nil
	}

	status, err = pm.db.GetSlotStatus(ctx, slot)
	if err != nil {
		return false, err
	}
	if status == SlotProcessed || status == SlotInvalid {
		// 回填 Redis，后续命中无需再查 DB
		if err := pm.status.MarkSlotStatus(ctx, slot, status); err != nil {
			logger.Warnf("[progress] backfill redis slot=%d failed: %v", slot, err)
		}
		return false, nil
	}
	return true, nil
}

// MarkSlotStatus 标记某 slot 的处理状态，同时更新 Redis 与待持久化缓冲区。
// SlotUnknown / SlotPending 不参与记录。
func (pm *ProgressManager) MarkSlotStatus(ctx context.Context, slot uint64, source int16, blockTime int64, status SlotStatus) error {
	if status != SlotProcessed && status != SlotInvalid {
		return nil
	}
	if err := pm.status.MarkSlotStatus(ctx, slot, status); err != nil {
		return err
	}
	pm.buffer.Add(&SlotRecord{
		Slot:      slot,
		Source:    source,
		BlockTime: blockTime,
		Status:    status,
	})
	return nil
}

// Flush 将缓冲区写入 DB，失败的记录放回缓冲区等待下次 flush
func (pm *ProgressManager) Flush(ctx context.Context) error {
	records := pm.buffer.Flush()
	if len(records) == 0 {
		return nil
	}
	if err := pm.db.BatchInsertSlots(ctx, records); err != nil {
		pm.buffer.Requeue(records)
		return err
	}
	return nil
}

// StartFlushLoop 定时 flush，ctx 结束时做最后一次 flush 后返回
func (pm *ProgressManager) StartFlushLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := pm.Flush(final); err != nil {
				logger.Errorf("[progress] final flush failed: %v, pending=%d", err, pm.buffer.Len())
			}
			cancel()
			return
		case <-ticker.C:
			if err := pm.Flush(ctx); err != nil {
				logger.Errorf("[progress] flush failed: %v, pending=%d", err, pm.buffer.Len())
			}
		}
	}
}

// StartGCLoop 定时清理 retainDays 天之前的 slot 记录
func (pm *ProgressManager) StartGCLoop(ctx context.Context, interval time.Duration, retainDays int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	keep := uint64(max(retainDays, 1)) * slotsPerDay
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := pm.db.DeleteOldSlots(ctx, keep)
			if err != nil {
				logger.Errorf("[progress] gc failed: %v", err)
				continue
			}
			if n > 0 {
				logger.Infof("[progress] gc deleted %d old slot rows", n)
			}
		}
	}
}
