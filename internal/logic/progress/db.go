package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	insertBatchLimit = 1000
	deleteBatchLimit = 1000
)

// DBProgressStore 管理 slot 的 DB 存储。
// 写入用于持久记录进度，服务恢复后可用；不做高频判重，只作为 Redis 的 fallback。
type DBProgressStore struct {
	pool *pgxpool.Pool
}

func NewDBProgressStore(pool *pgxpool.Pool) *DBProgressStore {
	return &DBProgressStore{pool: pool}
}

// GetSlotStatus 查询 slot 的持久化状态
func (d *DBProgressStore) GetSlotStatus(ctx context.Context, slot uint64) (SlotStatus, error) {
	var status int16
	err := d.pool.QueryRow(ctx, `SELECT status FROM progress_slot WHERE slot = $1`, int64(slot)).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return SlotUnknown, nil
	}
	if err != nil {
		return SlotUnknown, fmt.Errorf("query slot %d: %w", slot, err)
	}
	return SlotStatus(status), nil
}

// BatchInsertSlots 按 insertBatchLimit 分批写入，slot 冲突时更新状态
func (d *DBProgressStore) BatchInsertSlots(ctx context.Context, slots []*SlotRecord) error {
	for start := 0; start < len(slots); start += insertBatchLimit {
		end := min(start+insertBatchLimit, len(slots))
		query, args := buildInsertSlots(slots[start:end])
		if _, err := d.pool.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert %d slots: %w", end-start, err)
		}
	}
	return nil
}

func buildInsertSlots(slots []*SlotRecord) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO progress_slot (slot, source, block_time, status, updated_at) VALUES `)
	args := make([]any, 0, len(slots)*4)
	for i, s := range slots {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,CURRENT_TIMESTAMP)", i*4+1, i*4+2, i*4+3, i*4+4)
		args = append(args, int64(s.Slot), s.Source, s.BlockTime, int16(s.Status))
	}
	sb.WriteString(` ON CONFLICT (slot) DO UPDATE SET status = EXCLUDED.status, updated_at = CURRENT_TIMESTAMP`)
	return sb.String(), args
}

// DeleteOldSlots 删除最新 slot 往前 keep 个之外的记录，分批执行避免长事务
func (d *DBProgressStore) DeleteOldSlots(ctx context.Context, keep uint64) (int64, error) {
	var latest *int64
	if err := d.pool.QueryRow(ctx, `SELECT MAX(slot) FROM progress_slot`).Scan(&latest); err != nil {
		return 0, fmt.Errorf("fetch latest slot: %w", err)
	}
	if latest == nil || uint64(*latest) <= keep {
		return 0, nil
	}
	safeSlot := *latest - int64(keep)

	var total int64
	for {
		tag, err := d.pool.Exec(ctx, `
			DELETE FROM progress_slot
			WHERE slot IN (SELECT slot FROM progress_slot WHERE slot < $1 ORDER BY slot LIMIT $2)`,
			safeSlot, deleteBatchLimit,
		)
		if err != nil {
			return total, fmt.Errorf("delete old slots: %w", err)
		}
		n := tag.RowsAffected()
		if n == 0 {
			return total, nil
		}
		total += n
	}
}
