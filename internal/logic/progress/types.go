package progress

import (
	"context"
)

// SlotStatus 表示 slot 的处理状态（统一 Redis 与 DB 编码）
type SlotStatus int

const (
	SlotUnknown   SlotStatus = 0 // 无记录
	SlotProcessed SlotStatus = 1 // 已处理成功
	SlotInvalid   SlotStatus = 2 // 明确结构错误、跳过
	SlotPending   SlotStatus = 3 // 处理中（仅 Redis 用）
)

// Source 表示区块来源模块（grpc、rpc）
const (
	SourceUnknown int16 = 0
	SourceGrpc    int16 = 1
	SourceRpc     int16 = 2
)

func SourceName(src int16) string {
	switch src {
	case SourceGrpc:
		return "grpc"
	case SourceRpc:
		return "rpc"
	default:
		return "unknown"
	}
}

// SlotRecord 表示一条待写入 DB 的 slot 记录
type SlotRecord struct {
	Slot      uint64     // Solana slot
	Source    int16      // 来源：1=grpc, 2=rpc
	BlockTime int64      // Unix timestamp（秒）
	Status    SlotStatus // 处理状态：1=已处理，2=无效
}

// StatusStore 高频判重存储（Redis）
type StatusStore interface {
	GetSlotStatus(ctx context.Context, slot uint64) (SlotStatus, error)
	MarkSlotStatus(ctx context.Context, slot uint64, status SlotStatus) error
}

// SlotStore 持久化进度存储（Postgres）
type SlotStore interface {
	GetSlotStatus(ctx context.Context, slot uint64) (SlotStatus, error)
	BatchInsertSlots(ctx context.Context, slots []*SlotRecord) error
	DeleteOldSlots(ctx context.Context, keep uint64) (int64, error)
}
