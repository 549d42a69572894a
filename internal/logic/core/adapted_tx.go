package core

import (
	"time"

	"lending-indexer-sol/internal/consts"
	"lending-indexer-sol/internal/types"
)

// TxContext 表示交易所属区块的上下文信息。
type TxContext struct {
	BlockTime  int64      // 区块时间戳（Unix 秒）
	Slot       uint64     // 当前 Slot（Solana 高度单位）
	ParentSlot uint64     // 父 Slot（用于分叉检测和回滚）
	BlockHash  types.Hash // 区块哈希（辅助去重与 fork 检测）
}

// Time 返回区块时间（UTC）
func (c *TxContext) Time() time.Time {
	return time.Unix(c.BlockTime, 0).UTC()
}

// AdaptedInstruction 表示一条主指令或 inner 指令。
// 所有指令在预处理阶段已按执行顺序展平，并补充了位置信息（IxIndex、InnerIndex）。
type AdaptedInstruction struct {
	IxIndex    uint16         // 主指令索引（从 0 开始）
	InnerIndex uint16         // Inner 指令在主指令中的序号，主指令本身为 0，CPI 调用从 1 开始
	ProgramID  types.Pubkey   // 指令对应的程序 ID
	Accounts   []types.Pubkey // 指令涉及的账户列表，保持原始顺序
	Data       []byte         // 指令原始数据
}

// IsInner 是否为 inner 指令
func (ix *AdaptedInstruction) IsInner() bool {
	return ix.InnerIndex > 0
}

// Position 换算为记录中的 (instruction_index, parent_index)：
//   - 主指令 i          → (i, -1)
//   - 主指令 i 的第 j 条 inner（j 从 0 起）→ (j, i)
func (ix *AdaptedInstruction) Position() (instructionIndex, parentIndex int16) {
	if ix.IsInner() {
		return int16(ix.InnerIndex - 1), int16(ix.IxIndex)
	}
	return int16(ix.IxIndex), consts.NoIndex
}

// AdaptedTx 表示已解析的链上交易结构，是指令解析流程的输入。
type AdaptedTx struct {
	TxCtx     *TxContext      // 所属区块上下文
	TxIndex   uint32          // 当前交易在区块中的序号
	Signature types.Signature // 交易签名（即交易哈希）
	Signers   []types.Pubkey  // 交易签名者列表

	// Instructions 交易中的所有指令（主指令 + inner 指令），已按 Solana 执行顺序展平。
	Instructions []*AdaptedInstruction
}

// BuildInstructionContext 为交易中的某条指令构造解析上下文
func (tx *AdaptedTx) BuildInstructionContext(ix *AdaptedInstruction) InstructionContext {
	instructionIndex, parentIndex := ix.Position()
	return InstructionContext{
		TransactionHash:  tx.Signature.String(),
		InstructionIndex: instructionIndex,
		ParentIndex:      parentIndex,
		Timestamp:        tx.TxCtx.Time(),
		Program:          ix.ProgramID.String(),
	}
}
