package common

import "lending-indexer-sol/internal/logic/core"

// InstructionHandler 定义了统一的指令解析函数签名。
//
// 参数：
//   - ctx: 当前指令的上下文（交易哈希、指令位置、区块时间、程序地址）
//   - ix:  当前正在处理的指令（主指令或 inner 指令）
//
// 返回值：
//   - 成功解析返回 InstructionSet；无法解析返回 nil（handler 内部负责记录诊断日志）
type InstructionHandler func(ctx core.InstructionContext, ix *core.AdaptedInstruction) *core.InstructionSet
