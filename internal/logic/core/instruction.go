package core

import (
	"time"

	"lending-indexer-sol/internal/types"
)

// InstructionContext 描述一条指令所在的位置与所属交易，由调用方构造，解析过程中只读。
type InstructionContext struct {
	TransactionHash  string    // 交易哈希（首个签名的 base58）
	InstructionIndex int16     // 指令序号；inner 指令为其在父指令中的序号
	ParentIndex      int16     // 父指令序号，主指令为 -1
	Timestamp        time.Time // 区块时间
	Program          string    // 指令所属程序地址（base58）
}

// InstructionFunction 表示“发生了什么”：每条成功解码的指令恰好对应一条。
type InstructionFunction struct {
	TransactionHash  string
	InstructionIndex int16
	ParentIndex      int16
	Program          string
	FunctionName     string // kebab-case 指令名，如 deposit-reserve-liquidity
	Timestamp        time.Time
}

// InstructionProperty 表示指令的一个展平字段。
// ParentKey 为字段所在嵌套结构的路径（"/" 分隔），顶层字段为空字符串。
type InstructionProperty struct {
	TransactionHash  string
	InstructionIndex int16
	ParentIndex      int16
	Key              string
	Value            string
	ParentKey        string
	Timestamp        time.Time
}

// InstructionSet 一条指令的完整输出：一条 Function + 按字段声明顺序排列的 Properties。
type InstructionSet struct {
	Function   InstructionFunction
	Properties []InstructionProperty
}

// NewFunction 用上下文填充 InstructionFunction 的公共字段
func (c InstructionContext) NewFunction(name string) InstructionFunction {
	return InstructionFunction{
		TransactionHash:  c.TransactionHash,
		InstructionIndex: c.InstructionIndex,
		ParentIndex:      c.ParentIndex,
		Program:          c.Program,
		FunctionName:     name,
		Timestamp:        c.Timestamp,
	}
}

// NewProperty 用上下文填充 InstructionProperty 的公共字段
func (c InstructionContext) NewProperty(key, value, parentKey string) InstructionProperty {
	return InstructionProperty{
		TransactionHash:  c.TransactionHash,
		InstructionIndex: c.InstructionIndex,
		ParentIndex:      c.ParentIndex,
		Key:              key,
		Value:            value,
		ParentKey:        parentKey,
		Timestamp:        c.Timestamp,
	}
}

// ParsedTxResult 单笔交易的解析结果
type ParsedTxResult struct {
	TxIndex   uint32
	Signature types.Signature
	Sets      []*InstructionSet
}
