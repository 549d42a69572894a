package dispatcher

import (
	"google.golang.org/protobuf/types/known/structpb"

	"lending-indexer-sol/internal/consts"
	"lending-indexer-sol/internal/logic/core"
)

const payloadVersion = 1

// MessageKindInstructions Kafka 消息类型前缀：一个分区内的指令集合
const MessageKindInstructions uint32 = 1

func str(v string) *structpb.Value { return structpb.NewStringValue(v) }

func num[T int16 | int32 | int64 | uint32 | uint64](v T) *structpb.Value {
	return structpb.NewNumberValue(float64(v))
}

func propertyValue(p core.InstructionProperty) *structpb.Value {
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"key":        str(p.Key),
		"value":      str(p.Value),
		"parent_key": str(p.ParentKey),
	}})
}

// instructionValue 一条指令：function 字段平铺，properties 保持原顺序
func instructionValue(set *core.InstructionSet) *structpb.Value {
	fn := set.Function
	props := make([]*structpb.Value, 0, len(set.Properties))
	for _, p := range set.Properties {
		props = append(props, propertyValue(p))
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"transaction_hash":  str(fn.TransactionHash),
		"instruction_index": num(fn.InstructionIndex),
		"parent_index":      num(fn.ParentIndex),
		"program":           str(fn.Program),
		"function_name":     str(fn.FunctionName),
		"timestamp":         num(fn.Timestamp.Unix()),
		"properties":        structpb.NewListValue(&structpb.ListValue{Values: props}),
	}})
}

func buildPayload(txCtx *core.TxContext, instructions []*structpb.Value) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"version":      num(uint32(payloadVersion)),
		"chain_id":     num(consts.ChainIDSolana),
		"slot":         num(txCtx.Slot),
		"block_time":   num(txCtx.BlockTime),
		"block_hash":   str(txCtx.BlockHash.String()),
		"instructions": structpb.NewListValue(&structpb.ListValue{Values: instructions}),
	}}
}

// calcCapPerPartition 根据总量和分区数估算每个分区的初始容量，保底 minCap
func calcCapPerPartition(total, partitions, minCap int) int {
	if partitions <= 1 {
		return max(total, minCap)
	}
	return max(total*3/partitions, minCap)
}
