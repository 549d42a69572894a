package dispatcher

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"lending-indexer-sol/internal/logic/core"
	"lending-indexer-sol/internal/mq"
	"lending-indexer-sol/internal/utils"
)

// BuildInstructionKafkaJobs 按交易签名将指令分配到分区，每个非空分区生成一个 KafkaJob。
// 同一交易的指令总在同一分区内，且保持交易顺序与指令顺序。
func BuildInstructionKafkaJobs(
	txCtx *core.TxContext,
	topic string,
	partitions int,
	results []core.ParsedTxResult,
) ([]*mq.KafkaJob, error) {
	if partitions <= 0 {
		partitions = 1
	}

	total := 0
	for _, res := range results {
		total += len(res.Sets)
	}
	if total == 0 {
		return nil, nil
	}

	buckets := make([][]*structpb.Value, partitions)
	capacity := calcCapPerPartition(total, partitions, 8)
	for _, res := range results {
		if len(res.Sets) == 0 {
			continue
		}
		pid := utils.PartitionHashBytes(res.Signature[:], uint32(partitions))
		if buckets[pid] == nil {
			buckets[pid] = make([]*structpb.Value, 0, capacity)
		}
		for _, set := range res.Sets {
			buckets[pid] = append(buckets[pid], instructionValue(set))
		}
	}

	jobs := make([]*mq.KafkaJob, 0, partitions)
	for pid, list := range buckets {
		if len(list) == 0 {
			continue
		}
		value, err := utils.EncodeMessage(MessageKindInstructions, buildPayload(txCtx, list))
		if err != nil {
			return nil, fmt.Errorf("encode partition %d: %w", pid, err)
		}
		jobs = append(jobs, &mq.KafkaJob{
			Topic:     topic,
			Partition: int32(pid),
			Value:     value,
		})
	}
	return jobs, nil
}
