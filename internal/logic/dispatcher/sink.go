package dispatcher

import (
	"context"
	"fmt"
	"time"

	"lending-indexer-sol/internal/logic/core"
	"lending-indexer-sol/internal/mq"
)

// Sink 区块解析结果的下游输出
type Sink interface {
	Name() string
	Write(ctx context.Context, txCtx *core.TxContext, results []core.ParsedTxResult) error
}

// InstructionWriter 指令集合持久化接口（store.Store 满足该接口）
type InstructionWriter interface {
	SaveInstructionSets(ctx context.Context, sets []*core.InstructionSet) error
}

// KafkaSink 按分区打包并发送到 Kafka，等待全部 ack
type KafkaSink struct {
	producer   mq.Producer
	topic      string
	partitions int
	timeout    time.Duration
}

func NewKafkaSink(producer mq.Producer, topic string, partitions int, perMessageTimeout time.Duration) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic, partitions: partitions, timeout: perMessageTimeout}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(ctx context.Context, txCtx *core.TxContext, results []core.ParsedTxResult) error {
	jobs, err := BuildInstructionKafkaJobs(txCtx, s.topic, s.partitions, results)
	if err != nil {
		return err
	}
	return mq.SendAll(ctx, s.producer, jobs, s.timeout)
}

// StoreSink 写入 Postgres
type StoreSink struct {
	writer InstructionWriter
}

func NewStoreSink(writer InstructionWriter) *StoreSink {
	return &StoreSink{writer: writer}
}

func (s *StoreSink) Name() string { return "postgres" }

func (s *StoreSink) Write(ctx context.Context, _ *core.TxContext, results []core.ParsedTxResult) error {
	sets := FlattenSets(results)
	if err := s.writer.SaveInstructionSets(ctx, sets); err != nil {
		return fmt.Errorf("save %d instruction sets: %w", len(sets), err)
	}
	return nil
}

// FlattenSets 按交易顺序展开所有指令集合
func FlattenSets(results []core.ParsedTxResult) []*core.InstructionSet {
	total := 0
	for _, res := range results {
		total += len(res.Sets)
	}
	sets := make([]*core.InstructionSet, 0, total)
	for _, res := range results {
		sets = append(sets, res.Sets...)
	}
	return sets
}
