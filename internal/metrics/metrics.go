package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lending_indexer"

var (
	// InstructionSets 成功解析的指令数，按程序与指令名区分
	InstructionSets = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "instruction_sets_total",
		Help:      "Decoded instruction sets by program and function name.",
	}, []string{"program", "function"})

	// DecodeFailures 已注册程序中无法解码的指令数
	DecodeFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decode_failures_total",
		Help:      "Instructions of registered programs that failed to decode.",
	}, []string{"program"})

	// BlockProcessSeconds 单个区块从接收到分发完成的耗时
	BlockProcessSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "block_process_seconds",
		Help:      "Time spent processing one block.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	})

	// BlockLatencySeconds 收到区块时距 blockTime 的延迟
	BlockLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "block_latency_seconds",
		Help:      "Delay between block time and block arrival.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	// SinkFailures 下游写入失败次数，按 sink 区分
	SinkFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sink_failures_total",
		Help:      "Failed writes by sink.",
	}, []string{"sink"})

	// MissingSlots 链上有出块但未从 gRPC 收到的 slot 数
	MissingSlots = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "missing_slots_total",
		Help:      "Slots that produced a block on chain but never arrived from the stream.",
	})

	// SkippedSlots 因已处理被跳过的重放区块数
	SkippedSlots = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "skipped_slots_total",
		Help:      "Replayed blocks skipped because the slot was already processed.",
	})
)

func init() {
	prometheus.MustRegister(
		InstructionSets,
		DecodeFailures,
		BlockProcessSeconds,
		BlockLatencySeconds,
		SinkFailures,
		MissingSlots,
		SkippedSlots,
	)
}
