package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"lending-indexer-sol/internal/utils"
	"lending-indexer-sol/pkg/logger"
)

const (
	defaultBatchSize = 32 * 1024
	defaultLingerMs  = 5
	metadataTimeout  = 10 * time.Second
)

// TopicOption 需要确保存在的 topic
type TopicOption struct {
	Topic      string
	Partitions int
}

type KafkaProducerOption struct {
	Brokers   string // Kafka broker 地址，多个用英文逗号分隔（如 "localhost:9092,localhost:9093"）
	BatchSize int    // 批处理大小（单位字节），如 32768 = 32KB
	LingerMs  int    // 批处理最大延迟（毫秒），建议 5~20ms 之间
	Topics    []TopicOption
}

// producerConfig 生成生产者配置：幂等 + acks=all
func producerConfig(opt KafkaProducerOption) *kafka.ConfigMap {
	batchSize := opt.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	lingerMs := opt.LingerMs
	if lingerMs < 0 {
		lingerMs = defaultLingerMs
	}

	localIP, _ := utils.GetLocalIP()
	if localIP == "" {
		localIP = "unknown"
	}

	return &kafka.ConfigMap{
		"bootstrap.servers": opt.Brokers,
		"client.id":         fmt.Sprintf("lending-indexer-%s", localIP),

		// 可靠性保障
		"acks":                                  "all",
		"enable.idempotence":                    true,
		"max.in.flight.requests.per.connection": 5, // 幂等场景下最大值为 5

		// 超时与重试
		"delivery.timeout.ms": 30000,
		"request.timeout.ms":  30000,
		"retries":             5,
		"retry.backoff.ms":    100,

		"batch.size":       batchSize,
		"linger.ms":        lingerMs,
		"compression.type": "none",

		"message.max.bytes": 2 * 1024 * 1024, // 2MB
	}
}

// ensureTopics 创建缺失的 topic；多 broker 时副本数为 2
func ensureTopics(opt KafkaProducerOption) error {
	adminClient, err := kafka.NewAdminClient(&kafka.ConfigMap{"bootstrap.servers": opt.Brokers})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer adminClient.Close()

	meta, err := adminClient.GetMetadata(nil, true, int(metadataTimeout.Milliseconds()))
	if err != nil {
		return fmt.Errorf("failed to get metadata: %w", err)
	}

	replicationFactor := 1
	if len(meta.Brokers) > 1 {
		replicationFactor = 2
	}
	logger.Infof("[mq] Kafka broker count = %d, using replication factor = %d", len(meta.Brokers), replicationFactor)

	var topicsToCreate []kafka.TopicSpecification
	for _, topic := range opt.Topics {
		if _, exists := meta.Topics[topic.Topic]; exists {
			continue
		}
		topicsToCreate = append(topicsToCreate, kafka.TopicSpecification{
			Topic:             topic.Topic,
			NumPartitions:     max(topic.Partitions, 1),
			ReplicationFactor: replicationFactor,
		})
	}
	if len(topicsToCreate) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), metadataTimeout)
	defer cancel()

	results, err := adminClient.CreateTopics(ctx, topicsToCreate)
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}
	for _, result := range results {
		if code := result.Error.Code(); code != kafka.ErrNoError && code != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %w", result.Topic, result.Error)
		}
		logger.Infof("[mq] topic %s created", result.Topic)
	}
	return nil
}

// NewKafkaProducer 确保 topic 存在后创建 Kafka 生产者
func NewKafkaProducer(opt KafkaProducerOption) (*kafka.Producer, error) {
	if err := ensureTopics(opt); err != nil {
		return nil, err
	}

	producer, err := kafka.NewProducer(producerConfig(opt))
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return producer, nil
}
