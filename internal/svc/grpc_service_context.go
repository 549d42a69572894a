package svc

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/redis/go-redis/v9"

	"lending-indexer-sol/internal/config"
	"lending-indexer-sol/internal/logic/dispatcher"
	"lending-indexer-sol/internal/logic/instrparser"
	"lending-indexer-sol/internal/logic/progress"
	"lending-indexer-sol/internal/mq"
	"lending-indexer-sol/internal/store"
	"lending-indexer-sol/pkg/logger"
)

// GrpcServiceContext 包含 gRPC 索引服务所需的资源
type GrpcServiceContext struct {
	Config          config.GrpcConfig
	Extractor       *instrparser.Extractor
	Sinks           []dispatcher.Sink
	ProgressManager *progress.ProgressManager // 未启用时为 nil

	producer *kafka.Producer
	store    *store.Store
	rdb      *redis.Client
}

// NewGrpcServiceContext 按配置初始化解析器、输出与进度管理；失败时释放已创建的资源
func NewGrpcServiceContext(c config.GrpcConfig) (_ *GrpcServiceContext, err error) {
	programs, err := c.ParserConf.LendingPubkeys()
	if err != nil {
		return nil, err
	}

	sc := &GrpcServiceContext{
		Config: c,
		Extractor: instrparser.NewExtractor(instrparser.Options{
			LendingPrograms:  programs,
			LegacyParentKeys: c.ParserConf.LegacyParentKeys,
		}),
	}
	defer func() {
		if err != nil {
			sc.Close()
		}
	}()

	// 1. Kafka
	if c.KafkaProducerConf.Enabled {
		sc.producer, err = mq.NewKafkaProducer(c.KafkaProducerConf.ToKafkaOption())
		if err != nil {
			return nil, fmt.Errorf("init kafka producer: %w", err)
		}
		sc.Sinks = append(sc.Sinks, dispatcher.NewKafkaSink(
			sc.producer,
			c.KafkaProducerConf.Topic,
			c.KafkaProducerConf.Partitions,
			time.Duration(c.TimeConf.EventSendTimeoutMs)*time.Millisecond,
		))
	}

	// 2. PostgreSQL（指令落库 + slot 进度表）
	if c.PostgresDSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		sc.store, err = store.NewStore(ctx, c.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		if err = sc.store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		sc.Sinks = append(sc.Sinks, dispatcher.NewStoreSink(sc.store))
	}

	// 3. Redis + DB 进度管理
	if c.ProgressConf.Enabled {
		sc.rdb = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err = sc.rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis %s: %w", c.RedisAddr, err)
		}
		sc.ProgressManager = progress.NewProgressManager(
			progress.NewRedisProgressStore(sc.rdb, time.Duration(c.ProgressConf.RedisTTLHours)*time.Hour),
			progress.NewDBProgressStore(sc.store.Pool()),
			c.ProgressConf.RecentThresholdSec,
		)
	}

	if len(sc.Sinks) == 0 {
		logger.Warnf("未配置任何输出（kafka / postgres），解析结果只记录日志")
	}
	logger.Infof("gRPC 服务上下文初始化完成: programs=%v, sinks=%d, progress=%v",
		c.ParserConf.LendingPrograms, len(sc.Sinks), sc.ProgressManager != nil)
	return sc, nil
}

// Close 关闭服务上下文中的资源
func (sc *GrpcServiceContext) Close() {
	if sc.producer != nil {
		sc.producer.Flush(3000)
		sc.producer.Close()
	}
	if sc.rdb != nil {
		_ = sc.rdb.Close()
	}
	if sc.store != nil {
		sc.store.Close()
	}
}
