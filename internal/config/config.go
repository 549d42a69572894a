package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"lending-indexer-sol/internal/consts"
	"lending-indexer-sol/internal/mq"
	"lending-indexer-sol/internal/types"
	"lending-indexer-sol/pkg/logger"
)

type LogConfig struct {
	Format   string `yaml:"format" validate:"omitempty,oneof=console json"`          // 日志格式，支持 "console" 或 "json"
	LogDir   string `yaml:"log_dir"`                                                  // 日志目录（可为相对路径或绝对路径）
	Level    string `yaml:"level" validate:"omitempty,oneof=debug info warn error"` // 日志级别
	Compress bool   `yaml:"compress"`                                                 // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// KafkaProducerConfig 表示 Kafka 生产者相关配置
type KafkaProducerConfig struct {
	Enabled    bool   `yaml:"enabled"`                                    // 是否输出到 Kafka
	Brokers    string `yaml:"brokers" validate:"required_if=Enabled true"` // Kafka broker 地址，多个用英文逗号分隔
	BatchSize  int    `yaml:"batch_size" validate:"gte=0"`                 // 批处理大小（单位字节）
	LingerMs   int    `yaml:"linger_ms"`                                  // 批处理最大延迟（毫秒）
	Topic      string `yaml:"topic" validate:"required_if=Enabled true"`   // 指令记录 topic
	Partitions int    `yaml:"partitions" validate:"gte=0"`                 // topic 分区数
}

func (c *KafkaProducerConfig) ToKafkaOption() mq.KafkaProducerOption {
	return mq.KafkaProducerOption{
		Brokers:   c.Brokers,
		BatchSize: c.BatchSize,
		LingerMs:  c.LingerMs,
		Topics:    []mq.TopicOption{{Topic: c.Topic, Partitions: c.Partitions}},
	}
}

// TimeConfig 表示各种超时配置（单位：毫秒）
type TimeConfig struct {
	SlotDispatchTimeoutMs int `yaml:"slot_dispatch_timeout_ms" validate:"gte=0"` // 每个 slot 的输出最大耗时（Kafka + DB）
	EventSendTimeoutMs    int `yaml:"event_send_timeout_ms" validate:"gte=0"`    // 单条消息发送到 Kafka 并等待 ack 的超时时间
}

// ParserConfig 指令解析配置
type ParserConfig struct {
	LendingPrograms  []string `yaml:"lending_programs" validate:"dive,required"` // 使用 SPL token-lending 指令布局的程序地址
	LegacyParentKeys bool     `yaml:"legacy_parent_keys"`                      // flash_loan_fee_wad 使用旧版 parent_key "fees"
}

// LendingPubkeys 将 base58 程序地址转换为 Pubkey
func (c *ParserConfig) LendingPubkeys() ([]types.Pubkey, error) {
	keys := make([]types.Pubkey, 0, len(c.LendingPrograms))
	for _, s := range c.LendingPrograms {
		key, err := types.TryPubkeyFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("invalid lending program %q: %w", s, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// MetricsConfig Prometheus 指标服务
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" validate:"required_if=Enabled true"` // 监听地址，如 ":9100"
	Path    string `yaml:"path"`                                     // 默认 /metrics
}

// ProgressConfig 索引器中的进度管理配置
type ProgressConfig struct {
	Enabled            bool `yaml:"enabled"`
	RecentThresholdSec int  `yaml:"recent_threshold_sec" validate:"gte=0"` // 判定为“近期 block”的时间阈值（秒）
	FlushIntervalSec   int  `yaml:"flush_interval_sec" validate:"gte=0"`   // 进度落库间隔（秒）
	RedisTTLHours      int  `yaml:"redis_ttl_hours" validate:"gte=0"`      // Redis 进度 key 的过期时间
	RetainDays         int  `yaml:"retain_days" validate:"gte=0"`          // DB 进度保留天数
}

// SlotCheckConfig 跳过 slot 的 RPC 复核
type SlotCheckConfig struct {
	Enabled     bool   `yaml:"enabled"`
	RpcEndpoint string `yaml:"rpc_endpoint" validate:"required_if=Enabled true"`
	DelaySec    int    `yaml:"delay_sec" validate:"gte=0"` // 提交后延迟多久复核，等待 RPC 节点追上
}

// GrpcConfig 是主配置结构体，用于驱动索引器服务
type GrpcConfig struct {
	LogConf           LogConfig           `yaml:"logger"`
	KafkaProducerConf KafkaProducerConfig `yaml:"kafka_producer"`
	TimeConf          TimeConfig          `yaml:"time_conf"`
	ParserConf        ParserConfig        `yaml:"parser"`
	MetricsConf       MetricsConfig       `yaml:"metrics"`
	ProgressConf      ProgressConfig      `yaml:"progress"`
	SlotCheckConf     SlotCheckConfig     `yaml:"slot_check"`

	RedisAddr   string `yaml:"redis_addr"`   // Redis 地址，启用进度管理时必填
	PostgresDSN string `yaml:"postgres_dsn"` // PostgreSQL 数据源，为空时不落库

	// gRPC 客户端连接相关配置
	Grpc struct {
		Endpoint string `yaml:"endpoint" validate:"required"` // gRPC 服务端地址
		XToken   string `yaml:"x_token"`                      // x-token 认证
		Insecure bool   `yaml:"insecure"`                     // 明文连接（本地调试）

		// 应用级逻辑心跳（ping）配置
		StreamPingIntervalSec int `yaml:"stream_ping_interval_sec" validate:"gte=0"`

		// gRPC Keepalive 底层连接检测配置
		KeepalivePingIntervalSec int `yaml:"keepalive_ping_interval_sec" validate:"gte=0"`
		KeepalivePingTimeoutSec  int `yaml:"keepalive_ping_timeout_sec" validate:"gte=0"`

		// gRPC 窗口大小调优（用于大数据流推送）
		InitialWindowSize     int `yaml:"initial_window_size" validate:"gte=0"`
		InitialConnWindowSize int `yaml:"initial_conn_window_size" validate:"gte=0"`

		// 消息体大小限制
		MaxCallSendMsgSize int `yaml:"max_call_send_msg_size" validate:"gte=0"`
		MaxCallRecvMsgSize int `yaml:"max_call_recv_msg_size" validate:"gte=0"`

		// 超时与重连策略
		ReconnectIntervalSec int `yaml:"reconnect_interval_sec" validate:"gte=0"` // 重连最小间隔（秒）
		ConnectTimeoutSec    int `yaml:"connect_timeout_sec" validate:"gte=0"`    // 连接建立超时（秒）
		SendTimeoutSec       int `yaml:"send_timeout_sec" validate:"gte=0"`       // 发送超时（秒）
		BlockRecvTimeoutSec  int `yaml:"block_recv_timeout_sec" validate:"gte=0"` // 超过该时间未收到 block 则重连（秒）
		MaxLatencyWarnMs     int `yaml:"max_latency_warn_ms" validate:"gte=0"`    // 延迟告警阈值（毫秒）
	} `yaml:"grpc"`
}

func setDefault[T comparable](v *T, def T) {
	var zero T
	if *v == zero {
		*v = def
	}
}

// applyDefaults 为未配置的字段填充默认值
func (c *GrpcConfig) applyDefaults() {
	if len(c.ParserConf.LendingPrograms) == 0 {
		c.ParserConf.LendingPrograms = append([]string(nil), consts.DefaultLendingPrograms...)
	}

	setDefault(&c.KafkaProducerConf.Partitions, 1)
	setDefault(&c.TimeConf.SlotDispatchTimeoutMs, 3000)
	setDefault(&c.TimeConf.EventSendTimeoutMs, 2000)
	setDefault(&c.MetricsConf.Path, "/metrics")

	setDefault(&c.ProgressConf.RecentThresholdSec, 60)
	setDefault(&c.ProgressConf.FlushIntervalSec, 5)
	setDefault(&c.ProgressConf.RedisTTLHours, 7*24)
	setDefault(&c.ProgressConf.RetainDays, 7)
	setDefault(&c.SlotCheckConf.DelaySec, 30)

	g := &c.Grpc
	setDefault(&g.StreamPingIntervalSec, 10)
	setDefault(&g.KeepalivePingIntervalSec, 30)
	setDefault(&g.KeepalivePingTimeoutSec, 10)
	setDefault(&g.InitialWindowSize, 1<<30)
	setDefault(&g.InitialConnWindowSize, 1<<30)
	setDefault(&g.MaxCallSendMsgSize, 64*1024*1024)
	setDefault(&g.MaxCallRecvMsgSize, 1024*1024*1024)
	setDefault(&g.ReconnectIntervalSec, 3)
	setDefault(&g.ConnectTimeoutSec, 10)
	setDefault(&g.SendTimeoutSec, 5)
	setDefault(&g.BlockRecvTimeoutSec, 30)
	setDefault(&g.MaxLatencyWarnMs, 3000)
}

// Parse 解析 YAML 内容、填充默认值并校验
func Parse(data []byte) (GrpcConfig, error) {
	var c GrpcConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	if err := validator.New().Struct(&c); err != nil {
		return c, fmt.Errorf("validate config: %w", err)
	}
	if _, err := c.ParserConf.LendingPubkeys(); err != nil {
		return c, fmt.Errorf("validate config: %w", err)
	}
	if c.ProgressConf.Enabled && (c.RedisAddr == "" || c.PostgresDSN == "") {
		return c, fmt.Errorf("validate config: progress requires redis_addr and postgres_dsn")
	}
	return c, nil
}

// Load 读取并解析配置文件
func Load(path string) (GrpcConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GrpcConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// MustLoad 读取配置文件，失败时直接退出
func MustLoad(path string) GrpcConfig {
	c, err := Load(path)
	if err != nil {
		logger.Errorf("load config failed: %v", err)
		logger.Sync()
		os.Exit(1)
	}
	return c
}
