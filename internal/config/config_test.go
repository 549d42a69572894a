package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-indexer-sol/internal/consts"
)

const minimalYAML = `
grpc:
  endpoint: "grpc.example.com:443"
`

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{consts.TokenLendingProgramStr}, c.ParserConf.LendingPrograms)
	assert.False(t, c.ParserConf.LegacyParentKeys)
	assert.Equal(t, 1, c.KafkaProducerConf.Partitions)
	assert.Equal(t, "/metrics", c.MetricsConf.Path)
	assert.Equal(t, 60, c.ProgressConf.RecentThresholdSec)
	assert.Equal(t, 30, c.Grpc.BlockRecvTimeoutSec)
	assert.Equal(t, 10, c.Grpc.StreamPingIntervalSec)

	keys, err := c.ParserConf.LendingPubkeys()
	require.NoError(t, err)
	assert.Equal(t, consts.TokenLendingProgram, keys[0])
}

func TestParseFullConfig(t *testing.T) {
	c, err := Parse([]byte(`
logger:
  format: json
  level: debug
  log_dir: logs
kafka_producer:
  enabled: true
  brokers: "localhost:9092"
  topic: lending-instructions
  partitions: 6
parser:
  lending_programs:
    - LendZqTs7gn5CTSJU1jWKhKuVpjJGom45nnwPb2AMTi
  legacy_parent_keys: true
progress:
  enabled: true
redis_addr: "127.0.0.1:6379"
postgres_dsn: "postgres://localhost/lending"
grpc:
  endpoint: "grpc.example.com:443"
  x_token: secret
  stream_ping_interval_sec: 15
`))
	require.NoError(t, err)
	assert.Equal(t, 6, c.KafkaProducerConf.Partitions)
	assert.True(t, c.ParserConf.LegacyParentKeys)
	assert.Equal(t, 15, c.Grpc.StreamPingIntervalSec)
	assert.Equal(t, "json", c.LogConf.ToLogOption().Format)

	opt := c.KafkaProducerConf.ToKafkaOption()
	require.Len(t, opt.Topics, 1)
	assert.Equal(t, "lending-instructions", opt.Topics[0].Topic)
	assert.Equal(t, 6, opt.Topics[0].Partitions)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"missing endpoint":       `logger: {level: info}`,
		"bad log level":          minimalYAML + "logger: {level: loud}\n",
		"kafka without brokers":  minimalYAML + "kafka_producer: {enabled: true, topic: t}\n",
		"bad program address":    minimalYAML + "parser: {lending_programs: [\"not-base58-0OIl\"]}\n",
		"progress without redis": minimalYAML + "progress: {enabled: true}\npostgres_dsn: x\n",
		"malformed yaml":         "grpc: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grpc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "grpc.example.com:443", c.Grpc.Endpoint)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadSampleConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "etc", "grpc.yaml"))
	require.NoError(t, err)
	assert.True(t, c.KafkaProducerConf.Enabled)
	assert.Equal(t, "lending-instructions", c.KafkaProducerConf.Topic)
	assert.Equal(t, []string{consts.TokenLendingProgramStr}, c.ParserConf.LendingPrograms)
	assert.True(t, c.ProgressConf.Enabled)
	assert.Equal(t, ":9100", c.MetricsConf.Addr)
}
