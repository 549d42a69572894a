package mq

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTopic = "test-lending-instructions"

// fakeProducer 按配置同步回写投递结果
type fakeProducer struct {
	mu         sync.Mutex
	produceErr error
	deliverErr error
	silent     bool // 不回写 delivery，用于模拟超时
	messages   []*kafka.Message
}

func (f *fakeProducer) Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.produceErr != nil {
		return f.produceErr
	}
	f.messages = append(f.messages, msg)
	if !f.silent {
		delivered := *msg
		delivered.TopicPartition.Error = f.deliverErr
		deliveryChan <- &delivered
	}
	return nil
}

func jobsOf(n int) []*KafkaJob {
	jobs := make([]*KafkaJob, n)
	for i := range jobs {
		jobs[i] = &KafkaJob{Topic: testTopic, Partition: int32(i % 3), Key: []byte{byte(i)}, Value: []byte("instruction")}
	}
	return jobs
}

func TestSendKafkaJobs(t *testing.T) {
	p := &fakeProducer{}
	ok, failed := SendKafkaJobs(context.Background(), p, jobsOf(10), time.Second)
	assert.Len(t, ok, 10)
	assert.Empty(t, failed)

	require.Len(t, p.messages, 10)
	for _, msg := range p.messages {
		assert.Equal(t, testTopic, *msg.TopicPartition.Topic)
		assert.Len(t, msg.Key, 1)
	}
}

func TestSendKafkaJobsEmpty(t *testing.T) {
	ok, failed := SendKafkaJobs(context.Background(), &fakeProducer{}, nil, time.Second)
	assert.Empty(t, ok)
	assert.Empty(t, failed)
	assert.NoError(t, SendAll(context.Background(), &fakeProducer{}, nil, time.Second))
}

func TestSendKafkaJobsFailures(t *testing.T) {
	tests := []struct {
		name     string
		producer *fakeProducer
		timeout  time.Duration
	}{
		{"produce error", &fakeProducer{produceErr: errors.New("queue full")}, time.Second},
		{"delivery error", &fakeProducer{deliverErr: kafka.NewError(kafka.ErrMsgTimedOut, "timed out", false)}, time.Second},
		{"delivery timeout", &fakeProducer{silent: true}, 10 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, failed := SendKafkaJobs(context.Background(), tt.producer, jobsOf(2), tt.timeout)
			assert.Empty(t, ok)
			assert.Len(t, failed, 2)

			err := SendAll(context.Background(), tt.producer, jobsOf(2), tt.timeout)
			assert.ErrorContains(t, err, "2/2 kafka jobs failed")
		})
	}
}

func TestSendKafkaJobsContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, failed := SendKafkaJobs(ctx, &fakeProducer{silent: true}, jobsOf(1), time.Minute)
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[0].Err, context.Canceled)
}

// TestSendKafkaJobs_RealKafka 需要本地 Kafka，设置 KAFKA_BROKERS 后运行
func TestSendKafkaJobs_RealKafka(t *testing.T) {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("KAFKA_BROKERS not set")
	}

	opt := KafkaProducerOption{Brokers: brokers, Topics: []TopicOption{{Topic: testTopic, Partitions: 3}}}
	producer, err := NewKafkaProducer(opt)
	require.NoError(t, err)
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, failed := SendKafkaJobs(ctx, producer, jobsOf(3), 2*time.Second)
	assert.Len(t, ok, 3)
	assert.Empty(t, failed)
	producer.Flush(1000)
}
