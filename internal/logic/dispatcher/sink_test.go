package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-indexer-sol/internal/logic/core"
)

type captureWriter struct {
	sets []*core.InstructionSet
	err  error
}

func (w *captureWriter) SaveInstructionSets(_ context.Context, sets []*core.InstructionSet) error {
	w.sets = append(w.sets, sets...)
	return w.err
}

type ackProducer struct {
	messages int
}

func (p *ackProducer) Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error {
	p.messages++
	deliveryChan <- msg
	return nil
}

func sampleResults() []core.ParsedTxResult {
	sigA, sigB := signatureWith(0), signatureWith(3)
	return []core.ParsedTxResult{
		{TxIndex: 0, Signature: sigA, Sets: []*core.InstructionSet{testSet(sigA, 0, "init-obligation")}},
		{TxIndex: 1, Signature: sigB, Sets: []*core.InstructionSet{
			testSet(sigB, 0, "refresh-obligation"),
			testSet(sigB, 1, "borrow-obligation-liquidity"),
		}},
	}
}

func TestFlattenSets(t *testing.T) {
	sets := FlattenSets(sampleResults())
	require.Len(t, sets, 3)
	assert.Equal(t, "init-obligation", sets[0].Function.FunctionName)
	assert.Equal(t, "borrow-obligation-liquidity", sets[2].Function.FunctionName)
	assert.Empty(t, FlattenSets(nil))
}

func TestStoreSink(t *testing.T) {
	w := &captureWriter{}
	sink := NewStoreSink(w)
	assert.Equal(t, "postgres", sink.Name())
	require.NoError(t, sink.Write(context.Background(), &core.TxContext{}, sampleResults()))
	assert.Len(t, w.sets, 3)

	w.err = errors.New("conn refused")
	assert.ErrorContains(t, sink.Write(context.Background(), &core.TxContext{}, sampleResults()), "conn refused")
}

func TestKafkaSink(t *testing.T) {
	p := &ackProducer{}
	sink := NewKafkaSink(p, "lending-instructions", 4, time.Second)
	assert.Equal(t, "kafka", sink.Name())

	require.NoError(t, sink.Write(context.Background(), &core.TxContext{Slot: 1}, sampleResults()))
	assert.Equal(t, 2, p.messages, "两笔交易落在不同分区")

	require.NoError(t, sink.Write(context.Background(), &core.TxContext{Slot: 2}, nil))
	assert.Equal(t, 2, p.messages)
}
