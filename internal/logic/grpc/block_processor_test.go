package grpc

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-indexer-sol/internal/consts"
	"lending-indexer-sol/internal/logic/core"
	"lending-indexer-sol/internal/logic/dispatcher"
	"lending-indexer-sol/internal/logic/instrparser"
	"lending-indexer-sol/internal/logic/progress"
	"lending-indexer-sol/internal/svc"
	"lending-indexer-sol/internal/types"
)

type captureSink struct {
	results [][]core.ParsedTxResult
	err     error
}

func (s *captureSink) Name() string { return "capture" }

func (s *captureSink) Write(_ context.Context, _ *core.TxContext, results []core.ParsedTxResult) error {
	s.results = append(s.results, results)
	return s.err
}

type memStatus struct {
	mu     sync.Mutex
	status map[uint64]progress.SlotStatus
}

func (m *memStatus) GetSlotStatus(_ context.Context, slot uint64) (progress.SlotStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status[slot], nil
}

func (m *memStatus) MarkSlotStatus(_ context.Context, slot uint64, status progress.SlotStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[slot] = status
	return nil
}

type nopSlotStore struct{}

func (nopSlotStore) GetSlotStatus(context.Context, uint64) (progress.SlotStatus, error) {
	return progress.SlotUnknown, nil
}
func (nopSlotStore) BatchInsertSlots(context.Context, []*progress.SlotRecord) error { return nil }
func (nopSlotStore) DeleteOldSlots(context.Context, uint64) (int64, error) { return 0, nil }

func testKey(b byte) []byte {
	k := make([]byte, 32)
	k[0] = b
	return k
}

// lendingTx 构造一笔调用 token-lending DepositReserveLiquidity 的交易
func lendingTx(index uint64, sigByte byte, amount uint64) *pb.SubscribeUpdateTransactionInfo {
	sig := make([]byte, 64)
	sig[0] = sigByte
	program := consts.TokenLendingProgram
	return &pb.SubscribeUpdateTransactionInfo{
		Index: index,
		Transaction: &pb.Transaction{
			Signatures: [][]byte{sig},
			Message: &pb.Message{
				Header:      &pb.MessageHeader{NumRequiredSignatures: 1},
				AccountKeys: [][]byte{testKey(1), program[:]},
				Instructions: []*pb.CompiledInstruction{
					{ProgramIdIndex: 1, Accounts: []byte{0}, Data: binary.LittleEndian.AppendUint64([]byte{4}, amount)},
				},
			},
		},
		Meta: &pb.TransactionStatusMeta{},
	}
}

func newTestProcessor(sink dispatcher.Sink, pm *progress.ProgressManager) *BlockProcessor {
	sc := &svc.GrpcServiceContext{
		Extractor: instrparser.NewExtractor(instrparser.Options{
			LendingPrograms: []types.Pubkey{consts.TokenLendingProgram},
		}),
		ProgressManager: pm,
	}
	if sink != nil {
		sc.Sinks = []dispatcher.Sink{sink}
	}
	return NewBlockProcessor(sc, make(chan *pb.SubscribeUpdateBlock, 1), nil)
}

func testBlock(slot uint64, blockTime int64, txs ...*pb.SubscribeUpdateTransactionInfo) *pb.SubscribeUpdateBlock {
	return &pb.SubscribeUpdateBlock{
		Slot:         slot,
		ParentSlot:   slot - 1,
		Blockhash:    "11111111111111111111111111111111",
		BlockTime:    &pb.UnixTimestamp{Timestamp: blockTime},
		Transactions: txs,
	}
}

func TestProcessTxsFiltersAndKeepsOrder(t *testing.T) {
	p := newTestProcessor(nil, nil)

	vote := lendingTx(1, 2, 10)
	vote.IsVote = true
	failed := lendingTx(2, 3, 10)
	failed.Meta.Err = &pb.TransactionError{Err: []byte{1}}
	other := lendingTx(3, 4, 10)
	other.Transaction.Message.Instructions[0].ProgramIdIndex = 0

	txCtx := &core.TxContext{BlockTime: 1625140800, Slot: 100}
	results := p.processTxs(txCtx, []*pb.SubscribeUpdateTransactionInfo{
		lendingTx(0, 1, 500), vote, failed, other, lendingTx(4, 5, 700),
	})

	require.Len(t, results, 2)
	assert.Equal(t, uint32(0), results[0].TxIndex)
	assert.Equal(t, uint32(4), results[1].TxIndex)
	set := results[1].Sets[0]
	assert.Equal(t, "deposit-reserve-liquidity", set.Function.FunctionName)
	require.Len(t, set.Properties, 1)
	assert.Equal(t, "700", set.Properties[0].Value)
}

func TestProcBlockDispatchesAndMarksProgress(t *testing.T) {
	sink := &captureSink{}
	status := &memStatus{status: map[uint64]progress.SlotStatus{}}
	p := newTestProcessor(sink, progress.NewProgressManager(status, nopSlotStore{}, 60))

	p.procBlock(testBlock(200, time.Now().Unix(), lendingTx(0, 1, 500)))

	require.Len(t, sink.results, 1)
	assert.Len(t, sink.results[0], 1)
	assert.Equal(t, progress.SlotProcessed, status.status[200])
}

func TestProcBlockSkipsProcessedReplay(t *testing.T) {
	sink := &captureSink{}
	status := &memStatus{status: map[uint64]progress.SlotStatus{300: progress.SlotProcessed}}
	p := newTestProcessor(sink, progress.NewProgressManager(status, nopSlotStore{}, 60))

	p.procBlock(testBlock(300, time.Now().Add(-time.Hour).Unix(), lendingTx(0, 1, 500)))
	assert.Empty(t, sink.results)
}

func TestProcBlockSinkFailureLeavesSlotUnmarked(t *testing.T) {
	sink := &captureSink{err: errors.New("broker down")}
	status := &memStatus{status: map[uint64]progress.SlotStatus{}}
	p := newTestProcessor(sink, progress.NewProgressManager(status, nopSlotStore{}, 60))

	p.procBlock(testBlock(400, time.Now().Unix(), lendingTx(0, 1, 500)))
	require.Len(t, sink.results, 1)
	assert.Equal(t, progress.SlotUnknown, status.status[400])
}

func TestProcBlockWithoutBlockTime(t *testing.T) {
	sink := &captureSink{}
	p := newTestProcessor(sink, nil)

	block := testBlock(500, 0, lendingTx(0, 1, 500))
	block.BlockTime = nil
	p.procBlock(block)
	assert.Empty(t, sink.results)
}

func TestCheckGapSubmitsMissingRange(t *testing.T) {
	p := newTestProcessor(nil, nil)
	p.checker = newSlotChecker(&fakeLister{}, time.Minute)

	p.checkGap(&core.TxContext{Slot: 10, ParentSlot: 9})
	p.checkGap(&core.TxContext{Slot: 11, ParentSlot: 10})
	p.checkGap(&core.TxContext{Slot: 15, ParentSlot: 13})

	require.Len(t, p.checker.rangeCh, 1)
	r := <-p.checker.rangeCh
	assert.Equal(t, uint64(12), r.From)
	assert.Equal(t, uint64(13), r.To)
	assert.Equal(t, uint64(15), p.lastSlot)
}

func TestBuildSubscribeRequest(t *testing.T) {
	req := buildSubscribeRequest([]string{consts.TokenLendingProgramStr})
	filter := req.Blocks["blocks"]
	require.NotNil(t, filter)
	assert.Equal(t, []string{consts.TokenLendingProgramStr}, filter.AccountInclude)
	assert.True(t, filter.GetIncludeTransactions())
	assert.Equal(t, pb.CommitmentLevel_CONFIRMED, req.GetCommitment())
}
