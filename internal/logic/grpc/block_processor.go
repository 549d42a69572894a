package grpc

import (
	"context"
	"errors"
	"time"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/zeromicro/go-zero/core/logx"

	"lending-indexer-sol/internal/consts"
	"lending-indexer-sol/internal/logic/core"
	"lending-indexer-sol/internal/logic/progress"
	"lending-indexer-sol/internal/logic/txadapter"
	"lending-indexer-sol/internal/metrics"
	"lending-indexer-sol/internal/svc"
	"lending-indexer-sol/internal/types"
	"lending-indexer-sol/pkg/utils"
)

type BlockProcessor struct {
	sc        *svc.GrpcServiceContext
	blockChan chan *pb.SubscribeUpdateBlock // 接收 block 的 channel
	checker   *SlotChecker                  // 可为 nil
	lastSlot  uint64                        // 上一个处理完的 slot，仅在处理协程内读写
	ctx       context.Context
	cancel    func(err error)
	logx.Logger
}

func NewBlockProcessor(sc *svc.GrpcServiceContext, blockChan chan *pb.SubscribeUpdateBlock, checker *SlotChecker) *BlockProcessor {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &BlockProcessor{
		sc:        sc,
		blockChan: blockChan,
		checker:   checker,
		Logger:    logx.WithContext(ctx).WithFields(logx.Field("service", "block_processor")),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (p *BlockProcessor) Start() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case block := <-p.blockChan:
			p.procBlock(block)
			if len(p.blockChan) > 10 {
				p.Debugf("block chan len:%v", len(p.blockChan))
			}
		}
	}
}

func (p *BlockProcessor) Stop() {
	p.cancel(errors.New("service stop"))
}

func (p *BlockProcessor) procBlock(block *pb.SubscribeUpdateBlock) {
	startTime := time.Now()
	defer func() {
		metrics.BlockProcessSeconds.Observe(time.Since(startTime).Seconds())
		p.Debugf("区块处理总耗时: %v, slot: %d", time.Since(startTime), block.Slot)
	}()

	// 1. 构造上下文
	txCtx := p.buildTxContext(block)
	if txCtx == nil {
		return
	}

	// 2. 重放判重
	pm := p.sc.ProgressManager
	if pm != nil {
		should, err := pm.ShouldProcessSlot(p.ctx, txCtx.Slot, txCtx.BlockTime)
		if err != nil {
			p.Errorf("查询 slot 进度失败，继续处理: slot=%d, err=%v", txCtx.Slot, err)
		} else if !should {
			metrics.SkippedSlots.Inc()
			p.Infof("slot 已处理，跳过: %d", txCtx.Slot)
			return
		}
	}

	p.checkGap(txCtx)

	// 3. 并发解析
	results := p.processTxs(txCtx, block.Transactions)

	// 4. 输出
	if err := p.dispatch(txCtx, results); err != nil {
		p.Errorf("slot 输出失败: slot=%d, err=%v", txCtx.Slot, err)
		return
	}
	if pm != nil {
		if err := pm.MarkSlotStatus(p.ctx, txCtx.Slot, progress.SourceGrpc, txCtx.BlockTime, progress.SlotProcessed); err != nil {
			p.Errorf("标记 slot 进度失败: slot=%d, err=%v", txCtx.Slot, err)
		}
	}
}

// processTxs 过滤无效交易后并发适配与解析，只返回含指令的结果（按交易顺序）
func (p *BlockProcessor) processTxs(txCtx *core.TxContext, txs []*pb.SubscribeUpdateTransactionInfo) []core.ParsedTxResult {
	validTxs := make([]*pb.SubscribeUpdateTransactionInfo, 0, len(txs))
	for _, tx := range txs {
		err := txadapter.ValidateGrpcTx(tx)
		switch {
		case err == nil:
			validTxs = append(validTxs, tx)
		case errors.Is(err, txadapter.ErrVoteTx), errors.Is(err, txadapter.ErrFailedTx):
		default:
			p.Errorf("交易结构异常，跳过: slot=%d, err=%v", txCtx.Slot, err)
		}
	}

	parseStart := time.Now()
	parsed := utils.ParallelMap(validTxs, consts.CpuCount+2,
		func(tx *pb.SubscribeUpdateTransactionInfo) core.ParsedTxResult {
			return p.parseTx(txCtx, tx)
		})

	results := make([]core.ParsedTxResult, 0, len(parsed))
	total := 0
	for _, r := range parsed {
		if len(r.Sets) == 0 {
			continue
		}
		total += len(r.Sets)
		results = append(results, r)
	}
	p.Debugf("slot=%d, 总tx数量: %d, 有效tx数量: %d, 指令数量: %d, 解析耗时: %v",
		txCtx.Slot, len(txs), len(validTxs), total, time.Since(parseStart))
	return results
}

func (p *BlockProcessor) parseTx(txCtx *core.TxContext, tx *pb.SubscribeUpdateTransactionInfo) core.ParsedTxResult {
	adaptedTx, err := txadapter.AdaptGrpcTx(txCtx, tx)
	if err != nil {
		p.Errorf("交易适配失败: slot=%d, txIndex=%d, err=%v", txCtx.Slot, tx.Index, err)
		return core.ParsedTxResult{TxIndex: uint32(tx.Index)}
	}

	return core.ParsedTxResult{
		TxIndex:   adaptedTx.TxIndex,
		Signature: adaptedTx.Signature,
		Sets:      p.sc.Extractor.ExtractFromTx(adaptedTx),
	}
}

// dispatch 把结果写入所有 sink，整体受 SlotDispatchTimeoutMs 约束；任一失败即返回错误
func (p *BlockProcessor) dispatch(txCtx *core.TxContext, results []core.ParsedTxResult) error {
	if len(results) == 0 || len(p.sc.Sinks) == 0 {
		return nil
	}

	ctx := p.ctx
	if ms := p.sc.Config.TimeConf.SlotDispatchTimeoutMs; ms > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(p.ctx, time.Duration(ms)*time.Millisecond)
		defer cancel()
	}

	var errs []error
	for _, sink := range p.sc.Sinks {
		if err := sink.Write(ctx, txCtx, results); err != nil {
			metrics.SinkFailures.WithLabelValues(sink.Name()).Inc()
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// checkGap 父 slot 跳跃时把中间区间交给 SlotChecker 复核
func (p *BlockProcessor) checkGap(txCtx *core.TxContext) {
	last := p.lastSlot
	if txCtx.Slot > last {
		p.lastSlot = txCtx.Slot
	}
	if p.checker == nil || last == 0 || txCtx.ParentSlot <= last {
		return
	}
	p.checker.Submit(last+1, txCtx.ParentSlot)
}

func (p *BlockProcessor) buildTxContext(block *pb.SubscribeUpdateBlock) *core.TxContext {
	if block.BlockTime == nil {
		p.Errorf("[严重] 区块缺少 blockTime，跳过该区块: slot=%d", block.Slot)
		return nil
	}

	// blockHash 解析失败只打日志，使用零值继续
	blockHash, err := types.HashFromBase58(block.Blockhash)
	if err != nil {
		p.Errorf("[严重] BlockHash 无法解析，将使用零值: slot=%d, blockhash=%s, err=%v",
			block.Slot, block.Blockhash, err)
	}

	return &core.TxContext{
		BlockTime:  block.BlockTime.Timestamp,
		Slot:       block.Slot,
		ParentSlot: block.ParentSlot,
		BlockHash:  blockHash,
	}
}
