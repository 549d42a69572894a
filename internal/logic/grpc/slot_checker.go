package grpc

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/blocto/solana-go-sdk/rpc"

	"lending-indexer-sol/internal/metrics"
	"lending-indexer-sol/pkg/logger"
)

const (
	maxRangeSize     = 10000 // 单次 getBlocks 查询的最大 slot 跨度
	maxPendingRanges = 200
	getBlocksRetries = 3
)

// SlotRange 闭区间 [From, To]
type SlotRange struct {
	From     uint64
	To       uint64
	SubmitAt time.Time
}

// blockLister 查询区间内实际出块的 slot
type blockLister interface {
	GetBlocks(ctx context.Context, from, to uint64) ([]uint64, error)
}

type rpcBlockLister struct {
	client rpc.RpcClient
}

func (l rpcBlockLister) GetBlocks(ctx context.Context, from, to uint64) ([]uint64, error) {
	resp, err := l.client.GetBlocks(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// SlotChecker 对 gRPC 流中跳过的 slot 做延迟复核：
// 链上确实出块的 slot 视为漏扫，记录错误日志与 MissingSlots 指标。
type SlotChecker struct {
	lister  blockLister
	rangeCh chan SlotRange
	delay   time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewSlotChecker(endpoint string, delay time.Duration) *SlotChecker {
	return newSlotChecker(rpcBlockLister{client: rpc.NewRpcClient(endpoint)}, delay)
}

func newSlotChecker(lister blockLister, delay time.Duration) *SlotChecker {
	ctx, cancel := context.WithCancel(context.Background())
	return &SlotChecker{
		lister:  lister,
		rangeCh: make(chan SlotRange, 300),
		delay:   delay,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *SlotChecker) Start() {
	s.run()
}

func (s *SlotChecker) Stop() {
	s.cancel()
}

// Submit 提交一个 slot 范围进行空块检测，闭区间 [from, to]；通道满时丢弃
func (s *SlotChecker) Submit(from, to uint64) {
	if from > to {
		logger.Warnf("[SlotChecker] invalid slot range: from (%d) > to (%d)", from, to)
		return
	}
	select {
	case s.rangeCh <- SlotRange{From: from, To: to, SubmitAt: time.Now()}:
	default:
		logger.Warnf("[SlotChecker] slot range channel full, dropped: [%d, %d]", from, to)
	}
}

func (s *SlotChecker) run() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	ranges := make([]SlotRange, 0, 32)
	for {
		select {
		case <-s.ctx.Done():
			logger.Infof("[SlotChecker] stopped")
			return

		case r := <-s.rangeCh:
			if len(ranges) >= maxPendingRanges {
				logger.Warnf("[SlotChecker] too many pending ranges (%d), drop [%d, %d]", len(ranges), r.From, r.To)
				continue
			}
			ranges = append(ranges, r)

		case now := <-ticker.C:
			var ready []SlotRange
			ready, ranges = splitReady(ranges, now, s.delay)
			if len(ready) > 0 {
				// 串行执行，防止 goroutine 累积
				missing := s.checkSlotRanges(ready)
				metrics.MissingSlots.Add(float64(len(missing)))
			}
		}
	}
}

// splitReady 按提交时间拆分出已到复核时间的范围
func splitReady(ranges []SlotRange, now time.Time, delay time.Duration) (ready, pending []SlotRange) {
	for _, r := range ranges {
		if now.Sub(r.SubmitAt) >= delay {
			ready = append(ready, r)
		} else {
			pending = append(pending, r)
		}
	}
	return ready, pending
}

// checkSlotRanges 返回链上出块但被 gRPC 流跳过的 slot；查询失败的范围不参与判断
func (s *SlotChecker) checkSlotRanges(ranges []SlotRange) []uint64 {
	var missing []uint64
	for _, r := range mergeRanges(ranges) {
		if s.ctx.Err() != nil {
			return missing
		}

		blocks, err := s.getBlocksWithRetry(r.From, r.To)
		if err != nil {
			logger.Warnf("[SlotChecker] getBlocks [%d, %d] failed after retries: %v", r.From, r.To, err)
			continue
		}
		for _, slot := range blocks {
			if slot < r.From || slot > r.To {
				continue
			}
			logger.Errorf("[SlotChecker] slot %d has a block on chain but was not received, 疑似漏扫", slot)
			missing = append(missing, slot)
		}
	}
	return missing
}

func (s *SlotChecker) getBlocksWithRetry(from, to uint64) (_ []uint64, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[SlotChecker] panic during getBlocks: %v", r)
			err = context.Canceled
		}
	}()

	delay := 300 * time.Millisecond
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(s.ctx, 6*time.Second)
		blocks, err := s.lister.GetBlocks(ctx, from, to)
		cancel()
		if err == nil {
			return blocks, nil
		}
		if attempt >= getBlocksRetries || s.ctx.Err() != nil {
			return nil, err
		}

		select {
		case <-s.ctx.Done():
			return nil, s.ctx.Err()
		case <-time.After(delay):
		}
	}
}

// mergeRanges 拆分并合并 SlotRange：
//  1. 按 maxRangeSize 拆分过长的段；
//  2. 按 From、To 升序排序；
//  3. 合并重叠或相邻的段，合并后的段长度仍不超过 maxRangeSize。
func mergeRanges(ranges []SlotRange) []SlotRange {
	if len(ranges) == 0 {
		return nil
	}

	pieces := make([]SlotRange, 0, len(ranges))
	for _, r := range ranges {
		for from := r.From; ; {
			to := min(r.To, from+maxRangeSize-1)
			pieces = append(pieces, SlotRange{From: from, To: to, SubmitAt: r.SubmitAt})
			if to == r.To {
				break
			}
			from = to + 1
		}
	}

	slices.SortFunc(pieces, func(a, b SlotRange) int {
		if a.From != b.From {
			return cmp.Compare(a.From, b.From)
		}
		return cmp.Compare(a.To, b.To)
	})

	merged := make([]SlotRange, 1, len(pieces))
	merged[0] = pieces[0]
	for _, r := range pieces[1:] {
		last := &merged[len(merged)-1]
		if r.From > last.To+1 {
			merged = append(merged, r)
			continue
		}
		if r.To <= last.To {
			continue
		}
		limit := last.From + maxRangeSize - 1
		if r.To <= limit {
			last.To = r.To
			continue
		}
		last.To = limit
		merged = append(merged, SlotRange{From: limit + 1, To: r.To, SubmitAt: r.SubmitAt})
	}
	return merged
}
