package instrparser

import (
	"runtime/debug"

	"lending-indexer-sol/internal/logic/core"
	"lending-indexer-sol/internal/logic/instrparser/common"
	"lending-indexer-sol/internal/logic/instrparser/lending"
	"lending-indexer-sol/internal/metrics"
	"lending-indexer-sol/internal/types"
	"lending-indexer-sol/pkg/logger"
)

// Extractor 持有 ProgramID → 指令 handler 的路由表，构造完成后只读，可并发使用。
type Extractor struct {
	handlers map[types.Pubkey]common.InstructionHandler
}

// Options 构造 Extractor 所需参数
type Options struct {
	LendingPrograms  []types.Pubkey // 使用 SPL token-lending 指令布局的程序地址
	LegacyParentKeys bool           // 兼容旧版 parent_key 输出
}

// NewExtractor 初始化路由表，所有协议模块通过 RegisterHandlers 注册
func NewExtractor(opts Options) *Extractor {
	handlers := make(map[types.Pubkey]common.InstructionHandler)
	lending.RegisterHandlers(handlers, opts.LendingPrograms,
		lending.NewProcessor(lending.WithLegacyParentKeys(opts.LegacyParentKeys)))
	return &Extractor{handlers: handlers}
}

// Handles 判断程序是否在路由表中
func (e *Extractor) Handles(program types.Pubkey) bool {
	_, ok := e.handlers[program]
	return ok
}

// ExtractFromTx 依次解析交易中每条已注册程序的指令（含 inner 指令）。
// 单条指令失败只会跳过该指令；handler panic 时保留已解析结果并放弃该交易剩余指令。
func (e *Extractor) ExtractFromTx(tx *core.AdaptedTx) (result []*core.InstructionSet) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[instrparser::ExtractFromTx] panic tx=%s: %+v\nstack: %s", tx.Signature, r, debug.Stack())
		}
	}()

	for _, ix := range tx.Instructions {
		handler, ok := e.handlers[ix.ProgramID]
		if !ok {
			continue
		}
		ctx := tx.BuildInstructionContext(ix)
		set := handler(ctx, ix)
		if set == nil {
			metrics.DecodeFailures.WithLabelValues(ctx.Program).Inc()
			continue
		}
		metrics.InstructionSets.WithLabelValues(ctx.Program, set.Function.FunctionName).Inc()
		result = append(result, set)
	}
	return result
}
