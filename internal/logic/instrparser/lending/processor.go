package lending

import (
	"runtime/debug"

	"lending-indexer-sol/internal/logic/core"
	"lending-indexer-sol/pkg/logger"
)

// Processor 将 lending 指令解码并投影为 InstructionSet。
// 无内部可变状态，可被多个 goroutine 并发调用。
type Processor struct {
	legacyParentKeys bool
	logf             func(format string, args ...any)
}

type Option func(*Processor)

// WithLegacyParentKeys 兼容旧版输出：InitReserve 的 flash_loan_fee_wad 使用 parent_key "fees"
// （其余费率字段仍为 "config/fees"）
func WithLegacyParentKeys(enabled bool) Option {
	return func(p *Processor) {
		p.legacyParentKeys = enabled
	}
}

// WithLogf 替换解码失败时的诊断输出，默认 logger.Warnf
func WithLogf(logf func(format string, args ...any)) Option {
	return func(p *Processor) {
		if logf != nil {
			p.logf = logf
		}
	}
}

func NewProcessor(opts ...Option) *Processor {
	p := &Processor{logf: logger.Warnf}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process 解码 data 并投影。解码失败时记录一次诊断日志并返回 nil，不影响后续指令。
func (p *Processor) Process(ctx core.InstructionContext, data []byte) (set *core.InstructionSet) {
	defer func() {
		if r := recover(); r != nil {
			p.logf("[lending:Process] panic: %v, program=%s, tx=%s, ixIndex=%d, parentIndex=%d, stack=%s",
				r, ctx.Program, ctx.TransactionHash, ctx.InstructionIndex, ctx.ParentIndex, debug.Stack())
			set = nil
		}
	}()

	ix, err := Decode(data)
	if err != nil {
		p.logf("[lending:Decode] 指令解码失败: %v, program=%s, tx=%s, ixIndex=%d, parentIndex=%d",
			err, ctx.Program, ctx.TransactionHash, ctx.InstructionIndex, ctx.ParentIndex)
		return nil
	}
	return p.Project(ctx, ix)
}

// Project 将已解码的指令投影为一条 Function 和按声明顺序排列的 Properties
func (p *Processor) Project(ctx core.InstructionContext, ix Instruction) *core.InstructionSet {
	v := variants[ix.Tag()]
	fields := v.fields(ix)
	return &core.InstructionSet{
		Function:   ctx.NewFunction(v.name),
		Properties: flatten(ctx, fields, "", p.legacyParentKeys, make([]core.InstructionProperty, 0, countLeaves(fields))),
	}
}
