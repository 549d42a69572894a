package consts

import "runtime"

const (
	ChainIDSolana uint32 = 100000
)

// NoIndex 表示 instruction_index / parent_index 不适用（例如主指令没有父指令）
const NoIndex int16 = -1

// CpuCount 表示逻辑 CPU 核心数，用于控制并发任务调度上限
var CpuCount = runtime.NumCPU()
