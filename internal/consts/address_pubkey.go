package consts

import (
	"lending-indexer-sol/internal/types"
)

// 公钥形式的地址常量（types.Pubkey），用于路由表比对。
var (
	TokenProgram         types.Pubkey
	ComputeBudgetProgram types.Pubkey

	// Lending
	TokenLendingProgram types.Pubkey
)

// init 自动将 base58 字符串地址转换为 types.Pubkey
func init() {
	TokenProgram = types.PubkeyFromBase58(TokenProgramStr)
	ComputeBudgetProgram = types.PubkeyFromBase58(ComputeBudgetProgramIdStr)

	TokenLendingProgram = types.PubkeyFromBase58(TokenLendingProgramStr)
}
