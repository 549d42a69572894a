package consts

// Base58 地址常量（可读性高，适合配置与日志使用）
const (
	//  Programs
	TokenProgramStr           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	ComputeBudgetProgramIdStr = "ComputeBudget111111111111111111111111111111"

	// Lending: SPL token-lending（主网部署地址）
	TokenLendingProgramStr = "LendZqTs7gn5CTSJU1jWKhKuVpjJGom45nnwPb2AMTi"
)
