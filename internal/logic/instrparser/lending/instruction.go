package lending

import "lending-indexer-sol/internal/types"

// Tag SPL token-lending 指令判别字节（data[0]）
type Tag uint8

const (
	TagInitLendingMarket Tag = iota
	TagSetLendingMarketOwner
	TagInitReserve
	TagRefreshReserve
	TagDepositReserveLiquidity
	TagRedeemReserveCollateral
	TagInitObligation
	TagRefreshObligation
	TagDepositObligationCollateral
	TagWithdrawObligationCollateral
	TagBorrowObligationLiquidity
	TagRepayObligationLiquidity
	TagLiquidateObligation
	TagFlashLoan

	tagCount // 已知指令数量，新增指令必须插在此之前
)

// Instruction 解码后的 lending 指令。
// 只有本包内的指针类型实现该接口，集合是封闭的。
type Instruction interface {
	Tag() Tag
}

// 以下 payload 结构体字段顺序即链上 Borsh 布局，请勿调整。

type InitLendingMarket struct {
	Owner         types.Pubkey
	QuoteCurrency [32]byte
}

type SetLendingMarketOwner struct {
	NewOwner types.Pubkey
}

// ReserveFees 储备金费率参数（WAD = 1e18 精度）
type ReserveFees struct {
	BorrowFeeWad      uint64
	FlashLoanFeeWad   uint64
	HostFeePercentage uint8
}

// ReserveConfig 储备金配置，比例字段均为百分数
type ReserveConfig struct {
	OptimalUtilizationRate uint8
	LoanToValueRatio       uint8
	LiquidationBonus       uint8
	LiquidationThreshold   uint8
	MinBorrowRate          uint8
	OptimalBorrowRate      uint8
	MaxBorrowRate          uint8
	Fees                   ReserveFees
}

type InitReserve struct {
	LiquidityAmount uint64
	Config          ReserveConfig
}

type RefreshReserve struct{}

type DepositReserveLiquidity struct {
	LiquidityAmount uint64
}

type RedeemReserveCollateral struct {
	CollateralAmount uint64
}

type InitObligation struct{}

type RefreshObligation struct{}

type DepositObligationCollateral struct {
	CollateralAmount uint64
}

type WithdrawObligationCollateral struct {
	CollateralAmount uint64
}

type BorrowObligationLiquidity struct {
	LiquidityAmount uint64
}

type RepayObligationLiquidity struct {
	LiquidityAmount uint64
}

type LiquidateObligation struct {
	LiquidityAmount uint64
}

type FlashLoan struct {
	Amount uint64
}

func (*InitLendingMarket) Tag() Tag            { return TagInitLendingMarket }
func (*SetLendingMarketOwner) Tag() Tag        { return TagSetLendingMarketOwner }
func (*InitReserve) Tag() Tag                  { return TagInitReserve }
func (*RefreshReserve) Tag() Tag               { return TagRefreshReserve }
func (*DepositReserveLiquidity) Tag() Tag      { return TagDepositReserveLiquidity }
func (*RedeemReserveCollateral) Tag() Tag      { return TagRedeemReserveCollateral }
func (*InitObligation) Tag() Tag               { return TagInitObligation }
func (*RefreshObligation) Tag() Tag            { return TagRefreshObligation }
func (*DepositObligationCollateral) Tag() Tag  { return TagDepositObligationCollateral }
func (*WithdrawObligationCollateral) Tag() Tag { return TagWithdrawObligationCollateral }
func (*BorrowObligationLiquidity) Tag() Tag    { return TagBorrowObligationLiquidity }
func (*RepayObligationLiquidity) Tag() Tag     { return TagRepayObligationLiquidity }
func (*LiquidateObligation) Tag() Tag          { return TagLiquidateObligation }
func (*FlashLoan) Tag() Tag                    { return TagFlashLoan }

// String 返回 kebab-case 指令名，未知 tag 返回 "unknown"
func (t Tag) String() string {
	if t < tagCount {
		return variants[t].name
	}
	return "unknown"
}
