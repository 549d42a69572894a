package lending

import (
	"fmt"

	"lending-indexer-sol/internal/logic/core"
	"lending-indexer-sol/internal/logic/instrparser/common"
	"lending-indexer-sol/internal/types"
)

// variant 描述一种指令：名称、payload 长度、解码目标与字段投影。
type variant struct {
	name   string                     // kebab-case 指令名（InstructionFunction.FunctionName）
	size   int                        // payload 最小字节数（不含 tag）
	newIx  func() Instruction         // 返回待 Borsh 填充的零值指令
	fields func(Instruction) []field // 按输出顺序返回字段树
}

const (
	pubkeySize = 32
	u64Size    = 8
	u8Size     = 1

	initReserveSize = u64Size + 7*u8Size + 2*u64Size + u8Size
)

// variants 以 tag 为下标的指令表；缺项会在 init 中 panic，保证新增指令不会被静默丢弃。
var variants = [tagCount]variant{
	TagInitLendingMarket: {
		name:  "init-lending-market",
		size:  2 * pubkeySize,
		newIx: func() Instruction { return &InitLendingMarket{} },
		fields: func(ix Instruction) []field {
			v := ix.(*InitLendingMarket)
			return []field{
				leaf("owner", pubkeyText(v.Owner)),
				leaf("quote_currency", pubkeyText(v.QuoteCurrency)),
			}
		},
	},
	TagSetLendingMarketOwner: {
		name:  "set-lending-market-owner",
		size:  pubkeySize,
		newIx: func() Instruction { return &SetLendingMarketOwner{} },
		fields: func(ix Instruction) []field {
			return []field{leaf("new_owner", pubkeyText(ix.(*SetLendingMarketOwner).NewOwner))}
		},
	},
	TagInitReserve: {
		name:   "init-reserve",
		size:   initReserveSize,
		newIx:  func() Instruction { return &InitReserve{} },
		fields: initReserveFields,
	},
	TagRefreshReserve: {
		name:   "refresh-reserve",
		newIx:  func() Instruction { return &RefreshReserve{} },
		fields: noFields,
	},
	TagDepositReserveLiquidity: {
		name:  "deposit-reserve-liquidity",
		size:  u64Size,
		newIx: func() Instruction { return &DepositReserveLiquidity{} },
		fields: func(ix Instruction) []field {
			return liquidityAmount(ix.(*DepositReserveLiquidity).LiquidityAmount)
		},
	},
	TagRedeemReserveCollateral: {
		name:  "redeem-reserve-collateral",
		size:  u64Size,
		newIx: func() Instruction { return &RedeemReserveCollateral{} },
		fields: func(ix Instruction) []field {
			return collateralAmount(ix.(*RedeemReserveCollateral).CollateralAmount)
		},
	},
	TagInitObligation: {
		name:   "init-obligation",
		newIx:  func() Instruction { return &InitObligation{} },
		fields: noFields,
	},
	TagRefreshObligation: {
		name:   "refresh-obligation",
		newIx:  func() Instruction { return &RefreshObligation{} },
		fields: noFields,
	},
	TagDepositObligationCollateral: {
		name:  "deposit-obligation-collateral",
		size:  u64Size,
		newIx: func() Instruction { return &DepositObligationCollateral{} },
		fields: func(ix Instruction) []field {
			return collateralAmount(ix.(*DepositObligationCollateral).CollateralAmount)
		},
	},
	TagWithdrawObligationCollateral: {
		name:  "withdraw-obligation-collateral",
		size:  u64Size,
		newIx: func() Instruction { return &WithdrawObligationCollateral{} },
		fields: func(ix Instruction) []field {
			return collateralAmount(ix.(*WithdrawObligationCollateral).CollateralAmount)
		},
	},
	TagBorrowObligationLiquidity: {
		name:  "borrow-obligation-liquidity",
		size:  u64Size,
		newIx: func() Instruction { return &BorrowObligationLiquidity{} },
		fields: func(ix Instruction) []field {
			return liquidityAmount(ix.(*BorrowObligationLiquidity).LiquidityAmount)
		},
	},
	TagRepayObligationLiquidity: {
		name:  "repay-obligation-liquidity",
		size:  u64Size,
		newIx: func() Instruction { return &RepayObligationLiquidity{} },
		fields: func(ix Instruction) []field {
			return liquidityAmount(ix.(*RepayObligationLiquidity).LiquidityAmount)
		},
	},
	TagLiquidateObligation: {
		name:  "liquidate-obligation",
		size:  u64Size,
		newIx: func() Instruction { return &LiquidateObligation{} },
		fields: func(ix Instruction) []field {
			return liquidityAmount(ix.(*LiquidateObligation).LiquidityAmount)
		},
	},
	TagFlashLoan: {
		name:  "flash-loan",
		size:  u64Size,
		newIx: func() Instruction { return &FlashLoan{} },
		fields: func(ix Instruction) []field {
			return []field{leaf("amount", u64Text(ix.(*FlashLoan).Amount))}
		},
	},
}

func init() {
	if err := checkVariants(); err != nil {
		panic(err)
	}
}

// checkVariants 校验指令表完整且 tag 与解码类型一一对应
func checkVariants() error {
	for tag := Tag(0); tag < tagCount; tag++ {
		v := variants[tag]
		if v.name == "" || v.newIx == nil || v.fields == nil {
			return fmt.Errorf("lending: variant for tag %d is not registered", tag)
		}
		if got := v.newIx().Tag(); got != tag {
			return fmt.Errorf("lending: variant %s decodes to tag %d, want %d", v.name, got, tag)
		}
	}
	return nil
}

func initReserveFields(ix Instruction) []field {
	v := ix.(*InitReserve)
	cfg := v.Config
	return []field{
		leaf("liquidity_amount", u64Text(v.LiquidityAmount)),
		group("config",
			group("fees",
				leaf("flash_loan_fee_wad", u64Text(cfg.Fees.FlashLoanFeeWad)).withLegacyParent("fees"),
				leaf("borrow_fee_wad", u64Text(cfg.Fees.BorrowFeeWad)),
				leaf("host_fee_percentage", u8Text(cfg.Fees.HostFeePercentage)),
			),
			leaf("liquidation_threshold", u8Text(cfg.LiquidationThreshold)),
			leaf("loan_to_value_ratio", u8Text(cfg.LoanToValueRatio)),
			leaf("max_borrow_rate", u8Text(cfg.MaxBorrowRate)),
			leaf("min_borrow_rate", u8Text(cfg.MinBorrowRate)),
			leaf("optimal_borrow_rate", u8Text(cfg.OptimalBorrowRate)),
			leaf("optimal_utilization_rate", u8Text(cfg.OptimalUtilizationRate)),
		),
	}
}

func noFields(Instruction) []field { return nil }

func liquidityAmount(amount uint64) []field {
	return []field{leaf("liquidity_amount", u64Text(amount))}
}

func collateralAmount(amount uint64) []field {
	return []field{leaf("collateral_amount", u64Text(amount))}
}

// RegisterHandlers 将 lending 指令处理器注册到路由表，programs 为同一指令布局的程序部署地址
func RegisterHandlers(m map[types.Pubkey]common.InstructionHandler, programs []types.Pubkey, p *Processor) {
	handler := func(ctx core.InstructionContext, ix *core.AdaptedInstruction) *core.InstructionSet {
		return p.Process(ctx, ix.Data)
	}
	for _, program := range programs {
		m[program] = handler
	}
}
