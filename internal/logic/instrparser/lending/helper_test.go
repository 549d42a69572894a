package lending

import (
	"bytes"
	"encoding/binary"

	"lending-indexer-sol/internal/types"
)

// payloadBuilder 按链上布局手工拼装指令 data，不依赖被测解码器
type payloadBuilder struct {
	buf []byte
}

func newPayload(tag Tag) *payloadBuilder {
	return &payloadBuilder{buf: []byte{byte(tag)}}
}

func (b *payloadBuilder) u64(v uint64) *payloadBuilder {
	b.buf = binary.LittleEndian.AppendUint64(b.buf, v)
	return b
}

func (b *payloadBuilder) u8(v uint8) *payloadBuilder {
	b.buf = append(b.buf, v)
	return b
}

func (b *payloadBuilder) key(k [32]byte) *payloadBuilder {
	b.buf = append(b.buf, k[:]...)
	return b
}

func (b *payloadBuilder) bytes() []byte {
	return b.buf
}

func filledKey(v byte) types.Pubkey {
	var k types.Pubkey
	copy(k[:], bytes.Repeat([]byte{v}, len(k)))
	k[0] = 0x80 | v // 避免前导零影响 base58 长度，便于肉眼核对
	return k
}

var (
	testOwner    = filledKey(0x11)
	testQuote    = filledKey(0x22)
	testNewOwner = filledKey(0x33)
)

func sampleReserveConfig() ReserveConfig {
	return ReserveConfig{
		OptimalUtilizationRate: 80,
		LoanToValueRatio:       50,
		LiquidationBonus:       5,
		LiquidationThreshold:   55,
		MinBorrowRate:          0,
		OptimalBorrowRate:      4,
		MaxBorrowRate:          30,
		Fees: ReserveFees{
			BorrowFeeWad:      100_000_000_000_000,
			FlashLoanFeeWad:   3_000_000_000_000_000,
			HostFeePercentage: 20,
		},
	}
}

func encodeInitReserve(liquidity uint64, cfg ReserveConfig) []byte {
	return newPayload(TagInitReserve).
		u64(liquidity).
		u8(cfg.OptimalUtilizationRate).
		u8(cfg.LoanToValueRatio).
		u8(cfg.LiquidationBonus).
		u8(cfg.LiquidationThreshold).
		u8(cfg.MinBorrowRate).
		u8(cfg.OptimalBorrowRate).
		u8(cfg.MaxBorrowRate).
		u64(cfg.Fees.BorrowFeeWad).
		u64(cfg.Fees.FlashLoanFeeWad).
		u8(cfg.Fees.HostFeePercentage).
		bytes()
}

// sampleCase 每种指令一条合法编码及其期望解码结果
type sampleCase struct {
	name string
	data []byte
	want Instruction
}

func sampleCases() []sampleCase {
	return []sampleCase{
		{
			name: "InitLendingMarket",
			data: newPayload(TagInitLendingMarket).key(testOwner).key(testQuote).bytes(),
			want: &InitLendingMarket{Owner: testOwner, QuoteCurrency: testQuote},
		},
		{
			name: "SetLendingMarketOwner",
			data: newPayload(TagSetLendingMarketOwner).key(testNewOwner).bytes(),
			want: &SetLendingMarketOwner{NewOwner: testNewOwner},
		},
		{
			name: "InitReserve",
			data: encodeInitReserve(1000, sampleReserveConfig()),
			want: &InitReserve{LiquidityAmount: 1000, Config: sampleReserveConfig()},
		},
		{
			name: "RefreshReserve",
			data: newPayload(TagRefreshReserve).bytes(),
			want: &RefreshReserve{},
		},
		{
			name: "DepositReserveLiquidity",
			data: newPayload(TagDepositReserveLiquidity).u64(500).bytes(),
			want: &DepositReserveLiquidity{LiquidityAmount: 500},
		},
		{
			name: "RedeemReserveCollateral",
			data: newPayload(TagRedeemReserveCollateral).u64(42).bytes(),
			want: &RedeemReserveCollateral{CollateralAmount: 42},
		},
		{
			name: "InitObligation",
			data: newPayload(TagInitObligation).bytes(),
			want: &InitObligation{},
		},
		{
			name: "RefreshObligation",
			data: newPayload(TagRefreshObligation).bytes(),
			want: &RefreshObligation{},
		},
		{
			name: "DepositObligationCollateral",
			data: newPayload(TagDepositObligationCollateral).u64(7).bytes(),
			want: &DepositObligationCollateral{CollateralAmount: 7},
		},
		{
			name: "WithdrawObligationCollateral",
			data: newPayload(TagWithdrawObligationCollateral).u64(8).bytes(),
			want: &WithdrawObligationCollateral{CollateralAmount: 8},
		},
		{
			name: "BorrowObligationLiquidity",
			data: newPayload(TagBorrowObligationLiquidity).u64(9).bytes(),
			want: &BorrowObligationLiquidity{LiquidityAmount: 9},
		},
		{
			name: "RepayObligationLiquidity",
			data: newPayload(TagRepayObligationLiquidity).u64(10).bytes(),
			want: &RepayObligationLiquidity{LiquidityAmount: 10},
		},
		{
			name: "LiquidateObligation",
			data: newPayload(TagLiquidateObligation).u64(11).bytes(),
			want: &LiquidateObligation{LiquidityAmount: 11},
		},
		{
			name: "FlashLoan",
			data: newPayload(TagFlashLoan).u64(18_446_744_073_709_551_615).bytes(),
			want: &FlashLoan{Amount: 18_446_744_073_709_551_615},
		},
	}
}
