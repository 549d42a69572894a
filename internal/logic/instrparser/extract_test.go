package instrparser

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-indexer-sol/internal/consts"
	"lending-indexer-sol/internal/logic/core"
	"lending-indexer-sol/internal/types"
)

func amountData(tag byte, amount uint64) []byte {
	return binary.LittleEndian.AppendUint64([]byte{tag}, amount)
}

func newTestTx(ixs ...*core.AdaptedInstruction) *core.AdaptedTx {
	var sig types.Signature
	sig[0], sig[63] = 1, 2
	return &core.AdaptedTx{
		TxCtx:        &core.TxContext{BlockTime: 1625140800, Slot: 90_000_000},
		Signature:    sig,
		Instructions: ixs,
	}
}

func TestExtractFromTxRoutesByProgram(t *testing.T) {
	lendingProgram := consts.TokenLendingProgram
	other := consts.TokenProgram

	e := NewExtractor(Options{LendingPrograms: []types.Pubkey{lendingProgram}})
	assert.True(t, e.Handles(lendingProgram))
	assert.False(t, e.Handles(other))

	tx := newTestTx(
		&core.AdaptedInstruction{IxIndex: 0, ProgramID: consts.ComputeBudgetProgram, Data: []byte{2, 0, 0, 0}},
		&core.AdaptedInstruction{IxIndex: 1, ProgramID: lendingProgram, Data: amountData(4, 500)},
		&core.AdaptedInstruction{IxIndex: 1, InnerIndex: 1, ProgramID: other, Data: []byte{3}},
		&core.AdaptedInstruction{IxIndex: 1, InnerIndex: 2, ProgramID: lendingProgram, Data: []byte{3}},
	)

	sets := e.ExtractFromTx(tx)
	require.Len(t, sets, 2)

	first := sets[0].Function
	assert.Equal(t, "deposit-reserve-liquidity", first.FunctionName)
	assert.Equal(t, int16(1), first.InstructionIndex)
	assert.Equal(t, int16(-1), first.ParentIndex)
	assert.Equal(t, tx.Signature.String(), first.TransactionHash)
	assert.Equal(t, lendingProgram.String(), first.Program)
	require.Len(t, sets[0].Properties, 1)
	assert.Equal(t, "500", sets[0].Properties[0].Value)

	inner := sets[1].Function
	assert.Equal(t, "refresh-reserve", inner.FunctionName)
	assert.Equal(t, int16(1), inner.InstructionIndex)
	assert.Equal(t, int16(1), inner.ParentIndex)
}

func TestExtractFromTxSkipsUndecodable(t *testing.T) {
	program := consts.TokenLendingProgram
	e := NewExtractor(Options{LendingPrograms: []types.Pubkey{program}})

	tx := newTestTx(
		&core.AdaptedInstruction{IxIndex: 0, ProgramID: program, Data: []byte{0xff}},
		&core.AdaptedInstruction{IxIndex: 1, ProgramID: program, Data: nil},
		&core.AdaptedInstruction{IxIndex: 2, ProgramID: program, Data: amountData(13, 9)},
	)

	sets := e.ExtractFromTx(tx)
	require.Len(t, sets, 1)
	assert.Equal(t, "flash-loan", sets[0].Function.FunctionName)
	assert.Equal(t, int16(2), sets[0].Function.InstructionIndex)
}

func TestExtractFromTxWithoutPrograms(t *testing.T) {
	e := NewExtractor(Options{})
	tx := newTestTx(&core.AdaptedInstruction{ProgramID: consts.TokenLendingProgram, Data: amountData(4, 1)})
	assert.Empty(t, e.ExtractFromTx(tx))
}

func TestExtractFromTxLegacyParentKeys(t *testing.T) {
	program := consts.TokenLendingProgram
	data := []byte{2}
	data = binary.LittleEndian.AppendUint64(data, 1)
	data = append(data, 80, 50, 5, 55, 0, 4, 30)
	data = binary.LittleEndian.AppendUint64(data, 1)
	data = binary.LittleEndian.AppendUint64(data, 2)
	data = append(data, 20)

	tx := newTestTx(&core.AdaptedInstruction{ProgramID: program, Data: data})

	normal := NewExtractor(Options{LendingPrograms: []types.Pubkey{program}}).ExtractFromTx(tx)
	legacy := NewExtractor(Options{LendingPrograms: []types.Pubkey{program}, LegacyParentKeys: true}).ExtractFromTx(tx)
	require.Len(t, normal, 1)
	require.Len(t, legacy, 1)

	assert.Equal(t, "flash_loan_fee_wad", normal[0].Properties[1].Key)
	assert.Equal(t, "config/fees", normal[0].Properties[1].ParentKey)
	assert.Equal(t, "fees", legacy[0].Properties[1].ParentKey)
}
