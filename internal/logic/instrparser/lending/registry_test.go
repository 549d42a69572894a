package lending

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-indexer-sol/internal/logic/core"
	"lending-indexer-sol/internal/logic/instrparser/common"
	"lending-indexer-sol/internal/types"
)

func TestVariantsComplete(t *testing.T) {
	require.NoError(t, checkVariants())

	names := make(map[string]Tag, tagCount)
	for tag := Tag(0); tag < tagCount; tag++ {
		name := tag.String()
		assert.NotEqual(t, "unknown", name)
		prev, dup := names[name]
		assert.False(t, dup, "tag %d 与 %d 重名: %s", tag, prev, name)
		names[name] = tag
	}
	assert.Len(t, names, 14)
	assert.Equal(t, "unknown", tagCount.String())
}

func TestCheckVariantsDetectsMissingEntry(t *testing.T) {
	saved := variants[TagFlashLoan]
	defer func() { variants[TagFlashLoan] = saved }()

	variants[TagFlashLoan] = variant{}
	assert.Error(t, checkVariants())

	variants[TagFlashLoan] = saved
	variants[TagFlashLoan].newIx = func() Instruction { return &RefreshReserve{} }
	assert.Error(t, checkVariants())
}

func TestRegisterHandlers(t *testing.T) {
	programA := types.Pubkey{0xa}
	programB := types.Pubkey{0xb}
	handlers := map[types.Pubkey]common.InstructionHandler{}
	RegisterHandlers(handlers, []types.Pubkey{programA, programB}, NewProcessor())
	require.Len(t, handlers, 2)

	ix := &core.AdaptedInstruction{ProgramID: programB, Data: newPayload(TagFlashLoan).u64(3).bytes()}
	set := handlers[programB](testContext(), ix)
	require.NotNil(t, set)
	assert.Equal(t, "flash-loan", set.Function.FunctionName)
	assert.Equal(t, "3", set.Properties[0].Value)
}
