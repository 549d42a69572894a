package txadapter

import (
	"errors"
	"fmt"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"

	"lending-indexer-sol/internal/logic/core"
	"lending-indexer-sol/internal/types"
)

var (
	ErrVoteTx   = errors.New("vote transaction")
	ErrFailedTx = errors.New("failed transaction")
)

// buildFullAccountKeys 拼接 message.accountKeys 与 Address Lookup Table 中的 writable / readonly 地址，
// 顺序与链上 accountIndex 一致。
func buildFullAccountKeys(accountKeys, loadedWritable, loadedReadonly [][]byte) ([]types.Pubkey, error) {
	pubkeys := make([]types.Pubkey, 0, len(accountKeys)+len(loadedWritable)+len(loadedReadonly))

	appendKeys := func(section string, list [][]byte) error {
		for i, b := range list {
			key, err := types.PubkeyFromBytes(b)
			if err != nil {
				return fmt.Errorf("invalid pubkey in %s at index %d: %w", section, i, err)
			}
			pubkeys = append(pubkeys, key)
		}
		return nil
	}

	if err := appendKeys("accountKeys", accountKeys); err != nil {
		return nil, err
	}
	if err := appendKeys("loadedWritable", loadedWritable); err != nil {
		return nil, err
	}
	if err := appendKeys("loadedReadonly", loadedReadonly); err != nil {
		return nil, err
	}
	return pubkeys, nil
}

// resolveAccounts 将指令中的账户下标映射为 Pubkey
func resolveAccounts(accountKeys []types.Pubkey, indexes []byte) ([]types.Pubkey, error) {
	accounts := make([]types.Pubkey, 0, len(indexes))
	for _, idx := range indexes {
		if int(idx) >= len(accountKeys) {
			return nil, fmt.Errorf("account index %d out of range (%d keys)", idx, len(accountKeys))
		}
		accounts = append(accounts, accountKeys[idx])
	}
	return accounts, nil
}

func newInstruction(accountKeys []types.Pubkey, ixIndex, innerIndex int, programIdIndex uint32, indexes, data []byte) (*core.AdaptedInstruction, error) {
	if int(programIdIndex) >= len(accountKeys) {
		return nil, fmt.Errorf("program index %d out of range (%d keys)", programIdIndex, len(accountKeys))
	}
	accounts, err := resolveAccounts(accountKeys, indexes)
	if err != nil {
		return nil, err
	}
	return &core.AdaptedInstruction{
		IxIndex:    uint16(ixIndex),
		InnerIndex: uint16(innerIndex),
		ProgramID:  accountKeys[programIdIndex],
		Accounts:   accounts,
		Data:       data,
	}, nil
}

// buildAdaptedInstructions 按执行顺序展平主指令与 inner 指令：
//   - IxIndex：主指令索引；
//   - InnerIndex：0 表示主指令，1 及以上为 inner 指令序号。
//
// inner 指令块按主指令 Index 升序排列，每条主指令最多一个块，因此顺序匹配即可。
func buildAdaptedInstructions(tx *pb.SubscribeUpdateTransactionInfo, accountKeys []types.Pubkey) ([]*core.AdaptedInstruction, error) {
	rawInstructions := tx.Transaction.Message.Instructions
	var rawInners []*pb.InnerInstructions
	if tx.Meta != nil {
		rawInners = tx.Meta.InnerInstructions
	}

	instructions := make([]*core.AdaptedInstruction, 0, max(len(rawInstructions)*2, 16))
	innerCursor := 0

	for i, inst := range rawInstructions {
		ix, err := newInstruction(accountKeys, i, 0, inst.ProgramIdIndex, inst.Accounts, inst.Data)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		instructions = append(instructions, ix)

		// 跳过指向不存在主指令的块
		for innerCursor < len(rawInners) && int(rawInners[innerCursor].Index) < i {
			innerCursor++
		}
		if innerCursor < len(rawInners) && int(rawInners[innerCursor].Index) == i {
			for j, inner := range rawInners[innerCursor].Instructions {
				innerIx, err := newInstruction(accountKeys, i, j+1, inner.ProgramIdIndex, inner.Accounts, inner.Data)
				if err != nil {
					return nil, fmt.Errorf("inner instruction %d/%d: %w", i, j, err)
				}
				instructions = append(instructions, innerIx)
			}
			innerCursor++
		}
	}
	return instructions, nil
}

// checkStructure 校验 AdaptGrpcTx 依赖的字段
func checkStructure(tx *pb.SubscribeUpdateTransactionInfo) error {
	if tx == nil || tx.Transaction == nil || tx.Transaction.Message == nil {
		return errors.New("invalid transaction: missing message")
	}
	if len(tx.Transaction.Signatures) == 0 || len(tx.Transaction.Signatures[0]) != 64 {
		return errors.New("invalid transaction: missing or malformed signature")
	}
	if tx.Transaction.Message.Header == nil {
		return errors.New("invalid transaction: missing header")
	}
	return nil
}

// ValidateGrpcTx 过滤不需要解析的交易：结构不完整、投票交易、执行失败的交易
func ValidateGrpcTx(tx *pb.SubscribeUpdateTransactionInfo) error {
	if err := checkStructure(tx); err != nil {
		return err
	}
	if tx.IsVote {
		return ErrVoteTx
	}
	if tx.Meta == nil {
		return errors.New("invalid transaction: missing meta")
	}
	if tx.Meta.Err != nil {
		return ErrFailedTx
	}
	return nil
}

// AdaptGrpcTx 将 gRPC 推送的交易转换为 AdaptedTx：
//  1. 构建 accountKeys（含 Address Lookup）；
//  2. 展平主指令与 inner 指令；
//  3. 提取签名与 signer 列表。
func AdaptGrpcTx(txCtx *core.TxContext, tx *pb.SubscribeUpdateTransactionInfo) (_ *core.AdaptedTx, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("AdaptGrpcTx panic: %v", r)
		}
	}()

	if err := checkStructure(tx); err != nil {
		return nil, err
	}

	var loadedWritable, loadedReadonly [][]byte
	if tx.Meta != nil {
		loadedWritable, loadedReadonly = tx.Meta.LoadedWritableAddresses, tx.Meta.LoadedReadonlyAddresses
	}
	accountKeys, err := buildFullAccountKeys(tx.Transaction.Message.AccountKeys, loadedWritable, loadedReadonly)
	if err != nil {
		return nil, fmt.Errorf("buildFullAccountKeys error: %w", err)
	}
	if len(accountKeys) == 0 {
		return nil, fmt.Errorf("invalid transaction: empty accountKeys")
	}

	// Solana 中交易前 N 个账户即为 signer
	signerCount := int(tx.Transaction.Message.Header.NumRequiredSignatures)
	if signerCount == 0 || len(accountKeys) < signerCount {
		return nil, fmt.Errorf("invalid signer count: %d", signerCount)
	}

	signature, err := types.SignatureFromBytes(tx.Transaction.Signatures[0])
	if err != nil {
		return nil, err
	}

	instructions, err := buildAdaptedInstructions(tx, accountKeys)
	if err != nil {
		return nil, err
	}

	return &core.AdaptedTx{
		TxCtx:        txCtx,
		TxIndex:      uint32(tx.Index),
		Signature:    signature,
		Signers:      accountKeys[:signerCount:signerCount],
		Instructions: instructions,
	}, nil
}
