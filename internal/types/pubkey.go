package types

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// Pubkey 32 字节 Solana 公钥，文本形式统一为 base58
type Pubkey [32]byte

func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// PubkeyFromBytes 从原始字节构造 Pubkey，长度必须为 32
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var p Pubkey
	if len(b) != len(p) {
		return p, fmt.Errorf("invalid pubkey length: got %d, want 32", len(b))
	}
	copy(p[:], b)
	return p, nil
}

// TryPubkeyFromBase58 解析 base58 字符串为 Pubkey，失败时返回 error（用于配置等不可信输入）
func TryPubkeyFromBase58(s string) (Pubkey, error) {
	data, err := base58.Decode(s)
	if err != nil {
		return Pubkey{}, fmt.Errorf("failed to decode base58 pubkey %q: %w", s, err)
	}
	p, err := PubkeyFromBytes(data)
	if err != nil {
		return Pubkey{}, fmt.Errorf("%w, input=%q", err, s)
	}
	return p, nil
}

// PubkeyFromBase58 仅用于常量初始化，解析失败直接 panic
func PubkeyFromBase58(s string) Pubkey {
	p, err := TryPubkeyFromBase58(s)
	if err != nil {
		panic(err)
	}
	return p
}
