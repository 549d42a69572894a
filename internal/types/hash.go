package types

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// Hash 区块哈希（32 字节）
type Hash [32]byte

func (h Hash) String() string {
	return base58.Encode(h[:])
}

func HashFromBase58(s string) (Hash, error) {
	var h Hash
	data, err := base58.Decode(s)
	if err != nil {
		return h, err
	}
	if len(data) != len(h) {
		return h, fmt.Errorf("invalid hash length: got %d, want 32", len(data))
	}
	copy(h[:], data)
	return h, nil
}

// Signature 交易签名（64 字节），交易的第一个签名即交易哈希
type Signature [64]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func SignatureFromBytes(b []byte) (Signature, error) {
	var s Signature
	if len(b) != len(s) {
		return s, fmt.Errorf("invalid signature length: got %d, want 64", len(b))
	}
	copy(s[:], b)
	return s, nil
}
