package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubkeyBase58RoundTrip(t *testing.T) {
	const addr = "LendZqTs7gn5CTSJU1jWKhKuVpjJGom45nnwPb2AMTi"
	p, err := TryPubkeyFromBase58(addr)
	require.NoError(t, err)
	assert.Equal(t, addr, p.String())
	assert.False(t, p.IsZero())
}

func TestPubkeyInvalidInput(t *testing.T) {
	_, err := TryPubkeyFromBase58("0OIl") // 非 base58 字符
	assert.Error(t, err)

	_, err = TryPubkeyFromBase58("3yZe7d") // 长度不足 32 字节
	assert.Error(t, err)

	assert.Panics(t, func() { PubkeyFromBase58("") })
}

func TestZeroPubkeyString(t *testing.T) {
	assert.Equal(t, "11111111111111111111111111111111", Pubkey{}.String())
	assert.True(t, Pubkey{}.IsZero())
}

func TestSignatureFromBytes(t *testing.T) {
	_, err := SignatureFromBytes(make([]byte, 32))
	assert.Error(t, err)

	raw := make([]byte, 64)
	raw[0] = 1
	sig, err := SignatureFromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, byte(1), sig[0])
	assert.NotEmpty(t, sig.String())
}
