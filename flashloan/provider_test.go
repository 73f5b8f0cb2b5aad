package flashloan

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderPremiums(t *testing.T) {
	amount := big.NewInt(1_000_000_000000) // 1M USDC

	balancer, err := NewProvider("balancer", nil)
	require.NoError(t, err)
	assert.Zero(t, balancer.Premium(amount).Sign())

	aave, err := NewProvider("Aave", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(500_000000), aave.Premium(amount).Int64())
	assert.Equal(t, "aave (5 bps)", aave.String())

	override := uint32(9)
	custom, err := NewProvider("aave", &override)
	require.NoError(t, err)
	assert.Equal(t, int64(900_000000), custom.Premium(amount).Int64())
}

func TestUnknownProvider(t *testing.T) {
	_, err := NewProvider("dydx", nil)
	assert.Error(t, err)
}
