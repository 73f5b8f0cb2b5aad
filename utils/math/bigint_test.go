package math

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestUnitConversion(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals uint8
		want     string
	}{
		{"usdc", "10", 6, "10000000"},
		{"weth", "1.5", 18, "1500000000000000000"},
		{"dust truncated", "0.0000001", 6, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToSmallestUnit(decimal.RequireFromString(tt.amount), tt.decimals)
			assert.Equal(t, tt.want, got.String())
		})
	}

	back := FromSmallestUnit(big.NewInt(2500000), 6)
	assert.True(t, back.Equal(decimal.RequireFromString("2.5")))
}

func TestMulDecimal(t *testing.T) {
	got := MulDecimal(big.NewInt(1000000), decimal.RequireFromString("0.3"))
	assert.Equal(t, int64(300000), got.Int64())

	assert.Equal(t, int64(0), MulDecimal(nil, decimal.NewFromInt(2)).Int64())
}

func TestBps(t *testing.T) {
	assert.Equal(t, int64(5), Bps(big.NewInt(10000), 5).Int64())
	assert.Equal(t, int64(0), Bps(big.NewInt(10000), 0).Int64())
	assert.Equal(t, int64(0), Bps(nil, 30).Int64())
}

func TestMin(t *testing.T) {
	x := big.NewInt(7)
	y := big.NewInt(3)

	m := Min(x, y)
	assert.Equal(t, int64(3), m.Int64())

	// result must not alias the inputs
	m.SetInt64(99)
	assert.Equal(t, int64(3), y.Int64())
}

func TestGwei(t *testing.T) {
	wei := GweiToWei(100)
	assert.Equal(t, "100000000000", wei.String())
	assert.InDelta(t, 100.0, WeiToGwei(wei), 1e-9)
	assert.Equal(t, 0.0, WeiToGwei(nil))
}
