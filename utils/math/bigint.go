package math

import (
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	bpsDenominator = big.NewInt(10000)
	gwei           = decimal.New(1, 9)
)

// ToSmallestUnit converts a human amount into token base units, truncating dust
func ToSmallestUnit(amount decimal.Decimal, decimals uint8) *big.Int {
	return amount.Shift(int32(decimals)).BigInt()
}

// FromSmallestUnit converts base units into a human amount
func FromSmallestUnit(x *big.Int, decimals uint8) decimal.Decimal {
	if x == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(x, -int32(decimals))
}

// MulDecimal returns x * d truncated toward zero
func MulDecimal(x *big.Int, d decimal.Decimal) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return decimal.NewFromBigInt(x, 0).Mul(d).BigInt()
}

// Bps returns x * bps / 10000
func Bps(x *big.Int, bps uint32) *big.Int {
	if x == nil || bps == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(x, new(big.Int).SetUint64(uint64(bps)))
	return out.Div(out, bpsDenominator)
}

// Min returns a copy of the smaller of x and y
func Min(x, y *big.Int) *big.Int {
	if x.Cmp(y) <= 0 {
		return new(big.Int).Set(x)
	}
	return new(big.Int).Set(y)
}

// GweiToWei converts a gwei amount into wei
func GweiToWei(amount float64) *big.Int {
	return decimal.NewFromFloat(amount).Mul(gwei).BigInt()
}

// WeiToGwei converts wei into gwei for logging and metrics
func WeiToGwei(x *big.Int) float64 {
	if x == nil {
		return 0
	}
	f, _ := decimal.NewFromBigInt(x, 0).Div(gwei).Float64()
	return f
}
