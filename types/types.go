package types

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// VenueKind identifies the quoting ABI a venue exposes
type VenueKind string

const (
	VenueUniswapV2 VenueKind = "uniswap_v2"
	VenueUniswapV3 VenueKind = "uniswap_v3"
	VenueSolidly   VenueKind = "solidly"
)

// TradingPair is a fixed token pair scanned every tick
type TradingPair struct {
	Symbol    string
	TokenA    common.Address
	TokenB    common.Address
	DecimalsA uint8
	DecimalsB uint8
	// MinProfit is the smallest acceptable estimated profit in TokenA base units, nil for none.
	// Config resolves it from the pair override or the global min_profit.
	MinProfit *big.Int
}

// VenueConfig identifies a price source
type VenueConfig struct {
	Name    string
	Kind    VenueKind
	Router  common.Address
	Factory common.Address
	Quoter  common.Address
	Fee     uint32 // uniswap_v3 fee tier, e.g. 3000 = 0.3%
	Stable  bool   // solidly stable pool flag
}

// PriceQuote is one venue's answer for one pair at one instant
type PriceQuote struct {
	Venue        string
	VenueAddress common.Address
	AmountIn     *big.Int
	AmountOut    *big.Int
	// Price is AmountOut/AmountIn in human units
	Price decimal.Decimal
	// Liquidity is the venue's TokenA depth in smallest units
	Liquidity *big.Int
}

// ArbitrageOpportunity is a closed-loop flash-loan funded trade candidate
type ArbitrageOpportunity struct {
	ID              uint64
	Pair            string
	InputToken      common.Address
	SwapPath        []common.Address
	VenueSequence   []string
	VenueAddresses  []common.Address
	FlashLoanAmount *big.Int
	EstimatedProfit *big.Int
	SpreadPercent   decimal.Decimal
	Deadline        time.Time
}

var ErrInvalidPath = errors.New("invalid swap path")

// Validate checks the path closure invariant
func (o *ArbitrageOpportunity) Validate() error {
	if len(o.SwapPath) < 3 {
		return fmt.Errorf("%w: need at least 3 hops, got %d", ErrInvalidPath, len(o.SwapPath))
	}
	if o.SwapPath[0] != o.SwapPath[len(o.SwapPath)-1] {
		return fmt.Errorf("%w: path does not return to %s", ErrInvalidPath, o.SwapPath[0].Hex())
	}
	if o.SwapPath[0] != o.InputToken {
		return fmt.Errorf("%w: path starts at %s, input token is %s", ErrInvalidPath, o.SwapPath[0].Hex(), o.InputToken.Hex())
	}
	if len(o.VenueAddresses) != len(o.SwapPath)-1 {
		return fmt.Errorf("%w: %d venues for %d legs", ErrInvalidPath, len(o.VenueAddresses), len(o.SwapPath)-1)
	}
	if o.FlashLoanAmount == nil || o.FlashLoanAmount.Sign() <= 0 {
		return errors.New("flash loan amount must be positive")
	}
	return nil
}

// Expired reports whether the deadline has passed at now
func (o *ArbitrageOpportunity) Expired(now time.Time) bool {
	return !o.Deadline.After(now)
}

// ExecutionResult is what the executor learned from a mined transaction
type ExecutionResult struct {
	OpportunityID  uint64
	TxHash         common.Hash
	Success        bool
	RealizedProfit *big.Int
	GasUsed        uint64
	BlockNumber    uint64
	Duration       time.Duration
}
