package arbitrage

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/michaelpento.lv/arbkeeper/flashloan"
	"github.com/michaelpento.lv/arbkeeper/types"
	mathutil "github.com/michaelpento.lv/arbkeeper/utils/math"
)

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

type EvaluatorConfig struct {
	MinSpreadPercent     decimal.Decimal
	MaxLiquidityFraction decimal.Decimal
	VenueFeePercent      decimal.Decimal
	OpportunityTTL       time.Duration
}

// Evaluator turns a tick's quotes for one pair into at most one opportunity.
// It has no side effects and is safe for concurrent use.
type Evaluator struct {
	cfg    EvaluatorConfig
	lender flashloan.Provider
	now    func() time.Time
}

func NewEvaluator(cfg EvaluatorConfig, lender flashloan.Provider) *Evaluator {
	return &Evaluator{
		cfg:    cfg,
		lender: lender,
		now:    time.Now,
	}
}

// Evaluate prices a buy-low/sell-high round trip A -> B -> A across the cheapest and dearest venue
func (e *Evaluator) Evaluate(pair types.TradingPair, quotes []types.PriceQuote) (*types.ArbitrageOpportunity, Outcome) {
	if len(quotes) < 2 {
		return nil, Skip(ReasonInsufficientQuotes, "need at least 2 venues to arbitrage")
	}

	sorted := make([]types.PriceQuote, len(quotes))
	copy(sorted, quotes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Price.LessThan(sorted[j].Price)
	})
	buy, sell := sorted[0], sorted[len(sorted)-1]

	if !buy.Price.IsPositive() {
		return nil, Skip(ReasonNoLiquidity, fmt.Sprintf("venue %s quoted a non-positive price", buy.Venue))
	}

	spread := SpreadPercent(buy.Price, sell.Price)
	if spread.LessThan(e.cfg.MinSpreadPercent) {
		return nil, Skip(ReasonSpreadTooSmall, fmt.Sprintf("spread %s%% below %s%%", spread.StringFixed(4), e.cfg.MinSpreadPercent))
	}

	amount := e.size(buy, sell, spread)
	if amount.Sign() <= 0 {
		return nil, Skip(ReasonNoLiquidity, "no usable liquidity on the selected venues")
	}

	profit := e.estimateProfit(amount, spread)

	if pair.MinProfit != nil && profit.Cmp(pair.MinProfit) < 0 {
		return nil, Skip(ReasonProfitTooSmall, fmt.Sprintf("estimated profit %s below %s", profit, pair.MinProfit))
	}

	opp := &types.ArbitrageOpportunity{
		Pair:            pair.Symbol,
		InputToken:      pair.TokenA,
		SwapPath:        []common.Address{pair.TokenA, pair.TokenB, pair.TokenA},
		VenueSequence:   []string{buy.Venue, sell.Venue},
		VenueAddresses:  []common.Address{buy.VenueAddress, sell.VenueAddress},
		FlashLoanAmount: amount,
		EstimatedProfit: profit,
		SpreadPercent:   spread,
		Deadline:        e.now().Add(e.cfg.OpportunityTTL),
	}
	opp.ID = Fingerprint(opp)

	if err := opp.Validate(); err != nil {
		return nil, Fail(ReasonInvalidPath, err)
	}

	return opp, OK()
}

// SpreadPercent returns (sell - buy) / buy * 100
func SpreadPercent(buy, sell decimal.Decimal) decimal.Decimal {
	return sell.Sub(buy).Div(buy).Mul(hundred)
}

// size returns min(liquidity) * fraction * clamp(spread / (2 * minSpread), 0, 1)
func (e *Evaluator) size(buy, sell types.PriceQuote, spread decimal.Decimal) *big.Int {
	if buy.Liquidity == nil || sell.Liquidity == nil {
		return new(big.Int)
	}
	liquidity := mathutil.Min(buy.Liquidity, sell.Liquidity)

	scale := decimal.NewFromInt(1)
	if saturation := e.cfg.MinSpreadPercent.Mul(two); saturation.IsPositive() {
		scale = decimal.Min(decimal.Max(spread.Div(saturation), decimal.Zero), scale)
	}

	return mathutil.MulDecimal(liquidity, e.cfg.MaxLiquidityFraction.Mul(scale))
}

// estimateProfit is gross spread capture less round-trip venue fees and the lender premium
func (e *Evaluator) estimateProfit(amount *big.Int, spread decimal.Decimal) *big.Int {
	gross := mathutil.MulDecimal(amount, spread.Div(hundred))
	fees := mathutil.MulDecimal(amount, e.cfg.VenueFeePercent.Div(hundred))

	profit := new(big.Int).Sub(gross, fees)
	if e.lender != nil {
		profit.Sub(profit, e.lender.Premium(amount))
	}
	return profit
}

// Fingerprint identifies a trade by pair, venues and size so the same trade is never in flight twice
func Fingerprint(opp *types.ArbitrageOpportunity) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(opp.Pair)
	_, _ = h.Write(opp.InputToken.Bytes())
	for _, v := range opp.VenueAddresses {
		_, _ = h.Write(v.Bytes())
	}
	if opp.FlashLoanAmount != nil {
		_, _ = h.Write(opp.FlashLoanAmount.Bytes())
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(len(opp.SwapPath)))
	_, _ = h.Write(buf[:])

	return h.Sum64()
}
