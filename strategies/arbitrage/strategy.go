package arbitrage

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbkeeper/dex"
	"github.com/michaelpento.lv/arbkeeper/types"
	"github.com/michaelpento.lv/arbkeeper/utils/metrics"
)

// QuoteSource fans a quote request out to every venue
type QuoteSource interface {
	FetchQuotes(ctx context.Context, pair types.TradingPair, amountIn *big.Int) ([]types.PriceQuote, []*dex.VenueError)
}

// AmountFunc returns the probe size to quote a pair with
type AmountFunc func(pair types.TradingPair) *big.Int

// Strategy runs one pair through quote, evaluate, gate and execute
type Strategy struct {
	quotes      QuoteSource
	quoteAmount AmountFunc
	evaluator   *Evaluator
	gate        *Gate
	executor    *Executor
	stats       *Statistics
	metrics     *metrics.StrategyMetrics
	logger      *zap.Logger
}

func NewStrategy(quotes QuoteSource, quoteAmount AmountFunc, evaluator *Evaluator, gate *Gate, executor *Executor, stats *Statistics, m *metrics.StrategyMetrics, logger *zap.Logger) *Strategy {
	return &Strategy{
		quotes:      quotes,
		quoteAmount: quoteAmount,
		evaluator:   evaluator,
		gate:        gate,
		executor:    executor,
		stats:       stats,
		metrics:     m,
		logger:      logger,
	}
}

func (s *Strategy) Gate() *Gate {
	return s.gate
}

func (s *Strategy) Executor() *Executor {
	return s.executor
}

func (s *Strategy) Stats() *Statistics {
	return s.stats
}

// ProcessPair runs a single tick for pair. Venue failures only shrink the quote set.
func (s *Strategy) ProcessPair(ctx context.Context, pair types.TradingPair) Outcome {
	quotes, venueErrs := s.quotes.FetchQuotes(ctx, pair, s.quoteAmount(pair))
	if ctx.Err() != nil {
		return Skip(ReasonShutdown, "tick cancelled")
	}

	opp, out := s.evaluator.Evaluate(pair, quotes)
	if !out.IsOK() {
		s.reject(out)
		s.logger.Debug("No opportunity",
			zap.String("pair", pair.Symbol),
			zap.Int("quotes", len(quotes)),
			zap.Int("venueErrors", len(venueErrs)),
			zap.Stringer("outcome", out))
		return out
	}

	s.logger.Info("Opportunity found",
		zap.Uint64("id", opp.ID),
		zap.String("pair", opp.Pair),
		zap.Strings("venues", opp.VenueSequence),
		zap.String("spread", opp.SpreadPercent.StringFixed(4)),
		zap.String("flashLoanAmount", opp.FlashLoanAmount.String()),
		zap.String("estimatedProfit", opp.EstimatedProfit.String()))

	adm, out := s.gate.Admit(ctx, opp)
	if !out.IsOK() {
		s.logOutcome("Opportunity rejected", opp, out)
		return out
	}
	s.stats.RecordOpportunity()

	if s.metrics != nil {
		s.metrics.InFlight.Inc()
		defer s.metrics.InFlight.Dec()
	}

	result, out := s.executor.Execute(ctx, opp, adm)
	if !out.IsOK() {
		if out.Kind == OutcomeSkip {
			s.reject(out)
		}
		s.logOutcome("Execution did not succeed", opp, out)
		return out
	}

	s.logger.Info("Arbitrage executed",
		zap.Uint64("id", opp.ID),
		zap.String("pair", opp.Pair),
		zap.String("tx", result.TxHash.Hex()),
		zap.Uint64("block", result.BlockNumber),
		zap.Uint64("gasUsed", result.GasUsed),
		zap.String("profit", result.RealizedProfit.String()),
		zap.Duration("elapsed", result.Duration))
	return out
}

func (s *Strategy) reject(out Outcome) {
	if s.metrics != nil && out.Kind == OutcomeSkip {
		s.metrics.Rejections.WithLabelValues(out.Reason).Inc()
	}
}

func (s *Strategy) logOutcome(msg string, opp *types.ArbitrageOpportunity, out Outcome) {
	fields := []zap.Field{
		zap.Uint64("id", opp.ID),
		zap.String("pair", opp.Pair),
		zap.String("reason", out.Reason),
	}
	if out.Err != nil {
		s.logger.Error(msg, append(fields, zap.Error(out.Err))...)
		return
	}
	s.logger.Info(msg, append(fields, zap.String("detail", out.Detail))...)
}
