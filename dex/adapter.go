package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/michaelpento.lv/arbkeeper/types"
	mathutil "github.com/michaelpento.lv/arbkeeper/utils/math"
	"github.com/michaelpento.lv/arbkeeper/utils/metrics"
)

type AdapterConfig struct {
	QuoteTimeout      time.Duration
	RequestsPerSecond float64
	BurstSize         int
	WaitTimeout       time.Duration
}

// VenueError records why one venue produced no quote
type VenueError struct {
	Venue string
	Err   error
}

func (e *VenueError) Error() string {
	return fmt.Sprintf("venue %s: %v", e.Venue, e.Err)
}

func (e *VenueError) Unwrap() error {
	return e.Err
}

// Adapter fans quote requests out across every configured venue
type Adapter struct {
	providers []QuoteProvider
	config    AdapterConfig
	limiter   *rate.Limiter
	metrics   *metrics.QuoteMetrics
	logger    *zap.Logger
}

func NewAdapter(providers []QuoteProvider, cfg AdapterConfig, m *metrics.QuoteMetrics, logger *zap.Logger) *Adapter {
	return &Adapter{
		providers: providers,
		config:    cfg,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		metrics:   m,
		logger:    logger,
	}
}

func (a *Adapter) Providers() []QuoteProvider {
	return a.providers
}

// FetchQuotes prices amountIn of pair.TokenB in pair.TokenA on every venue concurrently.
// A failed venue is excluded from the result and reported in the error list.
func (a *Adapter) FetchQuotes(ctx context.Context, pair types.TradingPair, amountIn *big.Int) ([]types.PriceQuote, []*VenueError) {
	if err := ValidateQuoteInput(pair.TokenB, pair.TokenA, amountIn); err != nil {
		return nil, []*VenueError{{Venue: "*", Err: err}}
	}

	type result struct {
		quote *types.PriceQuote
		err   *VenueError
	}

	results := make([]result, len(a.providers))
	var wg sync.WaitGroup

	for i, p := range a.providers {
		wg.Add(1)
		go func(i int, p QuoteProvider) {
			defer wg.Done()
			q, err := a.quote(ctx, p, pair, amountIn)
			if err != nil {
				results[i].err = &VenueError{Venue: p.Name(), Err: err}
				return
			}
			results[i].quote = q
		}(i, p)
	}
	wg.Wait()

	var (
		quotes []types.PriceQuote
		errs   []*VenueError
	)
	for _, r := range results {
		if r.err != nil {
			a.logFailure(pair, r.err)
			errs = append(errs, r.err)
			continue
		}
		quotes = append(quotes, *r.quote)
	}

	return quotes, errs
}

func (a *Adapter) quote(ctx context.Context, p QuoteProvider, pair types.TradingPair, amountIn *big.Int) (*types.PriceQuote, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.QuoteTimeout)
	defer cancel()

	if err := a.wait(ctx); err != nil {
		a.countError(p.Name(), err)
		return nil, err
	}

	if a.metrics != nil {
		a.metrics.Requests.WithLabelValues(p.Name()).Inc()
	}

	start := time.Now()
	q, err := p.Quote(ctx, pair.TokenB, pair.TokenA, amountIn)
	if a.metrics != nil {
		a.metrics.Latency.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		a.countError(p.Name(), err)
		return nil, err
	}

	in := mathutil.FromSmallestUnit(q.AmountIn, pair.DecimalsB)
	out := mathutil.FromSmallestUnit(q.AmountOut, pair.DecimalsA)

	return &types.PriceQuote{
		Venue:        p.Name(),
		VenueAddress: p.Address(),
		AmountIn:     q.AmountIn,
		AmountOut:    q.AmountOut,
		Price:        out.Div(in),
		Liquidity:    q.Liquidity,
	}, nil
}

func (a *Adapter) wait(ctx context.Context) error {
	wctx, cancel := context.WithTimeout(ctx, a.config.WaitTimeout)
	defer cancel()

	if err := a.limiter.Wait(wctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", ErrTransport, err)
	}
	return nil
}

func (a *Adapter) countError(venue string, err error) {
	if a.metrics == nil {
		return
	}
	kind := metrics.QuoteErrorTransport
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = metrics.QuoteErrorTimeout
	case errors.Is(err, ErrNoRoute):
		kind = metrics.QuoteErrorNoRoute
	}
	a.metrics.Errors.WithLabelValues(venue, kind).Inc()
}

func (a *Adapter) logFailure(pair types.TradingPair, err *VenueError) {
	fields := []zap.Field{
		zap.String("pair", pair.Symbol),
		zap.String("venue", err.Venue),
		zap.Error(err.Err),
	}
	if errors.Is(err, ErrNoRoute) {
		a.logger.Debug("No quote available", fields...)
		return
	}
	a.logger.Warn("Quote request failed", fields...)
}
