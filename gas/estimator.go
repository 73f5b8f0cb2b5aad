package gas

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	mathutil "github.com/michaelpento.lv/arbkeeper/utils/math"
	"github.com/michaelpento.lv/arbkeeper/utils/metrics"
)

// PriceSource is the subset of ethclient used for gas pricing
type PriceSource interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Estimator provides gas price lookups cached for a short TTL
type Estimator struct {
	source  PriceSource
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.GasMetrics
	now     func() time.Time

	mu        sync.Mutex
	price     *big.Int
	fetchedAt time.Time
}

// NewEstimator creates a new gas estimator. A zero ttl disables caching.
func NewEstimator(source PriceSource, ttl time.Duration, m *metrics.GasMetrics, logger *zap.Logger) *Estimator {
	return &Estimator{
		source:  source,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// GasPrice returns the current network gas price
func (e *Estimator) GasPrice(ctx context.Context) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.price != nil && e.now().Sub(e.fetchedAt) < e.ttl {
		return new(big.Int).Set(e.price), nil
	}

	price, err := e.source.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	e.price = price
	e.fetchedAt = e.now()

	gwei := mathutil.WeiToGwei(price)
	if e.metrics != nil {
		e.metrics.GasPrice.Observe(gwei)
		e.metrics.Current.Set(gwei)
	}
	e.logger.Debug("Gas price updated", zap.Float64("gwei", gwei))

	return new(big.Int).Set(price), nil
}

// Cost returns gasPrice * gasUnits in wei
func Cost(gasPrice *big.Int, gasUnits uint64) *big.Int {
	if gasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasUnits))
}
