package gas

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/arbkeeper/utils/metrics"
)

type countingSource struct {
	prices []*big.Int
	calls  int
	err    error
}

func (s *countingSource) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if s.err != nil {
		return nil, s.err
	}
	p := s.prices[s.calls%len(s.prices)]
	s.calls++
	return p, nil
}

func TestEstimatorCaches(t *testing.T) {
	source := &countingSource{prices: []*big.Int{big.NewInt(30e9), big.NewInt(45e9)}}
	m := metrics.NewGasMetrics(prometheus.NewRegistry(), "test")
	e := NewEstimator(source, 2*time.Second, m, zaptest.NewLogger(t))

	now := time.Unix(1_700_000_000, 0)
	e.now = func() time.Time { return now }

	p1, err := e.GasPrice(context.Background())
	require.NoError(t, err)
	p2, err := e.GasPrice(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(30e9), p1.Int64())
	assert.Equal(t, p1, p2)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, float64(30), testutil.ToFloat64(m.Current))

	// callers cannot corrupt the cached value
	p1.SetInt64(1)
	p3, _ := e.GasPrice(context.Background())
	assert.Equal(t, int64(30e9), p3.Int64())

	now = now.Add(3 * time.Second)
	p4, err := e.GasPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(45e9), p4.Int64())
	assert.Equal(t, 2, source.calls)
}

func TestEstimatorError(t *testing.T) {
	e := NewEstimator(&countingSource{err: errors.New("connection refused")}, time.Second, nil, zaptest.NewLogger(t))
	_, err := e.GasPrice(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestCost(t *testing.T) {
	assert.Equal(t, "30000000000000000", Cost(big.NewInt(20e9), 1_500_000).String())
	assert.Zero(t, Cost(nil, 21000).Sign())
}
