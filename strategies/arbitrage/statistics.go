package arbitrage

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/michaelpento.lv/arbkeeper/utils/metrics"
)

// Statistics holds process-lifetime keeper counters. It is safe for concurrent use.
type Statistics struct {
	mu            sync.Mutex
	opportunities uint64
	attempted     uint64
	successes     uint64
	failures      uint64
	totalProfit   *big.Int
	profitByToken map[common.Address]*big.Int
	startedAt     time.Time

	metrics *metrics.StrategyMetrics
}

// StatsSnapshot is a consistent copy of Statistics
type StatsSnapshot struct {
	Opportunities uint64            `json:"opportunities_found"`
	Attempted     uint64            `json:"executions_attempted"`
	Successes     uint64            `json:"successes"`
	Failures      uint64            `json:"failures"`
	TotalProfit   string            `json:"total_profit"`
	ProfitByToken map[string]string `json:"profit_by_token"`
	Uptime        time.Duration     `json:"uptime_ns"`
}

// NewStatistics returns zeroed counters. m may be nil.
func NewStatistics(m *metrics.StrategyMetrics) *Statistics {
	return &Statistics{
		totalProfit:   new(big.Int),
		profitByToken: make(map[common.Address]*big.Int),
		startedAt:     time.Now(),
		metrics:       m,
	}
}

// RecordOpportunity counts an opportunity that passed the execution gate
func (s *Statistics) RecordOpportunity() {
	s.mu.Lock()
	s.opportunities++
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Opportunities.Inc()
	}
}

func (s *Statistics) RecordAttempt() {
	s.mu.Lock()
	s.attempted++
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Attempts.Inc()
	}
}

// RecordSuccess adds a confirmed execution and its realized profit in token units
func (s *Statistics) RecordSuccess(token common.Address, profit *big.Int, gasUsed uint64, elapsed time.Duration) {
	if profit == nil {
		profit = new(big.Int)
	}

	s.mu.Lock()
	s.successes++
	s.totalProfit.Add(s.totalProfit, profit)
	acc, ok := s.profitByToken[token]
	if !ok {
		acc = new(big.Int)
		s.profitByToken[token] = acc
	}
	acc.Add(acc, profit)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Successes.Inc()
		f, _ := new(big.Float).SetInt(profit).Float64()
		s.metrics.ProfitTotal.WithLabelValues(token.Hex()).Add(f)
		s.metrics.GasUsed.Observe(float64(gasUsed))
		s.metrics.ExecutionTime.Observe(elapsed.Seconds())
	}
}

func (s *Statistics) RecordFailure() {
	s.mu.Lock()
	s.failures++
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Failures.Inc()
	}
}

// Snapshot returns a copy safe to read without holding the lock
func (s *Statistics) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	byToken := make(map[string]string, len(s.profitByToken))
	for token, profit := range s.profitByToken {
		byToken[token.Hex()] = profit.String()
	}

	return StatsSnapshot{
		Opportunities: s.opportunities,
		Attempted:     s.attempted,
		Successes:     s.successes,
		Failures:      s.failures,
		TotalProfit:   s.totalProfit.String(),
		ProfitByToken: byToken,
		Uptime:        time.Since(s.startedAt),
	}
}
