package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbkeeper/strategies/arbitrage"
	"github.com/michaelpento.lv/arbkeeper/types"
	"github.com/michaelpento.lv/arbkeeper/utils/metrics"
)

// State of the scan loop
type State int32

const (
	StateIdle State = iota
	StateScanning
)

func (s State) String() string {
	if s == StateScanning {
		return "scanning"
	}
	return "idle"
}

// PairProcessor runs one pair through the arbitrage pipeline
type PairProcessor interface {
	ProcessPair(ctx context.Context, pair types.TradingPair) arbitrage.Outcome
}

// Drainer waits for submitted executions to resolve
type Drainer interface {
	Wait()
}

// Config holds the scheduler intervals
type Config struct {
	PollInterval  time.Duration
	StatsInterval time.Duration
}

// Bot is the keeper's scheduler. It scans every pair on a fixed interval and
// periodically logs aggregate statistics.
type Bot struct {
	cfg       Config
	pairs     []types.TradingPair
	processor PairProcessor
	drainer   Drainer
	stats     *arbitrage.Statistics
	strategy  *metrics.StrategyMetrics
	system    *metrics.SystemMetrics
	logger    *zap.Logger

	state atomic.Int32
	ticks atomic.Uint64
}

// New creates a scheduler. The metrics arguments may be nil.
func New(cfg Config, pairs []types.TradingPair, processor PairProcessor, drainer Drainer, stats *arbitrage.Statistics, sm *metrics.StrategyMetrics, sys *metrics.SystemMetrics, logger *zap.Logger) *Bot {
	return &Bot{
		cfg:       cfg,
		pairs:     pairs,
		processor: processor,
		drainer:   drainer,
		stats:     stats,
		strategy:  sm,
		system:    sys,
		logger:    logger,
	}
}

// Run scans until ctx is cancelled, then waits for in-flight executions
func (b *Bot) Run(ctx context.Context) error {
	if len(b.pairs) == 0 {
		return fmt.Errorf("no trading pairs configured")
	}

	b.logger.Info("Starting keeper",
		zap.Int("pairs", len(b.pairs)),
		zap.Duration("pollInterval", b.cfg.PollInterval),
		zap.Duration("statsInterval", b.cfg.StatsInterval))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.statsLoop(ctx)
	}()

	scan := time.NewTicker(b.cfg.PollInterval)
	defer scan.Stop()

	b.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Stopping keeper, waiting for in-flight executions")
			wg.Wait()
			if b.drainer != nil {
				b.drainer.Wait()
			}
			b.LogStats()
			return nil
		case <-scan.C:
			b.Tick(ctx)
		}
	}
}

// Tick scans every pair once, concurrently, and returns when all have finished.
// Ticks that fire while a scan is running are dropped.
func (b *Bot) Tick(ctx context.Context) {
	b.setState(StateScanning)
	defer b.setState(StateIdle)

	start := time.Now()
	b.ticks.Add(1)

	var wg sync.WaitGroup
	for _, pair := range b.pairs {
		wg.Add(1)
		go func(pair types.TradingPair) {
			defer wg.Done()
			b.processPair(ctx, pair)
		}(pair)
	}
	wg.Wait()

	if b.strategy != nil {
		b.strategy.ScanDuration.Observe(time.Since(start).Seconds())
	}
}

// processPair contains failures to the pair so the rest of the tick continues
func (b *Bot) processPair(ctx context.Context, pair types.TradingPair) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic while scanning pair",
				zap.String("pair", pair.Symbol),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	out := b.processor.ProcessPair(ctx, pair)
	if out.Kind == arbitrage.OutcomeError {
		b.logger.Warn("Pair scan failed",
			zap.String("pair", pair.Symbol),
			zap.String("reason", out.Reason),
			zap.Error(out.Err))
	}
}

func (b *Bot) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.LogStats()
		}
	}
}

// LogStats prints the aggregate statistics summary
func (b *Bot) LogStats() {
	snap := b.stats.Snapshot()
	b.logger.Info("Keeper statistics",
		zap.Uint64("opportunities", snap.Opportunities),
		zap.Uint64("attempted", snap.Attempted),
		zap.Uint64("successes", snap.Successes),
		zap.Uint64("failures", snap.Failures),
		zap.String("totalProfit", snap.TotalProfit),
		zap.Any("profitByToken", snap.ProfitByToken),
		zap.Duration("uptime", snap.Uptime.Round(time.Second)),
		zap.Uint64("ticks", b.ticks.Load()))
}

func (b *Bot) State() State {
	return State(b.state.Load())
}

func (b *Bot) Ticks() uint64 {
	return b.ticks.Load()
}

func (b *Bot) setState(s State) {
	b.state.Store(int32(s))
	if b.system != nil {
		b.system.State.Set(float64(s))
	}
}
