package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbkeeper/gas"
	"github.com/michaelpento.lv/arbkeeper/simulator"
	"github.com/michaelpento.lv/arbkeeper/types"
	mathutil "github.com/michaelpento.lv/arbkeeper/utils/math"
	"github.com/michaelpento.lv/arbkeeper/utils/metrics"
)

// PauseSource reports the executor contract's global pause flag
type PauseSource interface {
	Paused(ctx context.Context) (bool, error)
}

// GasOracle reports the current network gas price in wei
type GasOracle interface {
	GasPrice(ctx context.Context) (*big.Int, error)
}

// Simulator re-simulates an opportunity against live state
type Simulator interface {
	SimulateArbitrage(ctx context.Context, opp *types.ArbitrageOpportunity) (*simulator.SimulationResult, error)
}

// TokenConverter prices a native amount in token units
type TokenConverter interface {
	ToToken(ctx context.Context, token common.Address, amount *big.Int) (*big.Int, error)
}

type GateConfig struct {
	MaxGasPrice *big.Int
	// CheckTimeout bounds all chain reads of one admission. Zero leaves ctx as is.
	CheckTimeout time.Duration
}

// Admission carries what the gate learned about an admitted opportunity
type Admission struct {
	GasPrice     *big.Int
	GasUsed      uint64
	SimProfit    *big.Int
	GasCostToken *big.Int
	NetProfit    *big.Int
}

// Gate runs the ordered pre-submission checks
type Gate struct {
	cfg       GateConfig
	paused    atomic.Bool
	contract  PauseSource
	gas       GasOracle
	sim       Simulator
	converter TokenConverter
	metrics   *metrics.StrategyMetrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewGate(cfg GateConfig, contract PauseSource, oracle GasOracle, sim Simulator, converter TokenConverter, m *metrics.StrategyMetrics, logger *zap.Logger) *Gate {
	return &Gate{
		cfg:       cfg,
		contract:  contract,
		gas:       oracle,
		sim:       sim,
		converter: converter,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Pause stops admitting opportunities until Resume
func (g *Gate) Pause() {
	g.paused.Store(true)
}

func (g *Gate) Resume() {
	g.paused.Store(false)
}

func (g *Gate) IsPaused() bool {
	return g.paused.Load()
}

// Admit checks pause flags, deadline, gas ceiling and live profitability, in that order.
// The first failing check rejects the opportunity.
func (g *Gate) Admit(ctx context.Context, opp *types.ArbitrageOpportunity) (*Admission, Outcome) {
	if g.cfg.CheckTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.CheckTimeout)
		defer cancel()
	}

	adm, out := g.admit(ctx, opp)
	if !out.IsOK() && g.metrics != nil {
		g.metrics.Rejections.WithLabelValues(out.Reason).Inc()
	}
	return adm, out
}

func (g *Gate) admit(ctx context.Context, opp *types.ArbitrageOpportunity) (*Admission, Outcome) {
	// 1. pause flags
	if g.IsPaused() {
		return nil, Skip(ReasonPaused, "keeper paused locally")
	}
	if g.contract != nil {
		paused, err := g.contract.Paused(ctx)
		if err != nil {
			return nil, g.callFailed(ctx, fmt.Errorf("failed to read pause flag: %w", err))
		}
		if paused {
			return nil, Skip(ReasonPaused, "executor contract paused")
		}
	}

	// 2. deadline
	if opp.Expired(g.now()) {
		return nil, Skip(ReasonExpired, fmt.Sprintf("deadline %s passed", opp.Deadline.Format(time.RFC3339)))
	}

	// 3. gas ceiling
	gasPrice, err := g.gas.GasPrice(ctx)
	if err != nil {
		return nil, g.callFailed(ctx, err)
	}
	if gasPrice.Cmp(g.cfg.MaxGasPrice) > 0 {
		return nil, Skip(ReasonGasPrice, fmt.Sprintf("gas price %.2f gwei above %.2f gwei",
			mathutil.WeiToGwei(gasPrice), mathutil.WeiToGwei(g.cfg.MaxGasPrice)))
	}

	// 4. live re-simulation net of gas
	res, err := g.sim.SimulateArbitrage(ctx, opp)
	if err != nil {
		return nil, g.callFailed(ctx, err)
	}
	if !res.Profitable {
		return nil, Skip(ReasonUnprofitable, res.Reason)
	}

	gasCostWei := gas.Cost(gasPrice, res.GasUsed)
	gasCost, err := g.converter.ToToken(ctx, opp.InputToken, gasCostWei)
	if err != nil {
		return nil, g.callFailed(ctx, fmt.Errorf("failed to price gas cost: %w", err))
	}

	net := new(big.Int).Sub(res.NetProfit, gasCost)
	if net.Sign() <= 0 {
		return nil, Skip(ReasonUnprofitable, fmt.Sprintf("net profit %s does not cover gas %s", res.NetProfit, gasCost))
	}

	return &Admission{
		GasPrice:     gasPrice,
		GasUsed:      res.GasUsed,
		SimProfit:    res.NetProfit,
		GasCostToken: gasCost,
		NetProfit:    net,
	}, OK()
}

// callFailed classifies a failed chain read, separating a blown check deadline from node errors
func (g *Gate) callFailed(ctx context.Context, err error) Outcome {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return Fail(ReasonTimeout, fmt.Errorf("gate checks exceeded %s: %w", g.cfg.CheckTimeout, err))
	case errors.Is(ctx.Err(), context.Canceled):
		return Skip(ReasonShutdown, "cancelled during gate checks")
	default:
		return Fail(ReasonRPC, err)
	}
}
