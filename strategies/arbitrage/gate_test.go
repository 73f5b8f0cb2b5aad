package arbitrage

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

	"github.com/michaelpento.lv/arbkeeper/simulator"
	"github.com/michaelpento.lv/arbkeeper/types"
	"github.com/michaelpento.lv/arbkeeper/utils/metrics"
)

var gateNow = time.Unix(1_700_000_000, 0)

type gateFixture struct {
	gate    *Gate
	pause   *stubPause
	gas     *stubGas
	sim     *stubSimulator
	metrics *metrics.StrategyMetrics
}

func newGateFixture(t *testing.T) *gateFixture {
	f := &gateFixture{
		pause: &stubPause{},
		gas:   &stubGas{price: big.NewInt(30e9)},
		sim: &stubSimulator{result: &simulator.SimulationResult{
			Profitable: true,
			NetProfit:  ether(2),
			GasUsed:    300_000,
		}},
		metrics: metrics.NewStrategyMetrics(prometheus.NewRegistry(), "test"),
	}
	f.gate = NewGate(GateConfig{MaxGasPrice: big.NewInt(100e9)}, f.pause, f.gas, f.sim, identityConverter{}, f.metrics, zaptest.NewLogger(t))
	f.gate.now = func() time.Time { return gateNow }
	return f
}

func TestGateAdmits(t *testing.T) {
	f := newGateFixture(t)

	adm, out := f.gate.Admit(context.Background(), testOpportunity(gateNow.Add(time.Minute)))
	require.True(t, out.IsOK(), out.String())

	gasCost := big.NewInt(300_000 * 30e9)
	assert.Equal(t, gasCost, adm.GasCostToken)
	assert.Equal(t, new(big.Int).Sub(ether(2), gasCost), adm.NetProfit)
	assert.Equal(t, uint64(300_000), adm.GasUsed)
	assert.Equal(t, big.NewInt(30e9), adm.GasPrice)
}

func TestGatePausedLocally(t *testing.T) {
	f := newGateFixture(t)
	f.gate.Pause()
	assert.True(t, f.gate.IsPaused())

	_, out := f.gate.Admit(context.Background(), testOpportunity(gateNow.Add(time.Minute)))
	assert.Equal(t, OutcomeSkip, out.Kind)
	assert.Equal(t, ReasonPaused, out.Reason)
	assert.Zero(t, f.pause.calls)
	assert.Zero(t, f.sim.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Rejections.WithLabelValues(ReasonPaused)))

	f.gate.Resume()
	_, out = f.gate.Admit(context.Background(), testOpportunity(gateNow.Add(time.Minute)))
	assert.True(t, out.IsOK(), out.String())
}

func TestGateContractPaused(t *testing.T) {
	f := newGateFixture(t)
	f.pause.paused = true

	_, out := f.gate.Admit(context.Background(), testOpportunity(gateNow.Add(time.Minute)))
	assert.Equal(t, ReasonPaused, out.Reason)
	assert.Zero(t, f.sim.calls)
}

func TestGatePauseReadFailure(t *testing.T) {
	f := newGateFixture(t)
	f.pause.err = errors.New("connection refused")

	_, out := f.gate.Admit(context.Background(), testOpportunity(gateNow.Add(time.Minute)))
	assert.Equal(t, OutcomeError, out.Kind)
	assert.Equal(t, ReasonRPC, out.Reason)
	assert.ErrorContains(t, out.Err, "connection refused")
}

func TestGateExpired(t *testing.T) {
	f := newGateFixture(t)

	for _, deadline := range []time.Time{gateNow, gateNow.Add(-time.Second)} {
		_, out := f.gate.Admit(context.Background(), testOpportunity(deadline))
		assert.Equal(t, ReasonExpired, out.Reason)
	}
	assert.Zero(t, f.sim.calls)
}

func TestGateGasCeiling(t *testing.T) {
	f := newGateFixture(t)
	f.gas.price = big.NewInt(150e9)

	_, out := f.gate.Admit(context.Background(), testOpportunity(gateNow.Add(time.Minute)))
	assert.Equal(t, ReasonGasPrice, out.Reason)
	assert.Zero(t, f.sim.calls)

	// equal to the ceiling is allowed
	f.gas.price = big.NewInt(100e9)
	_, out = f.gate.Admit(context.Background(), testOpportunity(gateNow.Add(time.Minute)))
	assert.True(t, out.IsOK(), out.String())
}

func TestGateSimulationUnprofitable(t *testing.T) {
	f := newGateFixture(t)
	f.sim.result = &simulator.SimulationResult{Profitable: false, NetProfit: new(big.Int), Reason: "simulation reports no profit"}

	adm, out := f.gate.Admit(context.Background(), testOpportunity(gateNow.Add(time.Minute)))
	assert.Nil(t, adm)
	assert.Equal(t, OutcomeSkip, out.Kind)
	assert.Equal(t, ReasonUnprofitable, out.Reason)
	assert.Equal(t, 1, f.sim.calls)
}

func TestGateProfitDoesNotCoverGas(t *testing.T) {
	f := newGateFixture(t)
	f.sim.result.NetProfit = big.NewInt(1e15)

	_, out := f.gate.Admit(context.Background(), testOpportunity(gateNow.Add(time.Minute)))
	assert.Equal(t, ReasonUnprofitable, out.Reason)
	assert.Contains(t, out.Detail, "does not cover gas")
}

func TestGateSimulationError(t *testing.T) {
	f := newGateFixture(t)
	f.sim.result = nil
	f.sim.err = errors.New("timeout")

	_, out := f.gate.Admit(context.Background(), testOpportunity(gateNow.Add(time.Minute)))
	assert.Equal(t, OutcomeError, out.Kind)
	assert.Equal(t, ReasonRPC, out.Reason)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Rejections.WithLabelValues(ReasonRPC)))
}

// hangingSimulator never answers until its context ends
type hangingSimulator struct{}

func (hangingSimulator) SimulateArbitrage(ctx context.Context, opp *types.ArbitrageOpportunity) (*simulator.SimulationResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func admitAsync(g *Gate, ctx context.Context) <-chan Outcome {
	done := make(chan Outcome, 1)
	go func() {
		_, out := g.Admit(ctx, testOpportunity(gateNow.Add(time.Minute)))
		done <- out
	}()
	return done
}

func TestGateTimesOutHungSimulation(t *testing.T) {
	f := newGateFixture(t)
	f.gate.cfg.CheckTimeout = 50 * time.Millisecond
	f.gate.sim = hangingSimulator{}

	select {
	case out := <-admitAsync(f.gate, context.Background()):
		assert.Equal(t, OutcomeError, out.Kind)
		assert.Equal(t, ReasonTimeout, out.Reason)
		assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
		assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Rejections.WithLabelValues(ReasonTimeout)))
	case <-time.After(2 * time.Second):
		t.Fatal("Admit did not return after the check timeout")
	}
}

func TestGateCancelledDuringChecks(t *testing.T) {
	f := newGateFixture(t)
	f.gate.cfg.CheckTimeout = time.Minute
	f.gate.sim = hangingSimulator{}

	ctx, cancel := context.WithCancel(context.Background())
	done := admitAsync(f.gate, ctx)
	cancel()

	select {
	case out := <-done:
		assert.Equal(t, OutcomeSkip, out.Kind)
		assert.Equal(t, ReasonShutdown, out.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("Admit did not return after cancellation")
	}
}
