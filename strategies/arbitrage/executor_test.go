package arbitrage

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestExecutor(t *testing.T, chain *fakeChain, timeout time.Duration) (*Executor, *Statistics) {
	stats := NewStatistics(nil)
	e := NewExecutor(
		ExecutorConfig{GasLimit: 1_500_000, TxTimeout: timeout},
		chain, chain, chain.WaitMined, chain,
		testTransactor(t), stats, zaptest.NewLogger(t))
	return e, stats
}

func testAdmission() *Admission {
	return &Admission{
		GasPrice:     big.NewInt(30e9),
		GasUsed:      300_000,
		SimProfit:    ether(2),
		GasCostToken: big.NewInt(9e15),
		NetProfit:    new(big.Int).Sub(ether(2), big.NewInt(9e15)),
	}
}

func TestExecuteSuccess(t *testing.T) {
	chain := newFakeChain(t)
	e, stats := newTestExecutor(t, chain, time.Minute)
	opp := testOpportunity(time.Now().Add(time.Minute))

	result, out := e.Execute(context.Background(), opp, testAdmission())
	require.True(t, out.IsOK(), out.String())

	assert.True(t, result.Success)
	assert.Equal(t, opp.ID, result.OpportunityID)
	assert.Equal(t, ether(2), result.RealizedProfit)
	assert.Equal(t, uint64(100), result.BlockNumber)

	require.Len(t, chain.sent, 1)
	tx := chain.sent[0]
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, big.NewInt(30e9), tx.GasPrice())
	assert.Equal(t, uint64(360_000), tx.Gas())
	assert.True(t, chain.built[0].NoSend)

	snap := stats.Snapshot()
	assert.Equal(t, uint64(1), snap.Attempted)
	assert.Equal(t, uint64(1), snap.Successes)
	assert.Equal(t, ether(2).String(), snap.TotalProfit)
	assert.Equal(t, ether(2).String(), snap.ProfitByToken[tokenA.Hex()])
	assert.Zero(t, e.InFlight())

	// the next submission continues from the local nonce
	opp2 := testOpportunity(time.Now().Add(time.Minute))
	opp2.FlashLoanAmount = ether(50)
	opp2.ID = Fingerprint(opp2)
	_, out = e.Execute(context.Background(), opp2, testAdmission())
	require.True(t, out.IsOK(), out.String())
	assert.Equal(t, uint64(8), chain.sent[1].Nonce())
}

func TestExecuteReverted(t *testing.T) {
	chain := newFakeChain(t)
	chain.status = ethtypes.ReceiptStatusFailed
	e, stats := newTestExecutor(t, chain, time.Minute)

	result, out := e.Execute(context.Background(), testOpportunity(time.Now().Add(time.Minute)), testAdmission())
	assert.Equal(t, OutcomeError, out.Kind)
	assert.Equal(t, ReasonReverted, out.Reason)
	require.NotNil(t, result)
	assert.False(t, result.Success)

	snap := stats.Snapshot()
	assert.Equal(t, uint64(1), snap.Attempted)
	assert.Equal(t, uint64(1), snap.Failures)
	assert.Equal(t, "0", snap.TotalProfit)
}

func TestExecuteMissingEvent(t *testing.T) {
	chain := newFakeChain(t)
	chain.noEvent = true
	e, stats := newTestExecutor(t, chain, time.Minute)

	result, out := e.Execute(context.Background(), testOpportunity(time.Now().Add(time.Minute)), testAdmission())
	require.True(t, out.IsOK(), out.String())
	assert.Equal(t, int64(0), result.RealizedProfit.Int64())
	assert.Equal(t, uint64(1), stats.Snapshot().Successes)
}

func TestExecuteSubmitFailure(t *testing.T) {
	chain := newFakeChain(t)
	chain.sendErr = errors.New("nonce too low")
	e, stats := newTestExecutor(t, chain, time.Minute)

	_, out := e.Execute(context.Background(), testOpportunity(time.Now().Add(time.Minute)), testAdmission())
	assert.Equal(t, ReasonRPC, out.Reason)
	assert.ErrorContains(t, out.Err, "nonce too low")
	assert.Equal(t, uint64(1), stats.Snapshot().Failures)

	// the nonce is refetched after a failed submission
	chain.sendErr = nil
	chain.nonce = 9
	_, out = e.Execute(context.Background(), testOpportunity(time.Now().Add(time.Minute)), testAdmission())
	require.True(t, out.IsOK(), out.String())
	assert.Equal(t, uint64(9), chain.sent[0].Nonce())
}

func TestExecuteNeverInFlightTwice(t *testing.T) {
	chain := newFakeChain(t)
	chain.block = make(chan struct{})
	e, stats := newTestExecutor(t, chain, time.Minute)
	opp := testOpportunity(time.Now().Add(time.Minute))

	done := make(chan Outcome, 1)
	go func() {
		_, out := e.Execute(context.Background(), opp, testAdmission())
		done <- out
	}()

	require.Eventually(t, func() bool { return chain.sentCount() == 1 }, time.Second, 5*time.Millisecond)

	_, out := e.Execute(context.Background(), opp, testAdmission())
	assert.Equal(t, OutcomeSkip, out.Kind)
	assert.Equal(t, ReasonInFlight, out.Reason)
	assert.Equal(t, 1, e.InFlight())

	close(chain.block)
	first := <-done
	assert.True(t, first.IsOK(), first.String())

	e.Wait()
	snap := stats.Snapshot()
	assert.Equal(t, uint64(1), snap.Attempted)
	assert.Equal(t, 1, chain.sentCount())
}

func TestExecuteSurvivesCallerCancellation(t *testing.T) {
	chain := newFakeChain(t)
	chain.block = make(chan struct{})
	e, stats := newTestExecutor(t, chain, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Outcome, 1)
	go func() {
		_, out := e.Execute(ctx, testOpportunity(time.Now().Add(time.Minute)), testAdmission())
		done <- out
	}()

	require.Eventually(t, func() bool { return chain.sentCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	close(chain.block)

	out := <-done
	assert.True(t, out.IsOK(), out.String())
	assert.Equal(t, uint64(1), stats.Snapshot().Successes)
}

func TestExecuteTimeout(t *testing.T) {
	chain := newFakeChain(t)
	chain.block = make(chan struct{})
	e, stats := newTestExecutor(t, chain, 50*time.Millisecond)

	_, out := e.Execute(context.Background(), testOpportunity(time.Now().Add(time.Minute)), testAdmission())
	assert.Equal(t, OutcomeError, out.Kind)
	assert.Equal(t, ReasonTimeout, out.Reason)
	assert.Len(t, chain.cancelled, 1)
	assert.Equal(t, uint64(1), stats.Snapshot().Failures)
}

func TestExecuteDuringShutdown(t *testing.T) {
	chain := newFakeChain(t)
	e, stats := newTestExecutor(t, chain, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, out := e.Execute(ctx, testOpportunity(time.Now().Add(time.Minute)), testAdmission())
	assert.Equal(t, ReasonShutdown, out.Reason)
	assert.Zero(t, chain.sentCount())
	assert.Zero(t, stats.Snapshot().Attempted)
}

func TestGasLimitPadding(t *testing.T) {
	e := &Executor{cfg: ExecutorConfig{GasLimit: 1_000_000}}

	assert.Equal(t, uint64(120_000), e.gasLimit(100_000))
	assert.Equal(t, uint64(1_000_000), e.gasLimit(900_000))
	assert.Equal(t, uint64(1_000_000), e.gasLimit(0))
}
