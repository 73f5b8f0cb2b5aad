package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbkeeper/contracts"
	"github.com/michaelpento.lv/arbkeeper/types"
)

var ErrAlreadyInFlight = errors.New("opportunity already in flight")

// ExecutorContract builds executeArbitrage transactions and decodes their result event
type ExecutorContract interface {
	ExecuteArbitrage(opts *bind.TransactOpts, p contracts.Params) (*ethtypes.Transaction, error)
	ParseArbitrageExecuted(receipt *ethtypes.Receipt) (*contracts.ArbitrageExecuted, error)
}

// Submitter broadcasts a signed transaction. ethclient and the private relay client both satisfy it.
type Submitter interface {
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
}

// Canceller withdraws a submitted transaction that did not land
type Canceller interface {
	CancelTransaction(ctx context.Context, txHash common.Hash) (bool, error)
}

type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// ReceiptWaiter blocks until tx is mined
type ReceiptWaiter func(ctx context.Context, tx *ethtypes.Transaction) (*ethtypes.Receipt, error)

// WaitMinedWith adapts bind.WaitMined to a ReceiptWaiter
func WaitMinedWith(backend bind.DeployBackend) ReceiptWaiter {
	return func(ctx context.Context, tx *ethtypes.Transaction) (*ethtypes.Receipt, error) {
		return bind.WaitMined(ctx, backend, tx)
	}
}

type ExecutorConfig struct {
	GasLimit  uint64
	TxTimeout time.Duration
}

// Executor submits admitted opportunities and waits for their outcome.
// An opportunity is never in flight twice.
type Executor struct {
	cfg       ExecutorConfig
	contract  ExecutorContract
	submitter Submitter
	waitMined ReceiptWaiter
	nonces    NonceSource
	auth      *bind.TransactOpts
	stats     *Statistics
	logger    *zap.Logger

	mu       sync.Mutex
	inFlight map[uint64]struct{}

	// serializes nonce assignment and submission
	sendMu    sync.Mutex
	nextNonce *uint64

	wg sync.WaitGroup
}

func NewExecutor(cfg ExecutorConfig, contract ExecutorContract, submitter Submitter, waitMined ReceiptWaiter, nonces NonceSource, auth *bind.TransactOpts, stats *Statistics, logger *zap.Logger) *Executor {
	return &Executor{
		cfg:       cfg,
		contract:  contract,
		submitter: submitter,
		waitMined: waitMined,
		nonces:    nonces,
		auth:      auth,
		stats:     stats,
		logger:    logger,
		inFlight:  make(map[uint64]struct{}),
	}
}

// Execute submits opp and waits for the receipt. Once submitted, cancelling ctx does not abandon the
// transaction; it is followed until it is mined or TxTimeout elapses.
func (e *Executor) Execute(ctx context.Context, opp *types.ArbitrageOpportunity, adm *Admission) (*types.ExecutionResult, Outcome) {
	if ctx.Err() != nil {
		return nil, Skip(ReasonShutdown, "not submitting during shutdown")
	}
	if !e.claim(opp.ID) {
		return nil, Skip(ReasonInFlight, ErrAlreadyInFlight.Error())
	}
	e.wg.Add(1)
	defer e.wg.Done()
	defer e.release(opp.ID)

	e.stats.RecordAttempt()
	start := time.Now()

	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.TxTimeout)
	defer cancel()

	tx, err := e.send(txCtx, opp, adm)
	if err != nil {
		e.stats.RecordFailure()
		return nil, Fail(ReasonRPC, err)
	}

	e.logger.Info("Submitted arbitrage",
		zap.Uint64("opportunity", opp.ID),
		zap.String("pair", opp.Pair),
		zap.String("tx", tx.Hash().Hex()),
		zap.Uint64("nonce", tx.Nonce()),
		zap.String("flashLoanAmount", opp.FlashLoanAmount.String()),
		zap.String("expectedProfit", adm.NetProfit.String()))

	receipt, err := e.waitMined(txCtx, tx)
	if err != nil {
		e.stats.RecordFailure()
		if errors.Is(err, context.DeadlineExceeded) {
			e.cancel(tx.Hash())
			e.resetNonce()
			return nil, Fail(ReasonTimeout, fmt.Errorf("transaction %s not mined within %s", tx.Hash().Hex(), e.cfg.TxTimeout))
		}
		return nil, Fail(ReasonRPC, fmt.Errorf("failed to wait for %s: %w", tx.Hash().Hex(), err))
	}

	result := &types.ExecutionResult{
		OpportunityID:  opp.ID,
		TxHash:         receipt.TxHash,
		GasUsed:        receipt.GasUsed,
		RealizedProfit: new(big.Int),
		Duration:       time.Since(start),
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		e.stats.RecordFailure()
		return result, Fail(ReasonReverted, fmt.Errorf("transaction %s reverted in block %d", receipt.TxHash.Hex(), result.BlockNumber))
	}

	event, err := e.contract.ParseArbitrageExecuted(receipt)
	switch {
	case err == nil:
		result.RealizedProfit = event.Profit
	case errors.Is(err, contracts.ErrEventNotFound):
		e.logger.Warn("Execution receipt has no result event",
			zap.String("tx", receipt.TxHash.Hex()))
	default:
		e.logger.Warn("Failed to decode execution result",
			zap.String("tx", receipt.TxHash.Hex()),
			zap.Error(err))
	}

	result.Success = true
	e.stats.RecordSuccess(opp.InputToken, result.RealizedProfit, result.GasUsed, result.Duration)
	return result, OK()
}

// Wait blocks until every submitted execution has resolved
func (e *Executor) Wait() {
	e.wg.Wait()
}

func (e *Executor) InFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inFlight)
}

func (e *Executor) claim(id uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.inFlight[id]; ok {
		return false
	}
	e.inFlight[id] = struct{}{}
	return true
}

func (e *Executor) release(id uint64) {
	e.mu.Lock()
	delete(e.inFlight, id)
	e.mu.Unlock()
}

func (e *Executor) send(ctx context.Context, opp *types.ArbitrageOpportunity, adm *Admission) (*ethtypes.Transaction, error) {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	nonce, err := e.nonce(ctx)
	if err != nil {
		return nil, err
	}

	opts := *e.auth
	opts.Context = ctx
	opts.Nonce = new(big.Int).SetUint64(nonce)
	opts.GasPrice = adm.GasPrice
	opts.GasLimit = e.gasLimit(adm.GasUsed)
	opts.NoSend = true

	tx, err := e.contract.ExecuteArbitrage(&opts, contracts.ParamsFor(opp))
	if err != nil {
		return nil, fmt.Errorf("failed to build execution: %w", err)
	}
	if err := e.submitter.SendTransaction(ctx, tx); err != nil {
		e.nextNonce = nil
		return nil, fmt.Errorf("failed to submit %s: %w", tx.Hash().Hex(), err)
	}

	next := nonce + 1
	e.nextNonce = &next
	return tx, nil
}

func (e *Executor) resetNonce() {
	e.sendMu.Lock()
	e.nextNonce = nil
	e.sendMu.Unlock()
}

func (e *Executor) nonce(ctx context.Context) (uint64, error) {
	if e.nextNonce != nil {
		return *e.nextNonce, nil
	}
	n, err := e.nonces.PendingNonceAt(ctx, e.auth.From)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch nonce: %w", err)
	}
	return n, nil
}

// gasLimit pads the estimate by 20% without exceeding the configured ceiling
func (e *Executor) gasLimit(estimate uint64) uint64 {
	limit := estimate + estimate/5
	if estimate == 0 || limit > e.cfg.GasLimit {
		return e.cfg.GasLimit
	}
	return limit
}

func (e *Executor) cancel(hash common.Hash) {
	c, ok := e.submitter.(Canceller)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := c.CancelTransaction(ctx, hash); err != nil {
		e.logger.Warn("Failed to cancel stuck transaction",
			zap.String("tx", hash.Hex()),
			zap.Error(err))
	}
}
