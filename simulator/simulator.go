package simulator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/michaelpento.lv/arbkeeper/contracts"
	"github.com/michaelpento.lv/arbkeeper/dex"
	"github.com/michaelpento.lv/arbkeeper/types"
	"github.com/michaelpento.lv/arbkeeper/utils"
)

// ExecutorContract is the part of the executor binding the simulator needs
type ExecutorContract interface {
	Address() common.Address
	SimulateArbitrage(ctx context.Context, from common.Address, p contracts.Params) (bool, *big.Int, error)
	PackExecute(p contracts.Params) ([]byte, error)
}

// GasEstimator is satisfied by ethclient
type GasEstimator interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// SimulationResult represents the result of a live re-simulation
type SimulationResult struct {
	Profitable bool
	NetProfit  *big.Int
	GasUsed    uint64
	// Reason explains an unprofitable result
	Reason string
}

// Simulator re-derives profitability of an opportunity against current chain state
type Simulator struct {
	executor  ExecutorContract
	estimator GasEstimator
	from      common.Address
	maxGas    uint64
}

// NewSimulator creates a simulator that calls as the keeper signer from
func NewSimulator(executor ExecutorContract, estimator GasEstimator, from common.Address, maxGas uint64) *Simulator {
	return &Simulator{
		executor:  executor,
		estimator: estimator,
		from:      from,
		maxGas:    maxGas,
	}
}

// SimulateArbitrage calls simulateArbitrage and estimates gas for the real execution.
// Reverts are reported as unprofitable results; only transport failures return an error.
func (s *Simulator) SimulateArbitrage(ctx context.Context, opp *types.ArbitrageOpportunity) (*SimulationResult, error) {
	params := contracts.ParamsFor(opp)

	profitable, netProfit, err := s.executor.SimulateArbitrage(ctx, s.from, params)
	if err != nil {
		if dex.IsRevert(err) {
			return &SimulationResult{Profitable: false, NetProfit: new(big.Int), Reason: revertReason(err)}, nil
		}
		return nil, fmt.Errorf("failed to simulate arbitrage: %w", err)
	}
	if !profitable || netProfit == nil || netProfit.Sign() <= 0 {
		return &SimulationResult{Profitable: false, NetProfit: orZero(netProfit), Reason: "simulation reports no profit"}, nil
	}

	data, err := s.executor.PackExecute(params)
	if err != nil {
		return nil, fmt.Errorf("failed to pack execution call: %w", err)
	}

	to := s.executor.Address()
	gasUsed, err := s.estimator.EstimateGas(ctx, ethereum.CallMsg{
		From:  s.from,
		To:    &to,
		Gas:   s.maxGas,
		Value: big.NewInt(0),
		Data:  data,
	})
	if err != nil {
		if dex.IsRevert(err) {
			return &SimulationResult{Profitable: false, NetProfit: netProfit, Reason: revertReason(err)}, nil
		}
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}
	if gasUsed > s.maxGas {
		return &SimulationResult{
			Profitable: false,
			NetProfit:  netProfit,
			GasUsed:    gasUsed,
			Reason:     fmt.Sprintf("gas estimate %d exceeds limit %d", gasUsed, s.maxGas),
		}, nil
	}

	return &SimulationResult{
		Profitable: true,
		NetProfit:  netProfit,
		GasUsed:    gasUsed,
	}, nil
}

func revertReason(err error) string {
	if reason, ok := utils.RevertReason(err); ok {
		return "reverted: " + reason
	}
	return err.Error()
}

func orZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}
