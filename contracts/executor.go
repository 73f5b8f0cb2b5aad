package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/michaelpento.lv/arbkeeper/types"
)

// ExecutorABIJson is the keeper-facing surface of the deployed arbitrage executor
const ExecutorABIJson = `[{
	"inputs": [
		{"name": "tokenIn", "type": "address"},
		{"name": "swapPath", "type": "address[]"},
		{"name": "venues", "type": "address[]"},
		{"name": "flashLoanAmount", "type": "uint256"},
		{"name": "estimatedProfit", "type": "uint256"},
		{"name": "deadline", "type": "uint256"}
	],
	"name": "executeArbitrage",
	"outputs": [
		{"name": "success", "type": "bool"},
		{"name": "netProfit", "type": "uint256"}
	],
	"stateMutability": "nonpayable",
	"type": "function"
}, {
	"inputs": [
		{"name": "tokenIn", "type": "address"},
		{"name": "swapPath", "type": "address[]"},
		{"name": "venues", "type": "address[]"},
		{"name": "flashLoanAmount", "type": "uint256"},
		{"name": "estimatedProfit", "type": "uint256"},
		{"name": "deadline", "type": "uint256"}
	],
	"name": "simulateArbitrage",
	"outputs": [
		{"name": "profitable", "type": "bool"},
		{"name": "netProfit", "type": "uint256"}
	],
	"stateMutability": "view",
	"type": "function"
}, {
	"inputs": [],
	"name": "paused",
	"outputs": [{"name": "", "type": "bool"}],
	"stateMutability": "view",
	"type": "function"
}, {
	"anonymous": false,
	"inputs": [
		{"indexed": true, "name": "tokenIn", "type": "address"},
		{"indexed": false, "name": "flashLoanAmount", "type": "uint256"},
		{"indexed": false, "name": "profit", "type": "uint256"}
	],
	"name": "ArbitrageExecuted",
	"type": "event"
}]`

var (
	ExecutorABI abi.ABI

	ErrEventNotFound = errors.New("ArbitrageExecuted event not found in receipt")
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(ExecutorABIJson))
	if err != nil {
		panic(fmt.Sprintf("failed to parse executor ABI: %v", err))
	}
	ExecutorABI = parsed
}

// Params is the argument tuple shared by executeArbitrage and simulateArbitrage
type Params struct {
	TokenIn         common.Address
	SwapPath        []common.Address
	Venues          []common.Address
	FlashLoanAmount *big.Int
	EstimatedProfit *big.Int
	Deadline        *big.Int
}

// ParamsFor builds the call arguments for an opportunity
func ParamsFor(opp *types.ArbitrageOpportunity) Params {
	return Params{
		TokenIn:         opp.InputToken,
		SwapPath:        opp.SwapPath,
		Venues:          opp.VenueAddresses,
		FlashLoanAmount: opp.FlashLoanAmount,
		EstimatedProfit: opp.EstimatedProfit,
		Deadline:        big.NewInt(opp.Deadline.Unix()),
	}
}

func (p Params) args() []interface{} {
	return []interface{}{p.TokenIn, p.SwapPath, p.Venues, p.FlashLoanAmount, p.EstimatedProfit, p.Deadline}
}

// ArbitrageExecuted is the decoded execution-result event
type ArbitrageExecuted struct {
	TokenIn         common.Address
	FlashLoanAmount *big.Int
	Profit          *big.Int
	Raw             ethtypes.Log
}

// Executor binds the deployed arbitrage executor contract
type Executor struct {
	address  common.Address
	contract *bind.BoundContract
}

// NewExecutor binds the executor at address. transactor may be nil for read-only use.
func NewExecutor(address common.Address, caller bind.ContractCaller, transactor bind.ContractTransactor) *Executor {
	return &Executor{
		address:  address,
		contract: bind.NewBoundContract(address, ExecutorABI, caller, transactor, nil),
	}
}

func (e *Executor) Address() common.Address {
	return e.address
}

// Paused reads the contract's global pause flag
func (e *Executor) Paused(ctx context.Context) (bool, error) {
	var out []interface{}
	if err := e.contract.Call(&bind.CallOpts{Context: ctx}, &out, "paused"); err != nil {
		return false, fmt.Errorf("failed to read paused: %w", err)
	}
	paused, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("failed to parse paused")
	}
	return paused, nil
}

// SimulateArbitrage runs simulateArbitrage against the latest state
func (e *Executor) SimulateArbitrage(ctx context.Context, from common.Address, p Params) (bool, *big.Int, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx, From: from}
	if err := e.contract.Call(opts, &out, "simulateArbitrage", p.args()...); err != nil {
		return false, nil, fmt.Errorf("simulateArbitrage: %w", err)
	}

	profitable, ok := out[0].(bool)
	if !ok {
		return false, nil, fmt.Errorf("failed to parse profitable")
	}
	netProfit, ok := out[1].(*big.Int)
	if !ok {
		return false, nil, fmt.Errorf("failed to parse netProfit")
	}
	return profitable, netProfit, nil
}

// PackExecute returns the executeArbitrage calldata
func (e *Executor) PackExecute(p Params) ([]byte, error) {
	return ExecutorABI.Pack("executeArbitrage", p.args()...)
}

// ExecuteArbitrage creates and signs an executeArbitrage transaction. It is broadcast unless opts.NoSend is set.
func (e *Executor) ExecuteArbitrage(opts *bind.TransactOpts, p Params) (*ethtypes.Transaction, error) {
	tx, err := e.contract.Transact(opts, "executeArbitrage", p.args()...)
	if err != nil {
		return nil, fmt.Errorf("executeArbitrage: %w", err)
	}
	return tx, nil
}

// ParseArbitrageExecuted finds the execution-result event emitted by this contract in receipt
func (e *Executor) ParseArbitrageExecuted(receipt *ethtypes.Receipt) (*ArbitrageExecuted, error) {
	id := ExecutorABI.Events["ArbitrageExecuted"].ID
	for _, log := range receipt.Logs {
		if log == nil || log.Address != e.address || len(log.Topics) == 0 || log.Topics[0] != id {
			continue
		}
		event := new(ArbitrageExecuted)
		if err := e.contract.UnpackLog(event, "ArbitrageExecuted", *log); err != nil {
			return nil, fmt.Errorf("failed to unpack ArbitrageExecuted: %w", err)
		}
		event.Raw = *log
		return event, nil
	}
	return nil, ErrEventNotFound
}
