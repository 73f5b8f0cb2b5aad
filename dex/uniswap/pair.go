package uniswap

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// UniswapV2Pair reads reserves from a constant-product pair contract
type UniswapV2Pair struct {
	contract *bind.BoundContract
	address  common.Address
}

// NewUniswapV2Pair creates a new UniswapV2Pair instance
func NewUniswapV2Pair(address common.Address, caller bind.ContractCaller) *UniswapV2Pair {
	return &UniswapV2Pair{
		contract: bind.NewBoundContract(address, PairABI, caller, nil, nil),
		address:  address,
	}
}

// GetReserves returns the current reserves of the pair
func (p *UniswapV2Pair) GetReserves(ctx context.Context) (reserve0 *big.Int, reserve1 *big.Int, err error) {
	var out []interface{}
	if err := p.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getReserves"); err != nil {
		return nil, nil, fmt.Errorf("failed to get reserves: %w", err)
	}

	// Parse results
	reserve0, ok := out[0].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("failed to parse reserve0")
	}
	reserve1, ok = out[1].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("failed to parse reserve1")
	}

	return reserve0, reserve1, nil
}

// ReserveOf returns the reserve held for token, using the factory's token0 < token1 ordering
func (p *UniswapV2Pair) ReserveOf(ctx context.Context, token, other common.Address) (*big.Int, error) {
	reserve0, reserve1, err := p.GetReserves(ctx)
	if err != nil {
		return nil, err
	}
	if SortTokens(token, other) == token {
		return reserve0, nil
	}
	return reserve1, nil
}

// SortTokens returns the token the factory stores as token0
func SortTokens(a, b common.Address) common.Address {
	if bytes.Compare(a.Bytes(), b.Bytes()) < 0 {
		return a
	}
	return b
}
