package solidly

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/michaelpento.lv/arbkeeper/dex"
	"github.com/michaelpento.lv/arbkeeper/types"
)

// routerABIJson is the quoting subset of a Solidly-style router
const routerABIJson = `[{
	"inputs": [
		{"name": "amountIn", "type": "uint256"},
		{"components": [
			{"name": "from", "type": "address"},
			{"name": "to", "type": "address"},
			{"name": "stable", "type": "bool"},
			{"name": "factory", "type": "address"}
		], "name": "routes", "type": "tuple[]"}
	],
	"name": "getAmountsOut",
	"outputs": [{"name": "amounts", "type": "uint256[]"}],
	"stateMutability": "view",
	"type": "function"
}, {
	"inputs": [
		{"name": "tokenA", "type": "address"},
		{"name": "tokenB", "type": "address"},
		{"name": "stable", "type": "bool"},
		{"name": "_factory", "type": "address"}
	],
	"name": "getReserves",
	"outputs": [
		{"name": "reserveA", "type": "uint256"},
		{"name": "reserveB", "type": "uint256"}
	],
	"stateMutability": "view",
	"type": "function"
}]`

var RouterABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(routerABIJson))
	if err != nil {
		panic(fmt.Sprintf("failed to parse solidly router ABI: %v", err))
	}
	RouterABI = parsed
}

// Route is one hop through a stable or volatile pool
type Route struct {
	From    common.Address
	To      common.Address
	Stable  bool
	Factory common.Address
}

// Router quotes a single stable or volatile pool through the router
type Router struct {
	name     string
	address  common.Address
	factory  common.Address
	stable   bool
	contract *bind.BoundContract
}

// NewRouter creates a quote provider bound to one pool flavour
func NewRouter(cfg types.VenueConfig, caller bind.ContractCaller) *Router {
	return &Router{
		name:     cfg.Name,
		address:  cfg.Router,
		factory:  cfg.Factory,
		stable:   cfg.Stable,
		contract: bind.NewBoundContract(cfg.Router, RouterABI, caller, nil, nil),
	}
}

// Name returns the venue name
func (r *Router) Name() string {
	return r.name
}

// Address returns the router contract address
func (r *Router) Address() common.Address {
	return r.address
}

// Quote returns the router's output for a single hop and the pool's tokenOut reserve
func (r *Router) Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*dex.Quote, error) {
	if err := dex.ValidateQuoteInput(tokenIn, tokenOut, amountIn); err != nil {
		return nil, err
	}

	opts := &bind.CallOpts{Context: ctx}
	routes := []Route{{From: tokenIn, To: tokenOut, Stable: r.stable, Factory: r.factory}}

	var out []interface{}
	if err := r.contract.Call(opts, &out, "getAmountsOut", amountIn, routes); err != nil {
		return nil, dex.ClassifyCallError(fmt.Errorf("getAmountsOut: %w", err))
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok || len(amounts) != len(routes)+1 {
		return nil, fmt.Errorf("%w: unexpected getAmountsOut result", dex.ErrNoRoute)
	}
	amountOut := amounts[len(amounts)-1]
	if err := dex.NonZero(amountOut); err != nil {
		return nil, err
	}

	// Reserves come back in argument order
	out = nil
	if err := r.contract.Call(opts, &out, "getReserves", tokenIn, tokenOut, r.stable, r.factory); err != nil {
		return nil, dex.ClassifyCallError(fmt.Errorf("getReserves: %w", err))
	}
	reserveOut, ok := out[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to parse reserveB")
	}
	if reserveOut.Sign() == 0 {
		return nil, fmt.Errorf("%w: empty pool", dex.ErrNoRoute)
	}

	return &dex.Quote{
		AmountIn:  amountIn,
		AmountOut: amountOut,
		Liquidity: reserveOut,
	}, nil
}
